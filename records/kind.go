package records

import "strings"

// Kind describes how one record type is laid out in the key-value store.
type Kind struct {
	Name      string
	Plural    string
	KeyPrefix string
	IndexSet  string
}

var (
	BusinessKind = Kind{
		Name:      "business",
		Plural:    "businesses",
		KeyPrefix: "business:",
		IndexSet:  "businesses:all",
	}
	CustomerKind = Kind{
		Name:      "customer",
		Plural:    "customers",
		KeyPrefix: "customer:",
		IndexSet:  "customers:all",
	}
)

// Kinds lists every record kind the console manages.
var Kinds = []Kind{BusinessKind, CustomerKind}

// KindByName resolves a kind from its singular or plural name.
func KindByName(name string) (Kind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, k := range Kinds {
		if name == k.Name || name == k.Plural {
			return k, true
		}
	}
	return Kind{}, false
}

// Key returns the canonical store key for id.
func (k Kind) Key(id string) string {
	return k.KeyPrefix + id
}

// KeyPattern returns the glob matching every key of this kind.
func (k Kind) KeyPattern() string {
	return k.KeyPrefix + "*"
}

// IDFromKey strips the kind prefix from key.
func (k Kind) IDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, k.KeyPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(key, k.KeyPrefix)
	return id, id != ""
}

// Record is implemented by every storable record type.
type Record interface {
	// RecordID returns the ID embedded in the record (profile.id).
	RecordID() string
	// Distinguisher returns the human-readable value used to confirm a write
	// became visible. Empty means the record has none.
	Distinguisher() string
}

// BlankDistinguisherAccepter is implemented by record types whose writes
// count as confirmed by any decoded read-back when the written record has
// no distinguishing value.
type BlankDistinguisherAccepter interface {
	AcceptsBlankDistinguisher() bool
}
