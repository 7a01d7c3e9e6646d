package records

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Summary is the list-view projection of a record.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Status      string `json:"status,omitempty"`
	Tier        string `json:"subscriptionTier,omitempty"`
	JoinDate    string `json:"joinDate,omitempty"`
	RenewalDate string `json:"renewalDate,omitempty"`
}

var summaryPaths = []string{
	"profile.id",
	"profile.name",
	"profile.email",
	"status",
	"subscriptionTier",
	"joinDate",
	"renewalDate",
}

// Summarize projects raw record JSON into a Summary. It reports false when
// raw is not a JSON object.
func Summarize(raw string) (Summary, bool) {
	if !gjson.Valid(raw) || !gjson.Parse(raw).IsObject() {
		return Summary{}, false
	}
	v := gjson.GetMany(raw, summaryPaths...)
	return Summary{
		ID:          v[0].String(),
		Name:        v[1].String(),
		Email:       v[2].String(),
		Status:      v[3].String(),
		Tier:        v[4].String(),
		JoinDate:    v[5].String(),
		RenewalDate: v[6].String(),
	}, true
}

// DisplayName is the name shown in lists, falling back to email then ID.
func (s Summary) DisplayName() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Email != "":
		return s.Email
	default:
		return s.ID
	}
}

// Filter selects records in list views. Zero fields match everything.
type Filter struct {
	// Query is a case-insensitive substring matched against id, name and email.
	Query  string
	Status string
	Tier   string
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Query) == "" && f.Status == "" && f.Tier == ""
}

// Match reports whether s passes the filter.
func (f Filter) Match(s Summary) bool {
	if f.Status != "" && !strings.EqualFold(f.Status, s.Status) {
		return false
	}
	if f.Tier != "" && !strings.EqualFold(f.Tier, s.Tier) {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	for _, field := range []string{s.ID, s.Name, s.Email} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// MatchRaw summarizes raw and applies the filter. Invalid JSON never matches.
func (f Filter) MatchRaw(raw string) (Summary, bool) {
	s, ok := Summarize(raw)
	if !ok {
		return Summary{}, false
	}
	return s, f.Match(s)
}
