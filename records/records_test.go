package records

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestKind_KeysAndIDs(t *testing.T) {
	assert.Equal(t, "business:business_1700000000000", BusinessKind.Key("business_1700000000000"))
	assert.Equal(t, "customer:*", CustomerKind.KeyPattern())

	id, ok := BusinessKind.IDFromKey("business:b1")
	assert.True(t, ok)
	assert.Equal(t, "b1", id)

	_, ok = BusinessKind.IDFromKey("customer:c1")
	assert.False(t, ok)
	_, ok = BusinessKind.IDFromKey("business:")
	assert.False(t, ok)

	k, ok := KindByName("Customers")
	require.True(t, ok)
	assert.Equal(t, CustomerKind, k)
	_, ok = KindByName("orders")
	assert.False(t, ok)
}

func TestBusiness_PreservesUnknownFields(t *testing.T) {
	raw := `{
		"profile": {"id": "b1", "name": "Clare's Cakes", "logoUrl": "https://cdn/x.png"},
		"status": "active",
		"subscriptionTier": "gold",
		"joinDate": "2024-01-10",
		"rewards": [{"id": "r1", "stampsRequired": 8}]
	}`

	var b Business
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	assert.Equal(t, "b1", b.RecordID())
	assert.Equal(t, "Clare's Cakes", b.Distinguisher())
	require.NotNil(t, b.SubscriptionTier)
	assert.Equal(t, "gold", *b.SubscriptionTier)
	assert.Contains(t, b.Extra, "rewards")
	assert.Contains(t, b.Profile.Extra, "logoUrl")

	b.Notes = "called owner"
	out, err := json.Marshal(b)
	require.NoError(t, err)

	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &generic))
	assert.Equal(t, "called owner", generic["notes"])
	assert.Len(t, generic["rewards"], 1)
	profile := generic["profile"].(map[string]interface{})
	assert.Equal(t, "https://cdn/x.png", profile["logoUrl"])
}

func TestBusiness_KnownFieldsWinOverExtra(t *testing.T) {
	b := Business{
		Profile: BusinessProfile{ID: "b1", Name: "New"},
		Status:  "active",
		Extra:   map[string]json.RawMessage{"status": json.RawMessage(`"stale"`)},
	}
	out, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"status":"active"`)
	assert.NotContains(t, string(out), "stale")
}

func TestBusiness_KnownFieldsMatchedCaseInsensitively(t *testing.T) {
	raw := `{"Profile": {"id": "b1", "Name": "Clare's Cakes"}, "STATUS": "active", "rewards": []}`

	var b Business
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	assert.Equal(t, "Clare's Cakes", b.Profile.Name)
	assert.Equal(t, "active", b.Status)
	assert.NotContains(t, b.Extra, "Profile")
	assert.NotContains(t, b.Extra, "STATUS")
	assert.Contains(t, b.Extra, "rewards")
	assert.NotContains(t, b.Profile.Extra, "Name")

	out, err := json.Marshal(b)
	require.NoError(t, err)
	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &generic))
	assert.Contains(t, generic, "profile")
	assert.NotContains(t, generic, "Profile")
	assert.NotContains(t, generic, "STATUS")
}

func TestCustomer_DistinguisherFallsBackToEmail(t *testing.T) {
	c := Customer{Profile: CustomerProfile{ID: "c1", Email: "sam@example.com"}}
	assert.Equal(t, "sam@example.com", c.Distinguisher())

	c.Profile.Name = strPtr("")
	assert.Equal(t, "sam@example.com", c.Distinguisher())

	c.Profile.Name = strPtr("Sam")
	assert.Equal(t, "Sam", c.Distinguisher())

	assert.Equal(t, "", Customer{Profile: CustomerProfile{ID: "c2"}}.Distinguisher())
}

func TestCustomer_OptionalFieldsOmitted(t *testing.T) {
	out, err := json.Marshal(Customer{Profile: CustomerProfile{ID: "c1"}, Status: "active"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"profile":{"id":"c1"},"status":"active"}`, string(out))
}

func TestSummarizeAndFilter(t *testing.T) {
	raw := `{"profile":{"id":"b1","name":"Clare's Cakes","email":"clare@cakes.co"},"status":"active","subscriptionTier":"gold"}`

	s, ok := Summarize(raw)
	require.True(t, ok)
	assert.Equal(t, "Clare's Cakes", s.DisplayName())

	cases := []struct {
		filter Filter
		want   bool
	}{
		{Filter{}, true},
		{Filter{Query: "CAKES"}, true},
		{Filter{Query: "clare@"}, true},
		{Filter{Query: "b1"}, true},
		{Filter{Query: "bakery"}, false},
		{Filter{Status: "ACTIVE"}, true},
		{Filter{Status: "suspended"}, false},
		{Filter{Tier: "gold", Query: "clare"}, true},
		{Filter{Tier: "silver"}, false},
	}
	for _, tc := range cases {
		_, got := tc.filter.MatchRaw(raw)
		assert.Equal(t, tc.want, got, "%+v", tc.filter)
	}

	_, ok = Filter{}.MatchRaw("not json")
	assert.False(t, ok)
	_, ok = Summarize(`"a string"`)
	assert.False(t, ok)
	assert.True(t, Filter{}.IsZero())
}

func TestSummary_DisplayNameFallbacks(t *testing.T) {
	assert.Equal(t, "a@b.c", Summary{ID: "c1", Email: "a@b.c"}.DisplayName())
	assert.Equal(t, "c1", Summary{ID: "c1"}.DisplayName())
}

func TestBlankDistinguisherAccepter(t *testing.T) {
	var c Record = Customer{}
	a, ok := c.(BlankDistinguisherAccepter)
	require.True(t, ok)
	assert.True(t, a.AcceptsBlankDistinguisher())

	var b Record = Business{}
	_, ok = b.(BlankDistinguisherAccepter)
	assert.False(t, ok)
}
