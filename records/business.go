package records

import "encoding/json"

// Address is a postal address.
type Address struct {
	Line1    string `json:"line1,omitempty"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Country  string `json:"country,omitempty"`
}

// BusinessProfile holds the identifying details of a business.
type BusinessProfile struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Email    *string  `json:"email,omitempty"`
	Phone    *string  `json:"phone,omitempty"`
	Website  *string  `json:"website,omitempty"`
	Category *string  `json:"category,omitempty"`
	Address  *Address `json:"address,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var businessProfileFields = []string{"id", "name", "email", "phone", "website", "category", "address"}

func (p *BusinessProfile) UnmarshalJSON(data []byte) error {
	type plain BusinessProfile
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := splitExtra(data, businessProfileFields)
	if err != nil {
		return err
	}
	*p = BusinessProfile(v)
	p.Extra = extra
	return nil
}

func (p BusinessProfile) MarshalJSON() ([]byte, error) {
	type plain BusinessProfile
	return mergeExtra(plain(p), p.Extra)
}

// Business is a merchant enrolled on the loyalty platform.
type Business struct {
	Profile          BusinessProfile `json:"profile"`
	Status           string          `json:"status"`
	SubscriptionTier *string         `json:"subscriptionTier,omitempty"`
	JoinDate         string          `json:"joinDate,omitempty"`
	RenewalDate      string          `json:"renewalDate,omitempty"`
	Notes            string          `json:"notes,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var businessFields = []string{"profile", "status", "subscriptionTier", "joinDate", "renewalDate", "notes"}

func (b *Business) UnmarshalJSON(data []byte) error {
	type plain Business
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := splitExtra(data, businessFields)
	if err != nil {
		return err
	}
	*b = Business(v)
	b.Extra = extra
	return nil
}

func (b Business) MarshalJSON() ([]byte, error) {
	type plain Business
	return mergeExtra(plain(b), b.Extra)
}

// RecordID returns profile.id.
func (b Business) RecordID() string {
	return b.Profile.ID
}

// Distinguisher returns profile.name.
func (b Business) Distinguisher() string {
	return b.Profile.Name
}
