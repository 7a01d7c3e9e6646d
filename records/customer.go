package records

import "encoding/json"

// CustomerProfile holds the identifying details of a customer.
// Name is optional; Email is the fallback distinguishing value.
type CustomerProfile struct {
	ID    string  `json:"id"`
	Name  *string `json:"name,omitempty"`
	Email string  `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var customerProfileFields = []string{"id", "name", "email", "phone"}

func (p *CustomerProfile) UnmarshalJSON(data []byte) error {
	type plain CustomerProfile
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := splitExtra(data, customerProfileFields)
	if err != nil {
		return err
	}
	*p = CustomerProfile(v)
	p.Extra = extra
	return nil
}

func (p CustomerProfile) MarshalJSON() ([]byte, error) {
	type plain CustomerProfile
	return mergeExtra(plain(p), p.Extra)
}

// Customer is an end user collecting rewards.
type Customer struct {
	Profile          CustomerProfile `json:"profile"`
	Status           string          `json:"status"`
	SubscriptionTier *string         `json:"subscriptionTier,omitempty"`
	JoinDate         string          `json:"joinDate,omitempty"`
	RenewalDate      string          `json:"renewalDate,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	Stamps           *int            `json:"stamps,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var customerFields = []string{"profile", "status", "subscriptionTier", "joinDate", "renewalDate", "notes", "stamps"}

func (c *Customer) UnmarshalJSON(data []byte) error {
	type plain Customer
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	extra, err := splitExtra(data, customerFields)
	if err != nil {
		return err
	}
	*c = Customer(v)
	c.Extra = extra
	return nil
}

func (c Customer) MarshalJSON() ([]byte, error) {
	type plain Customer
	return mergeExtra(plain(c), c.Extra)
}

// RecordID returns profile.id.
func (c Customer) RecordID() string {
	return c.Profile.ID
}

// Distinguisher returns profile.name, falling back to profile.email.
func (c Customer) Distinguisher() string {
	if c.Profile.Name != nil && *c.Profile.Name != "" {
		return *c.Profile.Name
	}
	return c.Profile.Email
}

// AcceptsBlankDistinguisher reports true: a customer with neither name nor
// email is confirmed by any read-back of the same key.
func (c Customer) AcceptsBlankDistinguisher() bool {
	return true
}
