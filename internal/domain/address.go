package domain

// Address is a saved shipping address owned by the shipping service.
type Address struct {
	ID           int64  `json:"id"`
	UserID       string `json:"userId"`
	PostalCode   string `json:"postalCode"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	Label        string `json:"label,omitempty"`
	Primary      bool   `json:"primary"`
	Active       bool   `json:"active"`
}

// NewAddress is the create-address request.
type NewAddress struct {
	UserID string
	Draft  AddressDraft
	Label  string
}

// PostalCodeInfo is a normalized postal code lookup result.
type PostalCodeInfo struct {
	PostalCode   string `json:"postalCode"`
	Street       string `json:"street"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
}

// Prefill copies the looked-up fields into d, leaving the user-typed
// name, number and complement untouched.
func (p PostalCodeInfo) Prefill(d AddressDraft) AddressDraft {
	d.PostalCode = p.PostalCode
	d.Street = p.Street
	d.Neighborhood = p.Neighborhood
	d.City = p.City
	d.State = p.State
	return d
}
