package types

// Address is the delivery address snapshot copied onto an order so later
// address book edits do not rewrite order history.
type Address struct {
	Label      string  `json:"label,omitempty"`
	Recipient  string  `json:"recipient"`
	Phone      string  `json:"phone"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	Region     string  `json:"region,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
	Country    string  `json:"country"`
}
