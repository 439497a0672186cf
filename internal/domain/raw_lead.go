package domain

// RawLead is one listing card as read from a source page, before enrichment.
type RawLead struct {
	Name      string
	Phone     string
	Website   string
	Address   string
	Industry  string
	Rating    float64
	DetailID  string
	DetailURL string
}

// HasContact reports whether the card carries at least one way to reach the business.
func (r RawLead) HasContact() bool {
	return r.Phone != "" || r.Website != ""
}
