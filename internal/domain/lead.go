package domain

import "time"

type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadQualified LeadStatus = "qualified"
	LeadWon       LeadStatus = "won"
	LeadLost      LeadStatus = "lost"
)

type CompanySize string

const (
	SizeSmall      CompanySize = "small"
	SizeMedium     CompanySize = "medium"
	SizeLarge      CompanySize = "large"
	SizeEnterprise CompanySize = "enterprise"
)

// Lead is a discovered business with enrichment and scoring metadata.
// Country is the only mandatory field.
type Lead struct {
	ID               int64
	Name             string
	CompanyName      string
	CompanyNameLocal string
	Email            string
	Phone            string
	Website          string
	Industry         string
	CompanySize      CompanySize
	Description      string
	Address          string
	City             string
	Country          string
	LinkedInURL      string
	FacebookURL      string
	InstagramURL     string
	Service          string // matched category, "" when none
	RelevanceScore   int
	Rating           float64
	Tags             []string
	SourceID         int64
	SourceURL        string
	Scraped          bool
	Status           LeadStatus
	DealValue        float64
	LastContactedAt  *time.Time
	CreatedAt        time.Time
}

// ClampScore keeps a relevance score inside [0,100].
func ClampScore(s int) int {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	default:
		return s
	}
}
