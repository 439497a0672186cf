package domain

import "time"

type SourceType string

const (
	SourceMaps      SourceType = "maps"
	SourceDirectory SourceType = "directory"
	SourceJobs      SourceType = "jobs"
	SourceRegistry  SourceType = "registry"
	SourceSearch    SourceType = "search"
	SourceManual    SourceType = "manual"
)

// LeadSource is a configured origin of candidates. ScrapeConfig is opaque JSON
// interpreted by the scraper registered for Type.
type LeadSource struct {
	ID            int64
	Name          string
	Type          SourceType
	BaseURL       string
	Countries     []string
	Active        bool
	ScrapeConfig  string
	LastScrapedAt *time.Time
	LeadsFound    int
}
