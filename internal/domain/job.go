package domain

import "time"

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// ScrapeJob is one (source, country, city, query) unit of a scrape run.
type ScrapeJob struct {
	ID             int64      `json:"id"`
	RunID          string     `json:"runId"`
	SourceID       int64      `json:"sourceId"`
	Query          string     `json:"query"`
	Service        string     `json:"service"`
	Country        string     `json:"country"`
	City           string     `json:"city"`
	Status         JobStatus  `json:"status"`
	LeadsFound     int        `json:"leadsFound"`
	LeadsNew       int        `json:"leadsNew"`
	LeadsDuplicate int        `json:"leadsDuplicate"`
	LeadsEnriched  int        `json:"leadsEnriched"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}
