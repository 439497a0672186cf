package httpapi

import (
	"context"
	"sync/atomic"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/events"
	"leadgen-engine/internal/jobs"
)

// Store is the read side of the repository the API exposes.
type Store interface {
	ListJobs(ctx context.Context, runID string, limit int) ([]domain.ScrapeJob, error)
	ListLeadsByStatus(ctx context.Context, status domain.LeadStatus, afterID int64, limit int) ([]domain.Lead, error)
	CountLeadsByStatus(ctx context.Context) (map[string]int, error)
	ListActiveCampaigns(ctx context.Context) ([]domain.Campaign, error)
	Checkpoint(ctx context.Context) error
}

// Trigger exposes one job to the API: its last status and a way to start
// a run.
type Trigger struct {
	Status func() jobs.Status
	Run    func(ctx context.Context) error
}

type Deps struct {
	Store Store
	Hub   *events.Hub

	CfgVal *atomic.Value // stores config.Config

	// BaseCtx bounds runs started over HTTP; it ends at process shutdown.
	BaseCtx context.Context

	Scrape   Trigger
	Campaign Trigger
	Rescore  Trigger
	Replies  Trigger
}
