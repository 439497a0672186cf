package jobs

import (
	"context"
	"fmt"
	"log"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/rank"
)

type RescoreStore interface {
	ListLeadsByStatus(ctx context.Context, status domain.LeadStatus, afterID int64, limit int) ([]domain.Lead, error)
	UpdateLeadCategory(ctx context.Context, id int64, service string, score int) error
}

// RescoreJob re-categorizes new leads after the category rules change.
type RescoreJob struct {
	Store  RescoreStore
	Scorer rank.Scorer

	guard
}

const rescorePage = 200

// RunOnce returns how many leads changed. Leads no rule matches keep the
// service they were scraped for.
func (j *RescoreJob) RunOnce(ctx context.Context) (int, error) {
	if !j.begin() {
		return 0, ErrAlreadyRunning
	}
	updated, err := j.rescore(ctx)
	j.end(updated, err)
	return updated, err
}

func (j *RescoreJob) rescore(ctx context.Context) (int, error) {
	updated := 0
	var after int64
	for {
		leads, err := j.Store.ListLeadsByStatus(ctx, domain.LeadNew, after, rescorePage)
		if err != nil {
			return updated, fmt.Errorf("list leads: %w", err)
		}
		for _, l := range leads {
			after = l.ID
			m := j.Scorer.Categorize(l.Name, l.Description, l.Industry)
			if m.Service == "" || (m.Service == l.Service && m.Score == l.RelevanceScore) {
				continue
			}
			if err := j.Store.UpdateLeadCategory(ctx, l.ID, m.Service, m.Score); err != nil {
				return updated, fmt.Errorf("update lead %d: %w", l.ID, err)
			}
			updated++
		}
		if len(leads) < rescorePage {
			break
		}
	}
	log.Printf("[rescore] done updated=%d", updated)
	return updated, nil
}
