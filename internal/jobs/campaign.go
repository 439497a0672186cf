package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/events"
	"leadgen-engine/internal/personalize"
	"leadgen-engine/internal/store"
)

type CampaignStore interface {
	CountSentSince(ctx context.Context, since time.Time) (int, error)
	ListActiveCampaigns(ctx context.Context) ([]domain.Campaign, error)
	LeadsForCampaign(ctx context.Context, campaignID int64, limit int) ([]domain.Lead, error)
	MarkContacted(ctx context.Context, leadID int64) error
	IncrementCampaignCounter(ctx context.Context, id int64, counter string, n int) error
}

type Personalizer interface {
	Personalize(ctx context.Context, c domain.Campaign, l domain.Lead) personalize.Email
}

// Deliverer sends one email and logs it; *delivery.Client satisfies it.
type Deliverer interface {
	Deliver(ctx context.Context, campaignID int64, l domain.Lead, subject, body string) (string, error)
}

type CampaignSummary struct {
	Budget    int `json:"budget"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Campaigns int `json:"campaigns"`
}

// CampaignJob sends campaign emails within the global daily cap.
type CampaignJob struct {
	Store        CampaignStore
	Personalizer Personalizer
	Delivery     Deliverer
	// DailyLimit caps sends across all campaigns per local day.
	DailyLimit int
	SendPause  time.Duration
	Hub        Publisher
	// Now is replaceable in tests.
	Now func() time.Time

	guard
}

func (j *CampaignJob) RunOnce(ctx context.Context) (CampaignSummary, error) {
	if !j.begin() {
		return CampaignSummary{}, ErrAlreadyRunning
	}
	var sum CampaignSummary
	var err error
	defer func() { j.end(sum.Sent, err) }()

	sum, err = j.send(ctx)
	return sum, err
}

func (j *CampaignJob) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (j *CampaignJob) send(ctx context.Context) (CampaignSummary, error) {
	var sum CampaignSummary

	sentToday, err := j.Store.CountSentSince(ctx, startOfDay(j.now()))
	if err != nil {
		return sum, fmt.Errorf("count sent: %w", err)
	}
	remaining := j.DailyLimit - sentToday
	sum.Budget = max(remaining, 0)
	if remaining <= 0 {
		log.Printf("[campaign] daily limit reached sent=%d limit=%d", sentToday, j.DailyLimit)
		return sum, nil
	}

	campaigns, err := j.Store.ListActiveCampaigns(ctx)
	if err != nil {
		return sum, fmt.Errorf("list campaigns: %w", err)
	}

	// failures leave the daily quota untouched but still count
	// against what this run may process
	left := remaining

	var lim *rate.Limiter
	if j.SendPause > 0 {
		lim = rate.NewLimiter(rate.Every(j.SendPause), 1)
	}

	for _, c := range campaigns {
		if left <= 0 {
			break
		}
		allowance := min(c.DailyLimit, remaining, left)
		if allowance <= 0 {
			continue
		}
		sum.Campaigns++

		leads, err := j.Store.LeadsForCampaign(ctx, c.ID, allowance)
		if err != nil {
			return sum, fmt.Errorf("leads for campaign %d: %w", c.ID, err)
		}

		sentForCampaign := 0
		for _, l := range leads {
			if allowance <= 0 || left <= 0 {
				break
			}
			if l.Email == "" {
				continue
			}
			if lim != nil {
				if err := lim.Wait(ctx); err != nil {
					return sum, err
				}
			}

			left--
			email := j.Personalizer.Personalize(ctx, c, l)
			if _, err := j.Delivery.Deliver(ctx, c.ID, l, email.Subject, email.Body); err != nil {
				sum.Failed++
				log.Printf("[campaign] warn: send failed campaign=%d lead=%d err=%v", c.ID, l.ID, err)
				if ctx.Err() != nil {
					return sum, ctx.Err()
				}
				continue
			}

			// sent is final; a shutdown must not skip the bookkeeping
			bctx := context.WithoutCancel(ctx)
			if err := j.Store.MarkContacted(bctx, l.ID); err != nil {
				log.Printf("[campaign] warn: mark contacted lead=%d: %v", l.ID, err)
			}
			if err := j.Store.IncrementCampaignCounter(bctx, c.ID, store.CounterSent, 1); err != nil {
				log.Printf("[campaign] warn: increment sent campaign=%d: %v", c.ID, err)
			}
			allowance--
			remaining--
			sum.Sent++
			sentForCampaign++
		}

		log.Printf("[campaign] campaign done id=%d name=%q sent=%d remaining=%d", c.ID, c.Name, sentForCampaign, remaining)
		if sentForCampaign > 0 {
			publish(j.Hub, events.CampaignSent, map[string]any{"campaignId": c.ID, "sent": sentForCampaign})
		}
	}

	log.Printf("[campaign] run done sent=%d failed=%d budget_left=%d", sum.Sent, sum.Failed, remaining)
	return sum, nil
}
