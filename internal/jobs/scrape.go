package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"leadgen-engine/internal/config"
	"leadgen-engine/internal/contact"
	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/events"
	"leadgen-engine/internal/rank"
	"leadgen-engine/internal/runlock"
	"leadgen-engine/internal/scrape"
	"leadgen-engine/internal/store"
)

type ScrapeStore interface {
	ListActiveSources(ctx context.Context) ([]domain.LeadSource, error)
	CreateJob(ctx context.Context, j domain.ScrapeJob) (int64, error)
	FinishJob(ctx context.Context, j domain.ScrapeJob) error
	BulkInsert(ctx context.Context, leads []domain.Lead) (store.BulkResult, error)
	TouchSource(ctx context.Context, id int64, inserted int, at time.Time) error
}

// Enricher looks up contact details on a lead's website; *contact.Extractor
// satisfies it.
type Enricher interface {
	Extract(ctx context.Context, website string) contact.Result
}

type ScrapeSummary struct {
	RunID      string `json:"runId"`
	Skipped    bool   `json:"skipped,omitempty"`
	Units      int    `json:"units"`
	Failed     int    `json:"failed"`
	Found      int    `json:"found"`
	Inserted   int    `json:"inserted"`
	Duplicates int    `json:"duplicates"`
	Enriched   int    `json:"enriched"`
}

// ScrapeJob sweeps every active source over its countries, cities and
// category rules. One unit is one (source, country, city, query).
type ScrapeJob struct {
	Store    ScrapeStore
	Registry *scrape.Registry
	Scorer   rank.Scorer
	Picker   scrape.QueryPicker
	// Enricher is optional; nil skips website contact lookup.
	Enricher Enricher
	Settings scrape.Settings
	Rules    []config.Rule
	// Cities per country code, used when a source has no override.
	Cities      map[string][]string
	UnitTimeout time.Duration
	// LockPath, when set, is a host-wide lock file held for the run.
	LockPath string
	Hub      Publisher

	guard
}

type unit struct {
	src      domain.LeadSource
	settings scrape.Settings
	country  string
	city     string
	service  string
	query    string
}

// RunOnce performs one sweep. Unit failures are recorded on their job
// rows; only store failures and cancellation end the sweep early.
func (j *ScrapeJob) RunOnce(ctx context.Context) (ScrapeSummary, error) {
	if !j.begin() {
		return ScrapeSummary{}, ErrAlreadyRunning
	}
	var sum ScrapeSummary
	var err error
	defer func() { j.end(sum.Inserted, err) }()

	sum, err = j.sweep(ctx)
	return sum, err
}

func (j *ScrapeJob) sweep(ctx context.Context) (ScrapeSummary, error) {
	sum := ScrapeSummary{RunID: uuid.NewString()}

	if j.LockPath != "" {
		lk, err := runlock.Acquire(j.LockPath)
		if errors.Is(err, runlock.ErrHeld) {
			log.Printf("[scrape] warn: skipping run, lock held path=%s", j.LockPath)
			sum.Skipped = true
			return sum, nil
		}
		if err != nil {
			return sum, err
		}
		defer lk.Release()
	}

	sources, err := j.Store.ListActiveSources(ctx)
	if err != nil {
		return sum, fmt.Errorf("list sources: %w", err)
	}

	log.Printf("[scrape] run start run=%s sources=%d", sum.RunID, len(sources))
	publish(j.Hub, events.ScrapeStarted, map[string]any{"runId": sum.RunID})

	for _, src := range sources {
		if !j.Registry.Supports(src.Type) {
			log.Printf("[scrape] warn: no scraper for source=%d type=%s", src.ID, src.Type)
			continue
		}
		sc, err := scrape.ParseSourceConfig(src.ScrapeConfig)
		if err != nil {
			log.Printf("[scrape] warn: source=%d %v", src.ID, err)
			continue
		}
		settings := j.Settings.Apply(sc)

		for _, country := range src.Countries {
			cities := sc.Cities[country]
			if len(cities) == 0 {
				cities = j.Cities[country]
			}
			if len(cities) == 0 {
				log.Printf("[scrape] warn: no cities for source=%d country=%s", src.ID, country)
				continue
			}
			for _, city := range cities {
				for _, rule := range j.Rules {
					if len(rule.Queries) == 0 {
						continue
					}
					if err := ctx.Err(); err != nil {
						return sum, err
					}
					u := unit{
						src:      src,
						settings: settings,
						country:  country,
						city:     city,
						service:  rule.Service,
						query:    j.Picker.Pick(rule.Service, rule.Queries),
					}
					job, err := j.runUnit(ctx, sum.RunID, u)
					if err != nil {
						return sum, err
					}
					sum.Units++
					if job.Status == domain.JobFailed {
						sum.Failed++
					}
					sum.Found += job.LeadsFound
					sum.Inserted += job.LeadsNew
					sum.Duplicates += job.LeadsDuplicate
					sum.Enriched += job.LeadsEnriched
				}
			}
		}
	}

	log.Printf("[scrape] run done run=%s units=%d failed=%d found=%d inserted=%d duplicates=%d enriched=%d",
		sum.RunID, sum.Units, sum.Failed, sum.Found, sum.Inserted, sum.Duplicates, sum.Enriched)
	publish(j.Hub, events.ScrapeFinished, sum)
	return sum, nil
}

// runUnit returns an error only when the store cannot record the unit.
func (j *ScrapeJob) runUnit(ctx context.Context, runID string, u unit) (domain.ScrapeJob, error) {
	job := domain.ScrapeJob{
		RunID:    runID,
		SourceID: u.src.ID,
		Query:    u.query,
		Service:  u.service,
		Country:  u.country,
		City:     u.city,
		Status:   domain.JobRunning,
	}
	id, err := j.Store.CreateJob(ctx, job)
	if err != nil {
		return job, fmt.Errorf("create job: %w", err)
	}
	job.ID = id

	leads, enriched, scrapeErrs, err := j.collect(ctx, u)
	job.LeadsFound = len(leads)
	job.LeadsEnriched = enriched

	switch {
	case err != nil:
		job.Status = domain.JobFailed
		job.ErrorMessage = err.Error()
	case len(leads) == 0 && len(scrapeErrs) > 0:
		job.Status = domain.JobFailed
		job.ErrorMessage = strings.Join(scrapeErrs, "; ")
	default:
		res, err := j.Store.BulkInsert(ctx, leads)
		if err != nil {
			job.Status = domain.JobFailed
			job.ErrorMessage = err.Error()
			if ferr := j.Store.FinishJob(ctx, job); ferr != nil {
				log.Printf("[scrape] warn: finish job=%d: %v", job.ID, ferr)
			}
			return job, fmt.Errorf("insert leads: %w", err)
		}
		job.Status = domain.JobCompleted
		job.LeadsNew = res.Inserted
		job.LeadsDuplicate = res.Duplicates
		if len(scrapeErrs) > 0 {
			job.ErrorMessage = strings.Join(scrapeErrs, "; ")
		}
	}

	if err := j.Store.FinishJob(ctx, job); err != nil {
		return job, fmt.Errorf("finish job %d: %w", job.ID, err)
	}

	if job.Status == domain.JobCompleted {
		if err := j.Store.TouchSource(ctx, u.src.ID, job.LeadsNew, time.Now()); err != nil {
			return job, fmt.Errorf("touch source %d: %w", u.src.ID, err)
		}
		log.Printf("[scrape] unit done source=%d country=%s city=%s query=%q found=%d new=%d dup=%d enriched=%d",
			u.src.ID, u.country, u.city, u.query, job.LeadsFound, job.LeadsNew, job.LeadsDuplicate, job.LeadsEnriched)
	} else {
		log.Printf("[scrape] warn: unit failed source=%d country=%s city=%s query=%q err=%s",
			u.src.ID, u.country, u.city, u.query, job.ErrorMessage)
	}
	publish(j.Hub, events.ScrapeUnit, job)
	return job, nil
}

// collect scrapes one unit and turns its cards into leads. A panic
// anywhere in the unit comes back as err.
func (j *ScrapeJob) collect(ctx context.Context, u unit) (leads []domain.Lead, enriched int, scrapeErrs []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if j.UnitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.UnitTimeout)
		defer cancel()
	}

	s, err := j.Registry.New(u.src, u.settings)
	if err != nil {
		return nil, 0, nil, err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			log.Printf("[scrape] warn: close scraper source=%d: %v", u.src.ID, cerr)
		}
	}()

	res := s.Scrape(ctx, u.query, u.city, u.country)
	scrapeErrs = res.Errors

	leads = make([]domain.Lead, 0, len(res.Leads))
	for _, raw := range res.Leads {
		l := j.toLead(raw, u)
		if j.Enricher != nil && l.Website != "" && ctx.Err() == nil {
			if fillContacts(&l, j.Enricher.Extract(ctx, l.Website)) {
				enriched++
			}
		}
		leads = append(leads, l)
	}
	if err := ctx.Err(); err != nil && len(leads) == 0 {
		scrapeErrs = append(scrapeErrs, err.Error())
	}
	return leads, enriched, scrapeErrs, nil
}

func (j *ScrapeJob) toLead(raw domain.RawLead, u unit) domain.Lead {
	l := domain.Lead{
		Name:        raw.Name,
		CompanyName: raw.Name,
		Phone:       raw.Phone,
		Website:     raw.Website,
		Address:     raw.Address,
		Industry:    raw.Industry,
		City:        u.city,
		Country:     u.country,
		Rating:      raw.Rating,
		Tags:        []string{u.query},
		SourceID:    u.src.ID,
		SourceURL:   raw.DetailURL,
		Scraped:     true,
		Status:      domain.LeadNew,
	}
	if l.Industry == "" {
		// the card matched this search, so the query names its trade
		l.Industry = u.query
	}
	m := j.Scorer.Categorize(l.Name, l.Description, l.Industry)
	if m.Service == "" {
		l.Service = u.service
		l.RelevanceScore = 0
	} else {
		l.Service = m.Service
		l.RelevanceScore = m.Score
	}
	return l
}

// fillContacts copies extracted details into empty lead fields and
// reports whether anything was filled.
func fillContacts(l *domain.Lead, r contact.Result) bool {
	filled := false
	set := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			filled = true
		}
	}
	if len(r.Emails) > 0 {
		set(&l.Email, r.Emails[0])
	}
	if len(r.Phones) > 0 {
		set(&l.Phone, r.Phones[0])
	}
	set(&l.LinkedInURL, r.Social.LinkedIn)
	set(&l.FacebookURL, r.Social.Facebook)
	set(&l.InstagramURL, r.Social.Instagram)
	return filled
}
