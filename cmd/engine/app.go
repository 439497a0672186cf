package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync/atomic"
	"time"

	"leadgen-engine/internal/browser"
	"leadgen-engine/internal/config"
	"leadgen-engine/internal/contact"
	"leadgen-engine/internal/delivery"
	"leadgen-engine/internal/events"
	"leadgen-engine/internal/httpapi"
	"leadgen-engine/internal/jobs"
	"leadgen-engine/internal/llm"
	"leadgen-engine/internal/personalize"
	"leadgen-engine/internal/rank"
	"leadgen-engine/internal/replies"
	"leadgen-engine/internal/scrape"
	"leadgen-engine/internal/scrape/twogis"
	"leadgen-engine/internal/scrape/util"
	"leadgen-engine/internal/store"
)

// app is the wired engine: one store, one lazily started browser and the
// four jobs.
type app struct {
	db      *store.DB
	browser *browser.Lazy
	hub     *events.Hub

	scrape   *jobs.ScrapeJob
	campaign *jobs.CampaignJob
	rescore  *jobs.RescoreJob
	replies  *jobs.ReplyJob // nil when reply tracking is off
}

func newApp(ctx context.Context, cfg config.Config, dataDir string) (*app, error) {
	db, err := store.Open(cfg.Store.Driver, storeDSN(cfg, dataDir), store.Options{
		StrictDedup:    cfg.Store.StrictDedup,
		RelevanceFloor: cfg.Campaign.MinRelevance,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &app{db: db, hub: events.NewHub()}
	a.browser = browser.NewLazy(browser.Options{
		Headless:  cfg.Browser.Headless,
		ExecPath:  cfg.Browser.ExecPath,
		UserAgent: cfg.Browser.UserAgent,
	})

	reg := scrape.NewRegistry()
	twogis.Register(reg, a.browser)

	scorer := rank.NewRuleScorer(cfg.Categories)
	a.scrape = &jobs.ScrapeJob{
		Store:    db,
		Registry: reg,
		Scorer:   scorer,
		Picker:   scrape.NewPicker(cfg.Scrape.QueryStrategy),
		Settings: scrape.Settings{
			MaxResults:       cfg.Scrape.MaxLeadsPerSearch,
			ScrollIterations: cfg.Scrape.ScrollIterations,
			ScrollDelay:      ms(cfg.Scrape.DelayMs),
			NavTimeout:       time.Duration(cfg.Browser.NavTimeoutSeconds) * time.Second,
			UserAgent:        cfg.Browser.UserAgent,
			ViewportWidth:    cfg.Browser.ViewportWidth,
			ViewportHeight:   cfg.Browser.ViewportHeight,
			Limiter:          util.NewHostPacer(ms(cfg.Scrape.DelayMs)),
		},
		Rules:       cfg.Categories,
		Cities:      cfg.Scrape.Cities,
		UnitTimeout: time.Duration(cfg.Scrape.UnitTimeoutSeconds) * time.Second,
		LockPath:    filepath.Join(dataDir, cfg.Scrape.LockFile),
		Hub:         a.hub,
	}
	if cfg.Contact.Enabled {
		opts := contact.Options{
			UserAgent: cfg.Browser.UserAgent,
			Timeout:   time.Duration(cfg.Contact.TimeoutSeconds) * time.Second,
			Paths:     cfg.Contact.Paths,
			Limiter:   util.NewHostPacer(ms(cfg.Contact.PauseMs)),
		}
		if cfg.Contact.VerifyMX {
			opts.MX = contact.NewDNSChecker()
		}
		a.scrape.Enricher = contact.New(opts)
	}

	a.rescore = &jobs.RescoreJob{Store: db, Scorer: scorer}

	var completer llm.Completer
	if cfg.LLM.Enabled && cfg.LLM.APIKey != "" {
		completer = llm.New(llm.Options{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model})
	} else if cfg.LLM.Enabled {
		log.Printf("[engine] warn: llm enabled but no api key; emails use plain templates")
	}

	sender, err := delivery.NewSender(cfg)
	if err != nil {
		log.Printf("[engine] warn: %v; campaign sends will fail until it is configured", err)
		sender = nil
	}

	a.campaign = &jobs.CampaignJob{
		Store: db,
		Personalizer: personalize.New(completer, personalize.Options{
			UnsubscribeURL:   cfg.Campaign.UnsubscribeURL,
			MaxTokens:        cfg.LLM.MaxTokens,
			Temperature:      cfg.LLM.Temperature,
			MinRewriteLength: cfg.LLM.MinRewriteLength,
		}),
		Delivery:   delivery.NewClient(db, sender, cfg.Campaign.FromName, cfg.Campaign.FromEmail),
		DailyLimit: cfg.Campaign.DailyLimit,
		SendPause:  ms(cfg.Campaign.SendPauseMs),
		Hub:        a.hub,
	}

	if cfg.Replies.Enabled {
		imapCfg := replies.IMAPConfig{
			Host:     cfg.Replies.IMAPHost,
			Port:     cfg.Replies.IMAPPort,
			Username: cfg.Replies.Username,
			Password: cfg.Replies.Password,
			Mailbox:  cfg.Replies.Mailbox,
		}
		tracker := replies.NewTracker(db, func(ctx context.Context) (replies.Mailbox, error) {
			return replies.DialIMAP(ctx, imapCfg)
		})
		a.replies = &jobs.ReplyJob{Tracker: tracker, Hub: a.hub}
	}

	return a, nil
}

func (a *app) Close() {
	if err := a.browser.Close(); err != nil {
		log.Printf("[engine] warn: close browser: %v", err)
	}
	if err := a.db.Close(); err != nil {
		log.Printf("[engine] warn: close store: %v", err)
	}
}

func (a *app) runOnce(ctx context.Context, name string) error {
	switch name {
	case "scrape":
		sum, err := a.scrape.RunOnce(ctx)
		log.Printf("[scrape] %+v", sum)
		return err
	case "campaign":
		sum, err := a.campaign.RunOnce(ctx)
		log.Printf("[campaign] %+v", sum)
		return err
	case "rescore":
		_, err := a.rescore.RunOnce(ctx)
		return err
	case "replies":
		if a.replies == nil {
			return errors.New("replies are disabled in config")
		}
		_, err := a.replies.RunOnce(ctx)
		return err
	default:
		return fmt.Errorf("unknown job %q", name)
	}
}

func (a *app) deps(ctx context.Context, cfgVal *atomic.Value) httpapi.Deps {
	d := httpapi.Deps{
		Store:   a.db,
		Hub:     a.hub,
		CfgVal:  cfgVal,
		BaseCtx: ctx,
		Scrape: httpapi.Trigger{
			Status: a.scrape.Status,
			Run:    func(ctx context.Context) error { _, err := a.scrape.RunOnce(ctx); return err },
		},
		Campaign: httpapi.Trigger{
			Status: a.campaign.Status,
			Run:    func(ctx context.Context) error { _, err := a.campaign.RunOnce(ctx); return err },
		},
		Rescore: httpapi.Trigger{
			Status: a.rescore.Status,
			Run:    func(ctx context.Context) error { _, err := a.rescore.RunOnce(ctx); return err },
		},
	}
	if a.replies != nil {
		d.Replies = httpapi.Trigger{
			Status: a.replies.Status,
			Run:    func(ctx context.Context) error { _, err := a.replies.RunOnce(ctx); return err },
		}
	}
	return d
}

// storeDSN places a relative sqlite file inside the data dir.
func storeDSN(cfg config.Config, dataDir string) string {
	if cfg.Store.Driver == store.DriverSQLite && !filepath.IsAbs(cfg.Store.DSN) {
		return filepath.Join(dataDir, cfg.Store.DSN)
	}
	return cfg.Store.DSN
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
