package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"leadgen-engine/internal/config"
	"leadgen-engine/internal/httpapi"
	"leadgen-engine/internal/jobs"
	"leadgen-engine/internal/scheduler"
	"leadgen-engine/internal/secrets"
)

func main() {
	var (
		dataDir  = flag.String("data-dir", envOr("LEADGEN_DATA_DIR", "."), "directory for config.yml, the sqlite db and lock files")
		cfgPath  = flag.String("config", "", "config file (default: <data-dir>/config.yml, seeded from config/config.yml)")
		once     = flag.String("once", "", "run one job and exit: scrape | campaign | rescore | replies")
		noServer = flag.Bool("no-server", false, "run the schedules without the HTTP API")
	)
	flag.Parse()

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Fatal(err)
	}
	if err := config.LoadDotEnv(filepath.Join(*dataDir, ".env"), ".env"); err != nil {
		log.Printf("[engine] warn: %v", err)
	}

	path := *cfgPath
	if path == "" {
		p, err := config.EnsureUserConfig(*dataDir, filepath.Join("config", "config.yml"))
		if err != nil {
			log.Fatalf("config bootstrap failed: %v", err)
		}
		path = p
	}
	cfg, err := loadConfig(path)
	if err != nil {
		log.Fatalf("config load failed (%s): %v", path, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, *dataDir)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	if *once != "" {
		if err := a.runOnce(ctx, *once); err != nil {
			log.Fatalf("[%s] %v", *once, err)
		}
		return
	}

	if err := serve(ctx, a, cfg, !*noServer); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the YAML file, overlays the environment and keychain,
// and validates the result.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	config.ApplyEnv(&cfg, nil)
	secrets.Resolve(&cfg)

	cfg, vr := config.NormalizeAndValidate(cfg)
	for _, w := range vr.Warnings {
		log.Printf("[config] warn: %s", w)
	}
	if err := vr.Err(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func serve(ctx context.Context, a *app, cfg config.Config, withHTTP bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scheduler.Every(gctx, minutes(cfg.Scrape.IntervalMinutes), "scrape", func(ctx context.Context) error {
			_, err := a.scrape.RunOnce(ctx)
			return ignoreBusy(err)
		})
		return nil
	})
	g.Go(func() error {
		// let the first scrape land before mailing
		select {
		case <-gctx.Done():
			return nil
		case <-time.After(time.Minute):
		}
		scheduler.Every(gctx, minutes(cfg.Campaign.IntervalMinutes), "campaign", func(ctx context.Context) error {
			_, err := a.campaign.RunOnce(ctx)
			return ignoreBusy(err)
		})
		return nil
	})
	if a.replies != nil {
		g.Go(func() error {
			scheduler.Every(gctx, minutes(cfg.Replies.IntervalMinutes), "replies", func(ctx context.Context) error {
				_, err := a.replies.RunOnce(ctx)
				return ignoreBusy(err)
			})
			return nil
		})
	}

	if withHTTP {
		var cfgVal atomic.Value
		cfgVal.Store(cfg)

		token, err := httpapi.RandomToken(16)
		if err != nil {
			return err
		}

		mux := httpapi.NewMux(a.deps(gctx, &cfgVal))
		srv := &http.Server{
			Handler:           httpapi.Chain(mux, httpapi.RequestID, httpapi.AccessLog, httpapi.Recover, httpapi.Cors),
			ReadHeaderTimeout: 5 * time.Second,
		}
		mux.HandleFunc("/shutdown", httpapi.ShutdownHandler(token, srv.Shutdown))

		addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		log.Printf("[engine] listening on http://%s", addr)
		// the token goes to stdout for the process that launched us
		fmt.Printf("LEADGEN_SHUTDOWN_TOKEN=%s\n", token)

		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
		g.Go(func() error {
			err := srv.Serve(ln)
			// a /shutdown call stops the schedules too
			cancel()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func ignoreBusy(err error) error {
	if errors.Is(err, jobs.ErrAlreadyRunning) {
		return nil
	}
	return err
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
