package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE files into the process environment.
// Missing files are skipped; variables already set win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		log.Printf("[config] loaded env file %s", f)
	}
	return nil
}

// ApplyEnv overlays LEADGEN_* variables onto cfg. Unparseable numbers
// are logged and ignored.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			log.Printf("[config] warn: %s=%q is not a number", key, v)
			return
		}
		*dst = n
	}

	str("LEADGEN_DB_DRIVER", &cfg.Store.Driver)
	str("LEADGEN_DB_DSN", &cfg.Store.DSN)
	str("LEADGEN_SENDER_EMAIL", &cfg.Campaign.FromEmail)
	str("LEADGEN_SENDER_NAME", &cfg.Campaign.FromName)
	str("LEADGEN_LLM_API_KEY", &cfg.LLM.APIKey)
	str("LEADGEN_DELIVERY_API_KEY", &cfg.Delivery.APIKey)
	str("LEADGEN_SMTP_PASSWORD", &cfg.Delivery.SMTPPassword)
	str("LEADGEN_IMAP_PASSWORD", &cfg.Replies.Password)
	num("LEADGEN_DAILY_EMAIL_LIMIT", &cfg.Campaign.DailyLimit)
	num("LEADGEN_MIN_RELEVANCE", &cfg.Campaign.MinRelevance)
	num("LEADGEN_MAX_LEADS_PER_SEARCH", &cfg.Scrape.MaxLeadsPerSearch)
	num("LEADGEN_SCRAPE_DELAY_MS", &cfg.Scrape.DelayMs)
	num("LEADGEN_PORT", &cfg.App.Port)
}
