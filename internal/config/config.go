// engine/internal/config/config.go
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Rule maps one target service to the terms that indicate it.
type Rule struct {
	Service    string   `yaml:"service"`
	Keywords   []string `yaml:"keywords"`
	Industries []string `yaml:"industries"`
	Boost      int      `yaml:"boost"`
	Queries    []string `yaml:"queries"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Store struct {
		Driver      string `yaml:"driver"` // sqlite | mysql
		DSN         string `yaml:"dsn"`
		StrictDedup bool   `yaml:"strict_dedup"`
	} `yaml:"store"`

	Browser struct {
		Headless          bool   `yaml:"headless"`
		ExecPath          string `yaml:"exec_path"`
		UserAgent         string `yaml:"user_agent"`
		ViewportWidth     int    `yaml:"viewport_width"`
		ViewportHeight    int    `yaml:"viewport_height"`
		NavTimeoutSeconds int    `yaml:"nav_timeout_seconds"`
	} `yaml:"browser"`

	Scrape struct {
		IntervalMinutes    int                 `yaml:"interval_minutes"`
		UnitTimeoutSeconds int                 `yaml:"unit_timeout_seconds"`
		MaxLeadsPerSearch  int                 `yaml:"max_leads_per_search"`
		ScrollIterations   int                 `yaml:"scroll_iterations"`
		DelayMs            int                 `yaml:"delay_ms"`
		QueryStrategy      string              `yaml:"query_strategy"` // random | round_robin
		Cities             map[string][]string `yaml:"cities"`
		LockFile           string              `yaml:"lock_file"`
	} `yaml:"scrape"`

	Contact struct {
		Enabled        bool     `yaml:"enabled"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		PauseMs        int      `yaml:"pause_ms"`
		VerifyMX       bool     `yaml:"verify_mx"`
		Paths          []string `yaml:"paths"`
	} `yaml:"contact"`

	Categories []Rule `yaml:"categories"`

	Campaign struct {
		IntervalMinutes int    `yaml:"interval_minutes"`
		DailyLimit      int    `yaml:"daily_limit"`
		MinRelevance    int    `yaml:"min_relevance"`
		SendPauseMs     int    `yaml:"send_pause_ms"`
		UnsubscribeURL  string `yaml:"unsubscribe_url"`
		FromName        string `yaml:"from_name"`
		FromEmail       string `yaml:"from_email"`
	} `yaml:"campaign"`

	LLM struct {
		Enabled          bool    `yaml:"enabled"`
		BaseURL          string  `yaml:"base_url"`
		Model            string  `yaml:"model"`
		APIKey           string  `yaml:"-"`
		MaxTokens        int     `yaml:"max_tokens"`
		Temperature      float64 `yaml:"temperature"`
		MinRewriteLength int     `yaml:"min_rewrite_length"`
	} `yaml:"llm"`

	Delivery struct {
		Provider     string `yaml:"provider"` // http | smtp
		APIURL       string `yaml:"api_url"`
		APIKey       string `yaml:"-"`
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_username"`
		SMTPPassword string `yaml:"-"`
	} `yaml:"delivery"`

	Replies struct {
		Enabled         bool   `yaml:"enabled"`
		IntervalMinutes int    `yaml:"interval_minutes"`
		IMAPHost        string `yaml:"imap_host"`
		IMAPPort        int    `yaml:"imap_port"`
		Username        string `yaml:"username"`
		Mailbox         string `yaml:"mailbox"`
		Password        string `yaml:"-"`
	} `yaml:"replies"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	ApplyDefaults(&cfg)
	return cfg, nil
}

// ApplyDefaults fills zero values. It is safe to call more than once.
func ApplyDefaults(cfg *Config) {
	if cfg.App.Port == 0 {
		cfg.App.Port = 38471
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.DSN == "" && cfg.Store.Driver == "sqlite" {
		cfg.Store.DSN = "leadgen.db"
	}

	if cfg.Browser.UserAgent == "" {
		cfg.Browser.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	}
	if cfg.Browser.ViewportWidth == 0 {
		cfg.Browser.ViewportWidth = 1366
	}
	if cfg.Browser.ViewportHeight == 0 {
		cfg.Browser.ViewportHeight = 900
	}
	if cfg.Browser.NavTimeoutSeconds == 0 {
		cfg.Browser.NavTimeoutSeconds = 30
	}

	if cfg.Scrape.IntervalMinutes == 0 {
		cfg.Scrape.IntervalMinutes = 360
	}
	if cfg.Scrape.UnitTimeoutSeconds == 0 {
		cfg.Scrape.UnitTimeoutSeconds = 300
	}
	if cfg.Scrape.MaxLeadsPerSearch == 0 {
		cfg.Scrape.MaxLeadsPerSearch = 50
	}
	if cfg.Scrape.ScrollIterations == 0 {
		cfg.Scrape.ScrollIterations = 5
	}
	if cfg.Scrape.DelayMs == 0 {
		cfg.Scrape.DelayMs = 1500
	}
	if cfg.Scrape.QueryStrategy == "" {
		cfg.Scrape.QueryStrategy = "random"
	}
	if cfg.Scrape.LockFile == "" {
		cfg.Scrape.LockFile = "scrape.lock"
	}
	if len(cfg.Scrape.Cities) == 0 {
		cfg.Scrape.Cities = map[string][]string{
			"KZ": {"Almaty", "Astana", "Shymkent"},
		}
	}

	if cfg.Contact.TimeoutSeconds == 0 {
		cfg.Contact.TimeoutSeconds = 15
	}
	if cfg.Contact.PauseMs == 0 {
		cfg.Contact.PauseMs = 1000
	}
	if len(cfg.Contact.Paths) == 0 {
		cfg.Contact.Paths = DefaultContactPaths()
	}

	if len(cfg.Categories) == 0 {
		cfg.Categories = DefaultRules()
	}

	if cfg.Campaign.IntervalMinutes == 0 {
		cfg.Campaign.IntervalMinutes = 60
	}
	if cfg.Campaign.DailyLimit == 0 {
		cfg.Campaign.DailyLimit = 50
	}
	if cfg.Campaign.SendPauseMs == 0 {
		cfg.Campaign.SendPauseMs = 5000
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 600
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.LLM.MinRewriteLength == 0 {
		cfg.LLM.MinRewriteLength = 50
	}

	if cfg.Delivery.Provider == "" {
		cfg.Delivery.Provider = "http"
	}
	if cfg.Delivery.APIURL == "" {
		cfg.Delivery.APIURL = "https://api.resend.com"
	}
	if cfg.Delivery.SMTPPort == 0 {
		cfg.Delivery.SMTPPort = 587
	}

	if cfg.Replies.IntervalMinutes == 0 {
		cfg.Replies.IntervalMinutes = 30
	}
	if cfg.Replies.IMAPPort == 0 {
		cfg.Replies.IMAPPort = 993
	}
	if cfg.Replies.Mailbox == "" {
		cfg.Replies.Mailbox = "INBOX"
	}
}
