package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadAppliesDefaults(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.yml", "app:\n  port: 9000\nscrape:\n  max_leads_per_search: 20\n")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.App.Port)
	}
	if cfg.Scrape.MaxLeadsPerSearch != 20 {
		t.Errorf("max leads = %d, want 20", cfg.Scrape.MaxLeadsPerSearch)
	}
	if cfg.Store.Driver != "sqlite" || cfg.Store.DSN == "" {
		t.Errorf("store defaults not applied: %+v", cfg.Store)
	}
	if cfg.Scrape.QueryStrategy != "random" {
		t.Errorf("query strategy = %q", cfg.Scrape.QueryStrategy)
	}
	if len(cfg.Categories) == 0 {
		t.Error("expected built-in categories")
	}
	if len(cfg.Contact.Paths) == 0 || cfg.Contact.Paths[0] != "/contact" {
		t.Errorf("contact paths = %v", cfg.Contact.Paths)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	p := writeFile(t, t.TempDir(), "config.yml", "app: [unterminated")
	if _, err := Load(p); err == nil {
		t.Fatal("expected error")
	}
}

func TestNormalizeAndValidate(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	cfg.Store.Driver = " SQLite "
	cfg.Scrape.Cities = map[string][]string{"kz": {" Almaty ", "almaty", ""}}
	cfg.Campaign.FromEmail = "sales@agency.kz"

	out, res := NormalizeAndValidate(cfg)
	if !res.OK() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if out.Store.Driver != "sqlite" {
		t.Errorf("driver = %q", out.Store.Driver)
	}
	got := out.Scrape.Cities["KZ"]
	if len(got) != 1 || got[0] != "Almaty" {
		t.Errorf("cities = %v", out.Scrape.Cities)
	}
}

func TestNormalizeAndValidateErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"driver", func(c *Config) { c.Store.Driver = "postgres" }, "store.driver"},
		{"strategy", func(c *Config) { c.Scrape.QueryStrategy = "sequential" }, "scrape.query_strategy"},
		{"provider", func(c *Config) { c.Delivery.Provider = "carrier-pigeon" }, "delivery.provider"},
		{"smtp host", func(c *Config) { c.Delivery.Provider = "smtp" }, "delivery.smtp_host"},
		{"relevance", func(c *Config) { c.Campaign.MinRelevance = 101 }, "campaign.min_relevance"},
		{"rule service", func(c *Config) { c.Categories = []Rule{{Keywords: []string{"x"}}} }, "categories[0].service"},
		{"replies host", func(c *Config) { c.Replies.Enabled = true }, "replies.imap_host"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var cfg Config
			ApplyDefaults(&cfg)
			tc.mutate(&cfg)
			_, res := NormalizeAndValidate(cfg)
			if res.OK() {
				t.Fatal("expected validation error")
			}
			if err := res.Err(); err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	env := map[string]string{
		"LEADGEN_DB_DSN":            "user:pw@tcp(db:3306)/leads",
		"LEADGEN_DB_DRIVER":         "mysql",
		"LEADGEN_DAILY_EMAIL_LIMIT": "7",
		"LEADGEN_MIN_RELEVANCE":     "oops",
		"LEADGEN_LLM_API_KEY":       "sk-test",
	}
	ApplyEnv(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	if cfg.Store.Driver != "mysql" || cfg.Store.DSN != env["LEADGEN_DB_DSN"] {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Campaign.DailyLimit != 7 {
		t.Errorf("daily limit = %d", cfg.Campaign.DailyLimit)
	}
	if cfg.Campaign.MinRelevance != 0 {
		t.Errorf("bad number should be ignored, got %d", cfg.Campaign.MinRelevance)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("llm key = %q", cfg.LLM.APIKey)
	}
}

func TestLoadDotEnvSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, ".env", "LEADGEN_TEST_DOTENV=from-file\n")
	t.Setenv("LEADGEN_TEST_DOTENV", "")
	os.Unsetenv("LEADGEN_TEST_DOTENV")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), p); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("LEADGEN_TEST_DOTENV"); got != "from-file" {
		t.Fatalf("env = %q", got)
	}
}

func TestEnsureUserConfig(t *testing.T) {
	src := writeFile(t, t.TempDir(), "default.yml", "app:\n  port: 1234\n")
	dataDir := filepath.Join(t.TempDir(), "nested")

	p, err := EnsureUserConfig(dataDir, src)
	if err != nil {
		t.Fatalf("EnsureUserConfig: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil || !strings.Contains(string(b), "1234") {
		t.Fatalf("copy failed: %q %v", b, err)
	}

	// An existing user file is never overwritten.
	if err := os.WriteFile(p, []byte("app:\n  port: 5678\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := EnsureUserConfig(dataDir, src); err != nil {
		t.Fatal(err)
	}
	b, _ = os.ReadFile(p)
	if !strings.Contains(string(b), "5678") {
		t.Fatalf("user config overwritten: %q", b)
	}
}
