package config

import (
	"errors"
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err folds the collected errors into one error, or nil.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return errors.New("config validation failed:\n- " + strings.Join(v.Errors, "\n- "))
}

// NormalizeAndValidate returns a normalized copy of cfg along with any problems found.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Store.Driver = strings.ToLower(strings.TrimSpace(out.Store.Driver))
	out.Scrape.QueryStrategy = strings.ToLower(strings.TrimSpace(out.Scrape.QueryStrategy))
	out.Delivery.Provider = strings.ToLower(strings.TrimSpace(out.Delivery.Provider))
	out.Contact.Paths = trimList(out.Contact.Paths)

	cities := make(map[string][]string, len(out.Scrape.Cities))
	for country, list := range out.Scrape.Cities {
		cc := strings.ToUpper(strings.TrimSpace(country))
		if cc == "" {
			continue
		}
		cities[cc] = trimList(list)
	}
	out.Scrape.Cities = cities

	rules := make([]Rule, 0, len(out.Categories))
	for _, r := range out.Categories {
		r.Service = strings.TrimSpace(r.Service)
		r.Keywords = trimList(r.Keywords)
		r.Industries = trimList(r.Industries)
		r.Queries = trimList(r.Queries)
		rules = append(rules, r)
	}
	out.Categories = rules

	// ---- Validation rules ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	switch out.Store.Driver {
	case "sqlite", "mysql":
	default:
		res.addErr("store.driver must be sqlite or mysql, got %q", out.Store.Driver)
	}
	if strings.TrimSpace(out.Store.DSN) == "" {
		res.addErr("store.dsn is required")
	}

	switch out.Scrape.QueryStrategy {
	case "random", "round_robin":
	default:
		res.addErr("scrape.query_strategy must be random or round_robin, got %q", out.Scrape.QueryStrategy)
	}
	if out.Scrape.IntervalMinutes <= 0 {
		res.addErr("scrape.interval_minutes must be > 0")
	}
	if out.Scrape.MaxLeadsPerSearch <= 0 {
		res.addErr("scrape.max_leads_per_search must be > 0")
	} else if out.Scrape.MaxLeadsPerSearch > 500 {
		res.addWarn("scrape.max_leads_per_search is very high (%d); the directory may block the session.", out.Scrape.MaxLeadsPerSearch)
	}
	if out.Scrape.DelayMs < 500 {
		res.addWarn("scrape.delay_ms is very low (%d) and may cause rate limits.", out.Scrape.DelayMs)
	}
	for cc, list := range out.Scrape.Cities {
		if len(list) == 0 {
			res.addWarn("scrape.cities[%s] is empty; searches for that country use no city.", cc)
		}
	}

	if len(out.Categories) == 0 {
		res.addErr("categories must have at least 1 rule")
	}
	for i, r := range out.Categories {
		if r.Service == "" {
			res.addErr("categories[%d].service is required", i)
		}
		if len(r.Keywords) == 0 {
			res.addErr("categories[%d].keywords must have at least 1 term", i)
		}
		if len(r.Queries) == 0 {
			res.addWarn("categories[%d] (%s) has no queries; the scrape job never searches for it.", i, r.Service)
		}
		if r.Boost < 0 {
			res.addErr("categories[%d].boost must be >= 0", i)
		}
	}

	if out.Campaign.DailyLimit < 0 {
		res.addErr("campaign.daily_limit must be >= 0")
	}
	if out.Campaign.MinRelevance < 0 || out.Campaign.MinRelevance > 100 {
		res.addErr("campaign.min_relevance must be 0..100")
	}
	if strings.TrimSpace(out.Campaign.FromEmail) == "" {
		res.addWarn("campaign.from_email is empty; the campaign job cannot send.")
	}

	switch out.Delivery.Provider {
	case "http":
		if strings.TrimSpace(out.Delivery.APIURL) == "" {
			res.addErr("delivery.api_url is required when delivery.provider=http")
		}
	case "smtp":
		if strings.TrimSpace(out.Delivery.SMTPHost) == "" {
			res.addErr("delivery.smtp_host is required when delivery.provider=smtp")
		}
	default:
		res.addErr("delivery.provider must be http or smtp, got %q", out.Delivery.Provider)
	}

	if out.LLM.Enabled && strings.TrimSpace(out.LLM.Model) == "" {
		res.addErr("llm.model is required when llm.enabled=true")
	}

	// password not required here; it lives in the keychain or env
	if out.Replies.Enabled {
		if strings.TrimSpace(out.Replies.IMAPHost) == "" {
			res.addErr("replies.imap_host is required when replies.enabled=true")
		}
		if strings.TrimSpace(out.Replies.Username) == "" {
			res.addErr("replies.username is required when replies.enabled=true")
		}
	}

	return out, res
}
