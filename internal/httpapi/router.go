package httpapi

import (
	"net/http"
	"time"
)

// NewMux returns the raw mux so main() can still attach /shutdown (needs srv+token).
func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: func(w http.ResponseWriter, r *http.Request) {
			WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "time": time.Now().Format(time.RFC3339)})
		},
	}))

	// Jobs
	jh := JobsHandler{Deps: d}
	mux.HandleFunc("/jobs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: jh.List,
	}))
	for path, t := range map[string]Trigger{
		"scrape":   d.Scrape,
		"campaign": d.Campaign,
		"rescore":  d.Rescore,
		"replies":  d.Replies,
	} {
		mux.HandleFunc("/"+path+"/status", methodMux(map[string]http.HandlerFunc{
			http.MethodGet: StatusOf(t),
		}))
		mux.HandleFunc("/"+path+"/run", methodMux(map[string]http.HandlerFunc{
			http.MethodPost: RunOf(path, d, t),
		}))
	}

	// Leads and campaigns
	lh := LeadsHandler{Store: d.Store}
	mux.HandleFunc("/leads", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.List,
	}))
	mux.HandleFunc("/leads/stats", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.Stats,
	}))
	mux.HandleFunc("/campaigns", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.Campaigns,
	}))
	mux.HandleFunc("/db/checkpoint", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: LocalOnly(lh.Checkpoint),
	}))

	// Config (read-only; edit config.yml and restart)
	ch := ConfigHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sh := SecretsHandler{CfgVal: d.CfgVal}
	mux.HandleFunc("/api/secrets/", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: LocalOnly(sh.Set),
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	return mux
}
