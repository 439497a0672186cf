package httpapi

import (
	"net/http"
	"sync/atomic"

	"leadgen-engine/internal/config"
)

type ConfigHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

const redacted = "********"

// Get returns the running config with secrets masked.
func (h ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg := h.CfgVal.Load().(config.Config)
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&cfg.LLM.APIKey)
	mask(&cfg.Delivery.APIKey)
	mask(&cfg.Delivery.SMTPPassword)
	mask(&cfg.Replies.Password)
	WriteJSON(w, http.StatusOK, cfg)
}

func (h ConfigHandler) Validate(w http.ResponseWriter, r *http.Request) {
	_, vr := config.NormalizeAndValidate(h.CfgVal.Load().(config.Config))
	status := http.StatusOK
	if !vr.OK() {
		status = http.StatusUnprocessableEntity
	}
	WriteJSON(w, status, vr)
}
