package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	"leadgen-engine/internal/config"
	"leadgen-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setSecretReq struct {
	Value string `json:"value"`
}

// Set stores a secret in the OS keychain: POST /api/secrets/{llm|delivery|smtp|imap}.
// It takes effect on the next start.
func (h SecretsHandler) Set(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/secrets/")

	var req setSecretReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if err := secrets.Set(cfg, name, req.Value); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, secrets.ErrUnknownSecret) {
			status = http.StatusNotFound
		}
		WriteError(w, r, status, "secret_not_stored", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
