package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"leadgen-engine/internal/jobs"
)

type JobsHandler struct {
	Deps Deps
}

func (h JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 100)
	list, err := h.Deps.Store.ListJobs(r.Context(), r.URL.Query().Get("run"), limit)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, list)
}

// StatusOf reports a job's last run.
func StatusOf(t Trigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if t.Status == nil {
			WriteError(w, r, http.StatusNotFound, "disabled", "job is not configured")
			return
		}
		WriteJSON(w, http.StatusOK, t.Status())
	}
}

// RunOf starts a job in the background and answers right away.
func RunOf(name string, d Deps, t Trigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if t.Run == nil {
			WriteError(w, r, http.StatusNotFound, "disabled", name+" is not configured")
			return
		}
		if t.Status != nil && t.Status().Running {
			WriteJSON(w, http.StatusConflict, map[string]any{"ok": false, "msg": "already running"})
			return
		}

		ctx := d.BaseCtx
		if ctx == nil {
			ctx = r.Context()
		}
		go func() {
			if err := t.Run(ctx); err != nil && !errors.Is(err, jobs.ErrAlreadyRunning) {
				log.Printf("[%s] error: %v", name, err)
			}
		}()
		WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
	}
}

func intParam(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
