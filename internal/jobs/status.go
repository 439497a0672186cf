// Package jobs holds the periodic sweeps: scrape, campaign, rescore and
// reply tracking.
package jobs

import (
	"errors"
	"sync"
	"time"

	"leadgen-engine/internal/events"
)

// ErrAlreadyRunning is returned when a sweep is asked to start while the
// previous run of the same job is still going.
var ErrAlreadyRunning = errors.New("job already running")

type Status struct {
	LastRunAt string `json:"last_run_at"`
	LastOkAt  string `json:"last_ok_at"`
	LastError string `json:"last_error"`
	LastCount int    `json:"last_count"`
	Running   bool   `json:"running"`
}

// Publisher receives job events; *events.Hub satisfies it.
type Publisher interface {
	Publish(evt string)
}

// guard keeps one run of a job at a time inside the process and records
// the outcome of the last one.
type guard struct {
	mu     sync.Mutex
	status Status
}

func (g *guard) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *guard) begin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status.Running {
		return false
	}
	g.status.Running = true
	g.status.LastRunAt = time.Now().Format(time.RFC3339)
	return true
}

func (g *guard) end(count int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status.Running = false
	g.status.LastCount = count
	if err != nil {
		g.status.LastError = err.Error()
		return
	}
	g.status.LastError = ""
	g.status.LastOkAt = time.Now().Format(time.RFC3339)
}

func publish(p Publisher, typ string, data any) {
	if p == nil {
		return
	}
	p.Publish(events.MakeEvent("", typ, 1, data))
}
