// Package scrape defines the source-scraper contract and the registry
// the scrape job builds scrapers from.
package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/scrape/util"
)

var ErrUnsupportedSource = errors.New("scrape: unsupported source type")

// Result is what one search yields. Errors are collected, never returned:
// a scraper hands back whatever it found before a failure.
type Result struct {
	Leads   []domain.RawLead
	Errors  []string
	HasMore bool
}

// Scraper runs searches against one site. Implementations own a lazily
// opened browser page which Close releases.
type Scraper interface {
	Scrape(ctx context.Context, query, city, country string) Result
	Close() error
}

// Settings are the knobs shared by every scraper.
type Settings struct {
	MaxResults       int
	ScrollIterations int
	ScrollDelay      time.Duration
	NavTimeout       time.Duration
	UserAgent        string
	ViewportWidth    int
	ViewportHeight   int
	Limiter          *util.HostLimiter
}

// SourceConfig is the optional JSON stored on a lead source.
type SourceConfig struct {
	Cities           map[string][]string `json:"cities"`
	MaxResults       int                 `json:"max_results"`
	ScrollIterations int                 `json:"scroll_iterations"`
}

func ParseSourceConfig(raw string) (SourceConfig, error) {
	var sc SourceConfig
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return sc, nil
	}
	if err := json.Unmarshal([]byte(raw), &sc); err != nil {
		return sc, fmt.Errorf("parse scrape_config: %w", err)
	}
	return sc, nil
}

// Apply returns s with the source's overrides.
func (s Settings) Apply(sc SourceConfig) Settings {
	if sc.MaxResults > 0 {
		s.MaxResults = sc.MaxResults
	}
	if sc.ScrollIterations > 0 {
		s.ScrollIterations = sc.ScrollIterations
	}
	return s
}

type Factory func(src domain.LeadSource, s Settings) (Scraper, error)

// Registry maps a source type to the factory that builds its scraper.
type Registry struct {
	mu sync.RWMutex
	m  map[domain.SourceType]Factory
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[domain.SourceType]Factory)}
}

func (r *Registry) Register(t domain.SourceType, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[t] = f
}

func (r *Registry) Supports(t domain.SourceType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.m[t]
	return ok
}

func (r *Registry) Types() []domain.SourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SourceType, 0, len(r.m))
	for t := range r.m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) New(src domain.LeadSource, s Settings) (Scraper, error) {
	r.mu.RLock()
	f, ok := r.m[src.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, src.Type)
	}
	return f(src, s)
}
