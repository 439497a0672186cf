package scrape

import (
	"math/rand"
	"sync"
	"time"
)

// QueryPicker chooses the one query a service is searched with in a run.
type QueryPicker interface {
	Pick(service string, queries []string) string
}

const (
	StrategyRandom     = "random"
	StrategyRoundRobin = "round_robin"
)

func NewPicker(strategy string) QueryPicker {
	if strategy == StrategyRoundRobin {
		return NewRoundRobinPicker()
	}
	return NewRandomPicker(time.Now().UnixNano())
}

type RandomPicker struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomPicker(seed int64) *RandomPicker {
	return &RandomPicker{rnd: rand.New(rand.NewSource(seed))}
}

func (p *RandomPicker) Pick(_ string, queries []string) string {
	if len(queries) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return queries[p.rnd.Intn(len(queries))]
}

// RoundRobinPicker walks each service's queries in order across runs of
// the same process.
type RoundRobinPicker struct {
	mu   sync.Mutex
	next map[string]int
}

func NewRoundRobinPicker() *RoundRobinPicker {
	return &RoundRobinPicker{next: map[string]int{}}
}

func (p *RoundRobinPicker) Pick(service string, queries []string) string {
	if len(queries) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.next[service] % len(queries)
	p.next[service] = i + 1
	return queries[i]
}
