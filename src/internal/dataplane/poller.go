package dataplane

import (
	"context"
	"sync"
	"time"

	"github.com/redhat-et/patu/src/internal/log"
)

// Snapshot is the result of the last map walk.
type Snapshot struct {
	Entries     int          `json:"entries"`
	Connections []Connection `json:"connections"`
	PolledAt    time.Time    `json:"polled_at"`
	Error       string       `json:"error,omitempty"`
}

// Poller periodically walks the redirect map and publishes its size.
type Poller struct {
	m          KeyIterator
	metrics    *Metrics
	limit      int
	maxEntries uint32
	now        func() time.Time

	mu   sync.RWMutex
	last Snapshot
}

// NewPoller creates a poller over m. limit caps the connections kept in a
// snapshot, the entry count covers the whole map. maxEntries bounds a walk.
func NewPoller(m KeyIterator, metrics *Metrics, limit int, maxEntries uint32) *Poller {
	return &Poller{m: m, metrics: metrics, limit: limit, maxEntries: maxEntries, now: time.Now}
}

// Poll walks the map once and stores the result.
func (p *Poller) Poll() Snapshot {
	start := p.now()
	keys, err := ListKeys(p.m, 0, p.maxEntries)

	snap := Snapshot{
		Entries:     len(keys),
		Connections: make([]Connection, 0, min(len(keys), p.connectionLimit())),
		PolledAt:    start,
	}
	for _, k := range keys {
		if len(snap.Connections) == p.connectionLimit() {
			break
		}
		snap.Connections = append(snap.Connections, ConnectionOf(k))
	}

	if p.metrics != nil {
		p.metrics.pollDuration.Observe(p.now().Sub(start).Seconds())
		if err != nil {
			p.metrics.scrapeErrorsTotal.Inc()
		} else {
			p.metrics.mapEntries.Set(float64(len(keys)))
		}
	}
	if err != nil {
		log.Warnf("Failed to read %s: %v", MapName, err)
		snap.Error = err.Error()
	}

	p.mu.Lock()
	p.last = snap
	p.mu.Unlock()
	return snap
}

func (p *Poller) connectionLimit() int {
	if p.limit <= 0 {
		return int(^uint(0) >> 1)
	}
	return p.limit
}

// Snapshot returns the most recent poll result.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Run polls immediately and then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	p.Poll()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Debugf("Polling %s every %s", MapName, interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll()
		}
	}
}
