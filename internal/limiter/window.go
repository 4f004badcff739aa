// Package limiter implements the request and token quotas the simulator
// enforces, mirroring the throttling behavior of the upstream services.
package limiter

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// fixedWindow counts hits within aligned time windows.
// The window boundary is aligned to the epoch so that all deployments
// reset at the same instants, like the upstream quota accounting.
type fixedWindow struct {
	clock clock.Clock

	mu       sync.Mutex
	counters map[string]*windowCounter
}

type windowCounter struct {
	start time.Time
	used  int64
}

func newFixedWindow(clk clock.Clock) *fixedWindow {
	return &fixedWindow{
		clock:    clk,
		counters: make(map[string]*windowCounter),
	}
}

// hit consumes cost units from the window identified by key.
// When the quota is exhausted it reports the time at which the window resets.
func (w *fixedWindow) hit(key string, limit int64, window time.Duration, cost int64) (allowed bool, resetAt time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	start := now.Truncate(window)

	c, found := w.counters[key]
	if !found || c.start != start {
		c = &windowCounter{start: start}
		w.counters[key] = c
	}

	if c.used+cost > limit {
		return false, start.Add(window)
	}

	c.used += cost

	return true, start.Add(window)
}

// movingWindow counts hits within a sliding interval ending now.
type movingWindow struct {
	clock clock.Clock

	mu   sync.Mutex
	hits map[string][]time.Time
}

func newMovingWindow(clk clock.Clock) *movingWindow {
	return &movingWindow{
		clock: clk,
		hits:  make(map[string][]time.Time),
	}
}

func (w *movingWindow) hit(key string, limit int, window time.Duration) (allowed bool, resetAt time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	cutoff := now.Add(-window)

	hits := w.hits[key]
	pruned := hits[:0]
	for _, h := range hits {
		if h.After(cutoff) {
			pruned = append(pruned, h)
		}
	}

	if len(pruned) >= limit {
		w.hits[key] = pruned
		return false, pruned[0].Add(window)
	}

	w.hits[key] = append(pruned, now)

	return true, now.Add(window)
}
