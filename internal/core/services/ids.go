package services

import (
	"sync"
	"time"
)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// IDGenerator issues ticket ids derived from the wall clock in epoch
// milliseconds. Ids are strictly increasing even when two tickets are
// created within the same millisecond or the clock steps backwards.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  Clock
}

// NewIDGenerator creates a generator reading time from now.
func NewIDGenerator(now Clock) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// Next returns a fresh id.
func (g *IDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// Observe records an id seen elsewhere so later ids sort above it.
func (g *IDGenerator) Observe(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id > g.last {
		g.last = id
	}
}
