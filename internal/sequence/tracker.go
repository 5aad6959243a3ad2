// Package sequence assigns per-source monotonic sequence numbers.
//
// Assignment is serialized per source so concurrent ingestion for the same
// source can neither duplicate a number nor hand them out out of order.
// Counters are recovered lazily from durable storage the first time a
// source is seen after startup.
package sequence

import (
	"context"
	"fmt"
	"sync"
)

// LastSequenceFunc loads the last durably committed sequence number for a
// source; 0 when the source has no committed events.
type LastSequenceFunc func(ctx context.Context, sourceID string) (uint64, error)

type counter struct {
	mu     sync.Mutex
	loaded bool
	last   uint64
}

// Tracker owns the per-source counters.
type Tracker struct {
	load LastSequenceFunc

	mu       sync.Mutex
	counters map[string]*counter
}

func NewTracker(load LastSequenceFunc) *Tracker {
	return &Tracker{
		load:     load,
		counters: make(map[string]*counter),
	}
}

// Reserve runs fn with the next sequence number for sourceID while holding
// that source's lock. The counter advances only if fn returns nil, so a
// rejected event consumes no sequence number and leaves no gap.
func (t *Tracker) Reserve(ctx context.Context, sourceID string, fn func(seq uint64) error) error {
	c := t.counter(sourceID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		last, err := t.load(ctx, sourceID)
		if err != nil {
			return fmt.Errorf("recover sequence for source %s: %w", sourceID, err)
		}
		c.last = last
		c.loaded = true
	}

	seq := c.last + 1
	if err := fn(seq); err != nil {
		return err
	}
	c.last = seq
	return nil
}

// Last returns the most recently assigned sequence number for a source, or
// 0 if the source has not been seen since startup.
func (t *Tracker) Last(sourceID string) uint64 {
	t.mu.Lock()
	c, ok := t.counters[sourceID]
	t.mu.Unlock()
	if !ok {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (t *Tracker) counter(sourceID string) *counter {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.counters[sourceID]
	if !ok {
		c = &counter{}
		t.counters[sourceID] = c
	}
	return c
}
