// Package normalizer turns producer-supplied raw events into canonical
// events: source resolution, schema validation, and event_id assignment.
// Sequence numbers are assigned separately (internal/sequence) because
// they must only be consumed once the event is actually accepted.
package normalizer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gregoryhugaerts/mini-siem/internal/metrics"
	"github.com/gregoryhugaerts/mini-siem/internal/models"
	"github.com/gregoryhugaerts/mini-siem/internal/registry"
)

type Normalizer struct {
	registry registry.Registry
}

func New(reg registry.Registry) *Normalizer {
	return &Normalizer{registry: reg}
}

// Normalize validates the raw event against its source's currently active
// schema version and produces a canonical event without a sequence
// number. Fails fast on unknown or deactivated sources.
func (n *Normalizer) Normalize(ctx context.Context, raw *models.RawEvent) (*models.CanonicalEvent, error) {
	start := time.Now()
	defer func() {
		metrics.NormalizationDuration.Observe(time.Since(start).Seconds())
	}()

	src, err := n.registry.Lookup(ctx, raw.Source)
	if err != nil {
		return nil, err
	}

	payload, err := src.Schema.Normalize(raw.Data)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	eventTime := raw.Timestamp
	if eventTime.IsZero() {
		// Producers without clocks get the server's view of time.
		eventTime = now
	}

	return &models.CanonicalEvent{
		EventID:        uuid.New().String(),
		SourceID:       src.ID,
		IngestedAt:     now,
		EventTimestamp: eventTime,
		SchemaVersion:  src.SchemaVersion,
		Payload:        payload,
	}, nil
}
