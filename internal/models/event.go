package models

import (
	"time"

	"github.com/gregoryhugaerts/mini-siem/internal/schema"
)

// Source is a registered producer of security events. Sources are never
// deleted; deactivation preserves the validity of historical events.
type Source struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Schema        schema.Schema `json:"schema"`
	SchemaVersion int           `json:"schema_version"`
	RegisteredAt  time.Time     `json:"registered_at"`
	DeactivatedAt *time.Time    `json:"deactivated_at,omitempty"`
}

// Active reports whether the source may still produce events.
func (s *Source) Active() bool {
	return s.DeactivatedAt == nil
}

// RawEvent is the producer-supplied envelope as posted to the events
// endpoint. It exists only in flight between the API and the normalizer.
type RawEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
}

// CanonicalEvent is a validated, sequence-numbered event. EventID is
// assigned exactly once at normalization and never changes; Sequence is
// strictly increasing per source.
type CanonicalEvent struct {
	EventID        string                 `json:"event_id"`
	SourceID       string                 `json:"source_id"`
	IngestedAt     time.Time              `json:"ingested_at"`
	EventTimestamp time.Time              `json:"event_timestamp"`
	SchemaVersion  int                    `json:"schema_version"`
	Payload        map[string]interface{} `json:"payload"`
	Sequence       uint64                 `json:"sequence_number"`
}

// Batch groups canonical events for a single commit attempt. Batches are
// transient; they live only between the buffer and the store writer.
type Batch struct {
	ID       string           `json:"batch_id"`
	Shard    int              `json:"shard"`
	OpenedAt time.Time        `json:"opened_at"`
	Events   []CanonicalEvent `json:"events"`
}

// EventOutcome is the per-event result returned by the ingestion API.
// One malformed event in a request never fails its siblings.
type EventOutcome struct {
	Accepted bool   `json:"accepted"`
	EventID  string `json:"event_id,omitempty"`
	Sequence uint64 `json:"sequence_number,omitempty"`
	Error    string `json:"error,omitempty"`
}

// IngestionStats summarizes pipeline activity for the readiness endpoint.
type IngestionStats struct {
	TotalEvents    int64     `json:"total_events"`
	AcceptedEvents int64     `json:"accepted_events"`
	RejectedEvents int64     `json:"rejected_events"`
	LastEvent      time.Time `json:"last_event"`
}
