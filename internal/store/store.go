package store

import (
	"context"
	"errors"
	"time"

	"github.com/gregoryhugaerts/mini-siem/internal/models"
)

var ErrEventNotFound = errors.New("event not found")

// QueryFilter narrows the event read path. Zero values mean unset.
type QueryFilter struct {
	SourceID string
	From     time.Time
	To       time.Time
	SeqMin   uint64
	SeqMax   uint64
	Limit    int
	Offset   int
}

// EventStore is the durable home of canonical events.
//
// CommitBatch is atomic per batch and idempotent under retry: recommitting
// a batch whose event_ids are already present creates no duplicates.
// QueryEvents returns events ordered by (source_id, sequence_number)
// ascending and is safe to call concurrently with commits.
type EventStore interface {
	CommitBatch(ctx context.Context, batch *models.Batch) error
	QueryEvents(ctx context.Context, f QueryFilter) ([]models.CanonicalEvent, error)
	GetEvent(ctx context.Context, eventID string) (*models.CanonicalEvent, error)
	LastSequence(ctx context.Context, sourceID string) (uint64, error)
	Close()
}
