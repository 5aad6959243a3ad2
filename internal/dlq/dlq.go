// Package dlq holds batches that exhausted their commit retries. Nothing
// is ever silently dropped: a failed batch lands here with enough context
// for an operator to replay it.
package dlq

import (
	"context"
	"time"

	"github.com/gregoryhugaerts/mini-siem/internal/models"
)

// Entry is the persisted form of a failed batch.
type Entry struct {
	BatchID  string                  `json:"batch_id"`
	Shard    int                     `json:"shard"`
	FailedAt time.Time               `json:"failed_at"`
	Reason   string                  `json:"reason"`
	Events   []models.CanonicalEvent `json:"events"`
}

// Writer records failed batches.
type Writer interface {
	Write(ctx context.Context, batch *models.Batch, cause error) error
	Close() error
}
