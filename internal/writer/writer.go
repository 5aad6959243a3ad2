// Package writer commits closed batches to the durable store. Transient
// store failures are retried with bounded exponential backoff; a batch
// that exhausts its attempts is handed to the dead letter queue, counted,
// and logged. Its sequence numbers are never reused.
package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gregoryhugaerts/mini-siem/internal/dlq"
	"github.com/gregoryhugaerts/mini-siem/internal/logging"
	"github.com/gregoryhugaerts/mini-siem/internal/metrics"
	"github.com/gregoryhugaerts/mini-siem/internal/models"
	"github.com/gregoryhugaerts/mini-siem/internal/store"
)

// ErrCommitFailed marks a batch abandoned after retry exhaustion.
var ErrCommitFailed = errors.New("batch commit failed after retries")

type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	CommitTimeout  time.Duration
}

// DefaultConfig matches the service defaults in internal/config.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		CommitTimeout:  10 * time.Second,
	}
}

type Writer struct {
	store store.EventStore
	dlq   dlq.Writer // nil disables dead-lettering
	cfg   Config
}

func New(es store.EventStore, dl dlq.Writer, cfg Config) *Writer {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.CommitTimeout <= 0 {
		cfg.CommitTimeout = 10 * time.Second
	}
	return &Writer{store: es, dlq: dl, cfg: cfg}
}

// Commit durably stores the batch. At most one attempt is in flight at a
// time; an attempt that times out counts as a transient failure and is
// retried like any other.
func (w *Writer) Commit(ctx context.Context, batch *models.Batch) error {
	if batch == nil || len(batch.Events) == 0 {
		return nil
	}

	backoff := w.cfg.InitialBackoff
	var lastErr error

attempts:
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, w.cfg.CommitTimeout)
		err := w.store.CommitBatch(attemptCtx, batch)
		cancel()

		if err == nil {
			metrics.CommitDuration.Observe(time.Since(start).Seconds())
			metrics.EventsCommitted.Add(float64(len(batch.Events)))
			return nil
		}
		lastErr = err

		slog.Warn("batch commit failed",
			logging.BatchID(batch.ID),
			logging.Shard(batch.Shard),
			logging.Attempt(attempt),
			slog.Duration("backoff", backoff),
			logging.Error(err),
		)

		if attempt == w.cfg.MaxAttempts {
			break
		}
		metrics.CommitRetries.Inc()

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			lastErr = ctx.Err()
			break attempts
		}
		backoff *= 2
		if backoff > w.cfg.MaxBackoff {
			backoff = w.cfg.MaxBackoff
		}
	}

	metrics.CommitFailures.Inc()
	slog.Error("batch commit abandoned",
		logging.BatchID(batch.ID),
		logging.Shard(batch.Shard),
		slog.Int("events", len(batch.Events)),
		logging.Error(lastErr),
	)

	if w.dlq != nil {
		if derr := w.dlq.Write(ctx, batch, lastErr); derr != nil {
			slog.Error("failed to dead-letter batch",
				logging.BatchID(batch.ID),
				logging.Error(derr),
			)
		}
	}

	return fmt.Errorf("%w: batch %s after %d attempts: %v",
		ErrCommitFailed, batch.ID, w.cfg.MaxAttempts, lastErr)
}
