// Package buffer stages normalized events for durable commit.
//
// Events are partitioned into shards by a hash of their source_id. Each
// shard is a single goroutine that owns the open batch, closes it when the
// count or age threshold is reached, and hands it to the sink
// synchronously. That gives the ordering guarantees for free: one closing
// batch per shard, commits sequential within a shard and parallel across
// shards, and a source's events never interleave across concurrent batches.
package buffer

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gregoryhugaerts/mini-siem/internal/logging"
	"github.com/gregoryhugaerts/mini-siem/internal/metrics"
	"github.com/gregoryhugaerts/mini-siem/internal/models"
)

var (
	ErrBufferFull = errors.New("ingestion buffer at capacity")
	ErrClosed     = errors.New("ingestion buffer closed")
)

// Sink consumes closed batches. The writer surfaces commit failures
// itself (DLQ, metrics); the shard loop only logs them.
type Sink interface {
	Commit(ctx context.Context, batch *models.Batch) error
}

type Config struct {
	Shards        int           // parallel commit pipelines
	MaxBatchSize  int           // close a batch at this many events
	MaxBatchAge   time.Duration // or when the oldest event reaches this age
	ShardCapacity int           // staged events per shard before backpressure
	OfferWait     time.Duration // bounded wait before ErrBufferFull
}

// DefaultConfig matches the service defaults in internal/config.
func DefaultConfig() Config {
	return Config{
		Shards:        4,
		MaxBatchSize:  100,
		MaxBatchAge:   2 * time.Second,
		ShardCapacity: 1000,
		OfferWait:     50 * time.Millisecond,
	}
}

type shard struct {
	id int
	in chan models.CanonicalEvent
}

type Buffer struct {
	cfg    Config
	sink   Sink
	shards []*shard

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func New(cfg Config, sink Sink) *Buffer {
	if cfg.Shards < 1 {
		cfg.Shards = 1
	}
	if cfg.MaxBatchSize < 1 {
		cfg.MaxBatchSize = 1
	}
	if cfg.MaxBatchAge <= 0 {
		cfg.MaxBatchAge = time.Second
	}
	if cfg.ShardCapacity < 1 {
		cfg.ShardCapacity = 1
	}

	b := &Buffer{
		cfg:  cfg,
		sink: sink,
		done: make(chan struct{}),
	}
	for i := 0; i < cfg.Shards; i++ {
		sh := &shard{id: i, in: make(chan models.CanonicalEvent, cfg.ShardCapacity)}
		b.shards = append(b.shards, sh)
		b.wg.Add(1)
		go b.run(sh)
	}
	return b
}

// Offer stages the event on its source's shard. It waits at most
// OfferWait for space, then fails with ErrBufferFull so the caller can
// signal a retryable rejection instead of dropping the event.
func (b *Buffer) Offer(ctx context.Context, ev models.CanonicalEvent) error {
	sh := b.shards[b.shardFor(ev.SourceID)]

	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	// Fast path without arming a timer.
	select {
	case sh.in <- ev:
		metrics.BufferDepth.Inc()
		return nil
	default:
	}

	timer := time.NewTimer(b.cfg.OfferWait)
	defer timer.Stop()

	select {
	case sh.in <- ev:
		metrics.BufferDepth.Inc()
		return nil
	case <-timer.C:
		metrics.BufferRejections.Inc()
		return ErrBufferFull
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrClosed
	}
}

// Depth reports the number of staged events across all shards.
func (b *Buffer) Depth() int {
	n := 0
	for _, sh := range b.shards {
		n += len(sh.in)
	}
	return n
}

// Close stops accepting events and flushes every open batch before
// returning.
func (b *Buffer) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
	})
	b.wg.Wait()
}

func (b *Buffer) shardFor(sourceID string) int {
	h := fnv.New32a()
	h.Write([]byte(sourceID))
	return int(h.Sum32() % uint32(len(b.shards)))
}

func (b *Buffer) run(sh *shard) {
	defer b.wg.Done()

	timer := time.NewTimer(b.cfg.MaxBatchAge)
	defer timer.Stop()

	var batch *models.Batch

	flush := func() {
		if batch == nil {
			return
		}
		closed := batch
		batch = nil

		metrics.BatchesClosed.Inc()
		metrics.BatchSize.Observe(float64(len(closed.Events)))

		// Synchronous: backpressure builds in the shard channel while
		// the sink is slow, and only one batch per shard is ever
		// committing.
		if err := b.sink.Commit(context.Background(), closed); err != nil {
			slog.Error("shard commit failed",
				logging.BatchID(closed.ID),
				logging.Shard(sh.id),
				logging.Error(err),
			)
		}
	}

	resetTimer := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(b.cfg.MaxBatchAge)
	}

	accept := func(ev models.CanonicalEvent) {
		metrics.BufferDepth.Dec()
		if batch == nil {
			batch = &models.Batch{
				ID:       uuid.New().String(),
				Shard:    sh.id,
				OpenedAt: time.Now().UTC(),
			}
			resetTimer()
		}
		batch.Events = append(batch.Events, ev)
		if len(batch.Events) >= b.cfg.MaxBatchSize {
			flush()
		}
	}

	for {
		select {
		case <-b.done:
			// Drain whatever producers managed to stage, then flush.
			for {
				select {
				case ev := <-sh.in:
					accept(ev)
				default:
					flush()
					return
				}
			}

		case <-timer.C:
			flush()
			timer.Reset(b.cfg.MaxBatchAge)

		case ev := <-sh.in:
			accept(ev)
		}
	}
}
