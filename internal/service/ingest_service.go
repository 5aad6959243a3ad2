// Package service orchestrates the ingestion pipeline: source management,
// event normalization, sequence assignment, and buffering, plus the read
// path against the durable store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gregoryhugaerts/mini-siem/internal/buffer"
	"github.com/gregoryhugaerts/mini-siem/internal/logging"
	"github.com/gregoryhugaerts/mini-siem/internal/metrics"
	"github.com/gregoryhugaerts/mini-siem/internal/models"
	"github.com/gregoryhugaerts/mini-siem/internal/normalizer"
	"github.com/gregoryhugaerts/mini-siem/internal/registry"
	"github.com/gregoryhugaerts/mini-siem/internal/schema"
	"github.com/gregoryhugaerts/mini-siem/internal/sequence"
	"github.com/gregoryhugaerts/mini-siem/internal/store"
)

// IngestService is the single entry point the HTTP layer talks to.
// Accepting an event means it is normalized, sequence-numbered, and
// staged in the buffer; durability follows asynchronously.
type IngestService struct {
	registry   registry.Registry
	normalizer *normalizer.Normalizer
	tracker    *sequence.Tracker
	buffer     *buffer.Buffer
	events     store.EventStore
	logger     *slog.Logger

	mu    sync.Mutex
	stats models.IngestionStats
}

func NewIngestService(
	reg registry.Registry,
	tracker *sequence.Tracker,
	buf *buffer.Buffer,
	events store.EventStore,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		registry:   reg,
		normalizer: normalizer.New(reg),
		tracker:    tracker,
		buffer:     buf,
		events:     events,
		logger:     logger,
	}
}

// IngestBatch processes each raw event independently and returns one
// outcome per input, in input order. A rejected event never affects its
// siblings and never consumes a sequence number.
func (s *IngestService) IngestBatch(ctx context.Context, raws []models.RawEvent) []models.EventOutcome {
	outcomes := make([]models.EventOutcome, len(raws))
	for i := range raws {
		outcomes[i] = s.IngestEvent(ctx, &raws[i])
	}
	return outcomes
}

// IngestEvent normalizes the raw event and, while holding its source's
// sequence lock, assigns the next sequence number and offers the event to
// the buffer. The number is only consumed when the offer succeeds, so
// rejections leave no gap in the source's sequence.
func (s *IngestService) IngestEvent(ctx context.Context, raw *models.RawEvent) models.EventOutcome {
	ev, err := s.normalizer.Normalize(ctx, raw)
	if err != nil {
		s.recordRejection()
		s.logger.Debug("event rejected",
			logging.SourceID(raw.Source),
			logging.Error(err),
		)
		return models.EventOutcome{Accepted: false, Error: outcomeError(err)}
	}

	err = s.tracker.Reserve(ctx, ev.SourceID, func(seq uint64) error {
		ev.Sequence = seq
		return s.buffer.Offer(ctx, *ev)
	})
	if err != nil {
		s.recordRejection()
		s.logger.Warn("event not buffered",
			logging.SourceID(ev.SourceID),
			logging.EventID(ev.EventID),
			logging.Error(err),
		)
		return models.EventOutcome{Accepted: false, Error: outcomeError(err)}
	}

	s.recordAccept()
	return models.EventOutcome{
		Accepted: true,
		EventID:  ev.EventID,
		Sequence: ev.Sequence,
	}
}

// RegisterSource creates a new active source with schema version 1.
func (s *IngestService) RegisterSource(ctx context.Context, name string, sc schema.Schema) (*models.Source, error) {
	if name == "" {
		return nil, fmt.Errorf("source name must not be empty")
	}
	if err := sc.Check(); err != nil {
		return nil, err
	}
	src, err := s.registry.Register(ctx, name, sc)
	if err != nil {
		return nil, err
	}
	s.logger.Info("source registered",
		logging.SourceID(src.ID),
		slog.String("name", src.Name),
	)
	return src, nil
}

func (s *IngestService) GetSource(ctx context.Context, id string) (*models.Source, error) {
	return s.registry.Get(ctx, id)
}

func (s *IngestService) ListSources(ctx context.Context) ([]*models.Source, error) {
	return s.registry.List(ctx)
}

// UpdateSourceSchema replaces the active schema and bumps the version.
// Already-committed events keep the version they were validated under.
func (s *IngestService) UpdateSourceSchema(ctx context.Context, id string, sc schema.Schema) (*models.Source, error) {
	if err := sc.Check(); err != nil {
		return nil, err
	}
	src, err := s.registry.UpdateSchema(ctx, id, sc)
	if err != nil {
		return nil, err
	}
	s.logger.Info("source schema updated",
		logging.SourceID(src.ID),
		slog.Int("schema_version", src.SchemaVersion),
	)
	return src, nil
}

// DeactivateSource stops a source from producing new events. Historical
// events remain queryable.
func (s *IngestService) DeactivateSource(ctx context.Context, id string) error {
	if err := s.registry.Deactivate(ctx, id); err != nil {
		return err
	}
	s.logger.Info("source deactivated", logging.SourceID(id))
	return nil
}

func (s *IngestService) QueryEvents(ctx context.Context, f store.QueryFilter) ([]models.CanonicalEvent, error) {
	return s.events.QueryEvents(ctx, f)
}

func (s *IngestService) GetEvent(ctx context.Context, eventID string) (*models.CanonicalEvent, error) {
	return s.events.GetEvent(ctx, eventID)
}

// BufferDepth reports currently staged events, for readiness reporting.
func (s *IngestService) BufferDepth() int {
	return s.buffer.Depth()
}

func (s *IngestService) Stats() models.IngestionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *IngestService) recordAccept() {
	metrics.EventsTotal.WithLabelValues("accepted").Inc()
	s.mu.Lock()
	s.stats.TotalEvents++
	s.stats.AcceptedEvents++
	s.stats.LastEvent = time.Now().UTC()
	s.mu.Unlock()
}

func (s *IngestService) recordRejection() {
	metrics.EventsTotal.WithLabelValues("rejected").Inc()
	s.mu.Lock()
	s.stats.TotalEvents++
	s.stats.RejectedEvents++
	s.stats.LastEvent = time.Now().UTC()
	s.mu.Unlock()
}

// outcomeError renders a pipeline error as the stable, client-facing
// string carried in per-event outcomes. Schema violations already carry
// their wire form; everything else maps from the internal sentinel.
func outcomeError(err error) string {
	var verr *schema.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, registry.ErrUnknownSource):
		return "UnknownSourceError: source is not registered"
	case errors.Is(err, registry.ErrSourceInactive):
		return "SourceInactiveError: source has been deactivated"
	case errors.Is(err, buffer.ErrBufferFull):
		return "BufferFullError: ingestion buffer at capacity, retry later"
	case errors.Is(err, buffer.ErrClosed):
		return "BufferFullError: ingestion pipeline is shutting down"
	default:
		return err.Error()
	}
}
