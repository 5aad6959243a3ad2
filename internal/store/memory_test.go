package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gregoryhugaerts/mini-siem/internal/models"
)

func makeBatch(sourceID string, startSeq uint64, n int) *models.Batch {
	b := &models.Batch{ID: fmt.Sprintf("batch-%s-%d", sourceID, startSeq), OpenedAt: time.Now().UTC()}
	for i := 0; i < n; i++ {
		seq := startSeq + uint64(i)
		b.Events = append(b.Events, models.CanonicalEvent{
			EventID:        fmt.Sprintf("ev-%s-%d", sourceID, seq),
			SourceID:       sourceID,
			IngestedAt:     time.Now().UTC(),
			EventTimestamp: time.Date(2026, 1, 1, 0, 0, int(seq), 0, time.UTC),
			SchemaVersion:  1,
			Payload:        map[string]interface{}{"n": float64(seq)},
			Sequence:       seq,
		})
	}
	return b
}

func TestCommitIdempotent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	batch := makeBatch("src-a", 1, 3)
	if err := s.CommitBatch(ctx, batch); err != nil {
		t.Fatalf("commit: %v", err)
	}
	// Simulated retry after a lost ack.
	if err := s.CommitBatch(ctx, batch); err != nil {
		t.Fatalf("recommit: %v", err)
	}

	if s.Count() != 3 {
		t.Errorf("expected 3 events after recommit, got %d", s.Count())
	}
}

func TestQueryOrderedBySourceAndSequence(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	// Commit out of order across two sources.
	if err := s.CommitBatch(ctx, makeBatch("src-b", 1, 2)); err != nil {
		t.Fatal(err)
	}
	if err := s.CommitBatch(ctx, makeBatch("src-a", 3, 2)); err != nil {
		t.Fatal(err)
	}
	if err := s.CommitBatch(ctx, makeBatch("src-a", 1, 2)); err != nil {
		t.Fatal(err)
	}

	events, err := s.QueryEvents(ctx, QueryFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 6 {
		t.Fatalf("expected 6 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1], events[i]
		if prev.SourceID > cur.SourceID {
			t.Fatal("events not ordered by source_id")
		}
		if prev.SourceID == cur.SourceID && prev.Sequence >= cur.Sequence {
			t.Fatal("events not ordered by sequence within source")
		}
	}
}

func TestQueryFilters(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.CommitBatch(ctx, makeBatch("src-a", 1, 10)); err != nil {
		t.Fatal(err)
	}
	if err := s.CommitBatch(ctx, makeBatch("src-b", 1, 5)); err != nil {
		t.Fatal(err)
	}

	events, err := s.QueryEvents(ctx, QueryFilter{SourceID: "src-a", SeqMin: 3, SeqMax: 7})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 5 {
		t.Fatalf("expected 5 events in sequence range, got %d", len(events))
	}
	if events[0].Sequence != 3 || events[4].Sequence != 7 {
		t.Errorf("wrong sequence bounds: %d..%d", events[0].Sequence, events[4].Sequence)
	}

	events, err = s.QueryEvents(ctx, QueryFilter{
		From: time.Date(2026, 1, 1, 0, 0, 2, 0, time.UTC),
		To:   time.Date(2026, 1, 1, 0, 0, 4, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	// src-a seq 2..4 and src-b seq 2..4 fall inside the window.
	if len(events) != 6 {
		t.Errorf("expected 6 events in time range, got %d", len(events))
	}

	events, err = s.QueryEvents(ctx, QueryFilter{SourceID: "src-a", Limit: 3, Offset: 8})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events on last page, got %d", len(events))
	}
}

func TestGetEvent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.CommitBatch(ctx, makeBatch("src-a", 1, 1)); err != nil {
		t.Fatal(err)
	}

	ev, err := s.GetEvent(ctx, "ev-src-a-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ev.Sequence != 1 {
		t.Errorf("unexpected event %+v", ev)
	}

	if _, err := s.GetEvent(ctx, "missing"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("expected ErrEventNotFound, got %v", err)
	}
}

func TestLastSequence(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	last, err := s.LastSequence(ctx, "src-a")
	if err != nil {
		t.Fatalf("last sequence: %v", err)
	}
	if last != 0 {
		t.Errorf("expected 0 for unseen source, got %d", last)
	}

	if err := s.CommitBatch(ctx, makeBatch("src-a", 1, 4)); err != nil {
		t.Fatal(err)
	}
	last, err = s.LastSequence(ctx, "src-a")
	if err != nil {
		t.Fatalf("last sequence: %v", err)
	}
	if last != 4 {
		t.Errorf("expected 4, got %d", last)
	}
}
