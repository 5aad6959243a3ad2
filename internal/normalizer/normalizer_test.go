package normalizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gregoryhugaerts/mini-siem/internal/models"
	"github.com/gregoryhugaerts/mini-siem/internal/registry"
	"github.com/gregoryhugaerts/mini-siem/internal/schema"
)

func setup(t *testing.T) (*Normalizer, *models.Source, *registry.InMemoryRegistry) {
	t.Helper()
	reg := registry.NewInMemoryRegistry()
	src, err := reg.Register(context.Background(), "suricata", schema.Schema{
		Required: []schema.Field{{Name: "timestamp", Type: schema.TypeString}},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return New(reg), src, reg
}

func TestNormalizeValidEvent(t *testing.T) {
	n, src, _ := setup(t)

	claimed := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	ev, err := n.Normalize(context.Background(), &models.RawEvent{
		Timestamp: claimed,
		Source:    src.ID,
		Data: map[string]interface{}{
			"timestamp": "2026-02-03T04:05:06Z",
			"src_ip":    "10.0.0.1",
		},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if ev.EventID == "" {
		t.Error("expected event_id to be assigned")
	}
	if ev.SourceID != src.ID {
		t.Errorf("wrong source id %s", ev.SourceID)
	}
	if !ev.EventTimestamp.Equal(claimed) {
		t.Errorf("producer-claimed timestamp not preserved: %v", ev.EventTimestamp)
	}
	if ev.IngestedAt.IsZero() {
		t.Error("expected server-assigned ingested_at")
	}
	if ev.SchemaVersion != 1 {
		t.Errorf("expected schema version 1, got %d", ev.SchemaVersion)
	}
	if ev.Sequence != 0 {
		t.Error("normalizer must not assign sequence numbers")
	}
	extra, _ := ev.Payload["extra"].(map[string]interface{})
	if extra["src_ip"] != "10.0.0.1" {
		t.Errorf("undeclared field lost: %v", ev.Payload)
	}
}

func TestNormalizeDefaultsMissingTimestamp(t *testing.T) {
	n, src, _ := setup(t)

	ev, err := n.Normalize(context.Background(), &models.RawEvent{
		Source: src.ID,
		Data:   map[string]interface{}{"timestamp": "x"},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if ev.EventTimestamp.IsZero() {
		t.Error("expected server time for missing producer timestamp")
	}
}

func TestNormalizeUnknownSource(t *testing.T) {
	n, _, _ := setup(t)

	_, err := n.Normalize(context.Background(), &models.RawEvent{
		Source: "no-such-source",
		Data:   map[string]interface{}{"timestamp": "x"},
	})
	if !errors.Is(err, registry.ErrUnknownSource) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
}

func TestNormalizeInactiveSource(t *testing.T) {
	n, src, reg := setup(t)

	if err := reg.Deactivate(context.Background(), src.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err := n.Normalize(context.Background(), &models.RawEvent{
		Source: src.ID,
		Data:   map[string]interface{}{"timestamp": "x"},
	})
	if !errors.Is(err, registry.ErrSourceInactive) {
		t.Errorf("expected ErrSourceInactive, got %v", err)
	}
}

func TestNormalizeSchemaViolation(t *testing.T) {
	n, src, _ := setup(t)

	_, err := n.Normalize(context.Background(), &models.RawEvent{
		Source: src.ID,
		Data:   map[string]interface{}{"src_ip": "10.0.0.1"},
	})
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if err.Error() != "SchemaValidationError: timestamp" {
		t.Errorf("unexpected error text %q", err.Error())
	}
}

func TestNormalizeUsesActiveSchemaVersion(t *testing.T) {
	n, src, reg := setup(t)
	ctx := context.Background()

	if _, err := reg.UpdateSchema(ctx, src.ID, schema.Schema{
		Required: []schema.Field{{Name: "timestamp"}, {Name: "severity", Type: schema.TypeNumber}},
	}); err != nil {
		t.Fatalf("update schema: %v", err)
	}

	// Old payload shape now fails under version 2.
	if _, err := n.Normalize(ctx, &models.RawEvent{
		Source: src.ID,
		Data:   map[string]interface{}{"timestamp": "x"},
	}); err == nil {
		t.Fatal("expected validation error under the bumped schema")
	}

	ev, err := n.Normalize(ctx, &models.RawEvent{
		Source: src.ID,
		Data:   map[string]interface{}{"timestamp": "x", "severity": 2.0},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if ev.SchemaVersion != 2 {
		t.Errorf("expected schema version 2, got %d", ev.SchemaVersion)
	}
}
