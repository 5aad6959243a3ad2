package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/gregoryhugaerts/mini-siem/internal/models"
)

const (
	streamName    = "SIEM_DLQ"
	subjectPrefix = "siem.dlq.batches"
)

// JetStreamQueue writes failed batches to NATS JetStream for a
// centralized DLQ. Safe for use across multiple ingest instances.
type JetStreamQueue struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
}

func NewJetStreamQueue(ctx context.Context, natsURL string) (*JetStreamQueue, error) {
	nc, err := nats.Connect(natsURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ".>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}

	return &JetStreamQueue{nc: nc, js: js, stream: stream}, nil
}

func (q *JetStreamQueue) Write(ctx context.Context, batch *models.Batch, cause error) error {
	entry := Entry{
		BatchID:  batch.ID,
		Shard:    batch.Shard,
		FailedAt: time.Now().UTC(),
		Reason:   cause.Error(),
		Events:   batch.Events,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}

	subject := fmt.Sprintf("%s.%d", subjectPrefix, batch.Shard)
	if _, err := q.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish dlq entry: %w", err)
	}
	return nil
}

func (q *JetStreamQueue) Close() error {
	q.nc.Close()
	return nil
}
