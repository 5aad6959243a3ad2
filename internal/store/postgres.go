package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gregoryhugaerts/mini-siem/internal/models"
)

// PostgresStore persists canonical events in the events table.
//
// CommitBatch runs inside a transaction, so a batch is either fully
// visible or not at all; ON CONFLICT (event_id) DO NOTHING makes retried
// commits idempotent.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	config.MaxConns = 25
	config.MinConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Pool exposes the underlying pool so the source registry can share it.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) CommitBatch(ctx context.Context, batch *models.Batch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO events (event_id, source_id, ingested_at, event_timestamp, schema_version, payload, sequence_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING
	`
	for _, ev := range batch.Events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload for event %s: %w", ev.EventID, err)
		}
		if _, err := tx.Exec(ctx, query,
			ev.EventID, ev.SourceID, ev.IngestedAt, ev.EventTimestamp,
			ev.SchemaVersion, payload, ev.Sequence,
		); err != nil {
			return fmt.Errorf("insert event %s: %w", ev.EventID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch %s: %w", batch.ID, err)
	}
	return nil
}

func (s *PostgresStore) QueryEvents(ctx context.Context, f QueryFilter) ([]models.CanonicalEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.SourceID != "" {
		conds = append(conds, "source_id = "+arg(f.SourceID))
	}
	if !f.From.IsZero() {
		conds = append(conds, "event_timestamp >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "event_timestamp <= "+arg(f.To))
	}
	if f.SeqMin > 0 {
		conds = append(conds, "sequence_number >= "+arg(int64(f.SeqMin)))
	}
	if f.SeqMax > 0 {
		conds = append(conds, "sequence_number <= "+arg(int64(f.SeqMax)))
	}

	query := `
		SELECT event_id, source_id, ingested_at, event_timestamp, schema_version, payload, sequence_number
		FROM events
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY source_id, sequence_number"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []models.CanonicalEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetEvent(ctx context.Context, eventID string) (*models.CanonicalEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT event_id, source_id, ingested_at, event_timestamp, schema_version, payload, sequence_number
		FROM events
		WHERE event_id = $1
	`
	ev, err := scanEvent(s.pool.QueryRow(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

func (s *PostgresStore) LastSequence(ctx context.Context, sourceID string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var last int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM events WHERE source_id = $1`,
		sourceID,
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("last sequence for source %s: %w", sourceID, err)
	}
	return uint64(last), nil
}

func scanEvent(row pgx.Row) (*models.CanonicalEvent, error) {
	var (
		ev      models.CanonicalEvent
		payload []byte
		seq     int64
	)
	if err := row.Scan(&ev.EventID, &ev.SourceID, &ev.IngestedAt, &ev.EventTimestamp, &ev.SchemaVersion, &payload, &seq); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &ev.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	ev.Sequence = uint64(seq)
	return &ev, nil
}
