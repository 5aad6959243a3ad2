package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestStore creates a PostgreSQL testcontainer and runs migrations.
func setupTestStore(t *testing.T) (*PostgresStore, func()) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("siem_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	if err := runMigrations(connStr); err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	s, err := NewPostgresStore(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create store: %v", err)
	}

	cleanup := func() {
		s.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}
	return s, cleanup
}

func runMigrations(connStr string) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	migrationPath := filepath.Join("..", "..", "migrations", "0001_init.up.sql")
	migrationSQL, err := os.ReadFile(migrationPath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

func insertTestSource(t *testing.T, s *PostgresStore, id string) {
	t.Helper()
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO sources (id, name, schema, schema_version, registered_at)
		 VALUES ($1, $2, '{}', 1, $3)`,
		id, "src-"+id, time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("insert test source: %v", err)
	}
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	srcA := "11111111-1111-1111-1111-111111111111"
	srcB := "22222222-2222-2222-2222-222222222222"
	insertTestSource(t, s, srcA)
	insertTestSource(t, s, srcB)

	t.Run("commit and read back in order", func(t *testing.T) {
		if err := s.CommitBatch(ctx, makeBatch(srcA, 1, 5)); err != nil {
			t.Fatalf("commit: %v", err)
		}
		if err := s.CommitBatch(ctx, makeBatch(srcB, 1, 3)); err != nil {
			t.Fatalf("commit: %v", err)
		}

		events, err := s.QueryEvents(ctx, QueryFilter{SourceID: srcA})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(events) != 5 {
			t.Fatalf("expected 5 events, got %d", len(events))
		}
		for i, ev := range events {
			if ev.Sequence != uint64(i+1) {
				t.Errorf("position %d has sequence %d", i, ev.Sequence)
			}
		}
	})

	t.Run("recommit creates no duplicates", func(t *testing.T) {
		batch := makeBatch(srcA, 6, 2)
		if err := s.CommitBatch(ctx, batch); err != nil {
			t.Fatalf("commit: %v", err)
		}
		if err := s.CommitBatch(ctx, batch); err != nil {
			t.Fatalf("recommit: %v", err)
		}

		events, err := s.QueryEvents(ctx, QueryFilter{SourceID: srcA, SeqMin: 6})
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(events) != 2 {
			t.Errorf("expected 2 events after recommit, got %d", len(events))
		}
	})

	t.Run("last sequence", func(t *testing.T) {
		last, err := s.LastSequence(ctx, srcA)
		if err != nil {
			t.Fatalf("last sequence: %v", err)
		}
		if last != 7 {
			t.Errorf("expected 7, got %d", last)
		}

		last, err = s.LastSequence(ctx, "33333333-3333-3333-3333-333333333333")
		if err != nil {
			t.Fatalf("last sequence: %v", err)
		}
		if last != 0 {
			t.Errorf("expected 0 for unseen source, got %d", last)
		}
	})

	t.Run("get event", func(t *testing.T) {
		ev, err := s.GetEvent(ctx, fmt.Sprintf("ev-%s-1", srcA))
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if ev.SourceID != srcA || ev.Sequence != 1 {
			t.Errorf("unexpected event %+v", ev)
		}
	})
}
