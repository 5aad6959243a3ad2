package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gregoryhugaerts/mini-siem/internal/models"
	"github.com/gregoryhugaerts/mini-siem/internal/schema"
)

const uniqueViolation = "23505"

// PostgresRegistry persists sources in the sources table. The partial
// unique index on (name) WHERE deactivated_at IS NULL enforces the
// one-active-source-per-name rule.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

func (r *PostgresRegistry) Register(ctx context.Context, name string, sc schema.Schema) (*models.Source, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	schemaJSON, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	src := &models.Source{
		Name:          name,
		Schema:        sc,
		SchemaVersion: 1,
		RegisteredAt:  time.Now().UTC(),
	}

	query := `
		INSERT INTO sources (id, name, schema, schema_version, registered_at)
		VALUES (gen_random_uuid(), $1, $2, 1, $3)
		RETURNING id
	`
	err = r.pool.QueryRow(ctx, query, name, schemaJSON, src.RegisteredAt).Scan(&src.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateSource
		}
		return nil, fmt.Errorf("register source: %w", err)
	}
	return src, nil
}

func (r *PostgresRegistry) Lookup(ctx context.Context, id string) (*models.Source, error) {
	src, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !src.Active() {
		return nil, ErrSourceInactive
	}
	return src, nil
}

func (r *PostgresRegistry) Get(ctx context.Context, id string) (*models.Source, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, name, schema, schema_version, registered_at, deactivated_at
		FROM sources
		WHERE id = $1
	`
	src, err := scanSource(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnknownSource
		}
		return nil, fmt.Errorf("get source: %w", err)
	}
	return src, nil
}

func (r *PostgresRegistry) List(ctx context.Context) ([]*models.Source, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT id, name, schema, schema_version, registered_at, deactivated_at
		FROM sources
		ORDER BY registered_at, id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []*models.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (r *PostgresRegistry) UpdateSchema(ctx context.Context, id string, sc schema.Schema) (*models.Source, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	schemaJSON, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	query := `
		UPDATE sources
		SET schema = $2, schema_version = schema_version + 1
		WHERE id = $1 AND deactivated_at IS NULL
		RETURNING id, name, schema, schema_version, registered_at, deactivated_at
	`
	src, err := scanSource(r.pool.QueryRow(ctx, query, id, schemaJSON))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish unknown from deactivated for the caller.
			if _, getErr := r.Get(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, ErrSourceInactive
		}
		return nil, fmt.Errorf("update schema: %w", err)
	}
	return src, nil
}

func (r *PostgresRegistry) Deactivate(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx,
		`UPDATE sources SET deactivated_at = $2 WHERE id = $1 AND deactivated_at IS NULL`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("deactivate source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already deactivated is fine; missing is not.
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func scanSource(row pgx.Row) (*models.Source, error) {
	var (
		src        models.Source
		schemaJSON []byte
	)
	if err := row.Scan(&src.ID, &src.Name, &schemaJSON, &src.SchemaVersion, &src.RegisteredAt, &src.DeactivatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(schemaJSON, &src.Schema); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	return &src, nil
}
