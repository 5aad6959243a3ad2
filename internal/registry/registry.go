package registry

import (
	"context"
	"errors"

	"github.com/gregoryhugaerts/mini-siem/internal/models"
	"github.com/gregoryhugaerts/mini-siem/internal/schema"
)

var (
	ErrDuplicateSource = errors.New("source name already active")
	ErrUnknownSource   = errors.New("unknown source")
	ErrSourceInactive  = errors.New("source deactivated")
)

// Registry holds the set of known event sources. Sources are never
// deleted; Deactivate preserves them so historical events stay valid.
type Registry interface {
	// Register creates a source with schema version 1. Fails with
	// ErrDuplicateSource if an active source already holds the name.
	Register(ctx context.Context, name string, sc schema.Schema) (*models.Source, error)

	// Lookup resolves an active source. ErrUnknownSource if absent,
	// ErrSourceInactive if deactivated.
	Lookup(ctx context.Context, id string) (*models.Source, error)

	// Get resolves a source regardless of activation state.
	Get(ctx context.Context, id string) (*models.Source, error)

	// List returns all sources ordered by registration time.
	List(ctx context.Context) ([]*models.Source, error)

	// UpdateSchema replaces the declared schema and bumps schema_version.
	// Events ingested under earlier versions remain valid.
	UpdateSchema(ctx context.Context, id string, sc schema.Schema) (*models.Source, error)

	// Deactivate marks the source inactive. Idempotent; frees the name
	// for future registrations.
	Deactivate(ctx context.Context, id string) error
}
