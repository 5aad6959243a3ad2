package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gregoryhugaerts/mini-siem/internal/models"
	"github.com/gregoryhugaerts/mini-siem/internal/schema"
)

// InMemoryRegistry is the development and test implementation.
type InMemoryRegistry struct {
	sources     map[string]*models.Source
	activeNames map[string]string // name -> source id
	mu          sync.RWMutex
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		sources:     make(map[string]*models.Source),
		activeNames: make(map[string]string),
	}
}

func (r *InMemoryRegistry) Register(ctx context.Context, name string, sc schema.Schema) (*models.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.activeNames[name]; exists {
		return nil, ErrDuplicateSource
	}

	src := &models.Source{
		ID:            uuid.New().String(),
		Name:          name,
		Schema:        sc,
		SchemaVersion: 1,
		RegisteredAt:  time.Now().UTC(),
	}
	r.sources[src.ID] = src
	r.activeNames[name] = src.ID
	return copySource(src), nil
}

func (r *InMemoryRegistry) Lookup(ctx context.Context, id string) (*models.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, exists := r.sources[id]
	if !exists {
		return nil, ErrUnknownSource
	}
	if !src.Active() {
		return nil, ErrSourceInactive
	}
	return copySource(src), nil
}

func (r *InMemoryRegistry) Get(ctx context.Context, id string) (*models.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, exists := r.sources[id]
	if !exists {
		return nil, ErrUnknownSource
	}
	return copySource(src), nil
}

func (r *InMemoryRegistry) List(ctx context.Context) ([]*models.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Source, 0, len(r.sources))
	for _, src := range r.sources {
		out = append(out, copySource(src))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RegisteredAt.Before(out[j].RegisteredAt)
	})
	return out, nil
}

func (r *InMemoryRegistry) UpdateSchema(ctx context.Context, id string, sc schema.Schema) (*models.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, exists := r.sources[id]
	if !exists {
		return nil, ErrUnknownSource
	}
	if !src.Active() {
		return nil, ErrSourceInactive
	}

	src.Schema = sc
	src.SchemaVersion++
	return copySource(src), nil
}

func (r *InMemoryRegistry) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, exists := r.sources[id]
	if !exists {
		return ErrUnknownSource
	}
	if !src.Active() {
		return nil
	}

	now := time.Now().UTC()
	src.DeactivatedAt = &now
	delete(r.activeNames, src.Name)
	return nil
}

func copySource(src *models.Source) *models.Source {
	out := *src
	if src.DeactivatedAt != nil {
		t := *src.DeactivatedAt
		out.DeactivatedAt = &t
	}
	return &out
}
