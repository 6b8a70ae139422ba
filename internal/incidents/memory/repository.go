// Package memory provides an in-memory implementation of the incident repository.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bissquit/incident-commander/internal/domain"
	"github.com/bissquit/incident-commander/internal/incidents"
	"github.com/google/uuid"
)

// Repository implements incidents.Repository in process memory.
// Stored incidents are copied on the way in and out so callers never share
// state with the store.
type Repository struct {
	mu        sync.RWMutex
	incidents map[string]*domain.Incident
	defaults  incidents.Defaults
	now       func() time.Time
}

// NewRepository creates a new in-memory repository.
func NewRepository(defaults incidents.Defaults) *Repository {
	return &Repository{
		incidents: make(map[string]*domain.Incident),
		defaults:  defaults,
		now:       time.Now,
	}
}

// Get returns a copy of the stored incident.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	incident, ok := r.incidents[id]
	if !ok {
		return nil, fmt.Errorf("get incident %q: %w", id, incidents.ErrIncidentNotFound)
	}
	return incident.Clone(), nil
}

// Create stores a new incident with a random UUID.
func (r *Repository) Create(ctx context.Context) (*domain.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	incident := incidents.NewIncident(uuid.NewString(), r.defaults, r.now())

	r.mu.Lock()
	r.incidents[incident.ID] = incident.Clone()
	r.mu.Unlock()

	return incident, nil
}

// Save replaces the stored incident.
func (r *Repository) Save(ctx context.Context, incident *domain.Incident) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if incident.ID == "" {
		return incidents.ErrEmptyIncidentID
	}

	r.mu.Lock()
	r.incidents[incident.ID] = incident.Clone()
	r.mu.Unlock()

	return nil
}
