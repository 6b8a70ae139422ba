// Package incidents provides incident persistence: the repository contract,
// an in-memory and a PostgreSQL implementation, and the asynchronous writer
// the session uses for fire-and-forget saves.
package incidents

import (
	"context"
	"time"

	"github.com/bissquit/incident-commander/internal/domain"
)

// Repository defines the interface for incident storage.
type Repository interface {
	// Get loads an incident with its updates. Returns ErrIncidentNotFound
	// when no incident has the given ID.
	Get(ctx context.Context, id string) (*domain.Incident, error)
	// Create persists and returns a fresh incident with a newly assigned ID.
	Create(ctx context.Context) (*domain.Incident, error)
	// Save replaces the stored incident and its updates.
	Save(ctx context.Context, incident *domain.Incident) error
}

// Defaults supplies the catalog entries a new incident starts with.
type Defaults interface {
	DefaultPriority() domain.Priority
	DefaultStatus() domain.Status
}

// NewIncident builds an unsaved incident with catalog defaults.
func NewIncident(id string, defaults Defaults, startedAt time.Time) *domain.Incident {
	return &domain.Incident{
		ID:        id,
		Priority:  defaults.DefaultPriority(),
		Status:    defaults.DefaultStatus(),
		StartedAt: startedAt,
		Updates:   make([]*domain.Update, 0),
	}
}
