// Package postgres provides PostgreSQL implementation of the incident repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/incident-commander/internal/domain"
	"github.com/bissquit/incident-commander/internal/incidents"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements incidents.Repository using PostgreSQL.
type Repository struct {
	db       *pgxpool.Pool
	defaults incidents.Defaults
	now      func() time.Time
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool, defaults incidents.Defaults) *Repository {
	return &Repository{
		db:       db,
		defaults: defaults,
		now:      time.Now,
	}
}

// Get retrieves an incident and its updates by ID.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Incident, error) {
	query := `
		SELECT id, description, priority_id, priority_label, status_id, status_label, started_at, video_link
		FROM incidents
		WHERE id = $1
	`
	var incident domain.Incident
	err := r.db.QueryRow(ctx, query, id).Scan(
		&incident.ID,
		&incident.Description,
		&incident.Priority.ID,
		&incident.Priority.Label,
		&incident.Status.ID,
		&incident.Status.Label,
		&incident.StartedAt,
		&incident.VideoLink,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get incident %q: %w", id, incidents.ErrIncidentNotFound)
		}
		return nil, fmt.Errorf("get incident: %w", err)
	}

	updates, err := r.listUpdates(ctx, id)
	if err != nil {
		return nil, err
	}
	incident.Updates = updates

	return &incident, nil
}

func (r *Repository) listUpdates(ctx context.Context, incidentID string) ([]*domain.Update, error) {
	query := `
		SELECT id, status_id, status_label, description, created_at
		FROM incident_updates
		WHERE incident_id = $1
		ORDER BY position
	`
	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list incident updates: %w", err)
	}
	defer rows.Close()

	updates := make([]*domain.Update, 0)
	for rows.Next() {
		var u domain.Update
		if err := rows.Scan(&u.ID, &u.Status.ID, &u.Status.Label, &u.Description, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan incident update: %w", err)
		}
		updates = append(updates, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incident updates: %w", err)
	}

	return updates, nil
}

// Create inserts a new incident with a random UUID and catalog defaults.
func (r *Repository) Create(ctx context.Context) (*domain.Incident, error) {
	incident := incidents.NewIncident(uuid.NewString(), r.defaults, r.now())

	query := `
		INSERT INTO incidents (id, description, priority_id, priority_label, status_id, status_label, started_at, video_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		incident.ID,
		incident.Description,
		incident.Priority.ID,
		incident.Priority.Label,
		incident.Status.ID,
		incident.Status.Label,
		incident.StartedAt,
		incident.VideoLink,
	)
	if err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}

	return incident, nil
}

// Save upserts the incident and replaces its updates in one transaction.
func (r *Repository) Save(ctx context.Context, incident *domain.Incident) error {
	if incident.ID == "" {
		return incidents.ErrEmptyIncidentID
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	upsert := `
		INSERT INTO incidents (id, description, priority_id, priority_label, status_id, status_label, started_at, video_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET description = EXCLUDED.description,
		    priority_id = EXCLUDED.priority_id,
		    priority_label = EXCLUDED.priority_label,
		    status_id = EXCLUDED.status_id,
		    status_label = EXCLUDED.status_label,
		    started_at = EXCLUDED.started_at,
		    video_link = EXCLUDED.video_link,
		    updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, upsert,
		incident.ID,
		incident.Description,
		incident.Priority.ID,
		incident.Priority.Label,
		incident.Status.ID,
		incident.Status.Label,
		incident.StartedAt,
		incident.VideoLink,
	); err != nil {
		return fmt.Errorf("upsert incident: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM incident_updates WHERE incident_id = $1`, incident.ID); err != nil {
		return fmt.Errorf("delete incident updates: %w", err)
	}

	if len(incident.Updates) > 0 {
		insert := `
			INSERT INTO incident_updates (incident_id, id, position, status_id, status_label, description, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		batch := &pgx.Batch{}
		for i, u := range incident.Updates {
			batch.Queue(insert, incident.ID, u.ID, i, u.Status.ID, u.Status.Label, u.Description, u.CreatedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert incident updates: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
