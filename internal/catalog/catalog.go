// Package catalog provides the immutable priority and status lists an incident refers to.
package catalog

import (
	"fmt"

	"github.com/bissquit/incident-commander/internal/domain"
)

// Catalog holds ordered priorities and statuses with lookup by ID.
// It is immutable once built and safe for concurrent use.
type Catalog struct {
	priorities   []domain.Priority
	statuses     []domain.Status
	priorityByID map[string]domain.Priority
	statusByID   map[string]domain.Status
}

// New builds a catalog. Both lists must be non-empty with unique, non-empty IDs.
func New(priorities []domain.Priority, statuses []domain.Status) (*Catalog, error) {
	if len(priorities) == 0 || len(statuses) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		priorities:   append([]domain.Priority(nil), priorities...),
		statuses:     append([]domain.Status(nil), statuses...),
		priorityByID: make(map[string]domain.Priority, len(priorities)),
		statusByID:   make(map[string]domain.Status, len(statuses)),
	}

	for _, p := range priorities {
		if p.ID == "" {
			return nil, fmt.Errorf("priority %q: empty id", p.Label)
		}
		if _, exists := c.priorityByID[p.ID]; exists {
			return nil, fmt.Errorf("priority %s: %w", p.ID, ErrDuplicateID)
		}
		c.priorityByID[p.ID] = p
	}

	for _, s := range statuses {
		if s.ID == "" {
			return nil, fmt.Errorf("status %q: empty id", s.Label)
		}
		if _, exists := c.statusByID[s.ID]; exists {
			return nil, fmt.Errorf("status %s: %w", s.ID, ErrDuplicateID)
		}
		c.statusByID[s.ID] = s
	}

	return c, nil
}

// DefaultPriorities returns the built-in priority list.
func DefaultPriorities() []domain.Priority {
	return []domain.Priority{
		{ID: "p1", Label: "P1 - Critical"},
		{ID: "p2", Label: "P2 - High"},
		{ID: "p3", Label: "P3 - Moderate"},
		{ID: "p4", Label: "P4 - Low"},
		{ID: "p5", Label: "P5 - Informational"},
	}
}

// DefaultStatuses returns the built-in status list.
func DefaultStatuses() []domain.Status {
	return []domain.Status{
		{ID: "investigating", Label: "Investigating"},
		{ID: "identified", Label: "Identified"},
		{ID: "monitoring", Label: "Monitoring"},
		{ID: "resolved", Label: "Resolved"},
	}
}

// Default returns a catalog with the built-in lists.
func Default() *Catalog {
	c, err := New(DefaultPriorities(), DefaultStatuses())
	if err != nil {
		panic(fmt.Sprintf("default catalog: %v", err))
	}
	return c
}

// Priorities returns a copy of the ordered priority list.
func (c *Catalog) Priorities() []domain.Priority {
	return append([]domain.Priority(nil), c.priorities...)
}

// Statuses returns a copy of the ordered status list.
func (c *Catalog) Statuses() []domain.Status {
	return append([]domain.Status(nil), c.statuses...)
}

// Priority looks up a priority by ID.
func (c *Catalog) Priority(id string) (domain.Priority, error) {
	p, ok := c.priorityByID[id]
	if !ok {
		return domain.Priority{}, fmt.Errorf("priority %q: %w", id, ErrPriorityNotFound)
	}
	return p, nil
}

// Status looks up a status by ID.
func (c *Catalog) Status(id string) (domain.Status, error) {
	s, ok := c.statusByID[id]
	if !ok {
		return domain.Status{}, fmt.Errorf("status %q: %w", id, ErrStatusNotFound)
	}
	return s, nil
}

// DefaultPriority returns the first priority in the catalog.
func (c *Catalog) DefaultPriority() domain.Priority {
	return c.priorities[0]
}

// DefaultStatus returns the first status in the catalog.
func (c *Catalog) DefaultStatus() domain.Status {
	return c.statuses[0]
}
