package domain

import "time"

// Priority is an immutable catalog entry describing incident urgency.
type Priority struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Status is an immutable catalog entry describing incident progress.
type Status struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Incident is the tracked event record managed by one session.
type Incident struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	Status      Status    `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	VideoLink   string    `json:"video_link"`
	Updates     []*Update `json:"updates"`
}

// Update is a timestamped status entry in an incident's history.
type Update struct {
	ID          int64     `json:"id"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description"`
}

// FindUpdate returns the update with the given ID, or nil.
func (i *Incident) FindUpdate(id int64) *Update {
	for _, u := range i.Updates {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// Clone returns a deep copy of the incident.
// Saves run on a background goroutine and must never share update pointers
// with the live session.
func (i *Incident) Clone() *Incident {
	if i == nil {
		return nil
	}
	c := *i
	c.Updates = make([]*Update, 0, len(i.Updates))
	for _, u := range i.Updates {
		uc := *u
		c.Updates = append(c.Updates, &uc)
	}
	return &c
}
