package session

import (
	"sort"
	"time"

	"github.com/bissquit/incident-commander/internal/domain"
)

// AppendUpdate adds u to the incident, mirrors its status onto the incident
// and re-sorts the history newest first.
func AppendUpdate(incident *domain.Incident, u *domain.Update) {
	incident.Updates = append(incident.Updates, u)
	incident.Status = u.Status
	SortUpdates(incident)
}

// RemoveUpdate removes the first update identical to u and reports whether
// one was found. The remaining order is kept and the incident status is not
// rolled back.
func RemoveUpdate(incident *domain.Incident, u *domain.Update) bool {
	for i, existing := range incident.Updates {
		if existing == u {
			incident.Updates = append(incident.Updates[:i], incident.Updates[i+1:]...)
			return true
		}
	}
	return false
}

// EditUpdate applies status and description to u, and createdAt when it is
// not nil, then re-sorts the incident history.
func EditUpdate(incident *domain.Incident, u *domain.Update, status domain.Status, description string, createdAt *time.Time) {
	u.Status = status
	u.Description = description
	if createdAt != nil {
		u.CreatedAt = *createdAt
	}
	SortUpdates(incident)
}

// SortUpdates orders updates by CreatedAt descending.
// The sort is stable: updates with equal timestamps keep their relative order.
func SortUpdates(incident *domain.Incident) {
	sort.SliceStable(incident.Updates, func(i, j int) bool {
		return incident.Updates[i].CreatedAt.After(incident.Updates[j].CreatedAt)
	})
}
