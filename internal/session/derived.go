package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/bissquit/incident-commander/internal/domain"
)

// DefaultTitle is the document title shown when no incident is active.
const DefaultTitle = "Incident Commander"

// Duration is the elapsed time since an incident started, at minute granularity.
type Duration struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// ComputeDuration returns the time elapsed between incident.StartedAt and now.
// A nil incident or a start time in the future yields zero.
func ComputeDuration(incident *domain.Incident, now time.Time) Duration {
	if incident == nil || incident.StartedAt.After(now) {
		return Duration{}
	}

	deltaSeconds := int64(now.Sub(incident.StartedAt) / time.Second)
	hours := deltaSeconds / 3600
	minutes := deltaSeconds/60 - hours*60

	return Duration{Hours: int(hours), Minutes: int(minutes)}
}

// FormatTitle renders the window title for an incident started at t,
// e.g. "2023/01/05 @ 01:07 PM - Incident Commander".
func FormatTitle(t time.Time) string {
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}

	period := "PM"
	if t.Hour() < 12 {
		period = "AM"
	}

	return fmt.Sprintf("%04d/%02d/%02d @ %02d:%02d %s - %s",
		t.Year(), int(t.Month()), t.Day(), hour, t.Minute(), period, DefaultTitle)
}

// TitleSink receives the document title whenever it changes.
// Implementations must not call back into the controller.
type TitleSink interface {
	SetTitle(title string)
}

// DocumentTitle is a TitleSink holding the latest title in memory.
type DocumentTitle struct {
	mu    sync.RWMutex
	title string
}

// NewDocumentTitle creates a sink initialised with DefaultTitle.
func NewDocumentTitle() *DocumentTitle {
	return &DocumentTitle{title: DefaultTitle}
}

// SetTitle stores the title.
func (d *DocumentTitle) SetTitle(title string) {
	d.mu.Lock()
	d.title = title
	d.mu.Unlock()
}

// Title returns the latest title.
func (d *DocumentTitle) Title() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.title
}
