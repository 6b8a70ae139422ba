// Package session implements the incident session: which incident is
// active, how it is loaded or created, how its update history is edited,
// and the derived duration, title and summary kept in step with it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/incident-commander/internal/domain"
	"github.com/bissquit/incident-commander/internal/location"
	"github.com/bissquit/incident-commander/internal/quotes"
	"github.com/bissquit/incident-commander/internal/share"
	"github.com/bissquit/incident-commander/internal/summary"
)

// NewIncidentID is the sentinel identifier held while a new incident is
// being created. It never collides with a stored incident ID.
const NewIncidentID = "new"

// State is the lifecycle state of the session.
type State string

// Session states.
const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateCreating      State = "creating"
	StateLoaded        State = "loaded"
)

// Loader loads and creates incidents.
type Loader interface {
	Get(ctx context.Context, id string) (*domain.Incident, error)
	Create(ctx context.Context) (*domain.Incident, error)
}

// Persister accepts incident snapshots for fire-and-forget saving.
type Persister interface {
	Enqueue(incident *domain.Incident)
}

// Catalog resolves priorities and statuses by ID.
type Catalog interface {
	Priority(id string) (domain.Priority, error)
	Status(id string) (domain.Status, error)
	DefaultPriority() domain.Priority
	DefaultStatus() domain.Status
}

// Router exposes the routable identifier of the active incident.
type Router interface {
	Path() string
	Subscribe(fn func(path string)) func()
	Go(path string)
}

// Summarizer renders an incident into shareable text.
type Summarizer interface {
	Serialize(incident *domain.Incident, size int, format string) string
}

// QuoteSource supplies the cosmetic header quote.
type QuoteSource interface {
	Random() quotes.Quote
}

// Publisher posts a summary to chat.
type Publisher interface {
	Publish(ctx context.Context, msg share.Message) error
}

// Confirmer asks the operator to approve a destructive operation.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(prompt string) bool {
	return f(prompt)
}

// Confirmed approves every prompt.
var Confirmed Confirmer = ConfirmFunc(func(string) bool { return true })

// Config contains session configuration.
type Config struct {
	// TickInterval is how often the duration is recomputed.
	TickInterval time.Duration
	// LoadTimeout bounds a single load or create call.
	LoadTimeout time.Duration
	// Location is the time zone used to render the title.
	Location *time.Location
	// SummarySize and SummaryFormat are the initial summary options.
	SummarySize   int
	SummaryFormat string
}

// DefaultConfig returns default session configuration.
func DefaultConfig() Config {
	return Config{
		TickInterval:  30 * time.Second,
		LoadTimeout:   15 * time.Second,
		Location:      time.Local,
		SummarySize:   summary.DefaultSize,
		SummaryFormat: summary.FormatCompact,
	}
}

// Collaborators groups the components the controller depends on.
type Collaborators struct {
	Loader     Loader
	Persister  Persister
	Catalog    Catalog
	Router     Router
	Summarizer Summarizer
	Quotes     QuoteSource
	Title      TitleSink

	// Publisher is optional; without it Share returns share.ErrShareDisabled.
	Publisher Publisher
}

// Form stages the editable incident fields and the next update.
type Form struct {
	Description       string     `json:"description"`
	PriorityID        string     `json:"priority_id"`
	StartedAt         *time.Time `json:"started_at"`
	VideoLink         string     `json:"video_link"`
	UpdateStatusID    string     `json:"update_status_id"`
	UpdateDescription string     `json:"update_description"`
	SummarySize       int        `json:"summary_size"`
	SummaryFormat     string     `json:"summary_format"`
}

// EditForm stages the single update being edited.
type EditForm struct {
	UpdateID    int64      `json:"update_id"`
	StatusID    string     `json:"status_id"`
	CreatedAt   *time.Time `json:"created_at"`
	Description string     `json:"description"`
}

// FormInput carries incident field changes.
type FormInput struct {
	Description string
	PriorityID  string
	StartedAt   *time.Time
	VideoLink   string
}

// UpdateInput carries a new update. An empty StatusID uses the staged status.
type UpdateInput struct {
	StatusID    string
	Description string
}

// EditInput carries changes to the update being edited.
// A nil CreatedAt keeps the existing timestamp.
type EditInput struct {
	StatusID    string
	Description string
	CreatedAt   *time.Time
}

// View is a point-in-time copy of the session state.
type View struct {
	State      State            `json:"state"`
	IncidentID string           `json:"incident_id"`
	Incident   *domain.Incident `json:"incident"`
	Form       Form             `json:"form"`
	Edit       *EditForm        `json:"edit"`
	Duration   Duration         `json:"duration"`
	Title      string           `json:"title"`
	Summary    string           `json:"summary"`
	Quote      quotes.Quote     `json:"quote"`
}

type pendingLoad struct {
	id     string
	kind   string
	cancel context.CancelFunc
	done   chan struct{}
}

type editStage struct {
	update *domain.Update
	form   EditForm
}

// Controller owns the active incident. Every exported method is safe for
// concurrent use; a single mutex serialises them.
type Controller struct {
	config Config
	deps   Collaborators
	now    func() time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu           sync.Mutex
	state        State
	activeID     string
	incident     *domain.Incident
	form         Form
	edit         *editStage
	duration     Duration
	title        string
	summary      string
	quote        quotes.Quote
	pending      *pendingLoad
	lastUpdateID int64

	unsubscribe func()
	stopCh      chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewController creates a session controller in the uninitialized state.
func NewController(config Config, deps Collaborators) *Controller {
	defaults := DefaultConfig()
	if config.TickInterval <= 0 {
		config.TickInterval = defaults.TickInterval
	}
	if config.LoadTimeout <= 0 {
		config.LoadTimeout = defaults.LoadTimeout
	}
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if config.SummaryFormat == "" {
		config.SummaryFormat = defaults.SummaryFormat
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())

	return &Controller{
		config:     config,
		deps:       deps,
		now:        time.Now,
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		state:      StateUninitialized,
		title:      DefaultTitle,
		quote:      deps.Quotes.Random(),
		form: Form{
			PriorityID:     deps.Catalog.DefaultPriority().ID,
			UpdateStatusID: deps.Catalog.DefaultStatus().ID,
			SummarySize:    config.SummarySize,
			SummaryFormat:  config.SummaryFormat,
		},
		stopCh: make(chan struct{}),
	}
}

// Start publishes the default title, resolves the router's current path,
// subscribes to path changes and starts the duration ticker.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.incident == nil {
		c.setTitleLocked(DefaultTitle)
	} else {
		c.refreshTitleLocked()
	}
	c.mu.Unlock()

	if path := c.deps.Router.Path(); path != location.Root {
		c.Resolve(path)
	}

	c.unsubscribe = c.deps.Router.Subscribe(func(path string) {
		c.Resolve(path)
	})

	c.RefreshDuration()

	c.wg.Add(1)
	go c.runTicker()

	slog.Info("incident session started", "tick_interval", c.config.TickInterval)
}

// Stop cancels the ticker, the router subscription and any in-flight load.
// Calls after the first do nothing.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		close(c.stopCh)
		c.wg.Wait()

		c.mu.Lock()
		c.cancelPendingLocked()
		c.mu.Unlock()
		c.baseCancel()

		slog.Info("incident session stopped")
	})
}

func (c *Controller) runTicker() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.RefreshDuration()
		}
	}
}

// RefreshDuration recomputes the elapsed duration. It is a no-op result of
// zero when no incident is active.
func (c *Controller) RefreshDuration() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshDurationLocked()
}

// Resolve makes id the active identifier and loads its incident.
// Resolving the identifier that is already active does nothing; resolving
// location.Root returns the session to the uninitialized state. The
// returned channel is closed once the load has been applied or discarded.
func (c *Controller) Resolve(id string) <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == c.activeID {
		return closedChan()
	}

	c.cancelPendingLocked()
	c.activeID = id
	c.clearIncidentLocked()

	if id == location.Root {
		c.state = StateUninitialized
		return closedChan()
	}

	c.state = StateLoading
	return c.startLoadLocked(id, "load", func(ctx context.Context) (*domain.Incident, error) {
		return c.deps.Loader.Get(ctx, id)
	})
}

// StartNew creates a new incident and makes it active. When an incident is
// already selected confirm must approve the switch, otherwise
// ErrNotConfirmed is returned and nothing changes. The approval only covers
// the identifier that was active when it was asked; if that changed in the
// meantime ErrNotConfirmed is returned as well.
func (c *Controller) StartNew(confirm Confirmer) (<-chan struct{}, error) {
	c.mu.Lock()
	active := c.activeID
	c.mu.Unlock()

	if active != location.Root && !isConfirmed(confirm, "Start a new incident (and clear the current incident data)?") {
		return nil, ErrNotConfirmed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeID != active {
		return nil, ErrNotConfirmed
	}

	c.cancelPendingLocked()
	c.activeID = NewIncidentID
	c.clearIncidentLocked()
	c.state = StateCreating

	return c.startLoadLocked(NewIncidentID, "create", c.deps.Loader.Create), nil
}

func (c *Controller) startLoadLocked(id, kind string, fn func(ctx context.Context) (*domain.Incident, error)) <-chan struct{} {
	ctx, cancel := context.WithTimeout(c.baseCtx, c.config.LoadTimeout)
	p := &pendingLoad{
		id:     id,
		kind:   kind,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.pending = p

	go func() {
		defer close(p.done)
		defer cancel()

		incident, err := fn(ctx)
		if err == nil && incident == nil {
			err = errors.New("collaborator returned no incident")
		}
		c.completeLoad(p, incident, err)
	}()

	return p.done
}

func (c *Controller) completeLoad(p *pendingLoad, incident *domain.Incident, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != p {
		recordLoad(p.kind, "stale")
		slog.Debug("discarding superseded incident load", "kind", p.kind, "requested_id", p.id)
		return
	}
	c.pending = nil

	if err != nil {
		recordLoad(p.kind, "failure")
		slog.Error("incident failed to load",
			"kind", p.kind,
			"incident_id", p.id,
			"error", err,
		)
		c.activeID = location.Root
		c.clearIncidentLocked()
		c.state = StateUninitialized
		c.deps.Router.Go(location.Root)
		return
	}

	recordLoad(p.kind, "success")
	c.adoptLocked(incident)
	c.deps.Router.Go(c.activeID)

	slog.Info("incident active", "kind", p.kind, "incident_id", c.activeID)
}

func (c *Controller) adoptLocked(incident *domain.Incident) {
	if incident.StartedAt.IsZero() {
		incident.StartedAt = c.now()
	}
	SortUpdates(incident)

	c.incident = incident
	c.activeID = incident.ID
	c.state = StateLoaded

	startedAt := incident.StartedAt
	c.form.Description = incident.Description
	c.form.PriorityID = incident.Priority.ID
	c.form.StartedAt = &startedAt
	c.form.VideoLink = incident.VideoLink
	c.form.UpdateStatusID = c.deps.Catalog.DefaultStatus().ID
	c.form.UpdateDescription = ""

	c.regenerateSummaryLocked()
	c.quote = c.deps.Quotes.Random()
	c.refreshDurationLocked()
	c.refreshTitleLocked()
}

func (c *Controller) clearIncidentLocked() {
	c.incident = nil
	c.edit = nil
	c.summary = ""
	c.refreshDurationLocked()
	if c.title != DefaultTitle {
		c.setTitleLocked(DefaultTitle)
	}
}

func (c *Controller) cancelPendingLocked() {
	if c.pending != nil {
		c.pending.cancel()
		c.pending = nil
	}
}

// ApplyForm copies the staged incident fields onto the active incident.
// A nil StartedAt keeps the current start time. An unknown priority fails
// with catalog.ErrPriorityNotFound and leaves the incident unchanged.
func (c *Controller) ApplyForm(in FormInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.incident == nil {
		return ErrNoActiveIncident
	}

	priority, err := c.deps.Catalog.Priority(in.PriorityID)
	if err != nil {
		return fmt.Errorf("apply form: %w", err)
	}

	startedAt := c.incident.StartedAt
	if in.StartedAt != nil && !in.StartedAt.IsZero() {
		startedAt = *in.StartedAt
	}

	c.form.Description = in.Description
	c.form.PriorityID = priority.ID
	c.form.StartedAt = &startedAt
	c.form.VideoLink = in.VideoLink

	c.incident.Description = in.Description
	c.incident.Priority = priority
	c.incident.StartedAt = startedAt
	c.incident.VideoLink = in.VideoLink
	c.deps.Persister.Enqueue(c.incident)

	c.refreshDurationLocked()
	c.refreshTitleLocked()
	c.regenerateSummaryLocked()

	recordMutation("apply_form")
	return nil
}

// AddUpdate appends a new update created now. An empty description is
// ignored without error.
func (c *Controller) AddUpdate(in UpdateInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.incident == nil {
		return ErrNoActiveIncident
	}

	statusID := in.StatusID
	if statusID == "" {
		statusID = c.form.UpdateStatusID
	}
	c.form.UpdateDescription = in.Description

	if in.Description == "" {
		return nil
	}

	status, err := c.deps.Catalog.Status(statusID)
	if err != nil {
		return fmt.Errorf("add update: %w", err)
	}

	update := &domain.Update{
		ID:          c.nextUpdateIDLocked(),
		Status:      status,
		CreatedAt:   c.now(),
		Description: in.Description,
	}
	AppendUpdate(c.incident, update)

	// The status selection is kept for the next update.
	c.form.UpdateStatusID = status.ID
	c.form.UpdateDescription = ""

	c.afterUpdateChangeLocked("add_update")
	return nil
}

// DeleteUpdate removes an update after confirm approves it.
func (c *Controller) DeleteUpdate(updateID int64, confirm Confirmer) error {
	c.mu.Lock()
	if c.incident == nil {
		c.mu.Unlock()
		return ErrNoActiveIncident
	}
	update := c.incident.FindUpdate(updateID)
	if update == nil {
		c.mu.Unlock()
		return ErrUpdateNotFound
	}
	prompt := fmt.Sprintf("Delete: %s?", update.Description)
	c.mu.Unlock()

	if !isConfirmed(confirm, prompt) {
		return ErrNotConfirmed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// The incident may have been switched while waiting for confirmation.
	if c.incident == nil || !RemoveUpdate(c.incident, update) {
		return ErrUpdateNotFound
	}
	if c.edit != nil && c.edit.update == update {
		c.edit = nil
	}

	c.afterUpdateChangeLocked("delete_update")
	return nil
}

// BeginEdit stages an update for editing, replacing any previous staging.
func (c *Controller) BeginEdit(updateID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.incident == nil {
		return ErrNoActiveIncident
	}
	update := c.incident.FindUpdate(updateID)
	if update == nil {
		return ErrUpdateNotFound
	}

	createdAt := update.CreatedAt
	c.edit = &editStage{
		update: update,
		form: EditForm{
			UpdateID:    update.ID,
			StatusID:    update.Status.ID,
			CreatedAt:   &createdAt,
			Description: update.Description,
		},
	}
	return nil
}

// CancelEdit discards the staged edit.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	c.edit = nil
	c.mu.Unlock()
}

// SaveEdit applies the input to the staged update and clears the staging.
func (c *Controller) SaveEdit(in EditInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.incident == nil {
		return ErrNoActiveIncident
	}
	if c.edit == nil {
		return ErrNoEditInProgress
	}

	status, err := c.deps.Catalog.Status(in.StatusID)
	if err != nil {
		return fmt.Errorf("save edit: %w", err)
	}

	createdAt := in.CreatedAt
	if createdAt != nil && createdAt.IsZero() {
		createdAt = nil
	}

	EditUpdate(c.incident, c.edit.update, status, in.Description, createdAt)
	c.edit = nil

	c.afterUpdateChangeLocked("edit_update")
	return nil
}

// SetSummaryOptions changes the summary size and format and regenerates it.
func (c *Controller) SetSummaryOptions(size int, format string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.form.SummarySize = size
	c.form.SummaryFormat = format
	c.regenerateSummaryLocked()
}

// Share posts the current summary, titled with the session title.
func (c *Controller) Share(ctx context.Context) error {
	c.mu.Lock()
	active := c.incident != nil
	msg := share.Message{Title: c.title, Text: c.summary}
	c.mu.Unlock()

	if !active {
		return ErrNoActiveIncident
	}
	if c.deps.Publisher == nil {
		recordShare("disabled")
		return share.ErrShareDisabled
	}

	if err := c.deps.Publisher.Publish(ctx, msg); err != nil {
		switch {
		case errors.Is(err, share.ErrRateLimited):
			recordShare("rate_limited")
		case errors.Is(err, share.ErrShareDisabled):
			recordShare("disabled")
		default:
			recordShare("failure")
		}
		return fmt.Errorf("share summary: %w", err)
	}

	recordShare("success")
	return nil
}

// Settled returns a channel that is closed once the load or create in
// flight at the time of the call has been applied or discarded.
func (c *Controller) Settled() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return closedChan()
	}
	return c.pending.done
}

// Summary returns the current summary text and whether an incident is active.
func (c *Controller) Summary() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary, c.incident != nil
}

// View returns a copy of the session state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		State:      c.state,
		IncidentID: c.activeID,
		Incident:   c.incident.Clone(),
		Form:       c.form,
		Duration:   c.duration,
		Title:      c.title,
		Summary:    c.summary,
		Quote:      c.quote,
	}
	if c.form.StartedAt != nil {
		startedAt := *c.form.StartedAt
		v.Form.StartedAt = &startedAt
	}
	if c.edit != nil {
		edit := c.edit.form
		v.Edit = &edit
	}
	return v
}

func (c *Controller) afterUpdateChangeLocked(operation string) {
	c.deps.Persister.Enqueue(c.incident)
	c.regenerateSummaryLocked()
	recordMutation(operation)
}

func (c *Controller) regenerateSummaryLocked() {
	if c.incident == nil {
		c.summary = ""
		return
	}
	c.summary = c.deps.Summarizer.Serialize(c.incident, c.form.SummarySize, c.form.SummaryFormat)
}

func (c *Controller) refreshDurationLocked() {
	c.duration = ComputeDuration(c.incident, c.now())
}

func (c *Controller) refreshTitleLocked() {
	if c.incident == nil {
		return
	}
	c.setTitleLocked(FormatTitle(c.incident.StartedAt.In(c.config.Location)))
}

func (c *Controller) setTitleLocked(title string) {
	c.title = title
	c.deps.Title.SetTitle(title)
}

// nextUpdateIDLocked derives an ID from the creation time, bumped so that it
// is strictly increasing and unused within the active incident.
func (c *Controller) nextUpdateIDLocked() int64 {
	id := c.now().UnixMilli()
	if id <= c.lastUpdateID {
		id = c.lastUpdateID + 1
	}
	for c.incident.FindUpdate(id) != nil {
		id++
	}
	c.lastUpdateID = id
	return id
}

func isConfirmed(confirm Confirmer, prompt string) bool {
	return confirm != nil && confirm.Confirm(prompt)
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
