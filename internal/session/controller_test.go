package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bissquit/incident-commander/internal/catalog"
	"github.com/bissquit/incident-commander/internal/domain"
	"github.com/bissquit/incident-commander/internal/incidents"
	"github.com/bissquit/incident-commander/internal/location"
	"github.com/bissquit/incident-commander/internal/quotes"
	"github.com/bissquit/incident-commander/internal/share"
	"github.com/bissquit/incident-commander/internal/summary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2023, 1, 5, 13, 7, 0, 0, time.UTC)

type mockLoader struct {
	mu        sync.Mutex
	incidents map[string]*domain.Incident
	gates     map[string]chan struct{}
	getCalls  []string
	created   *domain.Incident
	createErr error
}

func newMockLoader(list ...*domain.Incident) *mockLoader {
	m := &mockLoader{
		incidents: make(map[string]*domain.Incident),
		gates:     make(map[string]chan struct{}),
	}
	for _, inc := range list {
		m.incidents[inc.ID] = inc
	}
	return m
}

// block makes Get(id) wait until the returned channel is closed,
// regardless of context cancellation.
func (m *mockLoader) block(id string) chan struct{} {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gates[id] = gate
	m.mu.Unlock()
	return gate
}

func (m *mockLoader) Get(_ context.Context, id string) (*domain.Incident, error) {
	m.mu.Lock()
	m.getCalls = append(m.getCalls, id)
	gate := m.gates[id]
	inc := m.incidents[id]
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if inc == nil {
		return nil, incidents.ErrIncidentNotFound
	}
	return inc.Clone(), nil
}

func (m *mockLoader) Create(_ context.Context) (*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.created.Clone(), nil
}

func (m *mockLoader) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.getCalls...)
}

type mockPersister struct {
	mu    sync.Mutex
	saved []*domain.Incident
}

func (m *mockPersister) Enqueue(incident *domain.Incident) {
	m.mu.Lock()
	m.saved = append(m.saved, incident.Clone())
	m.mu.Unlock()
}

func (m *mockPersister) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func (m *mockPersister) last() *domain.Incident {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil
	}
	return m.saved[len(m.saved)-1]
}

type mockPublisher struct {
	sent []share.Message
	err  error
}

func (m *mockPublisher) Publish(_ context.Context, msg share.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type testSession struct {
	controller *Controller
	loader     *mockLoader
	persister  *mockPersister
	router     *location.Router
	title      *DocumentTitle
}

func newTestSession(t *testing.T, loader *mockLoader, publisher Publisher) *testSession {
	t.Helper()

	serializer, err := summary.NewSerializer(time.UTC)
	require.NoError(t, err)

	s := &testSession{
		loader:    loader,
		persister: &mockPersister{},
		router:    location.NewRouter(location.Root),
		title:     NewDocumentTitle(),
	}

	config := DefaultConfig()
	config.Location = time.UTC
	config.TickInterval = time.Hour

	s.controller = NewController(config, Collaborators{
		Loader:     loader,
		Persister:  s.persister,
		Catalog:    catalog.Default(),
		Router:     s.router,
		Summarizer: serializer,
		Quotes:     quotes.NewProvider(quotes.Quote{Excerpt: "Stay calm.", Author: "Ops"}),
		Title:      s.title,
		Publisher:  publisher,
	})
	s.controller.now = func() time.Time { return testNow }

	return s
}

func waitLoad(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for incident load")
	}
}

func fixtureIncident(id string) *domain.Incident {
	investigating := domain.Status{ID: "investigating", Label: "Investigating"}
	identified := domain.Status{ID: "identified", Label: "Identified"}

	return &domain.Incident{
		ID:          id,
		Description: "Checkout errors",
		Priority:    domain.Priority{ID: "p2", Label: "P2 - High"},
		Status:      identified,
		StartedAt:   testNow.Add(-90 * time.Minute),
		VideoLink:   "https://meet.example.com/abc",
		Updates: []*domain.Update{
			{ID: 1, Status: investigating, CreatedAt: testNow.Add(-80 * time.Minute), Description: "Looking into it"},
			{ID: 2, Status: identified, CreatedAt: testNow.Add(-30 * time.Minute), Description: "Bad deploy"},
		},
	}
}

func updateIDs(inc *domain.Incident) []int64 {
	ids := make([]int64, 0, len(inc.Updates))
	for _, u := range inc.Updates {
		ids = append(ids, u.ID)
	}
	return ids
}

func TestController_Resolve_LoadsIncident(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)

	waitLoad(t, s.controller.Resolve("abc"))

	view := s.controller.View()
	require.NotNil(t, view.Incident)
	assert.Equal(t, StateLoaded, view.State)
	assert.Equal(t, "abc", view.IncidentID)
	assert.Equal(t, []int64{2, 1}, updateIDs(view.Incident))

	assert.Equal(t, "Checkout errors", view.Form.Description)
	assert.Equal(t, "p2", view.Form.PriorityID)
	require.NotNil(t, view.Form.StartedAt)
	assert.True(t, view.Form.StartedAt.Equal(testNow.Add(-90*time.Minute)))
	assert.Equal(t, "https://meet.example.com/abc", view.Form.VideoLink)
	assert.Equal(t, "investigating", view.Form.UpdateStatusID)
	assert.Empty(t, view.Form.UpdateDescription)

	assert.Equal(t, Duration{Hours: 1, Minutes: 30}, view.Duration)
	assert.Equal(t, "2023/01/05 @ 11:37 AM - Incident Commander", view.Title)
	assert.Equal(t, view.Title, s.title.Title())
	assert.Contains(t, view.Summary, "Checkout errors")
	assert.Equal(t, "Stay calm.", view.Quote.Excerpt)

	assert.Equal(t, "abc", s.router.Path())
}

func TestController_Resolve_SameIDIsNoop(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)

	waitLoad(t, s.controller.Resolve("abc"))
	waitLoad(t, s.controller.Resolve("abc"))

	assert.Equal(t, []string{"abc"}, s.loader.calls())
	assert.Equal(t, StateLoaded, s.controller.View().State)
}

func TestController_Resolve_UnknownIDResets(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
	waitLoad(t, s.controller.Resolve("abc"))

	s.router.Go("missing")
	waitLoad(t, s.controller.Resolve("missing"))

	view := s.controller.View()
	assert.Equal(t, StateUninitialized, view.State)
	assert.Equal(t, location.Root, view.IncidentID)
	assert.Nil(t, view.Incident)
	assert.Empty(t, view.Summary)
	assert.Equal(t, Duration{}, view.Duration)
	assert.Equal(t, DefaultTitle, view.Title)
	assert.Equal(t, location.Root, s.router.Path())
}

func TestController_Resolve_RootClearsWithoutLoad(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
	waitLoad(t, s.controller.Resolve("abc"))

	waitLoad(t, s.controller.Resolve(location.Root))

	view := s.controller.View()
	assert.Equal(t, StateUninitialized, view.State)
	assert.Nil(t, view.Incident)
	assert.Equal(t, Duration{}, view.Duration)
	assert.Equal(t, DefaultTitle, view.Title)
	assert.Equal(t, DefaultTitle, s.title.Title())
	assert.Equal(t, []string{"abc"}, s.loader.calls())
}

func TestController_Resolve_DiscardsStaleLoad(t *testing.T) {
	loader := newMockLoader(fixtureIncident("slow"), fixtureIncident("fast"))
	gate := loader.block("slow")
	s := newTestSession(t, loader, nil)

	slowDone := s.controller.Resolve("slow")
	assert.Equal(t, StateLoading, s.controller.View().State)

	waitLoad(t, s.controller.Resolve("fast"))
	close(gate)
	waitLoad(t, slowDone)

	view := s.controller.View()
	assert.Equal(t, "fast", view.IncidentID)
	require.NotNil(t, view.Incident)
	assert.Equal(t, "fast", view.Incident.ID)
	assert.Equal(t, "fast", s.router.Path())
}

func TestController_StartNew(t *testing.T) {
	created := incidents.NewIncident("fresh", catalog.Default(), testNow)

	t.Run("no active incident needs no confirmation", func(t *testing.T) {
		loader := newMockLoader()
		loader.created = created
		s := newTestSession(t, loader, nil)

		done, err := s.controller.StartNew(nil)
		require.NoError(t, err)
		waitLoad(t, done)

		view := s.controller.View()
		assert.Equal(t, StateLoaded, view.State)
		assert.Equal(t, "fresh", view.IncidentID)
		assert.Equal(t, "fresh", s.router.Path())
		assert.Equal(t, "p1", view.Form.PriorityID)
	})

	t.Run("declined keeps the active incident", func(t *testing.T) {
		loader := newMockLoader(fixtureIncident("abc"))
		loader.created = created
		s := newTestSession(t, loader, nil)
		waitLoad(t, s.controller.Resolve("abc"))

		var prompt string
		_, err := s.controller.StartNew(ConfirmFunc(func(p string) bool {
			prompt = p
			return false
		}))

		assert.ErrorIs(t, err, ErrNotConfirmed)
		assert.Equal(t, "Start a new incident (and clear the current incident data)?", prompt)
		assert.Equal(t, "abc", s.controller.View().IncidentID)
	})

	t.Run("confirmed replaces the active incident", func(t *testing.T) {
		loader := newMockLoader(fixtureIncident("abc"))
		loader.created = created
		s := newTestSession(t, loader, nil)
		waitLoad(t, s.controller.Resolve("abc"))

		done, err := s.controller.StartNew(Confirmed)
		require.NoError(t, err)
		waitLoad(t, done)

		view := s.controller.View()
		assert.Equal(t, "fresh", view.IncidentID)
		assert.Empty(t, view.Incident.Updates)
	})

	t.Run("identifier changed while confirming", func(t *testing.T) {
		loader := newMockLoader(fixtureIncident("abc"), fixtureIncident("def"))
		loader.created = created
		s := newTestSession(t, loader, nil)
		waitLoad(t, s.controller.Resolve("abc"))

		var switched <-chan struct{}
		_, err := s.controller.StartNew(ConfirmFunc(func(string) bool {
			switched = s.controller.Resolve("def")
			return true
		}))
		assert.ErrorIs(t, err, ErrNotConfirmed)

		waitLoad(t, switched)
		view := s.controller.View()
		assert.Equal(t, StateLoaded, view.State)
		assert.Equal(t, "def", view.IncidentID)
		assert.Equal(t, "def", view.Incident.ID)
	})

	t.Run("create failure resets the session", func(t *testing.T) {
		loader := newMockLoader()
		loader.createErr = errors.New("database down")
		s := newTestSession(t, loader, nil)

		done, err := s.controller.StartNew(nil)
		require.NoError(t, err)
		waitLoad(t, done)

		view := s.controller.View()
		assert.Equal(t, StateUninitialized, view.State)
		assert.Equal(t, location.Root, view.IncidentID)
		assert.Equal(t, location.Root, s.router.Path())
	})
}

func TestController_Start_FollowsRouter(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc"), fixtureIncident("def")), nil)
	s.router.Go("abc")

	s.controller.Start()
	t.Cleanup(s.controller.Stop)
	waitLoad(t, s.controller.Settled())
	assert.Equal(t, "abc", s.controller.View().IncidentID)

	s.router.Navigate("def")
	waitLoad(t, s.controller.Settled())
	assert.Equal(t, "def", s.controller.View().IncidentID)

	s.router.Navigate(location.Root)
	assert.Equal(t, StateUninitialized, s.controller.View().State)
}

func TestController_AddUpdate(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
	waitLoad(t, s.controller.Resolve("abc"))

	err := s.controller.AddUpdate(UpdateInput{StatusID: "monitoring", Description: "Rolled back"})
	require.NoError(t, err)

	view := s.controller.View()
	require.Len(t, view.Incident.Updates, 3)
	newest := view.Incident.Updates[0]
	assert.Equal(t, "Rolled back", newest.Description)
	assert.True(t, newest.CreatedAt.Equal(testNow))
	assert.Equal(t, "monitoring", view.Incident.Status.ID)
	assert.Equal(t, "monitoring", view.Form.UpdateStatusID)
	assert.Empty(t, view.Form.UpdateDescription)
	assert.Contains(t, view.Summary, "Rolled back")

	require.Equal(t, 1, s.persister.count())
	assert.Len(t, s.persister.last().Updates, 3)
}

func TestController_AddUpdate_UsesStagedStatus(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
	waitLoad(t, s.controller.Resolve("abc"))

	require.NoError(t, s.controller.AddUpdate(UpdateInput{Description: "Still looking"}))

	assert.Equal(t, "investigating", s.controller.View().Incident.Status.ID)
}

func TestController_AddUpdate_EmptyDescriptionIgnored(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
	waitLoad(t, s.controller.Resolve("abc"))

	require.NoError(t, s.controller.AddUpdate(UpdateInput{StatusID: "resolved"}))

	view := s.controller.View()
	assert.Len(t, view.Incident.Updates, 2)
	assert.Equal(t, "identified", view.Incident.Status.ID)
	assert.Zero(t, s.persister.count())
}

func TestController_AddUpdate_Errors(t *testing.T) {
	t.Run("no active incident", func(t *testing.T) {
		s := newTestSession(t, newMockLoader(), nil)
		err := s.controller.AddUpdate(UpdateInput{Description: "x"})
		assert.ErrorIs(t, err, ErrNoActiveIncident)
	})

	t.Run("unknown status", func(t *testing.T) {
		s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
		waitLoad(t, s.controller.Resolve("abc"))

		err := s.controller.AddUpdate(UpdateInput{StatusID: "exploded", Description: "x"})
		assert.ErrorIs(t, err, catalog.ErrStatusNotFound)
		assert.Len(t, s.controller.View().Incident.Updates, 2)
		assert.Zero(t, s.persister.count())
	})
}

func TestController_AddUpdate_UniqueIDs(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
	waitLoad(t, s.controller.Resolve("abc"))

	require.NoError(t, s.controller.AddUpdate(UpdateInput{Description: "one"}))
	require.NoError(t, s.controller.AddUpdate(UpdateInput{Description: "two"}))

	updates := s.controller.View().Incident.Updates
	require.Len(t, updates, 4)
	// Equal timestamps keep insertion order.
	assert.Equal(t, "one", updates[0].Description)
	assert.Equal(t, "two", updates[1].Description)
	assert.Equal(t, testNow.UnixMilli(), updates[0].ID)
	assert.Equal(t, testNow.UnixMilli()+1, updates[1].ID)
}

func TestController_DeleteUpdate(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
	waitLoad(t, s.controller.Resolve("abc"))

	var prompt string
	err := s.controller.DeleteUpdate(2, ConfirmFunc(func(p string) bool {
		prompt = p
		return false
	}))
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.Equal(t, "Delete: Bad deploy?", prompt)
	assert.Len(t, s.controller.View().Incident.Updates, 2)

	assert.ErrorIs(t, s.controller.DeleteUpdate(99, Confirmed), ErrUpdateNotFound)

	require.NoError(t, s.controller.DeleteUpdate(2, Confirmed))
	view := s.controller.View()
	assert.Equal(t, []int64{1}, updateIDs(view.Incident))
	assert.Equal(t, "identified", view.Incident.Status.ID)
	assert.NotContains(t, view.Summary, "Bad deploy")
	assert.Equal(t, 1, s.persister.count())
}

func TestController_DeleteUpdate_ClearsEdit(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
	waitLoad(t, s.controller.Resolve("abc"))

	require.NoError(t, s.controller.BeginEdit(1))
	require.NoError(t, s.controller.DeleteUpdate(1, Confirmed))

	assert.Nil(t, s.controller.View().Edit)
}

func TestController_Edit(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
	waitLoad(t, s.controller.Resolve("abc"))

	require.NoError(t, s.controller.BeginEdit(2))
	view := s.controller.View()
	require.NotNil(t, view.Edit)
	assert.Equal(t, int64(2), view.Edit.UpdateID)
	assert.Equal(t, "identified", view.Edit.StatusID)
	assert.Equal(t, "Bad deploy", view.Edit.Description)

	// Replacing the staging.
	require.NoError(t, s.controller.BeginEdit(1))
	assert.Equal(t, int64(1), s.controller.View().Edit.UpdateID)

	later := testNow.Add(-10 * time.Minute)
	err := s.controller.SaveEdit(EditInput{StatusID: "monitoring", Description: "Recovering", CreatedAt: &later})
	require.NoError(t, err)

	view = s.controller.View()
	assert.Nil(t, view.Edit)
	assert.Equal(t, []int64{1, 2}, updateIDs(view.Incident))
	edited := view.Incident.FindUpdate(1)
	assert.Equal(t, "Recovering", edited.Description)
	assert.Equal(t, "monitoring", edited.Status.ID)
	assert.Equal(t, 1, s.persister.count())
}

func TestController_Edit_NilDateKeepsTimestamp(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
	waitLoad(t, s.controller.Resolve("abc"))

	require.NoError(t, s.controller.BeginEdit(1))
	require.NoError(t, s.controller.SaveEdit(EditInput{StatusID: "investigating", Description: "Looking harder"}))

	edited := s.controller.View().Incident.FindUpdate(1)
	assert.True(t, edited.CreatedAt.Equal(testNow.Add(-80*time.Minute)))
	assert.Equal(t, "Looking harder", edited.Description)
}

func TestController_Edit_Errors(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
	waitLoad(t, s.controller.Resolve("abc"))

	assert.ErrorIs(t, s.controller.SaveEdit(EditInput{StatusID: "resolved"}), ErrNoEditInProgress)
	assert.ErrorIs(t, s.controller.BeginEdit(42), ErrUpdateNotFound)

	require.NoError(t, s.controller.BeginEdit(1))
	assert.ErrorIs(t, s.controller.SaveEdit(EditInput{StatusID: "nope"}), catalog.ErrStatusNotFound)
	assert.NotNil(t, s.controller.View().Edit)

	s.controller.CancelEdit()
	assert.Nil(t, s.controller.View().Edit)
	assert.Zero(t, s.persister.count())
}

func TestController_ApplyForm(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
	waitLoad(t, s.controller.Resolve("abc"))

	err := s.controller.ApplyForm(FormInput{
		Description: "Checkout down",
		PriorityID:  "p1",
		VideoLink:   "https://meet.example.com/xyz",
	})
	require.NoError(t, err)

	view := s.controller.View()
	assert.Equal(t, "Checkout down", view.Incident.Description)
	assert.Equal(t, "P1 - Critical", view.Incident.Priority.Label)
	assert.Equal(t, "https://meet.example.com/xyz", view.Incident.VideoLink)
	assert.True(t, view.Incident.StartedAt.Equal(testNow.Add(-90*time.Minute)))
	assert.Contains(t, view.Summary, "Checkout down")
	assert.Equal(t, 1, s.persister.count())

	startedAt := time.Date(2023, 1, 5, 0, 30, 0, 0, time.UTC)
	require.NoError(t, s.controller.ApplyForm(FormInput{PriorityID: "p1", StartedAt: &startedAt}))

	view = s.controller.View()
	assert.True(t, view.Incident.StartedAt.Equal(startedAt))
	assert.Equal(t, Duration{Hours: 12, Minutes: 37}, view.Duration)
	assert.Equal(t, "2023/01/05 @ 12:30 AM - Incident Commander", view.Title)
}

func TestController_ApplyForm_Errors(t *testing.T) {
	t.Run("no active incident", func(t *testing.T) {
		s := newTestSession(t, newMockLoader(), nil)
		assert.ErrorIs(t, s.controller.ApplyForm(FormInput{PriorityID: "p1"}), ErrNoActiveIncident)
	})

	t.Run("unknown priority leaves incident unchanged", func(t *testing.T) {
		s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
		waitLoad(t, s.controller.Resolve("abc"))

		err := s.controller.ApplyForm(FormInput{Description: "changed", PriorityID: "p9"})
		assert.ErrorIs(t, err, catalog.ErrPriorityNotFound)

		view := s.controller.View()
		assert.Equal(t, "Checkout errors", view.Incident.Description)
		assert.Equal(t, "p2", view.Incident.Priority.ID)
		assert.Zero(t, s.persister.count())
	})
}

func TestController_SetSummaryOptions(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
	waitLoad(t, s.controller.Resolve("abc"))

	compact := s.controller.View().Summary
	s.controller.SetSummaryOptions(1, summary.FormatFull)

	view := s.controller.View()
	assert.NotEqual(t, compact, view.Summary)
	assert.Contains(t, view.Summary, "*Incident:* Checkout errors")
	assert.Contains(t, view.Summary, "1 earlier update not shown")
	assert.Equal(t, 1, view.Form.SummarySize)
	assert.Equal(t, summary.FormatFull, view.Form.SummaryFormat)

	text, active := s.controller.Summary()
	assert.True(t, active)
	assert.Equal(t, view.Summary, text)
}

func TestController_Summary_NoIncident(t *testing.T) {
	s := newTestSession(t, newMockLoader(), nil)

	text, active := s.controller.Summary()
	assert.False(t, active)
	assert.Empty(t, text)
}

func TestController_Share(t *testing.T) {
	t.Run("no active incident", func(t *testing.T) {
		s := newTestSession(t, newMockLoader(), &mockPublisher{})
		assert.ErrorIs(t, s.controller.Share(context.Background()), ErrNoActiveIncident)
	})

	t.Run("disabled", func(t *testing.T) {
		s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
		waitLoad(t, s.controller.Resolve("abc"))
		assert.ErrorIs(t, s.controller.Share(context.Background()), share.ErrShareDisabled)
	})

	t.Run("publishes title and summary", func(t *testing.T) {
		publisher := &mockPublisher{}
		s := newTestSession(t, newMockLoader(fixtureIncident("abc")), publisher)
		waitLoad(t, s.controller.Resolve("abc"))

		require.NoError(t, s.controller.Share(context.Background()))
		require.Len(t, publisher.sent, 1)
		assert.Equal(t, "2023/01/05 @ 11:37 AM - Incident Commander", publisher.sent[0].Title)
		assert.Equal(t, s.controller.View().Summary, publisher.sent[0].Text)
	})

	t.Run("publisher error is returned", func(t *testing.T) {
		publisher := &mockPublisher{err: share.ErrRateLimited}
		s := newTestSession(t, newMockLoader(fixtureIncident("abc")), publisher)
		waitLoad(t, s.controller.Resolve("abc"))

		assert.ErrorIs(t, s.controller.Share(context.Background()), share.ErrRateLimited)
	})
}

func TestController_RefreshDuration(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
	s.controller.RefreshDuration()
	assert.Equal(t, Duration{}, s.controller.View().Duration)

	waitLoad(t, s.controller.Resolve("abc"))
	s.controller.now = func() time.Time { return testNow.Add(45 * time.Minute) }
	s.controller.RefreshDuration()

	assert.Equal(t, Duration{Hours: 2, Minutes: 15}, s.controller.View().Duration)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestController_Ticker_RefreshesDuration(t *testing.T) {
	s := newTestSession(t, newMockLoader(fixtureIncident("abc")), nil)
	clock := &testClock{now: testNow}
	s.controller.now = clock.Now
	s.controller.config.TickInterval = 10 * time.Millisecond

	waitLoad(t, s.controller.Resolve("abc"))
	s.controller.Start()
	view := s.controller.View()
	assert.Equal(t, Duration{Hours: 1, Minutes: 30}, view.Duration)
	assert.Equal(t, "2023/01/05 @ 11:37 AM - Incident Commander", view.Title)

	clock.Advance(45 * time.Minute)
	assert.Eventually(t, func() bool {
		return s.controller.View().Duration == Duration{Hours: 2, Minutes: 15}
	}, 2*time.Second, 5*time.Millisecond)

	s.controller.Stop()
	clock.Advance(time.Hour)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, Duration{Hours: 2, Minutes: 15}, s.controller.View().Duration)
}

func TestController_Stop_Twice(t *testing.T) {
	s := newTestSession(t, newMockLoader(), nil)
	s.controller.Start()

	s.controller.Stop()
	assert.NotPanics(t, s.controller.Stop)
}
