package session

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bissquit/incident-commander/internal/catalog"
	"github.com/bissquit/incident-commander/internal/domain"
	"github.com/bissquit/incident-commander/internal/location"
	"github.com/bissquit/incident-commander/internal/pkg/ctxlog"
	"github.com/bissquit/incident-commander/internal/pkg/httputil"
	"github.com/bissquit/incident-commander/internal/share"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrNotConfirmed, Status: http.StatusConflict, Message: "operation requires confirmation"},
	{Error: ErrNoActiveIncident, Status: http.StatusConflict, Message: "no active incident"},
	{Error: ErrNoEditInProgress, Status: http.StatusConflict, Message: "no update is being edited"},
	{Error: ErrUpdateNotFound, Status: http.StatusNotFound, Message: "update not found"},
	{Error: catalog.ErrPriorityNotFound, Status: http.StatusBadRequest, Message: "unknown priority"},
	{Error: catalog.ErrStatusNotFound, Status: http.StatusBadRequest, Message: "unknown status"},
	{Error: share.ErrShareDisabled, Status: http.StatusServiceUnavailable, Message: "sharing is not configured"},
	{Error: share.ErrRateLimited, Status: http.StatusTooManyRequests, Message: "share rate limit exceeded, try again later"},
	{Error: share.ErrEmptyMessage, Status: http.StatusConflict, Message: "nothing to share"},
	{Error: share.ErrUnavailable, Status: http.StatusServiceUnavailable, Message: "chat is temporarily unavailable, try again later"},
	{Error: share.ErrDelivery, Status: http.StatusBadGateway, Message: "share delivery failed"},
}

// Navigator changes the session location from outside the controller.
type Navigator interface {
	Navigate(path string)
}

// CatalogLister lists the selectable priorities and statuses.
type CatalogLister interface {
	Priorities() []domain.Priority
	Statuses() []domain.Status
}

// Handler handles HTTP requests for the incident session.
type Handler struct {
	controller *Controller
	navigator  Navigator
	catalog    CatalogLister
	validator  *validator.Validate
}

// NewHandler creates a new session handler.
func NewHandler(controller *Controller, navigator Navigator, catalog CatalogLister) *Handler {
	return &Handler{
		controller: controller,
		navigator:  navigator,
		catalog:    catalog,
		validator:  validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes for the session.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session", h.GetSession)
	r.Put("/location", h.Navigate)
	r.Get("/catalog", h.GetCatalog)

	r.Post("/incidents", h.StartIncident)

	r.Route("/incident", func(r chi.Router) {
		r.Put("/", h.ApplyForm)
		r.Post("/updates", h.AddUpdate)
		r.Delete("/updates/{id}", h.DeleteUpdate)
		r.Post("/updates/{id}/edit", h.BeginEdit)
		r.Put("/edit", h.SaveEdit)
		r.Delete("/edit", h.CancelEdit)
	})

	r.Route("/summary", func(r chi.Router) {
		r.Get("/", h.GetSummary)
		r.Put("/options", h.SetSummaryOptions)
		r.Post("/share", h.Share)
	})
}

// NavigateRequest represents the request body for changing the location.
type NavigateRequest struct {
	Path string `json:"path" validate:"max=255"`
}

// ApplyFormRequest represents the request body for updating incident fields.
type ApplyFormRequest struct {
	Description string     `json:"description" validate:"max=10000"`
	PriorityID  string     `json:"priority_id" validate:"required"`
	StartedAt   *time.Time `json:"started_at"`
	VideoLink   string     `json:"video_link" validate:"omitempty,url"`
}

// AddUpdateRequest represents the request body for adding an update.
// An empty description is accepted and ignored.
type AddUpdateRequest struct {
	StatusID    string `json:"status_id"`
	Description string `json:"description" validate:"max=10000"`
}

// SaveEditRequest represents the request body for saving the staged edit.
type SaveEditRequest struct {
	StatusID    string     `json:"status_id" validate:"required"`
	Description string     `json:"description" validate:"max=10000"`
	CreatedAt   *time.Time `json:"created_at"`
}

// SummaryOptionsRequest represents the request body for summary options.
type SummaryOptionsRequest struct {
	Size   int    `json:"size" validate:"min=0,max=1000"`
	Format string `json:"format" validate:"required,oneof=compact full"`
}

// CatalogResponse lists the catalog entries.
type CatalogResponse struct {
	Priorities []domain.Priority `json:"priorities"`
	Statuses   []domain.Status   `json:"statuses"`
}

// GetSession handles GET /session request.
func (h *Handler) GetSession(w http.ResponseWriter, _ *http.Request) {
	httputil.Success(w, http.StatusOK, h.controller.View())
}

// Navigate handles PUT /location request.
// It waits for the resulting load before responding.
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	path := location.Normalize(req.Path)
	ctxlog.FromContext(r.Context()).Info("session location changed", "path", path)
	h.navigator.Navigate(path)
	waitFor(r.Context(), h.controller.Settled())

	view := h.controller.View()
	if path != location.Root && view.State == StateUninitialized {
		httputil.Error(w, http.StatusNotFound, "incident could not be loaded")
		return
	}

	httputil.Success(w, http.StatusOK, view)
}

// StartIncident handles POST /incidents request.
// Replacing an active incident requires ?confirm=true.
func (h *Handler) StartIncident(w http.ResponseWriter, r *http.Request) {
	done, err := h.controller.StartNew(confirmer(r))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	waitFor(r.Context(), done)

	view := h.controller.View()
	if view.State == StateUninitialized {
		httputil.Error(w, http.StatusInternalServerError, "incident could not be created")
		return
	}

	httputil.Success(w, http.StatusCreated, view)
}

// ApplyForm handles PUT /incident request.
func (h *Handler) ApplyForm(w http.ResponseWriter, r *http.Request) {
	var req ApplyFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	err := h.controller.ApplyForm(FormInput{
		Description: req.Description,
		PriorityID:  req.PriorityID,
		StartedAt:   req.StartedAt,
		VideoLink:   req.VideoLink,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, h.controller.View())
}

// AddUpdate handles POST /incident/updates request.
func (h *Handler) AddUpdate(w http.ResponseWriter, r *http.Request) {
	var req AddUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	err := h.controller.AddUpdate(UpdateInput{
		StatusID:    req.StatusID,
		Description: req.Description,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, h.controller.View())
}

// DeleteUpdate handles DELETE /incident/updates/{id} request.
// Requires ?confirm=true.
func (h *Handler) DeleteUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := updateID(w, r)
	if !ok {
		return
	}

	if err := h.controller.DeleteUpdate(id, confirmer(r)); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, h.controller.View())
}

// BeginEdit handles POST /incident/updates/{id}/edit request.
func (h *Handler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := updateID(w, r)
	if !ok {
		return
	}

	if err := h.controller.BeginEdit(id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, h.controller.View())
}

// SaveEdit handles PUT /incident/edit request.
func (h *Handler) SaveEdit(w http.ResponseWriter, r *http.Request) {
	var req SaveEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	err := h.controller.SaveEdit(EditInput{
		StatusID:    req.StatusID,
		Description: req.Description,
		CreatedAt:   req.CreatedAt,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, h.controller.View())
}

// CancelEdit handles DELETE /incident/edit request.
func (h *Handler) CancelEdit(w http.ResponseWriter, _ *http.Request) {
	h.controller.CancelEdit()
	httputil.Success(w, http.StatusOK, h.controller.View())
}

// GetSummary handles GET /summary request.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	text, active := h.controller.Summary()
	if !active {
		httputil.HandleError(r.Context(), w, ErrNoActiveIncident, errorMappings)
		return
	}

	httputil.Text(w, http.StatusOK, text)
}

// SetSummaryOptions handles PUT /summary/options request.
func (h *Handler) SetSummaryOptions(w http.ResponseWriter, r *http.Request) {
	var req SummaryOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	h.controller.SetSummaryOptions(req.Size, req.Format)
	httputil.Success(w, http.StatusOK, h.controller.View())
}

// Share handles POST /summary/share request.
func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Share(r.Context()); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.NoContent(w)
}

// GetCatalog handles GET /catalog request.
func (h *Handler) GetCatalog(w http.ResponseWriter, _ *http.Request) {
	httputil.Success(w, http.StatusOK, CatalogResponse{
		Priorities: h.catalog.Priorities(),
		Statuses:   h.catalog.Statuses(),
	})
}

func updateID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid update id")
		return 0, false
	}
	return id, true
}

// confirmer approves only when the request carries confirm=true.
func confirmer(r *http.Request) Confirmer {
	if r.URL.Query().Get("confirm") == "true" {
		return Confirmed
	}
	return nil
}

func waitFor(ctx context.Context, done <-chan struct{}) {
	select {
	case <-done:
	case <-ctx.Done():
	}
}
