package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	mw "github.com/lorrc/repair-desk/internal/adapters/primary/http/middleware"
	"github.com/lorrc/repair-desk/internal/adapters/primary/validation"
	"github.com/lorrc/repair-desk/internal/core/domain"
	apperrors "github.com/lorrc/repair-desk/internal/core/errors"
	"github.com/lorrc/repair-desk/internal/core/ports"
)

// DeskHandler exposes a client's workspace over HTTP.
type DeskHandler struct {
	workspaces   ports.WorkspaceProvider
	exporter     ports.Exporter
	errorHandler *ErrorHandler
	logger       *slog.Logger
	now          func() time.Time
}

// NewDeskHandler creates a new desk handler
func NewDeskHandler(
	workspaces ports.WorkspaceProvider,
	exporter ports.Exporter,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *DeskHandler {
	return &DeskHandler{
		workspaces:   workspaces,
		exporter:     exporter,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "desk"),
		now:          time.Now,
	}
}

// Router sets up a new chi Router for all desk routes.
func (h *DeskHandler) Router() http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes sets up the routing for all desk endpoints.
func (h *DeskHandler) RegisterRoutes(r chi.Router) {
	r.Get("/state", h.HandleGetState)
	r.Put("/view", h.HandleSetView)
	r.Put("/filter", h.HandleSetFilter)
	r.Put("/form", h.HandleSaveForm)

	r.Route("/tickets", func(r chi.Router) {
		r.Post("/", h.HandleCreateTicket)
		r.Post("/reload", h.HandleReload)
		r.Route("/{ticketID}", func(r chi.Router) {
			r.Patch("/status", h.HandleAdvanceStatus)
			r.Post("/rating", h.HandleStartRating)
		})
	})

	r.Put("/rating", h.HandleUpdateRating)
	r.Post("/rating/submit", h.HandleSubmitRating)

	r.Get("/export", h.HandleExport)
	r.Get("/catalog", h.HandleCatalog)
}

// --- Request DTOs ---

// AdvanceStatusRequest is the body of PATCH /tickets/{ticketID}/status.
type AdvanceStatusRequest struct {
	Status string `json:"status"`
}

// RatingDraftRequest is the body of PUT /rating.
type RatingDraftRequest struct {
	TicketID int64  `json:"ticketId"`
	Score    int    `json:"score"`
	Comment  string `json:"comment"`
}

// Validate validates the rating draft request
func (r *RatingDraftRequest) Validate() error {
	v := validation.NewValidator()
	v.Min("ticketId", r.TicketID, 1)
	v.Range("score", r.Score, 0, domain.MaxRatingScore)
	v.MaxLength("comment", r.Comment, domain.MaxDescriptionLength)
	return v.Err()
}

// ViewRequest is the body of PUT /view.
type ViewRequest struct {
	View string `json:"view"`
}

var viewChoices = []string{string(domain.ViewHome), string(domain.ViewList), string(domain.ViewRating)}

func (r *ViewRequest) Validate() error {
	v := validation.NewValidator()
	v.Required("view", r.View)
	v.OneOf("view", r.View, viewChoices)
	return v.Err()
}

// FilterRequest is the body of PUT /filter. Status is a stored label or
// one of its English aliases, in any case.
type FilterRequest struct {
	Status string `json:"status"`
}

var statusChoices = []string{
	"PENDING", "IN_PROGRESS", "INPROGRESS", "DONE",
	string(domain.StatusPending), string(domain.StatusInProgress), string(domain.StatusDone),
}

func (r *FilterRequest) Validate() error {
	v := validation.NewValidator()
	v.Required("status", r.Status)
	v.OneOf("status", strings.ToUpper(strings.TrimSpace(r.Status)), statusChoices)
	return v.Err()
}

// CatalogResponse lists the choices the request form offers.
type CatalogResponse struct {
	Departments  []domain.DepartmentGroup `json:"departments"`
	ProblemTypes []string                 `json:"problemTypes"`
}

// TransitionResponse reports what a status change did.
type TransitionResponse struct {
	Result ports.TransitionResult `json:"result"`
	State  domain.DeskState       `json:"state"`
}

// --- Handlers ---

// HandleGetState handles GET /state
func (h *DeskHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, ws.State())
}

// HandleReload handles POST /tickets/reload
func (h *DeskHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	// The workspace outlives this request; a client hanging up must not
	// leave it half loaded.
	if HandleError(w, r, ws.Load(context.WithoutCancel(r.Context()), true), h.errorHandler) {
		return
	}
	WriteSuccess(w, ws.State())
}

// HandleCreateTicket handles POST /tickets
func (h *DeskHandler) HandleCreateTicket(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	form, err := validation.DecodeJSON[domain.TicketForm](w, r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	ticket, err := ws.CreateTicket(r.Context(), *form)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteCreated(w, ticket)
}

// HandleAdvanceStatus handles PATCH /tickets/{ticketID}/status
func (h *DeskHandler) HandleAdvanceStatus(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	ticketID, err := parseTicketID(r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	req, err := validation.DecodeJSON[AdvanceStatusRequest](w, r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	if HandleError(w, r, validation.NewValidator().Required("status", req.Status).Err(), h.errorHandler) {
		return
	}
	target, err := domain.ParseStatus(req.Status)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	result, err := ws.AdvanceStatus(r.Context(), ticketID, target)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	response := TransitionResponse{Result: result, State: ws.State()}
	if result == ports.TransitionSkipped {
		WriteSuccess(w, response)
		return
	}
	WriteAccepted(w, response)
}

// HandleStartRating handles POST /tickets/{ticketID}/rating
func (h *DeskHandler) HandleStartRating(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	ticketID, err := parseTicketID(r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	draft, err := ws.StartRating(ticketID)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteSuccess(w, draft)
}

// HandleUpdateRating handles PUT /rating
func (h *DeskHandler) HandleUpdateRating(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	req, err := validation.DecodeJSON[RatingDraftRequest](w, r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	if HandleError(w, r, req.Validate(), h.errorHandler) {
		return
	}

	draft, err := ws.UpdateRatingDraft(domain.RatingDraft{
		TicketID: req.TicketID,
		Score:    req.Score,
		Comment:  req.Comment,
	})
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteSuccess(w, draft)
}

// HandleSubmitRating handles POST /rating/submit
func (h *DeskHandler) HandleSubmitRating(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	ticket, err := ws.SubmitRating(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	h.logger.InfoContext(r.Context(), "rating submitted", "ticket_id", ticket.ID, "score", ticket.Rating.Score)
	WriteSuccess(w, ticket)
}

// HandleSetView handles PUT /view
func (h *DeskHandler) HandleSetView(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	req, err := validation.DecodeJSON[ViewRequest](w, r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	if HandleError(w, r, req.Validate(), h.errorHandler) {
		return
	}
	view, err := domain.ParseView(req.View)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	ws.SetView(view)
	WriteSuccess(w, ws.State())
}

// HandleSetFilter handles PUT /filter
func (h *DeskHandler) HandleSetFilter(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	req, err := validation.DecodeJSON[FilterRequest](w, r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	if HandleError(w, r, req.Validate(), h.errorHandler) {
		return
	}
	status, err := domain.ParseStatus(req.Status)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	if HandleError(w, r, ws.SetFilter(r.Context(), status), h.errorHandler) {
		return
	}
	WriteSuccess(w, ws.State())
}

// HandleSaveForm handles PUT /form
func (h *DeskHandler) HandleSaveForm(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	form, err := validation.DecodeJSON[domain.TicketForm](w, r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	ws.SaveFormDraft(*form)
	WriteSuccess(w, ws.State().Form)
}

// HandleExport handles GET /export
func (h *DeskHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	// Render fully before writing so a failure can still be reported as JSON.
	var buf bytes.Buffer
	if HandleError(w, r, ws.ExportCompleted(&buf), h.errorHandler) {
		return
	}

	name := h.exporter.FileName(h.now())
	w.Header().Set("Content-Type", h.exporter.ContentType())
	w.Header().Set("Content-Disposition",
		`attachment; filename="repair-tickets.xlsx"; filename*=UTF-8''`+url.PathEscape(name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// HandleCatalog handles GET /catalog
func (h *DeskHandler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	departments := domain.Departments
	if q := validation.ParseStringQueryParam(r, "q"); q != nil {
		departments = domain.SearchDepartments(*q)
	}
	WriteSuccess(w, CatalogResponse{
		Departments:  departments,
		ProblemTypes: domain.ProblemTypes,
	})
}

// --- Helpers ---

func (h *DeskHandler) workspace(w http.ResponseWriter, r *http.Request) (ports.Workspace, bool) {
	clientID, ok := mw.GetClientID(r.Context())
	if !ok {
		h.errorHandler.Handle(w, r, apperrors.NewBadRequestError(apperrors.ErrBadRequest, "Missing desk client"))
		return nil, false
	}
	return h.workspaces.Acquire(clientID), true
}

func parseTicketID(r *http.Request) (int64, error) {
	return validation.ParseInt64("ticketId", chi.URLParam(r, "ticketID"))
}
