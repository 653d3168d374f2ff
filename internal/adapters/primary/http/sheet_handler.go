package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lorrc/repair-desk/internal/adapters/primary/validation"
	"github.com/lorrc/repair-desk/internal/core/domain"
	"github.com/lorrc/repair-desk/internal/core/ports"
)

// SheetHandler serves the spreadsheet endpoint protocol from a local
// repository, for development without the hosted sheet.
type SheetHandler struct {
	repo         ports.SheetRepository
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

func NewSheetHandler(repo ports.SheetRepository, errorHandler *ErrorHandler, logger *slog.Logger) *SheetHandler {
	return &SheetHandler{
		repo:         repo,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "sheet"),
	}
}

// RegisterRoutes sets up GET and POST on the root path.
func (h *SheetHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Post("/", h.HandleUpsert)
}

// SheetUpsertRequest is the {action, ...ticket} body the desk posts.
type SheetUpsertRequest struct {
	Action ports.UpsertAction `json:"action"`
	domain.Ticket
}

// Validate validates the upsert request
func (r *SheetUpsertRequest) Validate() error {
	v := validation.NewValidator()
	v.Custom("action", r.Action.IsValid(), fmt.Sprintf("Must be one of: %s, %s", ports.ActionAdd, ports.ActionUpdate))
	v.Min("id", r.ID, 1)
	v.Custom("status", r.Status.IsValid(), "Must be a known status")
	return v.Err()
}

// SheetUpsertResponse acknowledges a write.
type SheetUpsertResponse struct {
	Result  string             `json:"result"`
	Action  ports.UpsertAction `json:"action"`
	ID      int64              `json:"id"`
	Created bool               `json:"created"`
}

// HandleList handles GET / with a bare JSON array, newest first.
func (h *SheetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.repo.ListTickets(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	WriteJSON(w, http.StatusOK, tickets)
}

// HandleUpsert handles POST /. The body arrives as text/plain JSON.
func (h *SheetHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeJSON[SheetUpsertRequest](w, r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	if HandleError(w, r, req.Validate(), h.errorHandler) {
		return
	}

	created, err := h.repo.UpsertTicket(r.Context(), req.Ticket)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	h.logger.InfoContext(r.Context(), "sheet row written",
		"ticket_id", req.ID,
		"action", req.Action,
		"created", created,
	)
	WriteJSON(w, http.StatusOK, SheetUpsertResponse{
		Result:  "success",
		Action:  req.Action,
		ID:      req.ID,
		Created: created,
	})
}
