package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	mw "github.com/lorrc/repair-desk/internal/adapters/primary/http/middleware"
	apperrors "github.com/lorrc/repair-desk/internal/core/errors"
)

// ErrorResponse is the standard JSON error response format
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ValidationErrorResponse includes field-level validation errors
type ValidationErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler with the given logger
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle processes an error and writes the appropriate HTTP response
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		h.logError(r, appErr.StatusCode, appErr.Err)
		h.writeErrorResponse(w, appErr.StatusCode, ErrorResponse{
			Error:   appErr.Message,
			Code:    appErr.Code,
			Details: appErr.Details,
		})
		return
	}

	var validationErrs *apperrors.ValidationErrors
	if errors.As(err, &validationErrs) {
		h.logError(r, http.StatusUnprocessableEntity, err)
		h.writeValidationErrorResponse(w, validationErrs)
		return
	}

	statusCode, response := mapDomainError(err)
	h.logError(r, statusCode, err)
	h.writeErrorResponse(w, statusCode, response)
}

// mapDomainError converts domain errors to HTTP status codes and responses
func mapDomainError(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, apperrors.ErrTicketNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error: "Ticket not found",
			Code:  "TICKET_NOT_FOUND",
		}

	case errors.Is(err, apperrors.ErrInvalidStatus),
		errors.Is(err, apperrors.ErrInvalidView),
		errors.Is(err, apperrors.ErrInvalidRating):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_ERROR",
		}

	case errors.Is(err, apperrors.ErrInvalidStatusTransition):
		return http.StatusConflict, ErrorResponse{
			Error: "Invalid status transition",
			Code:  "INVALID_STATUS_TRANSITION",
		}
	case errors.Is(err, apperrors.ErrRatingNotAllowed):
		return http.StatusConflict, ErrorResponse{
			Error: "Only completed tickets that have not been rated can be rated",
			Code:  "RATING_NOT_ALLOWED",
		}
	case errors.Is(err, apperrors.ErrNoRatingDraft):
		return http.StatusConflict, ErrorResponse{
			Error: "No rating is in progress",
			Code:  "NO_RATING_DRAFT",
		}
	case errors.Is(err, apperrors.ErrRatingInProgress):
		return http.StatusConflict, ErrorResponse{
			Error: "The rating is already being submitted",
			Code:  "RATING_IN_PROGRESS",
		}
	case errors.Is(err, apperrors.ErrNothingToExport):
		return http.StatusNotFound, ErrorResponse{
			Error: "There are no completed tickets to export",
			Code:  "NOTHING_TO_EXPORT",
		}

	case errors.Is(err, apperrors.ErrDisconnected):
		return http.StatusServiceUnavailable, ErrorResponse{
			Error: "The ticket store is not connected. Please reload and try again.",
			Code:  "DISCONNECTED",
		}
	case errors.Is(err, apperrors.ErrRemoteTimeout):
		return http.StatusGatewayTimeout, ErrorResponse{
			Error: "The ticket store did not respond in time",
			Code:  "REMOTE_TIMEOUT",
		}
	case errors.Is(err, apperrors.ErrRemoteRejected),
		errors.Is(err, apperrors.ErrRemoteTransport),
		errors.Is(err, apperrors.ErrRemoteFormat):
		return http.StatusBadGateway, ErrorResponse{
			Error: "The ticket store could not complete the request",
			Code:  "REMOTE_UNAVAILABLE",
		}

	case errors.Is(err, apperrors.ErrRateLimited):
		return http.StatusTooManyRequests, ErrorResponse{
			Error: "Too many requests. Please try again later.",
			Code:  "RATE_LIMITED",
		}

	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error: "An unexpected error occurred",
			Code:  "INTERNAL_ERROR",
		}
	}
}

func (h *ErrorHandler) logError(r *http.Request, statusCode int, err error) {
	logAttrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", statusCode,
		"error", err,
	}
	if clientID, ok := mw.GetClientID(r.Context()); ok {
		logAttrs = append(logAttrs, "desk_client", clientID.String())
	}

	switch {
	case statusCode >= 500:
		h.logger.ErrorContext(r.Context(), "server error", logAttrs...)
	case statusCode >= 400:
		h.logger.WarnContext(r.Context(), "client error", logAttrs...)
	default:
		h.logger.InfoContext(r.Context(), "request error", logAttrs...)
	}
}

func (h *ErrorHandler) writeErrorResponse(w http.ResponseWriter, statusCode int, response ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

func (h *ErrorHandler) writeValidationErrorResponse(w http.ResponseWriter, errs *apperrors.ValidationErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	_ = json.NewEncoder(w).Encode(ValidationErrorResponse{
		Error:  "Validation failed",
		Code:   "VALIDATION_ERROR",
		Fields: errs.Errors,
	})
}

// HandleError handles err inline and reports whether there was one.
// Usage: if HandleError(w, r, err, h.errorHandler) { return }
func HandleError(w http.ResponseWriter, r *http.Request, err error, handler *ErrorHandler) bool {
	if err != nil {
		handler.Handle(w, r, err)
		return true
	}
	return false
}
