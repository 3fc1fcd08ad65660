package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"

	"ticket-checkin/internal/status"
)

// retryAfterSeconds is advertised to clients on 503 responses.
const retryAfterSeconds = "1"

// respondError maps a service error onto the API error the client sees.
func respondError(e *core.RequestEvent, err error) error {
	switch {
	case errors.Is(err, status.ErrInvalidInput):
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, status.ErrEventNotFound):
		return apis.NewNotFoundError("Event not found", nil)
	case errors.Is(err, status.ErrTicketNotFound):
		return apis.NewNotFoundError("Ticket not found", nil)
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError("Not found", nil)
	case status.IsRetryable(err):
		e.Response.Header().Set("Retry-After", retryAfterSeconds)
		return router.NewApiError(http.StatusServiceUnavailable, "Service temporarily unavailable, please retry", nil)
	case errors.Is(err, status.ErrIssuanceFailed):
		slog.Error("Ticket issuance failed", "error", err)
		return apis.NewInternalServerError("Could not issue ticket", nil)
	}

	slog.Error("Unhandled request error", "error", err, "path", e.Request.URL.Path)
	return apis.NewInternalServerError("", nil)
}

func bindBody(e *core.RequestEvent, dst any) error {
	if err := e.BindBody(dst); err != nil {
		return apis.NewBadRequestError("Invalid request body", nil)
	}
	return nil
}
