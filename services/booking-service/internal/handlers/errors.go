package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/softlock"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/timezone"
)

// writeServiceError maps domain errors onto HTTP statuses. Anything
// unrecognised is logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.ErrorBody{
			Error:  "validation failed",
			Code:   "validation_failed",
			Fields: verr.FieldErrors,
		})
	case errors.Is(err, timezone.ErrInvalidTimezone):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_timezone", err.Error())
	case errors.Is(err, booking.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "booking not found")
	case errors.Is(err, booking.ErrSlotUnavailable):
		httpx.WriteError(w, http.StatusConflict, "slot_unavailable", "requested slot is not available")
	case errors.Is(err, booking.ErrConflict):
		httpx.WriteError(w, http.StatusConflict, "conflict", "another booking for this slot is in progress")
	case errors.Is(err, softlock.ErrAlreadyLocked):
		httpx.WriteError(w, http.StatusConflict, "already_locked", "slot is held by another checkout")
	case errors.Is(err, booking.ErrCancellationWindowClosed):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "cancellation_window_closed", err.Error())
	default:
		logger.Error("request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	httpx.WriteError(w, http.StatusBadRequest, "bad_request", msg)
}

func methodNotAllowed(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}
