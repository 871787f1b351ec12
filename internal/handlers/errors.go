package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lostfound-board/apiserver/internal/services"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidInput       = "invalid_input"
	CodeInvalidOperation   = "invalid_operation"
	CodeInvalidCredentials = "invalid_credentials"
	CodeDuplicate          = "duplicate"
	CodeUnauthorized       = "unauthorized"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeConflict           = "conflict"
	CodeTimeout            = "timeout"
	CodeNotImplemented     = "not_implemented"
	CodeInternal           = "internal"
)

// retryAfterSeconds is sent with 503 responses caused by store timeouts.
const retryAfterSeconds = "1"

// writeServiceError maps a service error onto its HTTP status and code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, CodeInvalidInput, detail(err, services.ErrInvalidInput))
	case errors.Is(err, services.ErrSelfClaim):
		writeError(w, http.StatusBadRequest, CodeInvalidOperation, services.ErrSelfClaim.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, CodeInvalidCredentials, services.ErrInvalidCredentials.Error())
	case errors.Is(err, services.ErrUsernameTaken):
		writeError(w, http.StatusBadRequest, CodeDuplicate, services.ErrUsernameTaken.Error())
	case errors.Is(err, services.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, CodeForbidden, "only the poster can do that")
	case errors.Is(err, services.ErrItemNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, services.ErrItemNotFound.Error())
	case errors.Is(err, services.ErrImageNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, services.ErrImageNotFound.Error())
	case errors.Is(err, services.ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, CodeConflict, services.ErrAlreadyClaimed.Error())
	case errors.Is(err, services.ErrTimeout):
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeError(w, http.StatusServiceUnavailable, CodeTimeout, "the store did not respond in time, retry later")
	case errors.Is(err, services.ErrStorageDisabled):
		writeError(w, http.StatusNotImplemented, CodeNotImplemented, services.ErrStorageDisabled.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}

// detail strips the sentinel prefix from a wrapped validation error, so
// "invalid input: title is required" is reported as "title is required".
func detail(err, sentinel error) string {
	msg := err.Error()
	if trimmed := strings.TrimPrefix(msg, sentinel.Error()+": "); trimmed != msg {
		return trimmed
	}
	return msg
}
