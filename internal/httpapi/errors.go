package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"modelswap/internal/manager"
	"modelswap/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error
// (manager.ErrClosed reports 503).
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case manager.IsNotReady(err):
		return http.StatusServiceUnavailable
	case manager.IsAlreadyUpdating(err):
		return http.StatusConflict
	case manager.IsInvalidArtifact(err):
		return http.StatusBadRequest
	}
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
