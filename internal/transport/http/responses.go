package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"greenwallet/internal/wallet"
	"greenwallet/pkg/sentinel"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation so every handler returns
// the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, sentinel.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, sentinel.ErrExpired):
		status, code = http.StatusGone, "expired"
	case errors.Is(err, sentinel.ErrInvalidState):
		status, code = http.StatusUnprocessableEntity, "invalid_state"
	case errors.Is(err, sentinel.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, wallet.ErrIdentityMismatch):
		status, code = http.StatusConflict, "identity_mismatch"
	case errors.Is(err, wallet.ErrPendingWrapper):
		status, code = http.StatusUnprocessableEntity, "pending_wrapper"
	}
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": err.Error(),
	})
}

func writeBadRequest(w http.ResponseWriter, description string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":             "bad_request",
		"error_description": description,
	})
}
