package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"sentra/internal/ledger"
	"sentra/pkg/sentinel"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError centralizes domain error translation so every handler returns
// the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	var validation *ledger.ValidationError
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
		code = "invalid_input"
	case errors.Is(err, sentinel.ErrNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, sentinel.ErrInvalidState):
		status = http.StatusConflict
		code = "invalid_state"
	case errors.Is(err, sentinel.ErrUnavailable):
		status = http.StatusServiceUnavailable
		code = "unavailable"
	}

	respondJSON(w, status, map[string]string{
		"error":             code,
		"error_description": err.Error(),
	})
}
