package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ukydev/garage/internal/garage"
	"github.com/ukydev/garage/internal/models"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps garage and model errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrUnknownType):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, garage.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, garage.ErrDuplicate):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read request body", models.ErrValidation)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", models.ErrValidation, err)
	}
	return nil
}
