package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/engine"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/registry"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/store"
)

const maxRequestBody = 1 << 20 // 1 MiB

// respondJSON writes a JSON body with the given status.
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// respondError writes the standard error envelope.
func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

// respondStoreError maps sentinel errors to HTTP statuses.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrDuplicate):
		respondError(w, http.StatusConflict, "already exists")
	case errors.Is(err, engine.ErrInvalidTransition):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrInvalidManifest):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON parses a request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// pathID parses the {id} URL parameter as a UUID.
func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}
