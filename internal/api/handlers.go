// Package api exposes the HTTP handlers of the workout sync service.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/joshua0624/gym-brain-v2-sub001/internal/auth"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/domain"
	"github.com/joshua0624/gym-brain-v2-sub001/internal/wire"
)

const maxBodyBytes = 5 << 20

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	logger  *log.Logger
}

// Option configures optional behaviour for the Handler.
type Option func(*Handler)

// WithLogger overrides the logger used for unexpected server errors.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		logger:  log.New(log.Writer(), "[api] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/drafts", h.getDraft)
	mux.HandleFunc("POST /v1/drafts", h.saveDraft)
	mux.HandleFunc("DELETE /v1/drafts", h.deleteDrafts)
	mux.HandleFunc("POST /v1/sync", h.sync)
	mux.HandleFunc("GET /v1/workouts", h.listWorkouts)
	mux.HandleFunc("GET /v1/workouts/{id}", h.getWorkout)
	mux.HandleFunc("GET /v1/exercises", h.listExercises)
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// owner resolves the caller from the bearer credential and checks the scope. It writes
// the error response itself and returns ok=false when the request must stop.
func owner(w http.ResponseWriter, r *http.Request, scopes ...string) (string, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return "", false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return claims.Owner(), true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
	return "", false
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "validation_failed", verr.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "resource belongs to another owner")
	case errors.Is(err, domain.ErrDraftNotFound):
		writeError(w, http.StatusNotFound, "not_found", "draft not found")
	case errors.Is(err, domain.ErrWorkoutNotFound):
		writeError(w, http.StatusNotFound, "not_found", "workout not found")
	default:
		h.logger.Printf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, wire.ErrorResponse{Type: code, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
