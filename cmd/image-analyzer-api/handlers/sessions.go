package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spherical/image-analyzer/cmd/image-analyzer-api/middleware"
	"github.com/spherical/image-analyzer/internal/identity"
	"github.com/spherical/image-analyzer/internal/observability"
	"github.com/spherical/image-analyzer/internal/pipeline"
	"github.com/spherical/image-analyzer/internal/session"
)

// SessionStore creates and looks up live sessions.
type SessionStore interface {
	Create(ctx context.Context, provider identity.Provider) (*session.Session, error)
	Get(id string) (*session.Session, bool)
	Delete(id string) bool
}

// SessionHandler serves session lifecycle and pipeline requests.
type SessionHandler struct {
	logger         *observability.Logger
	sessions       SessionStore
	maxUploadBytes int64
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(logger *observability.Logger, sessions SessionStore, maxUploadBytes int64) *SessionHandler {
	return &SessionHandler{
		logger:         logger,
		sessions:       sessions,
		maxUploadBytes: maxUploadBytes,
	}
}

// SessionDTO represents a session and everything it currently renders.
type SessionDTO struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Document  string         `json:"document"`
	CreatedAt string         `json:"createdAt"`
	State     pipeline.State `json:"state"`
}

func toSessionDTO(s *session.Session) SessionDTO {
	return SessionDTO{
		ID:        s.ID,
		UserID:    s.UserID,
		Document:  s.Document.Path(),
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		State:     s.Orchestrator.Snapshot(),
	}
}

// Create handles POST /sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Create(r.Context(), middleware.ProviderFromContext(r.Context()))
	if err != nil {
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Failed to start session")
		writeDomainError(w, "failed to start session", err)
		return
	}

	h.logger.WithContext(r.Context()).Info().
		Str("session_id", sess.ID).
		Str("user_id", sess.UserID).
		Msg("Session created")

	writeJSON(w, http.StatusCreated, toSessionDTO(sess))
}

// Get handles GET /sessions/{sessionId}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess))
}

// Delete handles DELETE /sessions/{sessionId}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Delete(chi.URLParam(r, "sessionId")) {
		writeError(w, http.StatusNotFound, "session not found", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "sessionId")
	sess, ok := h.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found", id)
		return nil, false
	}
	return sess, true
}
