package handlers

import (
	"net/http"

	"github.com/kozaktomas/fuzzysearch/internal/session"
)

// StateHandler exposes the shared state.
type StateHandler struct {
	session *session.Session
}

// NewStateHandler creates a new state handler.
func NewStateHandler(sess *session.Session) *StateHandler {
	return &StateHandler{session: sess}
}

// Get returns the current state.
func (h *StateHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Bus().Snapshot())
}

// Events streams state changes as server-sent events.
func (h *StateHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamStateEvents(w, r, h.session.Bus())
}

// Reset starts a fresh session and returns the cleared state.
func (h *StateHandler) Reset(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.session.Start())
}
