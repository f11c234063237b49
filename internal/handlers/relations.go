package handlers

import (
	"errors"
	"net/http"

	"massa-backend/internal/models"
	"massa-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// RelationHandler toggles saved posts, followed authors and connections
type RelationHandler struct {
	sessions *services.SessionManager
}

// NewRelationHandler creates a new relation handler
func NewRelationHandler(sessions *services.SessionManager) *RelationHandler {
	return &RelationHandler{sessions: sessions}
}

// ToggleResponse reports the membership after a toggle
type ToggleResponse struct {
	Kind     models.EdgeKind    `json:"kind"`
	TargetID string             `json:"target_id"`
	Member   bool               `json:"member"`
	State    services.EdgeState `json:"state"`
}

// Toggle handles POST /api/v1/relations/{kind}/{target}/toggle
func (h *RelationHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	kind, ok := models.ParseEdgeKind(chi.URLParam(r, "kind"))
	if !ok {
		respondError(w, "kind must be saved, followed or connected", http.StatusBadRequest)
		return
	}
	targetID := chi.URLParam(r, "target")

	session, ok := userSession(w, r, h.sessions)
	if !ok {
		return
	}
	set, _ := session.Relations(kind)

	member, err := set.Toggle(r.Context(), targetID)
	if err != nil && !errors.Is(err, services.ErrTogglePending) {
		respondServiceError(w, r, err)
		return
	}
	state, _ := set.State(targetID)
	if err != nil {
		respondJSON(w, http.StatusConflict, ToggleResponse{Kind: kind, TargetID: targetID, Member: member, State: state})
		return
	}
	respondJSON(w, http.StatusOK, ToggleResponse{Kind: kind, TargetID: targetID, Member: member, State: state})
}

// Connections handles GET /api/v1/connections
func (h *RelationHandler) Connections(w http.ResponseWriter, r *http.Request) {
	session, ok := userSession(w, r, h.sessions)
	if !ok {
		return
	}
	users, err := session.Connections(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}
