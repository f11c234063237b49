package handlers

import (
	"net/http"

	"massa-backend/internal/middleware"
	"massa-backend/internal/models"
	"massa-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// ProfileHandler serves profile pages and profile edits
type ProfileHandler struct {
	sessions *services.SessionManager
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(sessions *services.SessionManager) *ProfileHandler {
	return &ProfileHandler{sessions: sessions}
}

// Update handles PUT /api/v1/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req services.ProfileUpdate
	if !decodeJSON(w, r, &req) {
		return
	}
	session, ok := userSession(w, r, h.sessions)
	if !ok {
		return
	}

	user, err := session.UpdateProfile(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Get handles GET /api/v1/users/{handle}
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessions.ProfileByHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// ProfilePostsResponse is a profile with its tabbed posts
type ProfilePostsResponse struct {
	User     *models.User   `json:"user"`
	Status   []PostResponse `json:"status"`
	Notebook []PostResponse `json:"notebook"`
	Saved    []PostResponse `json:"saved,omitempty"`
}

// Posts handles GET /api/v1/users/{handle}/posts
func (h *ProfileHandler) Posts(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessions.ProfileByHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	session, ok := userSession(w, r, h.sessions)
	if !ok {
		return
	}
	posts, err := refreshed(r, session)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	var saved func(string) bool
	if set, ok := session.Relations(models.EdgeSave); ok {
		saved = set.Contains
	}
	view := services.ProfileView(posts, user.ID, middleware.GetUserID(r.Context()), saved)

	resp := ProfilePostsResponse{
		User:     user,
		Status:   toResponses(view.Status),
		Notebook: toResponses(view.Notebook),
	}
	if view.Saved != nil {
		resp.Saved = toResponses(view.Saved)
	}
	respondJSON(w, http.StatusOK, resp)
}
