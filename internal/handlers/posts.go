package handlers

import (
	"net/http"

	"massa-backend/internal/models"
	"massa-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// PostHandler serves the post store of the caller's session
type PostHandler struct {
	sessions *services.SessionManager
}

// NewPostHandler creates a new post handler
func NewPostHandler(sessions *services.SessionManager) *PostHandler {
	return &PostHandler{sessions: sessions}
}

// PostResponse is a post plus its journal permalink
type PostResponse struct {
	models.Post
	Permalink string `json:"permalink,omitempty"`
}

// ReplyRequest is the body of POST /posts/{id}/replies
type ReplyRequest struct {
	Content string `json:"content"`
}

func toResponse(p models.Post) PostResponse {
	resp := PostResponse{Post: p}
	if p.Type == models.PostTypeJournal {
		resp.Permalink = services.JournalPath(p)
	}
	return resp
}

func toResponses(posts []models.Post) []PostResponse {
	out := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, toResponse(p))
	}
	return out
}

// refreshed reloads the session's posts and returns them
func refreshed(r *http.Request, session *services.Session) ([]models.Post, error) {
	if err := session.Posts().LoadAll(r.Context()); err != nil {
		return nil, err
	}
	return session.Posts().Posts(), nil
}

// List handles GET /api/v1/posts?q=
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	session := readerSession(r, h.sessions)
	posts, err := refreshed(r, session)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toResponses(services.FilterFeed(posts, r.URL.Query().Get("q"))))
}

// Binder handles GET /api/v1/posts/binder?q=&tab=
func (h *PostHandler) Binder(w http.ResponseWriter, r *http.Request) {
	tab, ok := services.ParseBinderTab(r.URL.Query().Get("tab"))
	if !ok {
		respondError(w, "tab must be all, trending or following", http.StatusBadRequest)
		return
	}

	session := readerSession(r, h.sessions)
	posts, err := refreshed(r, session)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	var followed func(string) bool
	if set, ok := session.Relations(models.EdgeFollow); ok {
		followed = set.Contains
	}
	respondJSON(w, http.StatusOK, toResponses(services.FilterBinder(posts, r.URL.Query().Get("q"), tab, followed)))
}

// Get handles GET /api/v1/posts/{id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	session := readerSession(r, h.sessions)
	if _, err := refreshed(r, session); err != nil {
		respondServiceError(w, r, err)
		return
	}

	post, found := session.Posts().Get(chi.URLParam(r, "id"))
	if !found {
		respondError(w, "Post not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, toResponse(post))
}

// Create handles POST /api/v1/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var draft models.PostDraft
	if !decodeJSON(w, r, &draft) {
		return
	}
	session, ok := userSession(w, r, h.sessions)
	if !ok {
		return
	}

	id, err := session.Posts().Create(r.Context(), draft)
	if err != nil && id == "" {
		respondServiceError(w, r, err)
		return
	}

	post, found := session.Posts().Get(id)
	if !found {
		// Written but not visible yet; the next reload picks it up.
		respondJSON(w, http.StatusCreated, map[string]string{"id": id})
		return
	}
	respondJSON(w, http.StatusCreated, toResponse(post))
}

// Update handles PUT /api/v1/posts/{id}
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	var edit models.PostEdit
	if !decodeJSON(w, r, &edit) {
		return
	}
	edit.ID = chi.URLParam(r, "id")

	session, ok := userSession(w, r, h.sessions)
	if !ok {
		return
	}
	if err := session.Posts().Update(r.Context(), edit); err != nil {
		respondServiceError(w, r, err)
		return
	}

	post, _ := session.Posts().Get(edit.ID)
	respondJSON(w, http.StatusOK, toResponse(post))
}

// Delete handles DELETE /api/v1/posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, ok := userSession(w, r, h.sessions)
	if !ok {
		return
	}
	if err := session.Posts().Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Like handles POST /api/v1/posts/{id}/like
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	session, ok := userSession(w, r, h.sessions)
	if !ok {
		return
	}
	post, err := session.Posts().ToggleLike(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toResponse(post))
}

// Reply handles POST /api/v1/posts/{id}/replies
func (h *PostHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var req ReplyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, ok := userSession(w, r, h.sessions)
	if !ok {
		return
	}

	postID := chi.URLParam(r, "id")
	if err := session.Posts().Reply(r.Context(), postID, req.Content); err != nil {
		respondServiceError(w, r, err)
		return
	}

	post, _ := session.Posts().Get(postID)
	respondJSON(w, http.StatusCreated, toResponse(post))
}
