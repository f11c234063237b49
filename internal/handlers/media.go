package handlers

import (
	"net/http"

	"massa-backend/internal/middleware"
	"massa-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// MediaHandler issues upload URLs for voice notes and images
type MediaHandler struct {
	media *services.MediaService
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(media *services.MediaService) *MediaHandler {
	return &MediaHandler{media: media}
}

// Upload handles POST /api/v1/media/upload
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		respondError(w, "Uploads are not configured", http.StatusServiceUnavailable)
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req services.UploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Filename == "" {
		respondError(w, "filename is required", http.StatusBadRequest)
		return
	}

	response, err := h.media.PresignUpload(ctx, userID, req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("key", response.Key).
		Str("kind", string(req.Kind)).
		Msg("Pre-signed URL generated")

	respondJSON(w, http.StatusOK, response)
}
