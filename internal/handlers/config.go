package handlers

import (
	"net/http"

	"massa-backend/internal/mapper"
	"massa-backend/internal/models"
	"massa-backend/internal/prefs"
)

// ClientConfig is what a renderer needs before the first request
type ClientConfig struct {
	Defaults           prefs.Preferences `json:"defaults"`
	Themes             []models.Theme    `json:"themes"`
	Languages          []models.Language `json:"languages"`
	PlaceholderAvatar  string            `json:"placeholder_avatar"`
	HandleCooldownSecs int64             `json:"handle_cooldown_secs"`
	UploadsEnabled     bool              `json:"uploads_enabled"`
}

// ConfigHandler handles GET /api/v1/config. defaults are the preferences
// loaded at startup.
func ConfigHandler(defaults prefs.Preferences, handleCooldownSecs int64, uploadsEnabled bool) http.HandlerFunc {
	cfg := ClientConfig{
		Defaults:           defaults,
		Themes:             []models.Theme{models.ThemeLight, models.ThemeDark},
		Languages:          []models.Language{models.LanguageID, models.LanguageEN},
		PlaceholderAvatar:  mapper.PlaceholderAvatar,
		HandleCooldownSecs: handleCooldownSecs,
		UploadsEnabled:     uploadsEnabled,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, cfg)
	}
}
