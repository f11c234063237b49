package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"massa-backend/internal/models"
	"massa-backend/internal/services"
	"massa-backend/internal/validator"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// errorStatus maps a service error to its HTTP status
func errorStatus(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotSignedIn),
		errors.Is(err, services.ErrLoginRequired),
		errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrSessionRevoked):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrPostNotFound),
		errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrTogglePending),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrHandleTaken):
		return http.StatusConflict
	case errors.Is(err, services.ErrHandleCooldown):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrEmptyPost),
		errors.Is(err, services.ErrEmptyReply),
		errors.Is(err, services.ErrInvalidDraft),
		errors.Is(err, services.ErrInvalidUpload):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondServiceError writes err with its mapped status. Internal failures
// are logged and hidden from the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		respondError(w, "Internal server error", status)
		return
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		respondJSON(w, status, ErrorResponse{Error: "Validation failed", Fields: verrs})
		return
	}
	respondError(w, err.Error(), status)
}

var authMessages = map[error]map[models.Language]string{
	services.ErrInvalidCredentials: {
		models.LanguageID: "Email atau kata sandi salah",
		models.LanguageEN: "Invalid email or password",
	},
	services.ErrEmailTaken: {
		models.LanguageID: "Email sudah terdaftar",
		models.LanguageEN: "Email is already registered",
	},
	services.ErrHandleTaken: {
		models.LanguageID: "Nama pengguna sudah dipakai",
		models.LanguageEN: "Handle is already taken",
	},
	services.ErrInvalidToken: {
		models.LanguageID: "Tautan tidak valid atau kedaluwarsa",
		models.LanguageEN: "Link is invalid or has expired",
	},
	services.ErrSessionRevoked: {
		models.LanguageID: "Sesi telah berakhir, silakan masuk kembali",
		models.LanguageEN: "Session ended, please sign in again",
	},
}

// respondAuthError writes auth failures in the caller's language
func respondAuthError(w http.ResponseWriter, r *http.Request, err error) {
	lang := requestLanguage(r)
	for target, messages := range authMessages {
		if errors.Is(err, target) {
			respondError(w, messages[lang], errorStatus(err))
			return
		}
	}
	respondServiceError(w, r, err)
}

type languageKey struct{}

// withDefaultLanguage sets the language used when a request names none
func withDefaultLanguage(lang models.Language) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), languageKey{}, lang)))
		})
	}
}

// requestLanguage picks id or en from ?lang or Accept-Language. Anything
// else gets the stored default, id when none is set.
func requestLanguage(r *http.Request) models.Language {
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = r.Header.Get("Accept-Language")
	}
	lang = strings.ToLower(strings.TrimSpace(lang))
	switch {
	case strings.HasPrefix(lang, "en"):
		return models.LanguageEN
	case strings.HasPrefix(lang, "id"):
		return models.LanguageID
	}
	if def, ok := r.Context().Value(languageKey{}).(models.Language); ok && def != "" {
		return def
	}
	return models.LanguageID
}
