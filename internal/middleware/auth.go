package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"massa-backend/internal/models"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	sessionIDKey contextKey = "session_id"
	tokenKey     contextKey = "token"
)

// SessionValidator resolves a bearer token into a live auth session
type SessionValidator interface {
	CurrentSession(ctx context.Context, token string) (*models.AuthSession, error)
}

// AuthMiddleware rejects requests without a valid bearer token
func AuthMiddleware(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(authHeader)
			if !ok {
				respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			session, err := validator.CurrentSession(r.Context(), token)
			if err != nil {
				respondError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), session, token)))
		})
	}
}

// OptionalAuth attaches the session when a valid bearer token is present and
// lets every request through
func OptionalAuth(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
				if session, err := validator.CurrentSession(r.Context(), token); err == nil {
					r = r.WithContext(withSession(r.Context(), session, token))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func withSession(ctx context.Context, session *models.AuthSession, token string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, session.UserID)
	ctx = context.WithValue(ctx, sessionIDKey, session.ID)
	return context.WithValue(ctx, tokenKey, token)
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetSessionID extracts the auth session ID from context
func GetSessionID(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDKey).(string)
	return sid
}

// GetToken extracts the bearer token from context
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
