package handlers

import (
	"net/http"

	"massa-backend/internal/middleware"
	"massa-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// AuthHandler handles sign-up, sign-in and password recovery
type AuthHandler struct {
	auth     *services.AuthService
	sessions *services.SessionManager
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *services.AuthService, sessions *services.SessionManager) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions}
}

// SignInRequest is the body of POST /auth/signin
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResetRequest is the body of POST /auth/password/reset
type ResetRequest struct {
	Email string `json:"email"`
}

// ConfirmResetRequest is the body of POST /auth/password/confirm
type ConfirmResetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// AuthResponse pairs the token with the bootstrapped session state
type AuthResponse struct {
	Token   string               `json:"token"`
	Session services.SessionView `json:"session"`
}

// SignUp handles POST /api/v1/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req services.SignUpInput
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.auth.SignUp(r.Context(), req)
	if err != nil {
		respondAuthError(w, r, err)
		return
	}
	h.respondSignedIn(w, r, result, http.StatusCreated)
}

// SignIn handles POST /api/v1/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		respondAuthError(w, r, err)
		return
	}
	h.respondSignedIn(w, r, result, http.StatusOK)
}

func (h *AuthHandler) respondSignedIn(w http.ResponseWriter, r *http.Request, result *services.AuthResult, status int) {
	session, err := h.sessions.Get(r.Context(), result.Account.ID)
	if err != nil {
		// The token is valid; the profile is resolved again on the next request.
		log.Error().Err(err).Str("user_id", result.Account.ID).Msg("Session bootstrap failed after sign-in")
		respondJSON(w, status, AuthResponse{
			Token:   result.Token,
			Session: services.SessionView{Status: services.StatusResolutionFailed},
		})
		return
	}

	log.Info().Str("user_id", result.Account.ID).Str("session_id", result.Session.ID).Msg("Signed in")
	respondJSON(w, status, AuthResponse{Token: result.Token, Session: session.View()})
}

// SignOut handles POST /api/v1/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), middleware.GetToken(r.Context())); err != nil {
		respondAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/v1/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	session, err := h.sessions.Get(r.Context(), userID)
	if err != nil {
		// The token is valid; the profile is retried on the next request.
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to resolve session")
		respondJSON(w, http.StatusOK, services.SessionView{Status: services.StatusResolutionFailed})
		return
	}
	respondJSON(w, http.StatusOK, session.View())
}

// RequestReset handles POST /api/v1/auth/password/reset
func (h *AuthHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ConfirmReset handles POST /api/v1/auth/password/confirm
func (h *AuthHandler) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req ConfirmResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		respondAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// userSession returns the session of the authenticated caller
func userSession(w http.ResponseWriter, r *http.Request, sessions *services.SessionManager) (*services.Session, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		respondError(w, "Authorization required", http.StatusUnauthorized)
		return nil, false
	}
	session, err := sessions.Get(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return nil, false
	}
	return session, true
}

// readerSession returns the caller's session, or the anonymous one when the
// caller is signed out or their profile cannot be resolved
func readerSession(r *http.Request, sessions *services.SessionManager) *services.Session {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		return sessions.Anonymous()
	}
	session, err := sessions.Get(r.Context(), userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Serving anonymous view, session unavailable")
		return sessions.Anonymous()
	}
	return session
}
