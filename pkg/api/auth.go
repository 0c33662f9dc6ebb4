package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/healthassoc/bayan/pkg/auth"
	"github.com/healthassoc/bayan/pkg/locale"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionPayload struct {
	Identity  auth.Identity `json:"identity"`
	Role      auth.Role     `json:"role"`
	ExpiresAt time.Time     `json:"expires_at"`
	// Token is returned for clients that send it as a Bearer header
	// instead of relying on the cookie.
	Token string `json:"token"`
}

var (
	badCredentialsMessage = locale.New("بيانات الدخول غير صحيحة", "Invalid email or password")
	signupDisabledMessage = locale.New("التسجيل غير متاح", "Sign-up is disabled")
	emailTakenMessage     = locale.New("البريد الإلكتروني مسجل مسبقاً", "This email is already registered")
)

func (s *server) startSession(w http.ResponseWriter, r *http.Request, sess *auth.Session, role auth.Role) {
	auth.SetSessionCookie(w, r, s.cfg.Auth.CookieName, sess.Token, s.auth.TTL())

	writeJSON(w, http.StatusOK, sessionPayload{
		Identity:  sess.Identity,
		Role:      role,
		ExpiresAt: sess.ExpiresAt,
		Token:     sess.Token,
	})
}

// handleLogin authenticates with email and password and opens a session.
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email and password are required"})

		return
	}

	sess, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{
				Error:   "invalid credentials",
				Code:    "invalid_credentials",
				Message: &badCredentialsMessage,
			})

			return
		}

		s.writeInternal(w, "Failed to sign in", err)

		return
	}

	role, err := s.auth.LookupRole(r.Context(), sess.Identity.UserID)
	if err != nil {
		s.log.WithError(err).Warn("Role lookup failed after sign-in")
	}

	s.log.WithField("user_id", sess.Identity.UserID).Info("User signed in")

	s.startSession(w, r, sess, role)
}

// handleSignup creates an account. The account has no role unless it is
// the first one and bootstrapping is enabled.
func (s *server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, role, err := s.auth.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrSignupDisabled):
			writeJSON(w, http.StatusForbidden, errorResponse{
				Error: err.Error(), Code: "signup_disabled", Message: &signupDisabledMessage,
			})
		case errors.Is(err, auth.ErrEmailTaken):
			writeJSON(w, http.StatusConflict, errorResponse{
				Error: err.Error(), Code: "email_taken", Message: &emailTakenMessage,
			})
		case errors.Is(err, auth.ErrInvalidEmail):
			writeValidation(w, map[string]string{"email": err.Error()})
		case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrPasswordTooLong):
			writeValidation(w, map[string]string{"password": err.Error()})
		default:
			s.writeInternal(w, "Failed to sign up", err)
		}

		return
	}

	s.log.WithField("user_id", sess.Identity.UserID).
		WithField("role", role.String()).
		Info("User signed up")

	s.startSession(w, r, sess, role)
}

// handleLogout destroys the current session.
func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r, s.cfg.Auth.CookieName); token != "" {
		if err := s.auth.SignOut(r.Context(), token); err != nil {
			s.log.WithError(err).Warn("Failed to sign out")
		}
	}

	auth.ClearSessionCookie(w, s.cfg.Auth.CookieName)

	writeJSON(w, http.StatusOK, statusOK)
}

// handleRefresh extends the current session.
func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r, s.cfg.Auth.CookieName)

	sess, err := s.auth.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrNoSession) {
			writeUnauthenticated(w)

			return
		}

		s.writeInternal(w, "Failed to refresh session", err)

		return
	}

	role, err := s.auth.LookupRole(r.Context(), sess.Identity.UserID)
	if err != nil {
		s.log.WithError(err).Warn("Role lookup failed after refresh")
	}

	s.startSession(w, r, sess, role)
}

// handleMe returns the guard snapshot for the caller.
func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	g := auth.FromContext(r.Context())
	if g == nil {
		writeUnauthenticated(w)

		return
	}

	writeJSON(w, http.StatusOK, g.Snapshot())
}
