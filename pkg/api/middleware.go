package api

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/healthassoc/bayan/pkg/auth"
	"github.com/healthassoc/bayan/pkg/locale"
)

var (
	unauthenticatedMessage = locale.New("يرجى تسجيل الدخول", "Please sign in")
	noRoleMessage          = locale.New(
		"ليس لديك صلاحية بعد. يرجى التواصل مع المسؤول.",
		"You do not have access yet. Please contact an administrator.",
	)
	insufficientRoleMessage = locale.New(
		"لا تملك الصلاحية لتنفيذ هذا الإجراء",
		"You are not allowed to perform this action",
	)
)

// requestLogger logs incoming HTTP requests.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("status", ww.Status()).
			WithField("remote", extractIP(r)).
			WithField("request_id", chimw.GetReqID(r.Context())).
			WithField("duration", time.Since(start)).
			Debug("Request handled")
	})
}

func writeUnauthenticated(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorResponse{
		Error:   "authentication required",
		Code:    "unauthenticated",
		Message: &unauthenticatedMessage,
	})
}

// requireAuth refuses requests without a live session.
func (s *server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g := auth.FromContext(r.Context())
		if g == nil || !g.Snapshot().IsAuthenticated {
			writeUnauthenticated(w)

			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireRole refuses callers below need. Authenticated callers without any
// role get the no_role code so the client can tell them to contact an
// administrator.
func (s *server) requireRole(need auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g := auth.FromContext(r.Context())
			if g == nil {
				writeUnauthenticated(w)

				return
			}

			snap := g.Snapshot()

			switch {
			case !snap.IsAuthenticated:
				writeUnauthenticated(w)

				return
			case snap.Role == auth.RoleNone:
				writeJSON(w, http.StatusForbidden, errorResponse{
					Error:   "no role assigned, contact an admin",
					Code:    "no_role",
					Message: &noRoleMessage,
				})

				return
			case !snap.Role.AtLeast(need):
				writeJSON(w, http.StatusForbidden, errorResponse{
					Error:   "insufficient permissions",
					Code:    "insufficient_role",
					Message: &insufficientRoleMessage,
				})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// actorFromRequest returns the signed-in identity, or nil.
func actorFromRequest(r *http.Request) *auth.Identity {
	g := auth.FromContext(r.Context())
	if g == nil {
		return nil
	}

	return g.Snapshot().Identity
}

func actorID(r *http.Request) uint {
	if id := actorFromRequest(r); id != nil {
		return id.UserID
	}

	return 0
}
