package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type contextKey string

const guardContextKey contextKey = "guard"

// WithGuard returns a copy of ctx carrying g.
func WithGuard(ctx context.Context, g *Guard) context.Context {
	return context.WithValue(ctx, guardContextKey, g)
}

// FromContext returns the request's guard, or nil.
func FromContext(ctx context.Context) *Guard {
	g, _ := ctx.Value(guardContextKey).(*Guard)

	return g
}

// TokenFromRequest reads a Bearer token, falling back to the session
// cookie.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}

	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}

	return ""
}

// Middleware resolves a Guard for every request and injects it into the
// request context. The guard is closed when the handler returns.
func Middleware(
	log logrus.FieldLogger,
	src SessionSource,
	cookieName string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if FromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)

				return
			}

			g := NewGuard(log, src, TokenFromRequest(r, cookieName))
			defer g.Close()

			g.Start(r.Context())

			next.ServeHTTP(w, r.WithContext(WithGuard(r.Context(), g)))
		})
	}
}

// RequireSession is Middleware for HTML screens: unauthenticated requests
// are redirected to loginPath with the original path in "next".
func RequireSession(
	log logrus.FieldLogger,
	src SessionSource,
	cookieName string,
	loginPath string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			redirected := false

			g := NewGuard(log, src, TokenFromRequest(r, cookieName),
				RequireAuth(func() {
					if redirected {
						return
					}

					redirected = true

					http.Redirect(w, r, LoginURL(loginPath, r.URL.RequestURI()), http.StatusSeeOther)
				}))
			defer g.Close()

			g.Start(r.Context())

			if redirected {
				return
			}

			next.ServeHTTP(w, r.WithContext(WithGuard(r.Context(), g)))
		})
	}
}

// LoginURL builds the login location for a protected path.
func LoginURL(loginPath, next string) string {
	if next == "" || next == loginPath {
		return loginPath
	}

	return loginPath + "?next=" + url.QueryEscape(next)
}

// SetSessionCookie stores token in the session cookie.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, name, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(ttl.Seconds()),
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
