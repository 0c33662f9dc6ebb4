package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/healthassoc/bayan/pkg/auth"
	"github.com/healthassoc/bayan/pkg/media"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)

	if s.cfg.Server.Metrics.Enabled {
		r.Use(s.metrics.instrument)
		r.Method(http.MethodGet, s.cfg.Server.Metrics.Path, s.metrics.handler())
	}

	s.mountMedia(r)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.corsMiddleware())
		r.Use(auth.Middleware(s.log, s.auth, s.cfg.Auth.CookieName))

		// Public endpoints.
		r.Group(func(r chi.Router) {
			r.Use(s.limitTier(s.cfg.Server.RateLimit.Public))
			r.Get("/health", s.handleHealth)
			r.Get("/config", s.handleConfig)
		})

		// Auth endpoints.
		r.Route("/auth", func(r chi.Router) {
			r.Use(s.limitTier(s.cfg.Server.RateLimit.Auth))

			r.Post("/login", s.handleLogin)
			r.Post("/signup", s.handleSignup)
			r.Post("/logout", s.handleLogout)
			r.Post("/refresh", s.handleRefresh)
			r.Get("/me", s.handleMe)
		})

		// Admin endpoints. Every route needs a session; roles are checked
		// per group.
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Use(s.limitTier(s.cfg.Server.RateLimit.Authenticated))

			r.Get("/nav", s.handleNav)

			registerCRUD(r, s, "/programs", s.store.Programs())
			registerCRUD(r, s, "/events", s.store.Events())
			registerCRUD(r, s, "/posts", s.store.Posts())
			registerCRUD(r, s, "/kpis", s.store.KPIs())
			registerCRUD(r, s, "/pages", s.store.Pages())
			registerCRUD(r, s, "/videos", s.store.Videos())

			r.With(s.requireRole(auth.RoleViewer)).
				Get("/realtime/{table}", s.handleRealtime)

			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(auth.RoleEditor))

				r.Get("/submissions", s.handleListSubmissions)
				r.Get("/submissions/{id}", s.handleGetSubmission)
				r.Put("/submissions/{id}", s.handleUpdateSubmission)
				r.Delete("/submissions/{id}", s.handleDeleteSubmission)

				r.Get("/media", s.handleListMedia)
				r.Post("/media", s.handleUploadMedia)
				r.Post("/media/generate", s.handleGenerateMedia)
				r.Delete("/media/{id}", s.handleDeleteMedia)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(auth.RoleSuperadmin))

				r.Get("/activity", s.handleListActivity)

				// User and role management.
				r.Get("/users", s.handleListUsers)
				r.Post("/users", s.handleCreateUser)
				r.Delete("/users/{id}", s.handleDeleteUser)
				r.Put("/users/{id}/role", s.handleSetRole)
				r.Delete("/users/{id}/role", s.handleRevokeRole)

				// Session management.
				r.Get("/sessions", s.handleListSessions)
				r.Delete("/sessions/{id}", s.handleDeleteSessionByID)
			})
		})

		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found", Code: "not_found"})
		})
	})

	s.site.Routes(r)

	return r
}

// mountMedia serves locally stored objects under their base URL path.
func (s *server) mountMedia(r chi.Router) {
	local, ok := s.objects.(*media.LocalStore)
	if !ok {
		return
	}

	base := local.BaseURL()
	if base == "" || strings.Contains(base, "://") {
		return
	}

	r.Handle(base+"/*", http.StripPrefix(base, local))
}

// corsMiddleware returns a CORS handler configured from the server config.
func (s *server) corsMiddleware() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	origins := s.cfg.Server.CORSOrigins

	switch {
	case len(origins) == 1 && origins[0] == "*":
		// Reflect the requesting origin so credentials work from any origin.
		opts.AllowOriginFunc = func(_ *http.Request, _ string) bool {
			return true
		}
	case len(origins) > 0:
		opts.AllowedOrigins = origins
	default:
		// Only the site itself.
		site := publicOrigin(s.cfg.Server.PublicURL)
		opts.AllowOriginFunc = func(_ *http.Request, origin string) bool {
			return site != "" && strings.EqualFold(origin, site)
		}
	}

	return cors.Handler(opts)
}

// publicOrigin returns the scheme://host origin of a public URL, or ""
// when it has none.
func publicOrigin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}

	return u.Scheme + "://" + u.Host
}
