// Package site serves the public bilingual website, its feeds and the
// admin sign-in screens.
package site

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/healthassoc/bayan/pkg/api/store"
	"github.com/healthassoc/bayan/pkg/auth"
	"github.com/healthassoc/bayan/pkg/config"
	"github.com/healthassoc/bayan/pkg/feeds"
	"github.com/healthassoc/bayan/pkg/locale"
)

const (
	localeParam    = "locale"
	adminLoginPath = "/admin/login"
)

// Option configures a Site.
type Option func(*Site)

// WithFormLimiter wraps form POST handlers (contact, admin login) with mw.
func WithFormLimiter(mw func(http.Handler) http.Handler) Option {
	return func(s *Site) {
		s.formLimiter = mw
	}
}

// Site renders the public pages.
type Site struct {
	log           logrus.FieldLogger
	store         store.Store
	auth          *auth.Service
	cfg           *config.SiteConfig
	cookieName    string
	defaultLocale locale.Locale
	links         feeds.Links
	views         *views
	formLimiter   func(http.Handler) http.Handler
	now           func() time.Time
}

// New creates the site. publicURL is the absolute base used in feeds.
func New(
	log logrus.FieldLogger,
	st store.Store,
	authSvc *auth.Service,
	cfg *config.Config,
	opts ...Option,
) (*Site, error) {
	v, err := loadViews()
	if err != nil {
		return nil, err
	}

	def, ok := locale.Parse(cfg.Site.DefaultLocale)
	if !ok {
		def = locale.AR
	}

	s := &Site{
		log:           log.WithField("component", "site"),
		store:         st,
		auth:          authSvc,
		cfg:           &cfg.Site,
		cookieName:    cfg.Auth.CookieName,
		defaultLocale: def,
		links:         feeds.Links{BaseURL: cfg.Server.PublicURL},
		views:         v,
		formLimiter:   func(next http.Handler) http.Handler { return next },
		now:           func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Routes registers the site on r.
func (s *Site) Routes(r chi.Router) {
	r.Get("/", s.handleRoot)
	r.Get("/rss.xml", s.handleRSS)
	r.Get("/sitemap.xml", s.handleSitemap)

	s.adminRoutes(r)

	r.Route("/{locale}", func(r chi.Router) {
		r.Use(s.localeMiddleware)

		r.Get("/", s.handleHome)
		r.Get("/programs", s.handlePrograms)
		r.Get("/programs/{slug}", s.handleProgram)
		r.Get("/events", s.handleEvents)
		r.Get("/events.ics", s.handleEventsICS)
		r.Get("/events/{slug}", s.handleEvent)
		r.Get("/resources", s.handleResources)
		r.Get("/resources/{slug}", s.handlePost)
		r.Get("/videos", s.handleVideos)
		r.Get("/p/{slug}", s.handlePage)
		r.Get("/contact", s.handleContactForm)
		r.With(s.formLimiter).Post("/contact", s.handleContactSubmit)
		r.NotFound(s.NotFound)
	})

	r.NotFound(s.NotFound)
}

func (s *Site) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/"+s.defaultLocale.String(), http.StatusFound)
}

type localeKey struct{}

// localeMiddleware resolves the {locale} segment. Unknown locales render
// the not-found page in the default locale.
func (s *Site) localeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l, ok := locale.Parse(chi.URLParam(r, localeParam))
		if !ok || chi.URLParam(r, localeParam) != l.String() {
			s.NotFound(w, r)

			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), localeKey{}, l)))
	})
}

// requestLocale returns the locale of the request: the resolved route
// locale, then a valid first path segment, then the default.
func (s *Site) requestLocale(r *http.Request) locale.Locale {
	if l, ok := r.Context().Value(localeKey{}).(locale.Locale); ok {
		return l
	}

	first, _, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if l, ok := locale.Parse(first); ok && first == l.String() {
		return l
	}

	return s.defaultLocale
}

func (s *Site) siteName(l locale.Locale) string {
	return locale.New(s.cfg.NameAR, s.cfg.NameEN).Resolve(l)
}

func (s *Site) newView(r *http.Request, title string, data any) view {
	l := s.requestLocale(r)

	return view{
		L:        l,
		Dir:      l.Dir(),
		SiteName: s.siteName(l),
		Title:    title,
		Path:     pathWithoutLocale(r.URL, l),
		Other:    l.Other(),
		Nav:      publicNav,
		Data:     data,
	}
}

func pathWithoutLocale(u *url.URL, l locale.Locale) string {
	p := strings.TrimPrefix(u.Path, "/"+l.String())
	if p == "/" {
		p = ""
	}

	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}

	return p
}

// render executes a page into a buffer first so a template error never
// leaves a half-written response.
func (s *Site) render(w http.ResponseWriter, r *http.Request, status int, name string, v view) {
	s.renderPage(w, r, status, name, v.L, v)
}

func (s *Site) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, l locale.Locale, data any) {
	var buf bytes.Buffer

	if err := s.views.render(&buf, name, data); err != nil {
		s.log.WithError(err).WithField("template", name).Error("Failed to render page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Language", l.String())
	w.WriteHeader(status)

	if _, err := buf.WriteTo(w); err != nil {
		s.log.WithError(err).WithField("path", r.URL.Path).Debug("Client went away")
	}
}

// NotFound renders the not-found page with links back into the site.
func (s *Site) NotFound(w http.ResponseWriter, r *http.Request) {
	l := s.requestLocale(r)

	s.render(w, r, http.StatusNotFound, "notfound", s.newView(r, locale.Messages.T(l, "notfound.title"), nil))
}

// detailError renders the outcome of a failed detail lookup.
func (s *Site) detailError(w http.ResponseWriter, r *http.Request, what string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.NotFound(w, r)

		return
	}

	s.log.WithError(err).WithField("entity", what).Warn("Detail fetch failed")

	l := s.requestLocale(r)
	s.render(w, r, http.StatusInternalServerError, "error", s.newView(r, locale.Messages.T(l, "nav.home"), nil))
}
