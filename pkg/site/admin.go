package site

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/healthassoc/bayan/pkg/auth"
	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/locale"
	"github.com/healthassoc/bayan/pkg/nav"
)

const maxLoginForm = 16 << 10

// adminView is the data every admin screen receives.
type adminView struct {
	L        locale.Locale
	Dir      string
	SiteName string
	Title    string
	Email    string
	Role     auth.Role
	Menu     []nav.Entry
	Data     any
}

func (s *Site) adminRoutes(r chi.Router) {
	r.Get(adminLoginPath, s.handleAdminLoginForm)
	r.With(s.formLimiter).Post(adminLoginPath, s.handleAdminLogin)
	r.Post("/admin/logout", s.handleAdminLogout)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(s.log, s.auth, s.cookieName, adminLoginPath))
		r.Get("/admin", s.handleAdminDashboard)
		r.Get("/admin/{section}", s.handleAdminSection)
	})
}

// adminLocale reads ?lang, falling back to the default locale.
func (s *Site) adminLocale(r *http.Request) locale.Locale {
	if l, ok := locale.Parse(r.URL.Query().Get("lang")); ok {
		return l
	}

	return s.defaultLocale
}

func (s *Site) newAdminView(r *http.Request, titleKey string, data any) adminView {
	l := s.adminLocale(r)

	v := adminView{
		L:        l,
		Dir:      l.Dir(),
		SiteName: s.siteName(l),
		Title:    locale.Messages.T(l, titleKey),
		Data:     data,
	}

	if g := auth.FromContext(r.Context()); g != nil {
		snap := g.Snapshot()
		if snap.Identity != nil {
			v.Email = snap.Identity.Email
			v.Role = snap.Role
			v.Menu = nav.Render(nav.Filter(nav.AdminMenu, snap.Role), l)
		}
	}

	return v
}

func (s *Site) renderAdmin(w http.ResponseWriter, r *http.Request, status int, name string, v adminView) {
	w.Header().Set("Cache-Control", "no-store")
	s.renderPage(w, r, status, "admin/"+name, v.L, v)
}

type loginData struct {
	Next   string
	Email  string
	Failed bool
}

func (s *Site) handleAdminLoginForm(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"))

	if token := auth.TokenFromRequest(r, s.cookieName); token != "" {
		if _, err := s.auth.Session(r.Context(), token); err == nil {
			http.Redirect(w, r, next, http.StatusSeeOther)

			return
		}
	}

	s.renderAdmin(w, r, http.StatusOK, "login", s.newAdminView(r, "admin.login", loginData{Next: next}))
}

func (s *Site) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginForm)

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return
	}

	email := r.PostForm.Get("email")
	next := safeNext(r.PostForm.Get("next"))

	sess, err := s.auth.SignIn(r.Context(), email, r.PostForm.Get("password"))
	if err != nil {
		status := http.StatusUnauthorized
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.log.WithError(err).Error("Sign-in failed")

			status = http.StatusInternalServerError
		}

		s.renderAdmin(w, r, status, "login", s.newAdminView(r, "admin.login", loginData{
			Next: next, Email: email, Failed: true,
		}))

		return
	}

	auth.SetSessionCookie(w, r, s.cookieName, sess.Token, s.auth.TTL())
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Site) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r, s.cookieName); token != "" {
		if err := s.auth.SignOut(r.Context(), token); err != nil {
			s.log.WithError(err).Warn("Sign-out failed")
		}
	}

	auth.ClearSessionCookie(w, s.cookieName)
	http.Redirect(w, r, adminLoginPath, http.StatusSeeOther)
}

type tableCount struct {
	Label     locale.Text
	Published int64
	Total     int64
}

type dashboardData struct {
	Counts []tableCount
}

// handleAdminDashboard renders the no-role screen for sessions without a
// role, otherwise content counts.
func (s *Site) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	g := auth.FromContext(r.Context())
	snap := g.Snapshot()

	if snap.State == auth.StateNoRole {
		s.renderAdmin(w, r, http.StatusForbidden, "norole", s.newAdminView(r, "admin.dashboard", nil))

		return
	}

	counts, err := s.contentCounts(r.Context())
	if err != nil {
		s.log.WithError(err).Warn("Dashboard counts failed")
	}

	s.renderAdmin(w, r, http.StatusOK, "dashboard",
		s.newAdminView(r, "admin.dashboard", dashboardData{Counts: counts}))
}

type counter interface {
	Count(ctx context.Context, status content.Status) (int64, error)
}

func (s *Site) contentCounts(ctx context.Context) ([]tableCount, error) {
	tables := []struct {
		id string
		c  counter
	}{
		{"programs", s.store.Programs()},
		{"events", s.store.Events()},
		{"posts", s.store.Posts()},
		{"kpis", s.store.KPIs()},
		{"pages", s.store.Pages()},
		{"videos", s.store.Videos()},
	}

	counts := make([]tableCount, len(tables))
	g, ctx := errgroup.WithContext(ctx)

	for i, t := range tables {
		counts[i].Label = menuLabel(t.id)

		g.Go(func() error {
			total, err := t.c.Count(ctx, "")
			if err != nil {
				return err
			}

			published, err := t.c.Count(ctx, content.StatusPublished)
			if err != nil {
				return err
			}

			counts[i].Total = total
			counts[i].Published = published

			return nil
		})
	}

	return counts, g.Wait()
}

func menuLabel(id string) locale.Text {
	if item, ok := menuItem(id); ok {
		return item.Label
	}

	return locale.New(id, id)
}

// safeNext keeps redirects inside the admin area.
func safeNext(next string) string {
	if next == "/admin" || strings.HasPrefix(next, "/admin/") || strings.HasPrefix(next, "/admin?") {
		if !strings.HasPrefix(next, adminLoginPath) {
			return next
		}
	}

	return "/admin"
}
