package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{name: "bearer header", header: "Bearer abc", want: "abc"},
		{name: "cookie fallback", cookie: "def", want: "def"},
		{name: "header wins", header: "Bearer abc", cookie: "def", want: "abc"},
		{name: "non bearer header", header: "Basic xyz", want: ""},
		{name: "nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: "bayan_session", Value: tt.cookie})
			}

			assert.Equal(t, tt.want, TokenFromRequest(r, "bayan_session"))
		})
	}
}

func TestMiddleware_InjectsGuard(t *testing.T) {
	src := newFakeSource()
	src.sessions["tok"] = &Session{Token: "tok", Identity: Identity{UserID: 7}}
	src.roles[7] = RoleEditor

	var snap Snapshot

	h := Middleware(testLogger(), src, "bayan_session")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g := FromContext(r.Context())
		require.NotNil(t, g)

		snap = g.Snapshot()
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer tok")
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, StateWithRole, snap.State)
	assert.Equal(t, RoleEditor, snap.Role)
	assert.False(t, snap.Loading)
}

func TestRequireSession_RedirectsToLogin(t *testing.T) {
	src := newFakeSource()

	called := false
	h := RequireSession(testLogger(), src, "bayan_session", "/admin/login")(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/programs?page=2", nil))

	assert.False(t, called, "protected handler must not run")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/login?next="+"%2Fadmin%2Fprograms%3Fpage%3D2", rec.Header().Get("Location"))
}

func TestRequireSession_PassesAuthenticated(t *testing.T) {
	src := newFakeSource()
	src.sessions["tok"] = &Session{Token: "tok", Identity: Identity{UserID: 1}}

	var state State

	h := RequireSession(testLogger(), src, "bayan_session", "/admin/login")(
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			state = FromContext(r.Context()).Snapshot().State
		}),
	)

	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.AddCookie(&http.Cookie{Name: "bayan_session", Value: "tok"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StateNoRole, state, "a role-less session still reaches the handler")
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "/admin/login", LoginURL("/admin/login", ""))
	assert.Equal(t, "/admin/login", LoginURL("/admin/login", "/admin/login"))
	assert.Equal(t, "/admin/login?next=%2Fadmin", LoginURL("/admin/login", "/admin"))
}

func TestSessionCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, httptest.NewRequest(http.MethodPost, "/", nil), "bayan_session", "tok", time.Hour)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec, "bayan_session")

	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
