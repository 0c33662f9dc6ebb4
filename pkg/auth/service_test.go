package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthassoc/bayan/pkg/api/store"
	"github.com/healthassoc/bayan/pkg/config"
)

func setupService(t *testing.T, cfg *config.AuthConfig) (*Service, store.Store) {
	t.Helper()

	st := store.NewStore(testLogger(), &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: ":memory:"},
	}, nil)
	require.NoError(t, st.Start(context.Background()))

	t.Cleanup(func() { _ = st.Stop() })

	if cfg == nil {
		cfg = &config.AuthConfig{
			SessionTTL:               "1h",
			AllowSignup:              true,
			BootstrapFirstSuperadmin: true,
		}
	}

	svc, err := NewService(testLogger(), st, cfg)
	require.NoError(t, err)

	return svc, st
}

func TestNewService_InvalidTTL(t *testing.T) {
	_, err := NewService(testLogger(), nil, &config.AuthConfig{SessionTTL: "soon"})
	require.Error(t, err)
}

func TestService_SignUpBootstrapsFirstSuperadmin(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	first, role, err := svc.SignUp(ctx, "Founder@Example.org", "password-1")
	require.NoError(t, err)
	assert.Equal(t, RoleSuperadmin, role)
	assert.Equal(t, "founder@example.org", first.Identity.Email)

	second, role, err := svc.SignUp(ctx, "member@example.org", "password-2")
	require.NoError(t, err)
	assert.Equal(t, RoleNone, role, "later accounts start without a role")

	got, err := svc.LookupRole(ctx, second.Identity.UserID)
	require.NoError(t, err)
	assert.Equal(t, RoleNone, got)
}

// slowRoleStore widens the window between reading and writing roles.
type slowRoleStore struct {
	store.Store
}

func (s slowRoleStore) CountUsersWithRole(ctx context.Context, role string) (int64, error) {
	time.Sleep(50 * time.Millisecond)

	return s.Store.CountUsersWithRole(ctx, role)
}

func (s slowRoleStore) GrantRoleIfUnheld(ctx context.Context, userID uint, role string) (bool, error) {
	time.Sleep(50 * time.Millisecond)

	return s.Store.GrantRoleIfUnheld(ctx, userID, role)
}

// failingGrantStore cannot assign roles.
type failingGrantStore struct {
	store.Store
}

func (failingGrantStore) GrantRoleIfUnheld(context.Context, uint, string) (bool, error) {
	return false, errors.New("database is locked")
}

func TestService_ConcurrentSignUpsBootstrapOnce(t *testing.T) {
	_, st := setupService(t, nil)

	svc, err := NewService(testLogger(), slowRoleStore{Store: st}, &config.AuthConfig{
		SessionTTL:               "1h",
		AllowSignup:              true,
		BootstrapFirstSuperadmin: true,
	})
	require.NoError(t, err)

	const signups = 4

	var (
		wg    sync.WaitGroup
		roles = make([]Role, signups)
		errs  = make([]error, signups)
	)

	for i := range signups {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, roles[i], errs[i] = svc.SignUp(context.Background(),
				fmt.Sprintf("user%d@example.org", i), "password-1")
		}()
	}

	wg.Wait()

	var granted int

	for i := range signups {
		require.NoError(t, errs[i])

		if roles[i] == RoleSuperadmin {
			granted++
		}
	}

	assert.Equal(t, 1, granted)

	n, err := st.CountUsersWithRole(context.Background(), string(RoleSuperadmin))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestService_SignUpKeepsAccountWhenGrantFails(t *testing.T) {
	_, st := setupService(t, nil)
	ctx := context.Background()

	svc, err := NewService(testLogger(), failingGrantStore{Store: st}, &config.AuthConfig{
		SessionTTL:               "1h",
		AllowSignup:              true,
		BootstrapFirstSuperadmin: true,
	})
	require.NoError(t, err)

	sess, role, err := svc.SignUp(ctx, "founder@example.org", "password-1")
	require.NoError(t, err)
	assert.Equal(t, RoleNone, role)
	require.NotNil(t, sess)

	got, err := svc.Session(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "founder@example.org", got.Identity.Email)
}

func TestService_SignUpWithoutBootstrap(t *testing.T) {
	svc, _ := setupService(t, &config.AuthConfig{SessionTTL: "1h", AllowSignup: true})

	_, role, err := svc.SignUp(context.Background(), "a@example.org", "password-1")
	require.NoError(t, err)
	assert.Equal(t, RoleNone, role)
}

func TestService_SignUpErrors(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	_, _, err := svc.SignUp(ctx, "taken@example.org", "password-1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "malformed email", email: "not-an-email", password: "password-1", wantErr: ErrInvalidEmail},
		{name: "short password", email: "b@example.org", password: "short", wantErr: ErrWeakPassword},
		{name: "password over bcrypt limit", email: "b@example.org", password: strings.Repeat("p", maxPasswordBytes+1), wantErr: ErrPasswordTooLong},
		{name: "duplicate email", email: "TAKEN@example.org", password: "password-1", wantErr: ErrEmailTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.SignUp(ctx, tt.email, tt.password)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	disabled, _ := setupService(t, &config.AuthConfig{SessionTTL: "1h"})
	_, _, err = disabled.SignUp(ctx, "c@example.org", "password-1")
	require.ErrorIs(t, err, ErrSignupDisabled)
}

func TestService_SignInAndSession(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "editor@example.org", "password-1", store.SourceAdmin)
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "editor@example.org", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignIn(ctx, "nobody@example.org", "password-1")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	sess, err := svc.SignIn(ctx, " Editor@example.org ", "password-1")
	require.NoError(t, err)
	assert.Len(t, sess.Token, sessionTokenBytes*2)

	got, err := svc.Session(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.Identity, got.Identity)

	_, err = svc.Session(ctx, "")
	require.ErrorIs(t, err, ErrNoSession)

	_, err = svc.Session(ctx, "unknown")
	require.ErrorIs(t, err, ErrNoSession)
}

func TestService_ExpiredSessionIsRemoved(t *testing.T) {
	svc, st := setupService(t, nil)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "a@example.org", "password-1", store.SourceAdmin)
	require.NoError(t, err)

	sess, err := svc.SignIn(ctx, "a@example.org", "password-1")
	require.NoError(t, err)

	events := svc.Subscribe(ctx, sess.Identity.UserID)

	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	_, err = svc.Session(ctx, sess.Token)
	require.ErrorIs(t, err, ErrNoSession)

	_, err = st.GetSessionByToken(ctx, sess.Token)
	require.ErrorIs(t, err, store.ErrNotFound)

	select {
	case evt := <-events:
		assert.Equal(t, SignedOut{Token: sess.Token}, evt)
	case <-time.After(time.Second):
		t.Fatal("expected sign-out notification")
	}
}

func TestService_SignOutNotifiesGuard(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	sess, _, err := svc.SignUp(ctx, "a@example.org", "password-1")
	require.NoError(t, err)

	g := NewGuard(testLogger(), svc, sess.Token)
	defer g.Close()

	snap := g.Start(ctx)
	require.Equal(t, StateWithRole, snap.State)

	g.Watch(ctx)
	require.Eventually(t, func() bool { return svc.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, svc.SignOut(ctx, sess.Token))

	select {
	case <-g.SignedOut():
	case <-time.After(time.Second):
		t.Fatal("guard did not observe sign-out")
	}

	_, err = svc.Session(ctx, sess.Token)
	require.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, svc.SignOut(ctx, sess.Token), "unknown tokens are ignored")
}

func TestService_RoleAssignmentAndRevocation(t *testing.T) {
	svc, _ := setupService(t, &config.AuthConfig{SessionTTL: "1h", AllowSignup: true})
	ctx := context.Background()

	sess, _, err := svc.SignUp(ctx, "a@example.org", "password-1")
	require.NoError(t, err)

	userID := sess.Identity.UserID

	g := NewGuard(testLogger(), svc, sess.Token)
	defer g.Close()

	require.Equal(t, StateNoRole, g.Start(ctx).State)
	g.Watch(ctx)
	require.Eventually(t, func() bool { return svc.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, svc.AssignRole(ctx, userID, RoleEditor))
	require.Eventually(t, func() bool {
		return g.Snapshot().Role == RoleEditor
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, svc.AssignRole(ctx, userID, RoleNone))
	require.Eventually(t, func() bool {
		return g.Snapshot().State == StateNoRole
	}, time.Second, 5*time.Millisecond)

	require.ErrorIs(t, svc.RevokeRole(ctx, userID), store.ErrNotFound)
	require.ErrorIs(t, svc.AssignRole(ctx, 999, RoleViewer), store.ErrNotFound)
}

func TestService_RefreshExtendsExpiry(t *testing.T) {
	svc, st := setupService(t, nil)
	ctx := context.Background()

	sess, _, err := svc.SignUp(ctx, "a@example.org", "password-1")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().UTC().Add(30 * time.Minute) }

	refreshed, err := svc.Refresh(ctx, sess.Token)
	require.NoError(t, err)
	assert.True(t, refreshed.ExpiresAt.After(sess.ExpiresAt))

	stored, err := st.GetSessionByToken(ctx, sess.Token)
	require.NoError(t, err)
	assert.WithinDuration(t, refreshed.ExpiresAt, stored.ExpiresAt, time.Second)
}

func TestService_RevokeUserEndsAllSessions(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	first, _, err := svc.SignUp(ctx, "a@example.org", "password-1")
	require.NoError(t, err)

	second, err := svc.SignIn(ctx, "a@example.org", "password-1")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeUser(ctx, first.Identity.UserID))

	for _, token := range []string{first.Token, second.Token} {
		_, err := svc.Session(ctx, token)
		require.ErrorIs(t, err, ErrNoSession)
	}
}

func TestService_RevokeSession(t *testing.T) {
	svc, _ := setupService(t, nil)
	ctx := context.Background()

	sess, _, err := svc.SignUp(ctx, "a@example.org", "password-1")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeSession(ctx, sess.ID))
	require.ErrorIs(t, svc.RevokeSession(ctx, sess.ID), store.ErrNotFound)
}
