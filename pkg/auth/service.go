package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/healthassoc/bayan/pkg/api/store"
	"github.com/healthassoc/bayan/pkg/config"
)

const (
	sessionTokenBytes  = 32
	minPasswordLength  = 8
	maxPasswordBytes   = 72
	lastActiveThrottle = 5 * time.Minute
	defaultSessionTTL  = 24 * time.Hour
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong
	// password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNoSession is returned when a token has no live session.
	ErrNoSession = errors.New("no session")

	// ErrSignupDisabled is returned when self sign-up is turned off.
	ErrSignupDisabled = errors.New("sign-up is disabled")

	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrWeakPassword is returned for passwords below the minimum length.
	ErrWeakPassword = fmt.Errorf("password must be at least %d characters", minPasswordLength)

	// ErrPasswordTooLong is returned for passwords bcrypt cannot hash.
	ErrPasswordTooLong = fmt.Errorf("password must be at most %d bytes", maxPasswordBytes)

	// ErrInvalidEmail is returned for malformed email addresses.
	ErrInvalidEmail = errors.New("invalid email address")
)

// Identity is the signed-in user.
type Identity struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
}

// Session is a live login session.
type Session struct {
	ID        uint      `json:"id"`
	Token     string    `json:"-"`
	Identity  Identity  `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionSource is what a Guard resolves against.
type SessionSource interface {
	Session(ctx context.Context, token string) (*Session, error)
	LookupRole(ctx context.Context, userID uint) (Role, error)
	Subscribe(ctx context.Context, userID uint) <-chan Event
}

// Service authenticates users and manages sessions and roles.
type Service struct {
	log         logrus.FieldLogger
	store       store.Store
	ttl         time.Duration
	allowSignup bool
	bootstrap   bool
	bootstrapMu sync.Mutex
	events      *broker
	now         func() time.Time
}

// Compile-time interface check.
var _ SessionSource = (*Service)(nil)

// NewService creates an auth service from the auth config section.
func NewService(
	log logrus.FieldLogger,
	st store.Store,
	cfg *config.AuthConfig,
) (*Service, error) {
	ttl := defaultSessionTTL

	if cfg.SessionTTL != "" {
		d, err := time.ParseDuration(cfg.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("parsing auth.session_ttl: %w", err)
		}

		ttl = d
	}

	return &Service{
		log:         log.WithField("component", "auth"),
		store:       st,
		ttl:         ttl,
		allowSignup: cfg.AllowSignup,
		bootstrap:   cfg.BootstrapFirstSuperadmin,
		events:      newBroker(),
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// TTL returns the session lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// SignIn verifies the password and opens a new session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}

		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !checkPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return s.openSession(ctx, user)
}

// SignUp creates an account and signs it in. The first account created
// while no SUPERADMIN exists is granted SUPERADMIN when bootstrapping is
// enabled; every other account starts without a role. A failed grant
// leaves the account signed in without a role.
func (s *Service) SignUp(ctx context.Context, email, password string) (*Session, Role, error) {
	if !s.allowSignup {
		return nil, RoleNone, ErrSignupDisabled
	}

	user, err := s.CreateUser(ctx, email, password, store.SourceSignup)
	if err != nil {
		return nil, RoleNone, err
	}

	role := RoleNone

	if s.bootstrap && s.bootstrapSuperadmin(ctx, user) {
		role = RoleSuperadmin
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, RoleNone, err
	}

	return session, role, nil
}

func (s *Service) bootstrapSuperadmin(ctx context.Context, user *store.User) bool {
	s.bootstrapMu.Lock()
	defer s.bootstrapMu.Unlock()

	granted, err := s.store.GrantRoleIfUnheld(ctx, user.ID, string(RoleSuperadmin))
	if err != nil {
		s.log.WithError(err).
			WithField("email", user.Email).
			Warn("Failed to bootstrap superadmin")

		return false
	}

	if !granted {
		return false
	}

	s.events.publish(user.ID, RoleChanged{Role: RoleSuperadmin})

	s.log.WithField("email", user.Email).
		Info("Bootstrapped first superadmin")

	return true
}

// CreateUser registers an account without opening a session.
func (s *Service) CreateUser(ctx context.Context, email, password, source string) (*store.User, error) {
	email = normalizeEmail(email)

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	if len(password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &store.User{
		Email:        email,
		PasswordHash: string(hash),
		Source:       source,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}

		return nil, err
	}

	return user, nil
}

// SignOut ends the session for token. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	session, err := s.store.GetSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}

		return fmt.Errorf("looking up session: %w", err)
	}

	if err := s.store.DeleteSession(ctx, token); err != nil {
		return err
	}

	s.events.publish(session.UserID, SignedOut{Token: token})

	return nil
}

// RevokeSession ends a session by id on behalf of an administrator.
func (s *Service) RevokeSession(ctx context.Context, id uint) error {
	session, err := s.store.GetSessionByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteSessionByID(ctx, id); err != nil {
		return err
	}

	s.events.publish(session.UserID, SignedOut{Token: session.Token})

	return nil
}

// RevokeUser ends every session of a user.
func (s *Service) RevokeUser(ctx context.Context, userID uint) error {
	sessions, err := s.store.DeleteSessionsByUser(ctx, userID)
	if err != nil {
		return err
	}

	for _, sess := range sessions {
		s.events.publish(userID, SignedOut{Token: sess.Token})
	}

	return nil
}

// Session returns the live session for token. Expired sessions are
// removed and reported as ErrNoSession.
func (s *Service) Session(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	sess, err := s.store.GetSessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSession
		}

		return nil, fmt.Errorf("looking up session: %w", err)
	}

	now := s.now()

	if now.After(sess.ExpiresAt) {
		if err := s.store.DeleteSession(ctx, token); err != nil {
			s.log.WithError(err).Warn("Failed to delete expired session")
		}

		s.events.publish(sess.UserID, SignedOut{Token: token})

		return nil, ErrNoSession
	}

	user, err := s.store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoSession
		}

		return nil, fmt.Errorf("looking up session user: %w", err)
	}

	if sess.LastActiveAt == nil || now.Sub(*sess.LastActiveAt) > lastActiveThrottle {
		if err := s.store.UpdateSessionLastActive(ctx, sess.ID, now); err != nil {
			s.log.WithError(err).Warn("Failed to update session last active")
		}
	}

	return toSession(sess, user), nil
}

// Refresh extends the lifetime of the session for token.
func (s *Service) Refresh(ctx context.Context, token string) (*Session, error) {
	sess, err := s.Session(ctx, token)
	if err != nil {
		return nil, err
	}

	sess.ExpiresAt = s.now().Add(s.ttl)

	if err := s.store.UpdateSessionExpiry(ctx, sess.ID, sess.ExpiresAt); err != nil {
		return nil, err
	}

	s.events.publish(sess.Identity.UserID, TokenRefreshed{Session: *sess})

	return sess, nil
}

// LookupRole returns the user's role. A missing role row is RoleNone with
// a nil error.
func (s *Service) LookupRole(ctx context.Context, userID uint) (Role, error) {
	row, err := s.store.GetUserRole(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RoleNone, nil
		}

		return RoleNone, fmt.Errorf("looking up role: %w", err)
	}

	role, err := ParseRole(row.Role)
	if err != nil {
		return RoleNone, fmt.Errorf("user %d: %w", userID, err)
	}

	return role, nil
}

// AssignRole sets the user's role.
func (s *Service) AssignRole(ctx context.Context, userID uint, role Role) error {
	if role == RoleNone {
		return s.RevokeRole(ctx, userID)
	}

	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return err
	}

	if err := s.store.SetUserRole(ctx, userID, string(role)); err != nil {
		return err
	}

	s.events.publish(userID, RoleChanged{Role: role})

	return nil
}

// RevokeRole removes the user's role.
func (s *Service) RevokeRole(ctx context.Context, userID uint) error {
	if err := s.store.DeleteUserRole(ctx, userID); err != nil {
		return err
	}

	s.events.publish(userID, RoleChanged{Role: RoleNone})

	return nil
}

// Subscribe returns change notifications for userID until ctx ends.
func (s *Service) Subscribe(ctx context.Context, userID uint) <-chan Event {
	return s.events.subscribe(ctx, userID)
}

// Subscribers returns the number of live notification subscriptions.
func (s *Service) Subscribers() int {
	return s.events.count()
}

// SweepExpired deletes expired sessions.
func (s *Service) SweepExpired(ctx context.Context) error {
	return s.store.DeleteExpiredSessions(ctx)
}

func (s *Service) openSession(ctx context.Context, user *store.User) (*Session, error) {
	token, err := generateSessionToken()
	if err != nil {
		return nil, err
	}

	sess := &store.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.ttl),
	}

	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	out := toSession(sess, user)

	s.events.publish(user.ID, SignedIn{Session: *out})

	return out, nil
}

func toSession(sess *store.Session, user *store.User) *Session {
	return &Session{
		ID:        sess.ID,
		Token:     sess.Token,
		Identity:  Identity{UserID: user.ID, Email: user.Email},
		ExpiresAt: sess.ExpiresAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// checkPassword compares a bcrypt hash with a plaintext password.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword(
		[]byte(hash), []byte(password),
	) == nil
}

// generateSessionToken creates a cryptographically random session token.
func generateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}

	return hex.EncodeToString(b), nil
}
