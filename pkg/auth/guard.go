package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// State is the resolution state of a Guard.
type State string

// Guard states. A guard starts in StateChecking and settles in one of the
// other three.
const (
	StateChecking        State = "checking"
	StateUnauthenticated State = "unauthenticated"
	StateNoRole          State = "authenticated-no-role"
	StateWithRole        State = "authenticated-with-role"
)

// Snapshot is what callers read from a Guard. Protected content must not
// be rendered while Loading is true.
type Snapshot struct {
	State           State     `json:"state"`
	Identity        *Identity `json:"identity"`
	Role            Role      `json:"role"`
	Loading         bool      `json:"loading"`
	IsAuthenticated bool      `json:"is_authenticated"`
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// RequireAuth calls redirect whenever the guard becomes unauthenticated.
func RequireAuth(redirect func()) GuardOption {
	return func(g *Guard) {
		g.redirect = redirect
	}
}

// OnChange calls fn with the new snapshot after every state change.
func OnChange(fn func(Snapshot)) GuardOption {
	return func(g *Guard) {
		g.onChange = fn
	}
}

// Guard resolves the session and role behind one token and keeps them
// current while it is watched.
type Guard struct {
	log      logrus.FieldLogger
	src      SessionSource
	token    string
	redirect func()
	onChange func(Snapshot)

	mu      sync.RWMutex
	state   State
	session *Session
	role    Role

	signedOut chan struct{}
	outOnce   sync.Once

	watchMu   sync.Mutex
	watching  bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool
}

// NewGuard creates a guard for token in StateChecking.
func NewGuard(
	log logrus.FieldLogger,
	src SessionSource,
	token string,
	opts ...GuardOption,
) *Guard {
	g := &Guard{
		log:       log.WithField("component", "guard"),
		src:       src,
		token:     token,
		state:     StateChecking,
		signedOut: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Start resolves the session and the role. A failed or missing session
// settles in StateUnauthenticated; a failed role lookup is logged and
// settles in StateNoRole.
func (g *Guard) Start(ctx context.Context) Snapshot {
	sess, err := g.src.Session(ctx, g.token)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			g.log.WithError(err).Warn("Session lookup failed")
		}

		g.toUnauthenticated()

		return g.Snapshot()
	}

	role := g.lookupRole(ctx, sess.Identity.UserID)

	g.mu.Lock()
	g.session = sess
	g.setRoleLocked(role)
	g.mu.Unlock()

	g.notify()

	return g.Snapshot()
}

// Watch subscribes to session notifications in the background until ctx
// ends or Close is called. It does nothing for an unauthenticated guard
// or when already watching.
func (g *Guard) Watch(ctx context.Context) {
	g.watchMu.Lock()
	defer g.watchMu.Unlock()

	if g.watching || g.closed.Load() {
		return
	}

	snap := g.Snapshot()
	if !snap.IsAuthenticated {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.watching = true

	events := g.src.Subscribe(ctx, snap.Identity.UserID)

	g.wg.Add(1)

	go func() {
		defer g.wg.Done()

		for evt := range events {
			if g.closed.Load() || ctx.Err() != nil {
				return
			}

			g.handle(ctx, evt)
		}
	}()
}

func (g *Guard) handle(ctx context.Context, evt Event) {
	switch e := evt.(type) {
	case SignedOut:
		if e.Token == g.token {
			g.toUnauthenticated()
		}
	case SignedIn:
		g.reresolve(ctx, &e.Session)
	case TokenRefreshed:
		g.reresolve(ctx, &e.Session)
	case RoleChanged:
		g.reresolve(ctx, nil)
	default:
		g.log.WithField("event", evt).Warn("Unhandled auth event")
	}
}

// reresolve repeats the role lookup for an authenticated guard. sess
// replaces the cached session when it belongs to this guard's token.
func (g *Guard) reresolve(ctx context.Context, sess *Session) {
	g.mu.RLock()
	current := g.session
	g.mu.RUnlock()

	if current == nil {
		return
	}

	role := g.lookupRole(ctx, current.Identity.UserID)

	if g.closed.Load() || ctx.Err() != nil {
		return
	}

	g.mu.Lock()
	if g.session == nil {
		g.mu.Unlock()

		return
	}

	if sess != nil && sess.Token == g.token {
		updated := *sess
		g.session = &updated
	}

	g.setRoleLocked(role)
	g.mu.Unlock()

	g.notify()
}

func (g *Guard) lookupRole(ctx context.Context, userID uint) Role {
	role, err := g.src.LookupRole(ctx, userID)
	if err != nil {
		g.log.WithError(err).
			WithField("user_id", userID).
			Warn("Role lookup failed, continuing without role")

		return RoleNone
	}

	return role
}

func (g *Guard) setRoleLocked(role Role) {
	g.role = role

	if role == RoleNone {
		g.state = StateNoRole
	} else {
		g.state = StateWithRole
	}
}

func (g *Guard) toUnauthenticated() {
	g.mu.Lock()
	g.state = StateUnauthenticated
	g.session = nil
	g.role = RoleNone
	g.mu.Unlock()

	g.outOnce.Do(func() { close(g.signedOut) })

	g.notify()

	if g.redirect != nil {
		g.redirect()
	}
}

func (g *Guard) notify() {
	if g.onChange != nil && !g.closed.Load() {
		g.onChange(g.Snapshot())
	}
}

// Snapshot returns the current state.
func (g *Guard) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := Snapshot{
		State:           g.state,
		Role:            g.role,
		Loading:         g.state == StateChecking,
		IsAuthenticated: g.state == StateNoRole || g.state == StateWithRole,
	}

	if g.session != nil {
		id := g.session.Identity
		snap.Identity = &id
	}

	return snap
}

// Session returns the cached session, or nil when unauthenticated.
func (g *Guard) Session() *Session {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.session == nil {
		return nil
	}

	sess := *g.session

	return &sess
}

// Token returns the token the guard was created for.
func (g *Guard) Token() string {
	return g.token
}

// SignedOut is closed once the guard becomes unauthenticated.
func (g *Guard) SignedOut() <-chan struct{} {
	return g.signedOut
}

// Close releases the notification subscription. It is safe to call more
// than once; no notification is processed after it returns.
func (g *Guard) Close() {
	g.closeOnce.Do(func() {
		g.closed.Store(true)

		g.watchMu.Lock()
		if g.cancel != nil {
			g.cancel()
		}
		g.watchMu.Unlock()

		g.wg.Wait()
	})
}
