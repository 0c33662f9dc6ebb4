package auth

import (
	"context"
	"sync"
)

// Event is a change notification for a user's sessions. The concrete
// types are SignedIn, SignedOut, TokenRefreshed and RoleChanged.
type Event interface {
	isEvent()
}

// SignedIn is emitted when a new session is created for the user.
type SignedIn struct {
	Session Session
}

// SignedOut is emitted when a session ends.
type SignedOut struct {
	Token string
}

// TokenRefreshed is emitted when a session's lifetime is extended.
type TokenRefreshed struct {
	Session Session
}

// RoleChanged is emitted when the user's role is assigned or revoked.
type RoleChanged struct {
	Role Role
}

func (SignedIn) isEvent()       {}
func (SignedOut) isEvent()      {}
func (TokenRefreshed) isEvent() {}
func (RoleChanged) isEvent()    {}

const eventBuffer = 8

// broker fans out events per user id.
type broker struct {
	mu   sync.RWMutex
	subs map[uint]map[int]chan Event
	next int
}

func newBroker() *broker {
	return &broker{subs: make(map[uint]map[int]chan Event)}
}

// subscribe returns a channel of events for userID, closed when ctx ends.
func (b *broker) subscribe(ctx context.Context, userID uint) <-chan Event {
	ch := make(chan Event, eventBuffer)

	b.mu.Lock()
	id := b.next
	b.next++

	if b.subs[userID] == nil {
		b.subs[userID] = make(map[int]chan Event)
	}

	b.subs[userID][id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()

		b.mu.Lock()
		delete(b.subs[userID], id)

		if len(b.subs[userID]) == 0 {
			delete(b.subs, userID)
		}

		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

func (b *broker) publish(userID uint, evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[userID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *broker) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, subs := range b.subs {
		n += len(subs)
	}

	return n
}
