package realtime

import "sync"

// Ticket identifies one issued refetch.
type Ticket uint64

// Latest keeps only the result of the most recently issued refetch. A
// slower, earlier refetch never overwrites a newer one.
type Latest[T any] struct {
	mu      sync.Mutex
	issued  Ticket
	applied Ticket
	value   T
}

// Begin issues a ticket for a new refetch.
func (l *Latest[T]) Begin() Ticket {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.issued++

	return l.issued
}

// Apply stores v when t is the newest ticket issued so far and reports
// whether it did.
func (l *Latest[T]) Apply(t Ticket, v T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t != l.issued || t <= l.applied {
		return false
	}

	l.applied = t
	l.value = v

	return true
}

// Value returns the last applied result and its ticket. The ticket is zero
// when nothing has been applied.
func (l *Latest[T]) Value() (T, Ticket) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.value, l.applied
}
