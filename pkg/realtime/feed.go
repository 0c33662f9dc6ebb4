// Package realtime fans out row changes to per-table subscribers and keeps
// dependent lists in sync with them.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Kind is the type of a row change.
type Kind string

// Change kinds.
const (
	Insert Kind = "INSERT"
	Update Kind = "UPDATE"
	Delete Kind = "DELETE"
)

// Change describes one committed row change on a table.
type Change struct {
	Kind  Kind      `json:"kind"`
	Table string    `json:"table"`
	ID    uint      `json:"id"`
	Row   any       `json:"row,omitempty"`
	At    time.Time `json:"at"`
}

// Publisher accepts committed changes.
type Publisher interface {
	Publish(c Change)
}

// Subscriber hands out per-table change channels. The channel is closed
// when ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context, table string) <-chan Change
}

const defaultBuffer = 16

// Feed is an in-process change feed.
type Feed struct {
	log     logrus.FieldLogger
	buffer  int
	mu      sync.RWMutex
	subs    map[string]map[int]chan Change
	next    int
	dropped atomic.Uint64
}

// Compile-time interface checks.
var (
	_ Publisher  = (*Feed)(nil)
	_ Subscriber = (*Feed)(nil)
)

// NewFeed creates an empty feed. Each subscriber gets a channel of
// buffer entries; a full channel drops further changes.
func NewFeed(log logrus.FieldLogger, buffer int) *Feed {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	return &Feed{
		log:    log.WithField("component", "realtime"),
		buffer: buffer,
		subs:   make(map[string]map[int]chan Change),
	}
}

// Subscribe registers a subscriber for table.
func (f *Feed) Subscribe(ctx context.Context, table string) <-chan Change {
	ch := make(chan Change, f.buffer)

	f.mu.Lock()
	id := f.next
	f.next++

	if f.subs[table] == nil {
		f.subs[table] = make(map[int]chan Change)
	}

	f.subs[table][id] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()

		f.mu.Lock()
		delete(f.subs[table], id)

		if len(f.subs[table]) == 0 {
			delete(f.subs, table)
		}

		close(ch)
		f.mu.Unlock()
	}()

	return ch
}

// Publish delivers c to every subscriber of c.Table without blocking.
func (f *Feed) Publish(c Change) {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, ch := range f.subs[c.Table] {
		select {
		case ch <- c:
		default:
			f.dropped.Add(1)
			f.log.WithField("table", c.Table).
				WithField("kind", c.Kind).
				Debug("Dropped change for slow subscriber")
		}
	}
}

// Subscribers returns the number of live subscriptions across all tables.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := 0
	for _, subs := range f.subs {
		n += len(subs)
	}

	return n
}

// Dropped returns the number of changes dropped for slow subscribers.
func (f *Feed) Dropped() uint64 {
	return f.dropped.Load()
}

// Discard is a Publisher that ignores every change.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Change) {}
