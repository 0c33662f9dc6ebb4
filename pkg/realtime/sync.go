package realtime

import (
	"context"
	"fmt"

	"github.com/healthassoc/bayan/pkg/locale"
)

// Handlers are invoked per change kind. Nil handlers are skipped.
type Handlers struct {
	OnInsert func(ctx context.Context, c Change)
	OnUpdate func(ctx context.Context, c Change)
	OnDelete func(ctx context.Context, c Change)
}

// Notice is a transient user-facing message about a change.
type Notice struct {
	Kind    Kind        `json:"kind"`
	Table   string      `json:"table"`
	Message locale.Text `json:"message"`
}

// NewNotice builds the bilingual message for a change on table.
func NewNotice(kind Kind, table string) Notice {
	var msg locale.Text

	switch kind {
	case Insert:
		msg = locale.New(fmt.Sprintf("تمت إضافة سجل جديد في %s", table), fmt.Sprintf("New record in %s", table))
	case Update:
		msg = locale.New(fmt.Sprintf("تم تحديث سجل في %s", table), fmt.Sprintf("Record updated in %s", table))
	case Delete:
		msg = locale.New(fmt.Sprintf("تم حذف سجل من %s", table), fmt.Sprintf("Record deleted from %s", table))
	default:
		msg = locale.New(table, table)
	}

	return Notice{Kind: kind, Table: table, Message: msg}
}

type syncOptions struct {
	notify func(Notice)
}

// SyncOption configures Sync.
type SyncOption func(*syncOptions)

// WithNotifier emits a Notice for every change handled.
func WithNotifier(fn func(Notice)) SyncOption {
	return func(o *syncOptions) {
		o.notify = fn
	}
}

// Sync subscribes to table and dispatches each change to the matching
// handler in arrival order until ctx ends. Nothing is dispatched once ctx
// is done, and changes that happen while Sync is not running are not
// replayed.
func Sync(
	ctx context.Context,
	sub Subscriber,
	table string,
	h Handlers,
	opts ...SyncOption,
) {
	var o syncOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := sub.Subscribe(ctx, table)

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-ch:
			if !ok {
				return
			}

			if ctx.Err() != nil {
				return
			}

			dispatch(ctx, h, c)

			if o.notify != nil {
				o.notify(NewNotice(c.Kind, table))
			}
		}
	}
}

func dispatch(ctx context.Context, h Handlers, c Change) {
	var fn func(context.Context, Change)

	switch c.Kind {
	case Insert:
		fn = h.OnInsert
	case Update:
		fn = h.OnUpdate
	case Delete:
		fn = h.OnDelete
	}

	if fn != nil {
		fn(ctx, c)
	}
}

// Refetch returns Handlers that call fn once for every change kind.
func Refetch(fn func(ctx context.Context, c Change)) Handlers {
	return Handlers{OnInsert: fn, OnUpdate: fn, OnDelete: fn}
}
