package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/healthassoc/bayan/pkg/api/store"
	"github.com/healthassoc/bayan/pkg/auth"
	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/realtime"
)

const (
	streamHeartbeat = 25 * time.Second
	streamBuffer    = 16
)

// Stream event names.
const (
	eventList      = "list"
	eventChange    = "change"
	eventNotice    = "notice"
	eventSignedOut = "signed_out"
	eventForbidden = "forbidden"
)

type listPayload struct {
	Table string `json:"table"`
	Items any    `json:"items"`
	Total int64  `json:"total"`
}

type tableLister func(ctx context.Context) (listPayload, error)

func lister[T any, PT content.Entity[T]](t *store.Table[T, PT]) tableLister {
	return func(ctx context.Context) (listPayload, error) {
		items, total, err := t.List(ctx, store.Query{})
		if err != nil {
			return listPayload{}, err
		}

		return listPayload{Table: t.Name(), Items: items, Total: total}, nil
	}
}

// streamTables returns the tables a realtime stream may follow.
func (s *server) streamTables() map[string]tableLister {
	return map[string]tableLister{
		s.store.Programs().Name():    lister(s.store.Programs()),
		s.store.Events().Name():      lister(s.store.Events()),
		s.store.Posts().Name():       lister(s.store.Posts()),
		s.store.KPIs().Name():        lister(s.store.KPIs()),
		s.store.Pages().Name():       lister(s.store.Pages()),
		s.store.Videos().Name():      lister(s.store.Videos()),
		s.store.Submissions().Name(): lister(s.store.Submissions()),
		s.store.Media().Name():       lister(s.store.Media()),
	}
}

type sseEvent struct {
	name string
	data any
}

func writeEvent(w io.Writer, e sseEvent) error {
	data, err := json.Marshal(e.data)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", e.name, err)
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.name, data)

	return err
}

// handleRealtime streams changes of one table as server-sent events: the
// current list first, then a change, a refreshed list and a notice per
// committed write. The stream ends when the session is signed out, the
// caller loses read access or the client goes away.
func (s *server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	list, ok := s.streamTables()[table]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown table", Code: "not_found"})

		return
	}

	g := auth.FromContext(r.Context())

	need := auth.RoleViewer
	if table == s.store.Submissions().Name() || table == s.store.Media().Name() {
		need = auth.RoleEditor
	}

	if !g.Snapshot().Role.AtLeast(need) {
		writeJSON(w, http.StatusForbidden, errorResponse{
			Error: "insufficient permissions", Code: "insufficient_role", Message: &insufficientRoleMessage,
		})

		return
	}

	rc := http.NewResponseController(w)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	g.Watch(ctx)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := rc.Flush(); err != nil {
		s.log.WithError(err).Warn("Streaming not supported by response writer")

		return
	}

	s.metrics.streams.Inc()
	defer s.metrics.streams.Dec()

	log := s.log.WithField("table", table).WithField("user_id", actorID(r))
	log.Debug("Realtime stream opened")

	var (
		out    = make(chan sseEvent, streamBuffer)
		latest realtime.Latest[listPayload]
		wg     sync.WaitGroup
	)

	send := func(e sseEvent) {
		select {
		case out <- e:
		case <-ctx.Done():
		}
	}

	// refetch reloads the list in the background. Only the newest
	// refetch is sent.
	refetch := func(ctx context.Context) {
		ticket := latest.Begin()

		wg.Add(1)

		go func() {
			defer wg.Done()

			payload, err := list(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.WithError(err).Warn("Realtime refetch failed")
				}

				return
			}

			if latest.Apply(ticket, payload) {
				send(sseEvent{name: eventList, data: payload})
			}
		}()
	}

	refetch(ctx)

	wg.Add(1)

	go func() {
		defer wg.Done()

		realtime.Sync(ctx, s.feed, table,
			realtime.Refetch(func(ctx context.Context, c realtime.Change) {
				send(sseEvent{name: eventChange, data: c})
				refetch(ctx)
			}),
			realtime.WithNotifier(func(n realtime.Notice) {
				send(sseEvent{name: eventNotice, data: n})
			}),
		)
	}()

	defer wg.Wait()
	defer cancel()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("Realtime stream closed by client")

			return
		case <-g.SignedOut():
			s.finishStream(w, rc, sseEvent{name: eventSignedOut, data: statusResponse{Status: "signed_out"}})
			log.Debug("Realtime stream ended by sign-out")

			return
		case e := <-out:
			if !g.Snapshot().Role.AtLeast(need) {
				s.finishStream(w, rc, sseEvent{name: eventForbidden, data: errorResponse{
					Error: "role revoked", Code: "no_role", Message: &noRoleMessage,
				}})

				return
			}

			if err := writeEvent(w, e); err != nil {
				log.WithError(err).Debug("Realtime write failed")

				return
			}

			if err := rc.Flush(); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}

			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (s *server) finishStream(w io.Writer, rc *http.ResponseController, e sseEvent) {
	if err := writeEvent(w, e); err != nil {
		s.log.WithError(err).Debug("Realtime final write failed")

		return
	}

	_ = rc.Flush()
}
