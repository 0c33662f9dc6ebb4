package api

import (
	"net/http"

	"gorm.io/datatypes"

	"github.com/healthassoc/bayan/pkg/api/store"
	"github.com/healthassoc/bayan/pkg/content"
)

// recordActivity appends one audit entry for a successful mutation. A
// failed append is logged and does not undo the mutation.
func (s *server) recordActivity(
	r *http.Request,
	action string,
	kind content.Kind,
	entityID uint,
	metadata map[string]any,
) {
	entry := &content.ActivityLog{
		Action:     action,
		EntityType: kind,
		EntityID:   entityID,
		ActorID:    actorID(r),
		Metadata:   datatypes.JSONMap(metadata),
	}

	if err := s.store.AppendActivity(r.Context(), entry); err != nil {
		s.log.WithError(err).
			WithField("action", action).
			WithField("entity_type", kind).
			WithField("entity_id", entityID).
			Error("Failed to record activity")

		return
	}

	s.metrics.mutations.WithLabelValues(string(kind), action).Inc()
}

// handleListActivity returns the audit log, newest first.
func (s *server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	offset, err := intParam(q.Get("offset"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	actor, err := intParam(q.Get("actor_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	entries, total, err := s.store.ListActivity(r.Context(), store.ActivityQuery{
		EntityType: content.Kind(q.Get("entity_type")),
		ActorID:    uint(actor),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		s.writeInternal(w, "Failed to list activity", err)

		return
	}

	writeJSON(w, http.StatusOK, listResponse[content.ActivityLog]{Items: entries, Total: total})
}
