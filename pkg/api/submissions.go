package api

import (
	"fmt"
	"net/http"

	"github.com/healthassoc/bayan/pkg/content"
)

// handleListSubmissions lists contact submissions, newest first. The
// status filter takes submission statuses (new, read, archived).
func (s *server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	status := content.SubmissionStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("unknown status %q", status)})

		return
	}

	q := r.URL.Query()
	q.Del("status")
	r.URL.RawQuery = q.Encode()

	query, err := listQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	query.Status = content.Status(status)

	items, total, err := s.store.Submissions().List(r.Context(), query)
	if err != nil {
		s.writeInternal(w, "Failed to list submissions", err)

		return
	}

	writeJSON(w, http.StatusOK, listResponse[content.Submission]{Items: items, Total: total})
}

func (s *server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	sub, err := s.store.Submissions().Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "submission", err)

		return
	}

	writeJSON(w, http.StatusOK, sub)
}

type submissionStatusRequest struct {
	Status content.SubmissionStatus `json:"status"`
}

// handleUpdateSubmission changes the triage status only.
func (s *server) handleUpdateSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	var req submissionStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if !req.Status.Valid() {
		writeValidation(w, content.ValidationErrors{"status": fmt.Sprintf("unknown status %q", req.Status)})

		return
	}

	sub, err := s.store.Submissions().Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "submission", err)

		return
	}

	previous := sub.Status
	sub.Status = req.Status

	updated, err := s.store.Submissions().Update(r.Context(), id, sub)
	if err != nil {
		s.writeStoreError(w, "submission", err)

		return
	}

	s.recordActivity(r, content.ActionUpdate, content.KindSubmission, id, map[string]any{
		"from": string(previous),
		"to":   string(req.Status),
	})

	writeJSON(w, http.StatusOK, updated)
}

func (s *server) handleDeleteSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}

	if err := s.store.Submissions().Delete(r.Context(), id); err != nil {
		s.writeStoreError(w, "submission", err)

		return
	}

	s.recordActivity(r, content.ActionDelete, content.KindSubmission, id, nil)

	writeJSON(w, http.StatusOK, statusOK)
}
