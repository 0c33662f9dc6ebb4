package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/healthassoc/bayan/pkg/api/store"
	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/imagegen"
	"github.com/healthassoc/bayan/pkg/locale"
)

const maxJSONBody = 1 << 20

// errorResponse is the standard error payload. Fields carries per-field
// validation problems; Message is shown to the user in either language.
type errorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Message *locale.Text      `json:"message,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
}

var statusOK = statusResponse{Status: "ok"}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

func (s *server) writeInternal(w http.ResponseWriter, msg string, err error) {
	s.log.WithError(err).Error(msg)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

// writeStoreError maps store errors onto HTTP statuses.
func (s *server) writeStoreError(w http.ResponseWriter, what string, err error) {
	var verrs content.ValidationErrors

	switch {
	case errors.As(err, &verrs):
		writeValidation(w, verrs)
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: what + " not found", Code: "not_found"})
	case errors.Is(err, store.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: what + " already exists", Code: "conflict"})
	default:
		s.writeInternal(w, "Failed to write "+what, err)
	}
}

func writeValidation(w http.ResponseWriter, errs content.ValidationErrors) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Error:  "validation failed",
		Code:   "invalid",
		Fields: errs,
	})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})

		return false
	}

	return true
}

// parseIDParam extracts the {id} URL parameter.
func parseIDParam(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}

	return uint(id), nil
}

func (s *server) idParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return 0, false
	}

	return id, true
}

// listQuery reads status, q, order, limit and offset from the query string.
func listQuery(r *http.Request) (store.Query, error) {
	q := r.URL.Query()

	out := store.Query{
		Status: content.Status(q.Get("status")),
		Search: q.Get("q"),
		Order:  q.Get("order"),
	}

	if out.Status != "" && !out.Status.Valid() {
		return out, fmt.Errorf("unknown status %q", out.Status)
	}

	var err error

	if out.Limit, err = intParam(q.Get("limit")); err != nil {
		return out, fmt.Errorf("limit: %w", err)
	}

	if out.Offset, err = intParam(q.Get("offset")); err != nil {
		return out, fmt.Errorf("offset: %w", err)
	}

	return out, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number %q", raw)
	}

	return n, nil
}

type listResponse[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

// --- Public handlers ---

// handleHealth reports whether the database answers.
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.WithError(err).Warn("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "unavailable"})

		return
	}

	writeJSON(w, http.StatusOK, statusOK)
}

type configResponse struct {
	Site struct {
		Name          locale.Text `json:"name"`
		DefaultLocale string      `json:"default_locale"`
		Locales       []string    `json:"locales"`
	} `json:"site"`
	Auth struct {
		SignupEnabled bool `json:"signup_enabled"`
	} `json:"auth"`
	Media struct {
		MaxUploadSize int64    `json:"max_upload_size"`
		ImageGen      bool     `json:"image_generation"`
		Categories    []string `json:"categories"`
	} `json:"media"`
}

// handleConfig returns what clients need to render the admin panel.
func (s *server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	var resp configResponse

	resp.Site.Name = locale.New(s.cfg.Site.NameAR, s.cfg.Site.NameEN)
	resp.Site.DefaultLocale = s.cfg.Site.DefaultLocale

	for _, l := range locale.All {
		resp.Site.Locales = append(resp.Site.Locales, l.String())
	}

	resp.Auth.SignupEnabled = s.cfg.Auth.AllowSignup
	resp.Media.MaxUploadSize = s.uploader.MaxSize()
	resp.Media.ImageGen = s.images.Enabled()
	resp.Media.Categories = imagegen.Categories()

	writeJSON(w, http.StatusOK, resp)
}
