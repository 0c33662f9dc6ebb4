package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/healthassoc/bayan/pkg/api/store"
	"github.com/healthassoc/bayan/pkg/auth"
	"github.com/healthassoc/bayan/pkg/content"
)

// contentResource serves list, get, create, update and delete for one
// content table. Reads need VIEWER, writes need EDITOR.
type contentResource[T any, PT content.Entity[T]] struct {
	s     *server
	table *store.Table[T, PT]
}

func registerCRUD[T any, PT content.Entity[T]](
	r chi.Router, s *server, path string, table *store.Table[T, PT],
) {
	res := &contentResource[T, PT]{s: s, table: table}

	r.Route(path, func(r chi.Router) {
		r.With(s.requireRole(auth.RoleViewer)).Get("/", res.list)
		r.With(s.requireRole(auth.RoleViewer)).Get("/{id}", res.get)

		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(auth.RoleEditor))
			r.Post("/", res.create)
			r.Put("/{id}", res.update)
			r.Delete("/{id}", res.remove)
		})
	})
}

func (c *contentResource[T, PT]) what() string {
	var zero T

	return string(PT(&zero).Kind())
}

func (c *contentResource[T, PT]) list(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

		return
	}

	items, total, err := c.table.List(r.Context(), q)
	if err != nil {
		c.s.writeInternal(w, "Failed to list "+c.table.Name(), err)

		return
	}

	writeJSON(w, http.StatusOK, listResponse[T]{Items: items, Total: total})
}

func (c *contentResource[T, PT]) get(w http.ResponseWriter, r *http.Request) {
	id, ok := c.s.idParam(w, r)
	if !ok {
		return
	}

	item, err := c.table.Get(r.Context(), id)
	if err != nil {
		c.s.writeStoreError(w, c.what(), err)

		return
	}

	writeJSON(w, http.StatusOK, item)
}

// decode reads and validates a request body.
func (c *contentResource[T, PT]) decode(w http.ResponseWriter, r *http.Request) (PT, bool) {
	var none PT

	v := PT(new(T))
	if !decodeJSON(w, r, v) {
		return none, false
	}

	v.Normalize()

	if errs := v.Validate(); len(errs) > 0 {
		writeValidation(w, errs)

		return none, false
	}

	return v, true
}

func (c *contentResource[T, PT]) create(w http.ResponseWriter, r *http.Request) {
	v, ok := c.decode(w, r)
	if !ok {
		return
	}

	if err := c.table.Create(r.Context(), v); err != nil {
		c.s.writeStoreError(w, c.what(), err)

		return
	}

	c.s.recordActivity(r, content.ActionCreate, v.Kind(), v.GetID(), nil)

	writeJSON(w, http.StatusCreated, v)
}

func (c *contentResource[T, PT]) update(w http.ResponseWriter, r *http.Request) {
	id, ok := c.s.idParam(w, r)
	if !ok {
		return
	}

	v, ok := c.decode(w, r)
	if !ok {
		return
	}

	updated, err := c.table.Update(r.Context(), id, v)
	if err != nil {
		c.s.writeStoreError(w, c.what(), err)

		return
	}

	c.s.recordActivity(r, content.ActionUpdate, v.Kind(), id, nil)

	writeJSON(w, http.StatusOK, updated)
}

func (c *contentResource[T, PT]) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := c.s.idParam(w, r)
	if !ok {
		return
	}

	if err := c.table.Delete(r.Context(), id); err != nil {
		c.s.writeStoreError(w, c.what(), err)

		return
	}

	var zero T
	c.s.recordActivity(r, content.ActionDelete, PT(&zero).Kind(), id, nil)

	writeJSON(w, http.StatusOK, statusOK)
}
