package site

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/healthassoc/bayan/pkg/api/store"
	"github.com/healthassoc/bayan/pkg/auth"
	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/locale"
	"github.com/healthassoc/bayan/pkg/nav"
)

const sectionLimit = 100

// sectionRow is one line of an admin section listing.
type sectionRow struct {
	ID      uint
	Title   string
	Status  string
	Updated time.Time
}

type sectionData struct {
	Label  locale.Text
	Rows   []sectionRow
	Total  int64
	Failed bool
}

type sectionLoader func(ctx context.Context, st store.Store, l locale.Locale) ([]sectionRow, int64, error)

var sectionLoaders = map[string]sectionLoader{
	"programs": tableRows(store.Store.Programs, func(v *content.Program, l locale.Locale) sectionRow {
		return sectionRow{ID: v.ID, Title: v.Title.Resolve(l), Status: string(v.Status), Updated: v.UpdatedAt}
	}),
	"events": tableRows(store.Store.Events, func(v *content.Event, l locale.Locale) sectionRow {
		return sectionRow{ID: v.ID, Title: v.Title.Resolve(l), Status: string(v.Status), Updated: v.UpdatedAt}
	}),
	"posts": tableRows(store.Store.Posts, func(v *content.Post, l locale.Locale) sectionRow {
		return sectionRow{ID: v.ID, Title: v.Title.Resolve(l), Status: string(v.Status), Updated: v.UpdatedAt}
	}),
	"kpis": tableRows(store.Store.KPIs, func(v *content.KPI, l locale.Locale) sectionRow {
		return sectionRow{ID: v.ID, Title: v.Label.Resolve(l) + ": " + v.Value, Status: string(v.Status), Updated: v.UpdatedAt}
	}),
	"pages": tableRows(store.Store.Pages, func(v *content.Page, l locale.Locale) sectionRow {
		return sectionRow{ID: v.ID, Title: v.Title.Resolve(l), Status: string(v.Status), Updated: v.UpdatedAt}
	}),
	"videos": tableRows(store.Store.Videos, func(v *content.Video, l locale.Locale) sectionRow {
		return sectionRow{ID: v.ID, Title: v.Title.Resolve(l), Status: string(v.Status), Updated: v.UpdatedAt}
	}),
	"submissions": tableRows(store.Store.Submissions, func(v *content.Submission, _ locale.Locale) sectionRow {
		return sectionRow{ID: v.ID, Title: v.Name + " <" + v.Email + ">", Status: string(v.Status), Updated: v.UpdatedAt}
	}),
	"media": tableRows(store.Store.Media, func(v *content.MediaItem, _ locale.Locale) sectionRow {
		return sectionRow{ID: v.ID, Title: v.Name, Status: string(v.Source), Updated: v.UpdatedAt}
	}),
	"activity": activityRows,
	"users":    userRows,
}

func tableRows[T any, PT content.Entity[T]](
	table func(store.Store) *store.Table[T, PT],
	row func(PT, locale.Locale) sectionRow,
) sectionLoader {
	return func(ctx context.Context, st store.Store, l locale.Locale) ([]sectionRow, int64, error) {
		items, total, err := table(st).List(ctx, store.Query{Order: "-updated_at", Limit: sectionLimit})
		if err != nil {
			return nil, 0, err
		}

		rows := make([]sectionRow, 0, len(items))
		for i := range items {
			rows = append(rows, row(PT(&items[i]), l))
		}

		return rows, total, nil
	}
}

func activityRows(ctx context.Context, st store.Store, _ locale.Locale) ([]sectionRow, int64, error) {
	entries, total, err := st.ListActivity(ctx, store.ActivityQuery{Limit: sectionLimit})
	if err != nil {
		return nil, 0, err
	}

	rows := make([]sectionRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, sectionRow{
			ID:      e.EntityID,
			Title:   string(e.EntityType),
			Status:  e.Action,
			Updated: e.CreatedAt,
		})
	}

	return rows, total, nil
}

func userRows(ctx context.Context, st store.Store, _ locale.Locale) ([]sectionRow, int64, error) {
	users, err := st.ListUsers(ctx)
	if err != nil {
		return nil, 0, err
	}

	roles, err := st.ListUserRoles(ctx)
	if err != nil {
		return nil, 0, err
	}

	byUser := make(map[uint]string, len(roles))
	for _, r := range roles {
		byUser[r.UserID] = r.Role
	}

	rows := make([]sectionRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, sectionRow{ID: u.ID, Title: u.Email, Status: byUser[u.ID], Updated: u.UpdatedAt})
	}

	return rows, int64(len(rows)), nil
}

// handleAdminSection lists one admin section. Sections above the caller's
// role answer 403 like the API does.
func (s *Site) handleAdminSection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "section")

	item, ok := menuItem(id)
	load, hasLoader := sectionLoaders[id]

	if !ok || !hasLoader {
		s.adminNotFound(w, r)

		return
	}

	snap := auth.FromContext(r.Context()).Snapshot()
	if !snap.Role.AtLeast(item.MinRole) {
		s.renderAdmin(w, r, http.StatusForbidden, "norole", s.newAdminView(r, "admin.dashboard", nil))

		return
	}

	l := s.adminLocale(r)
	data := sectionData{Label: item.Label}

	rows, total, err := load(r.Context(), s.store, l)
	if err != nil {
		s.log.WithError(err).WithField("section", id).Warn("Admin section fetch failed")

		data.Failed = true
	}

	data.Rows = rows
	data.Total = total

	v := s.newAdminView(r, "admin.dashboard", data)
	v.Title = item.Label.Resolve(l)

	s.renderAdmin(w, r, http.StatusOK, "section", v)
}

func (s *Site) adminNotFound(w http.ResponseWriter, r *http.Request) {
	v := s.newAdminView(r, "notfound.title", nil)

	s.renderAdmin(w, r, http.StatusNotFound, "notfound", v)
}

func menuItem(id string) (nav.Item, bool) {
	for _, item := range nav.AdminMenu {
		if item.ID == id {
			return item, true
		}
	}

	return nav.Item{}, false
}
