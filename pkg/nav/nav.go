// Package nav holds the role-gated admin menu.
package nav

import (
	"github.com/healthassoc/bayan/pkg/auth"
	"github.com/healthassoc/bayan/pkg/locale"
)

// Item is one admin menu entry.
type Item struct {
	ID      string      `json:"id"`
	Label   locale.Text `json:"label"`
	Path    string      `json:"path"`
	MinRole auth.Role   `json:"min_role"`
}

// AdminMenu is the full admin menu in display order.
var AdminMenu = []Item{
	{ID: "dashboard", Path: "/admin", MinRole: auth.RoleViewer,
		Label: locale.New("لوحة التحكم", "Dashboard")},
	{ID: "programs", Path: "/admin/programs", MinRole: auth.RoleViewer,
		Label: locale.New("البرامج", "Programs")},
	{ID: "events", Path: "/admin/events", MinRole: auth.RoleViewer,
		Label: locale.New("الفعاليات", "Events")},
	{ID: "posts", Path: "/admin/posts", MinRole: auth.RoleViewer,
		Label: locale.New("المقالات", "Posts")},
	{ID: "kpis", Path: "/admin/kpis", MinRole: auth.RoleViewer,
		Label: locale.New("المؤشرات", "KPIs")},
	{ID: "pages", Path: "/admin/pages", MinRole: auth.RoleViewer,
		Label: locale.New("الصفحات", "Pages")},
	{ID: "videos", Path: "/admin/videos", MinRole: auth.RoleViewer,
		Label: locale.New("الفيديوهات", "Videos")},
	{ID: "submissions", Path: "/admin/submissions", MinRole: auth.RoleEditor,
		Label: locale.New("رسائل التواصل", "Submissions")},
	{ID: "media", Path: "/admin/media", MinRole: auth.RoleEditor,
		Label: locale.New("الوسائط", "Media")},
	{ID: "activity", Path: "/admin/activity", MinRole: auth.RoleSuperadmin,
		Label: locale.New("سجل النشاط", "Activity")},
	{ID: "users", Path: "/admin/users", MinRole: auth.RoleSuperadmin,
		Label: locale.New("المستخدمون", "Users")},
}

// Filter returns the items role may see, preserving order. A caller
// without a role sees nothing.
func Filter(items []Item, role auth.Role) []Item {
	visible := make([]Item, 0, len(items))

	for _, item := range items {
		if role.AtLeast(item.MinRole) {
			visible = append(visible, item)
		}
	}

	return visible
}

// Entry is an item rendered for one locale.
type Entry struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Path  string `json:"path"`
}

// Render resolves item labels for l.
func Render(items []Item, l locale.Locale) []Entry {
	entries := make([]Entry, 0, len(items))

	for _, item := range items {
		entries = append(entries, Entry{
			ID:    item.ID,
			Label: item.Label.Resolve(l),
			Path:  item.Path,
		})
	}

	return entries
}
