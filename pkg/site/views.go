package site

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/locale"
)

//go:embed templates
var templateFS embed.FS

// Template sets: public pages and admin screens, each with its own layout.
var templateSets = []struct {
	prefix string
	dir    string
}{
	{prefix: "", dir: "templates"},
	{prefix: "admin/", dir: "templates/admin"},
}

// views holds one parsed template set per page, each combined with the
// shared layout.
type views struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"tr": func(l locale.Locale, v locale.Text) string {
		return v.Resolve(l)
	},
	"msg": func(l locale.Locale, key string) string {
		return locale.Messages.T(l, key)
	},
	"md": func(l locale.Locale, v locale.Text) template.HTML {
		return content.RenderMarkdown(v.Resolve(l))
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}

		return t.UTC().Format("2006-01-02")
	},
	"datetime": func(t time.Time) string {
		return t.UTC().Format("2006-01-02 15:04 MST")
	},
	"dateptr": func(t *time.Time) string {
		if t == nil {
			return ""
		}

		return t.UTC().Format("2006-01-02")
	},
	"join": strings.Join,
}

func loadViews() (*views, error) {
	v := &views{pages: make(map[string]*template.Template)}

	for _, set := range templateSets {
		layout := set.dir + "/layout.html"

		files, err := fs.Glob(templateFS, set.dir+"/*.html")
		if err != nil {
			return nil, fmt.Errorf("listing templates: %w", err)
		}

		for _, file := range files {
			if file == layout {
				continue
			}

			name := set.prefix + strings.TrimSuffix(path.Base(file), ".html")

			t, err := template.New(path.Base(file)).Funcs(funcs).ParseFS(templateFS, layout, file)
			if err != nil {
				return nil, fmt.Errorf("parsing template %s: %w", name, err)
			}

			v.pages[name] = t
		}
	}

	return v, nil
}

func (v *views) render(w io.Writer, name string, data any) error {
	t, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}

	return t.ExecuteTemplate(w, "layout", data)
}

// navLink is a public navigation entry.
type navLink struct {
	Key  string
	Path string
}

var publicNav = []navLink{
	{Key: "nav.home", Path: ""},
	{Key: "nav.programs", Path: "/programs"},
	{Key: "nav.events", Path: "/events"},
	{Key: "nav.resources", Path: "/resources"},
	{Key: "nav.videos", Path: "/videos"},
	{Key: "nav.contact", Path: "/contact"},
}

// view is the data every page template receives.
type view struct {
	L        locale.Locale
	Dir      string
	SiteName string
	Title    string
	// Path is the current path without the locale prefix, used for the
	// language switch.
	Path  string
	Other locale.Locale
	Nav   []navLink
	Data  any
}

// Switch returns the current page in the other locale.
func (v view) Switch() string {
	return "/" + v.Other.String() + v.Path
}

// Link prefixes p with the active locale.
func (v view) Link(p string) string {
	return "/" + v.L.String() + p
}
