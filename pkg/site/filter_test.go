package site

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/locale"
)

func post(slug string, published time.Time, tags ...string) content.Post {
	p := content.Post{
		Slug:   slug,
		Title:  locale.New("عنوان "+slug, "Title "+slug),
		Tags:   tags,
		Status: content.StatusPublished,
	}

	if !published.IsZero() {
		p.PublishedAt = &published
	}

	return p
}

func slugs(posts []content.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Slug)
	}

	return out
}

func TestParseSort(t *testing.T) {
	assert.Equal(t, SortOldest, ParseSort("oldest"))
	assert.Equal(t, SortNewest, ParseSort("newest"))
	assert.Equal(t, SortNewest, ParseSort(""))
	assert.Equal(t, SortNewest, ParseSort("random"))
}

func TestFilterPosts(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	posts := []content.Post{
		post("diabetes", base, "nutrition", "chronic"),
		post("vaccines", base.AddDate(0, 1, 0), "children"),
		post("walking", base.AddDate(0, 2, 0), "nutrition"),
	}

	tests := []struct {
		name   string
		filter PostFilter
		want   []string
	}{
		{name: "newest first by default", filter: PostFilter{}, want: []string{"walking", "vaccines", "diabetes"}},
		{name: "oldest first", filter: PostFilter{Sort: SortOldest}, want: []string{"diabetes", "vaccines", "walking"}},
		{name: "by tag", filter: PostFilter{Tag: "nutrition"}, want: []string{"walking", "diabetes"}},
		{name: "tag is case insensitive", filter: PostFilter{Tag: "Children"}, want: []string{"vaccines"}},
		{name: "search english title", filter: PostFilter{Query: "title vacc"}, want: []string{"vaccines"}},
		{name: "search arabic title", filter: PostFilter{Query: "عنوان walking"}, want: []string{"walking"}},
		{name: "no match", filter: PostFilter{Tag: "elderly"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, slugs(FilterPosts(posts, tt.filter)))
		})
	}
}

func TestFilterPosts_DoesNotReorderInput(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	posts := []content.Post{post("a", base), post("b", base.Add(time.Hour))}

	FilterPosts(posts, PostFilter{})

	assert.Equal(t, []string{"a", "b"}, slugs(posts))
}

func TestAllTags(t *testing.T) {
	posts := []content.Post{
		post("a", time.Time{}, "nutrition", "chronic"),
		post("b", time.Time{}, "children", "nutrition"),
	}

	assert.Equal(t, []string{"children", "chronic", "nutrition"}, AllTags(posts))
	assert.Empty(t, AllTags(nil))
}

func TestSplitEvents(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	ev := func(slug string, start, end time.Time) content.Event {
		return content.Event{Slug: slug, StartAt: start, EndAt: end}
	}

	events := []content.Event{
		ev("last-month", now.AddDate(0, -1, 0), now.AddDate(0, -1, 0).Add(2*time.Hour)),
		ev("running", now.Add(-time.Hour), now.Add(time.Hour)),
		ev("next-week", now.AddDate(0, 0, 7), now.AddDate(0, 0, 7).Add(time.Hour)),
		ev("tomorrow", now.AddDate(0, 0, 1), now.AddDate(0, 0, 1).Add(time.Hour)),
		ev("last-week", now.AddDate(0, 0, -7), now.AddDate(0, 0, -7).Add(time.Hour)),
	}

	upcoming, past := splitEvents(events, now)

	var up, old []string
	for _, e := range upcoming {
		up = append(up, e.Slug)
	}

	for _, e := range past {
		old = append(old, e.Slug)
	}

	assert.Equal(t, []string{"running", "tomorrow", "next-week"}, up)
	assert.Equal(t, []string{"last-week", "last-month"}, old)
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                       "/admin",
		"/admin":                 "/admin",
		"/admin/programs?page=2": "/admin/programs?page=2",
		"/admin?lang=en":         "/admin?lang=en",
		"/administrator":         "/admin",
		"https://evil.example":   "/admin",
		"//evil.example/admin":   "/admin",
		"/admin/login":           "/admin",
		"/ar/programs":           "/admin",
	}

	for in, want := range tests {
		assert.Equal(t, want, safeNext(in), in)
	}
}
