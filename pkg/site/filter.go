package site

import (
	"sort"
	"strings"
	"time"

	"github.com/healthassoc/bayan/pkg/content"
)

// Sort orders the resource list.
type Sort string

// Resource list orders.
const (
	SortNewest Sort = "newest"
	SortOldest Sort = "oldest"
)

// ParseSort defaults to SortNewest.
func ParseSort(s string) Sort {
	if Sort(s) == SortOldest {
		return SortOldest
	}

	return SortNewest
}

// PostFilter narrows the resource list.
type PostFilter struct {
	Tag   string
	Query string
	Sort  Sort
}

// FilterPosts applies f. The query matches title and excerpt in either
// language, case-insensitively.
func FilterPosts(posts []content.Post, f PostFilter) []content.Post {
	tag := strings.ToLower(strings.TrimSpace(f.Tag))
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]content.Post, 0, len(posts))

	for _, p := range posts {
		if tag != "" && !hasTag(p, tag) {
			continue
		}

		if query != "" && !matches(p, query) {
			continue
		}

		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := publishedAt(out[i]), publishedAt(out[j])
		if f.Sort == SortOldest {
			return a.Before(b)
		}

		return a.After(b)
	})

	return out
}

// AllTags returns the distinct tags of posts, sorted.
func AllTags(posts []content.Post) []string {
	seen := make(map[string]struct{})
	tags := []string{}

	for _, p := range posts {
		for _, t := range p.Tags {
			if _, ok := seen[t]; ok {
				continue
			}

			seen[t] = struct{}{}
			tags = append(tags, t)
		}
	}

	sort.Strings(tags)

	return tags
}

func hasTag(p content.Post, tag string) bool {
	for _, t := range p.Tags {
		if strings.ToLower(t) == tag {
			return true
		}
	}

	return false
}

func matches(p content.Post, query string) bool {
	for _, field := range []string{p.Title.AR, p.Title.EN, p.Excerpt.AR, p.Excerpt.EN} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}

	return false
}

func publishedAt(p content.Post) time.Time {
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}

	return p.CreatedAt
}
