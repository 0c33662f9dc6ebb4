package feeds

import (
	"sort"
	"strings"
	"time"

	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/locale"
)

// Links builds absolute public URLs.
type Links struct {
	BaseURL string
}

// Abs joins path onto the base URL.
func (l Links) Abs(path string) string {
	return strings.TrimRight(l.BaseURL, "/") + path
}

// Home is the locale root.
func (l Links) Home(loc locale.Locale) string {
	return l.Abs("/" + loc.String())
}

// Program is a program detail page.
func (l Links) Program(loc locale.Locale, slug string) string {
	return l.Abs("/" + loc.String() + "/programs/" + slug)
}

// Event is an event detail page.
func (l Links) Event(loc locale.Locale, slug string) string {
	return l.Abs("/" + loc.String() + "/events/" + slug)
}

// Post is a resource detail page.
func (l Links) Post(loc locale.Locale, slug string) string {
	return l.Abs("/" + loc.String() + "/resources/" + slug)
}

// Page is a free-form page.
func (l Links) Page(loc locale.Locale, slug string) string {
	return l.Abs("/" + loc.String() + "/p/" + slug)
}

// StaticPaths are the public list routes, relative to a locale root.
var StaticPaths = []string{"", "/programs", "/events", "/resources", "/videos", "/contact"}

// Published bundles the content a feed is built from.
type Published struct {
	Programs []content.Program
	Events   []content.Event
	Posts    []content.Post
	Pages    []content.Page
}

// BuildChannel assembles the RSS channel for loc: posts and events,
// newest first.
func BuildChannel(title, description string, loc locale.Locale, links Links, pub Published) Channel {
	items := make([]Item, 0, len(pub.Posts)+len(pub.Events))

	for _, p := range pub.Posts {
		items = append(items, PostItem(p, loc, links))
	}

	for _, e := range pub.Events {
		items = append(items, EventItem(e, loc, links))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PubDate.After(items[j].PubDate)
	})

	var build time.Time
	if len(items) > 0 {
		build = items[0].PubDate
	}

	return Channel{
		Title:       title,
		Link:        links.Home(loc),
		Description: description,
		Language:    loc.String(),
		BuildDate:   build,
		Items:       items,
	}
}

// PostItem converts a post.
func PostItem(p content.Post, loc locale.Locale, links Links) Item {
	pub := p.CreatedAt
	if p.PublishedAt != nil {
		pub = *p.PublishedAt
	}

	category := ""
	if len(p.Tags) > 0 {
		category = p.Tags[0]
	}

	link := links.Post(loc, p.Slug)

	return Item{
		Title:       p.Title.Resolve(loc),
		Link:        link,
		Description: p.Excerpt.Resolve(loc),
		GUID:        link,
		Category:    category,
		PubDate:     pub,
	}
}

// EventItem converts an event. Its date is the creation time so a newly
// announced event surfaces at the top of the feed.
func EventItem(e content.Event, loc locale.Locale, links Links) Item {
	link := links.Event(loc, e.Slug)

	return Item{
		Title:       e.Title.Resolve(loc),
		Link:        link,
		Description: e.Description.Resolve(loc),
		GUID:        link,
		Category:    "event",
		PubDate:     e.CreatedAt,
	}
}

// CalendarEventFrom converts an event.
func CalendarEventFrom(e content.Event, loc locale.Locale, links Links, host string) CalendarEvent {
	return CalendarEvent{
		UID:         "event-" + e.Slug + "@" + host,
		Summary:     e.Title.Resolve(loc),
		Description: e.Description.Resolve(loc),
		Location:    e.Location.Resolve(loc),
		URL:         links.Event(loc, e.Slug),
		Start:       e.StartAt,
		End:         e.EndAt,
		Updated:     e.UpdatedAt,
	}
}

// SitemapURLs lists every public route in every locale, with
// alternates pointing at the other locale.
func SitemapURLs(links Links, pub Published) []URL {
	var urls []URL

	add := func(lastMod time.Time, build func(locale.Locale) string) {
		alternates := make(map[string]string, len(locale.All))
		for _, loc := range locale.All {
			alternates[loc.String()] = build(loc)
		}

		for _, loc := range locale.All {
			urls = append(urls, URL{
				Loc:        build(loc),
				LastMod:    lastMod,
				Alternates: alternates,
			})
		}
	}

	for _, path := range StaticPaths {
		add(time.Time{}, func(loc locale.Locale) string {
			return links.Abs("/" + loc.String() + path)
		})
	}

	for _, p := range pub.Programs {
		add(p.UpdatedAt, func(loc locale.Locale) string { return links.Program(loc, p.Slug) })
	}

	for _, e := range pub.Events {
		add(e.UpdatedAt, func(loc locale.Locale) string { return links.Event(loc, e.Slug) })
	}

	for _, p := range pub.Posts {
		add(p.UpdatedAt, func(loc locale.Locale) string { return links.Post(loc, p.Slug) })
	}

	for _, p := range pub.Pages {
		add(p.UpdatedAt, func(loc locale.Locale) string { return links.Page(loc, p.Slug) })
	}

	return urls
}
