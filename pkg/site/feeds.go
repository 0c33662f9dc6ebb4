package site

import (
	"bytes"
	"context"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/feeds"
	"github.com/healthassoc/bayan/pkg/locale"
)

// loadPublished fetches every published entity used by the feeds.
func (s *Site) loadPublished(ctx context.Context) (feeds.Published, error) {
	var pub feeds.Published

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, _, err := s.store.Programs().List(ctx, publishedQuery(listLimit))
		pub.Programs = rows

		return err
	})

	g.Go(func() error {
		rows, _, err := s.store.Events().List(ctx, publishedQuery(listLimit))
		pub.Events = rows

		return err
	})

	g.Go(func() error {
		rows, _, err := s.store.Posts().List(ctx, publishedQuery(listLimit))
		pub.Posts = rows

		return err
	})

	g.Go(func() error {
		rows, _, err := s.store.Pages().List(ctx, publishedQuery(listLimit))
		pub.Pages = rows

		return err
	})

	return pub, g.Wait()
}

// linksFor uses the configured public URL, or the request host.
func (s *Site) linksFor(r *http.Request) feeds.Links {
	if s.links.BaseURL != "" {
		return s.links
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	return feeds.Links{BaseURL: scheme + "://" + r.Host}
}

func (s *Site) handleRSS(w http.ResponseWriter, r *http.Request) {
	l, ok := locale.Parse(r.URL.Query().Get("locale"))
	if !ok {
		l = s.defaultLocale
	}

	pub, err := s.loadPublished(r.Context())
	if err != nil {
		s.feedError(w, "rss", err)

		return
	}

	links := s.linksFor(r)
	ch := feeds.BuildChannel(s.siteName(l), locale.Messages.T(l, "home.posts"), l, links, pub)

	var buf bytes.Buffer
	if err := feeds.WriteRSS(&buf, ch, links.Abs("/rss.xml?locale="+url.QueryEscape(l.String()))); err != nil {
		s.feedError(w, "rss", err)

		return
	}

	writeFeed(w, "application/rss+xml; charset=utf-8", buf.Bytes())
}

func (s *Site) handleSitemap(w http.ResponseWriter, r *http.Request) {
	pub, err := s.loadPublished(r.Context())
	if err != nil {
		s.feedError(w, "sitemap", err)

		return
	}

	var buf bytes.Buffer
	if err := feeds.WriteSitemap(&buf, feeds.SitemapURLs(s.linksFor(r), pub)); err != nil {
		s.feedError(w, "sitemap", err)

		return
	}

	writeFeed(w, "application/xml; charset=utf-8", buf.Bytes())
}

func (s *Site) handleEventsICS(w http.ResponseWriter, r *http.Request) {
	rows, _, err := s.store.Events().List(r.Context(), publishedQuery(listLimit))
	if err != nil {
		s.feedError(w, "ics", err)

		return
	}

	s.writeCalendar(w, r, locale.Messages.T(s.requestLocale(r), "events.export"), rows)
}

func (s *Site) handleEventICS(w http.ResponseWriter, r *http.Request, slug string) {
	e, err := s.store.Events().GetBySlug(r.Context(), slug, true)
	if err != nil {
		s.detailError(w, r, "event", err)

		return
	}

	s.writeCalendar(w, r, e.Title.Resolve(s.requestLocale(r)), []content.Event{*e})
}

func (s *Site) writeCalendar(w http.ResponseWriter, r *http.Request, name string, events []content.Event) {
	l := s.requestLocale(r)
	links := s.linksFor(r)

	host := r.Host
	if u, err := url.Parse(links.BaseURL); err == nil && u.Host != "" {
		host = u.Host
	}

	cal := feeds.Calendar{Name: name, Language: l.String()}
	for _, e := range events {
		cal.Events = append(cal.Events, feeds.CalendarEventFrom(e, l, links, host))
	}

	var buf bytes.Buffer
	if err := feeds.WriteCalendar(&buf, cal, s.now()); err != nil {
		s.feedError(w, "ics", err)

		return
	}

	writeFeed(w, "text/calendar; charset=utf-8", buf.Bytes())
}

func (s *Site) feedError(w http.ResponseWriter, feed string, err error) {
	s.log.WithError(err).WithField("feed", feed).Error("Failed to build feed")
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// writeFeed writes a feed generated for this request. Feeds are never
// cached.
func writeFeed(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
