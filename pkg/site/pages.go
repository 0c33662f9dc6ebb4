package site

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/healthassoc/bayan/pkg/api/store"
	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/locale"
)

const (
	homeProgramLimit = 3
	homeEventLimit   = 3
	homePostLimit    = 3
	listLimit        = 200
)

func publishedQuery(limit int) store.Query {
	return store.Query{Status: content.StatusPublished, Limit: limit}
}

// degrade logs a list fetch error and substitutes an empty list.
func degrade[T any](log logrus.FieldLogger, what string, rows []T, err error) []T {
	if err != nil {
		log.WithError(err).WithField("list", what).Warn("List fetch failed")

		return []T{}
	}

	return rows
}

type homeData struct {
	KPIs     []content.KPI
	Programs []content.Program
	Events   []content.Event
	Posts    []content.Post
}

// handleHome loads the four home sections concurrently. A failed section
// is logged and rendered empty.
func (s *Site) handleHome(w http.ResponseWriter, r *http.Request) {
	var data homeData

	g, ctx := errgroup.WithContext(r.Context())

	g.Go(func() error {
		rows, _, err := s.store.KPIs().List(ctx, publishedQuery(listLimit))
		data.KPIs = degrade(s.log, "kpis", rows, err)

		return nil
	})

	g.Go(func() error {
		rows, _, err := s.store.Programs().List(ctx, publishedQuery(homeProgramLimit))
		data.Programs = degrade(s.log, "programs", rows, err)

		return nil
	})

	g.Go(func() error {
		rows, _, err := s.store.Events().List(ctx, publishedQuery(listLimit))
		upcoming, _ := splitEvents(degrade(s.log, "events", rows, err), s.now())

		if len(upcoming) > homeEventLimit {
			upcoming = upcoming[:homeEventLimit]
		}

		data.Events = upcoming

		return nil
	})

	g.Go(func() error {
		rows, _, err := s.store.Posts().List(ctx, publishedQuery(homePostLimit))
		data.Posts = degrade(s.log, "posts", rows, err)

		return nil
	})

	_ = g.Wait()

	s.render(w, r, http.StatusOK, "home", s.newView(r, "", data))
}

type programsData struct {
	Failed   bool
	Programs []content.Program
}

func (s *Site) handlePrograms(w http.ResponseWriter, r *http.Request) {
	rows, _, err := s.store.Programs().List(r.Context(), publishedQuery(listLimit))

	data := programsData{
		Failed:   err != nil,
		Programs: degrade(s.log, "programs", rows, err),
	}

	s.render(w, r, http.StatusOK, "programs", s.newView(r, s.msg(r, "nav.programs"), data))
}

func (s *Site) handleProgram(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Programs().GetBySlug(r.Context(), chi.URLParam(r, "slug"), true)
	if err != nil {
		s.detailError(w, r, "program", err)

		return
	}

	s.render(w, r, http.StatusOK, "program", s.newView(r, p.Title.Resolve(s.requestLocale(r)), p))
}

type eventsData struct {
	Failed   bool
	Upcoming []content.Event
	Past     []content.Event
}

func (s *Site) handleEvents(w http.ResponseWriter, r *http.Request) {
	rows, _, err := s.store.Events().List(r.Context(), publishedQuery(listLimit))

	upcoming, past := splitEvents(degrade(s.log, "events", rows, err), s.now())

	data := eventsData{Failed: err != nil, Upcoming: upcoming, Past: past}

	s.render(w, r, http.StatusOK, "events", s.newView(r, s.msg(r, "nav.events"), data))
}

// handleEvent serves an event page, or its calendar file when the slug
// carries an .ics suffix.
func (s *Site) handleEvent(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	if base, ok := strings.CutSuffix(slug, ".ics"); ok {
		s.handleEventICS(w, r, base)

		return
	}

	e, err := s.store.Events().GetBySlug(r.Context(), slug, true)
	if err != nil {
		s.detailError(w, r, "event", err)

		return
	}

	s.render(w, r, http.StatusOK, "event", s.newView(r, e.Title.Resolve(s.requestLocale(r)), e))
}

// splitEvents separates events that have not ended, soonest first, from
// past ones, most recent first.
func splitEvents(events []content.Event, now time.Time) (upcoming, past []content.Event) {
	upcoming = []content.Event{}
	past = []content.Event{}

	for _, e := range events {
		if e.EndAt.Before(now) {
			past = append(past, e)
		} else {
			upcoming = append(upcoming, e)
		}
	}

	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].StartAt.Before(upcoming[j].StartAt) })
	sort.SliceStable(past, func(i, j int) bool { return past[i].StartAt.After(past[j].StartAt) })

	return upcoming, past
}

type resourcesData struct {
	Failed bool
	Filter PostFilter
	Tags   []string
	Posts  []content.Post
}

func (s *Site) handleResources(w http.ResponseWriter, r *http.Request) {
	rows, _, err := s.store.Posts().List(r.Context(), publishedQuery(listLimit))
	posts := degrade(s.log, "posts", rows, err)

	q := r.URL.Query()
	filter := PostFilter{
		Tag:   q.Get("tag"),
		Query: q.Get("q"),
		Sort:  ParseSort(q.Get("sort")),
	}

	data := resourcesData{
		Failed: err != nil,
		Filter: filter,
		Tags:   AllTags(posts),
		Posts:  FilterPosts(posts, filter),
	}

	s.render(w, r, http.StatusOK, "resources", s.newView(r, s.msg(r, "nav.resources"), data))
}

func (s *Site) handlePost(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Posts().GetBySlug(r.Context(), chi.URLParam(r, "slug"), true)
	if err != nil {
		s.detailError(w, r, "post", err)

		return
	}

	s.render(w, r, http.StatusOK, "post", s.newView(r, p.Title.Resolve(s.requestLocale(r)), p))
}

type videosData struct {
	Failed bool
	Videos []content.Video
}

func (s *Site) handleVideos(w http.ResponseWriter, r *http.Request) {
	rows, _, err := s.store.Videos().List(r.Context(), publishedQuery(listLimit))

	data := videosData{Failed: err != nil, Videos: degrade(s.log, "videos", rows, err)}

	s.render(w, r, http.StatusOK, "videos", s.newView(r, s.msg(r, "nav.videos"), data))
}

func (s *Site) handlePage(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Pages().GetBySlug(r.Context(), chi.URLParam(r, "slug"), true)
	if err != nil {
		s.detailError(w, r, "page", err)

		return
	}

	s.render(w, r, http.StatusOK, "page", s.newView(r, p.Title.Resolve(s.requestLocale(r)), p))
}

func (s *Site) msg(r *http.Request, key string) string {
	return locale.Messages.T(s.requestLocale(r), key)
}
