package feeds

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/locale"
)

var links = Links{BaseURL: "https://assoc.example.org/"}

func testPublished() Published {
	published := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	return Published{
		Programs: []content.Program{{
			Slug:      "screening",
			Title:     locale.New("فحص", "Screening"),
			UpdatedAt: published,
		}},
		Events: []content.Event{{
			Slug:        "health-fair",
			Title:       locale.New("معرض صحي", ""),
			Description: locale.New("", "Free checks, for all"),
			Location:    locale.New("الرباط", "Rabat"),
			StartAt:     time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC),
			EndAt:       time.Date(2025, 4, 10, 16, 0, 0, 0, time.UTC),
			CreatedAt:   published.Add(24 * time.Hour),
		}},
		Posts: []content.Post{{
			Slug:        "hydration",
			Title:       locale.New("الترطيب", "Hydration"),
			Excerpt:     locale.New("اشرب الماء", "Drink water"),
			Tags:        []string{"nutrition"},
			PublishedAt: &published,
		}},
	}
}

func TestWriteRSS(t *testing.T) {
	ch := BuildChannel("Association", "News", locale.EN, links, testPublished())

	var buf bytes.Buffer
	require.NoError(t, WriteRSS(&buf, ch, links.Abs("/rss.xml?locale=en")))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, xml.Header))
	assert.Contains(t, out, `<rss version="2.0"`)
	assert.Contains(t, out, "<language>en</language>")
	assert.Contains(t, out, "<link>https://assoc.example.org/en/resources/hydration</link>")
	assert.Contains(t, out, "<category>nutrition</category>")

	var parsed struct {
		Channel struct {
			Items []struct {
				Title   string `xml:"title"`
				PubDate string `xml:"pubDate"`
			} `xml:"item"`
		} `xml:"channel"`
	}
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &parsed))
	require.Len(t, parsed.Channel.Items, 2)

	// The event was created after the post was published.
	assert.Equal(t, "معرض صحي", parsed.Channel.Items[0].Title, "falls back to the arabic title")
	assert.Equal(t, "Hydration", parsed.Channel.Items[1].Title)

	_, err := time.Parse(time.RFC1123Z, parsed.Channel.Items[1].PubDate)
	require.NoError(t, err)
}

func TestWriteRSS_EscapesMarkup(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, WriteRSS(&buf, Channel{
		Title: "A & B",
		Items: []Item{{Title: "<script>", Link: "https://x.test/a"}},
	}, "https://x.test/rss.xml"))

	assert.Contains(t, buf.String(), "A &amp; B")
	assert.Contains(t, buf.String(), "&lt;script&gt;")
}

func TestWriteSitemap(t *testing.T) {
	urls := SitemapURLs(links, testPublished())

	// Six static routes and three entities, each in two locales.
	require.Len(t, urls, (len(StaticPaths)+3)*2)

	var buf bytes.Buffer
	require.NoError(t, WriteSitemap(&buf, urls))

	out := buf.String()
	assert.Contains(t, out, `xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"`)
	assert.Contains(t, out, "<loc>https://assoc.example.org/ar/programs/screening</loc>")
	assert.Contains(t, out, "<loc>https://assoc.example.org/en/events/health-fair</loc>")
	assert.Contains(t, out, "<lastmod>2025-03-01</lastmod>")
	assert.Contains(t, out, `hreflang="ar" href="https://assoc.example.org/ar/resources/hydration"`)
}

func TestWriteCalendar(t *testing.T) {
	pub := testPublished()
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, WriteCalendar(&buf, Calendar{
		Name:     "Events",
		Language: "en",
		Events:   []CalendarEvent{CalendarEventFrom(pub.Events[0], locale.EN, links, "assoc.example.org")},
	}, now))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\n"))
	assert.True(t, strings.HasSuffix(out, "END:VCALENDAR\r\n"))
	assert.Contains(t, out, "UID:event-health-fair@assoc.example.org\r\n")
	assert.Contains(t, out, "DTSTAMP:20250305T120000Z\r\n")
	assert.Contains(t, out, "DTSTART:20250410T080000Z\r\n")
	assert.Contains(t, out, "DTEND:20250410T160000Z\r\n")
	assert.Contains(t, out, `DESCRIPTION:Free checks\, for all`)
	assert.Contains(t, out, "LOCATION:Rabat\r\n")
	assert.NotContains(t, strings.ReplaceAll(out, "\r\n", ""), "\n")
}

func TestEscapeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: "a,b;c", want: `a\,b\;c`},
		{in: `back\slash`, want: `back\\slash`},
		{in: "two\nlines", want: `two\nlines`},
		{in: "crlf\r\nend", want: `crlf\nend`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeText(tt.in))
		})
	}
}

func TestFold(t *testing.T) {
	long := "DESCRIPTION:" + strings.Repeat("صحة ", 40)

	folded := fold(long)
	require.True(t, strings.HasSuffix(folded, "\r\n"))

	lines := strings.Split(strings.TrimSuffix(folded, "\r\n"), "\r\n")
	require.Greater(t, len(lines), 1)

	var rebuilt strings.Builder

	for i, line := range lines {
		assert.LessOrEqual(t, len(line), icsLineLimit, "line %d", i)
		assert.True(t, utf8.ValidString(line), "line %d splits a rune", i)

		if i > 0 {
			require.True(t, strings.HasPrefix(line, " "))
			line = line[1:]
		}

		rebuilt.WriteString(line)
	}

	assert.Equal(t, long, rebuilt.String())
	assert.Equal(t, "SHORT:x\r\n", fold("SHORT:x"))
}
