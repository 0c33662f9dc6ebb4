package feeds

import (
	"encoding/xml"
	"io"
	"time"
)

// URL is one sitemap location. Alternates maps hreflang codes to the
// same page in other languages.
type URL struct {
	Loc        string
	LastMod    time.Time
	Alternates map[string]string
}

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	XHTML   string       `xml:"xmlns:xhtml,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string         `xml:"loc"`
	LastMod string         `xml:"lastmod,omitempty"`
	Links   []sitemapAlter `xml:"xhtml:link"`
}

type sitemapAlter struct {
	Rel      string `xml:"rel,attr"`
	Hreflang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}

// WriteSitemap writes urls as a sitemaps.org urlset.
func WriteSitemap(w io.Writer, urls []URL) error {
	doc := urlset{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		XHTML: "http://www.w3.org/1999/xhtml",
		URLs:  make([]sitemapURL, 0, len(urls)),
	}

	for _, u := range urls {
		entry := sitemapURL{Loc: u.Loc}

		if !u.LastMod.IsZero() {
			entry.LastMod = u.LastMod.UTC().Format("2006-01-02")
		}

		for _, lang := range sortedKeys(u.Alternates) {
			entry.Links = append(entry.Links, sitemapAlter{
				Rel:      "alternate",
				Hreflang: lang,
				Href:     u.Alternates[lang],
			})
		}

		doc.URLs = append(doc.URLs, entry)
	}

	return encode(w, doc)
}
