// Package feeds renders RSS 2.0, sitemap and iCalendar documents from
// published content.
package feeds

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// Channel is an RSS channel.
type Channel struct {
	Title       string
	Link        string
	Description string
	Language    string
	BuildDate   time.Time
	Items       []Item
}

// Item is one RSS entry.
type Item struct {
	Title       string
	Link        string
	Description string
	GUID        string
	Category    string
	PubDate     time.Time
}

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	AtomLink      atomLink  `xml:"atom:link"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	Description string  `xml:"description,omitempty"`
	GUID        rssGUID `xml:"guid"`
	Category    string  `xml:"category,omitempty"`
	PubDate     string  `xml:"pubDate,omitempty"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// WriteRSS writes ch as an RSS 2.0 document. selfURL is the feed's own
// address.
func WriteRSS(w io.Writer, ch Channel, selfURL string) error {
	doc := rssDoc{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:       ch.Title,
			Link:        ch.Link,
			Description: ch.Description,
			Language:    ch.Language,
			AtomLink:    atomLink{Href: selfURL, Rel: "self", Type: "application/rss+xml"},
			Items:       make([]rssItem, 0, len(ch.Items)),
		},
	}

	if !ch.BuildDate.IsZero() {
		doc.Channel.LastBuildDate = ch.BuildDate.UTC().Format(time.RFC1123Z)
	}

	for _, it := range ch.Items {
		guid := it.GUID
		if guid == "" {
			guid = it.Link
		}

		item := rssItem{
			Title:       it.Title,
			Link:        it.Link,
			Description: it.Description,
			GUID:        rssGUID{Value: guid, IsPermaLink: guid == it.Link},
			Category:    it.Category,
		}

		if !it.PubDate.IsZero() {
			item.PubDate = it.PubDate.UTC().Format(time.RFC1123Z)
		}

		doc.Channel.Items = append(doc.Channel.Items, item)
	}

	return encode(w, doc)
}

func encode(w io.Writer, doc any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding xml: %w", err)
	}

	return enc.Close()
}
