package feeds

import (
	"bufio"
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	icsTimeFormat = "20060102T150405Z"
	icsLineLimit  = 75
)

// CalendarEvent is one VEVENT.
type CalendarEvent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	URL         string
	Start       time.Time
	End         time.Time
	Updated     time.Time
}

// Calendar is a VCALENDAR document.
type Calendar struct {
	Name     string
	Language string
	Events   []CalendarEvent
}

// WriteCalendar writes cal as an iCalendar document with CRLF line
// endings and folded long lines.
func WriteCalendar(w io.Writer, cal Calendar, now time.Time) error {
	bw := bufio.NewWriter(w)
	iw := &icsWriter{w: bw}

	iw.line("BEGIN", "VCALENDAR")
	iw.line("VERSION", "2.0")
	iw.line("PRODID", "-//bayan//site//"+strings.ToUpper(cal.Language))
	iw.line("CALSCALE", "GREGORIAN")
	iw.line("METHOD", "PUBLISH")

	if cal.Name != "" {
		iw.line("X-WR-CALNAME", escapeText(cal.Name))
	}

	stamp := formatICSTime(now)

	for _, ev := range cal.Events {
		iw.line("BEGIN", "VEVENT")
		iw.line("UID", ev.UID)
		iw.line("DTSTAMP", stamp)
		iw.line("DTSTART", formatICSTime(ev.Start))

		if !ev.End.IsZero() {
			iw.line("DTEND", formatICSTime(ev.End))
		}

		if !ev.Updated.IsZero() {
			iw.line("LAST-MODIFIED", formatICSTime(ev.Updated))
		}

		iw.line("SUMMARY", escapeText(ev.Summary))

		if ev.Description != "" {
			iw.line("DESCRIPTION", escapeText(ev.Description))
		}

		if ev.Location != "" {
			iw.line("LOCATION", escapeText(ev.Location))
		}

		if ev.URL != "" {
			iw.line("URL", ev.URL)
		}

		iw.line("END", "VEVENT")
	}

	iw.line("END", "VCALENDAR")

	if iw.err != nil {
		return iw.err
	}

	return bw.Flush()
}

type icsWriter struct {
	w   *bufio.Writer
	err error
}

// line writes one content line, folding it at 75 octets without
// splitting a UTF-8 sequence.
func (iw *icsWriter) line(name, value string) {
	if iw.err != nil {
		return
	}

	_, iw.err = iw.w.WriteString(fold(name + ":" + value))
}

func fold(s string) string {
	var b strings.Builder

	limit := icsLineLimit
	n := 0

	for _, r := range s {
		size := utf8.RuneLen(r)
		if n+size > limit {
			b.WriteString("\r\n ")

			// Continuation lines carry a leading space.
			limit = icsLineLimit - 1
			n = 0
		}

		b.WriteRune(r)
		n += size
	}

	b.WriteString("\r\n")

	return b.String()
}

var icsEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", `\n`,
)

// escapeText escapes a TEXT property value.
func escapeText(s string) string {
	return icsEscaper.Replace(s)
}

func formatICSTime(t time.Time) string {
	return t.UTC().Format(icsTimeFormat)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
