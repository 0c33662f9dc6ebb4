package content

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/healthassoc/bayan/pkg/locale"
)

// ErrInvalid is matched by every ValidationErrors value.
var ErrInvalid = errors.New("validation failed")

// ValidationErrors maps a field name to a human readable problem.
type ValidationErrors map[string]string

// Error lists the failing fields in a stable order.
func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}

	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrInvalid) match.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrInvalid
}

// Err returns nil when there are no problems.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}

	return v
}

func (v ValidationErrors) requireText(field string, t locale.Text) {
	missing := t.Missing()

	switch len(missing) {
	case 0:
	case len(locale.All):
		v[field] = "required in both languages"
	default:
		v[field] = fmt.Sprintf("missing %s translation", missing[0])
	}
}

func (v ValidationErrors) requireSlug(slug string) {
	switch {
	case slug == "":
		v["slug"] = "required"
	case !ValidSlug(slug):
		v["slug"] = "only lowercase letters, digits and single hyphens are allowed"
	}
}

func (v ValidationErrors) requireStatus(s Status) {
	if !s.Valid() {
		v["status"] = fmt.Sprintf("unknown status %q", s)
	}
}

func (v ValidationErrors) optionalURL(field, raw string) {
	if raw != "" && !isHTTPURL(raw) {
		v[field] = "must be an absolute http(s) URL"
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func trimText(t locale.Text) locale.Text {
	return locale.New(strings.TrimSpace(t.AR), strings.TrimSpace(t.EN))
}

func defaultStatus(s Status) Status {
	if s == "" {
		return StatusDraft
	}

	return s
}

// Normalize trims text fields, derives a missing slug from the English
// title and defaults the status.
func (p *Program) Normalize() {
	p.Title = trimText(p.Title)
	p.Summary = trimText(p.Summary)
	p.Slug = strings.TrimSpace(p.Slug)

	if p.Slug == "" {
		p.Slug = Slugify(p.Title.EN)
	}

	p.Status = defaultStatus(p.Status)
}

// Validate checks a normalized program.
func (p *Program) Validate() ValidationErrors {
	errs := ValidationErrors{}
	errs.requireText("title", p.Title)
	errs.requireSlug(p.Slug)
	errs.requireStatus(p.Status)
	errs.optionalURL("cover_url", p.CoverURL)

	return errs
}

// Normalize trims text fields, derives a missing slug and defaults the
// status.
func (e *Event) Normalize() {
	e.Title = trimText(e.Title)
	e.Location = trimText(e.Location)
	e.Slug = strings.TrimSpace(e.Slug)

	if e.Slug == "" {
		e.Slug = Slugify(e.Title.EN)
	}

	e.Status = defaultStatus(e.Status)
}

// Validate checks a normalized event. The start must not be after the end.
func (e *Event) Validate() ValidationErrors {
	errs := ValidationErrors{}
	errs.requireText("title", e.Title)
	errs.requireSlug(e.Slug)
	errs.requireStatus(e.Status)
	errs.optionalURL("cover_url", e.CoverURL)
	errs.optionalURL("registration_url", e.RegistrationURL)

	if e.StartAt.IsZero() {
		errs["start_at"] = "required"
	}

	if e.EndAt.IsZero() {
		errs["end_at"] = "required"
	}

	if !e.StartAt.IsZero() && !e.EndAt.IsZero() && e.StartAt.After(e.EndAt) {
		errs["end_at"] = "must not be before start_at"
	}

	return errs
}

// Normalize trims text fields, derives a missing slug, cleans tags and
// stamps PublishedAt the first time the post is published.
func (p *Post) Normalize() {
	p.Title = trimText(p.Title)
	p.Excerpt = trimText(p.Excerpt)
	p.Slug = strings.TrimSpace(p.Slug)

	if p.Slug == "" {
		p.Slug = Slugify(p.Title.EN)
	}

	p.Status = defaultStatus(p.Status)

	tags := make([]string, 0, len(p.Tags))
	seen := make(map[string]struct{}, len(p.Tags))

	for _, tag := range p.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}

		if _, dup := seen[tag]; dup {
			continue
		}

		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	p.Tags = tags

	if p.Status == StatusPublished && p.PublishedAt == nil {
		now := time.Now().UTC()
		p.PublishedAt = &now
	}
}

// Validate checks a normalized post.
func (p *Post) Validate() ValidationErrors {
	errs := ValidationErrors{}
	errs.requireText("title", p.Title)
	errs.requireSlug(p.Slug)
	errs.requireStatus(p.Status)
	errs.optionalURL("cover_url", p.CoverURL)

	return errs
}

// Normalize trims text fields and defaults the status.
func (k *KPI) Normalize() {
	k.Label = trimText(k.Label)
	k.Unit = trimText(k.Unit)
	k.Value = strings.TrimSpace(k.Value)
	k.Status = defaultStatus(k.Status)
}

// Validate checks a normalized KPI.
func (k *KPI) Validate() ValidationErrors {
	errs := ValidationErrors{}
	errs.requireText("label", k.Label)
	errs.requireStatus(k.Status)

	if k.Value == "" {
		errs["value"] = "required"
	}

	return errs
}

// Normalize trims text fields, derives a missing slug and renumbers
// blocks that carry no explicit order.
func (p *Page) Normalize() {
	p.Title = trimText(p.Title)
	p.Slug = strings.TrimSpace(p.Slug)

	if p.Slug == "" {
		p.Slug = Slugify(p.Title.EN)
	}

	p.Status = defaultStatus(p.Status)

	for i := range p.Blocks {
		p.Blocks[i].Heading = trimText(p.Blocks[i].Heading)

		if p.Blocks[i].SortOrder == 0 {
			p.Blocks[i].SortOrder = i + 1
		}
	}
}

// Validate checks a normalized page and its blocks.
func (p *Page) Validate() ValidationErrors {
	errs := ValidationErrors{}
	errs.requireText("title", p.Title)
	errs.requireSlug(p.Slug)
	errs.requireStatus(p.Status)

	for i, b := range p.Blocks {
		field := fmt.Sprintf("blocks[%d]", i)

		switch b.Kind {
		case BlockText, BlockQuote:
			if b.Body.IsZero() {
				errs[field+".body"] = "required"
			}
		case BlockImage:
			if !isHTTPURL(b.ImageURL) && !strings.HasPrefix(b.ImageURL, "/") {
				errs[field+".image_url"] = "required"
			}
		case BlockCTA:
			if b.LinkURL == "" {
				errs[field+".link_url"] = "required"
			}
		default:
			errs[field+".kind"] = fmt.Sprintf("unknown block kind %q", b.Kind)
		}
	}

	return errs
}

// Normalize trims text fields and defaults the status.
func (v *Video) Normalize() {
	v.Title = trimText(v.Title)
	v.URL = strings.TrimSpace(v.URL)
	v.Status = defaultStatus(v.Status)
}

// Validate checks a normalized video.
func (v *Video) Validate() ValidationErrors {
	errs := ValidationErrors{}
	errs.requireText("title", v.Title)
	errs.requireStatus(v.Status)
	errs.optionalURL("thumbnail_url", v.ThumbnailURL)

	if !isHTTPURL(v.URL) {
		errs["url"] = "must be an absolute http(s) URL"
	}

	return errs
}

// Normalize trims the contact fields and defaults the status.
func (s *Submission) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.Email = strings.TrimSpace(s.Email)
	s.Phone = strings.TrimSpace(s.Phone)
	s.Subject = strings.TrimSpace(s.Subject)
	s.Message = strings.TrimSpace(s.Message)

	if s.Status == "" {
		s.Status = SubmissionNew
	}
}

// Validate checks a normalized submission.
func (s *Submission) Validate() ValidationErrors {
	errs := ValidationErrors{}

	if s.Name == "" {
		errs["name"] = "required"
	}

	if _, err := mail.ParseAddress(s.Email); err != nil || !strings.Contains(s.Email, "@") {
		errs["email"] = "must be a valid email address"
	}

	if s.Message == "" {
		errs["message"] = "required"
	}

	if !s.Status.Valid() {
		errs["status"] = fmt.Sprintf("unknown status %q", s.Status)
	}

	return errs
}

// Normalize trims the alt text.
func (m *MediaItem) Normalize() {
	m.Alt = trimText(m.Alt)
	m.Name = strings.TrimSpace(m.Name)

	if m.Source == "" {
		m.Source = MediaUploaded
	}
}

// Validate checks a media item.
func (m *MediaItem) Validate() ValidationErrors {
	errs := ValidationErrors{}

	if m.Name == "" {
		errs["name"] = "required"
	}

	if m.URL == "" {
		errs["url"] = "required"
	}

	return errs
}
