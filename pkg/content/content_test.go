package content_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/locale"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{title: "Program", want: "program"},
		{title: "Diabetes Awareness Week", want: "diabetes-awareness-week"},
		{title: "  Heart -- Health!  ", want: "heart-health"},
		{title: "Café Santé 2025", want: "cafe-sante-2025"},
		{title: "برنامج", want: ""},
		{title: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := content.Slugify(tt.title)
			assert.Equal(t, tt.want, got)

			if got != "" {
				assert.True(t, content.ValidSlug(got))
			}
		})
	}
}

func TestValidSlug(t *testing.T) {
	tests := []struct {
		slug  string
		valid bool
	}{
		{slug: "program", valid: true},
		{slug: "heart-health-2025", valid: true},
		{slug: "a1", valid: true},
		{slug: "Program", valid: false},
		{slug: "heart health", valid: false},
		{slug: "heart_health", valid: false},
		{slug: "heart.health", valid: false},
		{slug: "heart--health", valid: false},
		{slug: "-heart", valid: false},
		{slug: "heart-", valid: false},
		{slug: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			assert.Equal(t, tt.valid, content.ValidSlug(tt.slug))
		})
	}
}

func TestProgram_DerivesSlugFromEnglishTitle(t *testing.T) {
	p := &content.Program{Title: locale.New("برنامج", "Program")}
	p.Normalize()

	assert.Equal(t, "program", p.Slug)
	assert.Equal(t, content.StatusDraft, p.Status)
	assert.Empty(t, p.Validate())
}

func TestProgram_Validate(t *testing.T) {
	tests := []struct {
		name   string
		prog   content.Program
		fields []string
	}{
		{
			name: "valid",
			prog: content.Program{Slug: "ok", Title: locale.New("أ", "A"), Status: content.StatusPublished},
		},
		{
			name:   "missing arabic title",
			prog:   content.Program{Slug: "ok", Title: locale.New("", "A"), Status: content.StatusDraft},
			fields: []string{"title"},
		},
		{
			name:   "uppercase slug",
			prog:   content.Program{Slug: "My-Program", Title: locale.New("أ", "A"), Status: content.StatusDraft},
			fields: []string{"slug"},
		},
		{
			name:   "unknown status",
			prog:   content.Program{Slug: "ok", Title: locale.New("أ", "A"), Status: "live"},
			fields: []string{"status"},
		},
		{
			name:   "arabic only title leaves slug empty",
			prog:   content.Program{Title: locale.New("برنامج", "")},
			fields: []string{"title", "slug"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.prog
			p.Normalize()

			errs := p.Validate()
			assert.Len(t, errs, len(tt.fields))

			for _, f := range tt.fields {
				assert.Contains(t, errs, f)
			}
		})
	}
}

func TestEvent_DateOrder(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	tests := []struct {
		name    string
		start   time.Time
		end     time.Time
		wantErr string
	}{
		{name: "start before end", start: start, end: end},
		{name: "same instant", start: start, end: start},
		{name: "reversed", start: end, end: start, wantErr: "end_at"},
		{name: "missing start", end: end, wantErr: "start_at"},
		{name: "missing end", start: start, wantErr: "end_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &content.Event{
				Title:   locale.New("فعالية", "Event"),
				StartAt: tt.start,
				EndAt:   tt.end,
			}
			e.Normalize()

			errs := e.Validate()
			if tt.wantErr == "" {
				assert.Empty(t, errs)

				return
			}

			assert.Contains(t, errs, tt.wantErr)
		})
	}
}

func TestPost_NormalizeTagsAndPublishedAt(t *testing.T) {
	p := &content.Post{
		Title:  locale.New("مقال", "Article"),
		Tags:   []string{" Nutrition ", "nutrition", "", "Sleep"},
		Status: content.StatusPublished,
	}
	p.Normalize()

	assert.Equal(t, []string{"nutrition", "sleep"}, []string(p.Tags))
	require.NotNil(t, p.PublishedAt)
	assert.Equal(t, "article", p.Slug)

	draft := &content.Post{Title: locale.New("مقال", "Draft")}
	draft.Normalize()
	assert.Nil(t, draft.PublishedAt)
}

func TestKPI_Validate(t *testing.T) {
	k := &content.KPI{Label: locale.New("مستفيد", "Beneficiaries")}
	k.Normalize()

	errs := k.Validate()
	assert.Contains(t, errs, "value")

	k.Value = "12,000+"
	assert.Empty(t, k.Validate())
}

func TestVideo_RequiresHTTPURL(t *testing.T) {
	for _, raw := range []string{"", "youtube.com/watch?v=1", "ftp://x.org/a", "/relative"} {
		v := &content.Video{Title: locale.New("أ", "A"), URL: raw}
		v.Normalize()
		assert.Contains(t, v.Validate(), "url", raw)
	}

	v := &content.Video{Title: locale.New("أ", "A"), URL: "https://www.youtube.com/watch?v=abc"}
	v.Normalize()
	assert.Empty(t, v.Validate())
}

func TestPage_ValidateBlocks(t *testing.T) {
	p := &content.Page{
		Title: locale.New("من نحن", "About"),
		Blocks: []content.Block{
			{Kind: content.BlockText, Body: locale.New("نص", "Text")},
			{Kind: content.BlockImage, ImageURL: "/media/uploads/a.png"},
			{Kind: content.BlockCTA},
			{Kind: "carousel"},
		},
	}
	p.Normalize()

	errs := p.Validate()
	assert.Equal(t, "about", p.Slug)
	assert.Equal(t, 1, p.Blocks[0].SortOrder)
	assert.Equal(t, 4, p.Blocks[3].SortOrder)
	assert.Contains(t, errs, "blocks[2].link_url")
	assert.Contains(t, errs, "blocks[3].kind")
	assert.Len(t, errs, 2)
}

func TestSubmission_Validate(t *testing.T) {
	s := &content.Submission{Name: " Layla ", Email: "not-an-email", Message: " "}
	s.Normalize()

	errs := s.Validate()
	assert.Equal(t, "Layla", s.Name)
	assert.Equal(t, content.SubmissionNew, s.Status)
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "message")
	assert.NotContains(t, errs, "name")

	s.Email = "layla@example.org"
	s.Message = "Hello"
	assert.Empty(t, s.Validate())
}

func TestValidationErrors_Err(t *testing.T) {
	assert.NoError(t, content.ValidationErrors{}.Err())

	err := content.ValidationErrors{"slug": "required", "title": "required in both languages"}.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, content.ErrInvalid))
	assert.Equal(t, "validation failed: slug: required; title: required in both languages", err.Error())

	var verrs content.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
}

func TestRenderMarkdown(t *testing.T) {
	out := string(content.RenderMarkdown("# Title\n\nSome **bold** text <script>x</script>"))

	assert.Contains(t, out, "<h1>Title</h1>")
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.False(t, strings.Contains(out, "<script>"))
	assert.Empty(t, content.RenderMarkdown(""))
}
