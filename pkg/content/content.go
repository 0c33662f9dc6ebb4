// Package content defines the association's publishable entities and the
// validation applied before they are written.
package content

import (
	"time"

	"gorm.io/datatypes"

	"github.com/healthassoc/bayan/pkg/locale"
)

// Status is the visibility flag of publishable content.
type Status string

// Content statuses.
const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished:
		return true
	default:
		return false
	}
}

// Kind is the entity type recorded in the activity log.
type Kind string

// Entity kinds.
const (
	KindProgram    Kind = "program"
	KindEvent      Kind = "event"
	KindPost       Kind = "post"
	KindKPI        Kind = "kpi"
	KindPage       Kind = "page"
	KindVideo      Kind = "video"
	KindSubmission Kind = "submission"
	KindMedia      Kind = "media"
	KindUserRole   Kind = "user_role"
	KindSession    Kind = "session"
)

// Entity is implemented by pointers to every content record stored through
// the generic table accessor.
type Entity[T any] interface {
	*T
	TableName() string
	Kind() Kind
	GetID() uint
	Normalize()
	Validate() ValidationErrors
}

// Program is a health program run by the association.
type Program struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Slug      string      `gorm:"uniqueIndex;not null" json:"slug"`
	Title     locale.Text `gorm:"embedded;embeddedPrefix:title_" json:"title"`
	Summary   locale.Text `gorm:"embedded;embeddedPrefix:summary_" json:"summary"`
	Body      locale.Text `gorm:"embedded;embeddedPrefix:body_" json:"body"`
	CoverURL  string      `json:"cover_url"`
	Status    Status      `gorm:"index;not null;default:draft" json:"status"`
	SortOrder int         `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Event is a dated activity with an optional registration link.
type Event struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	Slug            string      `gorm:"uniqueIndex;not null" json:"slug"`
	Title           locale.Text `gorm:"embedded;embeddedPrefix:title_" json:"title"`
	Description     locale.Text `gorm:"embedded;embeddedPrefix:description_" json:"description"`
	Location        locale.Text `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	StartAt         time.Time   `gorm:"index;not null" json:"start_at"`
	EndAt           time.Time   `gorm:"not null" json:"end_at"`
	CoverURL        string      `json:"cover_url"`
	RegistrationURL string      `json:"registration_url"`
	Status          Status      `gorm:"index;not null;default:draft" json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Post is a resource article.
type Post struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	Slug        string                      `gorm:"uniqueIndex;not null" json:"slug"`
	Title       locale.Text                 `gorm:"embedded;embeddedPrefix:title_" json:"title"`
	Excerpt     locale.Text                 `gorm:"embedded;embeddedPrefix:excerpt_" json:"excerpt"`
	Body        locale.Text                 `gorm:"embedded;embeddedPrefix:body_" json:"body"`
	CoverURL    string                      `json:"cover_url"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`
	PublishedAt *time.Time                  `gorm:"index" json:"published_at"`
	Status      Status                      `gorm:"index;not null;default:draft" json:"status"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// KPI is a headline impact figure shown on the home page.
type KPI struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Label     locale.Text `gorm:"embedded;embeddedPrefix:label_" json:"label"`
	Value     string      `gorm:"not null" json:"value"`
	Unit      locale.Text `gorm:"embedded;embeddedPrefix:unit_" json:"unit"`
	Icon      string      `json:"icon"`
	SortOrder int         `gorm:"not null;default:0" json:"sort_order"`
	Status    Status      `gorm:"index;not null;default:draft" json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Page is a free-form page composed of ordered blocks.
type Page struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Slug      string      `gorm:"uniqueIndex;not null" json:"slug"`
	Title     locale.Text `gorm:"embedded;embeddedPrefix:title_" json:"title"`
	Body      locale.Text `gorm:"embedded;embeddedPrefix:body_" json:"body"`
	Status    Status      `gorm:"index;not null;default:draft" json:"status"`
	Blocks    []Block     `gorm:"foreignKey:PageID;constraint:OnDelete:CASCADE" json:"blocks"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// BlockKind selects how a page block renders.
type BlockKind string

// Block kinds.
const (
	BlockText  BlockKind = "text"
	BlockImage BlockKind = "image"
	BlockQuote BlockKind = "quote"
	BlockCTA   BlockKind = "cta"
)

// Block is one section of a Page.
type Block struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	PageID    uint        `gorm:"index;not null" json:"page_id"`
	Kind      BlockKind   `gorm:"not null" json:"kind"`
	Heading   locale.Text `gorm:"embedded;embeddedPrefix:heading_" json:"heading"`
	Body      locale.Text `gorm:"embedded;embeddedPrefix:body_" json:"body"`
	ImageURL  string      `json:"image_url"`
	LinkURL   string      `json:"link_url"`
	SortOrder int         `gorm:"not null;default:0" json:"sort_order"`
}

// Video is an embedded video entry.
type Video struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Title        locale.Text `gorm:"embedded;embeddedPrefix:title_" json:"title"`
	Description  locale.Text `gorm:"embedded;embeddedPrefix:description_" json:"description"`
	URL          string      `gorm:"not null" json:"url"`
	ThumbnailURL string      `json:"thumbnail_url"`
	SortOrder    int         `gorm:"not null;default:0" json:"sort_order"`
	Status       Status      `gorm:"index;not null;default:draft" json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// SubmissionStatus is the triage state of a contact form submission.
type SubmissionStatus string

// Submission statuses.
const (
	SubmissionNew      SubmissionStatus = "new"
	SubmissionRead     SubmissionStatus = "read"
	SubmissionArchived SubmissionStatus = "archived"
)

// Valid reports whether s is a known submission status.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionNew, SubmissionRead, SubmissionArchived:
		return true
	default:
		return false
	}
}

// Submission is a message sent through the public contact form.
type Submission struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	Reference string           `gorm:"uniqueIndex;not null" json:"reference"`
	Locale    locale.Locale    `json:"locale"`
	Name      string           `gorm:"not null" json:"name"`
	Email     string           `gorm:"not null" json:"email"`
	Phone     string           `json:"phone"`
	Subject   string           `json:"subject"`
	Message   string           `gorm:"not null" json:"message"`
	Status    SubmissionStatus `gorm:"index;not null;default:new" json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// MediaSource records how a media item entered the library.
type MediaSource string

// Media sources.
const (
	MediaUploaded  MediaSource = "upload"
	MediaGenerated MediaSource = "generated"
)

// MediaItem is an object in the media library.
type MediaItem struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Key         string      `gorm:"uniqueIndex;not null" json:"key"`
	Name        string      `gorm:"not null" json:"name"`
	URL         string      `gorm:"not null" json:"url"`
	ContentType string      `json:"content_type"`
	Size        int64       `json:"size"`
	Alt         locale.Text `gorm:"embedded;embeddedPrefix:alt_" json:"alt"`
	Source      MediaSource `gorm:"not null;default:upload" json:"source"`
	Prompt      string      `json:"prompt,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ActivityLog is an append-only audit entry for an admin mutation.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	Action     string            `gorm:"index;not null" json:"action"`
	EntityType Kind              `gorm:"index;not null" json:"entity_type"`
	EntityID   uint              `gorm:"index" json:"entity_id"`
	ActorID    uint              `gorm:"index" json:"actor_id"`
	Metadata   datatypes.JSONMap `json:"metadata"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}

// Activity actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

func (Program) TableName() string     { return "programs" }
func (Event) TableName() string       { return "events" }
func (Post) TableName() string        { return "posts" }
func (KPI) TableName() string         { return "kpis" }
func (Page) TableName() string        { return "pages" }
func (Block) TableName() string       { return "blocks" }
func (Video) TableName() string       { return "videos" }
func (Submission) TableName() string  { return "submissions" }
func (MediaItem) TableName() string   { return "media_items" }
func (ActivityLog) TableName() string { return "activity_logs" }

func (*Program) Kind() Kind    { return KindProgram }
func (*Event) Kind() Kind      { return KindEvent }
func (*Post) Kind() Kind       { return KindPost }
func (*KPI) Kind() Kind        { return KindKPI }
func (*Page) Kind() Kind       { return KindPage }
func (*Video) Kind() Kind      { return KindVideo }
func (*Submission) Kind() Kind { return KindSubmission }
func (*MediaItem) Kind() Kind  { return KindMedia }

func (p *Program) GetID() uint    { return p.ID }
func (e *Event) GetID() uint      { return e.ID }
func (p *Post) GetID() uint       { return p.ID }
func (k *KPI) GetID() uint        { return k.ID }
func (p *Page) GetID() uint       { return p.ID }
func (v *Video) GetID() uint      { return v.ID }
func (s *Submission) GetID() uint { return s.ID }
func (m *MediaItem) GetID() uint  { return m.ID }

// IsPublished reports whether the post is publicly visible.
func (p *Post) IsPublished() bool {
	return p.Status == StatusPublished
}
