package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/healthassoc/bayan/pkg/config"
	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/realtime"
)

const defaultConnectTimeout = 30 * time.Second

// TableUserRoles is the change feed table for role assignments.
const TableUserRoles = "user_roles"

// Store provides persistence for the site and admin API.
type Store interface {
	Start(ctx context.Context) error
	Stop() error
	Ping(ctx context.Context) error

	// User CRUD.
	GetUserByID(ctx context.Context, id uint) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, id uint) error

	// Session CRUD.
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByToken(ctx context.Context, token string) (*Session, error)
	GetSessionByID(ctx context.Context, id uint) (*Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	UpdateSessionExpiry(ctx context.Context, id uint, expiresAt time.Time) error
	UpdateSessionLastActive(ctx context.Context, id uint, t time.Time) error
	DeleteSession(ctx context.Context, token string) error
	DeleteSessionByID(ctx context.Context, id uint) error
	DeleteSessionsByUser(ctx context.Context, userID uint) ([]Session, error)
	DeleteExpiredSessions(ctx context.Context) error

	// Role assignment.
	GetUserRole(ctx context.Context, userID uint) (*UserRole, error)
	ListUserRoles(ctx context.Context) ([]UserRole, error)
	SetUserRole(ctx context.Context, userID uint, role string) error
	DeleteUserRole(ctx context.Context, userID uint) error
	CountUsersWithRole(ctx context.Context, role string) (int64, error)
	GrantRoleIfUnheld(ctx context.Context, userID uint, role string) (bool, error)

	// Activity log, append only.
	AppendActivity(ctx context.Context, entry *content.ActivityLog) error
	ListActivity(ctx context.Context, q ActivityQuery) ([]content.ActivityLog, int64, error)

	// Content tables.
	Programs() *Table[content.Program, *content.Program]
	Events() *Table[content.Event, *content.Event]
	Posts() *Table[content.Post, *content.Post]
	KPIs() *Table[content.KPI, *content.KPI]
	Pages() *Table[content.Page, *content.Page]
	Videos() *Table[content.Video, *content.Video]
	Submissions() *Table[content.Submission, *content.Submission]
	Media() *Table[content.MediaItem, *content.MediaItem]

	// Seeding from config.
	SeedUsers(ctx context.Context, users []config.SeedUser) error
}

// ActivityQuery filters the activity log.
type ActivityQuery struct {
	EntityType content.Kind
	ActorID    uint
	Limit      int
	Offset     int
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	pub realtime.Publisher
	db  *gorm.DB

	programs    *Table[content.Program, *content.Program]
	events      *Table[content.Event, *content.Event]
	posts       *Table[content.Post, *content.Post]
	kpis        *Table[content.KPI, *content.KPI]
	pages       *Table[content.Page, *content.Page]
	videos      *Table[content.Video, *content.Video]
	submissions *Table[content.Submission, *content.Submission]
	media       *Table[content.MediaItem, *content.MediaItem]
}

// NewStore creates a new Store backed by the configured database driver.
// Committed writes are published to pub.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
	pub realtime.Publisher,
) Store {
	if pub == nil {
		pub = realtime.Discard
	}

	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
		pub: pub,
	}
}

// Start opens the database connection, retrying until the connect timeout
// elapses, and runs migrations.
func (s *store) Start(ctx context.Context) error {
	dialector, err := s.dialector()
	if err != nil {
		return err
	}

	timeout := defaultConnectTimeout

	if s.cfg.ConnectTimeout != "" {
		if timeout, err = time.ParseDuration(s.cfg.ConnectTimeout); err != nil {
			return fmt.Errorf("parsing database.connect_timeout: %w", err)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = timeout

	err = backoff.RetryNotify(func() error {
		db, err := gorm.Open(dialector, &gorm.Config{
			Logger:         logger.Discard,
			TranslateError: true,
		})
		if err != nil {
			return err
		}

		sqlDB, err := db.DB()
		if err != nil {
			return err
		}

		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()

			return err
		}

		if s.cfg.Driver == "sqlite" {
			// A single connection keeps ":memory:" databases shared and
			// serializes sqlite writers.
			sqlDB.SetMaxOpenConns(1)
		}

		s.db = db

		return nil
	}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		s.log.WithError(err).
			WithField("retry_in", next).
			Warn("Database not ready, retrying")
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(
		&User{},
		&Session{},
		&UserRole{},
		&content.ActivityLog{},
		&content.Program{},
		&content.Event{},
		&content.Post{},
		&content.KPI{},
		&content.Page{},
		&content.Block{},
		&content.Video{},
		&content.Submission{},
		&content.MediaItem{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.initTables()

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

func (s *store) dialector() (gorm.Dialector, error) {
	switch s.cfg.Driver {
	case "sqlite":
		return sqlite.Open(s.cfg.SQLite.Path), nil
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)

		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}
}

func (s *store) initTables() {
	orderBy := func(cols ...string) map[string]struct{} {
		m := make(map[string]struct{}, len(cols)+1)
		m["id"] = struct{}{}

		for _, c := range cols {
			m[c] = struct{}{}
		}

		return m
	}

	s.programs = newTable[content.Program](s.db, s.pub, tableDef{
		searchColumns: []string{"title_ar", "title_en", "summary_ar", "summary_en"},
		orderColumns:  orderBy("sort_order", "created_at", "updated_at", "slug"),
		defaultOrder:  "sort_order",
		hasStatus:     true,
	})

	s.events = newTable[content.Event](s.db, s.pub, tableDef{
		searchColumns: []string{"title_ar", "title_en", "location_ar", "location_en"},
		orderColumns:  orderBy("start_at", "end_at", "created_at", "updated_at"),
		defaultOrder:  "start_at",
		hasStatus:     true,
	})

	s.posts = newTable[content.Post](s.db, s.pub, tableDef{
		searchColumns: []string{"title_ar", "title_en", "excerpt_ar", "excerpt_en"},
		orderColumns:  orderBy("published_at", "created_at", "updated_at"),
		defaultOrder:  "-published_at",
		hasStatus:     true,
	})

	s.kpis = newTable[content.KPI](s.db, s.pub, tableDef{
		searchColumns: []string{"label_ar", "label_en"},
		orderColumns:  orderBy("sort_order", "created_at"),
		defaultOrder:  "sort_order",
		hasStatus:     true,
	})

	s.pages = newTable[content.Page](s.db, s.pub, tableDef{
		searchColumns: []string{"title_ar", "title_en", "slug"},
		orderColumns:  orderBy("slug", "created_at", "updated_at"),
		defaultOrder:  "slug",
		hasStatus:     true,
		preload: func(db *gorm.DB) *gorm.DB {
			return db.Preload("Blocks", func(db *gorm.DB) *gorm.DB {
				return db.Order("sort_order ASC, id ASC")
			})
		},
		afterSave: func(tx *gorm.DB, id uint, v any) error {
			page, ok := v.(*content.Page)
			if !ok {
				return nil
			}

			return replaceBlocks(tx, id, page.Blocks)
		},
		beforeDelete: func(tx *gorm.DB, id uint) error {
			return tx.Where("page_id = ?", id).Delete(&content.Block{}).Error
		},
	})

	s.videos = newTable[content.Video](s.db, s.pub, tableDef{
		searchColumns: []string{"title_ar", "title_en"},
		orderColumns:  orderBy("sort_order", "created_at"),
		defaultOrder:  "sort_order",
		hasStatus:     true,
	})

	s.submissions = newTable[content.Submission](s.db, s.pub, tableDef{
		searchColumns: []string{"name", "email", "subject", "message", "reference"},
		orderColumns:  orderBy("created_at", "status"),
		defaultOrder:  "-created_at",
		hasStatus:     true,
	})

	s.media = newTable[content.MediaItem](s.db, s.pub, tableDef{
		searchColumns: []string{"name", "alt_ar", "alt_en"},
		orderColumns:  orderBy("created_at", "name", "size"),
		defaultOrder:  "-created_at",
	})
}

// replaceBlocks swaps the block list of a page.
func replaceBlocks(tx *gorm.DB, pageID uint, blocks []content.Block) error {
	if err := tx.Where("page_id = ?", pageID).Delete(&content.Block{}).Error; err != nil {
		return fmt.Errorf("clearing blocks: %w", err)
	}

	if len(blocks) == 0 {
		return nil
	}

	fresh := make([]content.Block, len(blocks))
	for i, b := range blocks {
		b.ID = 0
		b.PageID = pageID
		fresh[i] = b
	}

	if err := tx.Create(&fresh).Error; err != nil {
		return fmt.Errorf("creating blocks: %w", err)
	}

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// Ping checks that the database is reachable.
func (s *store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.PingContext(ctx)
}

func (s *store) Programs() *Table[content.Program, *content.Program] { return s.programs }
func (s *store) Events() *Table[content.Event, *content.Event]       { return s.events }
func (s *store) Posts() *Table[content.Post, *content.Post]          { return s.posts }
func (s *store) KPIs() *Table[content.KPI, *content.KPI]             { return s.kpis }
func (s *store) Pages() *Table[content.Page, *content.Page]          { return s.pages }
func (s *store) Videos() *Table[content.Video, *content.Video]       { return s.videos }
func (s *store) Media() *Table[content.MediaItem, *content.MediaItem] {
	return s.media
}

func (s *store) Submissions() *Table[content.Submission, *content.Submission] {
	return s.submissions
}

// --- User CRUD ---

func (s *store) GetUserByID(
	ctx context.Context, id uint,
) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, wrapNotFound("getting user by id", err)
	}

	return &user, nil
}

func (s *store) GetUserByEmail(
	ctx context.Context, email string,
) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error; err != nil {
		return nil, wrapNotFound("getting user by email", err)
	}

	return &user, nil
}

func (s *store) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	return users, nil
}

func (s *store) CreateUser(ctx context.Context, user *User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("creating user: %w", translateConflict(err))
	}

	return nil
}

func (s *store) UpdateUser(ctx context.Context, user *User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("updating user: %w", err)
	}

	return nil
}

// DeleteUser removes a user together with their sessions and role.
func (s *store) DeleteUser(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&Session{}).Error; err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", id).Delete(&UserRole{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&User{}, id)
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	s.pub.Publish(realtime.Change{Kind: realtime.Delete, Table: TableUserRoles, ID: id})

	return nil
}

// --- Session CRUD ---

func (s *store) CreateSession(
	ctx context.Context, session *Session,
) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	return nil
}

func (s *store) GetSessionByToken(
	ctx context.Context, token string,
) (*Session, error) {
	var session Session
	if err := s.db.WithContext(ctx).
		Where("token = ?", token).
		First(&session).Error; err != nil {
		return nil, wrapNotFound("getting session by token", err)
	}

	return &session, nil
}

func (s *store) GetSessionByID(
	ctx context.Context, id uint,
) (*Session, error) {
	var session Session
	if err := s.db.WithContext(ctx).First(&session, id).Error; err != nil {
		return nil, wrapNotFound("getting session by id", err)
	}

	return &session, nil
}

func (s *store) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	return sessions, nil
}

func (s *store) UpdateSessionExpiry(
	ctx context.Context, id uint, expiresAt time.Time,
) error {
	if err := s.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ?", id).
		Update("expires_at", expiresAt).Error; err != nil {
		return fmt.Errorf("updating session expiry: %w", err)
	}

	return nil
}

func (s *store) UpdateSessionLastActive(
	ctx context.Context, id uint, t time.Time,
) error {
	if err := s.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ?", id).
		Update("last_active_at", t).Error; err != nil {
		return fmt.Errorf("updating session last active: %w", err)
	}

	return nil
}

func (s *store) DeleteSession(ctx context.Context, token string) error {
	if err := s.db.WithContext(ctx).
		Where("token = ?", token).
		Delete(&Session{}).Error; err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	return nil
}

func (s *store) DeleteSessionByID(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&Session{}, id)
	if result.Error != nil {
		return fmt.Errorf("deleting session by id: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("deleting session by id: %w", ErrNotFound)
	}

	return nil
}

// DeleteSessionsByUser removes and returns every session of a user.
func (s *store) DeleteSessionsByUser(
	ctx context.Context, userID uint,
) ([]Session, error) {
	var sessions []Session

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Find(&sessions).Error; err != nil {
			return err
		}

		return tx.Where("user_id = ?", userID).Delete(&Session{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("deleting sessions of user %d: %w", userID, err)
	}

	return sessions, nil
}

func (s *store) DeleteExpiredSessions(ctx context.Context) error {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&Session{})
	if result.Error != nil {
		return fmt.Errorf("deleting expired sessions: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.log.WithField("count", result.RowsAffected).
			Debug("Cleaned up expired sessions")
	}

	return nil
}

// --- Role assignment ---

func (s *store) GetUserRole(
	ctx context.Context, userID uint,
) (*UserRole, error) {
	var role UserRole
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&role).Error; err != nil {
		return nil, wrapNotFound("getting user role", err)
	}

	return &role, nil
}

func (s *store) ListUserRoles(ctx context.Context) ([]UserRole, error) {
	var roles []UserRole
	if err := s.db.WithContext(ctx).
		Order("user_id ASC").
		Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("listing user roles: %w", err)
	}

	return roles, nil
}

func (s *store) SetUserRole(
	ctx context.Context, userID uint, role string,
) error {
	var existing UserRole

	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Assign(UserRole{Role: role}).
		FirstOrCreate(&existing, UserRole{UserID: userID})
	if result.Error != nil {
		return fmt.Errorf("setting user role: %w", result.Error)
	}

	s.pub.Publish(realtime.Change{
		Kind:  realtime.Update,
		Table: TableUserRoles,
		ID:    userID,
		Row:   existing,
	})

	return nil
}

func (s *store) DeleteUserRole(ctx context.Context, userID uint) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&UserRole{})
	if result.Error != nil {
		return fmt.Errorf("deleting user role: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("deleting user role: %w", ErrNotFound)
	}

	s.pub.Publish(realtime.Change{Kind: realtime.Delete, Table: TableUserRoles, ID: userID})

	return nil
}

func (s *store) CountUsersWithRole(
	ctx context.Context, role string,
) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&UserRole{}).
		Where("role = ?", role).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting users with role: %w", err)
	}

	return n, nil
}

// GrantRoleIfUnheld assigns role to userID only while no user holds it.
// The check and the write share one transaction; on postgres the role
// table is locked for the duration so concurrent callers serialize.
func (s *store) GrantRoleIfUnheld(
	ctx context.Context, userID uint, role string,
) (bool, error) {
	var (
		granted UserRole
		ok      bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec(
				"LOCK TABLE user_roles IN SHARE ROW EXCLUSIVE MODE",
			).Error; err != nil {
				return err
			}
		}

		var n int64
		if err := tx.Model(&UserRole{}).
			Where("role = ?", role).
			Count(&n).Error; err != nil {
			return err
		}

		if n > 0 {
			return nil
		}

		if err := tx.Where("user_id = ?", userID).
			Assign(UserRole{Role: role}).
			FirstOrCreate(&granted, UserRole{UserID: userID}).Error; err != nil {
			return err
		}

		ok = true

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("granting role: %w", err)
	}

	if ok {
		s.pub.Publish(realtime.Change{
			Kind:  realtime.Update,
			Table: TableUserRoles,
			ID:    userID,
			Row:   granted,
		})
	}

	return ok, nil
}

// --- Activity log ---

func (s *store) AppendActivity(
	ctx context.Context, entry *content.ActivityLog,
) error {
	entry.ID = 0

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("appending activity: %w", err)
	}

	s.pub.Publish(realtime.Change{
		Kind:  realtime.Insert,
		Table: entry.TableName(),
		ID:    entry.ID,
		Row:   entry,
	})

	return nil
}

func (s *store) ListActivity(
	ctx context.Context, q ActivityQuery,
) ([]content.ActivityLog, int64, error) {
	db := s.db.WithContext(ctx).Model(&content.ActivityLog{})

	if q.EntityType != "" {
		db = db.Where("entity_type = ?", q.EntityType)
	}

	if q.ActorID != 0 {
		db = db.Where("actor_id = ?", q.ActorID)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting activity: %w", err)
	}

	limit := q.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	var entries []content.ActivityLog
	if err := db.Order("id DESC").
		Limit(limit).
		Offset(max(q.Offset, 0)).
		Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("listing activity: %w", err)
	}

	return entries, total, nil
}

// --- Seeding ---

// SeedUsers upserts config-sourced users and their roles. Only users with
// source="config" are updated; accounts created through the admin panel or
// sign-up are preserved.
func (s *store) SeedUsers(
	ctx context.Context, users []config.SeedUser,
) error {
	for _, u := range users {
		u.Email = strings.ToLower(strings.TrimSpace(u.Email))

		hash, err := bcrypt.GenerateFromPassword(
			[]byte(u.Password), bcrypt.DefaultCost,
		)
		if err != nil {
			return fmt.Errorf("hashing password for %q: %w", u.Email, err)
		}

		var existing User

		result := s.db.WithContext(ctx).
			Where("email = ?", u.Email).
			First(&existing)

		switch {
		case result.Error == nil && existing.Source != SourceConfig:
			s.log.WithField("email", u.Email).
				Warn("Skipping seed user, account exists with another source")

			continue
		case result.Error == nil:
			existing.PasswordHash = string(hash)

			if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
				return fmt.Errorf("updating config user %q: %w", u.Email, err)
			}
		case errors.Is(result.Error, gorm.ErrRecordNotFound):
			existing = User{
				Email:        u.Email,
				PasswordHash: string(hash),
				Source:       SourceConfig,
			}

			if err := s.db.WithContext(ctx).Create(&existing).Error; err != nil {
				return fmt.Errorf("seeding config user %q: %w", u.Email, err)
			}
		default:
			return fmt.Errorf("looking up config user %q: %w", u.Email, result.Error)
		}

		if u.Role == "" {
			continue
		}

		if err := s.SetUserRole(ctx, existing.ID, u.Role); err != nil {
			return fmt.Errorf("seeding role for %q: %w", u.Email, err)
		}
	}

	s.log.WithField("count", len(users)).
		Info("Seeded users from config")

	return nil
}
