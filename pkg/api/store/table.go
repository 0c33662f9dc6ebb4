package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/healthassoc/bayan/pkg/content"
	"github.com/healthassoc/bayan/pkg/realtime"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Query filters a table listing.
type Query struct {
	Status content.Status
	Search string
	// Order is a column name, optionally prefixed with "-" for descending.
	Order  string
	Limit  int
	Offset int
}

// tableDef describes how a content table is listed.
type tableDef struct {
	searchColumns []string
	orderColumns  map[string]struct{}
	defaultOrder  string
	hasStatus     bool
	preload       func(db *gorm.DB) *gorm.DB
	// afterSave runs inside the write transaction after the row is saved.
	afterSave func(tx *gorm.DB, id uint, v any) error
	// beforeDelete runs inside the delete transaction.
	beforeDelete func(tx *gorm.DB, id uint) error
}

// Table is the typed accessor for one content table. Every successful
// write is published to the change feed after it commits.
type Table[T any, PT content.Entity[T]] struct {
	db   *gorm.DB
	pub  realtime.Publisher
	def  tableDef
	name string
}

func newTable[T any, PT content.Entity[T]](
	db *gorm.DB, pub realtime.Publisher, def tableDef,
) *Table[T, PT] {
	var zero T

	return &Table[T, PT]{
		db:   db,
		pub:  pub,
		def:  def,
		name: PT(&zero).TableName(),
	}
}

// Name returns the table name.
func (t *Table[T, PT]) Name() string {
	return t.name
}

func (t *Table[T, PT]) base(ctx context.Context) *gorm.DB {
	db := t.db.WithContext(ctx)
	if t.def.preload != nil {
		db = t.def.preload(db)
	}

	return db
}

// List returns one page of rows matching q and the total match count.
func (t *Table[T, PT]) List(ctx context.Context, q Query) ([]T, int64, error) {
	db := t.db.WithContext(ctx).Model(new(T))

	if q.Status != "" && t.def.hasStatus {
		db = db.Where("status = ?", q.Status)
	}

	if search := strings.TrimSpace(q.Search); search != "" && len(t.def.searchColumns) > 0 {
		pattern := "%" + strings.ToLower(search) + "%"
		conds := make([]string, 0, len(t.def.searchColumns))
		args := make([]any, 0, len(t.def.searchColumns))

		for _, col := range t.def.searchColumns {
			conds = append(conds, "LOWER("+col+") LIKE ?")
			args = append(args, pattern)
		}

		db = db.Where(strings.Join(conds, " OR "), args...)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting %s: %w", t.name, err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	if limit > maxListLimit {
		limit = maxListLimit
	}

	var rows []T

	db = db.Order(t.orderClause(q.Order)).Limit(limit).Offset(max(q.Offset, 0))
	if t.def.preload != nil {
		db = t.def.preload(db)
	}

	if err := db.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("listing %s: %w", t.name, err)
	}

	return rows, total, nil
}

// orderClause maps a requested order onto an allowlisted column. Unknown
// columns fall back to the table default.
func (t *Table[T, PT]) orderClause(order string) clause.OrderByColumn {
	if order == "" {
		order = t.def.defaultOrder
	}

	desc := strings.HasPrefix(order, "-")
	col := strings.TrimPrefix(order, "-")

	if _, ok := t.def.orderColumns[col]; !ok {
		desc = strings.HasPrefix(t.def.defaultOrder, "-")
		col = strings.TrimPrefix(t.def.defaultOrder, "-")
	}

	return clause.OrderByColumn{Column: clause.Column{Name: col}, Desc: desc}
}

// Get returns the row with id.
func (t *Table[T, PT]) Get(ctx context.Context, id uint) (*T, error) {
	var row T
	if err := t.base(ctx).First(&row, id).Error; err != nil {
		return nil, wrapNotFound(fmt.Sprintf("getting %s %d", t.name, id), err)
	}

	return &row, nil
}

// GetBySlug returns the row with slug, optionally restricted to published
// rows.
func (t *Table[T, PT]) GetBySlug(ctx context.Context, slug string, publishedOnly bool) (*T, error) {
	db := t.base(ctx).Where("slug = ?", slug)
	if publishedOnly && t.def.hasStatus {
		db = db.Where("status = ?", content.StatusPublished)
	}

	var row T
	if err := db.First(&row).Error; err != nil {
		return nil, wrapNotFound(fmt.Sprintf("getting %s by slug %q", t.name, slug), err)
	}

	return &row, nil
}

// Create inserts v and sets its ID.
func (t *Table[T, PT]) Create(ctx context.Context, v PT) error {
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(v).Error; err != nil {
			return err
		}

		if t.def.afterSave != nil {
			return t.def.afterSave(tx, v.GetID(), v)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("creating %s: %w", t.name, translateConflict(err))
	}

	t.publish(realtime.Insert, v.GetID(), v)

	return nil
}

// Update overwrites every column of row id with v, including zero values,
// and returns the stored row.
func (t *Table[T, PT]) Update(ctx context.Context, id uint, v PT) (*T, error) {
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(new(T)).
			Where("id = ?", id).
			Select("*").
			Omit(clause.Associations, "id", "created_at").
			Updates(v)
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		if t.def.afterSave != nil {
			return t.def.afterSave(tx, id, v)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("updating %s %d: %w", t.name, id, translateConflict(err))
	}

	row, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	t.publish(realtime.Update, id, row)

	return row, nil
}

// Delete removes row id.
func (t *Table[T, PT]) Delete(ctx context.Context, id uint) error {
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if t.def.beforeDelete != nil {
			if err := t.def.beforeDelete(tx, id); err != nil {
				return err
			}
		}

		result := tx.Delete(new(T), id)
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting %s %d: %w", t.name, id, err)
	}

	t.publish(realtime.Delete, id, nil)

	return nil
}

// Count returns the number of rows, optionally restricted to a status.
func (t *Table[T, PT]) Count(ctx context.Context, status content.Status) (int64, error) {
	db := t.db.WithContext(ctx).Model(new(T))
	if status != "" && t.def.hasStatus {
		db = db.Where("status = ?", status)
	}

	var n int64
	if err := db.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting %s: %w", t.name, err)
	}

	return n, nil
}

func (t *Table[T, PT]) publish(kind realtime.Kind, id uint, row any) {
	t.pub.Publish(realtime.Change{Kind: kind, Table: t.name, ID: id, Row: row})
}

func wrapNotFound(msg string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	}

	return fmt.Errorf("%s: %w", msg, err)
}

// translateConflict maps unique constraint failures onto ErrConflict.
func translateConflict(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") {
		return fmt.Errorf("%w: %s", ErrConflict, err.Error())
	}

	return err
}
