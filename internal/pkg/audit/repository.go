package audit

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/assistdesk/assistdesk/app/models"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Filter narrows List results. Zero values are ignored.
type Filter struct {
	EntityType   string
	EntityID     string
	AdminUserID  uint
	UserID       uint
	ActivityType string
	From         *time.Time
	To           *time.Time
	// Keyset returns entries with id > AfterID in ascending order, without a total.
	Keyset  bool
	AfterID uint
	Limit   int
	Offset  int
}

func (f Filter) normalizedLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

// Repository provides the audit table operations. Entries are never updated.
type Repository interface {
	Insert(ctx context.Context, entry *models.AdminActivityLog) error
	List(ctx context.Context, filter Filter) ([]models.AdminActivityLog, int64, error)
	FindUser(ctx context.Context, id uint) (*models.User, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an audit repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Insert(ctx context.Context, entry *models.AdminActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *gormRepository) List(ctx context.Context, f Filter) ([]models.AdminActivityLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.AdminActivityLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.AdminUserID != 0 {
		q = q.Where("admin_user_id = ?", f.AdminUserID)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.ActivityType != "" {
		q = q.Where("activity_type = ?", f.ActivityType)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	var entries []models.AdminActivityLog
	if f.Keyset {
		err := q.Where("id > ?", f.AfterID).Order("id ASC").Limit(f.normalizedLimit()).Find(&entries).Error
		return entries, int64(len(entries)), err
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC, id DESC").Limit(f.normalizedLimit()).Offset(f.Offset).Find(&entries).Error
	return entries, total, err
}

func (r *gormRepository) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
