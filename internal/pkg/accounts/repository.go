package accounts

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/assistdesk/assistdesk/app/models"
)

const (
	DefaultListLimit = 25
	MaxListLimit     = 200
)

// Filter narrows user listings. Active and Role are ignored when empty.
type Filter struct {
	Search string
	Role   string
	Active *bool
	Limit  int
	Offset int
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		return MaxListLimit
	}
	return f.Limit
}

// Repository provides DB operations used by the accounts service.
type Repository interface {
	List(ctx context.Context, filter Filter) ([]models.User, int64, error)
	Get(ctx context.Context, id uint) (*models.User, error)
	GetMany(ctx context.Context, ids []uint) ([]models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, id uint, updates map[string]interface{}) error
	UpdateMany(ctx context.Context, ids []uint, updates map[string]interface{}) (int64, error)
	Balances(ctx context.Context, ids []uint) (map[uint]int64, error)
	Subscriptions(ctx context.Context, ids []uint) (map[uint]models.UserSubscription, error)

	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, userID uint) ([]models.APIKey, error)
	FindAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error)
	RevokeAPIKeys(ctx context.Context, userID uint, keyID uint, at time.Time) (int64, error)
	TouchAPIKey(ctx context.Context, id uint, at time.Time) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an accounts repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) List(ctx context.Context, f Filter) ([]models.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("email LIKE ? OR full_name LIKE ?", like, like)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Active != nil {
		q = q.Where("is_active = ?", *f.Active)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	err := q.Order("created_at DESC").Order("id DESC").Limit(f.limit()).Offset(f.Offset).Find(&users).Error
	return users, total, err
}

func (r *gormRepository) Get(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *gormRepository) GetMany(ctx context.Context, ids []uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&users).Error
	return users, err
}

func (r *gormRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *gormRepository) Create(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *gormRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) UpdateMany(ctx context.Context, ids []uint, updates map[string]interface{}) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", ids).Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *gormRepository) Balances(ctx context.Context, ids []uint) (map[uint]int64, error) {
	var rows []models.UserCredit
	if err := r.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(rows))
	for _, row := range rows {
		out[row.UserID] = row.Balance
	}
	return out, nil
}

func (r *gormRepository) Subscriptions(ctx context.Context, ids []uint) (map[uint]models.UserSubscription, error) {
	var rows []models.UserSubscription
	if err := r.db.WithContext(ctx).Where("user_id IN ? AND is_active = ?", ids, true).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]models.UserSubscription, len(rows))
	for _, row := range rows {
		out[row.UserID] = row
	}
	return out, nil
}

func (r *gormRepository) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}

func (r *gormRepository) ListAPIKeys(ctx context.Context, userID uint) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&keys).Error
	return keys, err
}

func (r *gormRepository) FindAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	var key models.APIKey
	if err := r.db.WithContext(ctx).Where("hash = ? AND revoked_at IS NULL", hash).First(&key).Error; err != nil {
		return nil, err
	}
	return &key, nil
}

// RevokeAPIKeys revokes keyID, or every active key of userID when keyID is 0.
func (r *gormRepository) RevokeAPIKeys(ctx context.Context, userID uint, keyID uint, at time.Time) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.APIKey{}).Where("user_id = ? AND revoked_at IS NULL", userID)
	if keyID != 0 {
		q = q.Where("id = ?", keyID)
	}
	res := q.Update("revoked_at", at)
	return res.RowsAffected, res.Error
}

func (r *gormRepository) TouchAPIKey(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.APIKey{}).Where("id = ?", id).Update("last_used_at", at).Error
}
