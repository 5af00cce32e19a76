package assistant

import (
	"context"

	"gorm.io/gorm"

	"github.com/assistdesk/assistdesk/app/models"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Filter narrows List results. Zero values are ignored.
type Filter struct {
	DomainCode    string
	State         string
	KnowledgeBank string
	Search        string
	Limit         int
	Offset        int
}

// Repository provides DB operations used by the assistant service.
type Repository interface {
	List(ctx context.Context, filter Filter) ([]models.Assistant, int64, error)
	Get(ctx context.Context, id uint) (*models.Assistant, error)
	GetMany(ctx context.Context, ids []uint) ([]models.Assistant, error)
	Create(ctx context.Context, a *models.Assistant) error
	Update(ctx context.Context, a *models.Assistant) error
	SetState(ctx context.Context, ids []uint, state string) (int64, error)
	Delete(ctx context.Context, id uint) error
	KnowledgeBanks(ctx context.Context) ([]models.KnowledgeBank, error)
	KnowledgeBankExists(ctx context.Context, name string) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an assistant repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) List(ctx context.Context, f Filter) ([]models.Assistant, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Assistant{})
	if f.DomainCode != "" {
		q = q.Where("domain_code = ?", f.DomainCode)
	}
	if f.State != "" {
		q = q.Where("state = ?", f.State)
	}
	if f.KnowledgeBank != "" {
		q = q.Where("knowledge_bank = ?", f.KnowledgeBank)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("name LIKE ? OR description LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	var out []models.Assistant
	err := q.Order("name ASC").Limit(limit).Offset(f.Offset).Find(&out).Error
	return out, total, err
}

func (r *gormRepository) Get(ctx context.Context, id uint) (*models.Assistant, error) {
	var a models.Assistant
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *gormRepository) GetMany(ctx context.Context, ids []uint) ([]models.Assistant, error) {
	var out []models.Assistant
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&out).Error
	return out, err
}

func (r *gormRepository) Create(ctx context.Context, a *models.Assistant) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *gormRepository) Update(ctx context.Context, a *models.Assistant) error {
	return r.db.WithContext(ctx).Model(a).
		Select("name", "description", "domain_code", "knowledge_bank", "state", "openai_assistant_id", "credits_per_message", "updated_at").
		Updates(a).Error
}

func (r *gormRepository) SetState(ctx context.Context, ids []uint, state string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Assistant{}).Where("id IN ?", ids).Update("state", state)
	return res.RowsAffected, res.Error
}

func (r *gormRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Assistant{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormRepository) KnowledgeBanks(ctx context.Context) ([]models.KnowledgeBank, error) {
	var banks []models.KnowledgeBank
	err := r.db.WithContext(ctx).Order("name").Find(&banks).Error
	return banks, err
}

func (r *gormRepository) KnowledgeBankExists(ctx context.Context, name string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.KnowledgeBank{}).Where("name = ?", name).Count(&n).Error
	return n > 0, err
}
