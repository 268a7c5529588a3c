package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/types"
)

type BatchRepo interface {
	Create(ctx context.Context, tx *gorm.DB, batch *types.Batch) (*types.Batch, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Batch, error)
	GetByIDWithDocuments(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Batch, error)
	ListByOrgID(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*types.Batch, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	FullDeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type batchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBatchRepo(db *gorm.DB, baseLog *logger.Logger) BatchRepo {
	return &batchRepo{db: db, log: baseLog.With("repo", "BatchRepo")}
}

func (r *batchRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *batchRepo) Create(ctx context.Context, tx *gorm.DB, batch *types.Batch) (*types.Batch, error) {
	if err := r.conn(tx).WithContext(ctx).Create(batch).Error; err != nil {
		return nil, err
	}
	return batch, nil
}

func (r *batchRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Batch, error) {
	var result types.Batch
	if err := r.conn(tx).WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *batchRepo) GetByIDWithDocuments(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Batch, error) {
	var result types.Batch
	if err := r.conn(tx).WithContext(ctx).
		Preload("Documents").
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *batchRepo) ListByOrgID(ctx context.Context, tx *gorm.DB, orgID uuid.UUID) ([]*types.Batch, error) {
	var results []*types.Batch
	if err := r.conn(tx).WithContext(ctx).
		Preload("Documents").
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *batchRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	return r.conn(tx).WithContext(ctx).
		Model(&types.Batch{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *batchRepo) FullDeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return r.conn(tx).WithContext(ctx).
		Unscoped().
		Where("id = ?", id).
		Delete(&types.Batch{}).Error
}
