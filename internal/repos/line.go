package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/types"
)

type LineRepo interface {
	CreateMany(ctx context.Context, tx *gorm.DB, lines []*types.Line) ([]*types.Line, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Line, error)
	GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*types.Line, error)
	GetByDocumentIDs(ctx context.Context, tx *gorm.DB, documentIDs []uuid.UUID) ([]*types.Line, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	CountUnvalidatedByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) (int64, error)
	FullDeleteByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error
}

type lineRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLineRepo(db *gorm.DB, baseLog *logger.Logger) LineRepo {
	return &lineRepo{db: db, log: baseLog.With("repo", "LineRepo")}
}

func (r *lineRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *lineRepo) CreateMany(ctx context.Context, tx *gorm.DB, lines []*types.Line) ([]*types.Line, error) {
	if len(lines) == 0 {
		return []*types.Line{}, nil
	}
	if err := r.conn(tx).WithContext(ctx).Create(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *lineRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Line, error) {
	var result types.Line
	if err := r.conn(tx).WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *lineRepo) GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*types.Line, error) {
	return r.GetByDocumentIDs(ctx, tx, []uuid.UUID{documentID})
}

func (r *lineRepo) GetByDocumentIDs(ctx context.Context, tx *gorm.DB, documentIDs []uuid.UUID) ([]*types.Line, error) {
	var results []*types.Line
	if len(documentIDs) == 0 {
		return results, nil
	}
	if err := r.conn(tx).WithContext(ctx).
		Where("document_id IN ?", documentIDs).
		Order("line_no ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *lineRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	return r.conn(tx).WithContext(ctx).
		Model(&types.Line{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *lineRepo) CountUnvalidatedByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) (int64, error) {
	var count int64
	if err := r.conn(tx).WithContext(ctx).
		Model(&types.Line{}).
		Where("document_id = ? AND validated = ?", documentID, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *lineRepo) FullDeleteByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) error {
	return r.conn(tx).WithContext(ctx).
		Unscoped().
		Where("document_id = ?", documentID).
		Delete(&types.Line{}).Error
}
