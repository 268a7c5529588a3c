package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/types"
)

type AuditLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entries []*types.LineAuditLog) error
	GetByLineID(ctx context.Context, tx *gorm.DB, lineID uuid.UUID) ([]*types.LineAuditLog, error)
}

type auditLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditLogRepo(db *gorm.DB, baseLog *logger.Logger) AuditLogRepo {
	return &auditLogRepo{db: db, log: baseLog.With("repo", "AuditLogRepo")}
}

func (r *auditLogRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *auditLogRepo) Create(ctx context.Context, tx *gorm.DB, entries []*types.LineAuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	return r.conn(tx).WithContext(ctx).Create(&entries).Error
}

func (r *auditLogRepo) GetByLineID(ctx context.Context, tx *gorm.DB, lineID uuid.UUID) ([]*types.LineAuditLog, error) {
	var results []*types.LineAuditLog
	if err := r.conn(tx).WithContext(ctx).
		Where("line_id = ?", lineID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
