package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/debhub/debhub-backend/internal/logger"
	"github.com/debhub/debhub-backend/internal/types"
)

type DocumentLinkRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, link *types.DocumentLink) (*types.DocumentLink, error)
	GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*types.DocumentLink, error)
}

type documentLinkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentLinkRepo(db *gorm.DB, baseLog *logger.Logger) DocumentLinkRepo {
	return &documentLinkRepo{db: db, log: baseLog.With("repo", "DocumentLinkRepo")}
}

func (r *documentLinkRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// Upsert keeps the (document, linked document, type) pair unique; a repeated
// auto-detection only refreshes the confidence.
func (r *documentLinkRepo) Upsert(ctx context.Context, tx *gorm.DB, link *types.DocumentLink) (*types.DocumentLink, error) {
	if err := r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "document_id"},
				{Name: "linked_document_id"},
				{Name: "link_type"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"confidence"}),
		}).
		Create(link).Error; err != nil {
		return nil, err
	}
	return link, nil
}

func (r *documentLinkRepo) GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) ([]*types.DocumentLink, error) {
	var results []*types.DocumentLink
	if err := r.conn(tx).WithContext(ctx).
		Where("document_id = ? OR linked_document_id = ?", documentID, documentID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
