package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/debhub/debhub-backend/internal/status"
)

// Batch is one user-initiated upload event. It owns one or more documents and
// is never hard-deleted except by explicit admin action (which cascades to its
// documents and blobs).
type Batch struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID              uuid.UUID      `gorm:"type:uuid;not null;index" json:"org_id"`
	SourceFilename     string         `gorm:"column:source_filename;not null" json:"source_filename"`
	StoragePath        string         `gorm:"column:storage_path" json:"storage_path"`
	Status             status.Batch   `gorm:"column:status;not null;default:'uploaded'" json:"status"`
	TotalDocuments     int            `gorm:"column:total_documents;not null;default:0" json:"total_documents"`
	ProcessedDocuments int            `gorm:"column:processed_documents;not null;default:0" json:"processed_documents"`
	ErrorMessage       string         `gorm:"column:error_message" json:"error_message,omitempty"`
	Documents          []*Document    `gorm:"constraint:OnDelete:CASCADE;foreignKey:BatchID;references:ID" json:"documents,omitempty"`
	CreatedAt          time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Batch) TableName() string { return "batch" }

func (b *Batch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = status.BatchUploaded
	}
	return nil
}
