package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	LinkTypeManual       = "manual"
	LinkTypeAutoDetected = "auto_detected"
)

// DocumentLink associates two documents, typically a delivery note with the
// invoice it was shipped against. Unique per (document, linked document, type).
type DocumentLink struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID       uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_document_link_pair" json:"document_id"`
	LinkedDocumentID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_document_link_pair" json:"linked_document_id"`
	LinkType         string    `gorm:"column:link_type;not null;uniqueIndex:idx_document_link_pair" json:"link_type"`
	Confidence       float64   `gorm:"column:confidence" json:"confidence"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
}

func (DocumentLink) TableName() string { return "document_link" }

func (dl *DocumentLink) BeforeCreate(tx *gorm.DB) error {
	if dl.ID == uuid.Nil {
		dl.ID = uuid.New()
	}
	return nil
}
