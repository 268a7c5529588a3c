package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LineAuditLog records one human edit to one line field.
type LineAuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID      uuid.UUID `gorm:"type:uuid;not null;index" json:"org_id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`
	LineID     uuid.UUID `gorm:"type:uuid;not null;index" json:"line_id"`
	Field      string    `gorm:"column:field;not null" json:"field"`
	OldValue   string    `gorm:"column:old_value" json:"old_value"`
	NewValue   string    `gorm:"column:new_value" json:"new_value"`
	EditedBy   uuid.UUID `gorm:"type:uuid" json:"edited_by"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

func (LineAuditLog) TableName() string { return "line_audit_log" }

func (al *LineAuditLog) BeforeCreate(tx *gorm.DB) error {
	if al.ID == uuid.Nil {
		al.ID = uuid.New()
	}
	return nil
}
