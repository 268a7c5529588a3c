package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReferenceEntry is one learned (description/SKU -> HS code, net weight) pair
// for an organization. Rows with a user_corrected source come from human
// overrides; validated rows feed the highest-trust enrichment resolver.
type ReferenceEntry struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID          uuid.UUID  `gorm:"type:uuid;not null;index:idx_reference_org_desc;index:idx_reference_org_sku" json:"org_id"`
	DescriptionKey string     `gorm:"column:description_key;not null;index:idx_reference_org_desc" json:"description_key"`
	SKU            string     `gorm:"column:sku;index:idx_reference_org_sku" json:"sku"`
	HSCode         string     `gorm:"column:hs_code" json:"hs_code"`
	NetWeightKg    float64    `gorm:"column:net_weight_kg" json:"net_weight_kg"`
	Source         string     `gorm:"column:source;not null" json:"source"`
	TimesValidated int        `gorm:"column:times_validated;not null;default:0" json:"times_validated"`
	LastValidatedAt *time.Time `gorm:"column:last_validated_at" json:"last_validated_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
}

func (ReferenceEntry) TableName() string { return "reference_entry" }

func (re *ReferenceEntry) BeforeCreate(tx *gorm.DB) error {
	if re.ID == uuid.Nil {
		re.ID = uuid.New()
	}
	return nil
}
