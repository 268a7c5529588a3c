package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Line is one product/service row parsed from a document. HS code and net
// weight carry their resolution source and confidence inline so every value is
// auditable back to the resolver that produced it.
type Line struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`
	Document   *Document `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"document,omitempty"`

	LineNo      int     `gorm:"column:line_no;not null" json:"line_no"`
	Description string  `gorm:"column:description;not null" json:"description"`
	SKU         string  `gorm:"column:sku" json:"sku"`
	Quantity    float64 `gorm:"column:quantity" json:"quantity"`
	Unit        string  `gorm:"column:unit" json:"unit"`
	UnitPrice   float64 `gorm:"column:unit_price" json:"unit_price"`
	LineAmount  float64 `gorm:"column:line_amount" json:"line_amount"`

	HSCode           string  `gorm:"column:hs_code" json:"hs_code"`
	HSCodeConfidence float64 `gorm:"column:hs_code_confidence" json:"hs_code_confidence"`
	HSCodeSource     string  `gorm:"column:hs_code_source" json:"hs_code_source"`

	CountryOfOrigin string `gorm:"column:country_of_origin" json:"country_of_origin"`

	NetWeightKg         float64 `gorm:"column:net_weight_kg" json:"net_weight_kg"`
	NetWeightConfidence float64 `gorm:"column:net_weight_confidence" json:"net_weight_confidence"`
	NetWeightSource     string  `gorm:"column:net_weight_source" json:"net_weight_source"`

	ShippingAllocated float64 `gorm:"column:shipping_allocated" json:"shipping_allocated"`
	CustomsValue      float64 `gorm:"column:customs_value" json:"customs_value"`

	EnrichmentNotes datatypes.JSON `gorm:"column:enrichment_notes;type:jsonb" json:"enrichment_notes,omitempty"`

	Validated      bool       `gorm:"column:validated;not null;default:false" json:"validated"`
	LastReviewedAt *time.Time `gorm:"column:last_reviewed_at" json:"last_reviewed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Line) TableName() string { return "line" }

func (l *Line) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
