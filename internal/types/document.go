package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/debhub/debhub-backend/internal/status"
)

const (
	DocTypeInvoice      = "invoice"
	DocTypeDeliveryNote = "delivery_note"
	DocTypeMixed        = "mixed"
)

// Document is one logical invoice or delivery note (possibly multi-page)
// inside a batch.
type Document struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID   uuid.UUID `gorm:"type:uuid;not null;index" json:"org_id"`
	BatchID uuid.UUID `gorm:"type:uuid;not null;index" json:"batch_id"`
	Batch   *Batch    `gorm:"constraint:OnDelete:CASCADE;foreignKey:BatchID;references:ID" json:"batch,omitempty"`

	DocType     string `gorm:"column:doc_type;not null;default:'invoice'" json:"doc_type"`
	StoragePath string `gorm:"column:storage_path;not null" json:"storage_path"`
	Filename    string `gorm:"column:filename;not null" json:"filename"`

	SupplierName    string `gorm:"column:supplier_name" json:"supplier_name"`
	SupplierVATID   string `gorm:"column:supplier_vat_id" json:"supplier_vat_id"`
	SupplierCountry string `gorm:"column:supplier_country" json:"supplier_country"`
	SupplierAddress string `gorm:"column:supplier_address" json:"supplier_address"`

	InvoiceNumber      string     `gorm:"column:invoice_number" json:"invoice_number"`
	InvoiceDate        *time.Time `gorm:"column:invoice_date" json:"invoice_date,omitempty"`
	DeliveryNoteNumber string     `gorm:"column:delivery_note_number" json:"delivery_note_number"`

	Currency      string  `gorm:"column:currency" json:"currency"`
	TotalHT       float64 `gorm:"column:total_ht" json:"total_ht"`
	TotalTTC      float64 `gorm:"column:total_ttc" json:"total_ttc"`
	ShippingTotal float64 `gorm:"column:shipping_total" json:"shipping_total"`

	Status        status.Document `gorm:"column:status;not null;default:'uploaded'" json:"status"`
	ErrorMessage  string          `gorm:"column:error_message" json:"error_message,omitempty"`
	PagesCount    int             `gorm:"column:pages_count" json:"pages_count"`
	ConfidenceAvg float64         `gorm:"column:confidence_avg" json:"confidence_avg"`

	Lines []*Line `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"lines,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Document) TableName() string { return "document" }

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = status.DocUploaded
	}
	return nil
}
