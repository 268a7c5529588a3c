package extraction

import (
	"fmt"

	"github.com/google/uuid"
)

// Result is the canonical extraction output shared by every strategy. Fields
// the model did not find stay at their zero value; the normalizer guarantees
// the invariants (uppercase 2-letter countries, numeric numbers, no
// description-less lines).
type Result struct {
	DocType            string  `json:"doc_type,omitempty"`
	SupplierName       string  `json:"supplier_name,omitempty"`
	SupplierVATID      string  `json:"supplier_vat_id,omitempty"`
	SupplierCountry    string  `json:"supplier_country,omitempty"`
	SupplierAddress    string  `json:"supplier_address,omitempty"`
	InvoiceNumber      string  `json:"invoice_number,omitempty"`
	InvoiceDate        string  `json:"invoice_date,omitempty"`
	DeliveryNoteNumber string  `json:"delivery_note_number,omitempty"`
	Currency           string  `json:"currency,omitempty"`
	TotalHT            float64 `json:"total_ht,omitempty"`
	TotalTTC           float64 `json:"total_ttc,omitempty"`
	ShippingTotal      float64 `json:"shipping_total,omitempty"`

	Lines []ExtractedLine `json:"lines"`

	// PagesCount comes from the strategy. ConfidenceAvg is the model's
	// self-reported legibility unless the strategy measured one (OCR).
	PagesCount    int     `json:"pages_count,omitempty"`
	ConfidenceAvg float64 `json:"confidence_avg,omitempty"`
}

type ExtractedLine struct {
	LineNo          int     `json:"line_no,omitempty"`
	Description     string  `json:"description"`
	SKU             string  `json:"sku,omitempty"`
	Quantity        float64 `json:"quantity,omitempty"`
	Unit            string  `json:"unit,omitempty"`
	UnitPrice       float64 `json:"unit_price,omitempty"`
	LineAmount      float64 `json:"line_amount,omitempty"`
	HSCode          string  `json:"hs_code,omitempty"`
	CountryOfOrigin string  `json:"country_of_origin,omitempty"`
	NetMassKg       float64 `json:"net_mass_kg,omitempty"`
}

// Input identifies one document to extract. Data carries the PDF bytes;
// StoragePath lets the signed-URL strategy skip the local copy.
type Input struct {
	OrgID       uuid.UUID
	DocumentID  uuid.UUID
	Filename    string
	MimeType    string
	Data        []byte
	StoragePath string
}

// ExtractionError wraps provider failures: call errors, timeouts, empty
// responses. The document it belongs to goes to error status; the batch
// keeps going.
type ExtractionError struct {
	Op  string
	Err error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed (%s): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("extraction failed (%s)", e.Op)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ParseError marks a provider response that is not valid JSON in the
// canonical shape. Treated as an extraction failure for state purposes.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable extraction payload: %s", e.Reason)
}
