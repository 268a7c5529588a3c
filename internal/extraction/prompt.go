package extraction

import "fmt"

const systemPrompt = `You extract structured data from scanned supplier invoices and delivery notes for EU customs declarations.
Respond with a single JSON object and nothing else: no prose, no markdown, no code fences.
Omit any field you cannot read from the document. Never invent values.
All numeric fields must be JSON numbers, not strings. Country codes are 2-letter ISO codes. Dates are YYYY-MM-DD.
Report how legible the document was in confidence_avg, a number between 0 and 1.`

const resultShape = `{
  "doc_type": "invoice | delivery_note | mixed",
  "supplier_name": "...",
  "supplier_vat_id": "...",
  "supplier_country": "FR",
  "supplier_address": "...",
  "invoice_number": "...",
  "invoice_date": "YYYY-MM-DD",
  "delivery_note_number": "...",
  "currency": "EUR",
  "total_ht": 0,
  "total_ttc": 0,
  "shipping_total": 0,
  "confidence_avg": 0.95,
  "lines": [
    {
      "line_no": 1,
      "description": "...",
      "sku": "...",
      "quantity": 0,
      "unit": "...",
      "unit_price": 0,
      "line_amount": 0,
      "hs_code": "...",
      "country_of_origin": "FR",
      "net_mass_kg": 0
    }
  ]
}`

func visionUserPrompt() string {
	return fmt.Sprintf("Extract every header field and every product line from the attached document pages into this exact JSON shape:\n%s", resultShape)
}

func ocrUserPrompt(ocrText string) string {
	return fmt.Sprintf("Below is the raw OCR text of a supplier document. Extract every header field and every product line into this exact JSON shape:\n%s\n\nOCR TEXT:\n%s", resultShape, ocrText)
}
