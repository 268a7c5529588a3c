package extraction

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var countryCodeRe = regexp.MustCompile(`^[A-Za-z]{2}$`)

// Normalize turns a raw provider payload into the canonical Result.
//
// It strips markdown fences, rejects non-JSON, coerces numerics that arrived
// as strings, upper-cases 2-letter country codes (dropping anything else),
// defaults the currency, and drops line entries without a description.
// Feeding it an already-canonical payload is a no-op.
func Normalize(raw string, defaultCurrency string) (*Result, error) {
	cleaned := StripFences(raw)
	if cleaned == "" {
		return nil, &ParseError{Reason: "empty payload", Raw: raw}
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, &ParseError{Reason: "not valid JSON: " + err.Error(), Raw: raw}
	}

	res := &Result{
		DocType:            asString(payload["doc_type"]),
		SupplierName:       asString(payload["supplier_name"]),
		SupplierVATID:      strings.ToUpper(strings.ReplaceAll(asString(payload["supplier_vat_id"]), " ", "")),
		SupplierCountry:    normalizeCountry(asString(payload["supplier_country"])),
		SupplierAddress:    asString(payload["supplier_address"]),
		InvoiceNumber:      asString(payload["invoice_number"]),
		InvoiceDate:        asString(payload["invoice_date"]),
		DeliveryNoteNumber: asString(payload["delivery_note_number"]),
		Currency:           strings.ToUpper(asString(payload["currency"])),
		TotalHT:            asFloat(payload["total_ht"]),
		TotalTTC:           asFloat(payload["total_ttc"]),
		ShippingTotal:      asFloat(payload["shipping_total"]),
		PagesCount:         int(asFloat(payload["pages_count"])),
		ConfidenceAvg:      clamp01(asFloat(payload["confidence_avg"])),
	}

	switch res.DocType {
	case "invoice", "delivery_note", "mixed", "":
	default:
		res.DocType = ""
	}

	if res.Currency == "" {
		res.Currency = strings.ToUpper(defaultCurrency)
	}

	rawLines, _ := payload["lines"].([]any)
	lines := make([]ExtractedLine, 0, len(rawLines))
	for _, rl := range rawLines {
		m, ok := rl.(map[string]any)
		if !ok {
			continue
		}
		desc := strings.TrimSpace(asString(m["description"]))
		if desc == "" {
			continue
		}
		line := ExtractedLine{
			LineNo:          int(asFloat(m["line_no"])),
			Description:     desc,
			SKU:             asString(m["sku"]),
			Quantity:        asFloat(m["quantity"]),
			Unit:            asString(m["unit"]),
			UnitPrice:       asFloat(m["unit_price"]),
			LineAmount:      asFloat(m["line_amount"]),
			HSCode:          asString(m["hs_code"]),
			CountryOfOrigin: normalizeCountry(asString(m["country_of_origin"])),
			NetMassKg:       asFloat(m["net_mass_kg"]),
		}
		if line.LineNo <= 0 {
			line.LineNo = len(lines) + 1
		}
		lines = append(lines, line)
	}
	res.Lines = lines

	return res, nil
}

// StripFences removes a wrapping markdown code fence, with or without a
// language tag, plus stray backticks.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.Index(s, "\n"); idx >= 0 {
			firstLine := strings.TrimSpace(s[:idx])
			// drop a language tag like "json"
			if len(firstLine) > 0 && len(firstLine) <= 10 && !strings.ContainsAny(firstLine, "{}[]") {
				s = s[idx+1:]
			}
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.Trim(strings.TrimSpace(s), "`")
}

func normalizeCountry(s string) string {
	s = strings.TrimSpace(s)
	if !countryCodeRe.MatchString(s) {
		return ""
	}
	return strings.ToUpper(s)
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(t), ",", ".")
		cleaned = strings.ReplaceAll(cleaned, " ", "")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
