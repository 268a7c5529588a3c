package extraction

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestStripFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  ```json\n{\"a\":1}\n```  ", "{\"a\":1}"},
		{"`{\"a\":1}`", "{\"a\":1}"},
	}
	for _, c := range cases {
		if got := StripFences(c.in); got != c.want {
			t.Fatalf("StripFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeRejectsNonJSON(t *testing.T) {
	for _, raw := range []string{"", "   ", "not json at all", "```\nnope\n```"} {
		_, err := Normalize(raw, "EUR")
		if err == nil {
			t.Fatalf("expected error for %q", raw)
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("expected ParseError for %q, got %T", raw, err)
		}
	}
}

func TestNormalizeCoercesStringNumbers(t *testing.T) {
	raw := `{
		"currency": "eur",
		"total_ht": "1 234,56",
		"lines": [
			{"description": "Widget", "quantity": "2", "unit_price": "10,5", "line_amount": 21.0}
		]
	}`
	res, err := Normalize(raw, "EUR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalHT != 1234.56 {
		t.Fatalf("expected total_ht 1234.56, got %v", res.TotalHT)
	}
	if res.Currency != "EUR" {
		t.Fatalf("expected EUR, got %q", res.Currency)
	}
	if len(res.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(res.Lines))
	}
	if res.Lines[0].Quantity != 2 || res.Lines[0].UnitPrice != 10.5 {
		t.Fatalf("unexpected line numbers: %+v", res.Lines[0])
	}
}

func TestNormalizeCountryAndVAT(t *testing.T) {
	raw := `{
		"supplier_vat_id": "fr 12 345678901",
		"supplier_country": "fr",
		"lines": [
			{"description": "A", "country_of_origin": "de"},
			{"description": "B", "country_of_origin": "Germany"}
		]
	}`
	res, err := Normalize(raw, "EUR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SupplierVATID != "FR12345678901" {
		t.Fatalf("expected compacted VAT id, got %q", res.SupplierVATID)
	}
	if res.SupplierCountry != "FR" {
		t.Fatalf("expected FR, got %q", res.SupplierCountry)
	}
	if res.Lines[0].CountryOfOrigin != "DE" {
		t.Fatalf("expected DE, got %q", res.Lines[0].CountryOfOrigin)
	}
	// anything that is not a 2-letter code is dropped, not guessed
	if res.Lines[1].CountryOfOrigin != "" {
		t.Fatalf("expected empty country, got %q", res.Lines[1].CountryOfOrigin)
	}
}

func TestNormalizeDropsDescriptionlessLines(t *testing.T) {
	raw := `{
		"lines": [
			{"description": "Keep me", "line_no": 3},
			{"description": "   "},
			{"quantity": 4},
			{"description": "Also kept"}
		]
	}`
	res, err := Normalize(raw, "EUR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(res.Lines))
	}
	if res.Lines[0].LineNo != 3 {
		t.Fatalf("expected stated line_no kept, got %d", res.Lines[0].LineNo)
	}
	if res.Lines[1].LineNo != 2 {
		t.Fatalf("expected fallback line_no 2, got %d", res.Lines[1].LineNo)
	}
}

func TestNormalizeUnknownDocTypeDropped(t *testing.T) {
	res, err := Normalize(`{"doc_type": "receipt"}`, "EUR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DocType != "" {
		t.Fatalf("expected empty doc_type, got %q", res.DocType)
	}
}

func TestNormalizeIdempotentOnCanonicalPayload(t *testing.T) {
	first, err := Normalize(`{
		"doc_type": "invoice",
		"supplier_name": "ACME GmbH",
		"supplier_vat_id": "DE123456789",
		"supplier_country": "DE",
		"currency": "EUR",
		"total_ht": 100,
		"lines": [{"line_no": 1, "description": "Bolt", "quantity": 10, "unit_price": 10, "line_amount": 100, "country_of_origin": "DE"}]
	}`, "EUR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	encoded, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := Normalize(string(encoded), "EUR")
	if err != nil {
		t.Fatalf("unexpected error on round trip: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalize not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}
