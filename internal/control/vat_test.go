package control

import (
	"testing"

	"github.com/debhub/debhub-backend/internal/types"
)

func TestValidVATNumber(t *testing.T) {
	valid := []string{
		"FR12345678901",
		"fr 12 345678901",
		"DE123456789",
		"NL123456789B01",
		"ATU12345678",
		"IT12345678901",
		"GR123456789",
	}
	for _, v := range valid {
		if !ValidVATNumber(v) {
			t.Fatalf("expected %q valid", v)
		}
	}

	invalid := []string{
		"",
		"FR",
		"XX123456789",
		"DE12345",
		"US123456789",
		"NL123456789",
	}
	for _, v := range invalid {
		if ValidVATNumber(v) {
			t.Fatalf("expected %q invalid", v)
		}
	}
}

func TestToleranceWithin(t *testing.T) {
	tol := DefaultTolerance
	cases := []struct {
		a, b float64
		ok   bool
	}{
		{100, 100, true},
		{100, 100.009, true},  // under the absolute floor
		{100, 100.4, true},    // under 0.5 percent
		{100, 101, false},     // over 0.5 percent
		{0.02, 0.025, true},   // small amounts use the floor
		{1000, 1006, false},
		{1000, 1004.9, true},
	}
	for _, c := range cases {
		if got := tol.within(c.a, c.b); got != c.ok {
			t.Fatalf("within(%v, %v) = %v, want %v", c.a, c.b, got, c.ok)
		}
	}
}

func docWithLines() *types.Document {
	return &types.Document{
		Currency:      "EUR",
		SupplierVATID: "DE123456789",
		TotalHT:       110,
		TotalTTC:      130.9,
		ShippingTotal: 10,
		Lines: []*types.Line{
			{LineNo: 1, Description: "A", Quantity: 2, UnitPrice: 25, LineAmount: 50},
			{LineNo: 2, Description: "B", Quantity: 5, UnitPrice: 10, LineAmount: 50},
		},
	}
}

func TestRunPassesCoherentDocument(t *testing.T) {
	s := Run(docWithLines(), DefaultTolerance)
	if !s.Passed() {
		t.Fatalf("expected pass, failures: %+v", s.Failures())
	}
}

func TestRunFlagsTotalsMismatchWithoutMutating(t *testing.T) {
	doc := docWithLines()
	doc.TotalHT = 200

	s := Run(doc, DefaultTolerance)
	if s.Passed() {
		t.Fatalf("expected blocking failure")
	}

	found := false
	for _, f := range s.Failures() {
		if f.Name == "line_totals_vs_total_ht" && f.Severity == SeverityBlocking {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected line_totals_vs_total_ht failure, got %+v", s.Failures())
	}

	// controls only observe
	if doc.TotalHT != 200 || len(doc.Lines) != 2 || doc.Lines[0].LineAmount != 50 {
		t.Fatalf("document mutated by control run")
	}
}

func TestRunBadCurrencyBlocks(t *testing.T) {
	doc := docWithLines()
	doc.Currency = "euros"
	s := Run(doc, DefaultTolerance)
	if s.Passed() {
		t.Fatalf("expected blocking currency failure")
	}
}

func TestRunBadVATIsAdvisoryOnly(t *testing.T) {
	doc := docWithLines()
	doc.SupplierVATID = "XX999"
	s := Run(doc, DefaultTolerance)
	if !s.Passed() {
		t.Fatalf("VAT format must not block, failures: %+v", s.Failures())
	}
	if len(s.Failures()) == 0 {
		t.Fatalf("expected an advisory finding")
	}
}

func TestRunFlagsLineAmountMismatch(t *testing.T) {
	doc := docWithLines()
	doc.Lines[0].LineAmount = 60
	doc.TotalHT = 120

	s := Run(doc, DefaultTolerance)
	found := false
	for _, f := range s.Failures() {
		if f.Name == "line_1_amount" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected line_1_amount finding, got %+v", s.Failures())
	}
}
