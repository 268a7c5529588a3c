package control

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/debhub/debhub-backend/internal/types"
)

// Severity splits checks into ones that block approval and ones that only
// warn the reviewer.
type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityAdvisory Severity = "advisory"
)

// Check is one control finding. Passed checks are kept in the summary so the
// UI can show what was verified, not only what failed.
type Check struct {
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail,omitempty"`
}

// Summary is the outcome of running all controls against one document.
type Summary struct {
	Checks []Check `json:"checks"`
}

// Passed reports whether no blocking check failed.
func (s *Summary) Passed() bool {
	for _, c := range s.Checks {
		if !c.Passed && c.Severity == SeverityBlocking {
			return false
		}
	}
	return true
}

// Failures returns every failed check, blocking or not.
func (s *Summary) Failures() []Check {
	var out []Check
	for _, c := range s.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// Tolerance bounds how far two amounts may drift before a totals check fails.
// Ratio is relative to the larger amount; AbsFloor keeps rounding noise on
// small invoices from tripping the ratio.
type Tolerance struct {
	Ratio    float64
	AbsFloor float64
}

var DefaultTolerance = Tolerance{Ratio: 0.005, AbsFloor: 0.01}

func (t Tolerance) within(a, b float64) bool {
	diff := math.Abs(a - b)
	limit := math.Max(t.Ratio*math.Max(math.Abs(a), math.Abs(b)), t.AbsFloor)
	return diff <= limit
}

// vatPatterns covers the EU member state formats. The leading country prefix
// is stripped before matching.
var vatPatterns = map[string]*regexp.Regexp{
	"AT": regexp.MustCompile(`^U\d{8}$`),
	"BE": regexp.MustCompile(`^[01]\d{9}$`),
	"BG": regexp.MustCompile(`^\d{9,10}$`),
	"CY": regexp.MustCompile(`^\d{8}[A-Z]$`),
	"CZ": regexp.MustCompile(`^\d{8,10}$`),
	"DE": regexp.MustCompile(`^\d{9}$`),
	"DK": regexp.MustCompile(`^\d{8}$`),
	"EE": regexp.MustCompile(`^\d{9}$`),
	"EL": regexp.MustCompile(`^\d{9}$`),
	"ES": regexp.MustCompile(`^[A-Z0-9]\d{7}[A-Z0-9]$`),
	"FI": regexp.MustCompile(`^\d{8}$`),
	"FR": regexp.MustCompile(`^[A-Z0-9]{2}\d{9}$`),
	"HR": regexp.MustCompile(`^\d{11}$`),
	"HU": regexp.MustCompile(`^\d{8}$`),
	"IE": regexp.MustCompile(`^\d{7}[A-W][A-I]?$|^\d[A-Z+*]\d{5}[A-W]$`),
	"IT": regexp.MustCompile(`^\d{11}$`),
	"LT": regexp.MustCompile(`^\d{9}$|^\d{12}$`),
	"LU": regexp.MustCompile(`^\d{8}$`),
	"LV": regexp.MustCompile(`^\d{11}$`),
	"MT": regexp.MustCompile(`^\d{8}$`),
	"NL": regexp.MustCompile(`^\d{9}B\d{2}$`),
	"PL": regexp.MustCompile(`^\d{10}$`),
	"PT": regexp.MustCompile(`^\d{9}$`),
	"RO": regexp.MustCompile(`^\d{2,10}$`),
	"SE": regexp.MustCompile(`^\d{12}$`),
	"SI": regexp.MustCompile(`^\d{8}$`),
	"SK": regexp.MustCompile(`^\d{10}$`),
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidVATNumber checks an EU VAT identifier, prefix included.
func ValidVATNumber(vat string) bool {
	v := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(vat), " ", ""))
	if len(v) < 4 {
		return false
	}
	prefix := v[:2]
	// Greece uses EL as its VAT prefix, not its ISO code
	if prefix == "GR" {
		prefix = "EL"
	}
	pat, ok := vatPatterns[prefix]
	if !ok {
		return false
	}
	return pat.MatchString(v[2:])
}

// Run executes every control against the document. It never mutates the
// document or its lines; callers decide what to do with the summary.
func Run(doc *types.Document, tol Tolerance) *Summary {
	s := &Summary{}

	s.Checks = append(s.Checks, checkCurrency(doc))
	s.Checks = append(s.Checks, checkSupplierVAT(doc))
	s.Checks = append(s.Checks, checkLineTotals(doc, tol))
	s.Checks = append(s.Checks, checkTTC(doc, tol))
	s.Checks = append(s.Checks, checkLineAmounts(doc, tol)...)

	return s
}

func checkCurrency(doc *types.Document) Check {
	c := Check{Name: "currency_format", Severity: SeverityBlocking, Passed: true}
	if !currencyPattern.MatchString(doc.Currency) {
		c.Passed = false
		c.Detail = fmt.Sprintf("currency %q is not a 3-letter ISO code", doc.Currency)
	}
	return c
}

func checkSupplierVAT(doc *types.Document) Check {
	c := Check{Name: "supplier_vat_format", Severity: SeverityAdvisory, Passed: true}
	if doc.SupplierVATID == "" {
		c.Passed = false
		c.Detail = "no supplier VAT number extracted"
		return c
	}
	if !ValidVATNumber(doc.SupplierVATID) {
		c.Passed = false
		c.Detail = fmt.Sprintf("VAT number %q does not match any EU member state format", doc.SupplierVATID)
	}
	return c
}

// checkLineTotals reconciles the sum of line amounts plus shipping against
// the extracted total excluding tax.
func checkLineTotals(doc *types.Document, tol Tolerance) Check {
	c := Check{Name: "line_totals_vs_total_ht", Severity: SeverityBlocking, Passed: true}
	if doc.TotalHT == 0 {
		c.Severity = SeverityAdvisory
		c.Passed = false
		c.Detail = "no total excluding tax extracted"
		return c
	}

	var sum float64
	for _, l := range doc.Lines {
		sum += l.LineAmount
	}
	sum += doc.ShippingTotal

	if !tol.within(sum, doc.TotalHT) {
		c.Passed = false
		c.Detail = fmt.Sprintf("lines plus shipping sum to %.2f but document states %.2f", sum, doc.TotalHT)
	}
	return c
}

// checkTTC verifies the tax-inclusive total is at least the tax-exclusive
// one. The exact VAT rate varies per line so only the ordering is enforced.
func checkTTC(doc *types.Document, tol Tolerance) Check {
	c := Check{Name: "total_ttc_vs_total_ht", Severity: SeverityAdvisory, Passed: true}
	if doc.TotalTTC == 0 || doc.TotalHT == 0 {
		c.Detail = "totals incomplete, ordering not checked"
		return c
	}
	if doc.TotalTTC < doc.TotalHT && !tol.within(doc.TotalTTC, doc.TotalHT) {
		c.Passed = false
		c.Detail = fmt.Sprintf("total including tax %.2f is below total excluding tax %.2f", doc.TotalTTC, doc.TotalHT)
	}
	return c
}

// checkLineAmounts verifies quantity times unit price against each stated
// line amount.
func checkLineAmounts(doc *types.Document, tol Tolerance) []Check {
	var out []Check
	for _, l := range doc.Lines {
		if l.Quantity == 0 || l.UnitPrice == 0 || l.LineAmount == 0 {
			continue
		}
		expected := l.Quantity * l.UnitPrice
		if !tol.within(expected, l.LineAmount) {
			out = append(out, Check{
				Name:     fmt.Sprintf("line_%d_amount", l.LineNo),
				Severity: SeverityAdvisory,
				Passed:   false,
				Detail:   fmt.Sprintf("%.4g x %.4f = %.2f but line states %.2f", l.Quantity, l.UnitPrice, expected, l.LineAmount),
			})
		}
	}
	return out
}
