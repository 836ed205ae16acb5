package extraction

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Unknown marks a field that could not be extracted.
const Unknown = "unknown"

// DefaultCurrency is used when the text names no currency.
const DefaultCurrency = "ETB"

// Field names an extractable payment fact.
type Field string

const (
	FieldAmount    Field = "amount"
	FieldCurrency  Field = "currency"
	FieldReference Field = "reference"
	FieldDate      Field = "date"
	FieldTime      Field = "time"
	FieldPayer     Field = "payer"
	FieldReceiver  Field = "receiver"
)

// scored are the fields confidence is computed from. Time is extracted but
// only counts through the date it belongs to.
var scored = []Field{FieldAmount, FieldCurrency, FieldReference, FieldDate, FieldPayer, FieldReceiver}

// Result is the outcome of extracting one receipt or statement block.
type Result struct {
	Amount     decimal.NullDecimal
	Currency   string
	Reference  string
	Date       time.Time // zero when absent
	Time       string    // "15:04:05", empty when absent
	Payer      string
	Receiver   string
	Bank       string // template id of the bank hint, empty for the generic chain
	Confidence float64
	Missing    []Field
}

// OK reports whether a usable amount was found. A result without one is an
// extraction failure regardless of the other fields.
func (r Result) OK() bool {
	return r.Amount.Valid
}

const maxNameLength = 80

// parseAmount strips grouping separators and returns a positive amount
// rounded to two places.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.NewReplacer(",", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d.Round(2), true
}

func parseCurrency(s string) (string, bool) {
	switch c := strings.ToUpper(strings.TrimSpace(s)); c {
	case "":
		return "", false
	case "BIRR", "BR":
		return "ETB", true
	default:
		return c, true
	}
}

// parseReference accepts ids of at least six characters that carry a digit.
func parseReference(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 6 || !strings.ContainsFunc(s, unicode.IsDigit) {
		return "", false
	}
	return s, true
}

func parseName(s string) (string, bool) {
	s = strings.Trim(strings.TrimSpace(s), ".,:;-")
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > maxNameLength || !strings.ContainsFunc(s, unicode.IsLetter) {
		return "", false
	}
	if strings.EqualFold(s, Unknown) {
		return "", false
	}
	return s, true
}

var timeLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04:05 PM",
	"3:04 PM",
	"3:04:05PM",
	"3:04PM",
}

func parseTime(s string) (string, bool) {
	s = strings.ToUpper(strings.Join(strings.Fields(s), " "))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), true
		}
	}
	return "", false
}

// parseDate tries each layout in order and keeps dates from this century.
func parseDate(s string, layouts []string) (time.Time, bool) {
	s = strings.Join(strings.Fields(strings.NewReplacer(",", " ", ".", "").Replace(s)), " ")
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() < 2000 || t.Year() > 2099 {
			continue
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}
