package extraction

import (
	"iter"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StatementEntry is one transaction read from a bank statement. Entries are
// reference data and carry no id of their own.
type StatementEntry struct {
	Seq        int // 1-based position among the entries of the statement
	Amount     decimal.Decimal
	Currency   string
	Reference  string // Unknown when absent
	Payer      string // Unknown when absent
	Receiver   string // Unknown when absent
	Date       time.Time
	Time       string
	Bank       string
	Confidence float64
	Source     string
}

// Dated reports whether the entry carries a parseable date.
func (s StatementEntry) Dated() bool {
	return !s.Date.IsZero()
}

// Statement segments statement text into entry blocks and extracts each one.
// Blocks without an amount are dropped. The sequence can be ranged over any
// number of times and stopping early has no side effects.
func (e *Extractor) Statement(n Normalized, hint string) iter.Seq[StatementEntry] {
	t, _ := e.registry.Resolve(hint)
	rule := e.registry.Generic().Segment
	if t != nil && !t.Segment.zero() {
		rule = t.Segment
	}

	return func(yield func(StatementEntry) bool) {
		var (
			cur []string
			seq int
		)
		flush := func() bool {
			if len(cur) == 0 {
				return true
			}
			lines := cur
			cur = nil
			res := e.extract(block(lines), t)
			if !res.OK() {
				return true
			}
			seq++
			return yield(entryFrom(seq, res, lines))
		}

		for _, l := range n.Lines {
			switch {
			case l == "":
				if !flush() {
					return
				}
				continue
			case rule.Header != nil && rule.Header.MatchString(l):
				if !flush() {
					return
				}
				continue
			case rule.EntryStart != nil && rule.EntryStart.MatchString(l):
				if !flush() {
					return
				}
			}
			cur = append(cur, l)
			if rule.LinesPerEntry > 0 && len(cur) >= rule.LinesPerEntry {
				if !flush() {
					return
				}
			}
		}
		flush()
	}
}

func entryFrom(seq int, res Result, lines []string) StatementEntry {
	return StatementEntry{
		Seq:        seq,
		Amount:     res.Amount.Decimal,
		Currency:   res.Currency,
		Reference:  orUnknown(res.Reference),
		Payer:      orUnknown(res.Payer),
		Receiver:   orUnknown(res.Receiver),
		Date:       res.Date,
		Time:       res.Time,
		Bank:       orUnknown(res.Bank),
		Confidence: res.Confidence,
		Source:     strings.Join(lines, "\n"),
	}
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
