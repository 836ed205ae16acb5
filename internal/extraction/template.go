package extraction

import (
	"iter"
	"regexp"
)

// Pattern is one candidate in a field's chain. The first capture group (or
// the whole match when there is none) is the field value.
type Pattern struct {
	Expr *regexp.Regexp
	// Lines matches each line on its own instead of the flattened text.
	Lines bool
	// Layouts parse a captured date instead of the template's layouts.
	Layouts []string
}

// text compiles a case-insensitive pattern over the flattened text.
func text(expr string) Pattern {
	return Pattern{Expr: regexp.MustCompile(`(?i)` + expr)}
}

// line compiles a case-insensitive pattern applied line by line.
func line(expr string) Pattern {
	return Pattern{Expr: regexp.MustCompile(`(?i)` + expr), Lines: true}
}

// dated fixes the layouts a date pattern's capture is parsed with.
func dated(p Pattern, layouts ...string) Pattern {
	p.Layouts = layouts
	return p
}

// values yields every captured value in text order.
func (p Pattern) values(n Normalized) iter.Seq[string] {
	return func(yield func(string) bool) {
		if !p.Lines {
			p.captures(n.Text, yield)
			return
		}
		for _, l := range n.Lines {
			if !p.captures(l, yield) {
				return
			}
		}
	}
}

func (p Pattern) captures(s string, yield func(string) bool) bool {
	for _, m := range p.Expr.FindAllStringSubmatch(s, -1) {
		v := m[0]
		if len(m) > 1 {
			v = m[1]
		}
		if !yield(v) {
			return false
		}
	}
	return true
}

// SegmentRule splits statement text into entry blocks. A blank line or a
// Header line always closes the current block.
type SegmentRule struct {
	// EntryStart opens a new block when a line matches it.
	EntryStart *regexp.Regexp
	// Header matches header and footer lines, which are dropped.
	Header *regexp.Regexp
	// LinesPerEntry closes a block after this many lines when positive.
	LinesPerEntry int
}

func (r SegmentRule) zero() bool {
	return r.EntryStart == nil && r.Header == nil && r.LinesPerEntry <= 0
}

// Template holds the pattern chains of one bank layout.
type Template struct {
	ID      string
	Name    string
	Aliases []string
	// Keywords identify the bank in recognized text.
	Keywords []string
	// Chains lists candidate patterns per field, most specific first.
	Chains map[Field][]Pattern
	// DateLayouts are tried before the generic layouts.
	DateLayouts []string
	Segment     SegmentRule
}
