package extraction

import "github.com/shopspring/decimal"

// Extractor pulls payment fields out of normalized text using the pattern
// chains of a Registry. It holds no mutable state and is safe for
// concurrent use.
type Extractor struct {
	registry *Registry
	currency string
}

// NewExtractor creates an Extractor over the given registry.
func NewExtractor(registry *Registry) *Extractor {
	return NewExtractorWithCurrency(registry, DefaultCurrency)
}

// NewExtractorWithCurrency creates an Extractor that assumes currency when
// the text names none.
func NewExtractorWithCurrency(registry *Registry, currency string) *Extractor {
	if c, ok := parseCurrency(currency); ok {
		currency = c
	} else {
		currency = DefaultCurrency
	}
	return &Extractor{registry: registry, currency: currency}
}

// Registry returns the templates the extractor draws on.
func (e *Extractor) Registry() *Registry {
	return e.registry
}

// Extract applies the hinted bank's chains first and the generic chains
// after them. Without a resolvable hint only the generic chains run.
func (e *Extractor) Extract(n Normalized, hint string) Result {
	t, _ := e.registry.Resolve(hint)
	return e.extract(n, t)
}

func (e *Extractor) extract(n Normalized, t *Template) Result {
	g := e.registry.Generic()
	chain := func(f Field) []Pattern {
		if t == nil {
			return g.Chains[f]
		}
		out := make([]Pattern, 0, len(t.Chains[f])+len(g.Chains[f]))
		out = append(out, t.Chains[f]...)
		return append(out, g.Chains[f]...)
	}
	layouts := g.DateLayouts
	if t != nil && len(t.DateLayouts) > 0 {
		layouts = append(append([]string{}, t.DateLayouts...), g.DateLayouts...)
	}

	var res Result
	found := map[Field]bool{}

	found[FieldAmount] = first(n, chain(FieldAmount), func(s string) bool {
		d, ok := parseAmount(s)
		if ok {
			res.Amount = decimal.NewNullDecimal(d)
		}
		return ok
	})
	found[FieldCurrency] = first(n, chain(FieldCurrency), func(s string) bool {
		c, ok := parseCurrency(s)
		res.Currency = c
		return ok
	})
	found[FieldReference] = first(n, chain(FieldReference), func(s string) bool {
		r, ok := parseReference(s)
		res.Reference = r
		return ok
	})
	for _, p := range chain(FieldDate) {
		l := layouts
		if len(p.Layouts) > 0 {
			l = p.Layouts
		}
		if first(n, []Pattern{p}, func(s string) bool {
			d, ok := parseDate(s, l)
			if ok {
				res.Date = d
			}
			return ok
		}) {
			found[FieldDate] = true
			break
		}
	}
	found[FieldTime] = first(n, chain(FieldTime), func(s string) bool {
		var ok bool
		res.Time, ok = parseTime(s)
		return ok
	})
	found[FieldPayer] = first(n, chain(FieldPayer), func(s string) bool {
		var ok bool
		res.Payer, ok = parseName(s)
		return ok
	})
	found[FieldReceiver] = first(n, chain(FieldReceiver), func(s string) bool {
		var ok bool
		res.Receiver, ok = parseName(s)
		return ok
	})

	if !found[FieldCurrency] {
		res.Currency = e.currency
	}
	if t != nil {
		res.Bank = t.ID
	}

	var hits int
	for _, f := range scored {
		if found[f] {
			hits++
			continue
		}
		res.Missing = append(res.Missing, f)
	}
	res.Confidence = float64(hits) / float64(len(scored))
	return res
}

// first runs a chain until a captured value is accepted. A rejected value
// gives way to the pattern's next match before the next pattern is tried.
func first(n Normalized, chain []Pattern, accept func(string) bool) bool {
	for _, p := range chain {
		for v := range p.values(n) {
			if accept(v) {
				return true
			}
		}
	}
	return false
}
