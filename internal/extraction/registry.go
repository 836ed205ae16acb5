package extraction

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Registry holds the bank templates known to the extractor. The generic
// template is always present and is the fallback for every field.
type Registry struct {
	mu        sync.RWMutex
	templates []*Template
	byKey     map[string]*Template
	generic   *Template

	keywords []string
	owners   []*Template
	matcher  *ahocorasick.Matcher
}

// NewRegistry creates a registry holding only the generic template.
func NewRegistry() *Registry {
	g := Generic()
	return &Registry{
		byKey:   map[string]*Template{GenericID: &g},
		generic: &g,
	}
}

// DefaultRegistry returns a registry with every built-in bank template.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range []Template{CBE(), Dashen(), Telebirr(), Awash(), Abyssinia()} {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a bank template. Ids and aliases must be unique.
func (r *Registry) Register(t Template) error {
	if t.ID == "" {
		return fmt.Errorf("template id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := append([]string{t.ID, t.Name}, t.Aliases...)
	for _, k := range keys {
		if other, ok := r.byKey[lookupKey(k)]; ok && k != "" {
			return fmt.Errorf("template %q: key %q already used by %q", t.ID, k, other.ID)
		}
	}

	tp := &t
	r.templates = append(r.templates, tp)
	for _, k := range keys {
		if k != "" {
			r.byKey[lookupKey(k)] = tp
		}
	}
	for _, kw := range t.Keywords {
		r.keywords = append(r.keywords, strings.ToLower(kw))
		r.owners = append(r.owners, tp)
	}
	r.matcher = ahocorasick.NewStringMatcher(r.keywords)
	return nil
}

// Templates returns the registered bank templates in registration order.
func (r *Registry) Templates() []Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, *t)
	}
	return out
}

// Generic returns the fallback template.
func (r *Registry) Generic() *Template {
	return r.generic
}

// Resolve maps a free-form bank hint to a template. Exact ids, names and
// aliases win; otherwise the closest fuzzy match is used, ties going to the
// template registered first. A fuzzy match must cover at least two thirds of
// the name it matches. An empty hint or the generic id resolves to
// nothing.
func (r *Registry) Resolve(hint string) (*Template, bool) {
	key := lookupKey(hint)
	if key == "" || key == GenericID {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.byKey[key]; ok {
		return t, t != r.generic
	}

	var (
		targets []string
		owners  []*Template
	)
	for _, t := range r.templates {
		for _, k := range append([]string{t.ID, t.Name}, t.Aliases...) {
			targets = append(targets, lookupKey(k))
			owners = append(owners, t)
		}
	}
	ranks := slices.DeleteFunc(fuzzy.RankFindNormalizedFold(key, targets), func(rk fuzzy.Rank) bool {
		return rk.Distance*3 > utf8.RuneCountInString(rk.Target)
	})
	if len(ranks) == 0 {
		return nil, false
	}
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})
	return owners[ranks[0].OriginalIndex], true
}

// Detect finds the bank named in recognized text. The longest keyword found
// wins; equal lengths go to the template registered first.
func (r *Registry) Detect(text string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.keywords) == 0 {
		return nil, false
	}
	lower := strings.ToLower(text)
	hits := r.matcher.MatchThreadSafe([]byte(lower))
	if len(hits) == 0 {
		return nil, false
	}

	best := -1
	for _, i := range hits {
		if !containsWord(lower, r.keywords[i]) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		li, lb := len(r.keywords[i]), len(r.keywords[best])
		if li > lb || (li == lb && r.order(r.owners[i]) < r.order(r.owners[best])) {
			best = i
		}
	}
	if best < 0 {
		return nil, false
	}
	return r.owners[best], true
}

// containsWord reports whether kw occurs in s with no letter or digit
// directly before or after it.
func containsWord(s, kw string) bool {
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], kw)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(kw)
		before, _ := utf8.DecodeLastRuneInString(s[:start])
		after, _ := utf8.DecodeRuneInString(s[end:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		from = start + size
	}
	return false
}

func isWordRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

func (r *Registry) order(t *Template) int {
	for i, o := range r.templates {
		if o == t {
			return i
		}
	}
	return len(r.templates)
}

func lookupKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
