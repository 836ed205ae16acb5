package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/zombor/veripay/internal/extraction"
	"github.com/zombor/veripay/internal/receipt"
)

// DefaultDateTolerance is how many days a statement date may differ from a
// receipt date when references cannot be compared.
const DefaultDateTolerance = 1

// Outcome tags a transaction's reconciliation result.
type Outcome string

const (
	Matched        Outcome = "Matched"
	MatchNotFound  Outcome = "MatchNotFound"
	MatchAmbiguous Outcome = "MatchAmbiguous"
)

// Basis names the criterion that produced a candidate.
type Basis string

const (
	ByReference Basis = "reference"
	ByDate      Basis = "date"
)

// Match pairs a transaction with the entry that settled it.
type Match struct {
	Transaction *receipt.Record           `json:"transaction"`
	Entry       extraction.StatementEntry `json:"entry"`
	Basis       Basis                     `json:"basis"`
}

// Ambiguity lists the entries a transaction could not choose between.
type Ambiguity struct {
	Transaction *receipt.Record             `json:"transaction"`
	Candidates  []extraction.StatementEntry `json:"candidates"`
	Basis       Basis                       `json:"basis"`
}

// Unmatched is a transaction with no entry, and why.
type Unmatched struct {
	Transaction *receipt.Record `json:"transaction"`
	Reason      string          `json:"reason"`
}

// Result partitions the transactions of one period. Every transaction is in
// exactly one of Matched, Ambiguous and Unmatched.
type Result struct {
	Period    Period      `json:"period"`
	Matched   []Match     `json:"matched"`
	Ambiguous []Ambiguity `json:"ambiguous"`
	Unmatched []Unmatched `json:"unmatched"`
	// Unclaimed lists entries no transaction matched or contended for.
	Unclaimed []extraction.StatementEntry `json:"unclaimed"`
}

// Outcome returns the outcome of the transaction with the given id.
func (r Result) Outcome(id string) (Outcome, bool) {
	for _, m := range r.Matched {
		if m.Transaction.ID == id {
			return Matched, true
		}
	}
	for _, a := range r.Ambiguous {
		if a.Transaction.ID == id {
			return MatchAmbiguous, true
		}
	}
	for _, u := range r.Unmatched {
		if u.Transaction.ID == id {
			return MatchNotFound, true
		}
	}
	return "", false
}

// Matcher pairs captured transactions with statement entries.
type Matcher struct {
	DateTolerance int // days
}

// NewMatcher creates a Matcher; a negative tolerance means the default.
func NewMatcher(toleranceDays int) Matcher {
	if toleranceDays < 0 {
		toleranceDays = DefaultDateTolerance
	}
	return Matcher{DateTolerance: toleranceDays}
}

type decision struct {
	outcome    Outcome
	basis      Basis
	entries    []int
	reason     string
	considered bool
}

// Reconcile compares the transactions and entries of one period. It never
// picks between equally plausible entries and does not modify its inputs.
//
// Transactions whose reference appears on the statement are settled first,
// in input order; an entry goes to the first of them and later duplicates
// find nothing left. The rest are compared by amount and date, and an entry
// wanted by more than one of them makes all of them ambiguous, as does an
// entry already contested on reference.
func (m Matcher) Reconcile(transactions []*receipt.Record, entries []extraction.StatementEntry) Result {
	consumed := make([]bool, len(entries))
	decisions := make([]decision, len(transactions))

	for i, tx := range transactions {
		var refs []int
		for j, e := range entries {
			if sameAmount(tx, e) && known(tx.Reference) && known(e.Reference) && strings.EqualFold(tx.Reference, e.Reference) {
				refs = append(refs, j)
			}
		}
		if len(refs) == 0 {
			continue
		}

		var open []int
		for _, j := range refs {
			if !consumed[j] {
				open = append(open, j)
			}
		}
		switch len(open) {
		case 0:
			decisions[i] = decision{
				outcome:    MatchNotFound,
				reason:     fmt.Sprintf("statement entry with reference %s already matched another transaction", tx.Reference),
				considered: true,
			}
		case 1:
			consumed[open[0]] = true
			decisions[i] = decision{outcome: Matched, basis: ByReference, entries: open, considered: true}
		default:
			decisions[i] = decision{outcome: MatchAmbiguous, basis: ByReference, entries: open, considered: true}
		}
	}

	// An entry left open between several same-reference transactions
	// counts as already wanted, so a date candidate on it is ambiguous too.
	wanted := make([]int, len(entries))
	for _, d := range decisions {
		if d.outcome == MatchAmbiguous {
			for _, j := range d.entries {
				wanted[j] = 1
			}
		}
	}
	candidates := make([][]int, len(transactions))
	for i, tx := range transactions {
		if decisions[i].considered {
			continue
		}
		day, ok := tx.Day()
		for j, e := range entries {
			if consumed[j] || !ok || !sameAmount(tx, e) || !m.closeDates(day, e.Date) {
				continue
			}
			if known(tx.Reference) && known(e.Reference) {
				continue
			}
			candidates[i] = append(candidates[i], j)
			wanted[j]++
		}
	}

	for i, tx := range transactions {
		if decisions[i].considered {
			continue
		}
		c := candidates[i]
		switch {
		case len(c) == 0:
			decisions[i] = decision{outcome: MatchNotFound, reason: m.notFoundReason(tx)}
		case len(c) == 1 && wanted[c[0]] == 1:
			consumed[c[0]] = true
			decisions[i] = decision{outcome: Matched, basis: ByDate, entries: c}
		default:
			decisions[i] = decision{outcome: MatchAmbiguous, basis: ByDate, entries: c}
		}
	}

	res := Result{
		Matched:   []Match{},
		Ambiguous: []Ambiguity{},
		Unmatched: []Unmatched{},
		Unclaimed: []extraction.StatementEntry{},
	}
	contended := make([]bool, len(entries))
	for i, d := range decisions {
		tx := transactions[i]
		switch d.outcome {
		case Matched:
			res.Matched = append(res.Matched, Match{Transaction: tx, Entry: entries[d.entries[0]], Basis: d.basis})
		case MatchAmbiguous:
			a := Ambiguity{Transaction: tx, Basis: d.basis}
			for _, j := range d.entries {
				a.Candidates = append(a.Candidates, entries[j])
				contended[j] = true
			}
			res.Ambiguous = append(res.Ambiguous, a)
		default:
			res.Unmatched = append(res.Unmatched, Unmatched{Transaction: tx, Reason: d.reason})
		}
	}
	for j, e := range entries {
		if !consumed[j] && !contended[j] {
			res.Unclaimed = append(res.Unclaimed, e)
		}
	}
	return res
}

func (m Matcher) closeDates(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(m.DateTolerance)*24*time.Hour
}

func (m Matcher) notFoundReason(tx *receipt.Record) string {
	if _, ok := tx.Day(); !ok && !known(tx.Reference) {
		return "transaction has neither a reference nor a date to compare"
	}
	return fmt.Sprintf("no statement entry of %s %s within %d day(s)", tx.Amount.StringFixed(2), tx.Currency, m.DateTolerance)
}

func sameAmount(tx *receipt.Record, e extraction.StatementEntry) bool {
	return tx.Amount.Equal(e.Amount) && strings.EqualFold(tx.Currency, e.Currency)
}

func known(s string) bool {
	return s != "" && !strings.EqualFold(s, extraction.Unknown)
}
