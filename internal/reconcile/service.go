package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zombor/veripay/internal/extraction"
	"github.com/zombor/veripay/internal/metrics"
	"github.com/zombor/veripay/internal/receipt"
)

var (
	// ErrStatementNotFound is returned when a statement does not exist.
	ErrStatementNotFound = errors.New("statement not found")
	// ErrEmptyStatement is returned when uploaded statement text has no content.
	ErrEmptyStatement = errors.New("statement text is empty")
	// ErrNoPeriod is returned when a reconciliation is requested without a date.
	ErrNoPeriod = errors.New("period start is required")
)

// Statement is uploaded statement text. Entries are always re-derived from
// the text, never stored.
type Statement struct {
	ID         string    `json:"id"` // sha256 of the normalized text
	Bank       string    `json:"bank"`
	Text       string    `json:"text"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// StatementStore persists uploaded statements.
type StatementStore interface {
	// SaveStatement stores a statement and reports whether it was new.
	SaveStatement(statement *Statement) (bool, error)
	GetStatement(id string) (*Statement, error)
	ListStatements() ([]*Statement, error)
}

// RecordLister lists captured records.
type RecordLister interface {
	ListRecords() ([]*receipt.Record, error)
}

// Summary describes an ingested statement.
type Summary struct {
	Statement *Statement `json:"statement"`
	Created   bool       `json:"created"`
	Entries   int        `json:"entries"`
	Periods   []Period   `json:"periods"`
	Undated   int        `json:"undated"`
}

// StatementReport holds the results for every period a statement covers.
type StatementReport struct {
	StatementID string                      `json:"statement_id"`
	Results     []Result                    `json:"results"`
	Undated     []extraction.StatementEntry `json:"undated"`
}

// Service ingests statements and reconciles them against captured records.
type Service struct {
	statements StatementStore
	records    RecordLister
	extractor  *extraction.Extractor
	matcher    Matcher
	timeSource receipt.TimeSource
}

type wallClock struct{}

func (wallClock) Now() time.Time {
	return time.Now().UTC()
}

// NewService creates a new Service
func NewService(statements StatementStore, records RecordLister, extractor *extraction.Extractor, matcher Matcher) *Service {
	return NewServiceWithDeps(statements, records, extractor, matcher, wallClock{})
}

// NewServiceWithDeps creates a new Service with a custom clock for testing
func NewServiceWithDeps(statements StatementStore, records RecordLister, extractor *extraction.Extractor, matcher Matcher, timeSrc receipt.TimeSource) *Service {
	return &Service{
		statements: statements,
		records:    records,
		extractor:  extractor,
		matcher:    matcher,
		timeSource: timeSrc,
	}
}

// IngestStatement stores statement text. Uploading the same text again
// returns the stored statement.
func (s *Service) IngestStatement(text, bank, uploadedBy string) (*Summary, error) {
	n := extraction.Normalize(text)
	if n.Text == "" {
		return nil, ErrEmptyStatement
	}

	hint := strings.TrimSpace(bank)
	if t, ok := s.extractor.Registry().Resolve(hint); ok {
		hint = t.ID
	} else if t, ok := s.extractor.Registry().Detect(n.Text); ok {
		hint = t.ID
	} else {
		hint = ""
	}

	sum := sha256.Sum256([]byte(strings.Join(n.Lines, "\n")))
	statement := &Statement{
		ID:         hex.EncodeToString(sum[:]),
		Bank:       hint,
		Text:       text,
		UploadedBy: uploadedBy,
		UploadedAt: s.timeSource.Now(),
	}

	created, err := s.statements.SaveStatement(statement)
	if err != nil {
		return nil, fmt.Errorf("saving statement: %w", err)
	}
	if !created {
		if statement, err = s.statements.GetStatement(statement.ID); err != nil {
			return nil, fmt.Errorf("getting statement: %w", err)
		}
	}

	entries := s.Entries(statement)
	buckets := Resolve(entries)
	if created {
		for _, e := range entries {
			metrics.StatementEntries.WithLabelValues(e.Bank).Inc()
		}
	}
	slog.Info("Ingested statement",
		"id", statement.ID,
		"bank", statement.Bank,
		"created", created,
		"entries", len(entries),
	)

	return &Summary{
		Statement: statement,
		Created:   created,
		Entries:   len(entries),
		Periods:   buckets.Periods(),
		Undated:   len(buckets.Undated()),
	}, nil
}

// Entries extracts the entries of a stored statement.
func (s *Service) Entries(statement *Statement) []extraction.StatementEntry {
	return slices.Collect(s.extractor.Statement(extraction.Normalize(statement.Text), statement.Bank))
}

// ListStatements returns all stored statements
func (s *Service) ListStatements() ([]*Statement, error) {
	statements, err := s.statements.ListStatements()
	if err != nil {
		return nil, fmt.Errorf("listing statements: %w", err)
	}
	return statements, nil
}

// ReconcilePeriod reconciles the records of the period containing start
// against every stored statement entry dated in that period.
func (s *Service) ReconcilePeriod(ctx context.Context, start time.Time) (Result, error) {
	period := PeriodOf(start)
	if period.IsUndated() {
		return Result{}, ErrNoPeriod
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	statements, err := s.statements.ListStatements()
	if err != nil {
		return Result{}, fmt.Errorf("listing statements: %w", err)
	}
	// Overlapping statements repeat rows; identical rows within one
	// statement are distinct payments.
	var entries []extraction.StatementEntry
	kept := map[string]int{}
	for _, st := range statements {
		local := map[string]int{}
		for e := range s.extractor.Statement(extraction.Normalize(st.Text), st.Bank) {
			if PeriodOf(e.Date) != period {
				continue
			}
			key := entryKey(e)
			local[key]++
			if local[key] <= kept[key] {
				continue
			}
			kept[key]++
			entries = append(entries, e)
		}
	}

	records, err := s.records.ListRecords()
	if err != nil {
		return Result{}, fmt.Errorf("listing records: %w", err)
	}
	var transactions []*receipt.Record
	for _, r := range records {
		if transactionPeriod(r) == period {
			transactions = append(transactions, r)
		}
	}

	res := s.matcher.Reconcile(transactions, entries)
	res.Period = period

	metrics.Reconciled.WithLabelValues(string(Matched)).Add(float64(len(res.Matched)))
	metrics.Reconciled.WithLabelValues(string(MatchAmbiguous)).Add(float64(len(res.Ambiguous)))
	metrics.Reconciled.WithLabelValues(string(MatchNotFound)).Add(float64(len(res.Unmatched)))
	slog.Info("Reconciled period",
		"period", period.String(),
		"transactions", len(transactions),
		"entries", len(entries),
		"matched", len(res.Matched),
		"ambiguous", len(res.Ambiguous),
		"unmatched", len(res.Unmatched),
	)
	return res, nil
}

// ReconcileStatement reconciles every period a statement covers. Periods
// are independent and run concurrently.
func (s *Service) ReconcileStatement(ctx context.Context, id string) (*StatementReport, error) {
	statement, err := s.statements.GetStatement(id)
	if err != nil {
		return nil, fmt.Errorf("getting statement: %w", err)
	}

	buckets := Resolve(s.Entries(statement))
	periods := buckets.Periods()
	results := make([]Result, len(periods))

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range periods {
		g.Go(func() error {
			res, err := s.ReconcilePeriod(ctx, p.Start)
			if err != nil {
				return fmt.Errorf("reconciling period %s: %w", p, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	undated := buckets.Undated()
	if undated == nil {
		undated = []extraction.StatementEntry{}
	}
	return &StatementReport{StatementID: statement.ID, Results: results, Undated: undated}, nil
}

// transactionPeriod uses the receipt date, falling back to the capture date
// when the receipt carried none.
func transactionPeriod(r *receipt.Record) Period {
	if d, ok := r.Day(); ok {
		return PeriodOf(d)
	}
	return PeriodOf(r.CapturedAt)
}

func entryKey(e extraction.StatementEntry) string {
	return strings.Join([]string{
		e.Amount.StringFixed(2),
		e.Currency,
		strings.ToUpper(e.Reference),
		e.Date.Format("2006-01-02"),
		e.Time,
		strings.ToUpper(e.Payer),
		strings.ToUpper(e.Receiver),
	}, "|")
}
