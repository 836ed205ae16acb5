package receipt

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/veripay/internal/extraction"
)

var (
	// ErrNoAmountFound means the text held no usable amount. Nothing is
	// stored; the caller should ask for a better photo.
	ErrNoAmountFound = errors.New("no amount found")
	// ErrIDGenerationExhausted means every generated id was already taken.
	ErrIDGenerationExhausted = errors.New("id generation exhausted")
)

// DefaultIDAttempts bounds id regeneration on collision.
const DefaultIDAttempts = 5

// IDPrefix starts every record id.
const IDPrefix = "VP-"

// IDGenerator generates candidate record ids
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator takes the suffix from a random UUID
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return IDPrefix + strings.ToUpper(hex[:12])
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now().UTC()
}

// Capture is an extraction plus the metadata of who captured it.
type Capture struct {
	Extraction extraction.Result
	CapturedBy string
	Evidence   string
}

// Builder turns extractions into appended records. It holds no state of
// its own; id uniqueness comes from the store's reservations.
type Builder struct {
	store       Store
	idGenerator IDGenerator
	timeSource  TimeSource
	maxAttempts int
}

// NewBuilder creates a Builder with random ids and the wall clock
func NewBuilder(store Store, maxAttempts int) *Builder {
	return NewBuilderWithDeps(store, maxAttempts, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewBuilderWithDeps creates a Builder with custom dependencies for testing
func NewBuilderWithDeps(store Store, maxAttempts int, idGen IDGenerator, timeSrc TimeSource) *Builder {
	if maxAttempts <= 0 {
		maxAttempts = DefaultIDAttempts
	}
	return &Builder{
		store:       store,
		idGenerator: idGen,
		timeSource:  timeSrc,
		maxAttempts: maxAttempts,
	}
}

// Build validates the capture, reserves an id and appends the record.
func (b *Builder) Build(c Capture) (*Record, error) {
	x := c.Extraction
	if !x.OK() {
		return nil, ErrNoAmountFound
	}

	id, err := b.reserveID()
	if err != nil {
		return nil, err
	}

	date := extraction.Unknown
	if !x.Date.IsZero() {
		date = x.Date.Format(DateLayout)
	}
	missing := make([]string, 0, len(x.Missing))
	for _, f := range x.Missing {
		missing = append(missing, string(f))
	}

	record := &Record{
		ID:         id,
		Amount:     x.Amount.Decimal,
		Currency:   x.Currency,
		Reference:  orUnknown(x.Reference),
		Payer:      orUnknown(x.Payer),
		Receiver:   orUnknown(x.Receiver),
		Date:       date,
		Time:       orUnknown(x.Time),
		Bank:       orUnknown(x.Bank),
		CapturedBy: orUnknown(c.CapturedBy),
		CapturedAt: b.timeSource.Now(),
		Confidence: x.Confidence,
		Missing:    missing,
		Evidence:   c.Evidence,
	}

	if err := b.store.Append(record); err != nil {
		return nil, fmt.Errorf("appending record: %w", err)
	}
	return record, nil
}

func (b *Builder) reserveID() (string, error) {
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		id := b.idGenerator.Generate()
		ok, err := b.store.Reserve(id)
		if err != nil {
			return "", fmt.Errorf("reserving id: %w", err)
		}
		if ok {
			return id, nil
		}
		slog.Warn("Record id collision", "id", id, "attempt", attempt)
	}
	return "", ErrIDGenerationExhausted
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return extraction.Unknown
	}
	return s
}
