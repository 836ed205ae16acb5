package receipt

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format stored on records.
const DateLayout = "2006-01-02"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrRecordExists is returned when appending over an existing id.
	ErrRecordExists = errors.New("record already exists")
)

// Record is a captured payment. Records are immutable once appended; a
// correction is a new record.
type Record struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Reference  string          `json:"reference"`
	Payer      string          `json:"payer"`
	Receiver   string          `json:"receiver"`
	Date       string          `json:"date"` // DateLayout or "unknown"
	Time       string          `json:"time"`
	Bank       string          `json:"bank"`
	CapturedBy string          `json:"captured_by"`
	CapturedAt time.Time       `json:"captured_at"`
	Confidence float64         `json:"confidence"`
	Missing    []string        `json:"missing,omitempty"`
	Evidence   string          `json:"evidence,omitempty"` // archived receipt image
}

// Day returns the payment date when it is known.
func (r *Record) Day() (time.Time, bool) {
	d, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Partial reports whether some details could not be extracted.
func (r *Record) Partial() bool {
	return len(r.Missing) > 0
}

// Store is the append-only record repository.
type Store interface {
	// Reserve claims an id. It returns false when the id was already
	// claimed. Reservation must be atomic across concurrent callers.
	Reserve(id string) (bool, error)

	// Append stores a new record under a reserved id. It fails with
	// ErrRecordExists rather than overwrite.
	Append(record *Record) error

	// GetRecord returns the record with the given id or ErrNotFound.
	GetRecord(id string) (*Record, error)

	// ListRecords returns every record.
	ListRecords() ([]*Record, error)
}
