package receipt

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zombor/veripay/internal/extraction"
	"github.com/zombor/veripay/internal/metrics"
	"github.com/zombor/veripay/internal/scanning"
)

var (
	// ErrNoScanner is returned for image captures when no text recognizer
	// is configured.
	ErrNoScanner = errors.New("no text recognizer configured")
	// ErrNoEvidence is returned when a record has no archived image.
	ErrNoEvidence = errors.New("record has no evidence")
)

// Options tune the capture workflow.
type Options struct {
	// MaxIDAttempts bounds id regeneration on collision.
	MaxIDAttempts int
	// DetectBank uses the bank named in the text when the caller gives no hint.
	DetectBank bool
}

// Service runs the capture workflow: recognize, extract, build, append.
type Service struct {
	store      Store
	scanner    scanning.Scanner
	storage    Storage
	extractor  *extraction.Extractor
	builder    *Builder
	detectBank bool
}

// NewService creates a new Service with default ID generator and time source
func NewService(store Store, scanner scanning.Scanner, storage Storage, extractor *extraction.Extractor, opts Options) *Service {
	return newService(store, scanner, storage, extractor, opts, NewBuilder(store, opts.MaxIDAttempts))
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store Store, scanner scanning.Scanner, storage Storage, extractor *extraction.Extractor, opts Options, idGen IDGenerator, timeSrc TimeSource) *Service {
	return newService(store, scanner, storage, extractor, opts, NewBuilderWithDeps(store, opts.MaxIDAttempts, idGen, timeSrc))
}

func newService(store Store, scanner scanning.Scanner, storage Storage, extractor *extraction.Extractor, opts Options, builder *Builder) *Service {
	return &Service{
		store:      store,
		scanner:    scanner,
		storage:    storage,
		extractor:  extractor,
		builder:    builder,
		detectBank: opts.DetectBank,
	}
}

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,5}$`)

// evidenceName names an archived image after its content so re-uploads of
// the same photo share one file.
func evidenceName(filename string, data []byte) string {
	sum := sha256.Sum256(data)
	ext := strings.ToLower(filepath.Ext(filename))
	if !extPattern.MatchString(ext) {
		ext = ""
	}
	return hex.EncodeToString(sum[:]) + ext
}

// CaptureImage recognizes the text on a receipt photo and captures it. The
// photo is archived as evidence only when a record is created.
func (s *Service) CaptureImage(filename string, data []byte, contentType, hint, capturedBy string) (*Record, error) {
	if s.scanner == nil {
		return nil, ErrNoScanner
	}

	text, err := s.scanner.ScanText(data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		if errors.Is(err, scanning.ErrNoText) {
			metrics.Captures.WithLabelValues(metrics.OutcomeNoAmount).Inc()
			return nil, ErrNoAmountFound
		}
		metrics.Captures.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	res := s.extract(text, hint)
	if !res.OK() {
		metrics.Captures.WithLabelValues(metrics.OutcomeNoAmount).Inc()
		return nil, ErrNoAmountFound
	}

	saved, err := s.storage.Save(evidenceName(filename, data), data)
	if err != nil {
		metrics.Captures.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("saving evidence: %w", err)
	}

	return s.build(Capture{Extraction: res, CapturedBy: capturedBy, Evidence: saved})
}

// CaptureText captures a receipt from already recognized text.
func (s *Service) CaptureText(text, hint, capturedBy string) (*Record, error) {
	return s.build(Capture{Extraction: s.extract(text, hint), CapturedBy: capturedBy})
}

func (s *Service) extract(text, hint string) extraction.Result {
	n := extraction.Normalize(text)
	if strings.TrimSpace(hint) == "" && s.detectBank {
		if t, ok := s.extractor.Registry().Detect(n.Text); ok {
			slog.Debug("Detected bank", "bank", t.ID)
			hint = t.ID
		}
	}
	return s.extractor.Extract(n, hint)
}

func (s *Service) build(c Capture) (*Record, error) {
	record, err := s.builder.Build(c)
	switch {
	case errors.Is(err, ErrNoAmountFound):
		metrics.Captures.WithLabelValues(metrics.OutcomeNoAmount).Inc()
		return nil, err
	case err != nil:
		metrics.Captures.WithLabelValues(metrics.OutcomeError).Inc()
		slog.Error("Failed to build record", "captured_by", c.CapturedBy, "error", err)
		return nil, err
	}

	outcome := metrics.OutcomeRecorded
	if record.Partial() {
		outcome = metrics.OutcomePartial
	}
	metrics.Captures.WithLabelValues(outcome).Inc()
	slog.Info("Captured record",
		"id", record.ID,
		"amount", record.Amount.StringFixed(2),
		"bank", record.Bank,
		"confidence", record.Confidence,
	)
	return record, nil
}

// GetRecord retrieves a record by ID
func (s *Service) GetRecord(id string) (*Record, error) {
	record, err := s.store.GetRecord(id)
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return record, nil
}

// ListRecords returns all records
func (s *Service) ListRecords() ([]*Record, error) {
	records, err := s.store.ListRecords()
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

// GetEvidence returns the archived image of a record
func (s *Service) GetEvidence(id string) ([]byte, error) {
	record, err := s.GetRecord(id)
	if err != nil {
		return nil, err
	}
	if record.Evidence == "" {
		return nil, ErrNoEvidence
	}

	data, err := s.storage.Get(record.Evidence)
	if err != nil {
		return nil, fmt.Errorf("getting evidence: %w", err)
	}
	return data, nil
}
