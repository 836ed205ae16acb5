package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/veripay/internal/extraction"
	"github.com/zombor/veripay/internal/receipt"
)

// mockStatementStore is a mock implementation of StatementStore
type mockStatementStore struct {
	statements []*Statement
	saveErr    error
	listErr    error
}

func (m *mockStatementStore) SaveStatement(statement *Statement) (bool, error) {
	if m.saveErr != nil {
		return false, m.saveErr
	}
	for _, s := range m.statements {
		if s.ID == statement.ID {
			return false, nil
		}
	}
	m.statements = append(m.statements, statement)
	return true, nil
}

func (m *mockStatementStore) GetStatement(id string) (*Statement, error) {
	for _, s := range m.statements {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, ErrStatementNotFound
}

func (m *mockStatementStore) ListStatements() ([]*Statement, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.statements, nil
}

// mockRecordLister is a mock implementation of RecordLister
type mockRecordLister struct {
	records []*receipt.Record
	err     error
}

func (m *mockRecordLister) ListRecords() ([]*receipt.Record, error) {
	return m.records, m.err
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time {
	return f.now
}

const septemberStatement = `Commercial Bank of Ethiopia
Statement of Account
Date Description Reference Amount
02/09/2025 FT25245AB123 Transfer from ABEBE KEBEDE 570.00 ETB
04/09/2025 Transfer from SARA TESFAYE 250.00 ETB
09/09/2025 FT25252EF789 Transfer from HANA GIRMA 300.00 ETB
Closing Balance 12,430.00`

var _ = Describe("Service", func() {
	var (
		statements *mockStatementStore
		records    *mockRecordLister
		service    *Service
		now        time.Time
	)

	BeforeEach(func() {
		statements = &mockStatementStore{}
		now = time.Date(2025, 9, 15, 8, 0, 0, 0, time.UTC)
		records = &mockRecordLister{records: []*receipt.Record{
			record("VP-1", "570.00", "FT25245AB123", "2025-09-02"),
			record("VP-2", "250.00", extraction.Unknown, "2025-09-06"),
			record("VP-3", "300.00", extraction.Unknown, extraction.Unknown),
			record("VP-4", "75.00", extraction.Unknown, "2025-09-03"),
		}}
		records.records[2].CapturedAt = time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)
		service = NewServiceWithDeps(statements, records, extraction.NewExtractor(extraction.DefaultRegistry()),
			NewMatcher(DefaultDateTolerance), fixedClock{now: now})
	})

	Describe("IngestStatement", func() {
		It("should store the statement and summarize it", func() {
			summary, err := service.IngestStatement(septemberStatement, "", "manager")
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Created).To(BeTrue())
			Expect(summary.Entries).To(Equal(3))
			Expect(summary.Periods).To(HaveLen(2))
			Expect(summary.Undated).To(BeZero())
			Expect(summary.Statement.Bank).To(Equal("cbe"))
			Expect(summary.Statement.UploadedAt).To(Equal(now))
		})

		It("should be idempotent", func() {
			first, err := service.IngestStatement(septemberStatement, "", "manager")
			Expect(err).NotTo(HaveOccurred())

			second, err := service.IngestStatement(septemberStatement+"\n\n", "", "someone else")
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Created).To(BeFalse())
			Expect(second.Statement.ID).To(Equal(first.Statement.ID))
			Expect(second.Statement.UploadedBy).To(Equal("manager"))
			Expect(statements.statements).To(HaveLen(1))
		})

		It("should reject empty text", func() {
			_, err := service.IngestStatement(" \n ", "", "manager")
			Expect(err).To(MatchError(ErrEmptyStatement))
		})

		It("should wrap store errors", func() {
			statements.saveErr = errors.New("disk full")
			_, err := service.IngestStatement(septemberStatement, "", "manager")
			Expect(err).To(MatchError(ContainSubstring("saving statement: disk full")))
		})
	})

	Describe("ReconcilePeriod", func() {
		BeforeEach(func() {
			_, err := service.IngestStatement(septemberStatement, "cbe", "manager")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should reconcile the records dated in the period", func() {
			res, err := service.ReconcilePeriod(context.Background(), day("2025-09-03"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Period.Start).To(Equal(day("2025-09-01")))

			matched, ambiguous, unmatched := ids(res)
			Expect(matched).To(Equal([]string{"VP-1"}))
			Expect(ambiguous).To(BeEmpty())
			Expect(unmatched).To(ConsistOf("VP-2", "VP-4"))
			Expect(res.Unclaimed).To(HaveLen(1))
		})

		It("should use the capture date for undated records", func() {
			res, err := service.ReconcilePeriod(context.Background(), day("2025-09-08"))
			Expect(err).NotTo(HaveOccurred())
			_, _, unmatched := ids(res)
			Expect(unmatched).To(Equal([]string{"VP-3"}))
			Expect(res.Unclaimed).To(HaveLen(1))
		})

		It("should count rows repeated on overlapping statements once", func() {
			_, err := service.IngestStatement("02/09/2025 FT25245AB123 Transfer from ABEBE KEBEDE 570.00 ETB", "cbe", "manager")
			Expect(err).NotTo(HaveOccurred())

			res, err := service.ReconcilePeriod(context.Background(), day("2025-09-01"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Matched).To(HaveLen(1))
			Expect(res.Unclaimed).To(HaveLen(1))
		})

		It("should stop on a cancelled context", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := service.ReconcilePeriod(ctx, day("2025-09-01"))
			Expect(err).To(MatchError(context.Canceled))
		})

		It("should wrap record errors", func() {
			records.err = errors.New("db closed")
			_, err := service.ReconcilePeriod(context.Background(), day("2025-09-01"))
			Expect(err).To(MatchError(ContainSubstring("listing records: db closed")))
		})
	})

	Describe("ReconcileStatement", func() {
		It("should reconcile every period of the statement", func() {
			summary, err := service.IngestStatement(septemberStatement, "", "manager")
			Expect(err).NotTo(HaveOccurred())

			report, err := service.ReconcileStatement(context.Background(), summary.Statement.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Results).To(HaveLen(2))
			Expect(report.Results[0].Period.Start).To(Equal(day("2025-09-01")))
			Expect(report.Results[1].Period.Start).To(Equal(day("2025-09-08")))
			Expect(report.Undated).To(BeEmpty())
		})

		It("should report unknown statements", func() {
			_, err := service.ReconcileStatement(context.Background(), "missing")
			Expect(err).To(MatchError(ErrStatementNotFound))
		})
	})

	Describe("Scheduler", func() {
		It("should reconcile the previous period", func() {
			_, err := service.IngestStatement(septemberStatement, "", "manager")
			Expect(err).NotTo(HaveOccurred())

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			scheduler := NewSchedulerWithDeps(service, logger, fixedClock{now: now})
			res, err := scheduler.RunOnce(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Period.Start).To(Equal(day("2025-09-08")))
		})

		It("should reject an invalid schedule", func() {
			scheduler := NewScheduler(service, slog.New(slog.NewTextHandler(io.Discard, nil)))
			Expect(scheduler.Start("every tuesday")).To(MatchError(ContainSubstring("scheduling reconciliation")))
		})
	})
})
