package receipt

import (
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/veripay/internal/extraction"
)

var _ = Describe("Builder", func() {
	var (
		store   *mockStore
		idGen   *mockIDGenerator
		builder *Builder
		capture Capture
		record  *Record
		err     error
	)

	BeforeEach(func() {
		store = newMockStore()
		idGen = &mockIDGenerator{ids: []string{"VP-AAAAAAAAAAAA"}}
		builder = NewBuilderWithDeps(store, 3, idGen, &mockTimeSource{now: time.Date(2025, 9, 3, 10, 0, 0, 0, time.UTC)})
		capture = Capture{
			Extraction: extraction.Result{
				Amount:     decimal.NewNullDecimal(decimal.RequireFromString("250.00")),
				Currency:   "ETB",
				Date:       time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC),
				Payer:      "ABEBE KEBEDE",
				Confidence: 4.0 / 6,
				Missing:    []extraction.Field{extraction.FieldReference, extraction.FieldReceiver},
			},
			CapturedBy: "waiter-17",
		}
	})

	JustBeforeEach(func() {
		record, err = builder.Build(capture)
	})

	It("should build the record", func() {
		Expect(err).NotTo(HaveOccurred())
		Expect(record.ID).To(Equal("VP-AAAAAAAAAAAA"))
		Expect(record.Date).To(Equal("2025-09-02"))
		Expect(record.Reference).To(Equal(extraction.Unknown))
		Expect(record.Time).To(Equal(extraction.Unknown))
		Expect(record.Bank).To(Equal(extraction.Unknown))
		Expect(record.Missing).To(Equal([]string{"reference", "receiver"}))
	})

	It("should expose the date", func() {
		day, ok := record.Day()
		Expect(ok).To(BeTrue())
		Expect(day).To(Equal(time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)))
	})

	When("the extraction has no amount", func() {
		BeforeEach(func() {
			capture.Extraction.Amount = decimal.NullDecimal{}
		})

		It("should fail without reserving an id", func() {
			Expect(err).To(MatchError(ErrNoAmountFound))
			Expect(store.reserved).To(BeEmpty())
			Expect(store.records).To(BeEmpty())
		})
	})

	When("the first ids are taken", func() {
		BeforeEach(func() {
			store.reserved["VP-AAAAAAAAAAAA"] = true
			store.reserved["VP-BBBBBBBBBBBB"] = true
			idGen.ids = []string{"VP-AAAAAAAAAAAA", "VP-BBBBBBBBBBBB", "VP-CCCCCCCCCCCC"}
		})

		It("should regenerate until one is free", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(record.ID).To(Equal("VP-CCCCCCCCCCCC"))
			Expect(idGen.calls).To(Equal(3))
		})
	})

	When("every attempt collides", func() {
		BeforeEach(func() {
			store.reserved["VP-AAAAAAAAAAAA"] = true
		})

		It("should give up after the retry bound", func() {
			Expect(err).To(MatchError(ErrIDGenerationExhausted))
			Expect(idGen.calls).To(Equal(3))
			Expect(store.records).To(BeEmpty())
		})
	})

	When("the store cannot reserve", func() {
		BeforeEach(func() {
			store.reserveErr = errors.New("database locked")
		})

		It("should wrap the error", func() {
			Expect(err).To(MatchError(ContainSubstring("reserving id: database locked")))
		})
	})

	When("the store cannot append", func() {
		BeforeEach(func() {
			store.appendErr = errors.New("disk full")
		})

		It("should wrap the error", func() {
			Expect(err).To(MatchError(ContainSubstring("appending record: disk full")))
		})
	})

	When("the date is unknown", func() {
		BeforeEach(func() {
			capture.Extraction.Date = time.Time{}
		})

		It("should store the unknown sentinel", func() {
			Expect(record.Date).To(Equal(extraction.Unknown))
			_, ok := record.Day()
			Expect(ok).To(BeFalse())
		})
	})
})

var _ = Describe("defaultIDGenerator", func() {
	It("should produce prefixed upper case hex ids", func() {
		id := (&defaultIDGenerator{}).Generate()
		Expect(id).To(MatchRegexp(`^VP-[0-9A-F]{12}$`))
	})

	It("should not collide across concurrent captures", func() {
		store := newMockStore()
		builder := NewBuilder(store, DefaultIDAttempts)
		x := extraction.Result{Amount: decimal.NewNullDecimal(decimal.NewFromInt(10)), Currency: "ETB"}

		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := builder.Build(Capture{Extraction: x, CapturedBy: "w"})
				Expect(err).NotTo(HaveOccurred())
			}()
		}
		wg.Wait()

		Expect(store.records).To(HaveLen(50))
		pattern := regexp.MustCompile(`^VP-`)
		for id := range store.records {
			Expect(pattern.MatchString(id)).To(BeTrue())
		}
	})
})
