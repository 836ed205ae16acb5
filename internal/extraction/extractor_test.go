package extraction

import (
	"time"

	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Extractor", func() {
	var (
		extractor *Extractor
		raw       string
		hint      string
		result    Result
	)

	BeforeEach(func() {
		extractor = NewExtractor(DefaultRegistry())
		hint = ""
	})

	JustBeforeEach(func() {
		result = extractor.Extract(Normalize(raw), hint)
	})

	When("extracting a labeled transfer receipt", func() {
		BeforeEach(func() {
			raw = "Transferred Amount: 570.00 ETB ... Reference No. (VAT Invoice No): FT25252QJQT1"
		})

		It("should find the amount", func() {
			Expect(result.OK()).To(BeTrue())
			Expect(result.Amount.Decimal.Equal(decimal.RequireFromString("570.00"))).To(BeTrue())
		})

		It("should find the currency", func() {
			Expect(result.Currency).To(Equal("ETB"))
		})

		It("should find the reference", func() {
			Expect(result.Reference).To(Equal("FT25252QJQT1"))
		})

		It("should report the fields it could not find", func() {
			Expect(result.Missing).To(Equal([]Field{FieldDate, FieldPayer, FieldReceiver}))
			Expect(result.Confidence).To(BeNumerically("~", 0.5))
		})
	})

	When("the amount has grouping separators", func() {
		BeforeEach(func() {
			raw = "Amount: ETB 1,500.00"
		})

		It("should parse the numerically equal decimal", func() {
			Expect(result.Amount.Decimal.String()).To(Equal("1500"))
			Expect(result.Amount.Decimal.StringFixed(2)).To(Equal("1500.00"))
		})
	})

	When("the first labeled amount is zero", func() {
		BeforeEach(func() {
			raw = "Transferred Amount: 0.00 ETB Total: 250.00 ETB"
		})

		It("should move on to the next pattern", func() {
			Expect(result.Amount.Decimal.StringFixed(2)).To(Equal("250.00"))
		})
	})

	When("a zero fee line comes before the paid amount", func() {
		BeforeEach(func() {
			raw = "Service fee ETB 0.00\nPaid ETB 570.00"
		})

		It("should try the pattern's later matches", func() {
			Expect(result.OK()).To(BeTrue())
			Expect(result.Amount.Decimal.StringFixed(2)).To(Equal("570.00"))
		})
	})

	When("the text has no recognizable amount", func() {
		BeforeEach(func() {
			raw = "Thank you for banking with us. Reference: FT25252QJQT1"
		})

		It("should fail the extraction", func() {
			Expect(result.OK()).To(BeFalse())
			Expect(result.Missing).To(ContainElement(FieldAmount))
		})

		It("should still extract the other fields", func() {
			Expect(result.Reference).To(Equal("FT25252QJQT1"))
		})
	})

	When("the text is empty", func() {
		BeforeEach(func() {
			raw = ""
		})

		It("should fail without panicking", func() {
			Expect(result.OK()).To(BeFalse())
			Expect(result.Confidence).To(BeZero())
			Expect(result.Currency).To(Equal(DefaultCurrency))
		})
	})

	When("the currency is written as birr", func() {
		BeforeEach(func() {
			raw = "Paid 300.00 Birr to shop"
		})

		It("should report ETB", func() {
			Expect(result.Amount.Decimal.StringFixed(2)).To(Equal("300.00"))
			Expect(result.Currency).To(Equal("ETB"))
		})
	})

	When("a bank hint is given", func() {
		BeforeEach(func() {
			raw = "Total amount debited from customers account 575.75 ETB. " +
				"ETB 570.00 debited from ABEBE KEBEDE for CHALA GEMECHU on 12-Aug-2025 with transaction ID: FT25224XYZ12"
		})

		Context("and it names the bank", func() {
			BeforeEach(func() {
				hint = "CBE"
			})

			It("should try the bank chain first", func() {
				Expect(result.Amount.Decimal.StringFixed(2)).To(Equal("570.00"))
				Expect(result.Bank).To(Equal("cbe"))
			})

			It("should extract every field", func() {
				Expect(result.Payer).To(Equal("ABEBE KEBEDE"))
				Expect(result.Receiver).To(Equal("CHALA GEMECHU"))
				Expect(result.Reference).To(Equal("FT25224XYZ12"))
				Expect(result.Date).To(Equal(time.Date(2025, time.August, 12, 0, 0, 0, 0, time.UTC)))
				Expect(result.Confidence).To(Equal(1.0))
				Expect(result.Missing).To(BeEmpty())
			})
		})

		Context("and it is empty", func() {
			It("should use the generic chain", func() {
				Expect(result.Amount.Decimal.StringFixed(2)).To(Equal("575.75"))
				Expect(result.Bank).To(BeEmpty())
			})
		})

		Context("and it names no known bank", func() {
			BeforeEach(func() {
				hint = "zzz"
			})

			It("should use the generic chain", func() {
				Expect(result.Amount.Decimal.StringFixed(2)).To(Equal("575.75"))
			})
		})
	})

	When("extracting a Dashen receipt", func() {
		BeforeEach(func() {
			hint = "Dashen Bank"
			raw = `Dashen Bank
Transaction Successful
Sender Name: ABEBE KEBEDE
Recipient Name: CHALA GEMECHU
Transaction Ref: DB2508ABC123
Total: 1,500.00 ETB
Aug 08, 2025 01:07 PM`
		})

		It("should extract the fields", func() {
			Expect(result.Amount.Decimal.StringFixed(2)).To(Equal("1500.00"))
			Expect(result.Payer).To(Equal("ABEBE KEBEDE"))
			Expect(result.Receiver).To(Equal("CHALA GEMECHU"))
			Expect(result.Reference).To(Equal("DB2508ABC123"))
			Expect(result.Date).To(Equal(time.Date(2025, time.August, 8, 0, 0, 0, 0, time.UTC)))
			Expect(result.Time).To(Equal("13:07:00"))
		})
	})

	When("extracting a telebirr receipt", func() {
		BeforeEach(func() {
			hint = "telebirr"
			raw = `telebirr
Transaction Number: CHC4ABCD12
Transaction To: CHALA GEMECHU
Payer Name: ABEBE KEBEDE
-7,008.00 (ETB)
2025/08/12 13:23:22`
		})

		It("should extract the fields", func() {
			Expect(result.Amount.Decimal.StringFixed(2)).To(Equal("7008.00"))
			Expect(result.Currency).To(Equal("ETB"))
			Expect(result.Reference).To(Equal("CHC4ABCD12"))
			Expect(result.Receiver).To(Equal("CHALA GEMECHU"))
			Expect(result.Payer).To(Equal("ABEBE KEBEDE"))
			Expect(result.Date).To(Equal(time.Date(2025, time.August, 12, 0, 0, 0, 0, time.UTC)))
			Expect(result.Time).To(Equal("13:23:22"))
		})
	})

	When("extracting a CBE payment confirmation", func() {
		BeforeEach(func() {
			hint = "cbe"
			raw = `Commercial Bank of Ethiopia
Payer ABEBE KEBEDE
Receiver CHALA GEMECHU
Payment Date & Time 8/13/2025, 2:31:00 PM
Reference No. (VAT Invoice No) FT25225ABC99
Transferred Amount 570.00 ETB`
		})

		It("should read dates month first", func() {
			Expect(result.Date).To(Equal(time.Date(2025, time.August, 13, 0, 0, 0, 0, time.UTC)))
			Expect(result.Time).To(Equal("14:31:00"))
		})

		It("should extract the parties", func() {
			Expect(result.Payer).To(Equal("ABEBE KEBEDE"))
			Expect(result.Receiver).To(Equal("CHALA GEMECHU"))
			Expect(result.Reference).To(Equal("FT25225ABC99"))
			Expect(result.Amount.Decimal.StringFixed(2)).To(Equal("570.00"))
		})
	})

	When("the extractor assumes another currency", func() {
		It("should apply it only when the text names none", func() {
			usd := NewExtractorWithCurrency(DefaultRegistry(), "usd")
			Expect(usd.Extract(Normalize("Amount 12.50"), "").Currency).To(Equal("USD"))
			Expect(usd.Extract(Normalize("Amount 12.50 Birr"), "").Currency).To(Equal("ETB"))
		})

		It("should fall back to birr when none is configured", func() {
			Expect(NewExtractorWithCurrency(DefaultRegistry(), " ").Extract(Normalize("Amount 12.50"), "").Currency).To(Equal(DefaultCurrency))
		})
	})

	It("should be deterministic", func() {
		text := Normalize("Sender: ABEBE\nAmount 250.00 ETB\nRef: FT25001AAAA1\n02/09/2025 10:15")
		first := extractor.Extract(text, "dashen")
		for range 5 {
			Expect(extractor.Extract(text, "dashen")).To(Equal(first))
		}
	})
})
