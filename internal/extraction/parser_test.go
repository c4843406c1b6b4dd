package extraction

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

const minimarketReceipt = `JL. MERDEKA NO 12
12/08/2024 14:35
INDOMIE GORENG 3.500
SUSU ULTRA 2x 12.500,00
TEH BOTOL SOSRO 4.000
TEH BOTOL SOSRO 4.000
AQUA 600ML 3.000
TOTAL 35.500
TUNAI 50.000
KEMBALI 14.500
TERIMA KASIH`

var _ = Describe("ParseReceiptText", func() {
	var (
		text  string
		items []Item
	)

	JustBeforeEach(func() {
		items = ParseReceiptText(text)
	})

	When("parsing a typical minimarket receipt", func() {
		BeforeEach(func() {
			text = minimarketReceipt
		})

		It("should return the purchased items in receipt order", func() {
			names := make([]string, 0, len(items))
			for _, item := range items {
				names = append(names, item.Name)
			}
			Expect(names).To(Equal([]string{"INDOMIE GORENG", "SUSU ULTRA", "TEH BOTOL SOSRO", "AQUA 600ML"}))
		})

		It("should keep quantities and prices", func() {
			Expect(items[1].Quantity).To(Equal(2))
			Expect(items[1].UnitPrice.Equal(decimal.NewFromInt(12500))).To(BeTrue())
			Expect(items[3].UnitPrice.Equal(decimal.NewFromInt(3000))).To(BeTrue())
		})

		It("should score every item above the threshold", func() {
			for _, item := range items {
				Expect(item.Confidence).To(BeNumerically(">", ConfidenceThreshold))
			}
		})
	})

	When("a line holds nothing but a price", func() {
		BeforeEach(func() {
			text = "12.500,00\nAQUA 600ML 3.000"
		})

		It("should skip it", func() {
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("AQUA 600ML"))
		})
	})

	When("every line is metadata", func() {
		BeforeEach(func() {
			text = "TOTAL 45.000,00\nTUNAI 50.000\n12/08/2024"
		})

		It("should return no items", func() {
			Expect(items).NotTo(BeNil())
			Expect(items).To(BeEmpty())
		})
	})

	When("the text is empty", func() {
		BeforeEach(func() {
			text = ""
		})

		It("should return no items", func() {
			Expect(items).NotTo(BeNil())
			Expect(items).To(BeEmpty())
		})
	})

	DescribeTable("item invariants",
		func(text string) {
			for _, item := range ParseReceiptText(text) {
				Expect(item.Confidence).To(BeNumerically(">=", 0))
				Expect(item.Confidence).To(BeNumerically("<=", 1))
				Expect(item.Quantity).To(BeNumerically(">=", 1))
				Expect(item.UnitPrice.IsNegative()).To(BeFalse())
			}
		},
		Entry("minimarket receipt", minimarketReceipt),
		Entry("zero quantity marker", "0X GULA PASIR 12.000"),
		Entry("suspicious item names", "STRUK BELANJA\nBONUS KASIR 1.000\nROTI 3X"),
		Entry("mixed separators", "GULA 12,500.00\nBERAS 1.250.000\nMINYAK 2 PCS 30.000"),
	)
})

var _ = Describe("OverallConfidence", func() {
	It("should be zero for no items", func() {
		Expect(OverallConfidence(nil)).To(BeZero())
	})

	It("should be the mean item confidence", func() {
		items := []Item{{Confidence: 0.4}, {Confidence: 0.8}}
		Expect(OverallConfidence(items)).To(BeNumerically("~", 0.6, 1e-9))
	})
})
