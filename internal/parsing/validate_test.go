package parsing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-clerk/internal/expense"
)

var _ = Describe("Validate", func() {
	var (
		receipt *expense.Receipt
		issues  []string
	)

	item := func(price string) expense.Item {
		i, err := expense.NewItem("item", decimal.RequireFromString(price))
		Expect(err).NotTo(HaveOccurred())
		return i
	}

	BeforeEach(func() {
		receipt = &expense.Receipt{
			Store: "ALDI STORES",
			Total: decimal.RequireFromString("24.05"),
		}
	})

	JustBeforeEach(func() {
		issues = Validate(receipt)
	})

	When("items sum to the total", func() {
		BeforeEach(func() {
			receipt.Items = []expense.Item{item("20.00"), item("4.05")}
		})

		It("returns no issues", func() {
			Expect(issues).To(BeEmpty())
		})
	})

	When("items are within ten cents of the total", func() {
		BeforeEach(func() {
			receipt.Items = []expense.Item{item("23.95")}
		})

		It("returns no issues", func() {
			Expect(issues).To(BeEmpty())
		})
	})

	When("items are more than ten cents off", func() {
		BeforeEach(func() {
			receipt.Items = []expense.Item{item("20.00"), item("3.80")}
		})

		It("returns one mismatch issue naming both values", func() {
			Expect(issues).To(ConsistOf("Items sum ($23.80) does not match total ($24.05)"))
		})
	})

	When("an item has a quantity above one", func() {
		BeforeEach(func() {
			i := item("12.025")
			i.Quantity = decimal.NewFromInt(2)
			receipt.Items = []expense.Item{i}
		})

		It("uses price times quantity", func() {
			Expect(issues).To(BeEmpty())
		})
	})

	When("the store is blank", func() {
		BeforeEach(func() {
			receipt.Store = ""
			receipt.Items = []expense.Item{item("24.05")}
		})

		It("reports the missing store", func() {
			Expect(issues).To(ConsistOf(IssueStoreNotDetected))
		})
	})

	When("the receipt is left untouched", func() {
		BeforeEach(func() {
			receipt.Items = []expense.Item{item("1.00")}
		})

		It("does not modify the receipt", func() {
			Expect(receipt.Total.StringFixed(2)).To(Equal("24.05"))
			Expect(receipt.Items).To(HaveLen(1))
		})
	})
})
