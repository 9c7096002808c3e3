package parsing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-clerk/internal/expense"
)

// SumTolerance absorbs rounding noise between the item sum and the total
var SumTolerance = decimal.RequireFromString("0.10")

// Issue messages for missing fields
const (
	IssueStoreNotDetected = "Store not detected"
	IssueNoItemsDetected  = "No items detected"
)

// Validate returns advisory issues for a parsed receipt. It never
// modifies the receipt. r must not be nil.
func Validate(r *expense.Receipt) []string {
	var issues []string

	sum := r.ItemsSum()
	if sum.Sub(r.Total).Abs().GreaterThan(SumTolerance) {
		issues = append(issues, fmt.Sprintf("Items sum ($%s) does not match total ($%s)",
			sum.StringFixed(2), r.Total.StringFixed(2)))
	}

	if r.Store == "" || r.Store == expense.UnknownStore {
		issues = append(issues, IssueStoreNotDetected)
	}

	if len(r.Items) == 0 {
		issues = append(issues, IssueNoItemsDetected)
	}

	return issues
}
