package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-clerk/internal/expense"
)

const (
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
)

// MonthlySummary totals the receipts dated in one calendar month
type MonthlySummary struct {
	Month        string          `json:"month"`
	Total        decimal.Decimal `json:"total"`
	ReceiptCount int             `json:"receipt_count"`
	ItemCount    int             `json:"item_count"`
}

// Spending is what was spent on items matching a product name
type Spending struct {
	Product       string          `json:"product"`
	Month         string          `json:"month,omitempty"`
	Total         decimal.Decimal `json:"total"`
	PurchaseCount int             `json:"purchase_count"`
}

// RangeReport totals receipts dated within an inclusive range of days
type RangeReport struct {
	Start        string          `json:"start"`
	End          string          `json:"end"`
	Total        decimal.Decimal `json:"total"`
	ReceiptCount int             `json:"receipt_count"`
}

// parseMonth parses YYYY-MM, defaulting to the month of now
func parseMonth(month string, now time.Time) (time.Time, error) {
	if month == "" {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), nil
	}
	m, err := time.ParseInLocation(monthLayout, month, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("month %q must be YYYY-MM: %w", month, ErrInvalidInput)
	}
	return m, nil
}

func inMonth(t, month time.Time) bool {
	return t.Year() == month.Year() && t.Month() == month.Month()
}

// receiptTotal is the printed total, or the sum of items when no total was found
func receiptTotal(r *expense.Receipt) decimal.Decimal {
	if r.Total.IsPositive() {
		return r.Total
	}
	return r.ItemsSum()
}

func summarizeMonth(receipts []*expense.Receipt, month time.Time) MonthlySummary {
	summary := MonthlySummary{
		Month: month.Format(monthLayout),
		Total: decimal.Zero,
	}
	for _, r := range receipts {
		if !inMonth(r.Date, month) {
			continue
		}
		summary.ReceiptCount++
		summary.ItemCount += len(r.Items)
		summary.Total = summary.Total.Add(receiptTotal(r))
	}
	return summary
}

func spendingOn(receipts []*expense.Receipt, product string, month *time.Time) Spending {
	spending := Spending{
		Product: product,
		Total:   decimal.Zero,
	}
	if month != nil {
		spending.Month = month.Format(monthLayout)
	}

	needle := strings.ToLower(product)
	for _, r := range receipts {
		if month != nil && !inMonth(r.Date, *month) {
			continue
		}
		for _, item := range r.Items {
			if !strings.Contains(strings.ToLower(item.DisplayName()), needle) {
				continue
			}
			spending.PurchaseCount++
			spending.Total = spending.Total.Add(item.LineTotal())
		}
	}
	return spending
}

// summarizeRange includes every receipt dated on the start or end day
func summarizeRange(receipts []*expense.Receipt, start, end time.Time) RangeReport {
	report := RangeReport{
		Start: start.Format(dayLayout),
		End:   end.Format(dayLayout),
		Total: decimal.Zero,
	}
	until := end.AddDate(0, 0, 1)
	for _, r := range receipts {
		if r.Date.Before(start) || !r.Date.Before(until) {
			continue
		}
		report.ReceiptCount++
		report.Total = report.Total.Add(receiptTotal(r))
	}
	return report
}
