package parsing

import "github.com/zombor/receipt-clerk/internal/expense"

// Parse builds a receipt from raw OCR text using DefaultRules.
// The store is the first line of text. Id and timestamps are left for
// the caller to assign when the receipt is saved.
func Parse(rawText string) *expense.Receipt {
	return ParseWithRules(rawText, DefaultRules)
}

// ParseWithRules is Parse with a custom rejection cascade
func ParseWithRules(rawText string, rules []Rule) *expense.Receipt {
	lines := SplitLines(rawText)

	store := expense.UnknownStore
	if len(lines) > 0 {
		store = lines[0]
	}

	total, totalLine := DetectTotal(lines)

	return &expense.Receipt{
		Store:   store,
		Total:   total,
		Items:   ExtractItems(lines, totalLine, rules),
		RawText: rawText,
		Source:  expense.SourceHeuristic,
	}
}
