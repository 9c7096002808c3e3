package parsing

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var amountPattern = regexp.MustCompile(`\$?(\d+\.\d{2})`)

// isTotalLine reports whether the line names the grand total. Subtotal
// lines fail because "total" is neither a prefix nor a separate word.
func isTotalLine(line string) bool {
	lower := strings.ToLower(line)
	return strings.HasPrefix(lower, "total") ||
		strings.HasSuffix(lower, "total") ||
		strings.Contains(lower, " total ")
}

// DetectTotal returns the amount on the first total line and its index.
// The rightmost amount on the line is used. When no total line carries
// an amount the total is zero and the index is -1.
func DetectTotal(lines []string) (decimal.Decimal, int) {
	for i, line := range lines {
		if !isTotalLine(line) {
			continue
		}
		matches := amountPattern.FindAllStringSubmatch(line, -1)
		if len(matches) == 0 {
			continue
		}
		total, err := decimal.NewFromString(matches[len(matches)-1][1])
		if err != nil {
			continue
		}
		return total, i
	}
	return decimal.Zero, -1
}
