package parsing

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-clerk/internal/expense"
)

// itemPattern captures the text before the first price token. A minus
// sign on either side of the token makes the price negative.
var itemPattern = regexp.MustCompile(`(.+?)[\s\p{Zs}]+(-)?\$?(-)?(\d+\.\d{2})(-)?`)

// candidateFor extracts the name and price from a line, if it has a price token
func candidateFor(line string) (Candidate, bool) {
	m := itemPattern.FindStringSubmatch(line)
	if m == nil {
		return Candidate{}, false
	}
	price, err := decimal.NewFromString(m[4])
	if err != nil {
		return Candidate{}, false
	}
	if m[2] != "" || m[3] != "" || m[5] != "" {
		price = price.Neg()
	}
	return Candidate{
		Line:  line,
		Name:  strings.TrimSpace(m[1]),
		Price: price,
	}, true
}

// ClassifyLine returns the item represented by line, or false when the
// line is not an item line
func ClassifyLine(line string, rules []Rule) (expense.Item, bool) {
	c, ok := candidateFor(line)
	if !ok {
		return expense.Item{}, false
	}
	if rejected(c, rules) {
		return expense.Item{}, false
	}
	item, err := expense.NewItem(c.Name, c.Price)
	if err != nil {
		return expense.Item{}, false
	}
	return item, true
}

// ExtractItems classifies every line except the one at skip (the total
// line, or -1) and returns the accepted items in document order
func ExtractItems(lines []string, skip int, rules []Rule) []expense.Item {
	items := make([]expense.Item, 0)
	for i, line := range lines {
		if i == skip {
			continue
		}
		if item, ok := ClassifyLine(line, rules); ok {
			items = append(items, item)
		}
	}
	return items
}
