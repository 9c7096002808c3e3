package parsing

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Candidate is a line that carries a price token, before any rule has run
type Candidate struct {
	Line  string
	Name  string
	Price decimal.Decimal
}

// Rule reports whether a candidate must be rejected as a non-item line
type Rule func(c Candidate) bool

// reservedKeywords mark totals, tax breakdowns and tender lines
var reservedKeywords = []string{
	"total", "subtotal", "amount", "change", "rounding",
	"gst", "tax", "card", "eft", "credit", "debit",
	"sales", "payment", "net", "cash",
}

var (
	datePattern            = regexp.MustCompile(`\d{1,2}\.\d{1,2}\.\d{2,4}|\d{1,2}/\d{1,2}/\d{2,4}`)
	transactionPrefix      = regexp.MustCompile(`^[*#]\d`)
	transactionTermPattern = regexp.MustCompile(`(?i)\b(REF|TRANS|TERMINAL)\b`)
)

// DefaultRules is the ordered rejection cascade applied to every candidate
var DefaultRules = []Rule{
	isNonPositivePrice,
	containsReservedKeyword,
	looksLikeDate,
	looksLikeTransactionCode,
}

func isNonPositivePrice(c Candidate) bool {
	return !c.Price.IsPositive()
}

func containsReservedKeyword(c Candidate) bool {
	lower := strings.ToLower(c.Line)
	for _, keyword := range reservedKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// looksLikeDate catches DD.MM.YY and MM/DD/YYYY style tokens that
// would otherwise read as a name followed by a price
func looksLikeDate(c Candidate) bool {
	return datePattern.MatchString(c.Line)
}

func looksLikeTransactionCode(c Candidate) bool {
	return transactionPrefix.MatchString(c.Line) || transactionTermPattern.MatchString(c.Line)
}

// rejected reports whether any rule vetoes the candidate
func rejected(c Candidate, rules []Rule) bool {
	for _, rule := range rules {
		if rule(c) {
			return true
		}
	}
	return false
}
