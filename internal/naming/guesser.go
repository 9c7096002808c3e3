// Package naming fills in readable product names for receipt items.
package naming

import (
	"log/slog"

	"github.com/zombor/receipt-clerk/internal/expense"
)

// DefaultConfidenceThreshold is the confidence below which an item needs review
const DefaultConfidenceThreshold = 0.7

// Corrections looks up human supplied product names
type Corrections interface {
	// LookupCorrection returns the product name for a raw name at a store
	LookupCorrection(rawName, store string) (string, bool, error)
}

// Guess is a product name with the confidence that it is right
type Guess struct {
	ProductName string  `json:"product_name"`
	Confidence  float64 `json:"confidence"`
}

// Guesser resolves raw item names, consulting corrections first
type Guesser struct {
	corrections Corrections
	threshold   float64
}

// NewGuesser creates a Guesser. A threshold outside (0, 1] uses the default.
func NewGuesser(corrections Corrections, threshold float64) *Guesser {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultConfidenceThreshold
	}
	return &Guesser{
		corrections: corrections,
		threshold:   threshold,
	}
}

// Guess returns the corrected name when one is known, otherwise the raw
// name with zero confidence
func (g *Guesser) Guess(rawName, store string) Guess {
	if g.corrections != nil {
		name, ok, err := g.corrections.LookupCorrection(rawName, store)
		if err != nil {
			slog.Warn("Failed to look up correction", "raw_name", rawName, "store", store, "error", err)
		} else if ok {
			return Guess{ProductName: name, Confidence: 1.0}
		}
	}
	return Guess{ProductName: rawName, Confidence: 0}
}

// Enrich sets guessed names on every item of the receipt and flags
// low-confidence items for review. Confirmed names are left alone.
func (g *Guesser) Enrich(r *expense.Receipt) {
	for i := range r.Items {
		item := &r.Items[i]
		if item.ConfirmedName != "" {
			continue
		}
		guess := g.Guess(item.RawName, r.Store)
		confidence := guess.Confidence
		item.GuessedName = guess.ProductName
		item.Confidence = &confidence
		item.NeedsReview = confidence < g.threshold
	}
}
