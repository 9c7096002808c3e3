package scanning

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// StructuredItem is one line item as guessed by a generative model
type StructuredItem struct {
	RawName  string          `json:"raw_name"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
	Price    decimal.Decimal `json:"price"`
	Discount decimal.Decimal `json:"discount"`
	SKU      looseString     `json:"sku"`
	Category string          `json:"category"`
}

// StructuredReceipt is a best-effort structured reading of receipt text
type StructuredReceipt struct {
	StoreName     string           `json:"store_name"`
	StoreLocation string           `json:"store_location"`
	Date          string           `json:"date"` // YYYY-MM-DD, empty when unknown
	Time          string           `json:"time"` // HH:MM, empty when unknown
	Items         []StructuredItem `json:"items"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	Tax           decimal.Decimal  `json:"tax"`
	DiscountTotal decimal.Decimal  `json:"discount_total"`
	Total         decimal.Decimal  `json:"total"`
	PaymentMethod string           `json:"payment_method"`
}

// TextExtractor recognizes the raw text printed on a receipt image
type TextExtractor interface {
	// ExtractText returns the OCR text of an image or PDF
	ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error)
}

// StructuredExtractor reads store, items and totals out of OCR text
type StructuredExtractor interface {
	// ExtractStructured returns the model's structured reading of rawText
	ExtractStructured(ctx context.Context, rawText string) (*StructuredReceipt, error)
}

// Scanner does both OCR and structured extraction with one provider
type Scanner interface {
	TextExtractor
	StructuredExtractor
	// Close closes the scanner and releases resources
	Close() error
}

// looseString accepts JSON strings and numbers, since models emit
// barcodes either way
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = looseString(strings.TrimSpace(str))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = looseString(num.String())
	return nil
}
