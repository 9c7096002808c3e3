package expense

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	// UnknownStore is used when no store name could be detected
	UnknownStore = "Unknown Store"

	// DefaultUnit is the unit assigned to items without an explicit unit
	DefaultUnit = "each"
)

// Receipt sources
const (
	SourceHeuristic  = "heuristic"
	SourceStructured = "structured"
)

// Item represents one purchased line on a receipt
type Item struct {
	RawName  string          `json:"raw_name" validate:"required"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
	Unit     string          `json:"unit" validate:"required"`
	Price    decimal.Decimal `json:"price" validate:"gt=0"`

	// Populated by the enrichment stage, never by the parser
	GuessedName   string          `json:"guessed_name,omitempty"`
	Confidence    *float64        `json:"confidence,omitempty"`
	ConfirmedName string          `json:"confirmed_name,omitempty"`
	NeedsReview   bool            `json:"needs_review"`
	Category      string          `json:"category,omitempty"`
	Discount      decimal.Decimal `json:"discount"`
	SKU           string          `json:"sku,omitempty"`
}

// DisplayName returns the best known name for the item
func (i Item) DisplayName() string {
	if i.ConfirmedName != "" {
		return i.ConfirmedName
	}
	if i.GuessedName != "" {
		return i.GuessedName
	}
	return i.RawName
}

// LineTotal returns price multiplied by quantity
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(i.Quantity)
}

// Receipt is a processed receipt with its extracted items
type Receipt struct {
	ID            string          `json:"id"`
	Filename      string          `json:"filename"`
	ContentType   string          `json:"content_type"`
	Store         string          `json:"store"`
	Date          time.Time       `json:"date"`
	Items         []Item          `json:"items"`
	Total         decimal.Decimal `json:"total"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	RawText       string          `json:"raw_text"`
	Source        string          `json:"source"`
	Verified      bool            `json:"verified"`
	SyncedAt      *time.Time      `json:"synced_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ItemsSum returns the sum of price × quantity over all items
func (r *Receipt) ItemsSum() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range r.Items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// Correction maps an abbreviated item name at a store to its full product name
type Correction struct {
	RawName     string    `json:"raw_name" validate:"required"`
	Store       string    `json:"store" validate:"required"`
	ProductName string    `json:"product_name" validate:"required"`
	CreatedAt   time.Time `json:"created_at"`
}

// CorrectionKey builds the lookup key for a raw name and store
func CorrectionKey(rawName, store string) string {
	return strings.TrimSpace(rawName) + "|" + strings.TrimSpace(store)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Let numeric tags like gt=0 see decimals as float64
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// NewItem builds a validated item with the default quantity and unit
func NewItem(rawName string, price decimal.Decimal) (Item, error) {
	item := Item{
		RawName:  strings.TrimSpace(rawName),
		Quantity: decimal.NewFromInt(1),
		Unit:     DefaultUnit,
		Price:    price,
	}
	if err := ValidateItem(item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// ValidateItem checks the item invariants
func ValidateItem(item Item) error {
	if err := validate.Struct(item); err != nil {
		return fmt.Errorf("invalid item %q: %w", item.RawName, err)
	}
	return nil
}

// ValidateCorrection checks that all correction fields are present
func ValidateCorrection(c Correction) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid correction: %w", err)
	}
	return nil
}
