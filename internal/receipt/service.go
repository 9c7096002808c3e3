package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-clerk/internal/expense"
	"github.com/zombor/receipt-clerk/internal/naming"
	"github.com/zombor/receipt-clerk/internal/parsing"
	"github.com/zombor/receipt-clerk/internal/scanning"
)

// ErrInvalidInput is returned for malformed caller input
var ErrInvalidInput = errors.New("invalid input")

// ErrSyncDisabled is returned by SyncVerified when no syncer is configured
var ErrSyncDisabled = errors.New("spreadsheet sync is not configured")

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// Syncer appends receipts to an external spreadsheet
type Syncer interface {
	// SyncReceipts appends the receipts and returns how many were written
	SyncReceipts(ctx context.Context, receipts []*expense.Receipt) (int, error)
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles receipt operations
type Service struct {
	db          DB
	ocr         scanning.TextExtractor
	extractor   scanning.StructuredExtractor
	storage     Storage
	guesser     *naming.Guesser
	syncer      Syncer
	idGenerator IDGenerator
	timeSource  TimeSource
}

// Option configures a Service
type Option func(*Service)

// WithStructuredExtractor enables the structured extraction path
func WithStructuredExtractor(e scanning.StructuredExtractor) Option {
	return func(s *Service) { s.extractor = e }
}

// WithGuesser replaces the default corrections-backed guesser
func WithGuesser(g *naming.Guesser) Option {
	return func(s *Service) { s.guesser = g }
}

// WithSyncer enables spreadsheet sync
func WithSyncer(syncer Syncer) Option {
	return func(s *Service) { s.syncer = syncer }
}

// WithIDGenerator replaces the uuid generator
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) { s.idGenerator = g }
}

// WithTimeSource replaces the wall clock
func WithTimeSource(t TimeSource) Option {
	return func(s *Service) { s.timeSource = t }
}

// NewService creates a new Service. Without options it uses the
// heuristic parser only, uuid ids and the wall clock.
func NewService(db DB, ocr scanning.TextExtractor, storage Storage, opts ...Option) *Service {
	s := &Service{
		db:          db,
		ocr:         ocr,
		storage:     storage,
		guesser:     naming.NewGuesser(db, naming.DefaultConfidenceThreshold),
		idGenerator: &uuidGenerator{},
		timeSource:  &defaultTimeSource{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessReceipt stores the image, extracts its text, parses it into a
// receipt and saves it. The returned issues are advisory.
func (s *Service) ProcessReceipt(ctx context.Context, filename string, data []byte, contentType string) (*expense.Receipt, []string, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, nil, fmt.Errorf("saving file: %w", err)
	}

	rawText, err := s.ocr.ExtractText(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to extract receipt text",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.removeFile(savedPath)
		return nil, nil, fmt.Errorf("extracting text: %w", err)
	}

	receipt := s.parse(ctx, rawText, now)
	receipt.ID = id
	receipt.Filename = savedPath
	receipt.ContentType = contentType
	receipt.CreatedAt = now
	receipt.UpdatedAt = now

	s.guesser.Enrich(receipt)
	issues := parsing.Validate(receipt)

	if err := s.db.SaveReceipt(receipt); err != nil {
		s.removeFile(savedPath)
		return nil, nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	slog.Info("Processed receipt",
		"id", receipt.ID,
		"store", receipt.Store,
		"source", receipt.Source,
		"items", len(receipt.Items),
		"total", receipt.Total.StringFixed(2),
		"issues", len(issues),
	)

	return receipt, issues, nil
}

// parse prefers a well-formed structured reading and falls back to the
// heuristic parser
func (s *Service) parse(ctx context.Context, rawText string, now time.Time) *expense.Receipt {
	if s.extractor != nil {
		candidate, err := s.extractor.ExtractStructured(ctx, rawText)
		if err != nil {
			slog.Warn("Structured extraction failed, using heuristic parser", "error", err)
		} else if receipt, ok := receiptFromCandidate(candidate, rawText, now); ok {
			return receipt
		} else {
			slog.Warn("Structured extraction returned no usable items, using heuristic parser")
		}
	}

	receipt := parsing.Parse(rawText)
	receipt.Date = now
	return receipt
}

// receiptFromCandidate converts a structured reading into a receipt. It
// reports false when no item survives validation.
func receiptFromCandidate(c *scanning.StructuredReceipt, rawText string, now time.Time) (*expense.Receipt, bool) {
	if c == nil {
		return nil, false
	}

	items := make([]expense.Item, 0, len(c.Items))
	for _, ci := range c.Items {
		item, err := expense.NewItem(ci.RawName, ci.Price)
		if err != nil {
			continue
		}
		if ci.Quantity.IsPositive() {
			item.Quantity = ci.Quantity
		}
		if unit := strings.TrimSpace(ci.Unit); unit != "" {
			item.Unit = unit
		}
		item.Discount = ci.Discount
		item.SKU = string(ci.SKU)
		item.Category = strings.TrimSpace(ci.Category)
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, false
	}

	store := strings.TrimSpace(c.StoreName)
	if store == "" {
		store = expense.UnknownStore
	}

	return &expense.Receipt{
		Store:         store,
		Date:          candidateDate(c, now),
		Items:         items,
		Total:         c.Total,
		Subtotal:      c.Subtotal,
		Tax:           c.Tax,
		DiscountTotal: c.DiscountTotal,
		PaymentMethod: c.PaymentMethod,
		RawText:       rawText,
		Source:        expense.SourceStructured,
	}, true
}

func candidateDate(c *scanning.StructuredReceipt, now time.Time) time.Time {
	if c.Date == "" {
		return now
	}
	clock := c.Time
	if clock == "" {
		clock = "00:00"
	}
	d, err := time.ParseInLocation("2006-01-02 15:04", c.Date+" "+clock, now.Location())
	if err != nil {
		return now
	}
	return d
}

func (s *Service) removeFile(path string) {
	if err := s.storage.Delete(path); err != nil {
		slog.Warn("Failed to delete file", "filename", path, "error", err)
	}
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*expense.Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts, newest first
func (s *Service) ListReceipts() ([]*expense.Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	sort.SliceStable(receipts, func(i, j int) bool {
		return receipts[i].CreatedAt.After(receipts[j].CreatedAt)
	})
	return receipts, nil
}

// DeleteReceipt removes a receipt and its file
func (s *Service) DeleteReceipt(id string) error {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	// A missing file must not keep the record around
	s.removeFile(receipt.Filename)

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the original image for a receipt
func (s *Service) GetReceiptFile(id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(receipt.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}

	return data, receipt.ContentType, nil
}

// ValidateReceipt re-runs validation for a stored receipt
func (s *Service) ValidateReceipt(id string) ([]string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return parsing.Validate(receipt), nil
}

// VerifyReceipt marks a receipt as checked by a human
func (s *Service) VerifyReceipt(id string) (*expense.Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}

	receipt.Verified = true
	receipt.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}
	return receipt, nil
}

// ConfirmItemName sets the confirmed name of one item and remembers it as
// a correction for the receipt's store
func (s *Service) ConfirmItemName(id string, index int, name string) (*expense.Receipt, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("item name is required: %w", ErrInvalidInput)
	}

	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	if index < 0 || index >= len(receipt.Items) {
		return nil, fmt.Errorf("item %d out of range: %w", index, ErrInvalidInput)
	}

	// The correction goes first so a failed write leaves the item under review.
	item := &receipt.Items[index]
	if _, err := s.AddCorrection(item.RawName, receipt.Store, name); err != nil {
		return nil, err
	}

	item.ConfirmedName = name
	item.NeedsReview = false
	receipt.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}
	return receipt, nil
}

// AddCorrection stores a product name for a raw name at a store
func (s *Service) AddCorrection(rawName, store, productName string) (*expense.Correction, error) {
	correction := &expense.Correction{
		RawName:     strings.TrimSpace(rawName),
		Store:       strings.TrimSpace(store),
		ProductName: strings.TrimSpace(productName),
		CreatedAt:   s.timeSource.Now(),
	}
	if err := expense.ValidateCorrection(*correction); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.db.SaveCorrection(correction); err != nil {
		return nil, fmt.Errorf("saving correction: %w", err)
	}
	return correction, nil
}

// ListCorrections returns all stored corrections
func (s *Service) ListCorrections() ([]*expense.Correction, error) {
	corrections, err := s.db.ListCorrections()
	if err != nil {
		return nil, fmt.Errorf("listing corrections: %w", err)
	}
	return corrections, nil
}

// DeleteCorrection removes a stored correction
func (s *Service) DeleteCorrection(rawName, store string) error {
	if err := s.db.DeleteCorrection(rawName, store); err != nil {
		return fmt.Errorf("deleting correction: %w", err)
	}
	return nil
}

// SyncVerified appends verified receipts that were not synced before and
// marks them as synced
func (s *Service) SyncVerified(ctx context.Context) (int, error) {
	if s.syncer == nil {
		return 0, ErrSyncDisabled
	}

	receipts, err := s.db.ListReceipts()
	if err != nil {
		return 0, fmt.Errorf("listing receipts: %w", err)
	}

	pending := make([]*expense.Receipt, 0)
	for _, receipt := range receipts {
		if receipt.Verified && receipt.SyncedAt == nil {
			pending = append(pending, receipt)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Date.Before(pending[j].Date)
	})

	count, err := s.syncer.SyncReceipts(ctx, pending)
	if err != nil {
		return 0, fmt.Errorf("syncing receipts: %w", err)
	}

	now := s.timeSource.Now()
	for _, receipt := range pending {
		receipt.SyncedAt = &now
		receipt.UpdatedAt = now
		if err := s.db.SaveReceipt(receipt); err != nil {
			return count, fmt.Errorf("marking receipt %s synced: %w", receipt.ID, err)
		}
	}

	slog.Info("Synced receipts", "count", count)
	return count, nil
}

// MonthlySummary totals the receipts of a YYYY-MM month, the current one
// when month is empty
func (s *Service) MonthlySummary(month string) (*MonthlySummary, error) {
	m, err := parseMonth(month, s.timeSource.Now())
	if err != nil {
		return nil, err
	}

	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	summary := summarizeMonth(receipts, m)
	return &summary, nil
}

// SpentOn totals items whose name contains product, optionally within a month
func (s *Service) SpentOn(product, month string) (*Spending, error) {
	product = strings.TrimSpace(product)
	if product == "" {
		return nil, fmt.Errorf("product is required: %w", ErrInvalidInput)
	}

	var filter *time.Time
	if month != "" {
		m, err := parseMonth(month, s.timeSource.Now())
		if err != nil {
			return nil, err
		}
		filter = &m
	}

	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	spending := spendingOn(receipts, product, filter)
	return &spending, nil
}

// RangeReport totals receipts dated between start and end, both YYYY-MM-DD
// and inclusive
func (s *Service) RangeReport(start, end string) (*RangeReport, error) {
	loc := s.timeSource.Now().Location()
	from, err := time.ParseInLocation(dayLayout, start, loc)
	if err != nil {
		return nil, fmt.Errorf("start %q must be YYYY-MM-DD: %w", start, ErrInvalidInput)
	}
	to, err := time.ParseInLocation(dayLayout, end, loc)
	if err != nil {
		return nil, fmt.Errorf("end %q must be YYYY-MM-DD: %w", end, ErrInvalidInput)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("end is before start: %w", ErrInvalidInput)
	}

	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}

	report := summarizeRange(receipts, from, to)
	return &report, nil
}
