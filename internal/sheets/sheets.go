// Package sheets appends receipt items to a Google spreadsheet.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/zombor/receipt-clerk/internal/expense"
)

// DefaultRange is the sheet rows are appended to when none is configured
const DefaultRange = "Expenses"

const dateLayout = "2006-01-02"

// Client appends receipt rows to one spreadsheet
type Client struct {
	service       *sheets.Service
	spreadsheetID string
	writeRange    string
}

// NewClient creates a Client. Without options the client authenticates
// with application default credentials.
func NewClient(ctx context.Context, spreadsheetID, writeRange string, opts ...option.ClientOption) (*Client, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if writeRange == "" {
		writeRange = DefaultRange
	}

	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &Client{
		service:       service,
		spreadsheetID: spreadsheetID,
		writeRange:    writeRange,
	}, nil
}

// NewClientFromCredentials creates a Client authenticated with a service
// account key file
func NewClientFromCredentials(ctx context.Context, credentialsFile, spreadsheetID, writeRange string) (*Client, error) {
	return NewClient(ctx, spreadsheetID, writeRange, option.WithCredentialsFile(credentialsFile))
}

// Rows flattens receipts into one row per item: date, store, item,
// quantity, price and category
func Rows(receipts []*expense.Receipt) [][]interface{} {
	rows := make([][]interface{}, 0)
	for _, r := range receipts {
		for _, item := range r.Items {
			rows = append(rows, []interface{}{
				r.Date.Format(dateLayout),
				r.Store,
				item.DisplayName(),
				item.Quantity.String(),
				item.Price.StringFixed(2),
				item.Category,
			})
		}
	}
	return rows
}

// SyncReceipts appends one row per item and returns the number of
// receipts written
func (c *Client) SyncReceipts(ctx context.Context, receipts []*expense.Receipt) (int, error) {
	rows := Rows(receipts)
	if len(rows) == 0 {
		return 0, nil
	}

	_, err := c.service.Spreadsheets.Values.
		Append(c.spreadsheetID, c.writeRange, &sheets.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("appending %d rows: %w", len(rows), err)
	}

	return len(receipts), nil
}
