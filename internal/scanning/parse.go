package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zombor/receipt-clerk/internal/expense"
)

// stripCodeFence removes a surrounding markdown code block, if any
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// cleanTranscript tidies model OCR output into plain text
func cleanTranscript(text string) (string, error) {
	text = stripCodeFence(text)
	if text == "" {
		return "", fmt.Errorf("no text recognized")
	}
	return text, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02.01.2006",
	"02.01.06",
	"02-01-2006",
}

// parseStructuredJSON parses a model response into a StructuredReceipt
func parseStructuredJSON(text string) (*StructuredReceipt, error) {
	text = stripCodeFence(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[start : end+1]

	var data StructuredReceipt
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	data.StoreName = strings.TrimSpace(data.StoreName)
	if data.StoreName == "" {
		data.StoreName = expense.UnknownStore
	}
	data.Date = normalizeDate(data.Date)
	data.Time = normalizeTime(data.Time)
	data.PaymentMethod = strings.TrimSpace(data.PaymentMethod)

	return &data, nil
}

// normalizeDate returns the date as YYYY-MM-DD, or empty if it cannot be read
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return ""
}

// normalizeTime returns the time as HH:MM, or empty if it cannot be read
func normalizeTime(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05", "3:04 PM", "3:04:05 PM"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04")
		}
	}
	return ""
}
