package scanning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic implements StructuredExtractor using Claude
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates a new Claude structured extractor
func NewAnthropic(apiKey, modelName string, opts ...anthropicoption.RequestOption) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}

	return &Anthropic{
		client: anthropic.NewClient(append([]anthropicoption.RequestOption{anthropicoption.WithAPIKey(apiKey)}, opts...)...),
		model:  modelName,
	}, nil
}

// ExtractStructured reads store, items and totals from OCR text
func (a *Anthropic) ExtractStructured(ctx context.Context, rawText string) (*StructuredReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(structuredPrompt(rawText))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calling claude API: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from claude")
	}

	data, err := parseStructuredJSON(text.String())
	if err != nil {
		return nil, fmt.Errorf("parsing receipt data: %w", err)
	}
	return data, nil
}

// Close is a no-op for the HTTP client
func (a *Anthropic) Close() error {
	return nil
}
