package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenRouterURL is the OpenAI-compatible OpenRouter endpoint
const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouter implements the Scanner interface against any
// OpenAI-compatible chat completions API, OpenRouter by default
type OpenRouter struct {
	client *openai.Client
	model  string
}

// NewOpenRouter creates a new OpenRouter Scanner instance
func NewOpenRouter(apiKey, baseURL, modelName string) (*OpenRouter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openrouter api key is required")
	}
	if baseURL == "" {
		baseURL = DefaultOpenRouterURL
	}
	if modelName == "" {
		modelName = "openai/gpt-4o-mini"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &OpenRouter{
		client: openai.NewClientWithConfig(config),
		model:  modelName,
	}, nil
}

// ExtractText transcribes the receipt image
func (o *OpenRouter) ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	pngData, err := toPNG(imageData, contentType)
	if err != nil {
		return "", err
	}

	text, err := o.complete(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: transcribePrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", err
	}
	return cleanTranscript(text)
}

// ExtractStructured reads store, items and totals from OCR text
func (o *OpenRouter) ExtractStructured(ctx context.Context, rawText string) (*StructuredReceipt, error) {
	text, err := o.complete(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: structuredPrompt(rawText)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, err
	}

	data, err := parseStructuredJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parsing receipt data: %w", err)
	}
	return data, nil
}

func (o *OpenRouter) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("creating chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices from %s", o.model)
	}
	return resp.Choices[0].Message.Content, nil
}

// Close is a no-op for the HTTP client
func (o *OpenRouter) Close() error {
	return nil
}
