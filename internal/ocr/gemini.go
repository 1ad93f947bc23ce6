package ocr

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const receiptPrompt = "You are a receipt parser.\n\n" +
	"Task:\n" +
	"- Read the attached receipt image.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n\n" +
	"The JSON object must have these fields:\n" +
	"- \"merchant_name\": string or null\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\", or null\n" +
	"- \"items\": array of {\"name\": string, \"price\": number (unit price), \"quantity\": integer}\n" +
	"- \"tax\": number or null\n" +
	"- \"tip\": number or null (include service charges)\n" +
	"- \"total\": number or null (amount paid)\n" +
	"- \"confidence\": number between 0 and 1\n\n" +
	"Rules:\n" +
	"- Do not list tax, tip, subtotal or total lines as items.\n" +
	"- Discounts reduce the price of the item they apply to.\n" +
	"- Return ONLY valid raw JSON. Do NOT wrap the response in code fences.\n"

// Gemini extracts receipts with a Gemini model.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini API client.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Extract(ctx context.Context, contentType string, data []byte) (*Result, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: receiptPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: contentType,
						Data:     data,
					},
				},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("empty response from model")
	}
	return ParseResult(raw)
}
