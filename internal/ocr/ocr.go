// Package ocr turns receipt images into structured line items.
//
// Extraction itself is delegated to an external model; this package only
// builds the request and parses the reply.
package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoItems means the extractor ran but found no line items.
var ErrNoItems = errors.New("no line items found on receipt")

// Item is one extracted receipt line.
type Item struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Result is the structured content of a receipt image.
type Result struct {
	MerchantName string
	Date         *time.Time
	Items        []Item
	Tax          decimal.NullDecimal
	Tip          decimal.NullDecimal
	Total        decimal.NullDecimal
	Confidence   *float64
}

// Extractor reads a receipt image.
type Extractor interface {
	Extract(ctx context.Context, contentType string, data []byte) (*Result, error)
}

// Manual is the extractor used when no OCR provider is configured.
// It always reports ErrNoItems so the receipt waits for manual entry.
type Manual struct{}

func (Manual) Extract(context.Context, string, []byte) (*Result, error) {
	return nil, ErrNoItems
}

// wireResult is the JSON shape requested from the model.
type wireResult struct {
	MerchantName string              `json:"merchant_name"`
	Date         string              `json:"date"`
	Items        []Item              `json:"items"`
	Tax          decimal.NullDecimal `json:"tax"`
	Tip          decimal.NullDecimal `json:"tip"`
	Total        decimal.NullDecimal `json:"total"`
	Confidence   *float64            `json:"confidence"`
}

// ParseResult decodes a model reply into a Result. Items with no name or
// a negative price are dropped and quantities below one become one.
func ParseResult(raw string) (*Result, error) {
	var w wireResult
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &w); err != nil {
		return nil, fmt.Errorf("unmarshal model JSON: %w", err)
	}

	res := &Result{
		MerchantName: strings.TrimSpace(w.MerchantName),
		Tax:          w.Tax,
		Tip:          w.Tip,
		Total:        w.Total,
	}
	if w.Date != "" {
		if t, err := time.Parse("2006-01-02", w.Date); err == nil {
			res.Date = &t
		}
	}
	if w.Confidence != nil {
		c := min(max(*w.Confidence, 0), 1)
		res.Confidence = &c
	}

	for _, it := range w.Items {
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" || it.Price.IsNegative() {
			continue
		}
		if it.Quantity < 1 {
			it.Quantity = 1
		}
		it.Price = it.Price.Round(2)
		res.Items = append(res.Items, it)
	}
	if len(res.Items) == 0 {
		return nil, ErrNoItems
	}
	return res, nil
}

// cleanModelJSON strips Markdown fences and any text around the outermost object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
