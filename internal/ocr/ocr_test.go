package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseResult(t *testing.T) {
	raw := "```json\n" + `{
		"merchant_name": " Joe's Diner ",
		"date": "2026-02-01",
		"items": [
			{"name": "Burger", "price": 12.5, "quantity": 2},
			{"name": "Fries", "price": "3.999", "quantity": 0},
			{"name": "", "price": 1, "quantity": 1},
			{"name": "Coupon", "price": -2, "quantity": 1}
		],
		"tax": 2.1,
		"tip": null,
		"total": 33.1,
		"confidence": 1.4
	}` + "\n```"

	res, err := ParseResult(raw)
	if err != nil {
		t.Fatalf("ParseResult() error = %v", err)
	}
	if res.MerchantName != "Joe's Diner" {
		t.Errorf("MerchantName = %q", res.MerchantName)
	}
	if res.Date == nil || res.Date.Format("2006-01-02") != "2026-02-01" {
		t.Errorf("Date = %v", res.Date)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 items, got %+v", res.Items)
	}
	if res.Items[1].Quantity != 1 || !res.Items[1].Price.Equal(decimal.RequireFromString("4")) {
		t.Errorf("Fries = %+v", res.Items[1])
	}
	if !res.Tax.Valid || res.Tip.Valid {
		t.Errorf("Tax = %v, Tip = %v", res.Tax, res.Tip)
	}
	if res.Confidence == nil || *res.Confidence != 1 {
		t.Errorf("Confidence = %v, want clamped to 1", res.Confidence)
	}
}

func TestParseResult_NoItems(t *testing.T) {
	_, err := ParseResult(`Here you go: {"merchant_name": "X", "items": []}`)
	if !errors.Is(err, ErrNoItems) {
		t.Errorf("expected ErrNoItems, got %v", err)
	}
}

func TestParseResult_Garbage(t *testing.T) {
	_, err := ParseResult("I could not read this receipt.")
	if err == nil || errors.Is(err, ErrNoItems) {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestManual(t *testing.T) {
	_, err := Manual{}.Extract(context.Background(), "image/png", nil)
	if !errors.Is(err, ErrNoItems) {
		t.Errorf("expected ErrNoItems, got %v", err)
	}
}
