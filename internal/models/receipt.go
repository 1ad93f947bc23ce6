package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptStatus is the processing state of a receipt.
type ReceiptStatus string

const (
	ReceiptStatusUploaded      ReceiptStatus = "Uploaded"
	ReceiptStatusOcrInProgress ReceiptStatus = "OcrInProgress"
	ReceiptStatusOcrCompleted  ReceiptStatus = "OcrCompleted"
	ReceiptStatusParseFailed   ReceiptStatus = "ParseFailed"
	ReceiptStatusReady         ReceiptStatus = "Ready"
	ReceiptStatusFailed        ReceiptStatus = "Failed"
)

// ReceiptPhase is the coarse lifecycle view of a ReceiptStatus.
type ReceiptPhase string

const (
	ReceiptPhaseProcessing ReceiptPhase = "Processing"
	ReceiptPhaseReady      ReceiptPhase = "Ready"
	ReceiptPhaseFailed     ReceiptPhase = "Failed"
)

// ParseReceiptStatus converts a persisted string into a ReceiptStatus.
func ParseReceiptStatus(s string) (ReceiptStatus, error) {
	switch ReceiptStatus(s) {
	case ReceiptStatusUploaded, ReceiptStatusOcrInProgress, ReceiptStatusOcrCompleted,
		ReceiptStatusParseFailed, ReceiptStatusReady, ReceiptStatusFailed:
		return ReceiptStatus(s), nil
	}
	return "", fmt.Errorf("unknown receipt status %q", s)
}

// Phase maps the detailed status onto Processing, Ready or Failed.
func (s ReceiptStatus) Phase() ReceiptPhase {
	switch s {
	case ReceiptStatusReady:
		return ReceiptPhaseReady
	case ReceiptStatusParseFailed, ReceiptStatusFailed:
		return ReceiptPhaseFailed
	default:
		return ReceiptPhaseProcessing
	}
}

// ProcessingStatuses are the statuses in the Processing phase.
var ProcessingStatuses = []ReceiptStatus{
	ReceiptStatusUploaded,
	ReceiptStatusOcrInProgress,
	ReceiptStatusOcrCompleted,
}

// IsTerminal reports whether processing has finished. Clients stop polling here.
func (s ReceiptStatus) IsTerminal() bool {
	return s.Phase() != ReceiptPhaseProcessing
}

// Receipt is an uploaded receipt owned by one user.
type Receipt struct {
	// ID is the unique identifier for the receipt (UUID format).
	ID string

	// UserID is the owner. The owner is treated as the payer for balances.
	UserID string

	MerchantName string

	// Date is the purchase date printed on the receipt, if known.
	Date *time.Time

	// Total is the amount paid, including tax and tip.
	Total decimal.Decimal

	Tax decimal.NullDecimal
	Tip decimal.NullDecimal

	// ImageURL locates the uploaded image in blob storage.
	ImageURL string

	Status ReceiptStatus

	// Confidence is the extractor's confidence in [0, 1], when reported.
	Confidence *float64

	// ErrorMessage explains a Failed or ParseFailed status.
	ErrorMessage string

	CreatedAt int64
	UpdatedAt int64

	// Items are ordered by LineNumber.
	Items []ReceiptItem
}

// ReceiptItem is one line of a receipt.
type ReceiptItem struct {
	ID        string
	ReceiptID string
	Name      string

	// Price is the unit price. Must be >= 0.
	Price decimal.Decimal

	// Quantity must be >= 1.
	Quantity int

	// LineNumber is the 1-based position on the receipt.
	LineNumber int
}

// LineTotal is Price x Quantity.
func (i ReceiptItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Validate checks the item invariants.
func (i ReceiptItem) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("item name is required")
	}
	if i.Price.IsNegative() {
		return fmt.Errorf("item %q: price must not be negative", i.Name)
	}
	if i.Quantity < 1 {
		return fmt.Errorf("item %q: quantity must be at least 1", i.Name)
	}
	return nil
}

// TaxOrZero returns the tax, or zero when unset.
func (r *Receipt) TaxOrZero() decimal.Decimal {
	if r.Tax.Valid {
		return r.Tax.Decimal
	}
	return decimal.Zero
}

// TipOrZero returns the tip, or zero when unset.
func (r *Receipt) TipOrZero() decimal.Decimal {
	if r.Tip.Valid {
		return r.Tip.Decimal
	}
	return decimal.Zero
}

// Item returns the item with the given ID.
func (r *Receipt) Item(id string) (ReceiptItem, bool) {
	for _, it := range r.Items {
		if it.ID == id {
			return it, true
		}
	}
	return ReceiptItem{}, false
}
