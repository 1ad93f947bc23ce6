package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/splittat/internal/models"
)

// Reconciliation compares a receipt's stated total with its parts.
type Reconciliation struct {
	ItemsSubtotal decimal.Decimal
	Tax           decimal.Decimal
	Tip           decimal.Decimal

	// Expected is ItemsSubtotal + Tax + Tip.
	Expected decimal.Decimal
	Total    decimal.Decimal

	// Discrepancy is Total - Expected.
	Discrepancy decimal.Decimal
	Balanced    bool
}

// ItemsSubtotal sums the line totals of items.
func ItemsSubtotal(items []models.ReceiptItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(lineTotal(item))
	}
	return sum
}

// ExpectedTotal is the items subtotal plus tax and tip.
func ExpectedTotal(r *models.Receipt) decimal.Decimal {
	return ItemsSubtotal(r.Items).Add(r.TaxOrZero()).Add(r.TipOrZero())
}

// Reconcile checks that Total equals items subtotal + tax + tip within a cent.
func Reconcile(r *models.Receipt) Reconciliation {
	rec := Reconciliation{
		ItemsSubtotal: ItemsSubtotal(r.Items),
		Tax:           r.TaxOrZero(),
		Tip:           r.TipOrZero(),
		Total:         r.Total,
	}
	rec.Expected = rec.ItemsSubtotal.Add(rec.Tax).Add(rec.Tip)
	rec.Discrepancy = rec.Total.Sub(rec.Expected)
	rec.Balanced = rec.Discrepancy.Abs().LessThanOrEqual(AmountTolerance)
	return rec
}
