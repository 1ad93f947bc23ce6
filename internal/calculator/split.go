// Package calculator implements the split allocation engine: turning a
// receipt's items and a strategy into item assignments, and aggregating
// assignments into per-person totals and group balances.
package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splittat/internal/models"
)

const (
	// PercentPlaces is the precision of ItemAssignment.Percentage.
	PercentPlaces = 4
	// AmountPlaces is the precision of money amounts.
	AmountPlaces = 2
)

var (
	// PercentTolerance bounds how far supplied percentages may stray from 1.
	PercentTolerance = decimal.New(1, -4)
	// AmountTolerance bounds how far supplied amounts may stray from an item's line total.
	AmountTolerance = decimal.New(1, -2)

	one = decimal.NewFromInt(1)
)

// ErrInvalidAllocation is wrapped by every validation failure of Allocate.
var ErrInvalidAllocation = errors.New("invalid allocation")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidAllocation, fmt.Sprintf(format, args...))
}

// Share is one participant's requested share of an item.
// Percentage is used by ByItem and Percentage splits, Amount by Custom splits.
type Share struct {
	UserID     string
	Percentage decimal.NullDecimal
	Amount     decimal.NullDecimal
}

// Request describes a split to compute.
type Request struct {
	Type  models.SplitType
	Items []models.ReceiptItem

	// Participants is the pool for Equal splits and the fallback for ByItem
	// items that have no explicit shares.
	Participants []string

	// Defaults apply to items without an entry in PerItem (ByItem, Percentage).
	Defaults []Share

	// PerItem holds explicit shares keyed by receipt item ID.
	PerItem map[string][]Share
}

// Allocate computes item assignments for req. For every item the returned
// percentages sum to exactly 1 and the amounts to exactly the item's line total.
func Allocate(req Request) ([]models.ItemAssignment, error) {
	if len(req.Items) == 0 {
		return nil, invalid("receipt has no items")
	}

	known := make(map[string]bool, len(req.Items))
	for _, item := range req.Items {
		known[item.ID] = true
	}
	for id := range req.PerItem {
		if !known[id] {
			return nil, invalid("unknown receipt item %q", id)
		}
	}

	var out []models.ItemAssignment
	for _, item := range req.Items {
		var (
			assignments []models.ItemAssignment
			err         error
		)
		switch req.Type {
		case models.SplitTypeEqual:
			assignments, err = allocateEqual(item, req.Participants)
		case models.SplitTypeByItem:
			assignments, err = allocateByItem(item, req)
		case models.SplitTypePercentage:
			assignments, err = allocatePercentage(item, sharesFor(item, req))
		case models.SplitTypeCustom:
			assignments, err = allocateCustom(item, req.PerItem[item.ID])
		default:
			return nil, invalid("unknown split type %q", req.Type)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, assignments...)
	}
	return out, nil
}

func sharesFor(item models.ReceiptItem, req Request) []Share {
	if shares, ok := req.PerItem[item.ID]; ok && len(shares) > 0 {
		return shares
	}
	return req.Defaults
}

func allocateEqual(item models.ReceiptItem, users []string) ([]models.ItemAssignment, error) {
	if len(users) == 0 {
		return nil, invalid("item %q has no participants", item.Name)
	}
	if err := checkUnique(item, users); err != nil {
		return nil, err
	}
	weights := make([]decimal.Decimal, len(users))
	for i := range weights {
		weights[i] = one
	}
	return build(item, users, distribute(one, weights, PercentPlaces)), nil
}

func allocateByItem(item models.ReceiptItem, req Request) ([]models.ItemAssignment, error) {
	shares := sharesFor(item, req)
	if len(shares) == 0 {
		return allocateEqual(item, req.Participants)
	}

	withPct := 0
	for _, s := range shares {
		if s.Percentage.Valid {
			withPct++
		}
	}
	switch withPct {
	case 0:
		return allocateEqual(item, userIDs(shares))
	case len(shares):
		return allocatePercentage(item, shares)
	default:
		return nil, invalid("item %q mixes weighted and unweighted shares", item.Name)
	}
}

func allocatePercentage(item models.ReceiptItem, shares []Share) ([]models.ItemAssignment, error) {
	if len(shares) == 0 {
		return nil, invalid("item %q has no percentages", item.Name)
	}
	users := userIDs(shares)
	if err := checkUnique(item, users); err != nil {
		return nil, err
	}

	pcts := make([]decimal.Decimal, len(shares))
	sum := decimal.Zero
	for i, s := range shares {
		if !s.Percentage.Valid {
			return nil, invalid("item %q: percentage missing for user %q", item.Name, s.UserID)
		}
		p := s.Percentage.Decimal
		if p.IsNegative() || p.GreaterThan(one) {
			return nil, invalid("item %q: percentage %s for user %q must be between 0 and 1", item.Name, p, s.UserID)
		}
		pcts[i] = p
		sum = sum.Add(p)
	}
	if sum.Sub(one).Abs().GreaterThan(PercentTolerance) {
		return nil, invalid("item %q: percentages sum to %s, want 1", item.Name, sum)
	}

	pcts, err := absorb(one, pcts, PercentPlaces)
	if err != nil {
		return nil, invalid("item %q: %v", item.Name, err)
	}
	return build(item, users, pcts), nil
}

func allocateCustom(item models.ReceiptItem, shares []Share) ([]models.ItemAssignment, error) {
	if len(shares) == 0 {
		return nil, invalid("item %q has no amounts", item.Name)
	}
	users := userIDs(shares)
	if err := checkUnique(item, users); err != nil {
		return nil, err
	}

	total := lineTotal(item)
	amounts := make([]decimal.Decimal, len(shares))
	sum := decimal.Zero
	for i, s := range shares {
		if !s.Amount.Valid {
			return nil, invalid("item %q: amount missing for user %q", item.Name, s.UserID)
		}
		if s.Amount.Decimal.IsNegative() {
			return nil, invalid("item %q: amount for user %q must not be negative", item.Name, s.UserID)
		}
		amounts[i] = s.Amount.Decimal.Round(AmountPlaces)
		sum = sum.Add(amounts[i])
	}
	if sum.Sub(total).Abs().GreaterThan(AmountTolerance) {
		return nil, invalid("item %q: amounts sum to %s, want %s", item.Name, sum.StringFixed(AmountPlaces), total.StringFixed(AmountPlaces))
	}

	amounts, err := absorb(total, amounts, AmountPlaces)
	if err != nil {
		return nil, invalid("item %q: %v", item.Name, err)
	}
	pcts := distribute(one, amounts, PercentPlaces)

	out := make([]models.ItemAssignment, len(users))
	for i, u := range users {
		out[i] = models.ItemAssignment{
			ReceiptItemID: item.ID,
			UserID:        u,
			Percentage:    pcts[i],
			Amount:        amounts[i],
		}
	}
	return out, nil
}

// build turns final percentages into assignments, deriving amounts from the line total.
func build(item models.ReceiptItem, users []string, pcts []decimal.Decimal) []models.ItemAssignment {
	amounts := distribute(lineTotal(item), pcts, AmountPlaces)
	out := make([]models.ItemAssignment, len(users))
	for i, u := range users {
		out[i] = models.ItemAssignment{
			ReceiptItemID: item.ID,
			UserID:        u,
			Percentage:    pcts[i],
			Amount:        amounts[i],
		}
	}
	return out
}

func lineTotal(item models.ReceiptItem) decimal.Decimal {
	return item.LineTotal().Round(AmountPlaces)
}

func userIDs(shares []Share) []string {
	ids := make([]string, len(shares))
	for i, s := range shares {
		ids[i] = s.UserID
	}
	return ids
}

func checkUnique(item models.ReceiptItem, users []string) error {
	seen := make(map[string]bool, len(users))
	for _, u := range users {
		if u == "" {
			return invalid("item %q: participant id is required", item.Name)
		}
		if seen[u] {
			return invalid("item %q: user %q assigned more than once", item.Name, u)
		}
		seen[u] = true
	}
	return nil
}

// CheckAllocation verifies that assignments fully allocate every item:
// percentages sum to 1 and amounts to the line total, within tolerance.
func CheckAllocation(items []models.ReceiptItem, assignments []models.ItemAssignment) error {
	pct := make(map[string]decimal.Decimal, len(items))
	amt := make(map[string]decimal.Decimal, len(items))
	for _, a := range assignments {
		pct[a.ReceiptItemID] = pct[a.ReceiptItemID].Add(a.Percentage)
		amt[a.ReceiptItemID] = amt[a.ReceiptItemID].Add(a.Amount)
	}
	for _, item := range items {
		p, ok := pct[item.ID]
		if !ok {
			return invalid("item %q is not allocated", item.Name)
		}
		if p.Sub(one).Abs().GreaterThan(PercentTolerance) {
			return invalid("item %q: percentages sum to %s", item.Name, p)
		}
		if amt[item.ID].Sub(lineTotal(item)).Abs().GreaterThan(AmountTolerance) {
			return invalid("item %q: amounts sum to %s", item.Name, amt[item.ID])
		}
	}
	return nil
}
