package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SplitType selects the allocation strategy of a split.
type SplitType string

const (
	SplitTypeEqual      SplitType = "Equal"
	SplitTypeByItem     SplitType = "ByItem"
	SplitTypePercentage SplitType = "Percentage"
	SplitTypeCustom     SplitType = "Custom"
)

// ParseSplitType converts a persisted string into a SplitType.
func ParseSplitType(s string) (SplitType, error) {
	switch SplitType(s) {
	case SplitTypeEqual, SplitTypeByItem, SplitTypePercentage, SplitTypeCustom:
		return SplitType(s), nil
	}
	return "", fmt.Errorf("unknown split type %q", s)
}

// Split is one resolution of who owes what for a receipt,
// optionally scoped to a group.
type Split struct {
	// ID is the unique identifier for the split (UUID format).
	ID string

	ReceiptID string

	// GroupID is empty for splits not scoped to a group.
	GroupID string

	CreatedBy string
	SplitType SplitType
	CreatedAt int64

	Assignments []ItemAssignment
}

// ItemAssignment attributes a share of one receipt item to one user.
// For every item covered by a split the percentages sum to 1.
type ItemAssignment struct {
	ID            string
	SplitID       string
	ReceiptItemID string
	UserID        string

	// Percentage is the fractional share in [0, 1], four decimal places.
	Percentage decimal.Decimal

	// Amount is the share of the item's line total, two decimal places.
	Amount decimal.Decimal
}

// Participants returns the distinct assigned user IDs in first-seen order.
func (s *Split) Participants() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range s.Assignments {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			out = append(out, a.UserID)
		}
	}
	return out
}
