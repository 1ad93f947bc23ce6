package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/splittat/internal/models"
)

// PersonItem is one item's share for one person.
type PersonItem struct {
	ItemID     string
	Name       string
	Percentage decimal.Decimal
	Amount     decimal.Decimal
}

// PersonSplit is one person's aggregated share of a receipt.
type PersonSplit struct {
	UserID string

	// Subtotal is the sum of this person's item amounts (pre tax and tip).
	Subtotal decimal.Decimal

	// Tax and Tip are proportional to Subtotal / items subtotal.
	Tax decimal.Decimal
	Tip decimal.Decimal

	Total decimal.Decimal
	Items []PersonItem
}

// Summary aggregates a split per person.
type Summary struct {
	People   []PersonSplit
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Tip      decimal.Decimal
	Total    decimal.Decimal
}

// Summarize aggregates assignments per user, in first-seen order.
// Tax and tip are shared in proportion to each user's subtotal, with the
// last user absorbing rounding, so the people's totals add up to
// subtotal + tax + tip.
func Summarize(receipt *models.Receipt, assignments []models.ItemAssignment) Summary {
	index := make(map[string]int)
	var people []PersonSplit
	for _, a := range assignments {
		i, ok := index[a.UserID]
		if !ok {
			i = len(people)
			index[a.UserID] = i
			people = append(people, PersonSplit{UserID: a.UserID})
		}
		item, _ := receipt.Item(a.ReceiptItemID)
		people[i].Subtotal = people[i].Subtotal.Add(a.Amount)
		people[i].Items = append(people[i].Items, PersonItem{
			ItemID:     a.ReceiptItemID,
			Name:       item.Name,
			Percentage: a.Percentage,
			Amount:     a.Amount,
		})
	}

	tax := receipt.TaxOrZero()
	tip := receipt.TipOrZero()

	subtotals := make([]decimal.Decimal, len(people))
	subtotal := decimal.Zero
	for i, p := range people {
		subtotals[i] = p.Subtotal
		subtotal = subtotal.Add(p.Subtotal)
	}
	taxes := distribute(tax, subtotals, AmountPlaces)
	tips := distribute(tip, subtotals, AmountPlaces)

	for i := range people {
		people[i].Tax = taxes[i]
		people[i].Tip = tips[i]
		people[i].Total = people[i].Subtotal.Add(taxes[i]).Add(tips[i])
	}

	return Summary{
		People:   people,
		Subtotal: subtotal,
		Tax:      tax,
		Tip:      tip,
		Total:    subtotal.Add(tax).Add(tip),
	}
}

// Person returns the split for userID, if present.
func (s Summary) Person(userID string) (PersonSplit, bool) {
	for _, p := range s.People {
		if p.UserID == userID {
			return p, true
		}
	}
	return PersonSplit{}, false
}
