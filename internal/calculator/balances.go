package calculator

import (
	"sort"

	"github.com/shopspring/decimal"
)

// SplitForBalance is a split reduced to what balance calculation needs.
// The payer is the owner of the receipt.
type SplitForBalance struct {
	PayerID string
	People  []PersonSplit
}

// MemberBalance represents the balance information for one group member.
type MemberBalance struct {
	UserID     string
	NetBalance decimal.Decimal // Positive = owed money, Negative = owes money
	TotalPaid  decimal.Decimal
	TotalOwed  decimal.Decimal
}

// DebtEdge represents a debt from one person to another.
type DebtEdge struct {
	From   string // Person who owes
	To     string // Person who is owed
	Amount decimal.Decimal
}

// CalculateGroupBalances aggregates who paid and who owes across splits and
// simplifies the result into a small set of debts.
//
// For each split the payer contributed the sum of all shares and each person
// owes their own total. Net balance = paid - owed. Debts are matched greedily,
// largest debtor against largest creditor.
func CalculateGroupBalances(splits []SplitForBalance) ([]MemberBalance, []DebtEdge) {
	balances := make(map[string]*MemberBalance)
	get := func(id string) *MemberBalance {
		if b, ok := balances[id]; ok {
			return b
		}
		b := &MemberBalance{UserID: id}
		balances[id] = b
		return b
	}

	for _, split := range splits {
		if split.PayerID == "" {
			continue
		}
		payer := get(split.PayerID)
		for _, p := range split.People {
			payer.TotalPaid = payer.TotalPaid.Add(p.Total)
			get(p.UserID).TotalOwed = get(p.UserID).TotalOwed.Add(p.Total)
		}
	}

	memberBalances := make([]MemberBalance, 0, len(balances))
	for _, b := range balances {
		b.NetBalance = b.TotalPaid.Sub(b.TotalOwed)
		memberBalances = append(memberBalances, *b)
	}
	sort.Slice(memberBalances, func(i, j int) bool {
		return memberBalances[i].UserID < memberBalances[j].UserID
	})

	var creditors, debtors []MemberBalance
	for _, b := range memberBalances {
		switch {
		case b.NetBalance.IsPositive():
			creditors = append(creditors, b)
		case b.NetBalance.IsNegative():
			debtors = append(debtors, b)
		}
	}
	sort.SliceStable(creditors, func(i, j int) bool {
		return creditors[i].NetBalance.GreaterThan(creditors[j].NetBalance)
	})
	sort.SliceStable(debtors, func(i, j int) bool {
		return debtors[i].NetBalance.LessThan(debtors[j].NetBalance)
	})

	debtorLeft := make([]decimal.Decimal, len(debtors))
	for i, d := range debtors {
		debtorLeft[i] = d.NetBalance.Neg()
	}
	creditorLeft := make([]decimal.Decimal, len(creditors))
	for j, c := range creditors {
		creditorLeft[j] = c.NetBalance
	}

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := decimal.Min(debtorLeft[i], creditorLeft[j])
		if amount.GreaterThanOrEqual(AmountTolerance) {
			edges = append(edges, DebtEdge{
				From:   debtors[i].UserID,
				To:     creditors[j].UserID,
				Amount: amount,
			})
		}
		debtorLeft[i] = debtorLeft[i].Sub(amount)
		creditorLeft[j] = creditorLeft[j].Sub(amount)

		if debtorLeft[i].LessThan(AmountTolerance) {
			i++
		}
		if creditorLeft[j].LessThan(AmountTolerance) {
			j++
		}
	}

	return memberBalances, edges
}
