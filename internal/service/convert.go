package service

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/splittat/internal/calculator"
	"github.com/mmynk/splittat/internal/models"
	"github.com/mmynk/splittat/pkg/api"
)

const dateLayout = "2006-01-02"

func money(d decimal.Decimal) float64 {
	return d.Round(calculator.AmountPlaces).InexactFloat64()
}

func optionalMoney(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	v := money(d.Decimal)
	return &v
}

func nullDecimal(v *float64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*v))
}

// ToAPIUser converts a user for the wire. The password hash is never sent.
func ToAPIUser(u *models.User) *api.User {
	return &api.User{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		DisplayName: u.DisplayName(),
		CreatedAt:   u.CreatedAt,
	}
}

// ToAPIReceipt converts a receipt. Items and reconciliation are included
// when withItems is set.
func ToAPIReceipt(r *models.Receipt, withItems bool) *api.Receipt {
	out := &api.Receipt{
		ID:           r.ID,
		UserID:       r.UserID,
		MerchantName: r.MerchantName,
		Total:        money(r.Total),
		Tax:          optionalMoney(r.Tax),
		Tip:          optionalMoney(r.Tip),
		ImageURL:     r.ImageURL,
		Status:       string(r.Status),
		Phase:        string(r.Status.Phase()),
		Confidence:   r.Confidence,
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.Date != nil {
		out.Date = r.Date.Format(dateLayout)
	}
	if !withItems {
		return out
	}

	out.Items = make([]*api.ReceiptItem, len(r.Items))
	for i, item := range r.Items {
		out.Items[i] = &api.ReceiptItem{
			ID:         item.ID,
			Name:       item.Name,
			Price:      money(item.Price),
			Quantity:   item.Quantity,
			LineNumber: item.LineNumber,
			LineTotal:  money(item.LineTotal()),
		}
	}
	rec := calculator.Reconcile(r)
	out.Reconciliation = &api.Reconciliation{
		ItemsSubtotal: money(rec.ItemsSubtotal),
		Expected:      money(rec.Expected),
		Discrepancy:   money(rec.Discrepancy),
		Balanced:      rec.Balanced,
	}
	return out
}

func toAPIGroup(g *models.Group, users map[string]*models.User) *api.Group {
	out := &api.Group{
		ID:        g.ID,
		Name:      g.Name,
		CreatedBy: g.CreatedBy,
		CreatedAt: g.CreatedAt,
		Members:   make([]*api.GroupMember, len(g.Members)),
	}
	for i, m := range g.Members {
		member := &api.GroupMember{
			UserID:   m.UserID,
			Role:     string(m.Role),
			JoinedAt: m.JoinedAt,
		}
		if u, ok := users[m.UserID]; ok {
			member.Email = u.Email
			member.DisplayName = u.DisplayName()
		}
		out.Members[i] = member
	}
	return out
}

func toAPIAssignments(assignments []models.ItemAssignment) []*api.ItemAssignment {
	out := make([]*api.ItemAssignment, len(assignments))
	for i, a := range assignments {
		out[i] = &api.ItemAssignment{
			ID:         a.ID,
			ItemID:     a.ReceiptItemID,
			UserID:     a.UserID,
			Percentage: a.Percentage.InexactFloat64(),
			Amount:     money(a.Amount),
		}
	}
	return out
}

func toAPISummary(s calculator.Summary, users map[string]*models.User) *api.SplitSummary {
	out := &api.SplitSummary{
		People:   make([]*api.PersonSplit, len(s.People)),
		Subtotal: money(s.Subtotal),
		Tax:      money(s.Tax),
		Tip:      money(s.Tip),
		Total:    money(s.Total),
	}
	for i, p := range s.People {
		person := &api.PersonSplit{
			UserID:   p.UserID,
			Subtotal: money(p.Subtotal),
			Tax:      money(p.Tax),
			Tip:      money(p.Tip),
			Total:    money(p.Total),
			Items:    make([]*api.PersonItem, len(p.Items)),
		}
		if u, ok := users[p.UserID]; ok {
			person.DisplayName = u.DisplayName()
		}
		for j, item := range p.Items {
			person.Items[j] = &api.PersonItem{
				ItemID:     item.ItemID,
				Name:       item.Name,
				Percentage: item.Percentage.InexactFloat64(),
				Amount:     money(item.Amount),
			}
		}
		out.People[i] = person
	}
	return out
}

func toAPISplit(split *models.Split, receipt *models.Receipt, users map[string]*models.User) *api.Split {
	return &api.Split{
		ID:          split.ID,
		ReceiptID:   split.ReceiptID,
		GroupID:     split.GroupID,
		CreatedBy:   split.CreatedBy,
		SplitType:   string(split.SplitType),
		CreatedAt:   split.CreatedAt,
		Assignments: toAPIAssignments(split.Assignments),
		Summary:     toAPISummary(calculator.Summarize(receipt, split.Assignments), users),
	}
}

func toCalculatorShares(shares []*api.Share) []calculator.Share {
	out := make([]calculator.Share, 0, len(shares))
	for _, s := range shares {
		if s == nil {
			continue
		}
		out = append(out, calculator.Share{
			UserID:     s.UserID,
			Percentage: nullDecimal(s.Percentage),
			Amount:     nullDecimal(s.Amount),
		})
	}
	return out
}
