package calculator

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splittat/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pct(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(s))
}

func item(id, name, price string, qty int) models.ReceiptItem {
	return models.ReceiptItem{ID: id, Name: name, Price: d(price), Quantity: qty}
}

// byItemUser indexes assignments by item then user.
func byItemUser(assignments []models.ItemAssignment) map[string]map[string]models.ItemAssignment {
	out := make(map[string]map[string]models.ItemAssignment)
	for _, a := range assignments {
		if out[a.ReceiptItemID] == nil {
			out[a.ReceiptItemID] = make(map[string]models.ItemAssignment)
		}
		out[a.ReceiptItemID][a.UserID] = a
	}
	return out
}

func assertEqualDecimal(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(d(want)) {
		t.Errorf("%s = %s, want %s", what, got, want)
	}
}

func TestAllocate_EqualTwoUsers(t *testing.T) {
	items := []models.ReceiptItem{
		item("i1", "Pizza", "10", 1),
		item("i2", "Wine", "20", 1),
	}
	got, err := Allocate(Request{
		Type:         models.SplitTypeEqual,
		Items:        items,
		Participants: []string{"alice", "bob"},
	})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 assignments, got %d", len(got))
	}

	idx := byItemUser(got)
	for _, u := range []string{"alice", "bob"} {
		assertEqualDecimal(t, "i1 "+u+" percentage", idx["i1"][u].Percentage, "0.5")
		assertEqualDecimal(t, "i1 "+u+" amount", idx["i1"][u].Amount, "5")
		assertEqualDecimal(t, "i2 "+u+" percentage", idx["i2"][u].Percentage, "0.5")
		assertEqualDecimal(t, "i2 "+u+" amount", idx["i2"][u].Amount, "10")
	}

	total := decimal.Zero
	for _, a := range got {
		total = total.Add(a.Amount)
	}
	assertEqualDecimal(t, "total", total, "30")

	if err := CheckAllocation(items, got); err != nil {
		t.Errorf("CheckAllocation() error = %v", err)
	}
}

func TestAllocate_EqualLastAbsorbsRemainder(t *testing.T) {
	items := []models.ReceiptItem{item("i1", "Cake", "10", 1)}
	got, err := Allocate(Request{
		Type:         models.SplitTypeEqual,
		Items:        items,
		Participants: []string{"a", "b", "c"},
	})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	wantPct := []string{"0.3333", "0.3333", "0.3334"}
	wantAmt := []string{"3.33", "3.33", "3.34"}
	for i, a := range got {
		assertEqualDecimal(t, a.UserID+" percentage", a.Percentage, wantPct[i])
		assertEqualDecimal(t, a.UserID+" amount", a.Amount, wantAmt[i])
	}
}

func TestAllocate_EqualTinyAmountNeverNegative(t *testing.T) {
	items := []models.ReceiptItem{item("i1", "Mint", "0.05", 1)}
	users := []string{"a", "b", "c", "d", "e", "f", "g"}
	got, err := Allocate(Request{Type: models.SplitTypeEqual, Items: items, Participants: users})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	for _, a := range got {
		if a.Amount.IsNegative() {
			t.Errorf("%s amount is negative: %s", a.UserID, a.Amount)
		}
	}
	if err := CheckAllocation(items, got); err != nil {
		t.Errorf("CheckAllocation() error = %v", err)
	}
}

func TestAllocate_QuantityMultipliesPrice(t *testing.T) {
	items := []models.ReceiptItem{item("i1", "Beer", "4.50", 3)}
	got, err := Allocate(Request{
		Type:         models.SplitTypeEqual,
		Items:        items,
		Participants: []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	assertEqualDecimal(t, "a amount", got[0].Amount, "6.75")
	assertEqualDecimal(t, "b amount", got[1].Amount, "6.75")
}

func TestAllocate_ByItem(t *testing.T) {
	items := []models.ReceiptItem{
		item("i1", "Steak", "30", 1),
		item("i2", "Salad", "12", 1),
		item("i3", "Bread", "6", 1),
	}
	got, err := Allocate(Request{
		Type:         models.SplitTypeByItem,
		Items:        items,
		Participants: []string{"alice", "bob", "carol"},
		PerItem: map[string][]Share{
			"i1": {{UserID: "alice"}},
			"i2": {{UserID: "bob", Percentage: pct("0.25")}, {UserID: "carol", Percentage: pct("0.75")}},
		},
	})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	idx := byItemUser(got)
	assertEqualDecimal(t, "steak alice", idx["i1"]["alice"].Amount, "30")
	assertEqualDecimal(t, "steak alice pct", idx["i1"]["alice"].Percentage, "1")
	assertEqualDecimal(t, "salad bob", idx["i2"]["bob"].Amount, "3")
	assertEqualDecimal(t, "salad carol", idx["i2"]["carol"].Amount, "9")
	if len(idx["i3"]) != 3 {
		t.Errorf("bread should fall back to all participants, got %d", len(idx["i3"]))
	}
	assertEqualDecimal(t, "bread carol", idx["i3"]["carol"].Amount, "2")

	if err := CheckAllocation(items, got); err != nil {
		t.Errorf("CheckAllocation() error = %v", err)
	}
}

func TestAllocate_Percentage(t *testing.T) {
	items := []models.ReceiptItem{
		item("i1", "Pizza", "25", 1),
		item("i2", "Soda", "3.99", 1),
	}
	got, err := Allocate(Request{
		Type:  models.SplitTypePercentage,
		Items: items,
		Defaults: []Share{
			{UserID: "alice", Percentage: pct("0.6")},
			{UserID: "bob", Percentage: pct("0.4")},
		},
		PerItem: map[string][]Share{
			"i2": {
				{UserID: "alice", Percentage: pct("0.3333")},
				{UserID: "bob", Percentage: pct("0.3333")},
				{UserID: "carol", Percentage: pct("0.3333")},
			},
		},
	})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	idx := byItemUser(got)
	assertEqualDecimal(t, "pizza alice", idx["i1"]["alice"].Amount, "15")
	assertEqualDecimal(t, "pizza bob", idx["i1"]["bob"].Amount, "10")
	assertEqualDecimal(t, "soda carol pct", idx["i2"]["carol"].Percentage, "0.3334")

	sum := decimal.Zero
	for _, a := range idx["i2"] {
		sum = sum.Add(a.Percentage)
	}
	assertEqualDecimal(t, "soda percentage sum", sum, "1")

	if err := CheckAllocation(items, got); err != nil {
		t.Errorf("CheckAllocation() error = %v", err)
	}
}

func TestAllocate_Custom(t *testing.T) {
	items := []models.ReceiptItem{item("i1", "Platter", "20", 1)}
	got, err := Allocate(Request{
		Type:  models.SplitTypeCustom,
		Items: items,
		PerItem: map[string][]Share{
			"i1": {
				{UserID: "alice", Amount: decimal.NewNullDecimal(d("12.50"))},
				{UserID: "bob", Amount: decimal.NewNullDecimal(d("7.49"))},
			},
		},
	})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	idx := byItemUser(got)
	assertEqualDecimal(t, "alice amount", idx["i1"]["alice"].Amount, "12.5")
	assertEqualDecimal(t, "bob amount absorbs cent", idx["i1"]["bob"].Amount, "7.5")
	assertEqualDecimal(t, "alice percentage", idx["i1"]["alice"].Percentage, "0.625")
	assertEqualDecimal(t, "bob percentage", idx["i1"]["bob"].Percentage, "0.375")
}

func TestAllocate_CustomZeroPriceItem(t *testing.T) {
	items := []models.ReceiptItem{item("i1", "Water", "0", 1)}
	got, err := Allocate(Request{
		Type:  models.SplitTypeCustom,
		Items: items,
		PerItem: map[string][]Share{
			"i1": {
				{UserID: "a", Amount: decimal.NewNullDecimal(decimal.Zero)},
				{UserID: "b", Amount: decimal.NewNullDecimal(decimal.Zero)},
			},
		},
	})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	assertEqualDecimal(t, "a percentage", got[0].Percentage, "0.5")
	assertEqualDecimal(t, "b percentage", got[1].Percentage, "0.5")
}

func TestAllocate_Errors(t *testing.T) {
	items := []models.ReceiptItem{item("i1", "Pizza", "20", 1)}

	tests := []struct {
		name string
		req  Request
	}{
		{
			name: "no items",
			req:  Request{Type: models.SplitTypeEqual, Participants: []string{"a"}},
		},
		{
			name: "equal without participants",
			req:  Request{Type: models.SplitTypeEqual, Items: items},
		},
		{
			name: "duplicate participant",
			req:  Request{Type: models.SplitTypeEqual, Items: items, Participants: []string{"a", "a"}},
		},
		{
			name: "unknown item",
			req: Request{Type: models.SplitTypeByItem, Items: items, Participants: []string{"a"},
				PerItem: map[string][]Share{"nope": {{UserID: "a"}}}},
		},
		{
			name: "by item left unallocated",
			req:  Request{Type: models.SplitTypeByItem, Items: items},
		},
		{
			name: "by item mixed weights",
			req: Request{Type: models.SplitTypeByItem, Items: items,
				PerItem: map[string][]Share{"i1": {{UserID: "a", Percentage: pct("0.5")}, {UserID: "b"}}}},
		},
		{
			name: "percentages under one",
			req: Request{Type: models.SplitTypePercentage, Items: items,
				Defaults: []Share{{UserID: "a", Percentage: pct("0.5")}, {UserID: "b", Percentage: pct("0.4")}}},
		},
		{
			name: "percentage out of range",
			req: Request{Type: models.SplitTypePercentage, Items: items,
				Defaults: []Share{{UserID: "a", Percentage: pct("1.5")}, {UserID: "b", Percentage: pct("-0.5")}}},
		},
		{
			name: "custom amounts do not add up",
			req: Request{Type: models.SplitTypeCustom, Items: items,
				PerItem: map[string][]Share{"i1": {
					{UserID: "a", Amount: decimal.NewNullDecimal(d("10"))},
					{UserID: "b", Amount: decimal.NewNullDecimal(d("9.9"))},
				}}},
		},
		{
			name: "custom negative amount",
			req: Request{Type: models.SplitTypeCustom, Items: items,
				PerItem: map[string][]Share{"i1": {
					{UserID: "a", Amount: decimal.NewNullDecimal(d("25"))},
					{UserID: "b", Amount: decimal.NewNullDecimal(d("-5"))},
				}}},
		},
		{
			name: "unknown split type",
			req:  Request{Type: "Lottery", Items: items, Participants: []string{"a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Allocate(tt.req)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrInvalidAllocation) {
				t.Errorf("expected ErrInvalidAllocation, got %v", err)
			}
		})
	}
}

// Every strategy must fully allocate every item, whatever the prices.
func TestAllocate_FullAllocationProperty(t *testing.T) {
	prices := []string{"0", "0.01", "0.05", "1", "3.33", "9.99", "10", "17.07", "99.95", "1234.56"}
	users := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7"}

	for n := 1; n <= len(users); n++ {
		var items []models.ReceiptItem
		for i, p := range prices {
			items = append(items, item(string(rune('a'+i)), "item", p, 1+i%3))
		}

		got, err := Allocate(Request{Type: models.SplitTypeEqual, Items: items, Participants: users[:n]})
		if err != nil {
			t.Fatalf("n=%d: Allocate() error = %v", n, err)
		}
		if err := CheckAllocation(items, got); err != nil {
			t.Errorf("n=%d: %v", n, err)
		}

		perItem := make(map[string]decimal.Decimal)
		for _, a := range got {
			perItem[a.ReceiptItemID] = perItem[a.ReceiptItemID].Add(a.Percentage)
			if a.Amount.IsNegative() || a.Percentage.IsNegative() {
				t.Errorf("n=%d: negative share %+v", n, a)
			}
		}
		for id, sum := range perItem {
			if !sum.Equal(one) {
				t.Errorf("n=%d item %s: percentages sum to %s, want exactly 1", n, id, sum)
			}
		}
	}
}

func TestCheckAllocation_DetectsGaps(t *testing.T) {
	items := []models.ReceiptItem{item("i1", "A", "10", 1), item("i2", "B", "5", 1)}
	assignments := []models.ItemAssignment{
		{ReceiptItemID: "i1", UserID: "a", Percentage: d("0.5"), Amount: d("5")},
		{ReceiptItemID: "i1", UserID: "b", Percentage: d("0.5"), Amount: d("5")},
	}
	if err := CheckAllocation(items, assignments); err == nil {
		t.Error("expected unallocated item error")
	}

	assignments = append(assignments, models.ItemAssignment{ReceiptItemID: "i2", UserID: "a", Percentage: d("0.9"), Amount: d("4.5")})
	if err := CheckAllocation(items, assignments); err == nil {
		t.Error("expected percentage sum error")
	}
}
