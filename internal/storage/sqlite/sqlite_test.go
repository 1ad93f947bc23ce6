package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splittat/internal/models"
	"github.com/mmynk/splittat/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createUser(t *testing.T, store *SQLiteStore, email string) *models.User {
	t.Helper()
	user := models.NewUser(email, "Test", "User", "hash")
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, store, "alice@example.com")

	t.Run("GetUserByEmail is case insensitive", func(t *testing.T) {
		got, err := store.GetUserByEmail(ctx, "  ALICE@example.com")
		if err != nil {
			t.Fatalf("GetUserByEmail failed: %v", err)
		}
		if got.ID != alice.ID || got.FirstName != "Test" {
			t.Errorf("got %+v, want %+v", got, alice)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup := models.NewUser("Alice@Example.com", "A", "B", "hash")
		err := store.CreateUser(ctx, dup)
		if !errors.Is(err, storage.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := store.GetUserByID(ctx, "nonexistent-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		_, err = store.GetUserByEmail(ctx, "nobody@example.com")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("GetUsersByIDs skips unknown ids", func(t *testing.T) {
		bob := createUser(t, store, "bob@example.com")
		users, err := store.GetUsersByIDs(ctx, []string{alice.ID, bob.ID, "ghost"})
		if err != nil {
			t.Fatalf("GetUsersByIDs failed: %v", err)
		}
		if len(users) != 2 || users[bob.ID].Email != "bob@example.com" {
			t.Errorf("unexpected users: %v", users)
		}
	})
}

func TestReceipts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := createUser(t, store, "owner@example.com")

	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	confidence := 0.87
	receipt := &models.Receipt{
		UserID:       owner.ID,
		MerchantName: "Corner Deli",
		Date:         &date,
		Total:        dec("27.50"),
		Tax:          decimal.NewNullDecimal(dec("2.50")),
		ImageURL:     "receipts/owner/abc.jpg",
		Confidence:   &confidence,
		Items: []models.ReceiptItem{
			{Name: "Sandwich", Price: dec("9.00"), Quantity: 2},
			{Name: "Soda", Price: dec("7.00")},
		},
	}

	t.Run("CreateReceipt fills defaults", func(t *testing.T) {
		if err := store.CreateReceipt(ctx, receipt); err != nil {
			t.Fatalf("CreateReceipt failed: %v", err)
		}
		if receipt.ID == "" || receipt.CreatedAt == 0 {
			t.Error("Expected ID and CreatedAt to be set")
		}
		if receipt.Status != models.ReceiptStatusUploaded {
			t.Errorf("Status = %s, want Uploaded", receipt.Status)
		}
		if receipt.Items[1].Quantity != 1 || receipt.Items[1].LineNumber != 2 {
			t.Errorf("item defaults not applied: %+v", receipt.Items[1])
		}
	})

	t.Run("GetReceipt round trips", func(t *testing.T) {
		got, err := store.GetReceipt(ctx, receipt.ID)
		if err != nil {
			t.Fatalf("GetReceipt failed: %v", err)
		}
		if got.MerchantName != "Corner Deli" || !got.Total.Equal(dec("27.5")) {
			t.Errorf("unexpected receipt: %+v", got)
		}
		if !got.Tax.Valid || !got.Tax.Decimal.Equal(dec("2.5")) {
			t.Errorf("Tax = %+v", got.Tax)
		}
		if got.Tip.Valid {
			t.Errorf("Tip should be null, got %v", got.Tip)
		}
		if got.Date == nil || !got.Date.Equal(date) {
			t.Errorf("Date = %v, want %v", got.Date, date)
		}
		if got.Confidence == nil || *got.Confidence != confidence {
			t.Errorf("Confidence = %v", got.Confidence)
		}
		if len(got.Items) != 2 || got.Items[0].Name != "Sandwich" || got.Items[0].Quantity != 2 {
			t.Errorf("unexpected items: %+v", got.Items)
		}
	})

	t.Run("UpdateReceiptStatus", func(t *testing.T) {
		if err := store.UpdateReceiptStatus(ctx, receipt.ID, models.ReceiptStatusFailed, "extractor down"); err != nil {
			t.Fatalf("UpdateReceiptStatus failed: %v", err)
		}
		got, _ := store.GetReceipt(ctx, receipt.ID)
		if got.Status != models.ReceiptStatusFailed || got.ErrorMessage != "extractor down" {
			t.Errorf("status = %s, message = %q", got.Status, got.ErrorMessage)
		}

		err := store.UpdateReceiptStatus(ctx, "missing", models.ReceiptStatusReady, "")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListReceipts newest first", func(t *testing.T) {
		newer := &models.Receipt{UserID: owner.ID, CreatedAt: receipt.CreatedAt + 60}
		if err := store.CreateReceipt(ctx, newer); err != nil {
			t.Fatalf("CreateReceipt failed: %v", err)
		}
		list, err := store.ListReceipts(ctx, owner.ID)
		if err != nil {
			t.Fatalf("ListReceipts failed: %v", err)
		}
		if len(list) != 2 || list[0].ID != newer.ID {
			t.Errorf("unexpected order: %v", list)
		}
		if len(list[1].Items) != 0 {
			t.Error("ListReceipts should not load items")
		}
	})

	t.Run("ListReceiptsByStatus", func(t *testing.T) {
		other := createUser(t, store, "other@example.com")
		pending := &models.Receipt{UserID: other.ID, Status: models.ReceiptStatusOcrInProgress}
		if err := store.CreateReceipt(ctx, pending); err != nil {
			t.Fatalf("CreateReceipt failed: %v", err)
		}
		list, err := store.ListReceiptsByStatus(ctx, models.ProcessingStatuses...)
		if err != nil {
			t.Fatalf("ListReceiptsByStatus failed: %v", err)
		}
		for _, r := range list {
			if r.Status.IsTerminal() {
				t.Errorf("unexpected terminal receipt %s in %s", r.ID, r.Status)
			}
		}
		found := false
		for _, r := range list {
			found = found || r.ID == pending.ID
		}
		if !found {
			t.Errorf("expected %s across users, got %d receipts", pending.ID, len(list))
		}

		none, err := store.ListReceiptsByStatus(ctx)
		if err != nil || len(none) != 0 {
			t.Errorf("no statuses: got %v, %v", none, err)
		}
	})

	t.Run("GetReceipt missing", func(t *testing.T) {
		_, err := store.GetReceipt(ctx, "nonexistent-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSaveReceiptContentDeletesSplits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := createUser(t, store, "owner@example.com")

	receipt := &models.Receipt{
		UserID: owner.ID,
		Status: models.ReceiptStatusReady,
		Total:  dec("10"),
		Items:  []models.ReceiptItem{{Name: "Tea", Price: dec("10"), Quantity: 1}},
	}
	if err := store.CreateReceipt(ctx, receipt); err != nil {
		t.Fatalf("CreateReceipt failed: %v", err)
	}
	split := &models.Split{
		ReceiptID: receipt.ID,
		CreatedBy: owner.ID,
		SplitType: models.SplitTypeEqual,
		Assignments: []models.ItemAssignment{
			{ReceiptItemID: receipt.Items[0].ID, UserID: owner.ID, Percentage: dec("1"), Amount: dec("10")},
		},
	}
	if err := store.CreateSplit(ctx, split); err != nil {
		t.Fatalf("CreateSplit failed: %v", err)
	}

	receipt.Items = []models.ReceiptItem{
		{Name: "Coffee", Price: dec("4"), Quantity: 2},
		{Name: "Muffin", Price: dec("3"), Quantity: 1},
	}
	receipt.Total = dec("11")
	receipt.MerchantName = "Cafe"
	if err := store.SaveReceiptContent(ctx, receipt); err != nil {
		t.Fatalf("SaveReceiptContent failed: %v", err)
	}

	got, err := store.GetReceipt(ctx, receipt.ID)
	if err != nil {
		t.Fatalf("GetReceipt failed: %v", err)
	}
	if len(got.Items) != 2 || got.Items[0].Name != "Coffee" || got.MerchantName != "Cafe" {
		t.Errorf("unexpected receipt after save: %+v", got)
	}

	if _, err := store.GetSplit(ctx, split.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected split to be deleted, got %v", err)
	}
}

func TestGroups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice@example.com")
	bob := createUser(t, store, "bob@example.com")
	carol := createUser(t, store, "carol@example.com")

	group := &models.Group{
		Name:      "Roommates",
		CreatedBy: alice.ID,
		Members: []models.GroupMember{
			{UserID: alice.ID, Role: models.GroupRoleOwner},
			{UserID: bob.ID},
		},
	}
	if err := store.CreateGroup(ctx, group); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	t.Run("GetGroup returns members", func(t *testing.T) {
		got, err := store.GetGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if got.Name != "Roommates" || len(got.Members) != 2 {
			t.Fatalf("unexpected group: %+v", got)
		}
		if !got.IsOwner(alice.ID) || got.IsOwner(bob.ID) {
			t.Errorf("unexpected roles: %+v", got.Members)
		}
	})

	t.Run("member uniqueness", func(t *testing.T) {
		err := store.AddGroupMember(ctx, &models.GroupMember{GroupID: group.ID, UserID: bob.ID})
		if !errors.Is(err, storage.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("ListGroupsForUser", func(t *testing.T) {
		if err := store.AddGroupMember(ctx, &models.GroupMember{GroupID: group.ID, UserID: carol.ID}); err != nil {
			t.Fatalf("AddGroupMember failed: %v", err)
		}
		groups, err := store.ListGroupsForUser(ctx, carol.ID)
		if err != nil {
			t.Fatalf("ListGroupsForUser failed: %v", err)
		}
		if len(groups) != 1 || len(groups[0].Members) != 3 {
			t.Errorf("unexpected groups: %+v", groups)
		}
	})

	t.Run("RemoveGroupMember", func(t *testing.T) {
		if err := store.RemoveGroupMember(ctx, group.ID, carol.ID); err != nil {
			t.Fatalf("RemoveGroupMember failed: %v", err)
		}
		err := store.RemoveGroupMember(ctx, group.ID, carol.ID)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("DeleteGroup keeps splits", func(t *testing.T) {
		receipt := &models.Receipt{
			UserID: alice.ID,
			Items:  []models.ReceiptItem{{Name: "Rent", Price: dec("100")}},
		}
		if err := store.CreateReceipt(ctx, receipt); err != nil {
			t.Fatalf("CreateReceipt failed: %v", err)
		}
		split := &models.Split{ReceiptID: receipt.ID, GroupID: group.ID, CreatedBy: alice.ID, SplitType: models.SplitTypeEqual}
		if err := store.CreateSplit(ctx, split); err != nil {
			t.Fatalf("CreateSplit failed: %v", err)
		}

		if err := store.DeleteGroup(ctx, group.ID); err != nil {
			t.Fatalf("DeleteGroup failed: %v", err)
		}
		if _, err := store.GetGroup(ctx, group.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		got, err := store.GetSplit(ctx, split.ID)
		if err != nil {
			t.Fatalf("GetSplit failed: %v", err)
		}
		if got.GroupID != "" {
			t.Errorf("GroupID = %q, want cleared", got.GroupID)
		}
	})
}

func TestSplits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice@example.com")
	bob := createUser(t, store, "bob@example.com")

	receipt := &models.Receipt{
		UserID: alice.ID,
		Status: models.ReceiptStatusReady,
		Items: []models.ReceiptItem{
			{Name: "Pizza", Price: dec("10")},
			{Name: "Wine", Price: dec("20")},
		},
	}
	if err := store.CreateReceipt(ctx, receipt); err != nil {
		t.Fatalf("CreateReceipt failed: %v", err)
	}
	pizza, wine := receipt.Items[0].ID, receipt.Items[1].ID

	split := &models.Split{
		ReceiptID: receipt.ID,
		CreatedBy: alice.ID,
		SplitType: models.SplitTypeEqual,
		Assignments: []models.ItemAssignment{
			{ReceiptItemID: wine, UserID: alice.ID, Percentage: dec("0.5"), Amount: dec("10")},
			{ReceiptItemID: wine, UserID: bob.ID, Percentage: dec("0.5"), Amount: dec("10")},
			{ReceiptItemID: pizza, UserID: alice.ID, Percentage: dec("0.5"), Amount: dec("5")},
			{ReceiptItemID: pizza, UserID: bob.ID, Percentage: dec("0.5"), Amount: dec("5")},
		},
	}

	t.Run("CreateSplit and GetSplit", func(t *testing.T) {
		if err := store.CreateSplit(ctx, split); err != nil {
			t.Fatalf("CreateSplit failed: %v", err)
		}
		got, err := store.GetSplit(ctx, split.ID)
		if err != nil {
			t.Fatalf("GetSplit failed: %v", err)
		}
		if got.SplitType != models.SplitTypeEqual || got.GroupID != "" {
			t.Errorf("unexpected split: %+v", got)
		}
		if len(got.Assignments) != 4 {
			t.Fatalf("expected 4 assignments, got %d", len(got.Assignments))
		}
		// Ordered by item line number.
		if got.Assignments[0].ReceiptItemID != pizza {
			t.Errorf("first assignment item = %s, want pizza", got.Assignments[0].ReceiptItemID)
		}
		if !got.Assignments[2].Amount.Equal(dec("10")) {
			t.Errorf("amount = %s", got.Assignments[2].Amount)
		}
	})

	t.Run("duplicate assignment rejected", func(t *testing.T) {
		bad := &models.Split{
			ReceiptID: receipt.ID,
			CreatedBy: alice.ID,
			SplitType: models.SplitTypeCustom,
			Assignments: []models.ItemAssignment{
				{ReceiptItemID: pizza, UserID: bob.ID, Percentage: dec("0.5"), Amount: dec("5")},
				{ReceiptItemID: pizza, UserID: bob.ID, Percentage: dec("0.5"), Amount: dec("5")},
			},
		}
		if err := store.CreateSplit(ctx, bad); !errors.Is(err, storage.ErrAlreadyExists) {
			t.Errorf("expected ErrAlreadyExists, got %v", err)
		}
		list, _ := store.ListSplitsByReceipt(ctx, receipt.ID)
		if len(list) != 1 {
			t.Errorf("failed insert should roll back, got %d splits", len(list))
		}
	})

	t.Run("UpdateSplit replaces assignments", func(t *testing.T) {
		split.SplitType = models.SplitTypeByItem
		split.Assignments = []models.ItemAssignment{
			{ReceiptItemID: pizza, UserID: bob.ID, Percentage: dec("1"), Amount: dec("10")},
			{ReceiptItemID: wine, UserID: alice.ID, Percentage: dec("1"), Amount: dec("20")},
		}
		if err := store.UpdateSplit(ctx, split); err != nil {
			t.Fatalf("UpdateSplit failed: %v", err)
		}
		got, _ := store.GetSplit(ctx, split.ID)
		if got.SplitType != models.SplitTypeByItem || len(got.Assignments) != 2 {
			t.Errorf("unexpected split after update: %+v", got)
		}
	})

	t.Run("DeleteSplit", func(t *testing.T) {
		if err := store.DeleteSplit(ctx, split.ID); err != nil {
			t.Fatalf("DeleteSplit failed: %v", err)
		}
		if err := store.DeleteSplit(ctx, split.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("DeleteReceipt cascades", func(t *testing.T) {
		again := &models.Split{ReceiptID: receipt.ID, CreatedBy: alice.ID, SplitType: models.SplitTypeEqual}
		if err := store.CreateSplit(ctx, again); err != nil {
			t.Fatalf("CreateSplit failed: %v", err)
		}
		if err := store.DeleteReceipt(ctx, receipt.ID); err != nil {
			t.Fatalf("DeleteReceipt failed: %v", err)
		}
		if _, err := store.GetSplit(ctx, again.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected cascade delete, got %v", err)
		}
	})
}
