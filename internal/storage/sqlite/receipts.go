package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splittat/internal/models"
)

const receiptColumns = `id, user_id, merchant_name, purchase_date, total, tax, tip, image_url,
	status, confidence, error_message, created_at, updated_at`

const dateLayout = "2006-01-02"

func scanReceipt(row rowScanner) (*models.Receipt, error) {
	r := &models.Receipt{}
	var (
		date       sql.NullString
		status     string
		confidence sql.NullFloat64
	)
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.MerchantName,
		&date,
		&r.Total,
		&r.Tax,
		&r.Tip,
		&r.ImageURL,
		&status,
		&confidence,
		&r.ErrorMessage,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if r.Status, err = models.ParseReceiptStatus(status); err != nil {
		return nil, err
	}
	if date.Valid {
		t, err := time.Parse(dateLayout, date.String)
		if err != nil {
			return nil, fmt.Errorf("invalid purchase date %q: %w", date.String, err)
		}
		r.Date = &t
	}
	if confidence.Valid {
		c := confidence.Float64
		r.Confidence = &c
	}
	return r, nil
}

func dateValue(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func confidenceValue(c *float64) sql.NullFloat64 {
	if c == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *c, Valid: true}
}

// CreateReceipt persists a new receipt and its items.
func (s *SQLiteStore) CreateReceipt(ctx context.Context, r *models.Receipt) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if r.CreatedAt == 0 {
		r.CreatedAt = now
	}
	r.UpdatedAt = r.CreatedAt
	if r.Status == "" {
		r.Status = models.ReceiptStatusUploaded
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO receipts ("+receiptColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			r.ID, r.UserID, r.MerchantName, dateValue(r.Date), r.Total, r.Tax, r.Tip, r.ImageURL,
			string(r.Status), confidenceValue(r.Confidence), r.ErrorMessage, r.CreatedAt, r.UpdatedAt,
		)
		if err != nil {
			return mapErr(err, "failed to insert receipt")
		}
		return insertItems(ctx, tx, r)
	})
}

func insertItems(ctx context.Context, tx *sql.Tx, r *models.Receipt) error {
	for i := range r.Items {
		item := &r.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.ReceiptID = r.ID
		if item.Quantity == 0 {
			item.Quantity = 1
		}
		item.LineNumber = i + 1

		_, err := tx.ExecContext(ctx,
			"INSERT INTO receipt_items (id, receipt_id, name, price, quantity, line_number) VALUES (?, ?, ?, ?, ?, ?)",
			item.ID, item.ReceiptID, item.Name, item.Price, item.Quantity, item.LineNumber,
		)
		if err != nil {
			return mapErr(err, "failed to insert receipt item")
		}
	}
	return nil
}

// GetReceipt retrieves a receipt by ID with its items ordered by line number.
func (s *SQLiteStore) GetReceipt(ctx context.Context, id string) (*models.Receipt, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+receiptColumns+" FROM receipts WHERE id = ?", id)
	r, err := scanReceipt(row)
	if err != nil {
		return nil, mapErr(err, "failed to get receipt")
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, receipt_id, name, price, quantity, line_number FROM receipt_items WHERE receipt_id = ? ORDER BY line_number",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.ReceiptItem
		if err := rows.Scan(&item.ID, &item.ReceiptID, &item.Name, &item.Price, &item.Quantity, &item.LineNumber); err != nil {
			return nil, fmt.Errorf("failed to scan receipt item: %w", err)
		}
		r.Items = append(r.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipt items: %w", err)
	}

	return r, nil
}

// ListReceipts returns the user's receipts, newest first. Items are not loaded.
func (s *SQLiteStore) ListReceipts(ctx context.Context, userID string) ([]*models.Receipt, error) {
	return s.queryReceipts(ctx,
		"SELECT "+receiptColumns+" FROM receipts WHERE user_id = ? ORDER BY created_at DESC, rowid DESC",
		userID,
	)
}

// ListReceiptsByStatus returns receipts in any of statuses, oldest first.
// Items are not loaded.
func (s *SQLiteStore) ListReceiptsByStatus(ctx context.Context, statuses ...models.ReceiptStatus) ([]*models.Receipt, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}
	return s.queryReceipts(ctx,
		"SELECT "+receiptColumns+" FROM receipts WHERE status IN ("+placeholders(len(statuses))+") ORDER BY created_at, rowid",
		args...,
	)
}

func (s *SQLiteStore) queryReceipts(ctx context.Context, query string, args ...any) ([]*models.Receipt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*models.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipts: %w", err)
	}
	return receipts, nil
}

// UpdateReceiptStatus records a processing transition.
func (s *SQLiteStore) UpdateReceiptStatus(ctx context.Context, id string, status models.ReceiptStatus, errorMessage string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE receipts SET status = ?, error_message = ?, updated_at = ? WHERE id = ?",
		string(status), errorMessage, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update receipt status: %w", err)
	}
	return requireAffected(res, "failed to update receipt status")
}

// SaveReceiptContent overwrites merchant, date, money fields, status and items.
// Existing splits of the receipt are deleted since they reference the old items.
func (s *SQLiteStore) SaveReceiptContent(ctx context.Context, r *models.Receipt) error {
	r.UpdatedAt = time.Now().Unix()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE receipts
			SET merchant_name = ?, purchase_date = ?, total = ?, tax = ?, tip = ?,
			    status = ?, confidence = ?, error_message = ?, updated_at = ?
			WHERE id = ?`,
			r.MerchantName, dateValue(r.Date), r.Total, r.Tax, r.Tip,
			string(r.Status), confidenceValue(r.Confidence), r.ErrorMessage, r.UpdatedAt,
			r.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update receipt: %w", err)
		}
		if err := requireAffected(res, "failed to update receipt"); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM splits WHERE receipt_id = ?", r.ID); err != nil {
			return fmt.Errorf("failed to delete splits: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM receipt_items WHERE receipt_id = ?", r.ID); err != nil {
			return fmt.Errorf("failed to delete receipt items: %w", err)
		}

		for i := range r.Items {
			r.Items[i].ID = ""
		}
		return insertItems(ctx, tx, r)
	})
}

// DeleteReceipt removes a receipt. Items and splits cascade.
func (s *SQLiteStore) DeleteReceipt(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM receipts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete receipt: %w", err)
	}
	return requireAffected(res, "failed to delete receipt")
}
