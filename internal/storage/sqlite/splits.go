package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splittat/internal/models"
)

// CreateSplit persists a split and its assignments.
func (s *SQLiteStore) CreateSplit(ctx context.Context, split *models.Split) error {
	if split.ID == "" {
		split.ID = uuid.New().String()
	}
	if split.CreatedAt == 0 {
		split.CreatedAt = time.Now().Unix()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO splits (id, receipt_id, group_id, created_by, split_type, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			split.ID, split.ReceiptID, nullString(split.GroupID), split.CreatedBy, string(split.SplitType), split.CreatedAt,
		)
		if err != nil {
			return mapErr(err, "failed to insert split")
		}
		return insertAssignments(ctx, tx, split)
	})
}

func insertAssignments(ctx context.Context, tx *sql.Tx, split *models.Split) error {
	for i := range split.Assignments {
		a := &split.Assignments[i]
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		a.SplitID = split.ID
		_, err := tx.ExecContext(ctx,
			"INSERT INTO item_assignments (id, split_id, receipt_item_id, user_id, percentage, amount) VALUES (?, ?, ?, ?, ?, ?)",
			a.ID, a.SplitID, a.ReceiptItemID, a.UserID, a.Percentage, a.Amount,
		)
		if err != nil {
			return mapErr(err, "failed to insert item assignment")
		}
	}
	return nil
}

const splitColumns = "id, receipt_id, group_id, created_by, split_type, created_at"

func scanSplit(row rowScanner) (*models.Split, error) {
	var (
		split     models.Split
		groupID   sql.NullString
		splitType string
	)
	if err := row.Scan(&split.ID, &split.ReceiptID, &groupID, &split.CreatedBy, &splitType, &split.CreatedAt); err != nil {
		return nil, err
	}
	split.GroupID = groupID.String
	t, err := models.ParseSplitType(splitType)
	if err != nil {
		return nil, err
	}
	split.SplitType = t
	return &split, nil
}

// GetSplit retrieves a split with its assignments.
func (s *SQLiteStore) GetSplit(ctx context.Context, id string) (*models.Split, error) {
	split, err := scanSplit(s.db.QueryRowContext(ctx, "SELECT "+splitColumns+" FROM splits WHERE id = ?", id))
	if err != nil {
		return nil, mapErr(err, "failed to get split")
	}
	if err := s.loadAssignments(ctx, split); err != nil {
		return nil, err
	}
	return split, nil
}

// loadAssignments fills split.Assignments ordered by item line then insertion.
func (s *SQLiteStore) loadAssignments(ctx context.Context, split *models.Split) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.split_id, a.receipt_item_id, a.user_id, a.percentage, a.amount
		FROM item_assignments a
		JOIN receipt_items i ON i.id = a.receipt_item_id
		WHERE a.split_id = ?
		ORDER BY i.line_number, a.rowid`,
		split.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get item assignments: %w", err)
	}
	defer rows.Close()

	split.Assignments = nil
	for rows.Next() {
		var a models.ItemAssignment
		if err := rows.Scan(&a.ID, &a.SplitID, &a.ReceiptItemID, &a.UserID, &a.Percentage, &a.Amount); err != nil {
			return fmt.Errorf("failed to scan item assignment: %w", err)
		}
		split.Assignments = append(split.Assignments, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate item assignments: %w", err)
	}
	return nil
}

func (s *SQLiteStore) listSplits(ctx context.Context, where string, arg string) ([]*models.Split, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+splitColumns+" FROM splits WHERE "+where+" = ? ORDER BY created_at DESC, rowid DESC",
		arg,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}

	var splits []*models.Split
	for rows.Next() {
		split, err := scanSplit(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		splits = append(splits, split)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}

	for _, split := range splits {
		if err := s.loadAssignments(ctx, split); err != nil {
			return nil, err
		}
	}
	return splits, nil
}

// ListSplitsByReceipt returns the receipt's splits, newest first.
func (s *SQLiteStore) ListSplitsByReceipt(ctx context.Context, receiptID string) ([]*models.Split, error) {
	return s.listSplits(ctx, "receipt_id", receiptID)
}

// ListSplitsByGroup returns the group's splits, newest first.
func (s *SQLiteStore) ListSplitsByGroup(ctx context.Context, groupID string) ([]*models.Split, error) {
	return s.listSplits(ctx, "group_id", groupID)
}

// UpdateSplit replaces type, group and assignments of an existing split.
func (s *SQLiteStore) UpdateSplit(ctx context.Context, split *models.Split) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE splits SET group_id = ?, split_type = ? WHERE id = ?",
			nullString(split.GroupID), string(split.SplitType), split.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update split: %w", err)
		}
		if err := requireAffected(res, "failed to update split"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM item_assignments WHERE split_id = ?", split.ID); err != nil {
			return fmt.Errorf("failed to delete item assignments: %w", err)
		}
		for i := range split.Assignments {
			split.Assignments[i].ID = ""
		}
		return insertAssignments(ctx, tx, split)
	})
}

// DeleteSplit removes a split and its assignments.
func (s *SQLiteStore) DeleteSplit(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM splits WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete split: %w", err)
	}
	return requireAffected(res, "failed to delete split")
}
