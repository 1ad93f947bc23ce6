// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splittat/internal/models"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when an insert violates a uniqueness
	// constraint (duplicate email, duplicate group member).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStore persists user accounts. Emails are unique.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// GetUsersByIDs returns the users that exist among ids, keyed by ID.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// ReceiptStore persists receipts and their items.
type ReceiptStore interface {
	// CreateReceipt inserts the receipt and its items. Missing IDs and
	// timestamps are filled in.
	CreateReceipt(ctx context.Context, receipt *models.Receipt) error

	// GetReceipt returns the receipt with items ordered by line number.
	GetReceipt(ctx context.Context, id string) (*models.Receipt, error)

	// ListReceipts returns userID's receipts, newest first, without items.
	ListReceipts(ctx context.Context, userID string) ([]*models.Receipt, error)

	// ListReceiptsByStatus returns receipts of every user in any of
	// statuses, oldest first, without items.
	ListReceiptsByStatus(ctx context.Context, statuses ...models.ReceiptStatus) ([]*models.Receipt, error)

	// UpdateReceiptStatus sets status and error message.
	UpdateReceiptStatus(ctx context.Context, id string, status models.ReceiptStatus, errorMessage string) error

	// SaveReceiptContent replaces the receipt's fields and items in one
	// transaction and deletes splits of the receipt.
	SaveReceiptContent(ctx context.Context, receipt *models.Receipt) error

	// DeleteReceipt removes the receipt with its items and splits.
	DeleteReceipt(ctx context.Context, id string) error
}

// GroupStore persists groups and memberships.
type GroupStore interface {
	// CreateGroup inserts the group and its members.
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, id string) (*models.Group, error)

	// ListGroupsForUser returns groups userID is a member of.
	ListGroupsForUser(ctx context.Context, userID string) ([]*models.Group, error)

	// AddGroupMember returns ErrAlreadyExists if the user is already a member.
	AddGroupMember(ctx context.Context, member *models.GroupMember) error
	RemoveGroupMember(ctx context.Context, groupID, userID string) error
	DeleteGroup(ctx context.Context, id string) error
}

// SplitStore persists splits and their item assignments.
type SplitStore interface {
	CreateSplit(ctx context.Context, split *models.Split) error
	GetSplit(ctx context.Context, id string) (*models.Split, error)

	// ListSplitsByReceipt and ListSplitsByGroup return splits newest first.
	ListSplitsByReceipt(ctx context.Context, receiptID string) ([]*models.Split, error)
	ListSplitsByGroup(ctx context.Context, groupID string) ([]*models.Split, error)

	// UpdateSplit replaces the split type, group and assignments.
	UpdateSplit(ctx context.Context, split *models.Split) error
	DeleteSplit(ctx context.Context, id string) error
}

// Store defines the full persistence interface.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	UserStore
	ReceiptStore
	GroupStore
	SplitStore

	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
