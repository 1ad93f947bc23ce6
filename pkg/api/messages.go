package api

import "time"

// Money values are decimal amounts with two places, sent as JSON numbers.
// Percentages are fractions in [0, 1] with four places.

// User is the public view of an account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DisplayName string `json:"displayName"`
	CreatedAt   int64  `json:"createdAt"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReceiptItem is one line of a receipt.
type ReceiptItem struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	LineNumber int     `json:"lineNumber"`
	LineTotal  float64 `json:"lineTotal"`
}

// Reconciliation compares a receipt's total with its items, tax and tip.
type Reconciliation struct {
	ItemsSubtotal float64 `json:"itemsSubtotal"`
	Expected      float64 `json:"expected"`
	Discrepancy   float64 `json:"discrepancy"`
	Balanced      bool    `json:"balanced"`
}

// Receipt is an uploaded receipt. Items and Reconciliation are omitted in lists.
type Receipt struct {
	ID           string   `json:"id"`
	UserID       string   `json:"userId"`
	MerchantName string   `json:"merchantName,omitempty"`
	Date         string   `json:"date,omitempty"`
	Total        float64  `json:"total"`
	Tax          *float64 `json:"tax,omitempty"`
	Tip          *float64 `json:"tip,omitempty"`
	ImageURL     string   `json:"imageUrl"`

	// Status is the detailed processing status; Phase is Processing, Ready or Failed.
	Status       string   `json:"status"`
	Phase        string   `json:"phase"`
	Confidence   *float64 `json:"confidence,omitempty"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
	CreatedAt    int64    `json:"createdAt"`
	UpdatedAt    int64    `json:"updatedAt"`

	Items          []*ReceiptItem  `json:"items,omitempty"`
	Reconciliation *Reconciliation `json:"reconciliation,omitempty"`
}

// ListReceiptsResponse is returned by GET /api/receipts.
type ListReceiptsResponse struct {
	Receipts []*Receipt `json:"receipts"`
}

// ItemInput is an edited receipt line. Quantity defaults to 1.
type ItemInput struct {
	Name     string  `json:"name" validate:"required,max=200"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"omitempty,gte=1"`
}

// UpdateItemsRequest is the body of PUT /api/receipts/{id}/items.
// Nil optional fields keep their current value.
type UpdateItemsRequest struct {
	MerchantName *string      `json:"merchantName" validate:"omitempty,max=200"`
	Date         *string      `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Tax          *float64     `json:"tax" validate:"omitempty,gte=0"`
	Tip          *float64     `json:"tip" validate:"omitempty,gte=0"`
	Items        []*ItemInput `json:"items" validate:"required,min=1,dive,required"`
}

// GroupMember is a member of a group with user details.
type GroupMember struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	JoinedAt    int64  `json:"joinedAt"`
}

// Group is a named set of users.
type Group struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	CreatedBy string         `json:"createdBy"`
	CreatedAt int64          `json:"createdAt"`
	Members   []*GroupMember `json:"members"`
}

type CreateGroupRequest struct {
	Name string `json:"name"`

	// MemberEmails are added as Members; the caller becomes the Owner.
	MemberEmails []string `json:"memberEmails,omitempty"`
}

type CreateGroupResponse struct {
	Group *Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"groupId"`
}

type GetGroupResponse struct {
	Group *Group `json:"group"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []*Group `json:"groups"`
}

type AddMemberRequest struct {
	GroupID string `json:"groupId"`
	Email   string `json:"email"`
}

type AddMemberResponse struct {
	Group *Group `json:"group"`
}

type RemoveMemberRequest struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

type RemoveMemberResponse struct {
	Group *Group `json:"group"`
}

type DeleteGroupRequest struct {
	GroupID string `json:"groupId"`
}

type DeleteGroupResponse struct{}

type GetGroupBalancesRequest struct {
	GroupID string `json:"groupId"`
}

// MemberBalance is positive when the member is owed money.
type MemberBalance struct {
	UserID      string  `json:"userId"`
	DisplayName string  `json:"displayName"`
	NetBalance  float64 `json:"netBalance"`
	TotalPaid   float64 `json:"totalPaid"`
	TotalOwed   float64 `json:"totalOwed"`
}

// Debt says FromUserID owes ToUserID Amount.
type Debt struct {
	FromUserID string  `json:"fromUserId"`
	ToUserID   string  `json:"toUserId"`
	Amount     float64 `json:"amount"`
}

type GetGroupBalancesResponse struct {
	Balances []*MemberBalance `json:"balances"`
	Debts    []*Debt          `json:"debts"`
}

// Share is one user's requested share of an item. Percentage applies to
// ByItem and Percentage splits, Amount to Custom splits.
type Share struct {
	UserID     string   `json:"userId"`
	Percentage *float64 `json:"percentage,omitempty"`
	Amount     *float64 `json:"amount,omitempty"`
}

// ItemShares holds explicit shares for one receipt item.
type ItemShares struct {
	ItemID string   `json:"itemId"`
	Shares []*Share `json:"shares"`
}

// SplitInput describes how to split a receipt.
type SplitInput struct {
	ReceiptID string `json:"receiptId"`

	// GroupID scopes the split to a group; participants must be members.
	GroupID   string `json:"groupId,omitempty"`
	SplitType string `json:"splitType"`

	// ParticipantIDs is the pool for Equal splits and unassigned ByItem
	// items. Empty means every member of the group.
	ParticipantIDs []string      `json:"participantIds,omitempty"`
	DefaultShares  []*Share      `json:"defaultShares,omitempty"`
	ItemShares     []*ItemShares `json:"itemShares,omitempty"`
}

// ItemAssignment is a user's share of one item.
type ItemAssignment struct {
	ID         string  `json:"id,omitempty"`
	ItemID     string  `json:"itemId"`
	UserID     string  `json:"userId"`
	Percentage float64 `json:"percentage"`
	Amount     float64 `json:"amount"`
}

type PersonItem struct {
	ItemID     string  `json:"itemId"`
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
	Amount     float64 `json:"amount"`
}

// PersonSplit is one user's total for a split, with proportional tax and tip.
type PersonSplit struct {
	UserID      string        `json:"userId"`
	DisplayName string        `json:"displayName"`
	Subtotal    float64       `json:"subtotal"`
	Tax         float64       `json:"tax"`
	Tip         float64       `json:"tip"`
	Total       float64       `json:"total"`
	Items       []*PersonItem `json:"items"`
}

type SplitSummary struct {
	People   []*PersonSplit `json:"people"`
	Subtotal float64        `json:"subtotal"`
	Tax      float64        `json:"tax"`
	Tip      float64        `json:"tip"`
	Total    float64        `json:"total"`
}

// Split is a persisted split of a receipt.
type Split struct {
	ID          string            `json:"id"`
	ReceiptID   string            `json:"receiptId"`
	GroupID     string            `json:"groupId,omitempty"`
	CreatedBy   string            `json:"createdBy"`
	SplitType   string            `json:"splitType"`
	CreatedAt   int64             `json:"createdAt"`
	Assignments []*ItemAssignment `json:"assignments"`
	Summary     *SplitSummary     `json:"summary"`
}

type PreviewSplitRequest struct {
	SplitInput
}

type PreviewSplitResponse struct {
	Assignments []*ItemAssignment `json:"assignments"`
	Summary     *SplitSummary     `json:"summary"`
}

type CreateSplitRequest struct {
	SplitInput
}

type CreateSplitResponse struct {
	Split *Split `json:"split"`
}

type GetSplitRequest struct {
	SplitID string `json:"splitId"`
}

type GetSplitResponse struct {
	Split *Split `json:"split"`
}

type ListSplitsRequest struct {
	ReceiptID string `json:"receiptId"`
}

type ListSplitsResponse struct {
	Splits []*Split `json:"splits"`
}

// UpdateSplitRequest recomputes a split. SplitInput.ReceiptID is ignored.
type UpdateSplitRequest struct {
	SplitID string `json:"splitId"`
	SplitInput
}

type UpdateSplitResponse struct {
	Split *Split `json:"split"`
}

type DeleteSplitRequest struct {
	SplitID string `json:"splitId"`
}

type DeleteSplitResponse struct{}
