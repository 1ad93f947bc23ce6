package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splittat/internal/auth"
	"github.com/mmynk/splittat/internal/calculator"
	"github.com/mmynk/splittat/internal/metrics"
	"github.com/mmynk/splittat/internal/middleware"
	"github.com/mmynk/splittat/internal/models"
	"github.com/mmynk/splittat/internal/storage"
	"github.com/mmynk/splittat/pkg/api"
	"github.com/mmynk/splittat/pkg/api/apiconnect"
)

const maxGroupNameLength = 100

// GroupService implements the Connect GroupService.
type GroupService struct {
	store   storage.Store
	metrics *metrics.Metrics
}

var _ apiconnect.GroupServiceHandler = (*GroupService)(nil)

// NewGroupService creates a new GroupService with the given storage backend.
// m may be nil.
func NewGroupService(store storage.Store, m *metrics.Metrics) *GroupService {
	return &GroupService{store: store, metrics: m}
}

// callerID returns the authenticated user set by middleware.RequireAuth.
func callerID(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return userID, nil
}

// CreateGroup creates a group with the caller as Owner.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	const procedure = "CreateGroup"
	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"members_count", len(req.Msg.MemberEmails),
	)

	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, connectError(procedure, invalidArgument("group name is required"))
	}
	if len(name) > maxGroupNameLength {
		return nil, connectError(procedure, invalidArgument("group name must not exceed %d characters", maxGroupNameLength))
	}

	group := &models.Group{
		Name:      name,
		CreatedBy: caller,
		Members:   []models.GroupMember{{UserID: caller, Role: models.GroupRoleOwner}},
	}
	seen := map[string]bool{caller: true}
	for _, email := range req.Msg.MemberEmails {
		user, err := s.store.GetUserByEmail(ctx, models.NormalizeEmail(email))
		if errors.Is(err, storage.ErrNotFound) {
			return nil, connectError(procedure, invalidArgument("no user registered with email %q", email))
		}
		if err != nil {
			return nil, connectError(procedure, err)
		}
		if seen[user.ID] {
			continue
		}
		seen[user.ID] = true
		group.Members = append(group.Members, models.GroupMember{UserID: user.ID, Role: models.GroupRoleMember})
	}

	// Save to storage (generates IDs and timestamps)
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, connectError(procedure, err)
	}

	slog.Info("Group created", "group_id", group.ID, "members_count", len(group.Members))
	s.metrics.GroupEvent("created")

	out, err := s.groupResponse(ctx, group)
	if err != nil {
		return nil, connectError(procedure, err)
	}
	return connect.NewResponse(&api.CreateGroupResponse{Group: out}), nil
}

// GetGroup returns a group the caller belongs to.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	const procedure = "GetGroup"
	slog.Info("GetGroup request received", "group_id", req.Msg.GroupID)

	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	group, err := s.memberGroup(ctx, req.Msg.GroupID, caller)
	if err != nil {
		return nil, connectError(procedure, err)
	}

	out, err := s.groupResponse(ctx, group)
	if err != nil {
		return nil, connectError(procedure, err)
	}

	slog.Info("GetGroup successful", "group_id", group.ID, "name", group.Name)
	return connect.NewResponse(&api.GetGroupResponse{Group: out}), nil
}

// ListGroups returns the groups the caller is a member of.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	const procedure = "ListGroups"
	slog.Info("ListGroups request received")

	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	groups, err := s.store.ListGroupsForUser(ctx, caller)
	if err != nil {
		return nil, connectError(procedure, err)
	}

	var ids []string
	for _, g := range groups {
		ids = append(ids, g.MemberIDs()...)
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, connectError(procedure, err)
	}

	out := make([]*api.Group, len(groups))
	for i, g := range groups {
		out[i] = toAPIGroup(g, users)
	}

	slog.Info("ListGroups successful", "count", len(groups))
	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// AddMember adds a registered user by email. Only the owner may add members.
func (s *GroupService) AddMember(ctx context.Context, req *connect.Request[api.AddMemberRequest]) (*connect.Response[api.AddMemberResponse], error) {
	const procedure = "AddMember"
	slog.Info("AddMember request received", "group_id", req.Msg.GroupID, "email", req.Msg.Email)

	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	group, err := s.ownedGroup(ctx, req.Msg.GroupID, caller)
	if err != nil {
		return nil, connectError(procedure, err)
	}

	email := models.NormalizeEmail(req.Msg.Email)
	if email == "" {
		return nil, connectError(procedure, invalidArgument("email is required"))
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = notFound("user")
		}
		return nil, connectError(procedure, err)
	}

	member := &models.GroupMember{GroupID: group.ID, UserID: user.ID, Role: models.GroupRoleMember}
	if err := s.store.AddGroupMember(ctx, member); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			err = fmt.Errorf("user is already a member: %w", ErrAlreadyExists)
		}
		return nil, connectError(procedure, err)
	}

	slog.Info("Member added", "group_id", group.ID, "user_id", user.ID)
	s.metrics.GroupEvent("member_added")
	out, err := s.reloadGroup(ctx, group.ID)
	if err != nil {
		return nil, connectError(procedure, err)
	}
	return connect.NewResponse(&api.AddMemberResponse{Group: out}), nil
}

// RemoveMember removes a member. The owner may remove anyone but
// themselves; members may remove only themselves.
func (s *GroupService) RemoveMember(ctx context.Context, req *connect.Request[api.RemoveMemberRequest]) (*connect.Response[api.RemoveMemberResponse], error) {
	const procedure = "RemoveMember"
	slog.Info("RemoveMember request received", "group_id", req.Msg.GroupID, "user_id", req.Msg.UserID)

	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	group, err := s.memberGroup(ctx, req.Msg.GroupID, caller)
	if err != nil {
		return nil, connectError(procedure, err)
	}
	target, ok := group.Member(req.Msg.UserID)
	switch {
	case !ok:
		return nil, connectError(procedure, notFound("member"))
	case target.Role == models.GroupRoleOwner:
		return nil, connectError(procedure, failedPrecondition("the group owner cannot be removed"))
	case target.UserID != caller && !group.IsOwner(caller):
		return nil, connectError(procedure, permissionDenied("only the group owner can remove members"))
	}

	if err := s.store.RemoveGroupMember(ctx, group.ID, target.UserID); err != nil {
		return nil, connectError(procedure, err)
	}

	slog.Info("Member removed", "group_id", group.ID, "user_id", target.UserID)
	s.metrics.GroupEvent("member_removed")
	out, err := s.reloadGroup(ctx, group.ID)
	if err != nil {
		return nil, connectError(procedure, err)
	}
	return connect.NewResponse(&api.RemoveMemberResponse{Group: out}), nil
}

// DeleteGroup removes a group. Its splits stay with their receipts.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[api.DeleteGroupRequest]) (*connect.Response[api.DeleteGroupResponse], error) {
	const procedure = "DeleteGroup"
	slog.Info("DeleteGroup request received", "group_id", req.Msg.GroupID)

	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.ownedGroup(ctx, req.Msg.GroupID, caller); err != nil {
		return nil, connectError(procedure, err)
	}
	if err := s.store.DeleteGroup(ctx, req.Msg.GroupID); err != nil {
		return nil, connectError(procedure, err)
	}

	slog.Info("Group deleted", "group_id", req.Msg.GroupID)
	s.metrics.GroupEvent("deleted")
	return connect.NewResponse(&api.DeleteGroupResponse{}), nil
}

// GetGroupBalances calculates balances across all splits in a group.
// The owner of each receipt is its payer.
func (s *GroupService) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	const procedure = "GetGroupBalances"
	groupID := req.Msg.GroupID
	slog.Info("GetGroupBalances request received", "group_id", groupID)

	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.memberGroup(ctx, groupID, caller); err != nil {
		return nil, connectError(procedure, err)
	}

	splits, err := s.store.ListSplitsByGroup(ctx, groupID)
	if err != nil {
		return nil, connectError(procedure, err)
	}

	// Splits come newest first. A receipt is paid once, so only its latest
	// split counts.
	counted := make(map[string]bool)
	forBalance := make([]calculator.SplitForBalance, 0, len(splits))
	for _, split := range splits {
		if counted[split.ReceiptID] {
			continue
		}
		counted[split.ReceiptID] = true

		receipt, err := s.store.GetReceipt(ctx, split.ReceiptID)
		if err != nil {
			slog.Error("GetGroupBalances failed - could not get receipt", "receipt_id", split.ReceiptID, "error", err)
			return nil, connectError(procedure, err)
		}
		summary := calculator.Summarize(receipt, split.Assignments)
		forBalance = append(forBalance, calculator.SplitForBalance{
			PayerID: receipt.UserID,
			People:  summary.People,
		})
	}

	balances, debts := calculator.CalculateGroupBalances(forBalance)

	ids := make([]string, len(balances))
	for i, b := range balances {
		ids[i] = b.UserID
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, connectError(procedure, err)
	}

	resp := &api.GetGroupBalancesResponse{
		Balances: make([]*api.MemberBalance, len(balances)),
		Debts:    make([]*api.Debt, len(debts)),
	}
	for i, b := range balances {
		out := &api.MemberBalance{
			UserID:     b.UserID,
			NetBalance: money(b.NetBalance),
			TotalPaid:  money(b.TotalPaid),
			TotalOwed:  money(b.TotalOwed),
		}
		if u, ok := users[b.UserID]; ok {
			out.DisplayName = u.DisplayName()
		}
		resp.Balances[i] = out
	}
	for i, d := range debts {
		resp.Debts[i] = &api.Debt{FromUserID: d.From, ToUserID: d.To, Amount: money(d.Amount)}
	}

	slog.Info("GetGroupBalances successful",
		"group_id", groupID,
		"receipts_count", len(forBalance),
		"debts_count", len(debts),
	)
	return connect.NewResponse(resp), nil
}

// memberGroup loads a group and checks that userID belongs to it.
func (s *GroupService) memberGroup(ctx context.Context, groupID, userID string) (*models.Group, error) {
	return loadMemberGroup(ctx, s.store, groupID, userID)
}

func loadMemberGroup(ctx context.Context, store storage.GroupStore, groupID, userID string) (*models.Group, error) {
	if groupID == "" {
		return nil, invalidArgument("group_id required")
	}
	group, err := store.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFound("group")
		}
		return nil, err
	}
	if _, ok := group.Member(userID); !ok {
		return nil, permissionDenied("not a member of this group")
	}
	return group, nil
}

// ownedGroup loads a group and checks that userID owns it.
func (s *GroupService) ownedGroup(ctx context.Context, groupID, userID string) (*models.Group, error) {
	group, err := s.memberGroup(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !group.IsOwner(userID) {
		return nil, permissionDenied("only the group owner can do this")
	}
	return group, nil
}

func (s *GroupService) groupResponse(ctx context.Context, group *models.Group) (*api.Group, error) {
	users, err := s.store.GetUsersByIDs(ctx, group.MemberIDs())
	if err != nil {
		return nil, err
	}
	return toAPIGroup(group, users), nil
}

// reloadGroup reads a group back after a membership change.
func (s *GroupService) reloadGroup(ctx context.Context, groupID string) (*api.Group, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.groupResponse(ctx, group)
}
