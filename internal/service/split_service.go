package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splittat/internal/calculator"
	"github.com/mmynk/splittat/internal/metrics"
	"github.com/mmynk/splittat/internal/models"
	"github.com/mmynk/splittat/internal/storage"
	"github.com/mmynk/splittat/pkg/api"
	"github.com/mmynk/splittat/pkg/api/apiconnect"
)

// SplitService implements the Connect SplitService.
type SplitService struct {
	store   storage.Store
	metrics *metrics.Metrics
}

var _ apiconnect.SplitServiceHandler = (*SplitService)(nil)

// NewSplitService creates a new SplitService with the given storage backend.
// m may be nil.
func NewSplitService(store storage.Store, m *metrics.Metrics) *SplitService {
	return &SplitService{store: store, metrics: m}
}

// resolved is a validated split request.
type resolved struct {
	receipt *models.Receipt
	groupID string
	request calculator.Request
}

// resolve checks that caller owns a Ready receipt and that every
// participant is allowed, then builds the calculator request.
func (s *SplitService) resolve(ctx context.Context, caller, receiptID string, in api.SplitInput) (*resolved, error) {
	if receiptID == "" {
		return nil, invalidArgument("receipt_id required")
	}
	receipt, err := s.store.GetReceipt(ctx, receiptID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFound("receipt")
		}
		return nil, err
	}
	if receipt.UserID != caller {
		return nil, permissionDenied("only the receipt owner can split it")
	}
	if receipt.Status != models.ReceiptStatusReady {
		return nil, failedPrecondition("receipt is not ready (status %s)", receipt.Status)
	}

	splitType, err := models.ParseSplitType(in.SplitType)
	if err != nil {
		return nil, invalidArgument("%v", err)
	}

	req := calculator.Request{
		Type:         splitType,
		Items:        receipt.Items,
		Participants: in.ParticipantIDs,
		Defaults:     toCalculatorShares(in.DefaultShares),
		PerItem:      make(map[string][]calculator.Share, len(in.ItemShares)),
	}
	for _, is := range in.ItemShares {
		if is == nil {
			continue
		}
		req.PerItem[is.ItemID] = append(req.PerItem[is.ItemID], toCalculatorShares(is.Shares)...)
	}

	// Everyone named anywhere in the request.
	var named []string
	named = append(named, req.Participants...)
	for _, sh := range req.Defaults {
		named = append(named, sh.UserID)
	}
	for _, shares := range req.PerItem {
		for _, sh := range shares {
			named = append(named, sh.UserID)
		}
	}

	if in.GroupID != "" {
		group, err := loadMemberGroup(ctx, s.store, in.GroupID, caller)
		if err != nil {
			return nil, err
		}
		for _, id := range named {
			if _, ok := group.Member(id); !ok {
				return nil, invalidArgument("user %q is not a member of the group", id)
			}
		}
		if len(req.Participants) == 0 {
			req.Participants = group.MemberIDs()
		}
	} else if len(named) > 0 {
		users, err := s.store.GetUsersByIDs(ctx, named)
		if err != nil {
			return nil, err
		}
		for _, id := range named {
			if _, ok := users[id]; !ok {
				return nil, invalidArgument("unknown user %q", id)
			}
		}
	}

	return &resolved{receipt: receipt, groupID: in.GroupID, request: req}, nil
}

// PreviewSplit computes a split without saving it.
func (s *SplitService) PreviewSplit(ctx context.Context, req *connect.Request[api.PreviewSplitRequest]) (*connect.Response[api.PreviewSplitResponse], error) {
	const procedure = "PreviewSplit"
	slog.Info("PreviewSplit request received",
		"receipt_id", req.Msg.ReceiptID,
		"split_type", req.Msg.SplitType,
		"participants_count", len(req.Msg.ParticipantIDs),
	)

	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	r, err := s.resolve(ctx, caller, req.Msg.ReceiptID, req.Msg.SplitInput)
	if err != nil {
		return nil, connectError(procedure, err)
	}
	assignments, err := calculator.Allocate(r.request)
	if err != nil {
		return nil, connectError(procedure, err)
	}

	users, err := s.assignees(ctx, assignments)
	if err != nil {
		return nil, connectError(procedure, err)
	}

	return connect.NewResponse(&api.PreviewSplitResponse{
		Assignments: toAPIAssignments(assignments),
		Summary:     toAPISummary(calculator.Summarize(r.receipt, assignments), users),
	}), nil
}

// CreateSplit computes and saves a split.
func (s *SplitService) CreateSplit(ctx context.Context, req *connect.Request[api.CreateSplitRequest]) (*connect.Response[api.CreateSplitResponse], error) {
	const procedure = "CreateSplit"
	slog.Info("CreateSplit request received",
		"receipt_id", req.Msg.ReceiptID,
		"group_id", req.Msg.GroupID,
		"split_type", req.Msg.SplitType,
	)

	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	r, err := s.resolve(ctx, caller, req.Msg.ReceiptID, req.Msg.SplitInput)
	if err != nil {
		return nil, connectError(procedure, err)
	}
	assignments, err := calculator.Allocate(r.request)
	if err != nil {
		return nil, connectError(procedure, err)
	}

	split := &models.Split{
		ReceiptID:   r.receipt.ID,
		GroupID:     r.groupID,
		CreatedBy:   caller,
		SplitType:   r.request.Type,
		Assignments: assignments,
	}

	// Save to storage (generates IDs and CreatedAt)
	if err := s.store.CreateSplit(ctx, split); err != nil {
		return nil, connectError(procedure, err)
	}
	s.metrics.SplitSaved(string(split.SplitType))

	slog.Info("Split created", "split_id", split.ID, "assignments_count", len(split.Assignments))

	out, err := s.splitResponse(ctx, split, r.receipt)
	if err != nil {
		return nil, connectError(procedure, err)
	}
	return connect.NewResponse(&api.CreateSplitResponse{Split: out}), nil
}

// GetSplit returns a split readable by the caller.
func (s *SplitService) GetSplit(ctx context.Context, req *connect.Request[api.GetSplitRequest]) (*connect.Response[api.GetSplitResponse], error) {
	const procedure = "GetSplit"
	slog.Info("GetSplit request received", "split_id", req.Msg.SplitID)

	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	split, receipt, err := s.loadSplit(ctx, req.Msg.SplitID)
	if err != nil {
		return nil, connectError(procedure, err)
	}
	ok, err := s.canRead(ctx, caller, split, receipt)
	if err != nil {
		return nil, connectError(procedure, err)
	}
	if !ok {
		return nil, connectError(procedure, permissionDenied("no access to this split"))
	}

	out, err := s.splitResponse(ctx, split, receipt)
	if err != nil {
		return nil, connectError(procedure, err)
	}

	slog.Info("GetSplit successful", "split_id", split.ID)
	return connect.NewResponse(&api.GetSplitResponse{Split: out}), nil
}

// ListSplits returns the splits of a receipt that the caller can read.
func (s *SplitService) ListSplits(ctx context.Context, req *connect.Request[api.ListSplitsRequest]) (*connect.Response[api.ListSplitsResponse], error) {
	const procedure = "ListSplits"
	slog.Info("ListSplits request received", "receipt_id", req.Msg.ReceiptID)

	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if req.Msg.ReceiptID == "" {
		return nil, connectError(procedure, invalidArgument("receipt_id required"))
	}
	receipt, err := s.store.GetReceipt(ctx, req.Msg.ReceiptID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = notFound("receipt")
		}
		return nil, connectError(procedure, err)
	}

	splits, err := s.store.ListSplitsByReceipt(ctx, receipt.ID)
	if err != nil {
		return nil, connectError(procedure, err)
	}

	out := make([]*api.Split, 0, len(splits))
	for _, split := range splits {
		ok, err := s.canRead(ctx, caller, split, receipt)
		if err != nil {
			return nil, connectError(procedure, err)
		}
		if !ok {
			continue
		}
		converted, err := s.splitResponse(ctx, split, receipt)
		if err != nil {
			return nil, connectError(procedure, err)
		}
		out = append(out, converted)
	}

	slog.Info("ListSplits successful", "receipt_id", receipt.ID, "count", len(out))
	return connect.NewResponse(&api.ListSplitsResponse{Splits: out}), nil
}

// UpdateSplit recomputes an existing split from new inputs.
func (s *SplitService) UpdateSplit(ctx context.Context, req *connect.Request[api.UpdateSplitRequest]) (*connect.Response[api.UpdateSplitResponse], error) {
	const procedure = "UpdateSplit"
	slog.Info("UpdateSplit request received",
		"split_id", req.Msg.SplitID,
		"split_type", req.Msg.SplitType,
	)

	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	existing, _, err := s.loadSplit(ctx, req.Msg.SplitID)
	if err != nil {
		return nil, connectError(procedure, err)
	}
	r, err := s.resolve(ctx, caller, existing.ReceiptID, req.Msg.SplitInput)
	if err != nil {
		return nil, connectError(procedure, err)
	}
	assignments, err := calculator.Allocate(r.request)
	if err != nil {
		return nil, connectError(procedure, err)
	}

	existing.GroupID = r.groupID
	existing.SplitType = r.request.Type
	existing.Assignments = assignments
	if err := s.store.UpdateSplit(ctx, existing); err != nil {
		return nil, connectError(procedure, err)
	}
	s.metrics.SplitSaved(string(existing.SplitType))

	slog.Info("Split updated", "split_id", existing.ID)

	out, err := s.splitResponse(ctx, existing, r.receipt)
	if err != nil {
		return nil, connectError(procedure, err)
	}
	return connect.NewResponse(&api.UpdateSplitResponse{Split: out}), nil
}

// DeleteSplit removes a split. Only the receipt owner may delete it.
func (s *SplitService) DeleteSplit(ctx context.Context, req *connect.Request[api.DeleteSplitRequest]) (*connect.Response[api.DeleteSplitResponse], error) {
	const procedure = "DeleteSplit"
	slog.Info("DeleteSplit request received", "split_id", req.Msg.SplitID)

	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	split, receipt, err := s.loadSplit(ctx, req.Msg.SplitID)
	if err != nil {
		return nil, connectError(procedure, err)
	}
	if receipt.UserID != caller {
		return nil, connectError(procedure, permissionDenied("only the receipt owner can delete splits"))
	}

	if err := s.store.DeleteSplit(ctx, split.ID); err != nil {
		return nil, connectError(procedure, err)
	}

	slog.Info("Split deleted", "split_id", split.ID)
	return connect.NewResponse(&api.DeleteSplitResponse{}), nil
}

func (s *SplitService) loadSplit(ctx context.Context, splitID string) (*models.Split, *models.Receipt, error) {
	if splitID == "" {
		return nil, nil, invalidArgument("split_id required")
	}
	split, err := s.store.GetSplit(ctx, splitID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, notFound("split")
		}
		return nil, nil, err
	}
	receipt, err := s.store.GetReceipt(ctx, split.ReceiptID)
	if err != nil {
		return nil, nil, err
	}
	return split, receipt, nil
}

// canRead allows the receipt owner, anyone assigned a share, and members
// of the split's group.
func (s *SplitService) canRead(ctx context.Context, caller string, split *models.Split, receipt *models.Receipt) (bool, error) {
	if receipt.UserID == caller {
		return true, nil
	}
	for _, a := range split.Assignments {
		if a.UserID == caller {
			return true, nil
		}
	}
	if split.GroupID == "" {
		return false, nil
	}
	_, err := loadMemberGroup(ctx, s.store, split.GroupID, caller)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *SplitService) assignees(ctx context.Context, assignments []models.ItemAssignment) (map[string]*models.User, error) {
	ids := make([]string, len(assignments))
	for i, a := range assignments {
		ids[i] = a.UserID
	}
	return s.store.GetUsersByIDs(ctx, ids)
}

func (s *SplitService) splitResponse(ctx context.Context, split *models.Split, receipt *models.Receipt) (*api.Split, error) {
	users, err := s.assignees(ctx, split.Assignments)
	if err != nil {
		return nil, err
	}
	return toAPISplit(split, receipt, users), nil
}
