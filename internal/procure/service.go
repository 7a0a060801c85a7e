package procure

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/siteproc/siteproc/internal/numbering"
	"github.com/siteproc/siteproc/internal/shared"
)

// AuditPort records lifecycle history, reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the procurement pipeline.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService constructs the procurement service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// RequestItemInput describes one line of a requisition batch.
type RequestItemInput struct {
	ItemName    string
	Quantity    decimal.Decimal
	Unit        string
	Description string
	IsUrgent    bool
	RequiredBy  time.Time
}

// CreateRequestsInput describes a multi-item submission.
type CreateRequestsInput struct {
	SiteID    int64
	CreatorID int64
	AsDraft   bool
	Items     []RequestItemInput
}

// CreateRequests persists a requisition batch. All items share one request
// number; the numbering allocation and the inserts commit together.
func (s *Service) CreateRequests(ctx context.Context, input CreateRequestsInput) ([]Request, error) {
	if len(input.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item required", ErrValidation)
	}
	for i, item := range input.Items {
		if item.ItemName == "" || item.Unit == "" {
			return nil, fmt.Errorf("%w: item %d needs name and unit", ErrValidation, i+1)
		}
		if item.Quantity.Sign() <= 0 {
			return nil, ErrInvalidQuantity
		}
	}
	ok, err := s.repo.SiteExists(ctx, input.SiteID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSiteNotFound
	}

	status := RequestStatusPending
	if input.AsDraft {
		status = RequestStatusDraft
	}

	var created []Request
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx, numbering.ScopeRequest)
		if err != nil {
			return err
		}
		for i, item := range input.Items {
			req := Request{
				RequestNumber: number,
				ItemOrder:     i + 1,
				ItemName:      item.ItemName,
				Quantity:      item.Quantity,
				Unit:          item.Unit,
				Description:   item.Description,
				IsUrgent:      item.IsUrgent,
				Status:        status,
				SiteID:        input.SiteID,
				CreatorID:     input.CreatorID,
				RequiredBy:    item.RequiredBy,
			}
			id, err := tx.InsertRequest(ctx, req)
			if err != nil {
				return err
			}
			req.ID = id
			created = append(created, req)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, input.CreatorID, "REQUEST_CREATE", "request", created[0].RequestNumber,
		map[string]any{"items": len(created), "site_id": input.SiteID})
	return created, nil
}

// SubmitRequest moves a draft to pending, making it visible to managers.
func (s *Service) SubmitRequest(ctx context.Context, requestID, actorID int64) error {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status != RequestStatusDraft {
		return ErrInvalidTransition
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateRequestStatus(ctx, requestID, RequestStatusDraft, RequestStatusPending)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "REQUEST_SUBMIT", "request", req.RequestNumber, nil)
	return nil
}

// ApproveRequest lets a manager approve a draft or pending item. The request
// auto-advances to ready_for_cc so the purchase officer can start sourcing.
func (s *Service) ApproveRequest(ctx context.Context, requestID, managerID int64) error {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status != RequestStatusDraft && req.Status != RequestStatusPending {
		return ErrInvalidTransition
	}
	now := time.Now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetRequestApproved(ctx, requestID, managerID, now)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, managerID, "REQUEST_APPROVE", "request", req.RequestNumber,
		map[string]any{"item_order": req.ItemOrder})
	return nil
}

// RejectRequest terminates a pending item. Rejection is only legal at the
// initial manager gate; later stages reject through the cost comparison.
func (s *Service) RejectRequest(ctx context.Context, requestID, managerID int64, reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: rejection reason required", ErrValidation)
	}
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status != RequestStatusPending {
		return ErrInvalidTransition
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetRequestRejected(ctx, requestID, reason)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, managerID, "REQUEST_REJECT", "request", req.RequestNumber,
		map[string]any{"reason": reason})
	return nil
}

// GetRequest loads one requisition item.
func (s *Service) GetRequest(ctx context.Context, requestID int64) (Request, error) {
	return s.repo.GetRequest(ctx, requestID)
}

// ListRequests returns a filtered page of requests plus the total count.
func (s *Service) ListRequests(ctx context.Context, limit, offset int, filters RequestFilters) ([]Request, int, error) {
	return s.repo.ListRequests(ctx, limit, offset, filters)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	})
}
