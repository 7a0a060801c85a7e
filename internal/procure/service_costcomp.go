package procure

import (
	"context"
	"fmt"
)

// ReviewAction is the manager's decision on a pending cost comparison.
type ReviewAction string

const (
	ReviewApprove ReviewAction = "approve"
	ReviewReject  ReviewAction = "reject"
)

// UpsertCCInput describes the purchase officer's draft quote set.
type UpsertCCInput struct {
	RequestID        int64
	Quotes           []VendorQuote
	IsDirectDelivery bool
	ActorID          int64
}

// ReviewCCInput describes the manager's resolution.
type ReviewCCInput struct {
	RequestID        int64
	Action           ReviewAction
	SelectedVendorID int64
	Notes            string
	ManagerID        int64
}

func (s *Service) validateQuotes(ctx context.Context, quotes []VendorQuote) error {
	seen := make(map[int64]bool, len(quotes))
	for _, q := range quotes {
		if q.VendorID == 0 {
			return fmt.Errorf("%w: quote needs a vendor", ErrValidation)
		}
		if seen[q.VendorID] {
			return fmt.Errorf("%w: duplicate vendor %d in quote set", ErrValidation, q.VendorID)
		}
		seen[q.VendorID] = true
		if q.UnitPrice.Sign() < 0 {
			return fmt.Errorf("%w: unit price must not be negative", ErrValidation)
		}
		ok, err := s.repo.VendorExists(ctx, q.VendorID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrVendorNotFound
		}
	}
	return nil
}

// UpsertCostComparison writes or overwrites the sourcing draft for a request
// at the ready_for_cc stage. Re-entering draft mode overwrites, never
// duplicates, and does not change workflow status.
func (s *Service) UpsertCostComparison(ctx context.Context, input UpsertCCInput) (CostComparison, error) {
	req, err := s.repo.GetRequest(ctx, input.RequestID)
	if err != nil {
		return CostComparison{}, err
	}
	if req.Status != RequestStatusReadyForCC {
		return CostComparison{}, ErrInvalidTransition
	}
	if err := s.validateQuotes(ctx, input.Quotes); err != nil {
		return CostComparison{}, err
	}

	cc := CostComparison{
		RequestID:        input.RequestID,
		Quotes:           input.Quotes,
		IsDirectDelivery: input.IsDirectDelivery,
		Status:           CCStatusDraft,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpsertCostComparison(ctx, cc)
	})
	if err != nil {
		return CostComparison{}, err
	}
	s.recordAudit(ctx, input.ActorID, "CC_UPSERT", "request", req.RequestNumber,
		map[string]any{"quotes": len(input.Quotes), "direct_delivery": input.IsDirectDelivery})
	return s.repo.GetCostComparison(ctx, input.RequestID)
}

// SubmitCostComparison sends the draft to the manager. Requires at least one
// vendor quote unless the item is inventory-stocked (direct delivery);
// direct delivery exempts sourcing, not approval.
func (s *Service) SubmitCostComparison(ctx context.Context, requestID, actorID int64) error {
	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status != RequestStatusReadyForCC {
		return ErrInvalidTransition
	}
	cc, err := s.repo.GetCostComparison(ctx, requestID)
	if err != nil {
		return err
	}
	if cc.Status != CCStatusDraft && cc.Status != CCStatusRejected {
		return ErrInvalidTransition
	}
	if len(cc.Quotes) == 0 && !cc.IsDirectDelivery {
		return ErrEmptyQuoteSet
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.SubmitCC(ctx, requestID); err != nil {
			return err
		}
		return tx.UpdateRequestStatus(ctx, requestID, RequestStatusReadyForCC, RequestStatusCCPending)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "CC_SUBMIT", "request", req.RequestNumber, nil)
	return nil
}

// ResubmitCostComparison combines upsert and submit after a rejection,
// clearing the manager's notes. Only legal from cc_rejected.
func (s *Service) ResubmitCostComparison(ctx context.Context, input UpsertCCInput) error {
	req, err := s.repo.GetRequest(ctx, input.RequestID)
	if err != nil {
		return err
	}
	if req.Status != RequestStatusReadyForCC {
		return ErrInvalidTransition
	}
	cc, err := s.repo.GetCostComparison(ctx, input.RequestID)
	if err != nil {
		return err
	}
	if cc.Status != CCStatusRejected {
		return ErrInvalidTransition
	}
	if err := s.validateQuotes(ctx, input.Quotes); err != nil {
		return err
	}
	if len(input.Quotes) == 0 && !input.IsDirectDelivery {
		return ErrEmptyQuoteSet
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpsertCostComparison(ctx, CostComparison{
			RequestID:        input.RequestID,
			Quotes:           input.Quotes,
			IsDirectDelivery: input.IsDirectDelivery,
			Status:           CCStatusRejected,
		}); err != nil {
			return err
		}
		if err := tx.SubmitCC(ctx, input.RequestID); err != nil {
			return err
		}
		return tx.UpdateRequestStatus(ctx, input.RequestID, RequestStatusReadyForCC, RequestStatusCCPending)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, input.ActorID, "CC_RESUBMIT", "request", req.RequestNumber,
		map[string]any{"quotes": len(input.Quotes)})
	return nil
}

// ReviewCostComparison resolves a pending comparison. Approval selects the
// winning vendor and moves the request to ready_for_po; rejection records
// notes and hands the request back to the purchase officer. Both the
// comparison and the owning request commit in one transaction.
func (s *Service) ReviewCostComparison(ctx context.Context, input ReviewCCInput) error {
	req, err := s.repo.GetRequest(ctx, input.RequestID)
	if err != nil {
		return err
	}
	if req.Status != RequestStatusCCPending {
		return ErrInvalidTransition
	}
	cc, err := s.repo.GetCostComparison(ctx, input.RequestID)
	if err != nil {
		return err
	}
	if cc.Status != CCStatusPending {
		return ErrInvalidTransition
	}

	switch input.Action {
	case ReviewApprove:
		if input.SelectedVendorID == 0 {
			if !cc.IsDirectDelivery {
				return fmt.Errorf("%w: vendor selection required", ErrValidation)
			}
		} else if _, ok := cc.QuoteFor(input.SelectedVendorID); !ok {
			return ErrVendorNotQuoted
		}
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := tx.ApproveCC(ctx, input.RequestID, input.SelectedVendorID); err != nil {
				return err
			}
			return tx.UpdateRequestStatus(ctx, input.RequestID, RequestStatusCCPending, RequestStatusReadyForPO)
		})
		if err != nil {
			return err
		}
		s.recordAudit(ctx, input.ManagerID, "CC_APPROVE", "request", req.RequestNumber,
			map[string]any{"vendor_id": input.SelectedVendorID})
		return nil

	case ReviewReject:
		if input.Notes == "" {
			return fmt.Errorf("%w: rejection notes required", ErrValidation)
		}
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := tx.RejectCC(ctx, input.RequestID, input.Notes); err != nil {
				return err
			}
			return tx.UpdateRequestStatus(ctx, input.RequestID, RequestStatusCCPending, RequestStatusReadyForCC)
		})
		if err != nil {
			return err
		}
		s.recordAudit(ctx, input.ManagerID, "CC_REJECT", "request", req.RequestNumber,
			map[string]any{"notes": input.Notes})
		return nil

	default:
		return fmt.Errorf("%w: unknown review action %q", ErrValidation, input.Action)
	}
}

// GetCostComparison loads the comparison owned by a request.
func (s *Service) GetCostComparison(ctx context.Context, requestID int64) (CostComparison, error) {
	return s.repo.GetCostComparison(ctx, requestID)
}
