package procure

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/siteproc/siteproc/internal/numbering"
	"github.com/siteproc/siteproc/internal/quantity"
)

// DeliveryInput records a full or partial fulfillment of a request.
type DeliveryInput struct {
	RequestID     int64
	DeliverQty    decimal.Decimal
	DeliveryType  DeliveryType
	PartyName     string
	ContactPhone  string
	VendorID      int64
	ReceiverName  string
	Photos        []PhotoRef
	PaymentAmount decimal.Decimal
	PaymentStatus PaymentStatus
	ActorID       int64
}

// DeliveryResult reports the outcome of a fulfillment. Sibling is non-nil
// only for partial deliveries, carrying the remainder as a new pending item.
type DeliveryResult struct {
	Delivery Delivery
	Updated  Request
	Sibling  *Request
}

func validateDeliveryParty(input DeliveryInput) error {
	switch input.DeliveryType {
	case DeliveryTypeVendor:
		if input.VendorID == 0 {
			return fmt.Errorf("%w: vendor delivery needs a vendor", ErrValidation)
		}
	case DeliveryTypePrivate, DeliveryTypePublic:
		if input.PartyName == "" {
			return fmt.Errorf("%w: party name required for %s delivery", ErrValidation, input.DeliveryType)
		}
	default:
		return fmt.Errorf("%w: unknown delivery type %q", ErrValidation, input.DeliveryType)
	}
	if input.ReceiverName == "" {
		return fmt.Errorf("%w: receiver name required", ErrValidation)
	}
	return nil
}

// MarkReadyForDelivery records a challan against a request in delivery_stage.
// A full delivery closes the request; a partial one shrinks the request to
// the delivered amount, leaves it in delivery_stage, and spawns a sibling
// pending item carrying the exact remainder. Challan insert, quantity rewrite
// and sibling creation commit as one unit.
func (s *Service) MarkReadyForDelivery(ctx context.Context, input DeliveryInput) (DeliveryResult, error) {
	if err := validateDeliveryParty(input); err != nil {
		return DeliveryResult{}, err
	}
	if input.DeliveryType == DeliveryTypeVendor && input.VendorID != 0 {
		ok, err := s.repo.VendorExists(ctx, input.VendorID)
		if err != nil {
			return DeliveryResult{}, err
		}
		if !ok {
			return DeliveryResult{}, ErrVendorNotFound
		}
	}
	req, err := s.repo.GetRequest(ctx, input.RequestID)
	if err != nil {
		return DeliveryResult{}, err
	}
	if req.Status != RequestStatusDeliveryStage {
		return DeliveryResult{}, ErrInvalidTransition
	}
	if _, err := quantity.SplitQuantity(req.Quantity, input.DeliverQty); err != nil {
		return DeliveryResult{}, err
	}

	paymentStatus := input.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = PaymentStatusUnpaid
	}

	var result DeliveryResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Re-read under lock; the amounts above may be stale by now.
		locked, err := tx.GetRequestForUpdate(ctx, input.RequestID)
		if err != nil {
			return err
		}
		if locked.Status != RequestStatusDeliveryStage {
			return ErrStaleState
		}
		split, err := quantity.SplitQuantity(locked.Quantity, input.DeliverQty)
		if err != nil {
			return err
		}

		challan, err := tx.NextNumber(ctx, numbering.ScopeChallan)
		if err != nil {
			return err
		}
		delivery := Delivery{
			ChallanNumber: challan,
			RequestID:     input.RequestID,
			DeliveryType:  input.DeliveryType,
			PartyName:     input.PartyName,
			ContactPhone:  input.ContactPhone,
			VendorID:      input.VendorID,
			ReceiverName:  input.ReceiverName,
			Quantity:      split.Deliver,
			Photos:        input.Photos,
			PaymentAmount: input.PaymentAmount,
			PaymentStatus: paymentStatus,
		}
		deliveryID, err := tx.InsertDelivery(ctx, delivery)
		if err != nil {
			return err
		}
		delivery.ID = deliveryID
		result.Delivery = delivery

		if split.Remainder.IsZero() {
			if err := tx.UpdateRequestStatus(ctx, input.RequestID, RequestStatusDeliveryStage, RequestStatusDelivered); err != nil {
				return err
			}
			locked.Status = RequestStatusDelivered
			result.Updated = locked
			return nil
		}

		// Partial: the original shrinks to the delivered amount and stays in
		// delivery_stage; the remainder re-enters the pipeline as a new
		// pending item. Only full consumption closes a request.
		if err := tx.UpdateRequestQuantity(ctx, input.RequestID, split.Deliver); err != nil {
			return err
		}
		locked.Quantity = split.Deliver
		result.Updated = locked

		maxOrder, err := tx.MaxItemOrder(ctx, locked.RequestNumber)
		if err != nil {
			return err
		}
		sibling := Request{
			RequestNumber: locked.RequestNumber,
			ItemOrder:     maxOrder + 1,
			ParentID:      locked.ID,
			ItemName:      locked.ItemName,
			Quantity:      split.Remainder,
			Unit:          locked.Unit,
			Description:   locked.Description,
			IsUrgent:      locked.IsUrgent,
			Status:        RequestStatusPending,
			SiteID:        locked.SiteID,
			CreatorID:     locked.CreatorID,
			RequiredBy:    locked.RequiredBy,
		}
		siblingID, err := tx.InsertRequest(ctx, sibling)
		if err != nil {
			return err
		}
		sibling.ID = siblingID
		result.Sibling = &sibling
		return nil
	})
	if err != nil {
		return DeliveryResult{}, err
	}

	meta := map[string]any{
		"challan":   result.Delivery.ChallanNumber,
		"delivered": result.Delivery.Quantity.String(),
	}
	if result.Sibling != nil {
		meta["remainder"] = result.Sibling.Quantity.String()
	}
	s.recordAudit(ctx, input.ActorID, "DELIVERY_RECORD", "request", req.RequestNumber, meta)
	return result, nil
}

// UpdateDeliveryPayment settles or partially settles a challan. The challan
// itself is immutable; only the payment fields move.
func (s *Service) UpdateDeliveryPayment(ctx context.Context, deliveryID int64, amount decimal.Decimal, status PaymentStatus, actorID int64) error {
	switch status {
	case PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusPaid:
	default:
		return fmt.Errorf("%w: unknown payment status %q", ErrValidation, status)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: payment amount must not be negative", ErrValidation)
	}
	d, err := s.repo.GetDelivery(ctx, deliveryID)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateDeliveryPayment(ctx, deliveryID, amount, status)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "DELIVERY_PAYMENT", "delivery", d.ChallanNumber,
		map[string]any{"amount": amount.String(), "status": string(status)})
	return nil
}

// GetDelivery loads one challan.
func (s *Service) GetDelivery(ctx context.Context, deliveryID int64) (Delivery, error) {
	return s.repo.GetDelivery(ctx, deliveryID)
}

// ListDeliveries returns the challans recorded against a request.
func (s *Service) ListDeliveries(ctx context.Context, requestID int64) ([]Delivery, error) {
	return s.repo.ListDeliveries(ctx, requestID)
}
