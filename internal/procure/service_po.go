package procure

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/siteproc/siteproc/internal/numbering"
)

// CreatePOInput issues an order for an approved request.
type CreatePOInput struct {
	RequestID  int64
	VendorID   int64
	UnitRate   decimal.Decimal
	GSTTaxRate decimal.Decimal
	HSNSACCode string
	ValidTill  time.Time
	ActorID    int64
}

// DirectPOInput issues an emergency order bypassing request and comparison.
type DirectPOInput struct {
	ItemDescription string
	HSNSACCode      string
	Quantity        decimal.Decimal
	Unit            string
	VendorID        int64
	DeliverySiteID  int64
	UnitRate        decimal.Decimal
	GSTTaxRate      decimal.Decimal
	ValidTill       time.Time
	ActorID         int64
}

// CreatePOFromRequest converts a ready_for_po request into an ordered PO.
// The selected vendor of the approved cost comparison binds the order; the
// request advances to delivery_stage in the same transaction.
func (s *Service) CreatePOFromRequest(ctx context.Context, input CreatePOInput) (PurchaseOrder, error) {
	req, err := s.repo.GetRequest(ctx, input.RequestID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if req.Status != RequestStatusReadyForPO {
		return PurchaseOrder{}, ErrInvalidTransition
	}
	cc, err := s.repo.GetCostComparison(ctx, input.RequestID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if cc.Status != CCStatusApproved {
		return PurchaseOrder{}, ErrInvalidTransition
	}
	if cc.SelectedVendorID != 0 && cc.SelectedVendorID != input.VendorID {
		return PurchaseOrder{}, fmt.Errorf("%w: vendor %d was not the approved selection",
			ErrValidation, input.VendorID)
	}
	if err := s.validatePOInputs(ctx, input.VendorID, req.SiteID, input.UnitRate, input.GSTTaxRate); err != nil {
		return PurchaseOrder{}, err
	}

	po := PurchaseOrder{
		RequestID:       input.RequestID,
		ItemDescription: req.ItemName,
		HSNSACCode:      input.HSNSACCode,
		Quantity:        req.Quantity,
		Unit:            req.Unit,
		VendorID:        input.VendorID,
		DeliverySiteID:  req.SiteID,
		UnitRate:        input.UnitRate,
		GSTTaxRate:      input.GSTTaxRate,
		TotalAmount:     POTotal(req.Quantity, input.UnitRate, input.GSTTaxRate),
		ValidTill:       input.ValidTill,
		Status:          POStatusOrdered,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx, numbering.ScopePurchaseOrder)
		if err != nil {
			return err
		}
		po.PONumber = number
		id, err := tx.InsertPO(ctx, po)
		if err != nil {
			return err
		}
		po.ID = id
		return tx.UpdateRequestStatus(ctx, input.RequestID, RequestStatusReadyForPO, RequestStatusDeliveryStage)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, input.ActorID, "PO_CREATE", "purchase_order", po.PONumber,
		map[string]any{"request_id": input.RequestID, "vendor_id": input.VendorID, "total": po.TotalAmount.String()})
	return po, nil
}

// CreateDirectPO issues an emergency order. All validation happens before
// the transaction: a rejected input never consumes a PO number.
func (s *Service) CreateDirectPO(ctx context.Context, input DirectPOInput) (PurchaseOrder, error) {
	if input.ItemDescription == "" || input.Unit == "" {
		return PurchaseOrder{}, fmt.Errorf("%w: item description and unit required", ErrValidation)
	}
	if input.Quantity.Sign() <= 0 {
		return PurchaseOrder{}, ErrInvalidQuantity
	}
	if !input.ValidTill.After(time.Now()) {
		return PurchaseOrder{}, fmt.Errorf("%w: valid-till must be in the future", ErrValidation)
	}
	if err := s.validatePOInputs(ctx, input.VendorID, input.DeliverySiteID, input.UnitRate, input.GSTTaxRate); err != nil {
		return PurchaseOrder{}, err
	}

	po := PurchaseOrder{
		ItemDescription: input.ItemDescription,
		HSNSACCode:      input.HSNSACCode,
		Quantity:        input.Quantity,
		Unit:            input.Unit,
		VendorID:        input.VendorID,
		DeliverySiteID:  input.DeliverySiteID,
		UnitRate:        input.UnitRate,
		GSTTaxRate:      input.GSTTaxRate,
		TotalAmount:     POTotal(input.Quantity, input.UnitRate, input.GSTTaxRate),
		ValidTill:       input.ValidTill,
		Status:          POStatusOrdered,
		IsDirect:        true,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx, numbering.ScopePurchaseOrder)
		if err != nil {
			return err
		}
		po.PONumber = number
		id, err := tx.InsertPO(ctx, po)
		if err != nil {
			return err
		}
		po.ID = id
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, input.ActorID, "PO_CREATE_DIRECT", "purchase_order", po.PONumber,
		map[string]any{"vendor_id": input.VendorID, "total": po.TotalAmount.String()})
	return po, nil
}

func (s *Service) validatePOInputs(ctx context.Context, vendorID, siteID int64, unitRate, gstRate decimal.Decimal) error {
	if unitRate.Sign() <= 0 {
		return fmt.Errorf("%w: unit rate must be positive", ErrValidation)
	}
	if gstRate.Sign() < 0 {
		return fmt.Errorf("%w: gst rate must not be negative", ErrValidation)
	}
	ok, err := s.repo.VendorExists(ctx, vendorID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVendorNotFound
	}
	ok, err = s.repo.SiteExists(ctx, siteID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSiteNotFound
	}
	return nil
}

// UpdatePOStatus commits ordered->delivered or ordered->cancelled; nothing
// else is legal and no transition reverses.
func (s *Service) UpdatePOStatus(ctx context.Context, poID int64, to POStatus, actualDeliveryDate time.Time, actorID int64) error {
	if to != POStatusDelivered && to != POStatusCancelled {
		return ErrInvalidTransition
	}
	po, err := s.repo.GetPO(ctx, poID)
	if err != nil {
		return err
	}
	if po.Status.Terminal() {
		return ErrAlreadyTerminal
	}
	if po.Status != POStatusOrdered {
		return ErrInvalidTransition
	}
	if to == POStatusDelivered && actualDeliveryDate.IsZero() {
		return fmt.Errorf("%w: actual delivery date required", ErrValidation)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdatePOStatus(ctx, poID, to, actualDeliveryDate)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "PO_STATUS", "purchase_order", po.PONumber,
		map[string]any{"status": string(to)})
	return nil
}

// CancelPO is shorthand for cancelling an ordered PO. A PO that already
// reached a terminal state reports ErrAlreadyTerminal instead.
func (s *Service) CancelPO(ctx context.Context, poID, actorID int64) error {
	return s.UpdatePOStatus(ctx, poID, POStatusCancelled, time.Time{}, actorID)
}

// GetPO loads one purchase order.
func (s *Service) GetPO(ctx context.Context, poID int64) (PurchaseOrder, error) {
	return s.repo.GetPO(ctx, poID)
}

// ListPOs returns a filtered page of purchase orders plus the total count.
func (s *Service) ListPOs(ctx context.Context, limit, offset int, filters POFilters) ([]PurchaseOrder, int, error) {
	return s.repo.ListPOs(ctx, limit, offset, filters)
}

// ListExpiredPOs returns ordered POs whose validity lapsed before asOf.
func (s *Service) ListExpiredPOs(ctx context.Context, asOf time.Time) ([]PurchaseOrder, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	return s.repo.ListExpiredPOs(ctx, asOf)
}
