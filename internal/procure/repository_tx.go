package procure

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/siteproc/siteproc/internal/numbering"
)

// txRepository implements TxRepository on an open pgx transaction.
type txRepository struct {
	tx pgx.Tx
}

// NextNumber allocates a document number inside this transaction, so a
// rollback releases the number together with everything else.
func (r *txRepository) NextNumber(ctx context.Context, scope numbering.Scope) (string, error) {
	return numbering.NewService(numbering.NewPGSequencer(r.tx)).Next(ctx, scope)
}

// GetRequestForUpdate locks and loads a request row.
func (r *txRepository) GetRequestForUpdate(ctx context.Context, id int64) (Request, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1 FOR UPDATE`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return req, nil
}

// MaxItemOrder returns the highest item position within a submission batch.
func (r *txRepository) MaxItemOrder(ctx context.Context, requestNumber string) (int, error) {
	var max int
	err := r.tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(item_order), 0) FROM requests WHERE request_number = $1`,
		requestNumber).Scan(&max)
	return max, err
}

func (r *txRepository) InsertRequest(ctx context.Context, req Request) (int64, error) {
	var parentID *int64
	if req.ParentID != 0 {
		parentID = &req.ParentID
	}
	var requiredBy *time.Time
	if !req.RequiredBy.IsZero() {
		requiredBy = &req.RequiredBy
	}
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO requests
		(request_number, item_order, parent_id, item_name, quantity, unit, description,
		 is_urgent, status, site_id, creator_id, required_by, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	RETURNING id`,
		req.RequestNumber, req.ItemOrder, parentID, req.ItemName, req.Quantity.String(),
		req.Unit, req.Description, req.IsUrgent, string(req.Status), req.SiteID,
		req.CreatorID, requiredBy).Scan(&id)
	return id, err
}

// UpdateRequestStatus moves a request from one status to another. The guard
// re-checks the prior status inside the atomic unit; a lost race returns
// ErrStaleState instead of silently overwriting.
func (r *txRepository) UpdateRequestStatus(ctx context.Context, id int64, from, to RequestStatus) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE requests SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		string(to), id, string(from))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

// SetRequestApproved advances a draft or pending request to ready_for_cc and
// records the approver.
func (r *txRepository) SetRequestApproved(ctx context.Context, id int64, approvedBy int64, approvedAt time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE requests
		SET status = $1, approved_by = $2, approved_at = $3, updated_at = NOW()
		WHERE id = $4 AND status IN ($5, $6)`,
		string(RequestStatusReadyForCC), approvedBy, approvedAt, id,
		string(RequestStatusDraft), string(RequestStatusPending))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

// SetRequestRejected terminates a pending request with a reason.
func (r *txRepository) SetRequestRejected(ctx context.Context, id int64, reason string) error {
	tag, err := r.tx.Exec(ctx, `UPDATE requests
		SET status = $1, reject_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		string(RequestStatusRejected), reason, id, string(RequestStatusPending))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *txRepository) UpdateRequestQuantity(ctx context.Context, id int64, qty decimal.Decimal) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE requests SET quantity = $1::numeric, updated_at = NOW() WHERE id = $2`,
		qty.String(), id)
	return err
}

// UpsertCostComparison writes or overwrites the draft for a request. The
// request_id unique constraint guarantees at most one row per request.
func (r *txRepository) UpsertCostComparison(ctx context.Context, cc CostComparison) error {
	quotes, err := json.Marshal(cc.Quotes)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO cost_comparisons
		(request_id, quotes, is_direct_delivery, status, manager_notes, created_at, updated_at)
	VALUES ($1, $2, $3, $4, '', NOW(), NOW())
	ON CONFLICT (request_id) DO UPDATE SET
		quotes = EXCLUDED.quotes,
		is_direct_delivery = EXCLUDED.is_direct_delivery,
		manager_notes = '',
		selected_vendor_id = NULL,
		updated_at = NOW()`,
		cc.RequestID, quotes, cc.IsDirectDelivery, string(cc.Status))
	return err
}

// SubmitCC moves a draft or previously rejected comparison to cc_pending.
func (r *txRepository) SubmitCC(ctx context.Context, requestID int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE cost_comparisons
		SET status = $1, updated_at = NOW()
		WHERE request_id = $2 AND status IN ($3, $4)`,
		string(CCStatusPending), requestID, string(CCStatusDraft), string(CCStatusRejected))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

// ApproveCC resolves a pending comparison with the winning vendor.
func (r *txRepository) ApproveCC(ctx context.Context, requestID int64, selectedVendorID int64) error {
	var vendor *int64
	if selectedVendorID != 0 {
		vendor = &selectedVendorID
	}
	tag, err := r.tx.Exec(ctx, `UPDATE cost_comparisons
		SET status = $1, selected_vendor_id = $2, updated_at = NOW()
		WHERE request_id = $3 AND status = $4`,
		string(CCStatusApproved), vendor, requestID, string(CCStatusPending))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

// RejectCC returns a pending comparison to the purchase officer with notes.
func (r *txRepository) RejectCC(ctx context.Context, requestID int64, notes string) error {
	tag, err := r.tx.Exec(ctx, `UPDATE cost_comparisons
		SET status = $1, manager_notes = $2, updated_at = NOW()
		WHERE request_id = $3 AND status = $4`,
		string(CCStatusRejected), notes, requestID, string(CCStatusPending))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *txRepository) InsertPO(ctx context.Context, po PurchaseOrder) (int64, error) {
	var requestID *int64
	if po.RequestID != 0 {
		requestID = &po.RequestID
	}
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders
		(po_number, request_id, item_description, hsn_sac_code, quantity, unit, vendor_id,
		 delivery_site_id, unit_rate, gst_tax_rate, total_amount, valid_till, status,
		 is_direct, created_at)
	VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9::numeric, $10::numeric,
		$11::numeric, $12, $13, $14, NOW())
	RETURNING id`,
		po.PONumber, requestID, po.ItemDescription, po.HSNSACCode, po.Quantity.String(),
		po.Unit, po.VendorID, po.DeliverySiteID, po.UnitRate.String(), po.GSTTaxRate.String(),
		po.TotalAmount.String(), po.ValidTill, string(po.Status), po.IsDirect).Scan(&id)
	return id, err
}

// UpdatePOStatus commits the one-directional transition out of ordered.
func (r *txRepository) UpdatePOStatus(ctx context.Context, id int64, to POStatus, actualDeliveryDate time.Time) error {
	var delivered *time.Time
	if !actualDeliveryDate.IsZero() {
		delivered = &actualDeliveryDate
	}
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_orders
		SET status = $1, actual_delivery_date = $2
		WHERE id = $3 AND status = $4`,
		string(to), delivered, id, string(POStatusOrdered))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *txRepository) InsertDelivery(ctx context.Context, d Delivery) (int64, error) {
	photos, err := json.Marshal(d.Photos)
	if err != nil {
		return 0, err
	}
	var vendorID *int64
	if d.VendorID != 0 {
		vendorID = &d.VendorID
	}
	var id int64
	err = r.tx.QueryRow(ctx, `INSERT INTO deliveries
		(challan_number, request_id, delivery_type, party_name, contact_phone, vendor_id,
		 receiver_name, quantity, photos, payment_amount, payment_status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10::numeric, $11, NOW())
	RETURNING id`,
		d.ChallanNumber, d.RequestID, string(d.DeliveryType), d.PartyName, d.ContactPhone,
		vendorID, d.ReceiverName, d.Quantity.String(), photos, d.PaymentAmount.String(),
		string(d.PaymentStatus)).Scan(&id)
	return id, err
}

// UpdateDeliveryPayment is the only mutation a challan permits after creation.
func (r *txRepository) UpdateDeliveryPayment(ctx context.Context, id int64, amount decimal.Decimal, status PaymentStatus) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE deliveries SET payment_amount = $1::numeric, payment_status = $2 WHERE id = $3`,
		amount.String(), string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func unmarshalQuotes(raw []byte, dest *[]VendorQuote) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

func unmarshalPhotos(raw []byte, dest *[]PhotoRef) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
