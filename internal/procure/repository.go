package procure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/siteproc/siteproc/internal/numbering"
)

// Repository exposes read operations and the transactional write entry point.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetRequest(ctx context.Context, id int64) (Request, error)
	ListRequests(ctx context.Context, limit, offset int, filters RequestFilters) ([]Request, int, error)
	GetCostComparison(ctx context.Context, requestID int64) (CostComparison, error)
	GetPO(ctx context.Context, id int64) (PurchaseOrder, error)
	ListPOs(ctx context.Context, limit, offset int, filters POFilters) ([]PurchaseOrder, int, error)
	ListExpiredPOs(ctx context.Context, asOf time.Time) ([]PurchaseOrder, error)
	GetDelivery(ctx context.Context, id int64) (Delivery, error)
	ListDeliveries(ctx context.Context, requestID int64) ([]Delivery, error)

	VendorExists(ctx context.Context, id int64) (bool, error)
	SiteExists(ctx context.Context, id int64) (bool, error)
}

// TxRepository exposes write operations inside one atomic unit. Guarded
// updates re-check the expected prior state in the UPDATE itself; zero rows
// affected surfaces as ErrStaleState.
type TxRepository interface {
	NextNumber(ctx context.Context, scope numbering.Scope) (string, error)

	GetRequestForUpdate(ctx context.Context, id int64) (Request, error)
	MaxItemOrder(ctx context.Context, requestNumber string) (int, error)
	InsertRequest(ctx context.Context, req Request) (int64, error)
	UpdateRequestStatus(ctx context.Context, id int64, from, to RequestStatus) error
	SetRequestApproved(ctx context.Context, id int64, approvedBy int64, approvedAt time.Time) error
	SetRequestRejected(ctx context.Context, id int64, reason string) error
	UpdateRequestQuantity(ctx context.Context, id int64, qty decimal.Decimal) error

	UpsertCostComparison(ctx context.Context, cc CostComparison) error
	SubmitCC(ctx context.Context, requestID int64) error
	ApproveCC(ctx context.Context, requestID int64, selectedVendorID int64) error
	RejectCC(ctx context.Context, requestID int64, notes string) error

	InsertPO(ctx context.Context, po PurchaseOrder) (int64, error)
	UpdatePOStatus(ctx context.Context, id int64, to POStatus, actualDeliveryDate time.Time) error

	InsertDelivery(ctx context.Context, d Delivery) (int64, error)
	UpdateDeliveryPayment(ctx context.Context, id int64, amount decimal.Decimal, status PaymentStatus) error
}

// RequestFilters narrow request listings.
type RequestFilters struct {
	Status  string
	SiteID  int64
	Urgent  bool
	Search  string
	SortBy  string
	SortDir string
}

// POFilters narrow purchase order listings.
type POFilters struct {
	Status   string
	VendorID int64
	SiteID   int64
	Search   string
	SortBy   string
	SortDir  string
}

// repository implements Repository on pgxpool.
type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// WithTx wraps fn in a repeatable-read transaction. All status transitions of
// one operation commit together or not at all.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const requestColumns = `id, request_number, item_order, COALESCE(parent_id, 0), item_name,
	quantity::text, unit, description, is_urgent, status, site_id, creator_id,
	COALESCE(approved_by, 0), approved_at, COALESCE(reject_reason, ''), required_by,
	created_at, updated_at`

func scanRequest(row pgx.Row) (Request, error) {
	var (
		req        Request
		qty        string
		approvedAt *time.Time
		requiredBy *time.Time
	)
	err := row.Scan(&req.ID, &req.RequestNumber, &req.ItemOrder, &req.ParentID, &req.ItemName,
		&qty, &req.Unit, &req.Description, &req.IsUrgent, &req.Status, &req.SiteID,
		&req.CreatorID, &req.ApprovedBy, &approvedAt, &req.RejectReason, &requiredBy,
		&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return Request{}, err
	}
	if req.Quantity, err = decimal.NewFromString(qty); err != nil {
		return Request{}, fmt.Errorf("procure: parse quantity: %w", err)
	}
	if approvedAt != nil {
		req.ApprovedAt = *approvedAt
	}
	if requiredBy != nil {
		req.RequiredBy = *requiredBy
	}
	return req, nil
}

// GetRequest loads one requisition item.
func (r *repository) GetRequest(ctx context.Context, id int64) (Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return req, nil
}

// ListRequests returns a filtered, paginated page plus the total count.
func (r *repository) ListRequests(ctx context.Context, limit, offset int, filters RequestFilters) ([]Request, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filters.SiteID > 0 {
		args = append(args, filters.SiteID)
		where += fmt.Sprintf(` AND site_id = $%d`, len(args))
	}
	if filters.Urgent {
		where += ` AND is_urgent`
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += fmt.Sprintf(` AND (request_number ILIKE $%d OR item_name ILIKE $%d)`, len(args), len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + requestColumns + ` FROM requests` + where +
		` ORDER BY ` + sortOrderRequests(filters.SortBy, filters.SortDir)
	args = append(args, limit, offset)
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// GetCostComparison loads the comparison owned by a request.
func (r *repository) GetCostComparison(ctx context.Context, requestID int64) (CostComparison, error) {
	return getCostComparison(ctx, r.pool, requestID)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getCostComparison(ctx context.Context, q rowQuerier, requestID int64) (CostComparison, error) {
	row := q.QueryRow(ctx, `SELECT id, request_id, quotes, is_direct_delivery, status,
		COALESCE(selected_vendor_id, 0), COALESCE(manager_notes, ''), created_at, updated_at
	FROM cost_comparisons WHERE request_id = $1`, requestID)

	var (
		cc     CostComparison
		quotes []byte
	)
	err := row.Scan(&cc.ID, &cc.RequestID, &quotes, &cc.IsDirectDelivery, &cc.Status,
		&cc.SelectedVendorID, &cc.ManagerNotes, &cc.CreatedAt, &cc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CostComparison{}, ErrNotFound
		}
		return CostComparison{}, err
	}
	if err := unmarshalQuotes(quotes, &cc.Quotes); err != nil {
		return CostComparison{}, err
	}
	return cc, nil
}

const poColumns = `id, po_number, COALESCE(request_id, 0), item_description,
	COALESCE(hsn_sac_code, ''), quantity::text, unit, vendor_id, delivery_site_id,
	unit_rate::text, gst_tax_rate::text, total_amount::text, valid_till, status, is_direct,
	created_at, actual_delivery_date`

func scanPO(row pgx.Row, now time.Time) (PurchaseOrder, error) {
	var (
		po                            PurchaseOrder
		qty, unitRate, gstRate, total string
		actualDelivery                *time.Time
	)
	err := row.Scan(&po.ID, &po.PONumber, &po.RequestID, &po.ItemDescription, &po.HSNSACCode,
		&qty, &po.Unit, &po.VendorID, &po.DeliverySiteID, &unitRate, &gstRate, &total,
		&po.ValidTill, &po.Status, &po.IsDirect, &po.CreatedAt, &actualDelivery)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Quantity, err = decimal.NewFromString(qty); err != nil {
		return PurchaseOrder{}, fmt.Errorf("procure: parse quantity: %w", err)
	}
	if po.UnitRate, err = decimal.NewFromString(unitRate); err != nil {
		return PurchaseOrder{}, fmt.Errorf("procure: parse unit rate: %w", err)
	}
	if po.GSTTaxRate, err = decimal.NewFromString(gstRate); err != nil {
		return PurchaseOrder{}, fmt.Errorf("procure: parse gst rate: %w", err)
	}
	if po.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return PurchaseOrder{}, fmt.Errorf("procure: parse total: %w", err)
	}
	if actualDelivery != nil {
		po.ActualDeliveryDate = *actualDelivery
	}
	po.Expired = po.Status == POStatusOrdered && po.ValidTill.Before(now)
	return po, nil
}

// GetPO loads one purchase order with the expiry flag computed on read.
func (r *repository) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id = $1`, id)
	po, err := scanPO(row, time.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}

// ListPOs returns a filtered, paginated page plus the total count.
func (r *repository) ListPOs(ctx context.Context, limit, offset int, filters POFilters) ([]PurchaseOrder, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filters.VendorID > 0 {
		args = append(args, filters.VendorID)
		where += fmt.Sprintf(` AND vendor_id = $%d`, len(args))
	}
	if filters.SiteID > 0 {
		args = append(args, filters.SiteID)
		where += fmt.Sprintf(` AND delivery_site_id = $%d`, len(args))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += fmt.Sprintf(` AND (po_number ILIKE $%d OR item_description ILIKE $%d)`, len(args), len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + poColumns + ` FROM purchase_orders` + where +
		` ORDER BY ` + sortOrderPOs(filters.SortBy, filters.SortDir)
	args = append(args, limit, offset)
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	now := time.Now()
	var items []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows, now)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, po)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListExpiredPOs returns still-ordered purchase orders past their validity.
func (r *repository) ListExpiredPOs(ctx context.Context, asOf time.Time) ([]PurchaseOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+poColumns+` FROM purchase_orders
		WHERE status = $1 AND valid_till < $2 ORDER BY valid_till ASC`,
		string(POStatusOrdered), asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows, asOf)
		if err != nil {
			return nil, err
		}
		items = append(items, po)
	}
	return items, rows.Err()
}

const deliveryColumns = `id, challan_number, request_id, delivery_type, party_name,
	contact_phone, COALESCE(vendor_id, 0), receiver_name, quantity::text, photos,
	payment_amount::text, payment_status, created_at`

func scanDelivery(row pgx.Row) (Delivery, error) {
	var (
		d           Delivery
		qty, amount string
		photos      []byte
	)
	err := row.Scan(&d.ID, &d.ChallanNumber, &d.RequestID, &d.DeliveryType, &d.PartyName,
		&d.ContactPhone, &d.VendorID, &d.ReceiverName, &qty, &photos, &amount,
		&d.PaymentStatus, &d.CreatedAt)
	if err != nil {
		return Delivery{}, err
	}
	if d.Quantity, err = decimal.NewFromString(qty); err != nil {
		return Delivery{}, fmt.Errorf("procure: parse quantity: %w", err)
	}
	if d.PaymentAmount, err = decimal.NewFromString(amount); err != nil {
		return Delivery{}, fmt.Errorf("procure: parse payment amount: %w", err)
	}
	if err := unmarshalPhotos(photos, &d.Photos); err != nil {
		return Delivery{}, err
	}
	return d, nil
}

// GetDelivery loads one challan.
func (r *repository) GetDelivery(ctx context.Context, id int64) (Delivery, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id)
	d, err := scanDelivery(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delivery{}, ErrNotFound
		}
		return Delivery{}, err
	}
	return d, nil
}

// ListDeliveries returns all challans recorded against a request.
func (r *repository) ListDeliveries(ctx context.Context, requestID int64) ([]Delivery, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+deliveryColumns+` FROM deliveries
		WHERE request_id = $1 ORDER BY created_at ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// VendorExists checks an active vendor id.
func (r *repository) VendorExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM vendors WHERE id = $1 AND NOT disabled)`, id).Scan(&exists)
	return exists, err
}

// SiteExists checks an active site id.
func (r *repository) SiteExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sites WHERE id = $1 AND NOT disabled)`, id).Scan(&exists)
	return exists, err
}

// sortOrderRequests returns a safe ORDER BY clause for request queries.
func sortOrderRequests(sortBy, sortDir string) string {
	dir := "DESC"
	if sortDir == "asc" {
		dir = "ASC"
	}
	switch sortBy {
	case "number":
		return "request_number " + dir + ", item_order ASC"
	case "status":
		return "status " + dir
	case "required_by":
		return "required_by " + dir
	default:
		return "created_at DESC, item_order ASC"
	}
}

// sortOrderPOs returns a safe ORDER BY clause for purchase order queries.
func sortOrderPOs(sortBy, sortDir string) string {
	dir := "DESC"
	if sortDir == "asc" {
		dir = "ASC"
	}
	switch sortBy {
	case "number":
		return "po_number " + dir
	case "valid_till":
		return "valid_till " + dir
	case "total":
		return "total_amount " + dir
	case "status":
		return "status " + dir
	default:
		return "created_at DESC"
	}
}
