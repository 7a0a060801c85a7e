package procure

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/siteproc/siteproc/internal/numbering"
	"github.com/siteproc/siteproc/internal/shared"
)

// memoryRepo implements Repository and TxRepository in memory, mirroring the
// guarded-update semantics of the SQL layer. beforeTx, when set, runs at the
// start of WithTx to simulate a concurrent writer sneaking in between the
// service's pre-read and its transaction.
type memoryRepo struct {
	mu         sync.Mutex
	requests   map[int64]*Request
	ccs        map[int64]*CostComparison
	pos        map[int64]*PurchaseOrder
	deliveries map[int64]*Delivery
	vendors    map[int64]bool
	sites      map[int64]bool
	seq        map[numbering.Scope]int64
	nextID     int64

	beforeTx func()
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		requests:   make(map[int64]*Request),
		ccs:        make(map[int64]*CostComparison),
		pos:        make(map[int64]*PurchaseOrder),
		deliveries: make(map[int64]*Delivery),
		vendors:    make(map[int64]bool),
		sites:      make(map[int64]bool),
		seq:        make(map[numbering.Scope]int64),
	}
}

func (m *memoryRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.beforeTx != nil {
		hook := m.beforeTx
		m.beforeTx = nil
		hook()
	}
	return fn(ctx, m)
}

func (m *memoryRepo) GetRequest(_ context.Context, id int64) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return *req, nil
}

func (m *memoryRepo) ListRequests(_ context.Context, limit, offset int, filters RequestFilters) ([]Request, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Request
	for _, req := range m.requests {
		if filters.Status != "" && string(req.Status) != filters.Status {
			continue
		}
		if filters.SiteID != 0 && req.SiteID != filters.SiteID {
			continue
		}
		out = append(out, *req)
	}
	return out, len(out), nil
}

func (m *memoryRepo) GetCostComparison(_ context.Context, requestID int64) (CostComparison, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cc, ok := m.ccs[requestID]
	if !ok {
		return CostComparison{}, ErrNotFound
	}
	return *cc, nil
}

func (m *memoryRepo) GetPO(_ context.Context, id int64) (PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	po, ok := m.pos[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	out := *po
	out.Expired = out.Status == POStatusOrdered && out.ValidTill.Before(time.Now())
	return out, nil
}

func (m *memoryRepo) ListPOs(_ context.Context, limit, offset int, filters POFilters) ([]PurchaseOrder, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PurchaseOrder
	for _, po := range m.pos {
		if filters.Status != "" && string(po.Status) != filters.Status {
			continue
		}
		if filters.VendorID != 0 && po.VendorID != filters.VendorID {
			continue
		}
		out = append(out, *po)
	}
	return out, len(out), nil
}

func (m *memoryRepo) ListExpiredPOs(_ context.Context, asOf time.Time) ([]PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PurchaseOrder
	for _, po := range m.pos {
		if po.Status == POStatusOrdered && po.ValidTill.Before(asOf) {
			expired := *po
			expired.Expired = true
			out = append(out, expired)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetDelivery(_ context.Context, id int64) (Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return Delivery{}, ErrNotFound
	}
	return *d, nil
}

func (m *memoryRepo) ListDeliveries(_ context.Context, requestID int64) ([]Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Delivery
	for _, d := range m.deliveries {
		if d.RequestID == requestID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *memoryRepo) VendorExists(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vendors[id], nil
}

func (m *memoryRepo) SiteExists(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sites[id], nil
}

// TxRepository side. Callers already hold the lock through WithTx.

func (m *memoryRepo) NextNumber(_ context.Context, scope numbering.Scope) (string, error) {
	m.seq[scope]++
	return numbering.Format(scope, m.seq[scope]), nil
}

func (m *memoryRepo) GetRequestForUpdate(_ context.Context, id int64) (Request, error) {
	req, ok := m.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return *req, nil
}

func (m *memoryRepo) MaxItemOrder(_ context.Context, requestNumber string) (int, error) {
	max := 0
	for _, req := range m.requests {
		if req.RequestNumber == requestNumber && req.ItemOrder > max {
			max = req.ItemOrder
		}
	}
	return max, nil
}

func (m *memoryRepo) InsertRequest(_ context.Context, req Request) (int64, error) {
	req.ID = m.id()
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	m.requests[req.ID] = &req
	return req.ID, nil
}

func (m *memoryRepo) UpdateRequestStatus(_ context.Context, id int64, from, to RequestStatus) error {
	req, ok := m.requests[id]
	if !ok || req.Status != from {
		return ErrStaleState
	}
	req.Status = to
	req.UpdatedAt = time.Now()
	return nil
}

func (m *memoryRepo) SetRequestApproved(_ context.Context, id int64, approvedBy int64, approvedAt time.Time) error {
	req, ok := m.requests[id]
	if !ok || (req.Status != RequestStatusDraft && req.Status != RequestStatusPending) {
		return ErrStaleState
	}
	req.Status = RequestStatusReadyForCC
	req.ApprovedBy = approvedBy
	req.ApprovedAt = approvedAt
	return nil
}

func (m *memoryRepo) SetRequestRejected(_ context.Context, id int64, reason string) error {
	req, ok := m.requests[id]
	if !ok || req.Status != RequestStatusPending {
		return ErrStaleState
	}
	req.Status = RequestStatusRejected
	req.RejectReason = reason
	return nil
}

func (m *memoryRepo) UpdateRequestQuantity(_ context.Context, id int64, qty decimal.Decimal) error {
	req, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	req.Quantity = qty
	return nil
}

func (m *memoryRepo) UpsertCostComparison(_ context.Context, cc CostComparison) error {
	existing, ok := m.ccs[cc.RequestID]
	if ok {
		existing.Quotes = cc.Quotes
		existing.IsDirectDelivery = cc.IsDirectDelivery
		existing.ManagerNotes = ""
		existing.SelectedVendorID = 0
		existing.UpdatedAt = time.Now()
		return nil
	}
	cc.ID = m.id()
	cc.UpdatedAt = time.Now()
	m.ccs[cc.RequestID] = &cc
	return nil
}

func (m *memoryRepo) SubmitCC(_ context.Context, requestID int64) error {
	cc, ok := m.ccs[requestID]
	if !ok || (cc.Status != CCStatusDraft && cc.Status != CCStatusRejected) {
		return ErrStaleState
	}
	cc.Status = CCStatusPending
	return nil
}

func (m *memoryRepo) ApproveCC(_ context.Context, requestID int64, selectedVendorID int64) error {
	cc, ok := m.ccs[requestID]
	if !ok || cc.Status != CCStatusPending {
		return ErrStaleState
	}
	cc.Status = CCStatusApproved
	cc.SelectedVendorID = selectedVendorID
	return nil
}

func (m *memoryRepo) RejectCC(_ context.Context, requestID int64, notes string) error {
	cc, ok := m.ccs[requestID]
	if !ok || cc.Status != CCStatusPending {
		return ErrStaleState
	}
	cc.Status = CCStatusRejected
	cc.ManagerNotes = notes
	return nil
}

func (m *memoryRepo) InsertPO(_ context.Context, po PurchaseOrder) (int64, error) {
	po.ID = m.id()
	po.CreatedAt = time.Now()
	m.pos[po.ID] = &po
	return po.ID, nil
}

func (m *memoryRepo) UpdatePOStatus(_ context.Context, id int64, to POStatus, actualDeliveryDate time.Time) error {
	po, ok := m.pos[id]
	if !ok || po.Status != POStatusOrdered {
		return ErrStaleState
	}
	po.Status = to
	po.ActualDeliveryDate = actualDeliveryDate
	return nil
}

func (m *memoryRepo) InsertDelivery(_ context.Context, d Delivery) (int64, error) {
	d.ID = m.id()
	d.CreatedAt = time.Now()
	m.deliveries[d.ID] = &d
	return d.ID, nil
}

func (m *memoryRepo) UpdateDeliveryPayment(_ context.Context, id int64, amount decimal.Decimal, status PaymentStatus) error {
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.PaymentAmount = amount
	d.PaymentStatus = status
	return nil
}

// memoryAudit captures audit records for assertions.
type memoryAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *memoryAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, log := range a.logs {
		out = append(out, log.Action)
	}
	return out
}
