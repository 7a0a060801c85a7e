// Package procure implements the procurement request lifecycle: material
// requests raised by site engineers, manager approval, vendor cost
// comparison, purchase order issuance and delivery tracking.
package procure

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus tracks a requisition item through its lifecycle.
type RequestStatus string

const (
	RequestStatusDraft         RequestStatus = "draft"
	RequestStatusPending       RequestStatus = "pending"
	RequestStatusApproved      RequestStatus = "approved"
	RequestStatusRejected      RequestStatus = "rejected"
	RequestStatusReadyForCC    RequestStatus = "ready_for_cc"
	RequestStatusCCPending     RequestStatus = "cc_pending"
	RequestStatusReadyForPO    RequestStatus = "ready_for_po"
	RequestStatusDeliveryStage RequestStatus = "delivery_stage"
	RequestStatusDelivered     RequestStatus = "delivered"
)

// Terminal reports whether no further transitions are possible.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusRejected || s == RequestStatusDelivered
}

// CCStatus tracks the cost comparison sub-workflow.
type CCStatus string

const (
	CCStatusDraft    CCStatus = "draft"
	CCStatusPending  CCStatus = "cc_pending"
	CCStatusApproved CCStatus = "cc_approved"
	CCStatusRejected CCStatus = "cc_rejected"
)

// POStatus tracks a purchase order. Transitions are one-directional:
// ordered -> delivered or ordered -> cancelled.
type POStatus string

const (
	POStatusOrdered   POStatus = "ordered"
	POStatusDelivered POStatus = "delivered"
	POStatusCancelled POStatus = "cancelled"
)

// Terminal reports whether the purchase order reached an end state.
func (s POStatus) Terminal() bool {
	return s == POStatusDelivered || s == POStatusCancelled
}

// DeliveryType classifies the delivering party on a challan.
type DeliveryType string

const (
	DeliveryTypePrivate DeliveryType = "private"
	DeliveryTypePublic  DeliveryType = "public"
	DeliveryTypeVendor  DeliveryType = "vendor"
)

// PaymentStatus tracks challan payment settlement.
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Request is one line item of a requisition. Items submitted together share
// a RequestNumber and are positioned by ItemOrder. A split remainder keeps
// the lineage via ParentID.
type Request struct {
	ID            int64
	RequestNumber string
	ItemOrder     int
	ParentID      int64
	ItemName      string
	Quantity      decimal.Decimal
	Unit          string
	Description   string
	IsUrgent      bool
	Status        RequestStatus
	SiteID        int64
	CreatorID     int64
	ApprovedBy    int64
	ApprovedAt    time.Time
	RejectReason  string
	RequiredBy    time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// VendorQuote is one vendor's offered unit price inside a cost comparison.
type VendorQuote struct {
	VendorID  int64           `json:"vendor_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CostComparison is the sourcing sub-workflow owned by a request. Exactly one
// exists per request; re-entering draft mode overwrites, never duplicates.
type CostComparison struct {
	ID               int64
	RequestID        int64
	Quotes           []VendorQuote
	IsDirectDelivery bool
	Status           CCStatus
	SelectedVendorID int64
	ManagerNotes     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// QuoteFor returns the quote for vendorID, if present.
func (cc CostComparison) QuoteFor(vendorID int64) (VendorQuote, bool) {
	for _, q := range cc.Quotes {
		if q.VendorID == vendorID {
			return q, true
		}
	}
	return VendorQuote{}, false
}

// PurchaseOrder is a priced, vendor-bound order. RequestID is zero for
// direct (emergency) orders. Immutable once issued except Status and
// ActualDeliveryDate.
type PurchaseOrder struct {
	ID                 int64
	PONumber           string
	RequestID          int64
	ItemDescription    string
	HSNSACCode         string
	Quantity           decimal.Decimal
	Unit               string
	VendorID           int64
	DeliverySiteID     int64
	UnitRate           decimal.Decimal
	GSTTaxRate         decimal.Decimal
	TotalAmount        decimal.Decimal
	ValidTill          time.Time
	Status             POStatus
	IsDirect           bool
	CreatedAt          time.Time
	ActualDeliveryDate time.Time

	// Expired is computed on read; an expired PO stays actionable until
	// explicitly delivered or cancelled.
	Expired bool
}

// PhotoRef points at evidence stored in the object store. Only the reference
// is persisted, never binary data.
type PhotoRef struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// Delivery is a challan record for a partial or full fulfillment of a
// request. Immutable once created except for payment fields.
type Delivery struct {
	ID            int64
	ChallanNumber string
	RequestID     int64
	DeliveryType  DeliveryType
	PartyName     string
	ContactPhone  string
	VendorID      int64
	ReceiverName  string
	Quantity      decimal.Decimal
	Photos        []PhotoRef
	PaymentAmount decimal.Decimal
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
}
