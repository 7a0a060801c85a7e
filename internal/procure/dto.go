package procure

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wire-level request and response shapes for the procurement API.
// Quantities and money travel as strings to avoid float rounding on the wire.

type requestItemDTO struct {
	ItemName    string `json:"item_name" validate:"required"`
	Quantity    string `json:"quantity" validate:"required"`
	Unit        string `json:"unit" validate:"required"`
	Description string `json:"description"`
	IsUrgent    bool   `json:"is_urgent"`
	RequiredBy  string `json:"required_by"`
}

type createRequestsDTO struct {
	SiteID  int64            `json:"site_id" validate:"required"`
	AsDraft bool             `json:"as_draft"`
	Items   []requestItemDTO `json:"items" validate:"required,min=1,dive"`
}

type rejectRequestDTO struct {
	Reason string `json:"reason" validate:"required"`
}

type vendorQuoteDTO struct {
	VendorID  int64  `json:"vendor_id" validate:"required"`
	UnitPrice string `json:"unit_price" validate:"required"`
}

type upsertCCDTO struct {
	Quotes           []vendorQuoteDTO `json:"quotes" validate:"dive"`
	IsDirectDelivery bool             `json:"is_direct_delivery"`
}

type reviewCCDTO struct {
	Action           string `json:"action" validate:"required,oneof=approve reject"`
	SelectedVendorID int64  `json:"selected_vendor_id"`
	Notes            string `json:"notes"`
}

type createPODTO struct {
	VendorID   int64  `json:"vendor_id" validate:"required"`
	UnitRate   string `json:"unit_rate" validate:"required"`
	GSTTaxRate string `json:"gst_tax_rate"`
	HSNSACCode string `json:"hsn_sac_code"`
	ValidTill  string `json:"valid_till" validate:"required"`
}

type directPODTO struct {
	ItemDescription string `json:"item_description" validate:"required"`
	HSNSACCode      string `json:"hsn_sac_code"`
	Quantity        string `json:"quantity" validate:"required"`
	Unit            string `json:"unit" validate:"required"`
	VendorID        int64  `json:"vendor_id" validate:"required"`
	DeliverySiteID  int64  `json:"delivery_site_id" validate:"required"`
	UnitRate        string `json:"unit_rate" validate:"required"`
	GSTTaxRate      string `json:"gst_tax_rate"`
	ValidTill       string `json:"valid_till" validate:"required"`
}

type updatePOStatusDTO struct {
	Status             string `json:"status" validate:"required,oneof=delivered cancelled"`
	ActualDeliveryDate string `json:"actual_delivery_date"`
}

type photoRefDTO struct {
	URL string `json:"url" validate:"required"`
	Key string `json:"key" validate:"required"`
}

type createDeliveryDTO struct {
	Quantity      string        `json:"quantity" validate:"required"`
	DeliveryType  string        `json:"delivery_type" validate:"required,oneof=private public vendor"`
	PartyName     string        `json:"party_name"`
	ContactPhone  string        `json:"contact_phone"`
	VendorID      int64         `json:"vendor_id"`
	ReceiverName  string        `json:"receiver_name" validate:"required"`
	Photos        []photoRefDTO `json:"photos" validate:"dive"`
	PaymentAmount string        `json:"payment_amount"`
	PaymentStatus string        `json:"payment_status" validate:"omitempty,oneof=unpaid partial paid"`
}

type updatePaymentDTO struct {
	Amount string `json:"amount" validate:"required"`
	Status string `json:"status" validate:"required,oneof=unpaid partial paid"`
}

type presignPhotoDTO struct {
	ContentType string `json:"content_type" validate:"required"`
}

type presignPhotoResponse struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type deliveryPhotoURLResponse struct {
	Key         string    `json:"key"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type requestResponse struct {
	ID            int64  `json:"id"`
	RequestNumber string `json:"request_number"`
	ItemOrder     int    `json:"item_order"`
	ParentID      int64  `json:"parent_id,omitempty"`
	ItemName      string `json:"item_name"`
	Quantity      string `json:"quantity"`
	Unit          string `json:"unit"`
	Description   string `json:"description,omitempty"`
	IsUrgent      bool   `json:"is_urgent"`
	Status        string `json:"status"`
	SiteID        int64  `json:"site_id"`
	CreatorID     int64  `json:"creator_id"`
	ApprovedBy    int64  `json:"approved_by,omitempty"`
	RejectReason  string `json:"reject_reason,omitempty"`
	RequiredBy    string `json:"required_by,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func toRequestResponse(req Request) requestResponse {
	out := requestResponse{
		ID:            req.ID,
		RequestNumber: req.RequestNumber,
		ItemOrder:     req.ItemOrder,
		ParentID:      req.ParentID,
		ItemName:      req.ItemName,
		Quantity:      req.Quantity.String(),
		Unit:          req.Unit,
		Description:   req.Description,
		IsUrgent:      req.IsUrgent,
		Status:        string(req.Status),
		SiteID:        req.SiteID,
		CreatorID:     req.CreatorID,
		ApprovedBy:    req.ApprovedBy,
		RejectReason:  req.RejectReason,
		CreatedAt:     req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     req.UpdatedAt.Format(time.RFC3339),
	}
	if !req.RequiredBy.IsZero() {
		out.RequiredBy = req.RequiredBy.Format("2006-01-02")
	}
	return out
}

type ccResponse struct {
	RequestID        int64            `json:"request_id"`
	Quotes           []vendorQuoteDTO `json:"quotes"`
	IsDirectDelivery bool             `json:"is_direct_delivery"`
	Status           string           `json:"status"`
	SelectedVendorID int64            `json:"selected_vendor_id,omitempty"`
	ManagerNotes     string           `json:"manager_notes,omitempty"`
	UpdatedAt        string           `json:"updated_at"`
}

func toCCResponse(cc CostComparison) ccResponse {
	quotes := make([]vendorQuoteDTO, 0, len(cc.Quotes))
	for _, q := range cc.Quotes {
		quotes = append(quotes, vendorQuoteDTO{VendorID: q.VendorID, UnitPrice: q.UnitPrice.String()})
	}
	return ccResponse{
		RequestID:        cc.RequestID,
		Quotes:           quotes,
		IsDirectDelivery: cc.IsDirectDelivery,
		Status:           string(cc.Status),
		SelectedVendorID: cc.SelectedVendorID,
		ManagerNotes:     cc.ManagerNotes,
		UpdatedAt:        cc.UpdatedAt.Format(time.RFC3339),
	}
}

type poResponse struct {
	ID                 int64  `json:"id"`
	PONumber           string `json:"po_number"`
	RequestID          int64  `json:"request_id,omitempty"`
	ItemDescription    string `json:"item_description"`
	HSNSACCode         string `json:"hsn_sac_code,omitempty"`
	Quantity           string `json:"quantity"`
	Unit               string `json:"unit"`
	VendorID           int64  `json:"vendor_id"`
	DeliverySiteID     int64  `json:"delivery_site_id"`
	UnitRate           string `json:"unit_rate"`
	GSTTaxRate         string `json:"gst_tax_rate"`
	TotalAmount        string `json:"total_amount"`
	ValidTill          string `json:"valid_till"`
	Status             string `json:"status"`
	IsDirect           bool   `json:"is_direct"`
	Expired            bool   `json:"expired"`
	ActualDeliveryDate string `json:"actual_delivery_date,omitempty"`
	CreatedAt          string `json:"created_at"`
}

func toPOResponse(po PurchaseOrder) poResponse {
	out := poResponse{
		ID:              po.ID,
		PONumber:        po.PONumber,
		RequestID:       po.RequestID,
		ItemDescription: po.ItemDescription,
		HSNSACCode:      po.HSNSACCode,
		Quantity:        po.Quantity.String(),
		Unit:            po.Unit,
		VendorID:        po.VendorID,
		DeliverySiteID:  po.DeliverySiteID,
		UnitRate:        po.UnitRate.String(),
		GSTTaxRate:      po.GSTTaxRate.String(),
		TotalAmount:     po.TotalAmount.String(),
		ValidTill:       po.ValidTill.Format(time.RFC3339),
		Status:          string(po.Status),
		IsDirect:        po.IsDirect,
		Expired:         po.Expired,
		CreatedAt:       po.CreatedAt.Format(time.RFC3339),
	}
	if !po.ActualDeliveryDate.IsZero() {
		out.ActualDeliveryDate = po.ActualDeliveryDate.Format("2006-01-02")
	}
	return out
}

type deliveryResponse struct {
	ID            int64         `json:"id"`
	ChallanNumber string        `json:"challan_number"`
	RequestID     int64         `json:"request_id"`
	DeliveryType  string        `json:"delivery_type"`
	PartyName     string        `json:"party_name,omitempty"`
	ContactPhone  string        `json:"contact_phone,omitempty"`
	VendorID      int64         `json:"vendor_id,omitempty"`
	ReceiverName  string        `json:"receiver_name"`
	Quantity      string        `json:"quantity"`
	Photos        []photoRefDTO `json:"photos,omitempty"`
	PaymentAmount string        `json:"payment_amount"`
	PaymentStatus string        `json:"payment_status"`
	CreatedAt     string        `json:"created_at"`
}

func toDeliveryResponse(d Delivery) deliveryResponse {
	photos := make([]photoRefDTO, 0, len(d.Photos))
	for _, p := range d.Photos {
		photos = append(photos, photoRefDTO{URL: p.URL, Key: p.Key})
	}
	return deliveryResponse{
		ID:            d.ID,
		ChallanNumber: d.ChallanNumber,
		RequestID:     d.RequestID,
		DeliveryType:  string(d.DeliveryType),
		PartyName:     d.PartyName,
		ContactPhone:  d.ContactPhone,
		VendorID:      d.VendorID,
		ReceiverName:  d.ReceiverName,
		Quantity:      d.Quantity.String(),
		Photos:        photos,
		PaymentAmount: d.PaymentAmount.String(),
		PaymentStatus: string(d.PaymentStatus),
		CreatedAt:     d.CreatedAt.Format(time.RFC3339),
	}
}

type deliveryResultResponse struct {
	Delivery deliveryResponse `json:"delivery"`
	Request  requestResponse  `json:"request"`
	Sibling  *requestResponse `json:"sibling,omitempty"`
}

func parseQuantity(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(raw)
}

func parseOptionalDecimal(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
