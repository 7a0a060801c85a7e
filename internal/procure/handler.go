package procure

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/siteproc/siteproc/internal/auth"
	"github.com/siteproc/siteproc/internal/platform/httpx"
	"github.com/siteproc/siteproc/internal/shared"
)

// PhotoStore issues presigned URLs for delivery photo evidence.
type PhotoStore interface {
	PresignUpload(ctx context.Context, key, contentType string) (string, time.Time, error)
	PresignDownload(ctx context.Context, key string) (string, time.Time, error)
}

// HistoryReader surfaces the audit trail of an entity.
type HistoryReader interface {
	ListForEntity(ctx context.Context, entity, entityID string, limit int) ([]shared.AuditLog, error)
}

// Handler exposes the procurement API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	photos   PhotoStore
	history  HistoryReader
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, photos PhotoStore, history HistoryReader) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		photos:   photos,
		history:  history,
	}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleSiteEngineer, auth.RoleManager, auth.RolePurchaseOfficer))
		r.Get("/requests", h.handleListRequests)
		r.Get("/requests/{id}", h.handleGetRequest)
		r.Get("/requests/{id}/history", h.handleRequestHistory)
		r.Get("/requests/{id}/cost-comparison", h.handleGetCC)
		r.Get("/requests/{id}/deliveries", h.handleListDeliveries)
		r.Get("/deliveries/{id}/photos", h.handleDeliveryPhotos)
		r.Get("/purchase-orders", h.handleListPOs)
		r.Get("/purchase-orders/{id}", h.handleGetPO)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleSiteEngineer))
		r.Post("/requests", h.handleCreateRequests)
		r.Post("/requests/{id}/submit", h.handleSubmitRequest)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleManager))
		r.Post("/requests/{id}/approve", h.handleApproveRequest)
		r.Post("/requests/{id}/reject", h.handleRejectRequest)
		r.Post("/requests/{id}/cost-comparison/review", h.handleReviewCC)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RolePurchaseOfficer))
		r.Put("/requests/{id}/cost-comparison", h.handleUpsertCC)
		r.Post("/requests/{id}/cost-comparison/submit", h.handleSubmitCC)
		r.Post("/requests/{id}/cost-comparison/resubmit", h.handleResubmitCC)
		r.Post("/requests/{id}/purchase-order", h.handleCreatePO)
		r.Post("/purchase-orders/direct", h.handleCreateDirectPO)
		r.Post("/purchase-orders/{id}/status", h.handleUpdatePOStatus)
		r.Post("/purchase-orders/{id}/cancel", h.handleCancelPO)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleSiteEngineer, auth.RolePurchaseOfficer))
		r.Post("/requests/{id}/deliveries", h.handleCreateDelivery)
		r.Post("/deliveries/photos/presign", h.handlePresignPhoto)
		r.Post("/deliveries/{id}/payment", h.handleUpdatePayment)
	})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrStaleState), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAlreadyTerminal):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrEmptyQuoteSet), errors.Is(err, ErrVendorNotQuoted),
		errors.Is(err, ErrVendorNotFound), errors.Is(err, ErrSiteNotFound):
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		h.logger.Error("procurement request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func (h *Handler) decodeValid(r *http.Request, dst any) error {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		return errors.Join(ErrValidation, err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return errors.Join(ErrValidation, err)
	}
	return nil
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func actorID(r *http.Request) int64 {
	p, _ := auth.FromContext(r.Context())
	return p.UserID
}

func (h *Handler) handleCreateRequests(w http.ResponseWriter, r *http.Request) {
	var dto createRequestsDTO
	if err := h.decodeValid(r, &dto); err != nil {
		h.respondError(w, r, err)
		return
	}
	input := CreateRequestsInput{
		SiteID:    dto.SiteID,
		CreatorID: actorID(r),
		AsDraft:   dto.AsDraft,
	}
	for _, item := range dto.Items {
		qty, err := parseQuantity(item.Quantity)
		if err != nil {
			h.respondError(w, r, errors.Join(ErrValidation, err))
			return
		}
		var requiredBy time.Time
		if item.RequiredBy != "" {
			requiredBy, err = time.Parse("2006-01-02", item.RequiredBy)
			if err != nil {
				h.respondError(w, r, errors.Join(ErrValidation, err))
				return
			}
		}
		input.Items = append(input.Items, RequestItemInput{
			ItemName:    item.ItemName,
			Quantity:    qty,
			Unit:        item.Unit,
			Description: item.Description,
			IsUrgent:    item.IsUrgent,
			RequiredBy:  requiredBy,
		})
	}
	created, err := h.service.CreateRequests(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]requestResponse, 0, len(created))
	for _, req := range created {
		out = append(out, toRequestResponse(req))
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"requests": out})
}

func (h *Handler) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SubmitRequest(r.Context(), pathID(r), actorID(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ApproveRequest(r.Context(), pathID(r), actorID(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	var dto rejectRequestDTO
	if err := h.decodeValid(r, &dto); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.service.RejectRequest(r.Context(), pathID(r), actorID(r), dto.Reason); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.GetRequest(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(req))
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	siteID, _ := strconv.ParseInt(r.URL.Query().Get("site_id"), 10, 64)
	filters := RequestFilters{
		Status:  r.URL.Query().Get("status"),
		SiteID:  siteID,
		Urgent:  r.URL.Query().Get("urgent") == "true",
		Search:  r.URL.Query().Get("search"),
		SortBy:  r.URL.Query().Get("sort"),
		SortDir: r.URL.Query().Get("dir"),
	}
	items, total, err := h.service.ListRequests(r.Context(), limit, offset, filters)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]requestResponse, 0, len(items))
	for _, req := range items {
		out = append(out, toRequestResponse(req))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"requests": out,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *Handler) handleRequestHistory(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.GetRequest(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	logs, err := h.history.ListForEntity(r.Context(), "request", req.RequestNumber, 100)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": logs})
}

func (h *Handler) handleUpsertCC(w http.ResponseWriter, r *http.Request) {
	var dto upsertCCDTO
	if err := h.decodeValid(r, &dto); err != nil {
		h.respondError(w, r, err)
		return
	}
	input, err := toUpsertCCInput(pathID(r), actorID(r), dto)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	cc, err := h.service.UpsertCostComparison(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCCResponse(cc))
}

func toUpsertCCInput(requestID, actorID int64, dto upsertCCDTO) (UpsertCCInput, error) {
	input := UpsertCCInput{
		RequestID:        requestID,
		IsDirectDelivery: dto.IsDirectDelivery,
		ActorID:          actorID,
	}
	for _, q := range dto.Quotes {
		price, err := parseQuantity(q.UnitPrice)
		if err != nil {
			return UpsertCCInput{}, errors.Join(ErrValidation, err)
		}
		input.Quotes = append(input.Quotes, VendorQuote{VendorID: q.VendorID, UnitPrice: price})
	}
	return input, nil
}

func (h *Handler) handleSubmitCC(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SubmitCostComparison(r.Context(), pathID(r), actorID(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleResubmitCC(w http.ResponseWriter, r *http.Request) {
	var dto upsertCCDTO
	if err := h.decodeValid(r, &dto); err != nil {
		h.respondError(w, r, err)
		return
	}
	input, err := toUpsertCCInput(pathID(r), actorID(r), dto)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.service.ResubmitCostComparison(r.Context(), input); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReviewCC(w http.ResponseWriter, r *http.Request) {
	var dto reviewCCDTO
	if err := h.decodeValid(r, &dto); err != nil {
		h.respondError(w, r, err)
		return
	}
	err := h.service.ReviewCostComparison(r.Context(), ReviewCCInput{
		RequestID:        pathID(r),
		Action:           ReviewAction(dto.Action),
		SelectedVendorID: dto.SelectedVendorID,
		Notes:            dto.Notes,
		ManagerID:        actorID(r),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetCC(w http.ResponseWriter, r *http.Request) {
	cc, err := h.service.GetCostComparison(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCCResponse(cc))
}

func (h *Handler) handleCreatePO(w http.ResponseWriter, r *http.Request) {
	var dto createPODTO
	if err := h.decodeValid(r, &dto); err != nil {
		h.respondError(w, r, err)
		return
	}
	unitRate, err := parseQuantity(dto.UnitRate)
	if err != nil {
		h.respondError(w, r, errors.Join(ErrValidation, err))
		return
	}
	gstRate, err := parseOptionalDecimal(dto.GSTTaxRate)
	if err != nil {
		h.respondError(w, r, errors.Join(ErrValidation, err))
		return
	}
	validTill, err := time.Parse(time.RFC3339, dto.ValidTill)
	if err != nil {
		h.respondError(w, r, errors.Join(ErrValidation, err))
		return
	}
	po, err := h.service.CreatePOFromRequest(r.Context(), CreatePOInput{
		RequestID:  pathID(r),
		VendorID:   dto.VendorID,
		UnitRate:   unitRate,
		GSTTaxRate: gstRate,
		HSNSACCode: dto.HSNSACCode,
		ValidTill:  validTill,
		ActorID:    actorID(r),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPOResponse(po))
}

func (h *Handler) handleCreateDirectPO(w http.ResponseWriter, r *http.Request) {
	var dto directPODTO
	if err := h.decodeValid(r, &dto); err != nil {
		h.respondError(w, r, err)
		return
	}
	qty, err := parseQuantity(dto.Quantity)
	if err != nil {
		h.respondError(w, r, errors.Join(ErrValidation, err))
		return
	}
	unitRate, err := parseQuantity(dto.UnitRate)
	if err != nil {
		h.respondError(w, r, errors.Join(ErrValidation, err))
		return
	}
	gstRate, err := parseOptionalDecimal(dto.GSTTaxRate)
	if err != nil {
		h.respondError(w, r, errors.Join(ErrValidation, err))
		return
	}
	validTill, err := time.Parse(time.RFC3339, dto.ValidTill)
	if err != nil {
		h.respondError(w, r, errors.Join(ErrValidation, err))
		return
	}
	po, err := h.service.CreateDirectPO(r.Context(), DirectPOInput{
		ItemDescription: dto.ItemDescription,
		HSNSACCode:      dto.HSNSACCode,
		Quantity:        qty,
		Unit:            dto.Unit,
		VendorID:        dto.VendorID,
		DeliverySiteID:  dto.DeliverySiteID,
		UnitRate:        unitRate,
		GSTTaxRate:      gstRate,
		ValidTill:       validTill,
		ActorID:         actorID(r),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPOResponse(po))
}

func (h *Handler) handleGetPO(w http.ResponseWriter, r *http.Request) {
	po, err := h.service.GetPO(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPOResponse(po))
}

func (h *Handler) handleListPOs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	vendorID, _ := strconv.ParseInt(r.URL.Query().Get("vendor_id"), 10, 64)
	siteID, _ := strconv.ParseInt(r.URL.Query().Get("site_id"), 10, 64)
	filters := POFilters{
		Status:   r.URL.Query().Get("status"),
		VendorID: vendorID,
		SiteID:   siteID,
		Search:   r.URL.Query().Get("search"),
		SortBy:   r.URL.Query().Get("sort"),
		SortDir:  r.URL.Query().Get("dir"),
	}
	items, total, err := h.service.ListPOs(r.Context(), limit, offset, filters)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]poResponse, 0, len(items))
	for _, po := range items {
		out = append(out, toPOResponse(po))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"purchase_orders": out,
		"total":           total,
		"limit":           limit,
		"offset":          offset,
	})
}

func (h *Handler) handleUpdatePOStatus(w http.ResponseWriter, r *http.Request) {
	var dto updatePOStatusDTO
	if err := h.decodeValid(r, &dto); err != nil {
		h.respondError(w, r, err)
		return
	}
	var deliveredAt time.Time
	if dto.ActualDeliveryDate != "" {
		var err error
		deliveredAt, err = time.Parse("2006-01-02", dto.ActualDeliveryDate)
		if err != nil {
			h.respondError(w, r, errors.Join(ErrValidation, err))
			return
		}
	}
	if err := h.service.UpdatePOStatus(r.Context(), pathID(r), POStatus(dto.Status), deliveredAt, actorID(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCancelPO(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CancelPO(r.Context(), pathID(r), actorID(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateDelivery(w http.ResponseWriter, r *http.Request) {
	var dto createDeliveryDTO
	if err := h.decodeValid(r, &dto); err != nil {
		h.respondError(w, r, err)
		return
	}
	qty, err := parseQuantity(dto.Quantity)
	if err != nil {
		h.respondError(w, r, errors.Join(ErrValidation, err))
		return
	}
	paymentAmount, err := parseOptionalDecimal(dto.PaymentAmount)
	if err != nil {
		h.respondError(w, r, errors.Join(ErrValidation, err))
		return
	}
	input := DeliveryInput{
		RequestID:     pathID(r),
		DeliverQty:    qty,
		DeliveryType:  DeliveryType(dto.DeliveryType),
		PartyName:     dto.PartyName,
		ContactPhone:  dto.ContactPhone,
		VendorID:      dto.VendorID,
		ReceiverName:  dto.ReceiverName,
		PaymentAmount: paymentAmount,
		PaymentStatus: PaymentStatus(dto.PaymentStatus),
		ActorID:       actorID(r),
	}
	for _, p := range dto.Photos {
		input.Photos = append(input.Photos, PhotoRef{URL: p.URL, Key: p.Key})
	}
	result, err := h.service.MarkReadyForDelivery(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := deliveryResultResponse{
		Delivery: toDeliveryResponse(result.Delivery),
		Request:  toRequestResponse(result.Updated),
	}
	if result.Sibling != nil {
		sibling := toRequestResponse(*result.Sibling)
		resp.Sibling = &sibling
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListDeliveries(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]deliveryResponse, 0, len(items))
	for _, d := range items {
		out = append(out, toDeliveryResponse(d))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deliveries": out})
}

func (h *Handler) handleDeliveryPhotos(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.GetDelivery(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]deliveryPhotoURLResponse, 0, len(d.Photos))
	for _, p := range d.Photos {
		if p.Key == "" {
			continue
		}
		downloadURL, expiresAt, err := h.photos.PresignDownload(r.Context(), p.Key)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		out = append(out, deliveryPhotoURLResponse{
			Key:         p.Key,
			DownloadURL: downloadURL,
			ExpiresAt:   expiresAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"photos": out})
}

func (h *Handler) handlePresignPhoto(w http.ResponseWriter, r *http.Request) {
	var dto presignPhotoDTO
	if err := h.decodeValid(r, &dto); err != nil {
		h.respondError(w, r, err)
		return
	}
	key := "deliveries/" + uuid.NewString()
	uploadURL, expiresAt, err := h.photos.PresignUpload(r.Context(), key, dto.ContentType)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, presignPhotoResponse{
		Key:       key,
		UploadURL: uploadURL,
		ExpiresAt: expiresAt,
	})
}

func (h *Handler) handleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	var dto updatePaymentDTO
	if err := h.decodeValid(r, &dto); err != nil {
		h.respondError(w, r, err)
		return
	}
	amount, err := parseQuantity(dto.Amount)
	if err != nil {
		h.respondError(w, r, errors.Join(ErrValidation, err))
		return
	}
	if err := h.service.UpdateDeliveryPayment(r.Context(), pathID(r), amount, PaymentStatus(dto.Status), actorID(r)); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
