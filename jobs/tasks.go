// Package jobs wires background processing on top of Asynq: the PO expiry
// scan and the queue plumbing shared by the API and worker binaries.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/siteproc/siteproc/internal/procure"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypePOExpiryScan flags ordered purchase orders whose validity lapsed.
	TaskTypePOExpiryScan = "po:expiry_scan"
)

// POExpiryPayload parametrises an expiry scan run.
type POExpiryPayload struct {
	AsOf time.Time `json:"as_of"`
}

// NewPOExpiryScanTask constructs an Asynq task for the expiry scan.
func NewPOExpiryScanTask(asOf time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(POExpiryPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePOExpiryScan, data), nil
}

// POExpiryHandler scans for expired purchase orders and logs them for
// follow-up. Expiry never flips a PO status: an expired order stays
// actionable until someone delivers or cancels it.
type POExpiryHandler struct {
	service *procure.Service
	logger  *slog.Logger
}

// NewPOExpiryHandler constructs the handler.
func NewPOExpiryHandler(service *procure.Service, logger *slog.Logger) *POExpiryHandler {
	return &POExpiryHandler{service: service, logger: logger}
}

// ProcessTask handles TaskTypePOExpiryScan tasks.
func (h *POExpiryHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload POExpiryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	expired, err := h.service.ListExpiredPOs(ctx, asOf)
	if err != nil {
		return err
	}
	for _, po := range expired {
		h.logger.Warn("purchase order past validity",
			slog.String("po_number", po.PONumber),
			slog.Int64("vendor_id", po.VendorID),
			slog.Time("valid_till", po.ValidTill))
	}
	h.logger.Info("po expiry scan complete",
		slog.Time("as_of", asOf), slog.Int("expired", len(expired)))
	return nil
}
