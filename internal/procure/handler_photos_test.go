package procure

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/siteproc/siteproc/internal/shared"
)

type stubPhotoStore struct{}

func (stubPhotoStore) PresignUpload(_ context.Context, key, _ string) (string, time.Time, error) {
	return "https://storage.local/put/" + key, time.Now().Add(15 * time.Minute), nil
}

func (stubPhotoStore) PresignDownload(_ context.Context, key string) (string, time.Time, error) {
	return "https://storage.local/get/" + key, time.Now().Add(15 * time.Minute), nil
}

type stubHistory struct{}

func (stubHistory) ListForEntity(context.Context, string, string, int) ([]shared.AuditLog, error) {
	return nil, nil
}

func TestDeliveryPhotoDownloadURLs(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	req := advanceToDeliveryStage(t, svc, "50")

	result, err := svc.MarkReadyForDelivery(ctx, DeliveryInput{
		RequestID:    req.ID,
		DeliverQty:   dec("50"),
		DeliveryType: DeliveryTypeVendor,
		VendorID:     1,
		ReceiverName: "R. Kumar",
		Photos: []PhotoRef{
			{URL: "https://storage.local/siteproc-photos/deliveries/abc", Key: "deliveries/abc"},
		},
		ActorID: 100,
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, svc, stubPhotoStore{}, stubHistory{})
	router := chi.NewRouter()
	router.Get("/deliveries/{id}/photos", h.handleDeliveryPhotos)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/deliveries/"+strconv.FormatInt(result.Delivery.ID, 10)+"/photos", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Photos []struct {
			Key         string `json:"key"`
			DownloadURL string `json:"download_url"`
		} `json:"photos"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Photos, 1)
	require.Equal(t, "deliveries/abc", body.Photos[0].Key)
	require.Equal(t, "https://storage.local/get/deliveries/abc", body.Photos[0].DownloadURL)
}

func TestDeliveryPhotosUnknownDelivery(t *testing.T) {
	svc, _, _ := newTestService(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, svc, stubPhotoStore{}, stubHistory{})
	router := chi.NewRouter()
	router.Get("/deliveries/{id}/photos", h.handleDeliveryPhotos)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/deliveries/999/photos", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
