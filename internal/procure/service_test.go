package procure

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/siteproc/siteproc/internal/numbering"
)

func newTestService(t *testing.T) (*Service, *memoryRepo, *memoryAudit) {
	t.Helper()
	repo := newMemoryRepo()
	repo.vendors[1] = true
	repo.vendors[2] = true
	repo.sites[10] = true
	audit := &memoryAudit{}
	return NewService(repo, audit), repo, audit
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func createPendingRequest(t *testing.T, svc *Service, qty string) Request {
	t.Helper()
	created, err := svc.CreateRequests(context.Background(), CreateRequestsInput{
		SiteID:    10,
		CreatorID: 100,
		Items: []RequestItemInput{
			{ItemName: "Cement OPC 53", Quantity: dec(qty), Unit: "bag"},
		},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	return created[0]
}

// advanceToReadyForPO walks a fresh request through approval and an approved
// cost comparison with the given quotes, selecting selectVendor.
func advanceToReadyForPO(t *testing.T, svc *Service, quotes []VendorQuote, selectVendor int64, qty string) Request {
	t.Helper()
	ctx := context.Background()
	req := createPendingRequest(t, svc, qty)
	require.NoError(t, svc.ApproveRequest(ctx, req.ID, 200))
	_, err := svc.UpsertCostComparison(ctx, UpsertCCInput{
		RequestID: req.ID, Quotes: quotes, ActorID: 300,
	})
	require.NoError(t, err)
	require.NoError(t, svc.SubmitCostComparison(ctx, req.ID, 300))
	require.NoError(t, svc.ReviewCostComparison(ctx, ReviewCCInput{
		RequestID: req.ID, Action: ReviewApprove, SelectedVendorID: selectVendor, ManagerID: 200,
	}))
	updated, err := svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, RequestStatusReadyForPO, updated.Status)
	return updated
}

func TestCreateRequestsBatchSharesNumber(t *testing.T) {
	svc, _, audit := newTestService(t)
	created, err := svc.CreateRequests(context.Background(), CreateRequestsInput{
		SiteID:    10,
		CreatorID: 100,
		Items: []RequestItemInput{
			{ItemName: "Cement", Quantity: dec("50"), Unit: "bag"},
			{ItemName: "Sand", Quantity: dec("3.5"), Unit: "m3"},
			{ItemName: "Steel 12mm", Quantity: dec("200"), Unit: "kg"},
		},
	})
	require.NoError(t, err)
	require.Len(t, created, 3)
	require.Equal(t, "REQ-0001", created[0].RequestNumber)
	for i, req := range created {
		require.Equal(t, created[0].RequestNumber, req.RequestNumber)
		require.Equal(t, i+1, req.ItemOrder)
		require.Equal(t, RequestStatusPending, req.Status)
	}
	require.Contains(t, audit.actions(), "REQUEST_CREATE")
}

func TestCreateRequestsValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateRequests(ctx, CreateRequestsInput{SiteID: 10, CreatorID: 100})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateRequests(ctx, CreateRequestsInput{
		SiteID: 10, CreatorID: 100,
		Items: []RequestItemInput{{ItemName: "Cement", Quantity: dec("0"), Unit: "bag"}},
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.CreateRequests(ctx, CreateRequestsInput{
		SiteID: 999, CreatorID: 100,
		Items: []RequestItemInput{{ItemName: "Cement", Quantity: dec("1"), Unit: "bag"}},
	})
	require.ErrorIs(t, err, ErrSiteNotFound)
}

func TestDraftSubmitFlow(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.CreateRequests(ctx, CreateRequestsInput{
		SiteID: 10, CreatorID: 100, AsDraft: true,
		Items: []RequestItemInput{{ItemName: "Cement", Quantity: dec("5"), Unit: "bag"}},
	})
	require.NoError(t, err)
	require.Equal(t, RequestStatusDraft, created[0].Status)

	require.NoError(t, svc.SubmitRequest(ctx, created[0].ID, 100))
	req, err := svc.GetRequest(ctx, created[0].ID)
	require.NoError(t, err)
	require.Equal(t, RequestStatusPending, req.Status)

	// Submitting twice is an invalid transition.
	require.ErrorIs(t, svc.SubmitRequest(ctx, created[0].ID, 100), ErrInvalidTransition)
}

func TestRejectRequiresPendingAndReason(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	req := createPendingRequest(t, svc, "10")

	require.ErrorIs(t, svc.RejectRequest(ctx, req.ID, 200, ""), ErrValidation)
	require.NoError(t, svc.RejectRequest(ctx, req.ID, 200, "over budget"))

	rejected, err := svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, RequestStatusRejected, rejected.Status)
	require.Equal(t, "over budget", rejected.RejectReason)

	// Terminal: no further approval possible.
	require.ErrorIs(t, svc.ApproveRequest(ctx, req.ID, 200), ErrInvalidTransition)
}

func TestCostComparisonSubmitNeedsQuotesUnlessDirect(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	req := createPendingRequest(t, svc, "10")
	require.NoError(t, svc.ApproveRequest(ctx, req.ID, 200))

	_, err := svc.UpsertCostComparison(ctx, UpsertCCInput{RequestID: req.ID, ActorID: 300})
	require.NoError(t, err)
	require.ErrorIs(t, svc.SubmitCostComparison(ctx, req.ID, 300), ErrEmptyQuoteSet)

	// Direct delivery exempts sourcing, so an empty quote set passes.
	_, err = svc.UpsertCostComparison(ctx, UpsertCCInput{
		RequestID: req.ID, IsDirectDelivery: true, ActorID: 300,
	})
	require.NoError(t, err)
	require.NoError(t, svc.SubmitCostComparison(ctx, req.ID, 300))

	updated, err := svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, RequestStatusCCPending, updated.Status)
}

func TestReviewApproveRequiresQuotedVendor(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	req := createPendingRequest(t, svc, "10")
	require.NoError(t, svc.ApproveRequest(ctx, req.ID, 200))
	_, err := svc.UpsertCostComparison(ctx, UpsertCCInput{
		RequestID: req.ID,
		Quotes:    []VendorQuote{{VendorID: 1, UnitPrice: dec("10.5")}},
		ActorID:   300,
	})
	require.NoError(t, err)
	require.NoError(t, svc.SubmitCostComparison(ctx, req.ID, 300))

	err = svc.ReviewCostComparison(ctx, ReviewCCInput{
		RequestID: req.ID, Action: ReviewApprove, SelectedVendorID: 2, ManagerID: 200,
	})
	require.ErrorIs(t, err, ErrVendorNotQuoted)

	// Vendor selection is mandatory without direct delivery.
	err = svc.ReviewCostComparison(ctx, ReviewCCInput{
		RequestID: req.ID, Action: ReviewApprove, ManagerID: 200,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestRejectResubmitLoop(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	req := createPendingRequest(t, svc, "10")
	require.NoError(t, svc.ApproveRequest(ctx, req.ID, 200))
	_, err := svc.UpsertCostComparison(ctx, UpsertCCInput{
		RequestID: req.ID,
		Quotes:    []VendorQuote{{VendorID: 1, UnitPrice: dec("12")}},
		ActorID:   300,
	})
	require.NoError(t, err)
	require.NoError(t, svc.SubmitCostComparison(ctx, req.ID, 300))

	require.NoError(t, svc.ReviewCostComparison(ctx, ReviewCCInput{
		RequestID: req.ID, Action: ReviewReject, Notes: "get a second quote", ManagerID: 200,
	}))
	cc, err := svc.GetCostComparison(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, CCStatusRejected, cc.Status)
	require.Equal(t, "get a second quote", cc.ManagerNotes)

	back, err := svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, RequestStatusReadyForCC, back.Status)

	require.NoError(t, svc.ResubmitCostComparison(ctx, UpsertCCInput{
		RequestID: req.ID,
		Quotes: []VendorQuote{
			{VendorID: 1, UnitPrice: dec("12")},
			{VendorID: 2, UnitPrice: dec("11.25")},
		},
		ActorID: 300,
	}))
	cc, err = svc.GetCostComparison(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, CCStatusPending, cc.Status)
	require.Empty(t, cc.ManagerNotes)
	require.Len(t, cc.Quotes, 2)
}

func TestReviewLostRaceIsStale(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	req := createPendingRequest(t, svc, "10")
	require.NoError(t, svc.ApproveRequest(ctx, req.ID, 200))
	_, err := svc.UpsertCostComparison(ctx, UpsertCCInput{
		RequestID: req.ID,
		Quotes:    []VendorQuote{{VendorID: 1, UnitPrice: dec("10")}},
		ActorID:   300,
	})
	require.NoError(t, err)
	require.NoError(t, svc.SubmitCostComparison(ctx, req.ID, 300))

	// A concurrent reviewer resolves the comparison between this caller's
	// pre-read and its transaction; the guard rejects the overwrite.
	repo.beforeTx = func() {
		repo.ccs[req.ID].Status = CCStatusApproved
		repo.ccs[req.ID].SelectedVendorID = 1
		repo.requests[req.ID].Status = RequestStatusReadyForPO
	}
	err = svc.ReviewCostComparison(ctx, ReviewCCInput{
		RequestID: req.ID, Action: ReviewApprove, SelectedVendorID: 1, ManagerID: 201,
	})
	require.ErrorIs(t, err, ErrStaleState)
}

func TestCreatePOFromRequestTotals(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	quotes := []VendorQuote{
		{VendorID: 1, UnitPrice: dec("10.5")},
		{VendorID: 2, UnitPrice: dec("9.0")},
	}
	req := advanceToReadyForPO(t, svc, quotes, 2, "5")

	po, err := svc.CreatePOFromRequest(ctx, CreatePOInput{
		RequestID:  req.ID,
		VendorID:   2,
		UnitRate:   dec("9.0"),
		GSTTaxRate: dec("18"),
		ValidTill:  time.Now().Add(30 * 24 * time.Hour),
		ActorID:    300,
	})
	require.NoError(t, err)
	require.Equal(t, "PO-0001", po.PONumber)
	require.Equal(t, POStatusOrdered, po.Status)
	// 5 * 9.0 * 1.18 = 53.10
	require.True(t, po.TotalAmount.Equal(dec("53.10")), "got %s", po.TotalAmount)

	advanced, err := svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, RequestStatusDeliveryStage, advanced.Status)

	// Issuing a second PO off the same request fails: status already moved.
	_, err = svc.CreatePOFromRequest(ctx, CreatePOInput{
		RequestID: req.ID, VendorID: 2, UnitRate: dec("9.0"),
		ValidTill: time.Now().Add(time.Hour), ActorID: 300,
	})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCreatePORejectsUnselectedVendor(t *testing.T) {
	svc, _, _ := newTestService(t)
	quotes := []VendorQuote{
		{VendorID: 1, UnitPrice: dec("10")},
		{VendorID: 2, UnitPrice: dec("9")},
	}
	req := advanceToReadyForPO(t, svc, quotes, 2, "5")

	_, err := svc.CreatePOFromRequest(context.Background(), CreatePOInput{
		RequestID: req.ID, VendorID: 1, UnitRate: dec("10"),
		ValidTill: time.Now().Add(time.Hour), ActorID: 300,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestDirectPOPastValidityConsumesNoNumber(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateDirectPO(ctx, DirectPOInput{
		ItemDescription: "Diesel for generator",
		Quantity:        dec("200"),
		Unit:            "litre",
		VendorID:        1,
		DeliverySiteID:  10,
		UnitRate:        dec("92.5"),
		ValidTill:       time.Now().Add(-time.Hour),
		ActorID:         300,
	})
	require.ErrorIs(t, err, ErrValidation)
	require.Zero(t, repo.seq[numbering.ScopePurchaseOrder])

	po, err := svc.CreateDirectPO(ctx, DirectPOInput{
		ItemDescription: "Diesel for generator",
		Quantity:        dec("200"),
		Unit:            "litre",
		VendorID:        1,
		DeliverySiteID:  10,
		UnitRate:        dec("92.5"),
		GSTTaxRate:      dec("18"),
		ValidTill:       time.Now().Add(24 * time.Hour),
		ActorID:         300,
	})
	require.NoError(t, err)
	require.True(t, po.IsDirect)
	require.Equal(t, "PO-0001", po.PONumber)
	require.Zero(t, po.RequestID)
}

func TestPOStatusOneDirectional(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	po, err := svc.CreateDirectPO(ctx, DirectPOInput{
		ItemDescription: "Bricks",
		Quantity:        dec("1000"),
		Unit:            "pc",
		VendorID:        1,
		DeliverySiteID:  10,
		UnitRate:        dec("8"),
		ValidTill:       time.Now().Add(time.Hour),
		ActorID:         300,
	})
	require.NoError(t, err)

	// Delivered needs an actual delivery date.
	err = svc.UpdatePOStatus(ctx, po.ID, POStatusDelivered, time.Time{}, 300)
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, svc.UpdatePOStatus(ctx, po.ID, POStatusDelivered, time.Now(), 300))

	// A second transition out of a terminal state reports AlreadyTerminal.
	err = svc.UpdatePOStatus(ctx, po.ID, POStatusCancelled, time.Time{}, 300)
	require.ErrorIs(t, err, ErrAlreadyTerminal)
	err = svc.UpdatePOStatus(ctx, po.ID, POStatusDelivered, time.Now(), 300)
	require.ErrorIs(t, err, ErrAlreadyTerminal)
	require.ErrorIs(t, svc.CancelPO(ctx, po.ID, 300), ErrAlreadyTerminal)
}

func TestCancelPO(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	po, err := svc.CreateDirectPO(ctx, DirectPOInput{
		ItemDescription: "Bricks",
		Quantity:        dec("1000"),
		Unit:            "pc",
		VendorID:        1,
		DeliverySiteID:  10,
		UnitRate:        dec("8"),
		ValidTill:       time.Now().Add(time.Hour),
		ActorID:         300,
	})
	require.NoError(t, err)

	require.NoError(t, svc.CancelPO(ctx, po.ID, 300))
	require.ErrorIs(t, svc.CancelPO(ctx, po.ID, 300), ErrAlreadyTerminal)
}

func TestExpiredPOsListing(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	po, err := svc.CreateDirectPO(ctx, DirectPOInput{
		ItemDescription: "Paint",
		Quantity:        dec("40"),
		Unit:            "litre",
		VendorID:        1,
		DeliverySiteID:  10,
		UnitRate:        dec("450"),
		ValidTill:       time.Now().Add(time.Minute),
		ActorID:         300,
	})
	require.NoError(t, err)
	repo.pos[po.ID].ValidTill = time.Now().Add(-time.Hour)

	expired, err := svc.ListExpiredPOs(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.True(t, expired[0].Expired)

	// An expired PO stays actionable until explicitly resolved.
	require.NoError(t, svc.CancelPO(ctx, po.ID, 300))
}
