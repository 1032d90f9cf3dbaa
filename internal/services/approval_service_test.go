package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/internal/domain/mocks"
	"auction-engine/pkg/logger"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestApprovalFlowClosesBiddingAndIssuesOneOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	orders := mocks.NewMockPurchaseOrderRequester(ctrl)
	h := newHarness(t, withOrders(orders))
	ctx := context.Background()

	auction := h.openAuction(t, 4000)
	h.bid(t, auction.ID, bidderX, 5000)

	accepted, err := h.approvals.SellerAccept(ctx, auction.ID, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionSellerApproved, accepted.Status)
	assert.True(t, accepted.SellerApproved)
	assert.Equal(t, bidderX.ID, accepted.WinnerID)

	_, err = h.bids.PlaceBid(ctx, auction.ID, bidderY.ID, decimal.NewFromInt(6000))
	assert.ErrorIs(t, err, domain.ErrBiddingClosed)

	orders.EXPECT().
		RequestPurchaseOrder(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *domain.PurchaseOrderRequest) (string, error) {
			assert.Equal(t, auction.ID, req.AuctionID)
			assert.Equal(t, bidderX.ID, req.WinnerID)
			assert.Equal(t, "5000", req.FinalAmount.String())
			return req.Reference, nil
		}).
		Times(1)

	approved, err := h.approvals.AdminApprove(ctx, auction.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionAdminApproved, approved.Status)
	assert.NotEmpty(t, approved.PurchaseOrderRef)
	assert.Equal(t, approved.PurchaseOrderRef, h.auction(t, auction.ID).PurchaseOrderRef)

	_, err = h.approvals.AdminApprove(ctx, auction.ID, admin)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	assert.Equal(t, []domain.AuctionEventType{
		domain.EventAuctionStarted,
		domain.EventBidAccepted,
		domain.EventSellerApproved,
		domain.EventAdminApproved,
	}, h.events.Types())
}

func TestConcurrentAdminApproveRequestsOrderOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	orders := mocks.NewMockPurchaseOrderRequester(ctrl)
	orders.EXPECT().RequestPurchaseOrder(gomock.Any(), gomock.Any()).Return("po-x", nil).Times(1)

	h := newHarness(t, withOrders(orders))
	ctx := context.Background()
	auction := h.openAuction(t, 1000)
	h.bid(t, auction.ID, bidderX, 1000)
	_, err := h.approvals.SellerAccept(ctx, auction.ID, seller.ID)
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.approvals.AdminApprove(ctx, auction.ID, admin)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrStaleState) || errors.Is(err, domain.ErrIllegalTransition),
			"unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
}

func TestAdminApproveKeepsApprovalWhenOrderRequestFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	orders := mocks.NewMockPurchaseOrderRequester(ctrl)
	orders.EXPECT().RequestPurchaseOrder(gomock.Any(), gomock.Any()).Return("", errors.New("broker down"))

	h := newHarness(t, withOrders(orders))
	ctx := context.Background()
	auction := h.openAuction(t, 1000)
	h.bid(t, auction.ID, bidderX, 1000)
	_, err := h.approvals.SellerAccept(ctx, auction.ID, seller.ID)
	require.NoError(t, err)

	approved, err := h.approvals.AdminApprove(ctx, auction.ID, admin)
	require.Error(t, err)
	require.NotNil(t, approved)
	assert.Equal(t, domain.AuctionAdminApproved, h.auction(t, auction.ID).Status)
}

func TestAdminApproveFlagsForeignOrderReference(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	orders := mocks.NewMockPurchaseOrderRequester(ctrl)
	orders.EXPECT().RequestPurchaseOrder(gomock.Any(), gomock.Any()).Return("po-elsewhere", nil)

	core, logs := observer.New(zapcore.WarnLevel)
	h := newHarness(t, withOrders(orders), withLogger(logger.NewFromZap(zap.New(core))))
	ctx := context.Background()
	auction := h.openAuction(t, 1000)
	h.bid(t, auction.ID, bidderX, 1000)
	_, err := h.approvals.SellerAccept(ctx, auction.ID, seller.ID)
	require.NoError(t, err)

	approved, err := h.approvals.AdminApprove(ctx, auction.ID, admin)
	require.NoError(t, err)
	assert.NotEqual(t, "po-elsewhere", approved.PurchaseOrderRef)

	mismatches := logs.FilterMessage("Purchase order filed under a different reference").AllUntimed()
	require.Len(t, mismatches, 1)
	fields := mismatches[0].ContextMap()
	assert.Equal(t, approved.PurchaseOrderRef, fields["purchase_order_ref"])
	assert.Equal(t, "po-elsewhere", fields["filed_ref"])
}

func TestSellerAcceptPreconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	auction := h.openAuction(t, 1000)

	_, err := h.approvals.SellerAccept(ctx, auction.ID, seller.ID)
	assert.ErrorIs(t, err, domain.ErrAuctionHasNoBids)

	h.bid(t, auction.ID, bidderX, 1000)

	_, err = h.approvals.SellerAccept(ctx, auction.ID, "someone-else")
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	_, err = h.approvals.AdminApprove(ctx, auction.ID, admin)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	_, err = h.approvals.AdminApprove(ctx, auction.ID, seller)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)
}

func TestAdminRejectCancelsWithReason(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	auction := h.openAuction(t, 1000)
	h.bid(t, auction.ID, bidderX, 1000)
	_, err := h.approvals.SellerAccept(ctx, auction.ID, seller.ID)
	require.NoError(t, err)

	rejected, err := h.approvals.AdminReject(ctx, auction.ID, admin, "price below market")
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionCancelled, rejected.Status)
	assert.Equal(t, "price below market", rejected.RejectReason)
	assert.Empty(t, rejected.WinnerID)
	assert.Contains(t, h.events.Types(), domain.EventAuctionRejected)

	_, err = h.approvals.AdminReject(ctx, auction.ID, admin, "again")
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	draft, err := h.auctions.CreateAuction(ctx, Listing{
		MaterialID:    "material-2",
		SellerID:      seller.ID,
		StartingPrice: decimal.NewFromInt(10),
		StartTime:     h.clock.Now().Add(time.Hour),
		EndTime:       h.clock.Now().Add(2 * time.Hour),
	})
	require.NoError(t, err)

	_, err = h.approvals.Cancel(ctx, draft.ID, bidderX)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	cancelled, err := h.approvals.Cancel(ctx, draft.ID, seller)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionCancelled, cancelled.Status)

	live := h.openAuction(t, 1000)
	h.bid(t, live.ID, bidderX, 1000)
	_, err = h.approvals.Cancel(ctx, live.ID, admin)
	assert.ErrorIs(t, err, domain.ErrAuctionHasBids)

	_, err = h.approvals.Cancel(ctx, draft.ID, admin)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}
