package services

import (
	"context"
	"testing"
	"time"

	"auction-engine/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAuctionValidation(t *testing.T) {
	h := newHarness(t)
	now := h.clock.Now()

	tests := []struct {
		name    string
		listing Listing
	}{
		{"missing seller", Listing{MaterialID: "m", StartingPrice: decimal.NewFromInt(1), StartTime: now, EndTime: now.Add(time.Hour)}},
		{"zero price", Listing{MaterialID: "m", SellerID: "s", StartTime: now, EndTime: now.Add(time.Hour)}},
		{"sub-cent price", Listing{MaterialID: "m", SellerID: "s", StartingPrice: decimal.RequireFromString("999.995"), StartTime: now, EndTime: now.Add(time.Hour)}},
		{"end before start", Listing{MaterialID: "m", SellerID: "s", StartingPrice: decimal.NewFromInt(1), StartTime: now, EndTime: now}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.auctions.CreateAuction(context.Background(), tt.listing)
			assert.ErrorIs(t, err, domain.ErrInvalidAuction)
		})
	}
}

func TestCreateAuctionStartsAsDraft(t *testing.T) {
	h := newHarness(t)
	created, err := h.auctions.CreateAuction(context.Background(), Listing{
		MaterialID:    "material-1",
		SellerID:      seller.ID,
		StartingPrice: decimal.NewFromInt(1000),
		StartTime:     h.clock.Now().Add(time.Hour),
		EndTime:       h.clock.Now().Add(2 * time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AuctionDraft, created.Status)
	assert.Equal(t, int64(1), created.Version)
	assert.Equal(t, "1000", created.CurrentBid.String())
	assert.False(t, created.HasBids())
	assert.Contains(t, created.ID, "auction-")
}

func TestPublishSchedulesFutureAuction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, err := h.auctions.CreateAuction(ctx, Listing{
		MaterialID:    "material-1",
		SellerID:      seller.ID,
		StartingPrice: decimal.NewFromInt(1000),
		StartTime:     h.clock.Now().Add(time.Hour),
		EndTime:       h.clock.Now().Add(2 * time.Hour),
	})
	require.NoError(t, err)

	_, err = h.auctions.Publish(ctx, created.ID, bidderX)
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)

	published, err := h.auctions.Publish(ctx, created.ID, seller)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionScheduled, published.Status)
	assert.Equal(t, []domain.AuctionEventType{domain.EventAuctionPublished}, h.events.Types())

	_, err = h.auctions.Publish(ctx, created.ID, seller)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestGetSnapshotExpiresLazily(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	auction := h.openAuction(t, 1000)
	h.bid(t, auction.ID, bidderX, 1000)

	snapshot, err := h.auctions.GetSnapshot(ctx, auction.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionActive, snapshot.Status)
	assert.Equal(t, 1, snapshot.BidCount)

	h.clock.Advance(2 * time.Hour)

	snapshot, err = h.auctions.GetSnapshot(ctx, auction.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionEnded, snapshot.Status)
	assert.Equal(t, bidderX.ID, snapshot.WinnerID)
	assert.Equal(t, domain.AuctionEnded, h.auction(t, auction.ID).Status)
}

func TestGetSnapshotUnknownAuction(t *testing.T) {
	h := newHarness(t)
	_, err := h.auctions.GetSnapshot(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestListAuctionsByStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.openAuction(t, 100)
	h.openAuction(t, 200)
	_, err := h.auctions.CreateAuction(ctx, Listing{
		MaterialID:    "material-3",
		SellerID:      seller.ID,
		StartingPrice: decimal.NewFromInt(300),
		StartTime:     h.clock.Now(),
		EndTime:       h.clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	active := domain.AuctionActive
	listed, err := h.auctions.ListAuctions(ctx, &active, 0)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	all, err := h.auctions.ListAuctions(ctx, nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSubmitTransitionChecksObservedState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	auction := h.openAuction(t, 1000)

	_, err := h.sm.SubmitTransition(ctx, auction.ID, Expected{Status: domain.AuctionActive, Version: auction.Version - 1},
		domain.AuctionCancelled, nil)
	assert.ErrorIs(t, err, domain.ErrStaleState)

	_, err = h.sm.SubmitTransition(ctx, auction.ID, Expected{Status: domain.AuctionEnded, Version: auction.Version},
		domain.AuctionActive, nil)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	next, err := h.sm.SubmitTransition(ctx, auction.ID, Expected{Status: domain.AuctionActive, Version: auction.Version},
		domain.AuctionCancelled, nil)
	require.NoError(t, err)
	assert.Equal(t, auction.Version+1, next.Version)

	var transition *domain.TransitionError
	_, err = h.sm.SubmitTransition(ctx, auction.ID, Expected{Status: domain.AuctionActive, Version: auction.Version},
		domain.AuctionEnded, nil)
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, auction.ID, transition.AuctionID)
}
