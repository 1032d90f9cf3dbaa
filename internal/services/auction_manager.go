package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"auction-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

// Listing is what the catalog collaborator hands over when a seller lists an
// item for auction.
type Listing struct {
	MaterialID    string
	SellerID      string
	StartingPrice decimal.Decimal
	StartTime     time.Time
	EndTime       time.Time
}

func (l Listing) validate() error {
	switch {
	case l.MaterialID == "" || l.SellerID == "":
		return fmt.Errorf("%w: material and seller are required", domain.ErrInvalidAuction)
	case !l.StartingPrice.IsPositive():
		return fmt.Errorf("%w: starting price must be positive", domain.ErrInvalidAuction)
	case !l.StartingPrice.Equal(l.StartingPrice.Truncate(maxAmountScale)):
		return fmt.Errorf("%w: starting price has more than %d decimal places", domain.ErrInvalidAuction, maxAmountScale)
	case !l.EndTime.After(l.StartTime):
		return fmt.Errorf("%w: end time must be after start time", domain.ErrInvalidAuction)
	}
	return nil
}

type AuctionManager struct {
	sm         *StateMachine
	store      domain.AuctionStore
	cache      domain.SnapshotCache
	dispatcher *Dispatcher
	log        logger.Logger
}

func NewAuctionManager(
	sm *StateMachine,
	store domain.AuctionStore,
	cache domain.SnapshotCache,
	dispatcher *Dispatcher,
	log logger.Logger,
) *AuctionManager {
	return &AuctionManager{
		sm:         sm,
		store:      store,
		cache:      cache,
		dispatcher: dispatcher,
		log:        log,
	}
}

func (am *AuctionManager) CreateAuction(ctx context.Context, listing Listing) (*domain.Auction, error) {
	if err := listing.validate(); err != nil {
		return nil, err
	}

	now := am.sm.Now()
	auction := &domain.Auction{
		ID:            utils.GenerateID("auction"),
		MaterialID:    listing.MaterialID,
		SellerID:      listing.SellerID,
		StartingPrice: listing.StartingPrice,
		CurrentBid:    listing.StartingPrice,
		StartTime:     listing.StartTime,
		EndTime:       listing.EndTime,
		Status:        domain.AuctionDraft,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := am.store.CreateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("create auction: %w", err)
	}

	am.log.Info("Auction created", "auction_id", auction.ID, "material_id", auction.MaterialID,
		"seller_id", auction.SellerID)
	return auction, nil
}

// Publish schedules a draft, or opens it right away when its window has
// already started.
func (am *AuctionManager) Publish(ctx context.Context, auctionID string, actor domain.Actor) (*domain.Auction, error) {
	auction, err := am.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != auction.SellerID {
		return nil, fmt.Errorf("%w: %s cannot publish auction %s", domain.ErrNotAuthorized, actor.ID, auctionID)
	}
	if auction.Status != domain.AuctionDraft {
		return nil, illegal(auction, domain.AuctionScheduled)
	}

	now := am.sm.Now()
	if !now.Before(auction.EndTime) {
		return nil, fmt.Errorf("%w: auction window already closed", domain.ErrInvalidAuction)
	}

	to, eventType := domain.AuctionScheduled, domain.EventAuctionPublished
	if !now.Before(auction.StartTime) {
		to, eventType = domain.AuctionActive, domain.EventAuctionStarted
	}

	next, err := am.sm.Commit(ctx, auction, to, nil)
	if err != nil {
		return nil, err
	}
	am.dispatcher.Dispatch(ctx, eventType, next)
	return next, nil
}

// StartAuction opens a scheduled auction whose window has begun.
func (am *AuctionManager) StartAuction(ctx context.Context, auction *domain.Auction) (*domain.Auction, error) {
	if auction.Status != domain.AuctionScheduled {
		return nil, illegal(auction, domain.AuctionActive)
	}

	am.log.Info("Starting auction", "auction_id", auction.ID)

	next, err := am.sm.Commit(ctx, auction, domain.AuctionActive, nil)
	if err != nil {
		return nil, err
	}
	am.dispatcher.Dispatch(ctx, domain.EventAuctionStarted, next)
	return next, nil
}

// EndAuction closes an active auction whose window has elapsed. The current
// bidder, if any, becomes the winner; otherwise the item is unsold.
func (am *AuctionManager) EndAuction(ctx context.Context, auction *domain.Auction) (*domain.Auction, error) {
	if auction.Status != domain.AuctionActive {
		return nil, illegal(auction, domain.AuctionEnded)
	}
	if !auction.Expired(am.sm.Now()) {
		return nil, fmt.Errorf("%w: auction %s ends at %s", domain.ErrIllegalTransition, auction.ID,
			auction.EndTime.Format(time.RFC3339))
	}

	am.log.Info("Ending auction", "auction_id", auction.ID)

	next, err := am.sm.Commit(ctx, auction, domain.AuctionEnded, func(next *domain.Auction) (*domain.LedgerChange, error) {
		next.WinnerID = ""
		if next.BidCount > 0 {
			next.WinnerID = next.CurrentBidderID
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	am.dispatcher.Dispatch(ctx, domain.EventAuctionEnded, next)
	return next, nil
}

func (am *AuctionManager) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	auction, err := am.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return am.expireIfDue(ctx, auction), nil
}

// GetSnapshot serves from the cache when possible. A cached active snapshot
// past its end time falls through to the store so it can be expired lazily.
func (am *AuctionManager) GetSnapshot(ctx context.Context, auctionID string) (*domain.Snapshot, error) {
	if am.cache != nil {
		snapshot, err := am.cache.GetSnapshot(ctx, auctionID)
		if err != nil {
			am.log.Warn("Snapshot cache read failed", "auction_id", auctionID, "error", err)
		} else if snapshot != nil && !(snapshot.Status == domain.AuctionActive && !am.sm.Now().Before(snapshot.EndTime)) {
			return snapshot, nil
		}
	}

	auction, err := am.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	snapshot := auction.Snapshot()
	return &snapshot, nil
}

func (am *AuctionManager) ListAuctions(ctx context.Context, status *domain.AuctionStatus, limit int) ([]*domain.Auction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	auctions, err := am.store.ListAuctions(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list auctions: %w", err)
	}
	return auctions, nil
}

func (am *AuctionManager) expireIfDue(ctx context.Context, auction *domain.Auction) *domain.Auction {
	if auction.Status != domain.AuctionActive || !auction.Expired(am.sm.Now()) {
		return auction
	}

	ended, err := am.EndAuction(ctx, auction)
	if err == nil {
		return ended
	}
	if !errors.Is(err, domain.ErrStaleState) {
		am.log.Warn("Lazy expiry failed", "auction_id", auction.ID, "error", err)
		return auction
	}
	// someone else wrote first; report what is stored now
	if fresh, err := am.store.GetAuction(ctx, auction.ID); err == nil {
		return fresh
	}
	return auction
}
