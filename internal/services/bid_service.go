package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"auction-engine/pkg/utils"

	"github.com/shopspring/decimal"
)

// maxAmountScale is the number of decimal places the ledger stores.
const maxAmountScale = 2

type BidServiceConfig struct {
	MaxRetries     int
	RecordRejected bool
}

// BidService serializes bid placement and deletion per auction through the
// state machine's version check. Nothing is locked across auctions.
type BidService struct {
	sm         *StateMachine
	store      domain.AuctionStore
	validator  *BidValidator
	rule       domain.BiddingRule
	dispatcher *Dispatcher
	metrics    domain.Metrics
	cfg        BidServiceConfig
	log        logger.Logger
}

func NewBidService(
	sm *StateMachine,
	store domain.AuctionStore,
	validator *BidValidator,
	rule domain.BiddingRule,
	dispatcher *Dispatcher,
	metrics domain.Metrics,
	cfg BidServiceConfig,
	log logger.Logger,
) *BidService {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &BidService{
		sm:         sm,
		store:      store,
		validator:  validator,
		rule:       rule,
		dispatcher: dispatcher,
		metrics:    metrics,
		cfg:        cfg,
		log:        log,
	}
}

func (s *BidService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (*domain.Bid, error) {
	started := s.sm.Now()
	defer func() { s.metrics.ObservePlaceBid(s.sm.Now().Sub(started)) }()

	s.log.Info("Placing bid", "auction_id", auctionID, "user_id", bidderID, "amount", amount.String())

	if bidderID == "" || !amount.IsPositive() {
		s.metrics.BidRejected(RejectionReason(domain.ErrInvalidBid))
		return nil, fmt.Errorf("%w: bidder and positive amount are required", domain.ErrInvalidBid)
	}
	if !amount.Equal(amount.Truncate(maxAmountScale)) {
		s.metrics.BidRejected(RejectionReason(domain.ErrInvalidBid))
		return nil, fmt.Errorf("%w: amount %s has more than %d decimal places", domain.ErrInvalidBid, amount, maxAmountScale)
	}

	bidderChecked := false
	var minimum decimal.Decimal

	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		auction, err := s.store.GetAuction(ctx, auctionID)
		if err != nil {
			if errors.Is(err, domain.ErrAuctionNotFound) {
				s.metrics.BidRejected(RejectionReason(domain.ErrAuctionNotAcceptingBids))
				return nil, fmt.Errorf("%w: %w", domain.ErrAuctionNotAcceptingBids, err)
			}
			return nil, err
		}

		if err := s.validator.CheckAuction(auction, s.sm.Now()); err != nil {
			return nil, s.reject(ctx, auction, bidderID, amount, err)
		}
		if !bidderChecked {
			if err := s.validator.CheckBidder(ctx, auction, bidderID); err != nil {
				if !errors.Is(err, domain.ErrBidderNotEligible) {
					return nil, err
				}
				return nil, s.reject(ctx, auction, bidderID, amount, err)
			}
			bidderChecked = true
		}
		minimum = s.rule.MinimumBid(auction)
		if err := s.validator.CheckAmount(auction, amount); err != nil {
			if attempt > 1 {
				// the price moved under us: another bidder won the race
				s.metrics.BidRejected(RejectionReason(domain.ErrConcurrentBidConflict))
				return nil, &domain.ConcurrentBidConflictError{Minimum: minimum, Attempts: attempt}
			}
			return nil, s.reject(ctx, auction, bidderID, amount, err)
		}

		bid := &domain.Bid{
			ID:        utils.NewUUID(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			Timestamp: s.sm.Now(),
			Accepted:  true,
			IsWinning: true,
		}

		next, err := s.sm.Commit(ctx, auction, domain.AuctionActive, func(next *domain.Auction) (*domain.LedgerChange, error) {
			next.CurrentBid = amount
			next.CurrentBidderID = bidderID
			next.BidCount++
			return &domain.LedgerChange{InsertBid: bid, WinningBidID: bid.ID}, nil
		})
		if err == nil {
			s.metrics.BidAccepted()
			s.log.Info("Bid accepted", "auction_id", auctionID, "user_id", bidderID,
				"amount", amount.String(), "version", next.Version, "attempt", attempt)
			s.dispatcher.Dispatch(ctx, domain.EventBidAccepted, next)
			return bid, nil
		}
		if !errors.Is(err, domain.ErrStaleState) {
			return nil, err
		}

		s.metrics.VersionConflict("place_bid")
		s.log.Debug("Lost bid race, re-reading auction", "auction_id", auctionID, "attempt", attempt)
	}

	// budget exhausted; report the freshest minimum we can see
	if auction, err := s.store.GetAuction(ctx, auctionID); err == nil {
		minimum = s.rule.MinimumBid(auction)
	}
	s.metrics.BidRejected(RejectionReason(domain.ErrConcurrentBidConflict))
	return nil, &domain.ConcurrentBidConflictError{Minimum: minimum, Attempts: s.cfg.MaxRetries}
}

func (s *BidService) reject(ctx context.Context, auction *domain.Auction, bidderID string,
	amount decimal.Decimal, cause error) error {
	reason := RejectionReason(cause)
	s.metrics.BidRejected(reason)
	s.log.Info("Bid rejected", "auction_id", auction.ID, "user_id", bidderID,
		"amount", amount.String(), "reason", reason)

	if s.cfg.RecordRejected {
		audit := &domain.Bid{
			ID:        utils.NewUUID(),
			AuctionID: auction.ID,
			BidderID:  bidderID,
			Amount:    amount,
			Timestamp: s.sm.Now(),
			Reason:    reason,
		}
		if err := s.store.RecordRejectedBid(ctx, audit); err != nil {
			s.log.Error("Failed to record rejected bid", "auction_id", auction.ID, "error", err)
		}
	}
	return cause
}

// DeleteBid removes a ledger entry. Admins may delete any bid, sellers only on
// their own auction, and only before admin approval. Removing the head bid
// recomputes the head from the remaining accepted bids.
func (s *BidService) DeleteBid(ctx context.Context, auctionID, bidID string, actor domain.Actor) (*domain.Auction, error) {
	var status domain.AuctionStatus
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		auction, err := s.store.GetAuction(ctx, auctionID)
		if err != nil {
			return nil, err
		}
		status = auction.Status

		if !actor.IsAdmin() && !(actor.Role == domain.RoleSeller && actor.ID == auction.SellerID) {
			return nil, fmt.Errorf("%w: %s cannot delete bids on auction %s", domain.ErrNotAuthorized, actor.ID, auctionID)
		}
		if auction.Status != domain.AuctionActive && auction.Status != domain.AuctionSellerApproved {
			return nil, &domain.TransitionError{AuctionID: auctionID, From: auction.Status, To: auction.Status, Err: domain.ErrIllegalTransition}
		}

		target, err := s.store.GetBid(ctx, auctionID, bidID)
		if err != nil {
			return nil, err
		}
		// rejected rows are audit records, not ledger entries
		if !target.Accepted {
			return nil, fmt.Errorf("%w: %s was never accepted", domain.ErrBidNotFound, bidID)
		}

		bids, err := s.store.GetBids(ctx, auctionID, false)
		if err != nil {
			return nil, fmt.Errorf("load ledger for auction %s: %w", auctionID, err)
		}
		remaining := make([]*domain.Bid, 0, len(bids))
		for _, b := range bids {
			if b.ID != target.ID {
				remaining = append(remaining, b)
			}
		}

		head := ledgerHead(remaining)
		next, err := s.sm.Commit(ctx, auction, auction.Status, func(next *domain.Auction) (*domain.LedgerChange, error) {
			next.BidCount = len(remaining)
			change := &domain.LedgerChange{DeleteBidID: bidID}
			if head != nil {
				next.CurrentBid = head.Amount
				next.CurrentBidderID = head.BidderID
				change.WinningBidID = head.ID
			} else {
				next.CurrentBid = next.StartingPrice
				next.CurrentBidderID = ""
			}
			if next.Status == domain.AuctionSellerApproved {
				next.WinnerID = next.CurrentBidderID
			}
			return change, nil
		})
		if err == nil {
			s.log.Info("Bid deleted", "auction_id", auctionID, "bid_id", bidID, "actor", actor.ID,
				"current_bid", next.CurrentBid.String(), "version", next.Version)
			s.dispatcher.Dispatch(ctx, domain.EventBidDeleted, next)
			return next, nil
		}
		if !errors.Is(err, domain.ErrStaleState) {
			return nil, err
		}
		s.metrics.VersionConflict("delete_bid")
	}

	return nil, &domain.TransitionError{AuctionID: auctionID, From: status, To: status, Err: domain.ErrStaleState}
}

// ledgerHead picks the highest accepted amount; ties go to the earlier bid.
func ledgerHead(bids []*domain.Bid) *domain.Bid {
	if len(bids) == 0 {
		return nil
	}
	sorted := append([]*domain.Bid(nil), bids...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].Amount.Cmp(sorted[j].Amount); c != 0 {
			return c > 0
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted[0]
}

func (s *BidService) GetBidHistory(ctx context.Context, auctionID string, includeRejected bool) ([]*domain.Bid, error) {
	if _, err := s.store.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	bids, err := s.store.GetBids(ctx, auctionID, includeRejected)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// GetBid returns one ledger row, rejected audit rows included.
func (s *BidService) GetBid(ctx context.Context, auctionID, bidID string) (*domain.Bid, error) {
	if _, err := s.store.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.store.GetBid(ctx, auctionID, bidID)
}
