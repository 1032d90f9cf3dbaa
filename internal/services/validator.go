package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-engine/internal/domain"

	"github.com/shopspring/decimal"
)

// BidValidator runs the placeBid preconditions in their fixed order.
type BidValidator struct {
	identity domain.IdentityDirectory
	rule     domain.BiddingRule
}

func NewBidValidator(identity domain.IdentityDirectory, rule domain.BiddingRule) *BidValidator {
	return &BidValidator{
		identity: identity,
		rule:     rule,
	}
}

func (v *BidValidator) CheckAuction(auction *domain.Auction, now time.Time) error {
	// approval flags and status are two facts about one auction; either closes bidding
	if auction.SellerApproved || auction.AdminApproved ||
		auction.Status == domain.AuctionSellerApproved || auction.Status == domain.AuctionAdminApproved {
		return fmt.Errorf("%w: auction %s is %s", domain.ErrBiddingClosed, auction.ID, auction.Status)
	}
	if !auction.Status.AcceptsBids() || auction.Expired(now) {
		return fmt.Errorf("%w: auction %s is %s", domain.ErrAuctionNotAcceptingBids, auction.ID, auction.Status)
	}
	return nil
}

func (v *BidValidator) CheckBidder(ctx context.Context, auction *domain.Auction, bidderID string) error {
	actor, err := v.identity.GetActor(ctx, bidderID)
	if err != nil {
		if errors.Is(err, domain.ErrActorNotFound) {
			return fmt.Errorf("%w: unknown bidder %s", domain.ErrBidderNotEligible, bidderID)
		}
		return fmt.Errorf("lookup bidder %s: %w", bidderID, err)
	}
	if actor.Role != domain.RoleBuyer || !actor.VerifiedBuyer {
		return fmt.Errorf("%w: %s is not a verified buyer", domain.ErrBidderNotEligible, bidderID)
	}
	if actor.ID == auction.SellerID {
		return fmt.Errorf("%w: seller cannot bid on own auction", domain.ErrBidderNotEligible)
	}
	return nil
}

func (v *BidValidator) CheckAmount(auction *domain.Auction, amount decimal.Decimal) error {
	minimum := v.rule.MinimumBid(auction)
	if amount.LessThan(minimum) {
		return &domain.BidTooLowError{Amount: amount, Minimum: minimum}
	}
	return nil
}

// RejectionReason maps a precondition failure to the code kept in the audit ledger.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuctionNotAcceptingBids):
		return "auction_not_accepting_bids"
	case errors.Is(err, domain.ErrBiddingClosed):
		return "bidding_closed"
	case errors.Is(err, domain.ErrBidderNotEligible):
		return "bidder_not_eligible"
	case errors.Is(err, domain.ErrBidTooLow):
		return "bid_too_low"
	case errors.Is(err, domain.ErrConcurrentBidConflict):
		return "concurrent_bid_conflict"
	case errors.Is(err, domain.ErrInvalidBid):
		return "invalid_bid"
	}
	return "error"
}
