package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Lookup errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrBidNotFound     = errors.New("bid not found")
	ErrActorNotFound   = errors.New("actor not found")
)

// Bidding and lifecycle errors
var (
	ErrAuctionNotAcceptingBids = errors.New("auction is not accepting bids")
	ErrBiddingClosed           = errors.New("bidding is closed")
	ErrBidderNotEligible       = errors.New("bidder is not eligible")
	ErrBidTooLow               = errors.New("bid amount too low")
	ErrConcurrentBidConflict   = errors.New("someone else just bid higher")
	ErrStaleState              = errors.New("auction state is stale")
	ErrIllegalTransition       = errors.New("illegal status transition")
	ErrAuctionHasNoBids        = errors.New("auction has no bids")
	ErrAuctionHasBids          = errors.New("auction already has bids")
	ErrNotAuthorized           = errors.New("not authorized")
	ErrInvalidAuction          = errors.New("invalid auction")
	ErrInvalidBid              = errors.New("invalid bid")
)

// ErrVersionConflict is returned by stores when a conditional write matched no row.
var ErrVersionConflict = errors.New("auction version conflict")

type BidTooLowError struct {
	Amount  decimal.Decimal
	Minimum decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s: %s offered, minimum accepted bid is %s",
		ErrBidTooLow, e.Amount.StringFixed(2), e.Minimum.StringFixed(2))
}

func (e *BidTooLowError) Unwrap() error {
	return ErrBidTooLow
}

// ConcurrentBidConflictError means another bid won the race; Minimum is the
// price a resubmission has to meet.
type ConcurrentBidConflictError struct {
	Minimum  decimal.Decimal
	Attempts int
}

func (e *ConcurrentBidConflictError) Error() string {
	return fmt.Sprintf("%s: minimum accepted bid is now %s (after %d attempts)",
		ErrConcurrentBidConflict, e.Minimum.StringFixed(2), e.Attempts)
}

func (e *ConcurrentBidConflictError) Unwrap() error {
	return ErrConcurrentBidConflict
}

type TransitionError struct {
	AuctionID string
	From      AuctionStatus
	To        AuctionStatus
	Err       error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("auction %s: %s -> %s: %v", e.AuctionID, e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrConcurrentBidConflict, "concurrent_bid_conflict"},
	{ErrBidTooLow, "bid_too_low"},
	{ErrBiddingClosed, "bidding_closed"},
	{ErrAuctionNotAcceptingBids, "auction_not_accepting_bids"},
	{ErrBidderNotEligible, "bidder_not_eligible"},
	{ErrStaleState, "stale_state"},
	{ErrIllegalTransition, "illegal_transition"},
	{ErrAuctionHasNoBids, "auction_has_no_bids"},
	{ErrAuctionHasBids, "auction_has_bids"},
	{ErrNotAuthorized, "not_authorized"},
	{ErrAuctionNotFound, "auction_not_found"},
	{ErrBidNotFound, "bid_not_found"},
	{ErrActorNotFound, "actor_not_found"},
	{ErrInvalidAuction, "invalid_auction"},
	{ErrInvalidBid, "invalid_bid"},
}

// ErrorCode returns the stable client-facing code for err, or "internal".
// The first match wins, so a not-accepting error that wraps a not-found
// error reports as not accepting.
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
