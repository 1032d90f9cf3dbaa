package services

import (
	"context"
	"fmt"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"auction-engine/pkg/utils"
)

// ApprovalService drives seller acceptance and admin sign-off. It keeps no
// status of its own; every step is a state machine transition.
type ApprovalService struct {
	sm         *StateMachine
	store      domain.AuctionStore
	orders     domain.PurchaseOrderRequester
	dispatcher *Dispatcher
	log        logger.Logger
}

func NewApprovalService(sm *StateMachine, store domain.AuctionStore, orders domain.PurchaseOrderRequester,
	dispatcher *Dispatcher, log logger.Logger) *ApprovalService {
	return &ApprovalService{
		sm:         sm,
		store:      store,
		orders:     orders,
		dispatcher: dispatcher,
		log:        log,
	}
}

func illegal(auction *domain.Auction, to domain.AuctionStatus) error {
	return &domain.TransitionError{AuctionID: auction.ID, From: auction.Status, To: to, Err: domain.ErrIllegalTransition}
}

func (s *ApprovalService) SellerAccept(ctx context.Context, auctionID, sellerID string) (*domain.Auction, error) {
	auction, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.SellerID != sellerID {
		return nil, fmt.Errorf("%w: %s does not own auction %s", domain.ErrNotAuthorized, sellerID, auctionID)
	}
	if auction.Status != domain.AuctionActive {
		return nil, illegal(auction, domain.AuctionSellerApproved)
	}
	if !auction.HasBids() {
		return nil, fmt.Errorf("%w: nothing to accept on auction %s", domain.ErrAuctionHasNoBids, auctionID)
	}

	next, err := s.sm.Commit(ctx, auction, domain.AuctionSellerApproved, func(next *domain.Auction) (*domain.LedgerChange, error) {
		next.SellerApproved = true
		next.WinnerID = next.CurrentBidderID
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Seller accepted bid", "auction_id", auctionID, "winner_id", next.WinnerID,
		"amount", next.CurrentBid.String(), "version", next.Version)
	s.dispatcher.Dispatch(ctx, domain.EventSellerApproved, next)
	return next, nil
}

// AdminApprove is the only binding step. The purchase order reference is
// reserved in the same conditional write that claims the transition, so only
// the caller that wins the write ever requests the order.
func (s *ApprovalService) AdminApprove(ctx context.Context, auctionID string, actor domain.Actor) (*domain.Auction, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: admin approval requires the admin role", domain.ErrNotAuthorized)
	}

	auction, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Status != domain.AuctionSellerApproved {
		return nil, illegal(auction, domain.AuctionAdminApproved)
	}
	if auction.WinnerID == "" {
		return nil, fmt.Errorf("%w: auction %s has no winner to approve", domain.ErrAuctionHasNoBids, auctionID)
	}

	reference := utils.GenerateID("po")
	next, err := s.sm.Commit(ctx, auction, domain.AuctionAdminApproved, func(next *domain.Auction) (*domain.LedgerChange, error) {
		next.AdminApproved = true
		next.PurchaseOrderRef = reference
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Admin approved auction", "auction_id", auctionID, "admin_id", actor.ID,
		"winner_id", next.WinnerID, "purchase_order_ref", reference, "version", next.Version)
	s.dispatcher.Dispatch(ctx, domain.EventAdminApproved, next)

	filed, err := s.orders.RequestPurchaseOrder(ctx, &domain.PurchaseOrderRequest{
		Reference:   reference,
		AuctionID:   next.ID,
		MaterialID:  next.MaterialID,
		SellerID:    next.SellerID,
		WinnerID:    next.WinnerID,
		FinalAmount: next.CurrentBid,
		ApprovedAt:  next.UpdatedAt,
	})
	if err != nil {
		// the approval stands; the order subsystem reconciles by reference
		s.log.Error("Failed to request purchase order", "auction_id", auctionID,
			"purchase_order_ref", reference, "error", err)
		return next, fmt.Errorf("request purchase order %s: %w", reference, err)
	}
	if filed != reference {
		s.log.Warn("Purchase order filed under a different reference", "auction_id", auctionID,
			"purchase_order_ref", reference, "filed_ref", filed)
	}
	return next, nil
}

func (s *ApprovalService) AdminReject(ctx context.Context, auctionID string, actor domain.Actor, reason string) (*domain.Auction, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: admin rejection requires the admin role", domain.ErrNotAuthorized)
	}

	auction, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Status != domain.AuctionActive && auction.Status != domain.AuctionSellerApproved {
		return nil, illegal(auction, domain.AuctionCancelled)
	}

	next, err := s.sm.Commit(ctx, auction, domain.AuctionCancelled, func(next *domain.Auction) (*domain.LedgerChange, error) {
		next.WinnerID = ""
		next.RejectReason = reason
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Admin rejected auction", "auction_id", auctionID, "admin_id", actor.ID,
		"reason", reason, "version", next.Version)
	s.dispatcher.Dispatch(ctx, domain.EventAuctionRejected, next)
	return next, nil
}

// Cancel withdraws an auction nobody has bid on yet.
func (s *ApprovalService) Cancel(ctx context.Context, auctionID string, actor domain.Actor) (*domain.Auction, error) {
	auction, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !(actor.Role == domain.RoleSeller && actor.ID == auction.SellerID) {
		return nil, fmt.Errorf("%w: %s cannot cancel auction %s", domain.ErrNotAuthorized, actor.ID, auctionID)
	}
	if !domain.CanTransition(auction.Status, domain.AuctionCancelled) {
		return nil, illegal(auction, domain.AuctionCancelled)
	}
	if auction.HasBids() {
		return nil, fmt.Errorf("%w: auction %s cannot be cancelled, reject it instead", domain.ErrAuctionHasBids, auctionID)
	}

	next, err := s.sm.Commit(ctx, auction, domain.AuctionCancelled, func(next *domain.Auction) (*domain.LedgerChange, error) {
		next.WinnerID = ""
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Auction cancelled", "auction_id", auctionID, "actor", actor.ID, "version", next.Version)
	s.dispatcher.Dispatch(ctx, domain.EventAuctionCancelled, next)
	return next, nil
}
