package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
)

// Expected is the (status, version) pair a caller observed before writing.
type Expected struct {
	Status  domain.AuctionStatus
	Version int64
}

// Change applies the non-status effects of a transition to next and returns
// the ledger side of the write, if any. Returning an error aborts the write.
type Change func(next *domain.Auction) (*domain.LedgerChange, error)

// StateMachine is the only writer of auction rows. Every write is a
// conditional replace keyed on the observed version.
type StateMachine struct {
	store   domain.AuctionStore
	cache   domain.SnapshotCache
	metrics domain.Metrics
	now     func() time.Time
	log     logger.Logger
}

func NewStateMachine(store domain.AuctionStore, cache domain.SnapshotCache, metrics domain.Metrics,
	now func() time.Time, log logger.Logger) *StateMachine {
	if now == nil {
		now = time.Now
	}
	return &StateMachine{
		store:   store,
		cache:   cache,
		metrics: metrics,
		now:     now,
		log:     log,
	}
}

func (sm *StateMachine) Now() time.Time {
	return sm.now()
}

// SubmitTransition moves auctionID from the expected state to `to`.
// It fails with ErrIllegalTransition when the graph forbids the step and with
// ErrStaleState when the stored auction no longer matches from.
func (sm *StateMachine) SubmitTransition(ctx context.Context, auctionID string, from Expected,
	to domain.AuctionStatus, change Change) (*domain.Auction, error) {
	if !domain.CanTransition(from.Status, to) {
		return nil, &domain.TransitionError{AuctionID: auctionID, From: from.Status, To: to, Err: domain.ErrIllegalTransition}
	}

	current, err := sm.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if current.Status != from.Status || current.Version != from.Version {
		return nil, &domain.TransitionError{AuctionID: auctionID, From: from.Status, To: to, Err: domain.ErrStaleState}
	}

	return sm.Commit(ctx, current, to, change)
}

// Commit writes the transition on top of an auction the caller has already
// read. observed is never modified.
func (sm *StateMachine) Commit(ctx context.Context, observed *domain.Auction, to domain.AuctionStatus,
	change Change) (*domain.Auction, error) {
	if !domain.CanTransition(observed.Status, to) {
		return nil, &domain.TransitionError{AuctionID: observed.ID, From: observed.Status, To: to, Err: domain.ErrIllegalTransition}
	}

	next := observed.Clone()
	next.Status = to
	next.Version = observed.Version + 1
	next.UpdatedAt = sm.now()

	var ledger *domain.LedgerChange
	if change != nil {
		var err error
		if ledger, err = change(next); err != nil {
			return nil, err
		}
	}

	err := sm.store.ApplyMutation(ctx, &domain.Mutation{
		Auction:         next,
		ExpectedVersion: observed.Version,
		Ledger:          ledger,
	})
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return nil, &domain.TransitionError{AuctionID: observed.ID, From: observed.Status, To: to, Err: domain.ErrStaleState}
		}
		return nil, fmt.Errorf("apply mutation for auction %s: %w", observed.ID, err)
	}

	if observed.Status != to {
		sm.metrics.Transition(observed.Status, to)
		sm.log.Info("Auction transitioned", "auction_id", next.ID, "from", observed.Status.String(),
			"to", to.String(), "version", next.Version)
	}

	sm.refreshCache(ctx, next)
	return next, nil
}

func (sm *StateMachine) refreshCache(ctx context.Context, auction *domain.Auction) {
	if sm.cache == nil {
		return
	}
	if err := sm.cache.StoreSnapshot(ctx, auction.Snapshot()); err != nil {
		sm.log.Warn("Failed to refresh snapshot cache", "auction_id", auction.ID, "error", err)
	}
}
