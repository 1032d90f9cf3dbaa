package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-engine/internal/domain"
)

// AuctionStore keeps auctions and their bid ledgers in process memory. A
// single mutex makes every mutation atomic across the auction row and its
// ledger, matching the transactional MySQL store.
type AuctionStore struct {
	mu       sync.RWMutex
	auctions map[string]*domain.Auction
	bids     map[string][]*domain.Bid
}

func NewAuctionStore() *AuctionStore {
	return &AuctionStore{
		auctions: make(map[string]*domain.Auction),
		bids:     make(map[string][]*domain.Bid),
	}
}

func (s *AuctionStore) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[auction.ID]; ok {
		return fmt.Errorf("%w: duplicate auction id %s", domain.ErrInvalidAuction, auction.ID)
	}
	s.auctions[auction.ID] = auction.Clone()
	return nil
}

func (s *AuctionStore) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, ok := s.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAuctionNotFound, auctionID)
	}
	return auction.Clone(), nil
}

func (s *AuctionStore) ListAuctions(ctx context.Context, status *domain.AuctionStatus, limit int) ([]*domain.Auction, error) {
	return s.list(limit, func(a *domain.Auction) bool {
		return status == nil || a.Status == *status
	}), nil
}

func (s *AuctionStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Auction, error) {
	return s.list(limit, func(a *domain.Auction) bool {
		return a.Status == domain.AuctionActive && a.Expired(now)
	}), nil
}

func (s *AuctionStore) ListStartable(ctx context.Context, now time.Time, limit int) ([]*domain.Auction, error) {
	return s.list(limit, func(a *domain.Auction) bool {
		return a.Status == domain.AuctionScheduled && !now.Before(a.StartTime)
	}), nil
}

func (s *AuctionStore) list(limit int, match func(*domain.Auction) bool) []*domain.Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Auction, 0)
	for _, a := range s.auctions {
		if match(a) {
			result = append(result, a.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].EndTime.Equal(result[j].EndTime) {
			return result[i].EndTime.Before(result[j].EndTime)
		}
		return result[i].ID < result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func (s *AuctionStore) ApplyMutation(ctx context.Context, m *domain.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.auctions[m.Auction.ID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrAuctionNotFound, m.Auction.ID)
	}
	if current.Version != m.ExpectedVersion {
		return domain.ErrVersionConflict
	}

	if m.Ledger != nil {
		if err := s.applyLedgerLocked(m.Auction.ID, m.Ledger); err != nil {
			return err
		}
	}
	s.auctions[m.Auction.ID] = m.Auction.Clone()
	return nil
}

func (s *AuctionStore) applyLedgerLocked(auctionID string, change *domain.LedgerChange) error {
	ledger := s.bids[auctionID]

	if change.DeleteBidID != "" {
		kept := ledger[:0:0]
		found := false
		for _, b := range ledger {
			if b.ID == change.DeleteBidID {
				found = true
				continue
			}
			kept = append(kept, b)
		}
		if !found {
			return fmt.Errorf("%w: %s", domain.ErrBidNotFound, change.DeleteBidID)
		}
		ledger = kept
	}

	if change.InsertBid != nil {
		bid := *change.InsertBid
		ledger = append(ledger, &bid)
	}

	for i, b := range ledger {
		if !b.Accepted {
			continue
		}
		winning := b.ID == change.WinningBidID
		if b.IsWinning != winning {
			updated := *b
			updated.IsWinning = winning
			ledger[i] = &updated
		}
	}

	s.bids[auctionID] = ledger
	return nil
}

func (s *AuctionStore) GetBid(ctx context.Context, auctionID, bidID string) (*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.bids[auctionID] {
		if b.ID == bidID {
			bid := *b
			return &bid, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrBidNotFound, bidID)
}

// GetBids returns the ledger in placement order.
func (s *AuctionStore) GetBids(ctx context.Context, auctionID string, includeRejected bool) ([]*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bids := make([]*domain.Bid, 0, len(s.bids[auctionID]))
	for _, b := range s.bids[auctionID] {
		if !b.Accepted && !includeRejected {
			continue
		}
		bid := *b
		bids = append(bids, &bid)
	}
	return bids, nil
}

func (s *AuctionStore) RecordRejectedBid(ctx context.Context, bid *domain.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rejected := *bid
	rejected.Accepted = false
	rejected.IsWinning = false
	s.bids[bid.AuctionID] = append(s.bids[bid.AuctionID], &rejected)
	return nil
}
