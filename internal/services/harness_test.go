package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/internal/infrastructure/memory"
	"auction-engine/internal/infrastructure/metrics"
	"auction-engine/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	seller  = domain.Actor{ID: "seller-1", Role: domain.RoleSeller}
	admin   = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	bidderX = domain.Actor{ID: "bidder-x", Role: domain.RoleBuyer, VerifiedBuyer: true}
	bidderY = domain.Actor{ID: "bidder-y", Role: domain.RoleBuyer, VerifiedBuyer: true}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.AuctionEvent
	err    error
}

func (p *recordingPublisher) PublishAuctionEvent(ctx context.Context, event *domain.AuctionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Types() []domain.AuctionEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]domain.AuctionEventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

type harness struct {
	clock      *fakeClock
	store      domain.AuctionStore
	identity   *memory.IdentityDirectory
	orders     domain.PurchaseOrderRequester
	events     *recordingPublisher
	metrics    *metrics.AuctionMetrics
	sm         *StateMachine
	dispatcher *Dispatcher
	bids       *BidService
	approvals  *ApprovalService
	auctions   *AuctionManager
	log        logger.Logger
}

type harnessOption func(*harness)

func withStore(wrap func(domain.AuctionStore) domain.AuctionStore) harnessOption {
	return func(h *harness) { h.store = wrap(h.store) }
}

func withLogger(log logger.Logger) harnessOption {
	return func(h *harness) { h.log = log }
}

func withOrders(orders domain.PurchaseOrderRequester) harnessOption {
	return func(h *harness) { h.orders = orders }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		clock:    newFakeClock(),
		store:    memory.NewAuctionStore(),
		identity: memory.NewIdentityDirectory(seller, admin, bidderX, bidderY),
		orders:   memory.NewPurchaseOrderBook(),
		events:   &recordingPublisher{},
		metrics:  metrics.NewAuctionMetrics(prometheus.NewRegistry()),
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	log := h.log
	rule := NewBiddingRuleDao(nil, decimal.NewFromInt(2))
	require.NoError(t, rule.LoadRules(context.Background()))

	h.sm = NewStateMachine(h.store, nil, h.metrics, h.clock.Now, log)
	h.dispatcher = NewDispatcher([]domain.EventPublisher{h.events}, time.Second, h.metrics, h.clock.Now, log)
	h.bids = NewBidService(h.sm, h.store, NewBidValidator(h.identity, rule), rule, h.dispatcher, h.metrics,
		BidServiceConfig{MaxRetries: 3, RecordRejected: true}, log)
	h.approvals = NewApprovalService(h.sm, h.store, h.orders, h.dispatcher, log)
	h.auctions = NewAuctionManager(h.sm, h.store, nil, h.dispatcher, log)
	return h
}

// openAuction creates and publishes an auction whose window is already open.
func (h *harness) openAuction(t *testing.T, startingPrice int64) *domain.Auction {
	t.Helper()
	ctx := context.Background()

	created, err := h.auctions.CreateAuction(ctx, Listing{
		MaterialID:    "material-1",
		SellerID:      seller.ID,
		StartingPrice: decimal.NewFromInt(startingPrice),
		StartTime:     h.clock.Now().Add(-time.Minute),
		EndTime:       h.clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	opened, err := h.auctions.Publish(ctx, created.ID, seller)
	require.NoError(t, err)
	require.Equal(t, domain.AuctionActive, opened.Status)
	return opened
}

func (h *harness) bid(t *testing.T, auctionID string, bidder domain.Actor, amount int64) *domain.Bid {
	t.Helper()
	bid, err := h.bids.PlaceBid(context.Background(), auctionID, bidder.ID, decimal.NewFromInt(amount))
	require.NoError(t, err)
	return bid
}

func (h *harness) auction(t *testing.T, auctionID string) *domain.Auction {
	t.Helper()
	a, err := h.store.GetAuction(context.Background(), auctionID)
	require.NoError(t, err)
	return a
}
