package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/internal/infrastructure/metrics"
	"auction-engine/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHook struct {
	mu       sync.Mutex
	versions map[string][]int64
}

func newRecordingHook() *recordingHook {
	return &recordingHook{versions: make(map[string][]int64)}
}

func (h *recordingHook) OnAuctionEvent(ctx context.Context, auctionID string, event *domain.AuctionEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.versions[auctionID] = append(h.versions[auctionID], event.Version())
	return nil
}

func (h *recordingHook) Versions(auctionID string) []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int64(nil), h.versions[auctionID]...)
}

func eventAt(auctionID string, version int64, status domain.AuctionStatus) *domain.AuctionEvent {
	return &domain.AuctionEvent{
		Type:      domain.EventBidAccepted,
		AuctionID: auctionID,
		Snapshot:  domain.Snapshot{AuctionID: auctionID, Version: version, Status: status},
	}
}

func newTestListener(clock *fakeClock, hook domain.AuctionEventHook) (*EventListener, *metrics.AuctionMetrics) {
	m := metrics.NewAuctionMetrics(prometheus.NewRegistry())
	return NewEventListener(hook, 2*time.Second, m, clock.Now, logger.NewNop()), m
}

func TestEventListenerReordersWithinAuction(t *testing.T) {
	clock := newFakeClock()
	hook := newRecordingHook()
	listener, m := newTestListener(clock, hook)

	require.NoError(t, listener.HandleAuctionEvent(eventAt("a", 3, domain.AuctionActive)))
	require.NoError(t, listener.HandleAuctionEvent(eventAt("a", 5, domain.AuctionActive)))
	require.NoError(t, listener.HandleAuctionEvent(eventAt("b", 7, domain.AuctionActive)))
	assert.Equal(t, []int64{3}, hook.Versions("a"))

	require.NoError(t, listener.HandleAuctionEvent(eventAt("a", 4, domain.AuctionActive)))
	assert.Equal(t, []int64{3, 4, 5}, hook.Versions("a"))
	assert.Equal(t, []int64{7}, hook.Versions("b"))

	// duplicates and older versions never reach subscribers
	require.NoError(t, listener.HandleAuctionEvent(eventAt("a", 4, domain.AuctionActive)))
	assert.Equal(t, []int64{3, 4, 5}, hook.Versions("a"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsDroppedTotal.WithLabelValues("stale_version")))
}

func TestEventListenerFlushesAfterGapTimeout(t *testing.T) {
	clock := newFakeClock()
	hook := newRecordingHook()
	listener, _ := newTestListener(clock, hook)

	require.NoError(t, listener.HandleAuctionEvent(eventAt("a", 1, domain.AuctionActive)))
	require.NoError(t, listener.HandleAuctionEvent(eventAt("a", 4, domain.AuctionActive)))
	require.NoError(t, listener.HandleAuctionEvent(eventAt("a", 3, domain.AuctionActive)))

	listener.FlushExpired()
	assert.Equal(t, []int64{1}, hook.Versions("a"))

	clock.Advance(3 * time.Second)
	listener.FlushExpired()
	assert.Equal(t, []int64{1, 3, 4}, hook.Versions("a"))

	// version 2 finally shows up and is stale by now
	require.NoError(t, listener.HandleAuctionEvent(eventAt("a", 2, domain.AuctionActive)))
	assert.Equal(t, []int64{1, 3, 4}, hook.Versions("a"))
}

func TestEventListenerDropsEventsAfterTerminal(t *testing.T) {
	clock := newFakeClock()
	hook := newRecordingHook()
	listener, m := newTestListener(clock, hook)

	require.NoError(t, listener.HandleAuctionEvent(eventAt("a", 5, domain.AuctionActive)))
	require.NoError(t, listener.HandleAuctionEvent(eventAt("a", 7, domain.AuctionEnded)))
	clock.Advance(3 * time.Second)
	listener.FlushExpired()
	assert.Equal(t, []int64{5, 7}, hook.Versions("a"))

	require.NoError(t, listener.HandleAuctionEvent(eventAt("a", 6, domain.AuctionActive)))
	assert.Equal(t, []int64{5, 7}, hook.Versions("a"))

	require.NoError(t, listener.HandleAuctionEvent(eventAt("b", 9, domain.AuctionCancelled)))
	require.NoError(t, listener.HandleAuctionEvent(eventAt("b", 8, domain.AuctionActive)))
	assert.Equal(t, []int64{9}, hook.Versions("b"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.EventsDroppedTotal.WithLabelValues("stale_version")))
}

type failingPublisher struct {
	calls int
}

func (p *failingPublisher) PublishAuctionEvent(ctx context.Context, event *domain.AuctionEvent) error {
	p.calls++
	return errors.New("broker unavailable")
}

type ctxCheckingPublisher struct {
	err error
}

func (p *ctxCheckingPublisher) PublishAuctionEvent(ctx context.Context, event *domain.AuctionEvent) error {
	p.err = ctx.Err()
	return nil
}

func TestDispatcherNeverFailsTheWrite(t *testing.T) {
	clock := newFakeClock()
	m := metrics.NewAuctionMetrics(prometheus.NewRegistry())
	failing := &failingPublisher{}
	checking := &ctxCheckingPublisher{}
	dispatcher := NewDispatcher([]domain.EventPublisher{failing, checking}, time.Second, m, clock.Now, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	auction := &domain.Auction{ID: "a-1", Version: 4, CurrentBid: decimal.NewFromInt(10), Status: domain.AuctionActive}
	event := dispatcher.Dispatch(ctx, domain.EventBidAccepted, auction)

	require.NotNil(t, event)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, int64(4), event.Version())
	assert.Equal(t, clock.Now(), event.Timestamp)
	assert.Equal(t, 1, failing.calls)
	assert.NoError(t, checking.err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsDroppedTotal.WithLabelValues("publish_failed")))
}

func TestBidEventsCarryIncreasingVersions(t *testing.T) {
	h := newHarness(t)
	auction := h.openAuction(t, 1000)
	h.bid(t, auction.ID, bidderX, 1000)
	h.bid(t, auction.ID, bidderY, 1020)

	h.events.mu.Lock()
	defer h.events.mu.Unlock()
	require.Len(t, h.events.events, 3)
	for i := 1; i < len(h.events.events); i++ {
		assert.Equal(t, h.events.events[i-1].Version()+1, h.events.events[i].Version())
	}
}
