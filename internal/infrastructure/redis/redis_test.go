package redis

import (
	"context"
	"testing"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func snapshotAt(version int64, bid int64) domain.Snapshot {
	return domain.Snapshot{
		AuctionID:  "auction-1",
		SellerID:   "seller-1",
		CurrentBid: decimal.NewFromInt(bid),
		Status:     domain.AuctionActive,
		Version:    version,
	}
}

func TestSnapshotCacheNeverGoesBackwards(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewRedisSnapshotCache(client, time.Hour)
	ctx := context.Background()

	missing, err := cache.GetSnapshot(ctx, "auction-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, cache.StoreSnapshot(ctx, snapshotAt(5, 1200)))
	require.NoError(t, cache.StoreSnapshot(ctx, snapshotAt(4, 1100)))

	got, err := cache.GetSnapshot(ctx, "auction-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(5), got.Version)
	assert.Equal(t, "1200", got.CurrentBid.String())
	assert.Equal(t, domain.AuctionActive, got.Status)

	require.NoError(t, cache.StoreSnapshot(ctx, snapshotAt(6, 1300)))
	got, err = cache.GetSnapshot(ctx, "auction-1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), got.Version)

	assert.True(t, mr.TTL(snapshotKey("auction-1")) > 0)
}

func TestEventPubSubRoundTrip(t *testing.T) {
	mr, client := newTestClient(t)
	publisher := NewEventPublisher(client, "auction_events")
	subscriber := NewRedisEventSubscriber(client, "auction_events", logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *domain.AuctionEvent, 1)
	done := make(chan error, 1)
	go func() {
		done <- subscriber.SubscribeToAuctionEvents(ctx, func(event *domain.AuctionEvent) error {
			received <- event
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub("auction_events")["auction_events"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	// garbage is skipped, not fatal
	mr.Publish("auction_events", "not json")

	sent := &domain.AuctionEvent{
		ID:        "evt-1",
		Type:      domain.EventBidAccepted,
		AuctionID: "auction-1",
		Snapshot:  snapshotAt(7, 1500),
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, publisher.PublishAuctionEvent(ctx, sent))

	select {
	case got := <-received:
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, int64(7), got.Version())
		assert.Equal(t, "1500", got.Snapshot.CurrentBid.String())
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}
