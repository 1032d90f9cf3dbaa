package services

import (
	"context"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"auction-engine/pkg/utils"
)

// Dispatcher publishes committed auction changes. It runs after the write has
// committed, so publish failures are logged and never returned.
type Dispatcher struct {
	publishers []domain.EventPublisher
	timeout    time.Duration
	metrics    domain.Metrics
	now        func() time.Time
	log        logger.Logger
}

func NewDispatcher(publishers []domain.EventPublisher, timeout time.Duration, metrics domain.Metrics,
	now func() time.Time, log logger.Logger) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Dispatcher{
		publishers: publishers,
		timeout:    timeout,
		metrics:    metrics,
		now:        now,
		log:        log,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, eventType domain.AuctionEventType, auction *domain.Auction) *domain.AuctionEvent {
	event := &domain.AuctionEvent{
		ID:        utils.NewUUID(),
		Type:      eventType,
		AuctionID: auction.ID,
		Snapshot:  auction.Snapshot(),
		Timestamp: d.now(),
	}

	// the caller's request may already be finished; the event still goes out
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	for _, pub := range d.publishers {
		if err := pub.PublishAuctionEvent(pubCtx, event); err != nil {
			d.metrics.EventDropped("publish_failed")
			d.log.Error("Failed to publish auction event", "auction_id", auction.ID,
				"type", eventType, "version", auction.Version, "error", err)
		}
	}
	return event
}
