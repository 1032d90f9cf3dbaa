package services

import (
	"context"
	"sync"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
)

// EventListener consumes auction events from the cross-instance channel and
// hands them, in per-auction version order, to the transport hook.
type EventListener struct {
	hook      domain.AuctionEventHook
	sequencer *eventSequencer
	deliverMu sync.Mutex
	metrics   domain.Metrics
	log       logger.Logger
}

func NewEventListener(hook domain.AuctionEventHook, gapTimeout time.Duration, metrics domain.Metrics,
	now func() time.Time, log logger.Logger) *EventListener {
	return &EventListener{
		hook:      hook,
		sequencer: newEventSequencer(gapTimeout, now),
		metrics:   metrics,
		log:       log.With("component", "event_listener"),
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")

	go el.expireLoop(ctx)
	return subscriber.SubscribeToAuctionEvents(ctx, el.HandleAuctionEvent)
}

func (el *EventListener) HandleAuctionEvent(event *domain.AuctionEvent) error {
	el.deliverMu.Lock()
	defer el.deliverMu.Unlock()

	ready, stale := el.sequencer.Offer(event)
	if stale {
		el.metrics.EventDropped("stale_version")
		el.log.Debug("Dropping stale auction event", "auction_id", event.AuctionID, "version", event.Version())
		return nil
	}
	el.deliver(ready)
	return nil
}

func (el *EventListener) expireLoop(ctx context.Context) {
	interval := el.sequencer.gapTimeout / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			el.FlushExpired()
		}
	}
}

// FlushExpired delivers events held back by a version gap that never filled.
func (el *EventListener) FlushExpired() {
	el.deliverMu.Lock()
	defer el.deliverMu.Unlock()

	ready := el.sequencer.Expire()
	if len(ready) > 0 {
		el.metrics.EventDropped("version_gap")
	}
	el.deliver(ready)
}

func (el *EventListener) deliver(events []*domain.AuctionEvent) {
	var closed map[string]bool
	for _, event := range events {
		if closed[event.AuctionID] {
			el.metrics.EventDropped("stale_version")
			continue
		}
		if event.Snapshot.Status.IsTerminal() {
			el.sequencer.Close(event.AuctionID)
			if closed == nil {
				closed = make(map[string]bool)
			}
			closed[event.AuctionID] = true
		}

		el.log.Info("Handling auction event", "type", event.Type, "auction_id", event.AuctionID,
			"version", event.Version())
		if err := el.hook.OnAuctionEvent(context.Background(), event.AuctionID, event); err != nil {
			el.log.Error("Failed to deliver auction event", "auction_id", event.AuctionID, "error", err)
			continue
		}
		el.metrics.EventDelivered(event.Type)
	}
}
