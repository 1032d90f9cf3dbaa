package metrics

import (
	"time"

	"auction-engine/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AuctionMetrics holds the engine's Prometheus collectors.
type AuctionMetrics struct {
	// Bids
	BidsAcceptedTotal prometheus.Counter
	BidsRejectedTotal *prometheus.CounterVec
	PlaceBidDuration  prometheus.Histogram

	// Conditional writes
	VersionConflictsTotal *prometheus.CounterVec
	TransitionsTotal      *prometheus.CounterVec

	// Fan-out
	EventsDeliveredTotal *prometheus.CounterVec
	EventsDroppedTotal   *prometheus.CounterVec
}

// NewAuctionMetrics registers the collectors on reg. Pass a fresh registry in
// tests to avoid duplicate registration.
func NewAuctionMetrics(reg prometheus.Registerer) *AuctionMetrics {
	factory := promauto.With(reg)
	return &AuctionMetrics{
		BidsAcceptedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "auction_bids_accepted_total",
				Help: "Total number of accepted bids",
			},
		),

		BidsRejectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auction_bids_rejected_total",
				Help: "Total number of rejected bids by reason",
			},
			[]string{"reason"},
		),

		PlaceBidDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "auction_place_bid_duration_seconds",
				Help:    "Time spent placing a bid, retries included",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
			},
		),

		VersionConflictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auction_version_conflicts_total",
				Help: "Conditional writes that lost to a concurrent writer",
			},
			[]string{"operation"},
		),

		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auction_transitions_total",
				Help: "Committed auction status transitions",
			},
			[]string{"from", "to"},
		),

		EventsDeliveredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auction_events_delivered_total",
				Help: "Auction events handed to the real-time transport",
			},
			[]string{"type"},
		),

		EventsDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auction_events_dropped_total",
				Help: "Auction events not delivered, by reason",
			},
			[]string{"reason"},
		),
	}
}

func (m *AuctionMetrics) BidAccepted() {
	m.BidsAcceptedTotal.Inc()
}

func (m *AuctionMetrics) BidRejected(reason string) {
	m.BidsRejectedTotal.WithLabelValues(reason).Inc()
}

func (m *AuctionMetrics) VersionConflict(operation string) {
	m.VersionConflictsTotal.WithLabelValues(operation).Inc()
}

func (m *AuctionMetrics) Transition(from, to domain.AuctionStatus) {
	m.TransitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
}

func (m *AuctionMetrics) ObservePlaceBid(elapsed time.Duration) {
	m.PlaceBidDuration.Observe(elapsed.Seconds())
}

func (m *AuctionMetrics) EventDelivered(eventType domain.AuctionEventType) {
	m.EventsDeliveredTotal.WithLabelValues(string(eventType)).Inc()
}

func (m *AuctionMetrics) EventDropped(reason string) {
	m.EventsDroppedTotal.WithLabelValues(reason).Inc()
}
