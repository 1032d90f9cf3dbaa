package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=mocks/collaborators.go -package=mocks auction-engine/internal/domain IdentityDirectory,PurchaseOrderRequester

// Repository interfaces
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	ListAuctions(ctx context.Context, status *AuctionStatus, limit int) ([]*Auction, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*Auction, error)
	ListStartable(ctx context.Context, now time.Time, limit int) ([]*Auction, error)
	// ApplyMutation returns ErrVersionConflict when the stored version moved on.
	ApplyMutation(ctx context.Context, m *Mutation) error
	GetBid(ctx context.Context, auctionID, bidID string) (*Bid, error)
	GetBids(ctx context.Context, auctionID string, includeRejected bool) ([]*Bid, error)
	RecordRejectedBid(ctx context.Context, bid *Bid) error
}

// External collaborators
type IdentityDirectory interface {
	GetActor(ctx context.Context, userID string) (*Actor, error)
}

// PurchaseOrderRequester returns the reference the order was filed under.
// Implementations echo req.Reference, which is what the auction records.
type PurchaseOrderRequester interface {
	RequestPurchaseOrder(ctx context.Context, req *PurchaseOrderRequest) (string, error)
}

// Cache interfaces
type SnapshotCache interface {
	// StoreSnapshot never replaces a newer version with an older one.
	StoreSnapshot(ctx context.Context, snapshot Snapshot) error
	// GetSnapshot returns nil, nil on a miss.
	GetSnapshot(ctx context.Context, auctionID string) (*Snapshot, error)
}

// Event interfaces
type EventPublisher interface {
	PublishAuctionEvent(ctx context.Context, event *AuctionEvent) error
}

type EventSubscriber interface {
	SubscribeToAuctionEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *AuctionEvent) error

// AuctionEventHook is the publish hook owned by the real-time transport.
type AuctionEventHook interface {
	OnAuctionEvent(ctx context.Context, auctionID string, event *AuctionEvent) error
}

// Bidding rule interface
type BiddingRule interface {
	MinimumBid(auction *Auction) decimal.Decimal
	LoadRules(ctx context.Context) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// Metrics interface
type Metrics interface {
	BidAccepted()
	BidRejected(reason string)
	VersionConflict(operation string)
	Transition(from, to AuctionStatus)
	ObservePlaceBid(elapsed time.Duration)
	EventDelivered(eventType AuctionEventType)
	EventDropped(reason string)
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	AuctionID() string
	Role() Role
}

type ConnectionManager interface {
	RegisterConnection(conn WebSocketConnection) error
	UnregisterConnection(conn WebSocketConnection) error
	GetConnectionsForAuction(auctionID string) []WebSocketConnection
	GetConnectionsForUser(userID string) []WebSocketConnection
	GetConnectionsForRole(role Role) []WebSocketConnection
	Deliver(conns []WebSocketConnection, message interface{}) error
	CloseAndUnregisterConnections(auctionID string) error
}
