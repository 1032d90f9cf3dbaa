package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Auction struct {
	ID               string
	MaterialID       string
	SellerID         string
	StartingPrice    decimal.Decimal
	CurrentBid       decimal.Decimal
	CurrentBidderID  string
	BidCount         int
	StartTime        time.Time
	EndTime          time.Time
	Status           AuctionStatus
	SellerApproved   bool
	AdminApproved    bool
	WinnerID         string
	PurchaseOrderRef string
	RejectReason     string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasBids reports whether a winning ledger entry currently exists.
func (a *Auction) HasBids() bool {
	return a.CurrentBidderID != ""
}

// Expired reports whether the bidding window has closed at now.
func (a *Auction) Expired(now time.Time) bool {
	return !now.Before(a.EndTime)
}

func (a *Auction) Clone() *Auction {
	c := *a
	return &c
}

func (a *Auction) Snapshot() Snapshot {
	return Snapshot{
		AuctionID:        a.ID,
		SellerID:         a.SellerID,
		CurrentBid:       a.CurrentBid,
		BidCount:         a.BidCount,
		CurrentBidderID:  a.CurrentBidderID,
		Status:           a.Status,
		Version:          a.Version,
		EndTime:          a.EndTime,
		WinnerID:         a.WinnerID,
		PurchaseOrderRef: a.PurchaseOrderRef,
	}
}

type AuctionStatus int

const (
	AuctionDraft AuctionStatus = iota
	AuctionScheduled
	AuctionActive
	AuctionSellerApproved
	AuctionAdminApproved
	AuctionEnded
	AuctionCancelled
)

var statusNames = map[AuctionStatus]string{
	AuctionDraft:          "draft",
	AuctionScheduled:      "scheduled",
	AuctionActive:         "active",
	AuctionSellerApproved: "seller-approved",
	AuctionAdminApproved:  "admin-approved",
	AuctionEnded:          "ended",
	AuctionCancelled:      "cancelled",
}

func (s AuctionStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

func ParseAuctionStatus(value string) (AuctionStatus, error) {
	for status, name := range statusNames {
		if strings.EqualFold(name, value) {
			return status, nil
		}
	}
	return AuctionDraft, fmt.Errorf("unknown auction status %q", value)
}

func (s AuctionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *AuctionStatus) UnmarshalText(text []byte) error {
	status, err := ParseAuctionStatus(string(text))
	if err != nil {
		return err
	}
	*s = status
	return nil
}

type Bid struct {
	ID        string          `json:"id"`
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	Accepted  bool            `json:"accepted"`
	IsWinning bool            `json:"is_winning"`
	Reason    string          `json:"reason,omitempty"`
}

// Snapshot is the minimal public view of an auction pushed to observers.
type Snapshot struct {
	AuctionID        string          `json:"auction_id"`
	SellerID         string          `json:"seller_id"`
	CurrentBid       decimal.Decimal `json:"current_bid"`
	BidCount         int             `json:"bid_count"`
	CurrentBidderID  string          `json:"current_bidder_id,omitempty"`
	Status           AuctionStatus   `json:"status"`
	Version          int64           `json:"version"`
	EndTime          time.Time       `json:"end_time"`
	WinnerID         string          `json:"winner_id,omitempty"`
	PurchaseOrderRef string          `json:"purchase_order_ref,omitempty"`
}

type AuctionEvent struct {
	ID        string           `json:"id"`
	Type      AuctionEventType `json:"type"`
	AuctionID string           `json:"auction_id"`
	Snapshot  Snapshot         `json:"snapshot"`
	Timestamp time.Time        `json:"timestamp"`
}

func (e *AuctionEvent) Version() int64 {
	return e.Snapshot.Version
}

// ApprovalRelevant events are also routed to the seller and admin channels.
func (e *AuctionEvent) ApprovalRelevant() bool {
	switch e.Type {
	case EventSellerApproved, EventAdminApproved, EventAuctionRejected,
		EventAuctionCancelled, EventAuctionEnded:
		return true
	}
	return false
}

type AuctionEventType string

const (
	EventAuctionPublished AuctionEventType = "auction_published"
	EventAuctionStarted   AuctionEventType = "auction_started"
	EventBidAccepted      AuctionEventType = "bid_accepted"
	EventBidDeleted       AuctionEventType = "bid_deleted"
	EventSellerApproved   AuctionEventType = "seller_approved"
	EventAdminApproved    AuctionEventType = "admin_approved"
	EventAuctionRejected  AuctionEventType = "auction_rejected"
	EventAuctionCancelled AuctionEventType = "auction_cancelled"
	EventAuctionEnded     AuctionEventType = "auction_ended"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Actor is the identity collaborator's view of a caller.
type Actor struct {
	ID            string
	Role          Role
	VerifiedBuyer bool
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// LedgerChange carries the bid-ledger side of one conditional auction write.
type LedgerChange struct {
	InsertBid    *Bid
	DeleteBidID  string
	WinningBidID string
}

// Mutation is the single conditional-write primitive: the auction row is
// replaced with Auction only if its stored version equals ExpectedVersion.
type Mutation struct {
	Auction         *Auction
	ExpectedVersion int64
	Ledger          *LedgerChange
}

type PurchaseOrderRequest struct {
	Reference   string          `json:"reference"`
	AuctionID   string          `json:"auction_id"`
	MaterialID  string          `json:"material_id"`
	SellerID    string          `json:"seller_id"`
	WinnerID    string          `json:"winner_id"`
	FinalAmount decimal.Decimal `json:"final_amount"`
	ApprovedAt  time.Time       `json:"approved_at"`
}
