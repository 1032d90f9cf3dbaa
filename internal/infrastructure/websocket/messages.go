package websocket

import (
	"errors"

	"auction-engine/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	MessageSnapshot     = "snapshot"
	MessageAuctionEvent = "auction_event"
	MessageBidPlaced    = "bid_placed"
	MessageError        = "error"
	MessagePong         = "pong"
)

type SnapshotMessage struct {
	Type     string          `json:"type"`
	Snapshot domain.Snapshot `json:"snapshot"`
}

type EventMessage struct {
	Type      string                  `json:"type"`
	Event     domain.AuctionEventType `json:"event"`
	EventID   string                  `json:"event_id"`
	AuctionID string                  `json:"auction_id"`
	Snapshot  domain.Snapshot         `json:"snapshot"`
}

type BidPlacedMessage struct {
	Type string      `json:"type"`
	Bid  *domain.Bid `json:"bid"`
}

type ErrorMessage struct {
	Type       string           `json:"type"`
	Code       string           `json:"code"`
	Message    string           `json:"message"`
	MinimumBid *decimal.Decimal `json:"minimum_bid,omitempty"`
}

type inboundMessage struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

func newEventMessage(event *domain.AuctionEvent) EventMessage {
	return EventMessage{
		Type:      MessageAuctionEvent,
		Event:     event.Type,
		EventID:   event.ID,
		AuctionID: event.AuctionID,
		Snapshot:  event.Snapshot,
	}
}

func newErrorMessage(err error) ErrorMessage {
	msg := ErrorMessage{Type: MessageError, Code: domain.ErrorCode(err), Message: err.Error()}

	var conflict *domain.ConcurrentBidConflictError
	var tooLow *domain.BidTooLowError
	switch {
	case errors.As(err, &conflict):
		msg.Message = domain.ErrConcurrentBidConflict.Error()
		msg.MinimumBid = &conflict.Minimum
	case errors.As(err, &tooLow):
		msg.MinimumBid = &tooLow.Minimum
	case msg.Code == "internal":
		msg.Message = "failed to place bid"
	}
	return msg
}
