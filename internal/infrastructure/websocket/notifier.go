package websocket

import (
	"context"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
)

// WebSocketNotifier pushes auction events to connected clients. Observers of
// the auction get every event; the seller and admin connections also get the
// approval-relevant ones, wherever they are watching from.
type WebSocketNotifier struct {
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewWebSocketNotifier(connManager domain.ConnectionManager, log logger.Logger) *WebSocketNotifier {
	return &WebSocketNotifier{connManager: connManager, log: log}
}

func (n *WebSocketNotifier) OnAuctionEvent(ctx context.Context, auctionID string, event *domain.AuctionEvent) error {
	if err := n.connManager.Deliver(n.targets(auctionID, event), newEventMessage(event)); err != nil {
		n.log.Error("Failed to encode auction event", "auction_id", auctionID, "type", event.Type, "error", err)
		return err
	}

	if event.Snapshot.Status.IsTerminal() {
		return n.connManager.CloseAndUnregisterConnections(auctionID)
	}
	return nil
}

func (n *WebSocketNotifier) targets(auctionID string, event *domain.AuctionEvent) []domain.WebSocketConnection {
	seen := make(map[domain.WebSocketConnection]struct{})
	var targets []domain.WebSocketConnection
	add := func(conns []domain.WebSocketConnection) {
		for _, conn := range conns {
			if _, dup := seen[conn]; dup {
				continue
			}
			seen[conn] = struct{}{}
			targets = append(targets, conn)
		}
	}

	add(n.connManager.GetConnectionsForAuction(auctionID))
	if event.ApprovalRelevant() {
		if event.Snapshot.SellerID != "" {
			add(n.connManager.GetConnectionsForUser(event.Snapshot.SellerID))
		}
		add(n.connManager.GetConnectionsForRole(domain.RoleAdmin))
	}
	return targets
}
