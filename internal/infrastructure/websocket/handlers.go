package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	maxMessageSize = 4096
	bidTimeout     = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type BidPlacer interface {
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (*domain.Bid, error)
}

type SnapshotReader interface {
	GetSnapshot(ctx context.Context, auctionID string) (*domain.Snapshot, error)
}

type WebSocketHandler struct {
	bids        BidPlacer
	snapshots   SnapshotReader
	identity    domain.IdentityDirectory
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewWebSocketHandler(bids BidPlacer, snapshots SnapshotReader, identity domain.IdentityDirectory,
	connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		bids:        bids,
		snapshots:   snapshots,
		identity:    identity,
		connManager: connManager,
		log:         log.With("component", "websocket_handler"),
	}
}

// Register mounts the socket endpoint on r.
func (h *WebSocketHandler) Register(r *mux.Router) {
	r.HandleFunc("/ws/auctions/{auctionID}", h.HandleConnection).Methods(http.MethodGet)
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["auctionID"]

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	actor, err := h.identity.GetActor(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrActorNotFound) {
			http.Error(w, "unknown user", http.StatusForbidden)
			return
		}
		h.log.Error("Identity lookup failed", "user_id", userID, "error", err)
		http.Error(w, "identity service unavailable", http.StatusServiceUnavailable)
		return
	}
	if role := r.URL.Query().Get("role"); role != "" && domain.Role(role) != actor.Role {
		http.Error(w, "role does not match user", http.StatusForbidden)
		return
	}

	snapshot, err := h.snapshots.GetSnapshot(r.Context(), auctionID)
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			http.Error(w, "auction not found", http.StatusNotFound)
			return
		}
		h.log.Error("Failed to load auction", "auction_id", auctionID, "error", err)
		http.Error(w, "failed to load auction", http.StatusInternalServerError)
		return
	}
	if snapshot.Status.IsTerminal() {
		h.log.Info("Rejected connection, auction is closed", "auction_id", auctionID, "status", snapshot.Status)
		http.Error(w, "auction is closed", http.StatusGone)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, actor.ID, auctionID, actor.Role, h.log)
	if err := h.connManager.RegisterConnection(wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		_ = wsConn.Close()
		return
	}

	if err := wsConn.Send(SnapshotMessage{Type: MessageSnapshot, Snapshot: *snapshot}); err != nil {
		h.log.Warn("Failed to send initial snapshot", "user_id", actor.ID, "auction_id", auctionID, "error", err)
	}

	go h.handleMessages(wsConn)
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection) {
	defer func() {
		_ = h.connManager.UnregisterConnection(conn)
		_ = conn.Close()
	}()

	conn.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Connection dropped", "user_id", conn.UserID(), "error", err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = conn.Send(ErrorMessage{Type: MessageError, Code: "invalid_message", Message: "malformed message"})
			continue
		}

		switch msg.Type {
		case "place_bid":
			h.handleBidMessage(conn, msg)
		case "ping":
			_ = conn.Send(map[string]string{"type": MessagePong})
		default:
			_ = conn.Send(ErrorMessage{Type: MessageError, Code: "invalid_message", Message: "unknown message type"})
		}
	}
}

func (h *WebSocketHandler) handleBidMessage(conn *WebSocketConnection, msg inboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), bidTimeout)
	defer cancel()

	bid, err := h.bids.PlaceBid(ctx, conn.AuctionID(), conn.UserID(), msg.Amount)
	if err != nil {
		h.log.Info("Bid refused", "auction_id", conn.AuctionID(), "user_id", conn.UserID(), "error", err)
		_ = conn.Send(newErrorMessage(err))
		return
	}
	_ = conn.Send(BidPlacedMessage{Type: MessageBidPlaced, Bid: bid})
}
