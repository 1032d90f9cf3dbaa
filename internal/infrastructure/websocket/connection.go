package websocket

import (
	"errors"
	"sync"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait     = 10 * time.Second
	sendQueueSize = 64
)

var (
	ErrSendQueueFull    = errors.New("send queue full")
	ErrConnectionClosed = errors.New("connection closed")
)

// WebSocketConnection wraps a gorilla connection. Only the write pump writes
// to the socket, so a slow client backs up its own queue and nobody else's.
type WebSocketConnection struct {
	conn      *websocket.Conn
	userID    string
	auctionID string
	role      domain.Role
	log       logger.Logger

	send    chan interface{}
	done    chan struct{}
	closeMu sync.Once
}

func NewWebSocketConnection(conn *websocket.Conn, userID, auctionID string, role domain.Role, log logger.Logger) *WebSocketConnection {
	wsc := newWebSocketConnection(conn, userID, auctionID, role, sendQueueSize, log)
	go wsc.writePump()
	return wsc
}

func newWebSocketConnection(conn *websocket.Conn, userID, auctionID string, role domain.Role,
	queueSize int, log logger.Logger) *WebSocketConnection {
	return &WebSocketConnection{
		conn:      conn,
		userID:    userID,
		auctionID: auctionID,
		role:      role,
		log:       log.With("user_id", userID, "auction_id", auctionID),
		send:      make(chan interface{}, queueSize),
		done:      make(chan struct{}),
	}
}

// Send queues message for the write pump. It never blocks: when the queue is
// full the message is dropped and ErrSendQueueFull returned.
func (wsc *WebSocketConnection) Send(message interface{}) error {
	select {
	case <-wsc.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case wsc.send <- message:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close stops the write pump. Messages already queued are flushed before the
// close frame goes out.
func (wsc *WebSocketConnection) Close() error {
	wsc.closeMu.Do(func() {
		close(wsc.done)
	})
	return nil
}

func (wsc *WebSocketConnection) writePump() {
	defer wsc.conn.Close()

	for {
		select {
		case msg := <-wsc.send:
			if err := wsc.write(msg); err != nil {
				wsc.log.Warn("Write failed, dropping connection", "error", err)
				return
			}
		case <-wsc.done:
			wsc.flush()
			_ = wsc.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "auction closed"),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (wsc *WebSocketConnection) flush() {
	for {
		select {
		case msg := <-wsc.send:
			if err := wsc.write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (wsc *WebSocketConnection) write(message interface{}) error {
	if err := wsc.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConnection) UserID() string {
	return wsc.userID
}

func (wsc *WebSocketConnection) AuctionID() string {
	return wsc.auctionID
}

func (wsc *WebSocketConnection) Role() domain.Role {
	return wsc.role
}
