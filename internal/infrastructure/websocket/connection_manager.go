package websocket

import (
	"encoding/json"
	"sync"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
)

type connSet map[domain.WebSocketConnection]struct{}

// ConnectionManager indexes live connections by auction, user and role. A
// user may hold several connections, including more than one per auction.
type ConnectionManager struct {
	byAuction map[string]connSet
	byUser    map[string]connSet
	byRole    map[domain.Role]connSet
	mutex     sync.RWMutex
	log       logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		byAuction: make(map[string]connSet),
		byUser:    make(map[string]connSet),
		byRole:    make(map[domain.Role]connSet),
		log:       log,
	}
}

func addConn(index map[string]connSet, key string, conn domain.WebSocketConnection) {
	if index[key] == nil {
		index[key] = make(connSet)
	}
	index[key][conn] = struct{}{}
}

func removeConn(index map[string]connSet, key string, conn domain.WebSocketConnection) {
	if set, ok := index[key]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(index, key)
		}
	}
}

func (cm *ConnectionManager) RegisterConnection(conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	addConn(cm.byAuction, conn.AuctionID(), conn)
	addConn(cm.byUser, conn.UserID(), conn)
	if cm.byRole[conn.Role()] == nil {
		cm.byRole[conn.Role()] = make(connSet)
	}
	cm.byRole[conn.Role()][conn] = struct{}{}

	cm.log.Info("Connection registered", "user_id", conn.UserID(), "auction_id", conn.AuctionID(),
		"role", conn.Role())
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.unregisterLocked(conn)
	cm.log.Info("Connection unregistered", "user_id", conn.UserID(), "auction_id", conn.AuctionID())
	return nil
}

func (cm *ConnectionManager) unregisterLocked(conn domain.WebSocketConnection) {
	removeConn(cm.byAuction, conn.AuctionID(), conn)
	removeConn(cm.byUser, conn.UserID(), conn)
	if set, ok := cm.byRole[conn.Role()]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(cm.byRole, conn.Role())
		}
	}
}

// CloseAndUnregisterConnections closes every socket watching auctionID.
func (cm *ConnectionManager) CloseAndUnregisterConnections(auctionID string) error {
	cm.mutex.Lock()
	conns := make([]domain.WebSocketConnection, 0, len(cm.byAuction[auctionID]))
	for conn := range cm.byAuction[auctionID] {
		conns = append(conns, conn)
		cm.unregisterLocked(conn)
	}
	cm.mutex.Unlock()

	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			cm.log.Error("Failed to close connection", "user_id", conn.UserID(),
				"auction_id", auctionID, "error", err)
		}
	}

	cm.log.Info("Connections closed for auction", "auction_id", auctionID, "count", len(conns))
	return nil
}

func collect(set connSet) []domain.WebSocketConnection {
	connections := make([]domain.WebSocketConnection, 0, len(set))
	for conn := range set {
		connections = append(connections, conn)
	}
	return connections
}

func (cm *ConnectionManager) GetConnectionsForAuction(auctionID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return collect(cm.byAuction[auctionID])
}

func (cm *ConnectionManager) GetConnectionsForUser(userID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return collect(cm.byUser[userID])
}

func (cm *ConnectionManager) GetConnectionsForRole(role domain.Role) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return collect(cm.byRole[role])
}

// Deliver encodes message once and queues the same bytes on every
// connection. A refused send is logged and does not stop the rest.
func (cm *ConnectionManager) Deliver(connections []domain.WebSocketConnection, message interface{}) error {
	if len(connections) == 0 {
		return nil
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	raw := json.RawMessage(payload)
	for _, conn := range connections {
		if err := conn.Send(raw); err != nil {
			cm.log.Warn("Message not delivered", "user_id", conn.UserID(),
				"auction_id", conn.AuctionID(), "error", err)
		}
	}
	return nil
}
