package providers

import (
	"sync"

	"github.com/gorilla/websocket"

	"maintenance-service/internal/logging"
)

const maxConnectionsPerUser = 10

// Hub tracks live WebSocket connections per user for in-app push.
type Hub struct {
	connections map[int64]map[*websocket.Conn]bool // userID -> set of connections
	mutex       sync.Mutex
	logger      *logging.Logger
}

func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		connections: make(map[int64]map[*websocket.Conn]bool),
		logger:      logger,
	}
}

// AddConnection registers conn for userID. It reports false when the user
// already holds the maximum number of connections.
func (h *Hub) AddConnection(userID int64, conn *websocket.Conn) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, exists := h.connections[userID]; !exists {
		h.connections[userID] = make(map[*websocket.Conn]bool)
	}
	if len(h.connections[userID]) >= maxConnectionsPerUser {
		h.logger.Warnf("Max connections reached for user %d", userID)
		return false
	}
	h.connections[userID][conn] = true
	h.logger.Infof("Added WebSocket connection for user %d (total: %d)", userID, len(h.connections[userID]))
	return true
}

// RemoveConnection forgets conn for userID.
func (h *Hub) RemoveConnection(userID int64, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if conns, exists := h.connections[userID]; exists {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.connections, userID)
		}
		h.logger.Infof("Removed WebSocket connection for user %d (remaining: %d)", userID, len(conns))
	}
}

// Connected returns how many live connections userID holds.
func (h *Hub) Connected(userID int64) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections[userID])
}

// SendToUser writes message to every connection of userID, dropping broken ones.
func (h *Hub) SendToUser(userID int64, message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if conns, exists := h.connections[userID]; exists {
		for conn := range conns {
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Errorf("Failed to send WebSocket message to user %d: %v", userID, err)
				_ = conn.Close()
				delete(conns, conn)
			}
		}
		if len(conns) == 0 {
			delete(h.connections, userID)
		}
	}
}
