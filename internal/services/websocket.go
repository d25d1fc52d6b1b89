package services

import (
	"sync"

	"github.com/gorilla/websocket"

	"appointment-service/internal/logging"
)

const maxConnectionsPerOwner = 10

// WebSocketManager tracks live connections per owner.
type WebSocketManager struct {
	connections map[string]map[*websocket.Conn]bool
	mutex       sync.Mutex
	logger      *logging.Logger
}

func NewWebSocketManager(logger *logging.Logger) *WebSocketManager {
	return &WebSocketManager{
		connections: make(map[string]map[*websocket.Conn]bool),
		logger:      logger,
	}
}

// AddConnection registers conn for owner. It returns false when the owner
// already has the maximum number of connections.
func (m *WebSocketManager) AddConnection(owner string, conn *websocket.Conn) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.connections[owner]; !exists {
		m.connections[owner] = make(map[*websocket.Conn]bool)
	}
	if len(m.connections[owner]) >= maxConnectionsPerOwner {
		m.logger.Warnf("Max connections reached for %s", owner)
		return false
	}
	m.connections[owner][conn] = true
	m.logger.Infof("Added WebSocket connection for %s (total: %d)", owner, len(m.connections[owner]))
	return true
}

func (m *WebSocketManager) RemoveConnection(owner string, conn *websocket.Conn) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if conns, exists := m.connections[owner]; exists {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(m.connections, owner)
		}
		m.logger.Infof("Removed WebSocket connection for %s (remaining: %d)", owner, len(conns))
	}
}

// SendToOwner writes message to every connection of owner, dropping the
// ones that fail.
func (m *WebSocketManager) SendToOwner(owner string, message []byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	conns, exists := m.connections[owner]
	if !exists {
		return
	}
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			m.logger.Errorf("Failed to send WebSocket message to %s: %v", owner, err)
			_ = conn.Close()
			delete(conns, conn)
		}
	}
	if len(conns) == 0 {
		delete(m.connections, owner)
	}
}

// Count returns the number of live connections of owner.
func (m *WebSocketManager) Count(owner string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.connections[owner])
}
