package server

import (
	"sync"

	"github.com/coder/websocket"
)

type connection struct {
	socket *websocket.Conn
	gameID string // empty until the client joins or creates a game
	alive  bool   // reset by the heartbeat monitor, set on pong
}

// ConnectionRegistry tracks every live transport connection, its liveness,
// and which game session it is tagged with. It only ever stores connection
// identifiers alongside sockets; sessions reference connections by ID and
// match them here at broadcast time.
type ConnectionRegistry struct {
	mu          sync.RWMutex
	connections map[string]*connection
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		connections: make(map[string]*connection),
	}
}

func (cr *ConnectionRegistry) Add(id string, socket *websocket.Conn) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	cr.connections[id] = &connection{socket: socket, alive: true}
}

func (cr *ConnectionRegistry) Remove(id string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	delete(cr.connections, id)
}

// Tag associates a connection with a game so broadcasts reach it.
func (cr *ConnectionRegistry) Tag(id, gameID string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if conn, exists := cr.connections[id]; exists {
		conn.gameID = gameID
	}
}

// Untag clears a connection's game association after leave-game.
func (cr *ConnectionRegistry) Untag(id string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if conn, exists := cr.connections[id]; exists {
		conn.gameID = ""
	}
}

// GameOf returns the game a connection is tagged with, or "".
func (cr *ConnectionRegistry) GameOf(id string) string {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	if conn, exists := cr.connections[id]; exists {
		return conn.gameID
	}
	return ""
}

// ForGame returns the sockets of every connection tagged with gameID.
func (cr *ConnectionRegistry) ForGame(gameID string) []*websocket.Conn {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	var sockets []*websocket.Conn
	for _, conn := range cr.connections {
		if conn.gameID == gameID {
			sockets = append(sockets, conn.socket)
		}
	}
	return sockets
}

func (cr *ConnectionRegistry) Count() int {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return len(cr.connections)
}

// MarkAlive is called when a connection answers a ping.
func (cr *ConnectionRegistry) MarkAlive(id string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if conn, exists := cr.connections[id]; exists {
		conn.alive = true
	}
}

// MarkPending flags a connection provisionally dead until its next pong.
func (cr *ConnectionRegistry) MarkPending(id string) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if conn, exists := cr.connections[id]; exists {
		conn.alive = false
	}
}

type heartbeatTarget struct {
	id     string
	socket *websocket.Conn
	alive  bool
}

// heartbeatTargets snapshots all connections for one monitor sweep.
func (cr *ConnectionRegistry) heartbeatTargets() []heartbeatTarget {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	targets := make([]heartbeatTarget, 0, len(cr.connections))
	for id, conn := range cr.connections {
		targets = append(targets, heartbeatTarget{id: id, socket: conn.socket, alive: conn.alive})
	}
	return targets
}
