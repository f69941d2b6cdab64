package server

import (
	"context"
	"log"
	"time"

	"github.com/coder/websocket"
)

// heartbeatTask pings every connection once per interval and closes the
// ones that never answered the previous ping. This is the only way silently
// dropped clients are detected; there is no explicit leave requirement.
func (s *Server) heartbeatTask(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepConnections(ctx)
		}
	}
}

func (s *Server) sweepConnections(ctx context.Context) {
	for _, target := range s.connections.heartbeatTargets() {
		if !target.alive {
			log.Printf("Connection %s missed heartbeat, closing", target.id)
			target.socket.Close(websocket.StatusGoingAway, "heartbeat timeout")
			s.dropConnection(target.id)
			continue
		}

		// Provisionally dead until the pong flips it back.
		s.connections.MarkPending(target.id)

		go func(id string, socket *websocket.Conn) {
			pingCtx, cancel := context.WithTimeout(ctx, s.cfg.HeartbeatInterval)
			defer cancel()

			if err := socket.Ping(pingCtx); err == nil {
				s.connections.MarkAlive(id)
			}
		}(target.id, target.socket)
	}
}

// dropConnection removes a connection from the registry, prunes its player
// from every session, and re-broadcasts the affected player lists. Sessions
// are never torn down on disconnect.
func (s *Server) dropConnection(connID string) {
	s.connections.Remove(connID)

	for _, pruned := range s.store.PruneConnection(connID) {
		log.Printf("Player %s left game %s (connection %s gone)", pruned.Removed, pruned.GameID, connID)
		s.broadcastToGame(pruned.GameID, "player-list-update", PlayerListUpdate{
			GameID:  pruned.GameID,
			Players: pruned.Players,
		})
	}
}
