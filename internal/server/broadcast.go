package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/coder/websocket"
)

func (s *Server) sendMessage(socket *websocket.Conn, ctx context.Context, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return socket.Write(ctx, websocket.MessageText, data)
}

func (s *Server) sendError(socket *websocket.Conn, ctx context.Context, msg string) {
	response := ServerMessage{
		Type: "error",
		Payload: ErrorMessage{
			Message: msg,
		},
	}

	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send error message: %v", err)
	}
}

func (s *Server) sendInfo(socket *websocket.Conn, ctx context.Context, msg string) {
	response := ServerMessage{
		Type: "info",
		Payload: InfoMessage{
			Message: msg,
		},
	}

	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send info message: %v", err)
	}
}

// broadcastToGame delivers one envelope to every connection tagged with the
// game. A connection mid-close just logs and is skipped; delivery order
// across recipients is unspecified, but each handler's sequence of
// broadcasts reaches every recipient in emission order because sends are
// synchronous.
func (s *Server) broadcastToGame(gameID, messageType string, payload interface{}) {
	msg := ServerMessage{
		Type:    messageType,
		Payload: payload,
	}

	for _, socket := range s.connections.ForGame(gameID) {
		if err := s.sendMessage(socket, context.Background(), msg); err != nil {
			log.Printf("Failed to broadcast %s to game %s: %v", messageType, gameID, err)
		}
	}
}
