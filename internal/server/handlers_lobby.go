package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/coder/websocket"

	"trivia-server/internal/board"
	"trivia-server/internal/profile"
)

// routeMessage dispatches one decoded envelope to its handler. Unknown
// message types are a forward-compatible no-op: newer clients may send
// kinds this build does not understand, and they must not disturb the
// session.
func (s *Server) routeMessage(socket *websocket.Conn, ctx context.Context, connID string, msg ClientMessage) {
	switch msg.Type {
	case "create-lobby":
		s.handleCreateLobby(socket, ctx, connID, msg.Payload)

	case "join-lobby":
		s.handleJoinLobby(socket, ctx, connID, msg.Payload)

	case "request-lobby-state":
		s.handleRequestLobbyState(socket, ctx, connID, msg.Payload)

	case "check-lobby":
		s.handleCheckLobby(socket, ctx, connID, msg.Payload)

	case "toggle-lock-category":
		s.handleToggleLockCategory(socket, ctx, connID, msg.Payload)

	case "update-categories":
		s.handleUpdateCategories(socket, ctx, connID, msg.Payload)

	case "create-game":
		s.handleCreateGame(socket, ctx, connID, msg.Payload)

	case "join-game":
		s.handleJoinGame(socket, ctx, connID, msg.Payload)

	case "request-player-list":
		s.handleRequestPlayerList(socket, ctx, connID, msg.Payload)

	case "leave-game":
		s.handleLeaveGame(socket, ctx, connID, msg.Payload)

	case "buzz":
		s.handleBuzz(socket, ctx, connID, msg.Payload)

	case "reset-buzzer":
		s.handleResetBuzzer(socket, ctx, connID, msg.Payload)

	case "unlock-buzzer":
		s.handleUnlockBuzzer(socket, ctx, connID, msg.Payload)

	case "lock-buzzer":
		s.handleLockBuzzer(socket, ctx, connID, msg.Payload)

	case "clue-selected":
		s.handleClueSelected(socket, ctx, connID, msg.Payload)

	case "reveal-answer":
		s.handleRevealAnswer(socket, ctx, connID, msg.Payload)

	case "return-to-board":
		s.handleReturnToBoard(socket, ctx, connID, msg.Payload)

	case "clue-cleared":
		s.handleClueCleared(socket, ctx, connID, msg.Payload)

	case "mark-all-complete":
		s.handleMarkAllComplete(socket, ctx, connID, msg.Payload)

	case "transition-to-second-board":
		s.handleTransitionToSecondBoard(socket, ctx, connID, msg.Payload)

	case "transition-to-final-jeopardy":
		s.handleTransitionToFinalJeopardy(socket, ctx, connID, msg.Payload)

	case "trigger-game-over":
		s.handleTriggerGameOver(socket, ctx, connID, msg.Payload)

	case "update-score":
		s.handleUpdateScore(socket, ctx, connID, msg.Payload)

	case "submit-wager":
		s.handleSubmitWager(socket, ctx, connID, msg.Payload)

	case "final-jeopardy-drawing":
		s.handleDrawing(socket, ctx, connID, msg.Payload)

	case "check-cotd":
		s.handleCheckCotd(socket, ctx, connID, msg.Payload)

	default:
		log.Printf("Ignoring unknown message type %q from %s", msg.Type, connID)
	}
}

// lookupColors resolves a player's display colors, falling back to the
// default pair. A profile service outage must never block joining.
func (s *Server) lookupColors(ctx context.Context, name string) profile.Colors {
	if colors := s.profiles.ColorFor(ctx, name); colors != nil {
		return *colors
	}
	return profile.Default
}

func (s *Server) handleCreateLobby(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req CreateLobbyRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid create-lobby payload")
		return
	}

	colors := s.lookupColors(ctx, req.Name)
	gameID, players := s.store.CreateLobby(connID, req.Name, colors, req.Categories)
	s.connections.Tag(connID, gameID)

	log.Printf("Lobby %s created by %s (%s)", gameID, players[0].Name, connID)

	response := ServerMessage{
		Type: "lobby-created",
		Payload: LobbyCreatedResponse{
			GameID:  gameID,
			Host:    players[0].Name,
			Players: players,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send lobby-created: %v", err)
		return
	}

	s.broadcastToGame(gameID, "player-list-update", PlayerListUpdate{
		GameID:  gameID,
		Players: players,
	})
}

func (s *Server) handleJoinLobby(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req JoinLobbyRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid join-lobby payload")
		return
	}

	colors := s.lookupColors(ctx, req.Name)
	result, err := s.store.JoinLobby(req.GameID, connID, req.Name, colors)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	gameID := NormalizeGameCode(req.GameID)
	s.connections.Tag(connID, gameID)

	if result.AlreadyJoined {
		s.sendInfo(socket, ctx, "Already in this game")
		s.sendLobbyState(socket, ctx, gameID)
		return
	}

	log.Printf("Player %s joined lobby %s (%s)", result.Player.Name, gameID, connID)

	s.sendLobbyState(socket, ctx, gameID)
	s.broadcastToGame(gameID, "player-list-update", PlayerListUpdate{
		GameID:  gameID,
		Players: result.Players,
	})
}

func (s *Server) sendLobbyState(socket *websocket.Conn, ctx context.Context, gameID string) {
	snapshot, err := s.store.LobbyState(gameID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	response := ServerMessage{
		Type: "lobby-state",
		Payload: LobbyStateResponse{
			GameID:     snapshot.GameID,
			Exists:     true,
			Host:       snapshot.Host,
			Phase:      snapshot.Phase,
			Players:    snapshot.Players,
			Categories: snapshot.Categories,
			Locked:     snapshot.Locked,
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send lobby-state: %v", err)
	}
}

func (s *Server) handleRequestLobbyState(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req GameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid request-lobby-state payload")
		return
	}

	s.sendLobbyState(socket, ctx, req.GameID)
}

// handleCheckLobby answers whether a code refers to a live game. A miss is
// a negative answer, not an error.
func (s *Server) handleCheckLobby(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req GameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid check-lobby payload")
		return
	}

	response := ServerMessage{
		Type: "lobby-state",
		Payload: LobbyStateResponse{
			GameID: NormalizeGameCode(req.GameID),
			Exists: s.store.Exists(req.GameID),
		},
	}
	if err := s.sendMessage(socket, ctx, response); err != nil {
		log.Printf("Failed to send check-lobby reply: %v", err)
	}
}

func (s *Server) handleToggleLockCategory(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req ToggleLockCategoryRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid toggle-lock-category payload")
		return
	}

	locked, err := s.store.ToggleLockCategory(req.GameID, req.Index)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.broadcastToGame(NormalizeGameCode(req.GameID), "category-lock-updated", CategoryLockUpdate{
		Index:  req.Index,
		Locked: locked,
	})
}

func (s *Server) handleUpdateCategories(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req UpdateCategoriesRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid update-categories payload")
		return
	}

	categories, err := s.store.UpdateCategories(req.GameID, req.Categories)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.broadcastToGame(NormalizeGameCode(req.GameID), "categories-updated", CategoriesUpdate{
		Categories: categories,
	})
}

// handleCreateGame kicks off board generation and starts the game. The
// provider call takes seconds, so the session hears a loading notice first;
// on failure it hears create-board-failed and stays in the lobby so the
// host can retry.
func (s *Server) handleCreateGame(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req CreateGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid create-game payload")
		return
	}

	gameID := NormalizeGameCode(req.GameID)

	snapshot, err := s.store.LobbyState(gameID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}
	if snapshot.Phase != PhaseLobby {
		log.Printf("Rejected create-game for %s: already in progress (phase %s)", gameID, snapshot.Phase)
		s.sendError(socket, ctx, "INVALID_PHASE: game already in progress")
		return
	}

	categories := req.Categories
	if len(categories) == 0 {
		categories = snapshot.Categories
	}
	var names [board.TotalCategories]string
	copy(names[:], categories)

	s.broadcastToGame(gameID, "info", InfoMessage{Message: "Generating board, hang tight..."})

	data, err := s.boards.GenerateBoard(ctx, board.Request{
		Categories:  names,
		Model:       req.Model,
		RequestedBy: snapshot.Host,
		Temperature: req.Temperature,
	})
	if err != nil || data == nil {
		log.Printf("Board generation for %s failed: %v", gameID, err)
		s.broadcastToGame(gameID, "create-board-failed", CreateBoardFailed{
			Message: "Board generation failed, please try again",
		})
		return
	}

	players, err := s.store.StartGame(gameID, data, req.TimeToBuzz, req.TimeToAnswer)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	log.Printf("Game %s started with %d players", gameID, len(players))

	scores, _ := s.store.Scores(gameID)
	s.broadcastToGame(gameID, "start-game", StartGameMessage{
		GameID:       gameID,
		Board:        data,
		Players:      players,
		Scores:       scores,
		TimeToBuzz:   req.TimeToBuzz,
		TimeToAnswer: req.TimeToAnswer,
	})
}

// handleJoinGame admits a player into a session past the lobby phase. The
// joiner gets the current board snapshot; everyone else just sees the
// player list grow.
func (s *Server) handleJoinGame(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req JoinGameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid join-game payload")
		return
	}

	colors := s.lookupColors(ctx, req.Name)
	result, err := s.store.JoinLobby(req.GameID, connID, req.Name, colors)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	gameID := NormalizeGameCode(req.GameID)
	s.connections.Tag(connID, gameID)

	if result.AlreadyJoined {
		s.sendInfo(socket, ctx, "Already in this game")
	} else {
		s.broadcastToGame(gameID, "player-list-update", PlayerListUpdate{
			GameID:  gameID,
			Players: result.Players,
		})
	}

	snapshot, err := s.store.GameSnapshot(gameID)
	if err != nil || snapshot.Board == nil {
		return
	}
	if err := s.sendMessage(socket, ctx, ServerMessage{
		Type: "start-game",
		Payload: StartGameMessage{
			GameID:       gameID,
			Board:        snapshot.Board,
			Players:      snapshot.Players,
			Scores:       snapshot.Scores,
			TimeToBuzz:   snapshot.TimeToBuzz,
			TimeToAnswer: snapshot.TimeToAnswer,
		},
	}); err != nil {
		log.Printf("Failed to send board snapshot to %s: %v", connID, err)
	}
}

func (s *Server) handleRequestPlayerList(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req GameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid request-player-list payload")
		return
	}

	snapshot, err := s.store.LobbyState(req.GameID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	if err := s.sendMessage(socket, ctx, ServerMessage{
		Type: "player-list-update",
		Payload: PlayerListUpdate{
			GameID:  snapshot.GameID,
			Players: snapshot.Players,
		},
	}); err != nil {
		log.Printf("Failed to send player list: %v", err)
	}
}

func (s *Server) handleLeaveGame(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req GameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid leave-game payload")
		return
	}

	removed, players, err := s.store.RemovePlayer(req.GameID, connID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	gameID := NormalizeGameCode(req.GameID)
	s.connections.Untag(connID)

	if removed != "" {
		log.Printf("Player %s left game %s", removed, gameID)
	}
	s.broadcastToGame(gameID, "player-list-update", PlayerListUpdate{
		GameID:  gameID,
		Players: players,
	})
}

func (s *Server) handleCheckCotd(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	value, updatedAt := s.cotd.current()

	if err := s.sendMessage(socket, ctx, ServerMessage{
		Type: "category-of-the-day",
		Payload: CategoryOfTheDayMessage{
			Category:  value,
			UpdatedAt: updatedAt.UnixMilli(),
		},
	}); err != nil {
		log.Printf("Failed to send category of the day: %v", err)
	}
}
