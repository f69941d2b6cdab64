package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/coder/websocket"
)

// handleBuzz registers a buzz attempt. Only the first buzz while nobody is
// buzzed in produces a broadcast; the rest are silently ignored, though
// every attempt still bumps the timer version (see SessionStore.Buzz).
func (s *Server) handleBuzz(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req GameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid buzz payload")
		return
	}

	result, err := s.store.Buzz(req.GameID, connID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}
	if !result.Accepted {
		return
	}

	gameID := NormalizeGameCode(req.GameID)
	log.Printf("Player %s buzzed in on game %s", result.Player, gameID)

	s.broadcastToGame(gameID, "buzz-result", BuzzResultMessage{Player: result.Player})
	s.startAnswerWindow(gameID, result)
}

// handleResetBuzzer clears the buzzed-in player and relocks. Clients apply
// reset-buzzer before buzzer-locked, in that order, so both are emitted
// here back to back.
func (s *Server) handleResetBuzzer(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req GameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid reset-buzzer payload")
		return
	}

	if _, err := s.store.ResetBuzzer(req.GameID); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	gameID := NormalizeGameCode(req.GameID)
	s.broadcastToGame(gameID, "reset-buzzer", struct{}{})
	s.broadcastToGame(gameID, "buzzer-locked", struct{}{})
}

func (s *Server) handleUnlockBuzzer(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req GameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid unlock-buzzer payload")
		return
	}

	window, err := s.store.UnlockBuzzer(req.GameID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	gameID := NormalizeGameCode(req.GameID)
	s.broadcastToGame(gameID, "buzzer-unlocked", struct{}{})
	s.startBuzzWindow(gameID, window)
}

func (s *Server) handleLockBuzzer(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req GameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid lock-buzzer payload")
		return
	}

	if _, err := s.store.LockBuzzer(req.GameID); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.broadcastToGame(NormalizeGameCode(req.GameID), "buzzer-locked", struct{}{})
}

// handleClueSelected puts a clue on display. Selecting while another clue
// is already up is ignored rather than rejected; the store itself does not
// guard this, so the check lives here.
func (s *Server) handleClueSelected(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req ClueSelectedRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid clue-selected payload")
		return
	}

	active, err := s.store.HasSelectedClue(req.GameID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}
	if active {
		return
	}

	if _, err := s.store.SelectClue(req.GameID, req.Category, req.Clue); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.broadcastToGame(NormalizeGameCode(req.GameID), "clue-selected", ClueSelectedMessage{
		Category: req.Category,
		Clue:     req.Clue,
	})
}

func (s *Server) handleRevealAnswer(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req GameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid reveal-answer payload")
		return
	}

	selected, err := s.store.RevealAnswer(req.GameID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}
	if selected == nil {
		return
	}

	s.broadcastToGame(NormalizeGameCode(req.GameID), "answer-revealed", AnswerRevealedMessage{
		Category: selected.Category,
		Clue:     selected.Clue,
	})
}

func (s *Server) handleReturnToBoard(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req GameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid return-to-board payload")
		return
	}

	if _, err := s.store.ReturnToBoard(req.GameID); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.broadcastToGame(NormalizeGameCode(req.GameID), "returned-to-board", struct{}{})
}

func (s *Server) handleClueCleared(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req ClueClearedRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid clue-cleared payload")
		return
	}

	allCleared, err := s.store.ClearClue(req.GameID, req.ClueID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	gameID := NormalizeGameCode(req.GameID)
	s.broadcastToGame(gameID, "clue-cleared", ClueClearedMessage{ClueID: req.ClueID})

	if allCleared {
		ids, _ := s.store.ClearedClues(req.GameID)
		s.broadcastToGame(gameID, "all-clues-cleared", AllCluesClearedMessage{ClueIDs: ids})
	}
}

func (s *Server) handleMarkAllComplete(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req GameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid mark-all-complete payload")
		return
	}

	ids, err := s.store.MarkAllCluesComplete(req.GameID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.broadcastToGame(NormalizeGameCode(req.GameID), "all-clues-cleared", AllCluesClearedMessage{ClueIDs: ids})
}

func (s *Server) handleTransitionToSecondBoard(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req GameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid transition payload")
		return
	}

	if err := s.store.TransitionToSecondBoard(req.GameID); err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.broadcastToGame(NormalizeGameCode(req.GameID), "transition-to-second-board", struct{}{})
}

func (s *Server) handleTransitionToFinalJeopardy(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req GameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid transition payload")
		return
	}

	final, err := s.store.TransitionToFinalJeopardy(req.GameID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.broadcastToGame(NormalizeGameCode(req.GameID), "final-jeopardy", FinalJeopardyMessage{Clue: final})
}

func (s *Server) handleTriggerGameOver(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req GameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid trigger-game-over payload")
		return
	}

	scores, err := s.store.TriggerGameOver(req.GameID)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	gameID := NormalizeGameCode(req.GameID)
	log.Printf("Game %s over", gameID)
	s.broadcastToGame(gameID, "game-over", GameOverMessage{Scores: scores})
}

func (s *Server) handleUpdateScore(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req UpdateScoreRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid update-score payload")
		return
	}

	scores, err := s.store.UpdateScore(req.GameID, req.Player, req.Delta)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	s.broadcastToGame(NormalizeGameCode(req.GameID), "update-scores", ScoresUpdate{Scores: scores})
}

// handleSubmitWager records a wager. Amounts stay hidden until everyone
// expected has wagered; the per-player notification carries only the name.
func (s *Server) handleSubmitWager(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req SubmitWagerRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid submit-wager payload")
		return
	}

	all, wagers, err := s.store.SubmitWager(req.GameID, req.Player, req.Amount)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	gameID := NormalizeGameCode(req.GameID)
	s.broadcastToGame(gameID, "wager-update", WagerUpdate{Player: req.Player})

	if all {
		s.broadcastToGame(gameID, "all-wagers-submitted", AllWagersSubmitted{Wagers: wagers})
	}
}

// handleDrawing records a final-round drawing answer. Unparsable drawing
// data aborts this message only: log, no broadcast, no effect on anything
// else.
func (s *Server) handleDrawing(socket *websocket.Conn, ctx context.Context, connID string, payload json.RawMessage) {
	var req DrawingRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.sendError(socket, ctx, "INVALID_PAYLOAD: Invalid drawing payload")
		return
	}

	if len(req.Paths) == 0 || !json.Valid(req.Paths) {
		log.Printf("Discarding malformed drawing data from %s for game %s", connID, req.GameID)
		return
	}

	all, drawings, err := s.store.SubmitDrawing(req.GameID, req.Player, req.Paths)
	if err != nil {
		s.sendError(socket, ctx, err.Error())
		return
	}

	gameID := NormalizeGameCode(req.GameID)
	s.broadcastToGame(gameID, "final-jeopardy-drawing-submitted", DrawingSubmitted{Player: req.Player})

	if all {
		s.broadcastToGame(gameID, "all-final-jeopardy-drawings-submitted", AllDrawingsSubmitted{Drawings: drawings})
	}
}
