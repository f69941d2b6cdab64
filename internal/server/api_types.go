package server

import (
	"encoding/json"

	"trivia-server/internal/board"
)

// ============================================================================
// ERROR / INFO RESPONSES
// ============================================================================
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type InfoMessage struct {
	Message string `json:"message"`
}

// ============================================================================
// LOBBY (create-lobby, join-lobby, request-lobby-state, check-lobby)
// ============================================================================
type CreateLobbyRequest struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

type LobbyCreatedResponse struct {
	GameID  string   `json:"gameId"`
	Host    string   `json:"host"`
	Players []Player `json:"players"`
}

type JoinLobbyRequest struct {
	GameID string `json:"gameId"`
	Name   string `json:"name"`
}

// GameRequest covers every message whose payload is just the game code.
type GameRequest struct {
	GameID string `json:"gameId"`
}

type LobbyStateResponse struct {
	GameID     string   `json:"gameId"`
	Exists     bool     `json:"exists"`
	Host       string   `json:"host,omitempty"`
	Phase      Phase    `json:"phase,omitempty"`
	Players    []Player `json:"players,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Locked     []bool   `json:"locked,omitempty"`
}

type PlayerListUpdate struct {
	GameID  string   `json:"gameId"`
	Players []Player `json:"players"`
}

// ============================================================================
// CATEGORY CURATION (toggle-lock-category, update-categories)
// ============================================================================
type ToggleLockCategoryRequest struct {
	GameID string `json:"gameId"`
	Index  int    `json:"index"`
}

type CategoryLockUpdate struct {
	Index  int  `json:"index"`
	Locked bool `json:"locked"`
}

type UpdateCategoriesRequest struct {
	GameID     string   `json:"gameId"`
	Categories []string `json:"categories"`
}

type CategoriesUpdate struct {
	Categories []string `json:"categories"`
}

// ============================================================================
// GAME START (create-game, join-game)
// ============================================================================
type CreateGameRequest struct {
	GameID       string   `json:"gameId"`
	Categories   []string `json:"categories"`
	Model        string   `json:"model"`
	Temperature  float64  `json:"temperature"`
	TimeToBuzz   int      `json:"timeToBuzz"`
	TimeToAnswer int      `json:"timeToAnswer"`
}

type StartGameMessage struct {
	GameID       string         `json:"gameId"`
	Board        *board.Data    `json:"board"`
	Players      []Player       `json:"players"`
	Scores       map[string]int `json:"scores"`
	TimeToBuzz   int            `json:"timeToBuzz"`
	TimeToAnswer int            `json:"timeToAnswer"`
}

type CreateBoardFailed struct {
	Message string `json:"message"`
}

type JoinGameRequest struct {
	GameID string `json:"gameId"`
	Name   string `json:"name"`
}

// ============================================================================
// BUZZER (buzz, reset-buzzer, unlock-buzzer, lock-buzzer)
// ============================================================================
type BuzzResultMessage struct {
	Player string `json:"player"`
}

type TimerStartMessage struct {
	Seconds int   `json:"seconds"`
	EndsAt  int64 `json:"endsAt"` // unix milliseconds
}

// ============================================================================
// CLUES (clue-selected, reveal-answer, return-to-board, clue-cleared)
// ============================================================================
type ClueSelectedRequest struct {
	GameID   string     `json:"gameId"`
	Category string     `json:"category"`
	Clue     board.Clue `json:"clue"`
}

type ClueSelectedMessage struct {
	Category string     `json:"category"`
	Clue     board.Clue `json:"clue"`
}

type AnswerRevealedMessage struct {
	Category string     `json:"category"`
	Clue     board.Clue `json:"clue"`
}

type ClueClearedRequest struct {
	GameID string `json:"gameId"`
	ClueID string `json:"clueId"`
}

type ClueClearedMessage struct {
	ClueID string `json:"clueId"`
}

type AllCluesClearedMessage struct {
	ClueIDs []string `json:"clueIds"`
}

// ============================================================================
// SCORES AND FINAL ROUND
// ============================================================================
type UpdateScoreRequest struct {
	GameID string `json:"gameId"`
	Player string `json:"player"`
	Delta  int    `json:"delta"`
}

type ScoresUpdate struct {
	Scores map[string]int `json:"scores"`
}

type FinalJeopardyMessage struct {
	Clue board.FinalClue `json:"clue"`
}

type SubmitWagerRequest struct {
	GameID string `json:"gameId"`
	Player string `json:"player"`
	Amount int    `json:"amount"`
}

type WagerUpdate struct {
	Player string `json:"player"`
}

type AllWagersSubmitted struct {
	Wagers map[string]int `json:"wagers"`
}

type DrawingRequest struct {
	GameID string          `json:"gameId"`
	Player string          `json:"player"`
	Paths  json.RawMessage `json:"paths"`
}

type DrawingSubmitted struct {
	Player string `json:"player"`
}

type AllDrawingsSubmitted struct {
	Drawings map[string]json.RawMessage `json:"drawings"`
}

type GameOverMessage struct {
	Scores map[string]int `json:"scores"`
}

// ============================================================================
// CATEGORY OF THE DAY (check-cotd)
// ============================================================================
type CategoryOfTheDayMessage struct {
	Category  string `json:"category"`
	UpdatedAt int64  `json:"updatedAt"` // unix milliseconds
}
