package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"trivia-server/internal/board"
)

type Phase string

const (
	PhaseLobby         Phase = "in-lobby"
	PhaseFirstBoard    Phase = "first-board"
	PhaseSecondBoard   Phase = "second-board"
	PhaseFinalJeopardy Phase = "final-jeopardy"
	PhaseGameOver      Phase = "game-over"
)

type Player struct {
	ConnectionID string `json:"-"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	TextColor    string `json:"textColor"`
}

// SelectedClue is the clue currently on display, or nil when the board grid
// is showing.
type SelectedClue struct {
	Category string     `json:"category"`
	Clue     board.Clue `json:"clue"`
	Revealed bool       `json:"answerRevealed"`
}

// Session is one game's complete server-side state, keyed by game code.
// Sessions live from creation until process shutdown; disconnects prune the
// player list but never tear the session down. All fields are guarded by mu,
// which SessionStore operations acquire.
type Session struct {
	mu sync.Mutex

	GameID     string
	Host       string
	Phase      Phase
	Players    []Player
	Categories []string
	Locked     []bool

	Board        *board.Data
	ClearedClues map[string]bool
	Selected     *SelectedClue

	Buzzed       string
	BuzzerLocked bool

	// TimerVersion invalidates scheduled countdowns: every mutation that
	// supersedes a running timer bumps it, and a firing callback that finds
	// a different version than it captured must do nothing.
	TimerVersion uint64
	TimerEnd     time.Time

	TimeToBuzz   int // seconds, 0 means unlimited
	TimeToAnswer int // seconds, 0 means unlimited

	Scores   map[string]int
	Wagers   map[string]int
	Drawings map[string]json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClueID derives the key used to track played clues. Value plus question
// text is stable for the lifetime of a generated board.
func ClueID(clue board.Clue) string {
	return fmt.Sprintf("%d-%s", clue.Value, clue.Question)
}

// currentRound returns the board categories in play for the session's phase,
// or nil outside the two board phases. Caller holds the session lock.
func (sess *Session) currentRound() []board.Category {
	if sess.Board == nil {
		return nil
	}
	switch sess.Phase {
	case PhaseFirstBoard:
		return sess.Board.FirstRound
	case PhaseSecondBoard:
		return sess.Board.SecondRound
	}
	return nil
}

// currentClueIDs lists every clue identifier on the board in play. Caller
// holds the session lock.
func (sess *Session) currentClueIDs() []string {
	round := sess.currentRound()
	if round == nil {
		return nil
	}
	ids := make([]string, 0, len(round)*board.CluesPerCategory)
	for _, cat := range round {
		for _, clue := range cat.Clues {
			ids = append(ids, ClueID(clue))
		}
	}
	return ids
}

// playersSnapshot copies the player list for use outside the lock.
func (sess *Session) playersSnapshot() []Player {
	players := make([]Player, len(sess.Players))
	copy(players, sess.Players)
	return players
}

// scoresSnapshot copies the score map for use outside the lock.
func (sess *Session) scoresSnapshot() map[string]int {
	scores := make(map[string]int, len(sess.Scores))
	for name, score := range sess.Scores {
		scores[name] = score
	}
	return scores
}

// expectedSubmitters is how many wagers or drawings complete the final
// round: every player except the host, who moderates — unless the host is
// the only participant, in which case they play alone.
func (sess *Session) expectedSubmitters() int {
	if len(sess.Players) <= 1 {
		return 1
	}
	return len(sess.Players) - 1
}
