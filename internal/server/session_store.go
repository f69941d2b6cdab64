package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"trivia-server/internal/board"
	"trivia-server/internal/profile"
)

// ErrSessionNotFound is returned by every operation that references a game
// code with no live session. It is surfaced to the originating client as an
// error envelope and is never fatal.
var ErrSessionNotFound = errors.New("SESSION_NOT_FOUND: no game with that code")

// SessionStore owns every live game session. It performs no I/O itself;
// handlers pass in already-fetched board and color data. Constructed once at
// startup and handed to the router and heartbeat monitor, never reached via
// globals, so tests build a fresh one per case.
type SessionStore struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	usedCodes map[string]bool
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:  make(map[string]*Session),
		usedCodes: make(map[string]bool),
	}
}

func (st *SessionStore) get(gameID string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	sess, exists := st.sessions[NormalizeGameCode(gameID)]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Exists reports whether a session is live for the given code.
func (st *SessionStore) Exists(gameID string) bool {
	_, err := st.get(gameID)
	return err == nil
}

// Count returns the number of live sessions.
func (st *SessionStore) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// CreateLobby seeds a new session in the lobby phase with the host as sole
// player. Code generation loops until an unused code is found.
func (st *SessionStore) CreateLobby(connID, host string, colors profile.Colors, categories []string) (gameID string, players []Player) {
	if strings.TrimSpace(host) == "" {
		host = "Guest 1"
	}

	cats := make([]string, board.TotalCategories)
	copy(cats, categories)

	now := time.Now()
	sess := &Session{
		Host:       host,
		Phase:      PhaseLobby,
		Categories: cats,
		Locked:     make([]bool, board.TotalCategories),
		Players: []Player{{
			ConnectionID: connID,
			Name:         host,
			Color:        colors.Color,
			TextColor:    colors.TextColor,
		}},
		ClearedClues: make(map[string]bool),
		BuzzerLocked: true,
		Scores:       make(map[string]int),
		Wagers:       make(map[string]int),
		Drawings:     make(map[string]json.RawMessage),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	st.mu.Lock()
	gameID = GenerateGameCode(st.usedCodes)
	st.usedCodes[gameID] = true
	sess.GameID = gameID
	st.sessions[gameID] = sess
	st.mu.Unlock()

	return gameID, sess.playersSnapshot()
}

type JoinResult struct {
	Player        Player
	Players       []Player
	AlreadyJoined bool
}

// JoinLobby appends a player to a session. A repeat join from the same
// connection or display name is idempotent info, not an error; a slightly
// out-of-sync client must never crash the session. Blank names get the
// lowest unused "Guest N".
func (st *SessionStore) JoinLobby(gameID, connID, name string, colors profile.Colors) (JoinResult, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return JoinResult{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	name = strings.TrimSpace(name)

	for i, p := range sess.Players {
		if p.ConnectionID == connID || (name != "" && p.Name == name) {
			// Same display name from a fresh connection is a rejoin;
			// adopt the new connection so broadcasts reach it.
			sess.Players[i].ConnectionID = connID
			return JoinResult{
				Player:        sess.Players[i],
				Players:       sess.playersSnapshot(),
				AlreadyJoined: true,
			}, nil
		}
	}

	if name == "" {
		name = st.nextGuestName(sess)
	}

	player := Player{
		ConnectionID: connID,
		Name:         name,
		Color:        colors.Color,
		TextColor:    colors.TextColor,
	}
	sess.Players = append(sess.Players, player)
	sess.UpdatedAt = time.Now()

	return JoinResult{Player: player, Players: sess.playersSnapshot()}, nil
}

// nextGuestName picks the lowest-numbered unused Guest name. Caller holds
// the session lock.
func (st *SessionStore) nextGuestName(sess *Session) string {
	taken := make(map[string]bool, len(sess.Players))
	for _, p := range sess.Players {
		taken[p.Name] = true
	}
	for n := 1; ; n++ {
		name := fmt.Sprintf("Guest %d", n)
		if !taken[name] {
			return name
		}
	}
}

type LobbySnapshot struct {
	GameID     string
	Host       string
	Phase      Phase
	Players    []Player
	Categories []string
	Locked     []bool
}

// LobbyState returns a read-only snapshot for request-lobby-state replies.
func (st *SessionStore) LobbyState(gameID string) (LobbySnapshot, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return LobbySnapshot{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	cats := make([]string, len(sess.Categories))
	copy(cats, sess.Categories)
	locked := make([]bool, len(sess.Locked))
	copy(locked, sess.Locked)

	return LobbySnapshot{
		GameID:     sess.GameID,
		Host:       sess.Host,
		Phase:      sess.Phase,
		Players:    sess.playersSnapshot(),
		Categories: cats,
		Locked:     locked,
	}, nil
}

// ToggleLockCategory flips the host's lock on one category slot.
func (st *SessionStore) ToggleLockCategory(gameID string, index int) (bool, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return false, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if index < 0 || index >= len(sess.Locked) {
		return false, fmt.Errorf("INVALID_PAYLOAD: category index %d out of range", index)
	}
	sess.Locked[index] = !sess.Locked[index]
	sess.UpdatedAt = time.Now()
	return sess.Locked[index], nil
}

// UpdateCategories replaces the curated category names. Only meaningful
// while the board has not been generated.
func (st *SessionStore) UpdateCategories(gameID string, categories []string) ([]string, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Phase != PhaseLobby {
		return nil, errors.New("INVALID_PHASE: categories are fixed once the game starts")
	}

	cats := make([]string, board.TotalCategories)
	copy(cats, categories)
	sess.Categories = cats
	sess.UpdatedAt = time.Now()

	snapshot := make([]string, len(cats))
	copy(snapshot, cats)
	return snapshot, nil
}

// StartGame installs the generated board and moves the session into board
// play. Starting from any other phase is an error, not a silent restart.
func (st *SessionStore) StartGame(gameID string, data *board.Data, timeToBuzz, timeToAnswer int) ([]Player, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Phase != PhaseLobby {
		return nil, errors.New("INVALID_PHASE: game already in progress")
	}

	sess.Phase = PhaseFirstBoard
	sess.Board = data
	sess.ClearedClues = make(map[string]bool)
	sess.Selected = nil
	sess.Buzzed = ""
	sess.BuzzerLocked = true
	sess.TimeToBuzz = timeToBuzz
	sess.TimeToAnswer = timeToAnswer
	sess.TimerVersion++
	sess.Scores = make(map[string]int)
	for _, p := range sess.Players {
		sess.Scores[p.Name] = 0
	}
	sess.UpdatedAt = time.Now()

	return sess.playersSnapshot(), nil
}

// Phase returns the session's current phase.
func (st *SessionStore) Phase(gameID string) (Phase, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return "", err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.Phase, nil
}

// Board returns the installed board data, or nil before generation.
func (st *SessionStore) Board(gameID string) (*board.Data, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.Board, nil
}

type GameSnapshot struct {
	Phase        Phase
	Board        *board.Data
	Players      []Player
	Scores       map[string]int
	TimeToBuzz   int
	TimeToAnswer int
}

// GameSnapshot returns the state a late joiner needs to catch up.
func (st *SessionStore) GameSnapshot(gameID string) (GameSnapshot, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return GameSnapshot{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	return GameSnapshot{
		Phase:        sess.Phase,
		Board:        sess.Board,
		Players:      sess.playersSnapshot(),
		Scores:       sess.scoresSnapshot(),
		TimeToBuzz:   sess.TimeToBuzz,
		TimeToAnswer: sess.TimeToAnswer,
	}, nil
}

// HasSelectedClue reports whether a clue is currently on display. The store
// does not guard SelectClue against an active selection; the router checks
// this first.
func (st *SessionStore) HasSelectedClue(gameID string) (bool, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return false, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.Selected != nil, nil
}

// SelectClue puts a clue on display with the answer hidden and the buzzer
// locked and unbuzzed.
func (st *SessionStore) SelectClue(gameID, category string, clue board.Clue) (uint64, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return 0, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.Selected = &SelectedClue{Category: category, Clue: clue}
	sess.Buzzed = ""
	sess.BuzzerLocked = true
	sess.TimerVersion++
	sess.UpdatedAt = time.Now()
	return sess.TimerVersion, nil
}

type BuzzResult struct {
	Accepted      bool
	Player        string
	Version       uint64
	AnswerSeconds int
	TimerEnd      time.Time
}

// Buzz registers a first-caller-wins buzz. Later buzzes during the same
// clue are silently ignored. Every call bumps TimerVersion, accepted or
// not: late buzzes invalidate the running countdown without changing who is
// buzzed in, matching the reference protocol.
func (st *SessionStore) Buzz(gameID, connID string) (BuzzResult, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return BuzzResult{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.TimerVersion++
	res := BuzzResult{Version: sess.TimerVersion}

	if sess.Buzzed != "" || sess.BuzzerLocked {
		return res, nil
	}

	var name string
	for _, p := range sess.Players {
		if p.ConnectionID == connID {
			name = p.Name
			break
		}
	}
	if name == "" {
		return res, nil
	}

	sess.Buzzed = name
	sess.BuzzerLocked = true
	sess.UpdatedAt = time.Now()

	res.Accepted = true
	res.Player = name
	res.AnswerSeconds = sess.TimeToAnswer
	if sess.TimeToAnswer > 0 {
		sess.TimerEnd = time.Now().Add(time.Duration(sess.TimeToAnswer) * time.Second)
		res.TimerEnd = sess.TimerEnd
	}
	return res, nil
}

// ResetBuzzer clears the buzzed-in player and locks the buzzer.
func (st *SessionStore) ResetBuzzer(gameID string) (uint64, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return 0, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.Buzzed = ""
	sess.BuzzerLocked = true
	sess.TimerVersion++
	sess.UpdatedAt = time.Now()
	return sess.TimerVersion, nil
}

type BuzzWindow struct {
	Version  uint64
	Seconds  int
	TimerEnd time.Time
}

// UnlockBuzzer opens the buzz window. The returned version is what the
// scheduled timeout must present when it fires.
func (st *SessionStore) UnlockBuzzer(gameID string) (BuzzWindow, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return BuzzWindow{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.Buzzed = ""
	sess.BuzzerLocked = false
	sess.TimerVersion++
	sess.UpdatedAt = time.Now()

	window := BuzzWindow{Version: sess.TimerVersion, Seconds: sess.TimeToBuzz}
	if sess.TimeToBuzz > 0 {
		sess.TimerEnd = time.Now().Add(time.Duration(sess.TimeToBuzz) * time.Second)
		window.TimerEnd = sess.TimerEnd
	}
	return window, nil
}

// LockBuzzer closes the buzzer to further buzzes.
func (st *SessionStore) LockBuzzer(gameID string) (uint64, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return 0, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.BuzzerLocked = true
	sess.TimerVersion++
	sess.UpdatedAt = time.Now()
	return sess.TimerVersion, nil
}

// ExpireBuzzWindow is called by the buzz countdown when it fires. It acts
// only if the captured version is still current and nobody buzzed while the
// window was open: the buzzer auto-locks and the answer auto-reveals. A
// superseded timer mutates nothing and broadcasts nothing.
func (st *SessionStore) ExpireBuzzWindow(gameID string, version uint64) (*SelectedClue, bool) {
	sess, err := st.get(gameID)
	if err != nil {
		return nil, false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.TimerVersion != version {
		return nil, false
	}
	if sess.Buzzed != "" || sess.BuzzerLocked {
		return nil, false
	}

	sess.BuzzerLocked = true
	sess.TimerVersion++
	if sess.Selected != nil {
		sess.Selected.Revealed = true
	}
	sess.UpdatedAt = time.Now()

	if sess.Selected == nil {
		return nil, true
	}
	snapshot := *sess.Selected
	return &snapshot, true
}

// ExpireAnswerWindow is called by the answer countdown when it fires. The
// timer ends visually but the clue does not auto-advance; the host resolves
// it manually.
func (st *SessionStore) ExpireAnswerWindow(gameID string, version uint64) bool {
	sess, err := st.get(gameID)
	if err != nil {
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	return sess.TimerVersion == version && sess.Buzzed != ""
}

// RevealAnswer flips the revealed flag on the displayed clue. With no clue
// on display it is a no-op returning nil, not an error.
func (st *SessionStore) RevealAnswer(gameID string) (*SelectedClue, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Selected == nil {
		return nil, nil
	}
	sess.Selected.Revealed = true
	sess.TimerVersion++
	sess.UpdatedAt = time.Now()

	snapshot := *sess.Selected
	return &snapshot, nil
}

// ReturnToBoard dismisses the displayed clue and resets the buzzer.
func (st *SessionStore) ReturnToBoard(gameID string) (uint64, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return 0, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.Selected = nil
	sess.Buzzed = ""
	sess.BuzzerLocked = true
	sess.TimerVersion++
	sess.UpdatedAt = time.Now()
	return sess.TimerVersion, nil
}

// ClearClue marks one clue as fully resolved. Returns whether every clue on
// the board in play is now cleared.
func (st *SessionStore) ClearClue(gameID, clueID string) (allCleared bool, err error) {
	sess, err := st.get(gameID)
	if err != nil {
		return false, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.ClearedClues[clueID] = true
	sess.UpdatedAt = time.Now()

	ids := sess.currentClueIDs()
	if len(ids) == 0 {
		return false, nil
	}
	for _, id := range ids {
		if !sess.ClearedClues[id] {
			return false, nil
		}
	}
	return true, nil
}

// MarkAllCluesComplete clears every clue on the board in play at once.
func (st *SessionStore) MarkAllCluesComplete(gameID string) ([]string, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	ids := sess.currentClueIDs()
	for _, id := range ids {
		sess.ClearedClues[id] = true
	}
	sess.UpdatedAt = time.Now()
	return ids, nil
}

// ClearedClues returns the identifiers of every resolved clue.
func (st *SessionStore) ClearedClues(gameID string) ([]string, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	ids := make([]string, 0, len(sess.ClearedClues))
	for id := range sess.ClearedClues {
		ids = append(ids, id)
	}
	return ids, nil
}

// TransitionToSecondBoard moves first-board play to the second board. This
// is the one point where the cleared set resets.
func (st *SessionStore) TransitionToSecondBoard(gameID string) error {
	sess, err := st.get(gameID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Phase != PhaseFirstBoard {
		return errors.New("INVALID_PHASE: not in first-board play")
	}

	sess.Phase = PhaseSecondBoard
	sess.ClearedClues = make(map[string]bool)
	sess.Selected = nil
	sess.Buzzed = ""
	sess.BuzzerLocked = true
	sess.TimerVersion++
	sess.UpdatedAt = time.Now()
	return nil
}

// TransitionToFinalJeopardy moves the session into the final round and
// returns the final clue for broadcast. The cleared set is not reset again.
func (st *SessionStore) TransitionToFinalJeopardy(gameID string) (board.FinalClue, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return board.FinalClue{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Phase != PhaseSecondBoard && sess.Phase != PhaseFirstBoard {
		return board.FinalClue{}, errors.New("INVALID_PHASE: not in board play")
	}
	if sess.Board == nil {
		return board.FinalClue{}, errors.New("INVALID_PHASE: no board generated")
	}

	sess.Phase = PhaseFinalJeopardy
	sess.Selected = nil
	sess.Buzzed = ""
	sess.BuzzerLocked = true
	sess.TimerVersion++
	sess.Wagers = make(map[string]int)
	sess.Drawings = make(map[string]json.RawMessage)
	sess.UpdatedAt = time.Now()
	return sess.Board.Final, nil
}

// TriggerGameOver ends the game and returns the final scores.
func (st *SessionStore) TriggerGameOver(gameID string) (map[string]int, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.Phase = PhaseGameOver
	sess.TimerVersion++
	sess.UpdatedAt = time.Now()
	return sess.scoresSnapshot(), nil
}

// UpdateScore applies a delta to one player's score. Scores may go
// negative.
func (st *SessionStore) UpdateScore(gameID, player string, delta int) (map[string]int, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.Scores[player] += delta
	sess.UpdatedAt = time.Now()
	return sess.scoresSnapshot(), nil
}

// Scores returns a snapshot of the score map.
func (st *SessionStore) Scores(gameID string) (map[string]int, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.scoresSnapshot(), nil
}

// SubmitWager records a final-round wager. Resubmission overwrites. The
// second return is true once every expected submitter has wagered.
func (st *SessionStore) SubmitWager(gameID, player string, amount int) (bool, map[string]int, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return false, nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.Wagers[player] = amount
	sess.UpdatedAt = time.Now()

	all := len(sess.Wagers) >= sess.expectedSubmitters()
	wagers := make(map[string]int, len(sess.Wagers))
	for name, amount := range sess.Wagers {
		wagers[name] = amount
	}
	return all, wagers, nil
}

// SubmitDrawing records a final-round drawing answer. The second return is
// true once every expected submitter has drawn.
func (st *SessionStore) SubmitDrawing(gameID, player string, paths json.RawMessage) (bool, map[string]json.RawMessage, error) {
	sess, err := st.get(gameID)
	if err != nil {
		return false, nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.Drawings[player] = paths
	sess.UpdatedAt = time.Now()

	all := len(sess.Drawings) >= sess.expectedSubmitters()
	drawings := make(map[string]json.RawMessage, len(sess.Drawings))
	for name, d := range sess.Drawings {
		drawings[name] = d
	}
	return all, drawings, nil
}

// RemovePlayer drops a player by connection from one session, for explicit
// leave-game messages.
func (st *SessionStore) RemovePlayer(gameID, connID string) (removed string, players []Player, err error) {
	sess, err := st.get(gameID)
	if err != nil {
		return "", nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	removed = sess.pruneConnection(connID)
	return removed, sess.playersSnapshot(), nil
}

type PrunedSession struct {
	GameID  string
	Removed string
	Players []Player
}

// PruneConnection removes a departed connection's player from every session
// listing it. Disconnects are recovered locally: the session itself is
// never torn down.
func (st *SessionStore) PruneConnection(connID string) []PrunedSession {
	st.mu.RLock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, sess := range st.sessions {
		sessions = append(sessions, sess)
	}
	st.mu.RUnlock()

	var pruned []PrunedSession
	for _, sess := range sessions {
		sess.mu.Lock()
		removed := sess.pruneConnection(connID)
		if removed != "" {
			pruned = append(pruned, PrunedSession{
				GameID:  sess.GameID,
				Removed: removed,
				Players: sess.playersSnapshot(),
			})
		}
		sess.mu.Unlock()
	}
	return pruned
}

// pruneConnection removes the player owning connID and returns their name,
// or "" if no player matched. Caller holds the session lock.
func (sess *Session) pruneConnection(connID string) string {
	for i, p := range sess.Players {
		if p.ConnectionID == connID {
			sess.Players = append(sess.Players[:i], sess.Players[i+1:]...)
			sess.UpdatedAt = time.Now()
			return p.Name
		}
	}
	return ""
}
