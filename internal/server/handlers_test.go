package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-server/internal/board"
	"trivia-server/internal/profile"
)

type stubProvider struct {
	data *board.Data
	err  error
}

func (p stubProvider) GenerateBoard(ctx context.Context, req board.Request) (*board.Data, error) {
	return p.data, p.err
}

func newTestServer(t *testing.T, boards board.Provider) (*Server, *httptest.Server) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RateLimit = 1000
	s := newServer(cfg, boards, profile.None{})
	ts := httptest.NewServer(s.RegisterRoutes())
	t.Cleanup(ts.Close)
	return s, ts
}

type testClient struct {
	t    *testing.T
	ctx  context.Context
	conn *websocket.Conn
}

func dialTestClient(t *testing.T, ts *httptest.Server) *testClient {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/websocket"
	conn, resp, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() {
		conn.Close(websocket.StatusNormalClosure, "test done")
	})

	return &testClient{t: t, ctx: ctx, conn: conn}
}

func (c *testClient) send(msgType string, payload interface{}) {
	c.t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"type":    msgType,
		"payload": payload,
	})
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.Write(c.ctx, websocket.MessageText, data))
}

func (c *testClient) sendRaw(data string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.Write(c.ctx, websocket.MessageText, []byte(data)))
}

type receivedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (c *testClient) recv() receivedMessage {
	c.t.Helper()
	_, data, err := c.conn.Read(c.ctx)
	require.NoError(c.t, err)

	var msg receivedMessage
	require.NoError(c.t, json.Unmarshal(data, &msg))
	return msg
}

// expect reads one envelope and asserts its type, decoding the payload into
// out when out is non-nil.
func (c *testClient) expect(msgType string, out interface{}) {
	c.t.Helper()
	msg := c.recv()
	require.Equal(c.t, msgType, msg.Type)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(msg.Payload, out))
	}
}

// createLobbyOverWire drives the create-lobby exchange and returns the game
// code.
func createLobbyOverWire(t *testing.T, host *testClient, name string) string {
	t.Helper()

	host.send("create-lobby", CreateLobbyRequest{Name: name, Categories: testCategories()})

	var created LobbyCreatedResponse
	host.expect("lobby-created", &created)
	host.expect("player-list-update", nil)
	return created.GameID
}

func TestWebsocketCreateLobby(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})
	host := dialTestClient(t, ts)

	host.send("create-lobby", CreateLobbyRequest{Name: "Alice", Categories: testCategories()})

	var created LobbyCreatedResponse
	host.expect("lobby-created", &created)
	assert.NoError(t, ValidateGameCode(created.GameID))
	assert.Equal(t, "Alice", created.Host)
	require.Len(t, created.Players, 1)

	var update PlayerListUpdate
	host.expect("player-list-update", &update)
	assert.Equal(t, created.GameID, update.GameID)
	assert.Len(t, update.Players, 1)
}

func TestWebsocketJoinLobby(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})
	host := dialTestClient(t, ts)
	gameID := createLobbyOverWire(t, host, "Alice")

	player := dialTestClient(t, ts)
	player.send("join-lobby", JoinLobbyRequest{GameID: gameID, Name: "Bob"})

	var state LobbyStateResponse
	player.expect("lobby-state", &state)
	assert.True(t, state.Exists)
	assert.Equal(t, "Alice", state.Host)
	assert.Len(t, state.Players, 2)

	player.expect("player-list-update", nil)

	var update PlayerListUpdate
	host.expect("player-list-update", &update)
	assert.Len(t, update.Players, 2)
}

func TestWebsocketJoinUnknownGame(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})
	player := dialTestClient(t, ts)

	player.send("join-lobby", JoinLobbyRequest{GameID: "ZZZZ", Name: "Bob"})

	var errMsg ErrorMessage
	player.expect("error", &errMsg)
	assert.Contains(t, errMsg.Message, "SESSION_NOT_FOUND")
}

func TestWebsocketCheckLobby(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})
	host := dialTestClient(t, ts)
	gameID := createLobbyOverWire(t, host, "Alice")

	other := dialTestClient(t, ts)

	other.send("check-lobby", GameRequest{GameID: gameID})
	var state LobbyStateResponse
	other.expect("lobby-state", &state)
	assert.True(t, state.Exists)

	other.send("check-lobby", GameRequest{GameID: "QQQQ"})
	other.expect("lobby-state", &state)
	assert.False(t, state.Exists, "A dead code is a negative answer, not an error")
}

func TestWebsocketCreateGame(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})
	host := dialTestClient(t, ts)
	gameID := createLobbyOverWire(t, host, "Alice")

	host.send("create-game", CreateGameRequest{GameID: gameID, TimeToBuzz: 5, TimeToAnswer: 20})

	host.expect("info", nil)

	var started StartGameMessage
	host.expect("start-game", &started)
	require.NotNil(t, started.Board)
	assert.Len(t, started.Board.FirstRound, board.CategoriesPerRound)
	assert.Equal(t, map[string]int{"Alice": 0}, started.Scores)
	assert.Equal(t, 5, started.TimeToBuzz)
	assert.Equal(t, 20, started.TimeToAnswer)
}

func TestWebsocketCreateGameProviderFailure(t *testing.T) {
	s, ts := newTestServer(t, stubProvider{err: assert.AnError})
	host := dialTestClient(t, ts)
	gameID := createLobbyOverWire(t, host, "Alice")

	host.send("create-game", CreateGameRequest{GameID: gameID})

	host.expect("info", nil)
	var failed CreateBoardFailed
	host.expect("create-board-failed", &failed)
	assert.NotEmpty(t, failed.Message)

	// The session stays in the lobby so the host can retry.
	phase, err := s.store.Phase(gameID)
	require.NoError(t, err)
	assert.Equal(t, PhaseLobby, phase)
}

func TestWebsocketBuzzRoundTrip(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})
	host := dialTestClient(t, ts)
	gameID := createLobbyOverWire(t, host, "Alice")

	player := dialTestClient(t, ts)
	player.send("join-lobby", JoinLobbyRequest{GameID: gameID, Name: "Bob"})
	player.expect("lobby-state", nil)
	player.expect("player-list-update", nil)
	host.expect("player-list-update", nil)

	// Unlimited windows so no timer-start envelopes interleave.
	host.send("create-game", CreateGameRequest{GameID: gameID})
	for _, c := range []*testClient{host, player} {
		c.expect("info", nil)
		c.expect("start-game", nil)
	}

	host.send("unlock-buzzer", GameRequest{GameID: gameID})
	host.expect("buzzer-unlocked", nil)
	player.expect("buzzer-unlocked", nil)

	player.send("buzz", GameRequest{GameID: gameID})
	var result BuzzResultMessage
	host.expect("buzz-result", &result)
	assert.Equal(t, "Bob", result.Player)
	player.expect("buzz-result", &result)
	assert.Equal(t, "Bob", result.Player)

	// Reset emits reset-buzzer before buzzer-locked.
	host.send("reset-buzzer", GameRequest{GameID: gameID})
	host.expect("reset-buzzer", nil)
	host.expect("buzzer-locked", nil)
	player.expect("reset-buzzer", nil)
	player.expect("buzzer-locked", nil)
}

func TestWebsocketSecondBuzzNotBroadcast(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})
	host := dialTestClient(t, ts)
	gameID := createLobbyOverWire(t, host, "Alice")

	player := dialTestClient(t, ts)
	player.send("join-lobby", JoinLobbyRequest{GameID: gameID, Name: "Bob"})
	player.expect("lobby-state", nil)
	player.expect("player-list-update", nil)
	host.expect("player-list-update", nil)

	host.send("create-game", CreateGameRequest{GameID: gameID})
	for _, c := range []*testClient{host, player} {
		c.expect("info", nil)
		c.expect("start-game", nil)
	}

	host.send("unlock-buzzer", GameRequest{GameID: gameID})
	host.expect("buzzer-unlocked", nil)
	player.expect("buzzer-unlocked", nil)

	player.send("buzz", GameRequest{GameID: gameID})
	var result BuzzResultMessage
	player.expect("buzz-result", &result)
	assert.Equal(t, "Bob", result.Player)

	host.expect("buzz-result", &result)
	assert.Equal(t, "Bob", result.Player)

	// Bob is already buzzed in, so this one is silently dropped.
	host.send("buzz", GameRequest{GameID: gameID})

	// The losing buzz produced nothing; the next envelope the host sees is
	// the reply to an unrelated probe.
	host.send("check-cotd", struct{}{})
	host.expect("category-of-the-day", nil)
}

func TestWebsocketClueLifecycle(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})
	host := dialTestClient(t, ts)
	gameID := createLobbyOverWire(t, host, "Alice")

	host.send("create-game", CreateGameRequest{GameID: gameID})
	host.expect("info", nil)
	host.expect("start-game", nil)

	clue := testBoard().FirstRound[0].Clues[0]
	host.send("clue-selected", ClueSelectedRequest{GameID: gameID, Category: "Round 1 Category 0", Clue: clue})
	var selected ClueSelectedMessage
	host.expect("clue-selected", &selected)
	assert.Equal(t, clue, selected.Clue)

	// A second selection while one is on display is ignored.
	other := testBoard().FirstRound[1].Clues[0]
	host.send("clue-selected", ClueSelectedRequest{GameID: gameID, Category: "Round 1 Category 1", Clue: other})

	host.send("reveal-answer", GameRequest{GameID: gameID})
	var revealed AnswerRevealedMessage
	host.expect("answer-revealed", &revealed)
	assert.Equal(t, clue, revealed.Clue, "The ignored selection must not have replaced the displayed clue")

	host.send("return-to-board", GameRequest{GameID: gameID})
	host.expect("returned-to-board", nil)

	host.send("clue-cleared", ClueClearedRequest{GameID: gameID, ClueID: ClueID(clue)})
	var cleared ClueClearedMessage
	host.expect("clue-cleared", &cleared)
	assert.Equal(t, ClueID(clue), cleared.ClueID)
}

func TestWebsocketFinalJeopardyFlow(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})
	host := dialTestClient(t, ts)
	gameID := createLobbyOverWire(t, host, "Alice")

	player := dialTestClient(t, ts)
	player.send("join-lobby", JoinLobbyRequest{GameID: gameID, Name: "Bob"})
	player.expect("lobby-state", nil)
	player.expect("player-list-update", nil)
	host.expect("player-list-update", nil)

	host.send("create-game", CreateGameRequest{GameID: gameID})
	for _, c := range []*testClient{host, player} {
		c.expect("info", nil)
		c.expect("start-game", nil)
	}

	host.send("transition-to-second-board", GameRequest{GameID: gameID})
	host.expect("transition-to-second-board", nil)
	player.expect("transition-to-second-board", nil)

	host.send("transition-to-final-jeopardy", GameRequest{GameID: gameID})
	var final FinalJeopardyMessage
	host.expect("final-jeopardy", &final)
	assert.Equal(t, "Final Category", final.Clue.Category)
	player.expect("final-jeopardy", nil)

	// Bob is the only expected submitter; his wager completes the round,
	// and the per-player notice leaks no amount.
	player.send("submit-wager", SubmitWagerRequest{GameID: gameID, Player: "Bob", Amount: 500})
	var wager WagerUpdate
	player.expect("wager-update", &wager)
	assert.Equal(t, "Bob", wager.Player)

	var allWagers AllWagersSubmitted
	player.expect("all-wagers-submitted", &allWagers)
	assert.Equal(t, map[string]int{"Bob": 500}, allWagers.Wagers)
	host.expect("wager-update", nil)
	host.expect("all-wagers-submitted", nil)

	paths := json.RawMessage(`[[{"x":1,"y":2}]]`)
	player.send("final-jeopardy-drawing", DrawingRequest{GameID: gameID, Player: "Bob", Paths: paths})
	player.expect("final-jeopardy-drawing-submitted", nil)
	var allDrawings AllDrawingsSubmitted
	player.expect("all-final-jeopardy-drawings-submitted", &allDrawings)
	assert.JSONEq(t, string(paths), string(allDrawings.Drawings["Bob"]))
	host.expect("final-jeopardy-drawing-submitted", nil)
	host.expect("all-final-jeopardy-drawings-submitted", nil)

	host.send("trigger-game-over", GameRequest{GameID: gameID})
	var over GameOverMessage
	host.expect("game-over", &over)
	assert.Contains(t, over.Scores, "Bob")
	player.expect("game-over", nil)
}

func TestWebsocketDrawingWithoutPathsIsDiscarded(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})
	host := dialTestClient(t, ts)
	gameID := createLobbyOverWire(t, host, "Alice")

	host.sendRaw(`{"type":"final-jeopardy-drawing","payload":{"gameId":"` + gameID + `","player":"Alice"}}`)

	// No broadcast for the bad drawing; the session keeps working.
	host.send("check-cotd", struct{}{})
	host.expect("category-of-the-day", nil)
}

func TestWebsocketUpdateScore(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})
	host := dialTestClient(t, ts)
	gameID := createLobbyOverWire(t, host, "Alice")

	host.send("create-game", CreateGameRequest{GameID: gameID})
	host.expect("info", nil)
	host.expect("start-game", nil)

	host.send("update-score", UpdateScoreRequest{GameID: gameID, Player: "Alice", Delta: -200})
	var scores ScoresUpdate
	host.expect("update-scores", &scores)
	assert.Equal(t, -200, scores.Scores["Alice"])
}

func TestWebsocketUnknownTypeIgnored(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})
	client := dialTestClient(t, ts)

	client.send("definitely-not-a-thing", struct{}{})

	// No error envelope; the connection stays healthy.
	client.send("check-cotd", struct{}{})
	client.expect("category-of-the-day", nil)
}

func TestWebsocketInvalidJSON(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})
	client := dialTestClient(t, ts)

	client.sendRaw(`{not json at all`)

	var errMsg ErrorMessage
	client.expect("error", &errMsg)
	assert.Contains(t, errMsg.Message, "INVALID_PAYLOAD")
}

func TestWebsocketRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 1
	cfg.RateWindow = time.Minute
	s := newServer(cfg, stubProvider{data: testBoard()}, profile.None{})
	ts := httptest.NewServer(s.RegisterRoutes())
	t.Cleanup(ts.Close)

	client := dialTestClient(t, ts)

	client.send("check-cotd", struct{}{})
	client.expect("category-of-the-day", nil)

	client.send("check-cotd", struct{}{})
	var errMsg ErrorMessage
	client.expect("error", &errMsg)
	assert.Contains(t, errMsg.Message, "RATE_LIMITED")
}

func TestWebsocketLeaveGame(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})
	host := dialTestClient(t, ts)
	gameID := createLobbyOverWire(t, host, "Alice")

	player := dialTestClient(t, ts)
	player.send("join-lobby", JoinLobbyRequest{GameID: gameID, Name: "Bob"})
	player.expect("lobby-state", nil)
	player.expect("player-list-update", nil)
	host.expect("player-list-update", nil)

	player.send("leave-game", GameRequest{GameID: gameID})

	var update PlayerListUpdate
	host.expect("player-list-update", &update)
	require.Len(t, update.Players, 1)
	assert.Equal(t, "Alice", update.Players[0].Name)
}
