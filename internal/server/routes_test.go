package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-server/internal/profile"
)

func TestHealthHandler(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "sessions")
	assert.Contains(t, body, "connections")
}

func TestRootHandler(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "trivia-server", body["service"])
}

func TestCorsPreflight(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/health", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestQRHandler(t *testing.T) {
	s, ts := newTestServer(t, stubProvider{data: testBoard()})
	gameID, _ := s.store.CreateLobby("conn-1", "Alice", profile.Default, nil)

	resp, err := http.Get(ts.URL + "/games/" + gameID + "/qr")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestQRHandlerUnknownGame(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})

	resp, err := http.Get(ts.URL + "/games/ZZZZ/qr")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQRHandlerInvalidCode(t *testing.T) {
	_, ts := newTestServer(t, stubProvider{data: testBoard()})

	resp, err := http.Get(ts.URL + "/games/toolong/qr")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
