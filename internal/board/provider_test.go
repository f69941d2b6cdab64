package board

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundJSON(t *testing.T, round int) string {
	t.Helper()

	values := RoundValues(round)
	categories := make([]Category, CategoriesPerRound)
	for i := range categories {
		clues := make([]Clue, CluesPerCategory)
		for j := range clues {
			clues[j] = Clue{
				Value:    values[j],
				Question: fmt.Sprintf("Question %d-%d", i, j),
				Answer:   fmt.Sprintf("Answer %d-%d", i, j),
			}
		}
		categories[i] = Category{Title: fmt.Sprintf("Category %d", i), Clues: clues}
	}

	data, err := json.Marshal(categories)
	require.NoError(t, err)
	return string(data)
}

// completionHandler answers like an OpenAI-compatible endpoint, choosing the
// reply from the prompt text.
func completionHandler(t *testing.T, wrapInFence bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		prompt := req.Messages[0].Content

		var content string
		switch {
		case strings.Contains(prompt, "final trivia clue"):
			content = `{"category": "Final Category", "question": "The final question", "answer": "The final answer"}`
		case strings.Contains(prompt, "values [400 800 1200 1600 2000]"):
			content = roundJSON(t, 2)
		default:
			content = roundJSON(t, 1)
		}

		if wrapInFence {
			content = "```json\n" + content + "\n```"
		}

		reply := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(reply))
	}
}

func testRequest() Request {
	var req Request
	for i := range req.Categories {
		req.Categories[i] = fmt.Sprintf("Category %d", i)
	}
	req.Model = "gpt-4o-mini"
	return req
}

func TestGenerateBoard(t *testing.T) {
	ts := httptest.NewServer(completionHandler(t, false))
	defer ts.Close()

	client := NewClient(ts.URL, "test-key", 10*time.Second)
	data, err := client.GenerateBoard(context.Background(), testRequest())
	require.NoError(t, err)

	require.Len(t, data.FirstRound, CategoriesPerRound)
	require.Len(t, data.SecondRound, CategoriesPerRound)
	assert.Equal(t, 200, data.FirstRound[0].Clues[0].Value)
	assert.Equal(t, 2000, data.SecondRound[0].Clues[CluesPerCategory-1].Value)
	assert.Equal(t, "Final Category", data.Final.Category)
	assert.NoError(t, data.Validate())
}

func TestGenerateBoardStripsCodeFence(t *testing.T) {
	ts := httptest.NewServer(completionHandler(t, true))
	defer ts.Close()

	client := NewClient(ts.URL, "test-key", 10*time.Second)
	data, err := client.GenerateBoard(context.Background(), testRequest())
	require.NoError(t, err)
	assert.NoError(t, data.Validate())
}

func TestGenerateBoardBlankCategory(t *testing.T) {
	ts := httptest.NewServer(completionHandler(t, false))
	defer ts.Close()

	client := NewClient(ts.URL, "test-key", 10*time.Second)
	req := testRequest()
	req.Categories[4] = "  "

	_, err := client.GenerateBoard(context.Background(), req)
	assert.ErrorContains(t, err, "BOARD_PROVIDER_FAILED")
}

func TestGenerateBoardUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "test-key", 10*time.Second)
	_, err := client.GenerateBoard(context.Background(), testRequest())
	assert.ErrorContains(t, err, "BOARD_PROVIDER_FAILED")
}

func TestGenerateBoardMalformedContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "here is your board!"}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "test-key", 10*time.Second)
	_, err := client.GenerateBoard(context.Background(), testRequest())
	assert.ErrorContains(t, err, "BOARD_PROVIDER_FAILED")
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
}

func TestRoundValues(t *testing.T) {
	assert.Equal(t, [CluesPerCategory]int{200, 400, 600, 800, 1000}, RoundValues(1))
	assert.Equal(t, [CluesPerCategory]int{400, 800, 1200, 1600, 2000}, RoundValues(2))
}

func TestValidateRejectsShortRound(t *testing.T) {
	data := &Data{
		FirstRound:  []Category{{Title: "Only one"}},
		SecondRound: []Category{},
		Final:       FinalClue{Question: "q", Answer: "a"},
	}
	assert.ErrorContains(t, data.Validate(), "first round")
}
