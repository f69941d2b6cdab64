package board

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Provider generates a complete game board from 11 category names. Both
// standard rounds and the final clue are requested concurrently; if any
// sub-request fails or returns malformed data, the whole call fails and the
// session stays in the lobby so the host can retry.
type Provider interface {
	GenerateBoard(ctx context.Context, req Request) (*Data, error)
}

type Request struct {
	Categories  [TotalCategories]string
	Model       string
	RequestedBy string
	Temperature float64
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) GenerateBoard(ctx context.Context, req Request) (*Data, error) {
	for _, name := range req.Categories {
		if strings.TrimSpace(name) == "" {
			return nil, errors.New("BOARD_PROVIDER_FAILED: all 11 categories must be named")
		}
	}

	var (
		first  []Category
		second []Category
		final  FinalClue
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		first, err = c.generateRound(ctx, req, req.Categories[0:5], 1)
		return err
	})
	g.Go(func() error {
		var err error
		second, err = c.generateRound(ctx, req, req.Categories[5:10], 2)
		return err
	})
	g.Go(func() error {
		var err error
		final, err = c.generateFinal(ctx, req, req.Categories[10])
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("BOARD_PROVIDER_FAILED: %w", err)
	}

	data := &Data{FirstRound: first, SecondRound: second, Final: final}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("BOARD_PROVIDER_FAILED: %w", err)
	}
	return data, nil
}

func (c *Client) generateRound(ctx context.Context, req Request, names []string, round int) ([]Category, error) {
	values := RoundValues(round)
	prompt := fmt.Sprintf(
		"Generate a trivia board round as strict JSON. Categories: %s. "+
			"Respond with a JSON array of %d objects, one per category in order, each shaped "+
			`{"title": string, "clues": [{"value": int, "question": string, "answer": string}]}. `+
			"Each category has exactly %d clues with values %v, hardest last. "+
			"Questions are Jeopardy-style statements; answers are short. No prose outside the JSON.",
		strings.Join(names, "; "), len(names), CluesPerCategory, values)

	content, err := c.complete(ctx, req, prompt)
	if err != nil {
		return nil, err
	}

	var categories []Category
	if err := json.Unmarshal([]byte(content), &categories); err != nil {
		return nil, fmt.Errorf("round %d response is not valid board JSON: %w", round, err)
	}
	return categories, nil
}

func (c *Client) generateFinal(ctx context.Context, req Request, name string) (FinalClue, error) {
	prompt := fmt.Sprintf(
		"Generate a single very hard final trivia clue for the category %q as strict JSON shaped "+
			`{"category": string, "question": string, "answer": string}. No prose outside the JSON.`, name)

	content, err := c.complete(ctx, req, prompt)
	if err != nil {
		return FinalClue{}, err
	}

	var final FinalClue
	if err := json.Unmarshal([]byte(content), &final); err != nil {
		return FinalClue{}, fmt.Errorf("final clue response is not valid JSON: %w", err)
	}
	if final.Category == "" {
		final.Category = name
	}
	return final, nil
}

type completionRequest struct {
	Model       string              `json:"model"`
	Messages    []completionMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	User        string              `json:"user,omitempty"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message completionMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, req Request, prompt string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:       req.Model,
		Messages:    []completionMessage{{Role: "user", Content: prompt}},
		Temperature: req.Temperature,
		User:        req.RequestedBy,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("completion request returned %d: %s", resp.StatusCode, snippet)
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("invalid completion response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("completion response has no choices")
	}

	return stripCodeFence(completion.Choices[0].Message.Content), nil
}

// stripCodeFence removes a markdown ```json fence if the model wrapped its
// output in one despite the prompt.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
