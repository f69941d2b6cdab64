package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Colors is the display color pair assigned to a player.
type Colors struct {
	Color     string `json:"color"`
	TextColor string `json:"textColor"`
}

// Default is used whenever a lookup misses or the profile service is
// unreachable. Lookup failure must never block joining a game.
var Default = Colors{Color: "#1a237e", TextColor: "#ffffff"}

// Lookup resolves a display name to a color pair. Implementations return
// nil (not an error) on a miss.
type Lookup interface {
	ColorFor(ctx context.Context, displayName string) *Colors
}

// Client queries an external profile service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) ColorFor(ctx context.Context, displayName string) *Colors {
	if c.baseURL == "" || displayName == "" {
		return nil
	}

	endpoint := fmt.Sprintf("%s/api/profiles/%s", c.baseURL, url.PathEscape(displayName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("Profile lookup for %q failed: %v", displayName, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var colors Colors
	if err := json.NewDecoder(resp.Body).Decode(&colors); err != nil {
		log.Printf("Profile lookup for %q returned invalid JSON: %v", displayName, err)
		return nil
	}
	if colors.Color == "" {
		return nil
	}
	if colors.TextColor == "" {
		colors.TextColor = Default.TextColor
	}
	return &colors
}

// None is a Lookup that always misses, for deployments without a profile
// service configured.
type None struct{}

func (None) ColorFor(context.Context, string) *Colors { return nil }
