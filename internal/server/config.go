package server

import (
	"errors"
	"fmt"
	"time"
)

type Config struct {
	Bind      string
	Port      int
	PublicURL string

	BoardServiceURL string
	BoardServiceKey string
	BoardTimeout    time.Duration

	ProfileServiceURL string
	ProfileTimeout    time.Duration

	HeartbeatInterval       time.Duration
	CategoryRefreshInterval time.Duration

	RateLimit  int
	RateWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		Bind:                    "0.0.0.0",
		Port:                    8080,
		PublicURL:               "http://localhost:8080",
		BoardServiceURL:         "https://api.openai.com",
		BoardTimeout:            90 * time.Second,
		ProfileTimeout:          5 * time.Second,
		HeartbeatInterval:       30 * time.Second,
		CategoryRefreshInterval: time.Hour,
		RateLimit:               20,
		RateWindow:              time.Second,
	}
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.BoardServiceURL == "" {
		return errors.New("board service URL must be set")
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("heartbeat interval must be positive")
	}
	if c.CategoryRefreshInterval <= 0 {
		return errors.New("category refresh interval must be positive")
	}
	return nil
}
