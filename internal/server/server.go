package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"trivia-server/internal/board"
	"trivia-server/internal/profile"
)

// Server wires the session store, connection registry, and external
// collaborators together. Everything is constructed here and passed by
// handle; nothing is reached through package globals, so tests build a
// fresh Server per case.
type Server struct {
	cfg         Config
	store       *SessionStore
	connections *ConnectionRegistry
	boards      board.Provider
	profiles    profile.Lookup
	limiter     *RateLimiter
	cotd        *categoryOfTheDay
	startedAt   time.Time

	cancelTasks context.CancelFunc
}

// New builds the server and its HTTP listener and starts the background
// tasks (heartbeat monitor, category-of-the-day refresh).
func New(cfg Config) (*Server, *http.Server) {
	boards := board.NewClient(cfg.BoardServiceURL, cfg.BoardServiceKey, cfg.BoardTimeout)

	var profiles profile.Lookup = profile.None{}
	if cfg.ProfileServiceURL != "" {
		profiles = profile.NewClient(cfg.ProfileServiceURL, cfg.ProfileTimeout)
	}

	s := newServer(cfg, boards, profiles)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelTasks = cancel
	go s.heartbeatTask(ctx)
	go s.cotdTask(ctx)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, httpServer
}

// newServer assembles a Server without starting background tasks.
func newServer(cfg Config, boards board.Provider, profiles profile.Lookup) *Server {
	return &Server{
		cfg:         cfg,
		store:       NewSessionStore(),
		connections: NewConnectionRegistry(),
		boards:      boards,
		profiles:    profiles,
		limiter:     NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		cotd:        newCategoryOfTheDay(),
		startedAt:   time.Now(),
	}
}

// Shutdown stops the background tasks. Game state is in-memory only and
// intentionally not persisted.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancelTasks != nil {
		s.cancelTasks()
	}
	return nil
}
