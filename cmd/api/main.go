package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"trivia-server/internal/server"
)

func newCmd(cfg *server.Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TRIVIA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "trivia-server",
		Short:         "Real-time multiplayer trivia game server with AI-generated boards.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(*cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", cfg.Bind, "address to bind to (env: TRIVIA_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on (env: TRIVIA_PORT)")
	fs.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "externally visible base URL for join links (env: TRIVIA_PUBLIC_URL)")
	fs.StringVar(&cfg.BoardServiceURL, "board-service-url", cfg.BoardServiceURL, "base URL of the board generation service (env: TRIVIA_BOARD_SERVICE_URL)")
	fs.StringVar(&cfg.BoardServiceKey, "board-service-key", cfg.BoardServiceKey, "API key for the board generation service (env: TRIVIA_BOARD_SERVICE_KEY)")
	fs.DurationVar(&cfg.BoardTimeout, "board-timeout", cfg.BoardTimeout, "timeout for board generation calls (env: TRIVIA_BOARD_TIMEOUT)")
	fs.StringVar(&cfg.ProfileServiceURL, "profile-service-url", cfg.ProfileServiceURL, "base URL of the profile color service, empty to disable (env: TRIVIA_PROFILE_SERVICE_URL)")
	fs.DurationVar(&cfg.ProfileTimeout, "profile-timeout", cfg.ProfileTimeout, "timeout for profile lookups (env: TRIVIA_PROFILE_TIMEOUT)")
	fs.DurationVar(&cfg.HeartbeatInterval, "heartbeat-interval", cfg.HeartbeatInterval, "interval between connection liveness pings (env: TRIVIA_HEARTBEAT_INTERVAL)")
	fs.DurationVar(&cfg.CategoryRefreshInterval, "category-refresh-interval", cfg.CategoryRefreshInterval, "how often the category of the day rotates (env: TRIVIA_CATEGORY_REFRESH_INTERVAL)")
	fs.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "max messages per connection per window (env: TRIVIA_RATE_LIMIT)")
	fs.DurationVar(&cfg.RateWindow, "rate-window", cfg.RateWindow, "rate limit window (env: TRIVIA_RATE_WINDOW)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}

func run(cfg server.Config) error {
	triviaServer, httpServer := server.New(cfg)

	done := make(chan bool, 1)
	go gracefulShutdown(triviaServer, httpServer, done)

	log.Printf("Listening on %s", httpServer.Addr)
	err := httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}

	<-done
	log.Println("Graceful shutdown complete.")
	return nil
}

func gracefulShutdown(triviaServer *server.Server, httpServer *http.Server, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Println("Shutdown signal received, press Ctrl+C again to force")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := triviaServer.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown with error: %v", err)
	}

	done <- true
}

func main() {
	cfg := server.DefaultConfig()
	if err := newCmd(&cfg).Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
