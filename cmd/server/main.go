package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Sritheeagle/FNBxAI-sub001/internal/attendance"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/config"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/hub"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/logging"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/platform/version"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/server"
	"github.com/Sritheeagle/FNBxAI-sub001/internal/token"
)

const evictionInterval = 1 * time.Minute

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupRepository selects the redemption store: Postgres when DATABASE_URL
// is set, otherwise in-memory for single-node and local runs.
func setupRepository(cfg *config.Config) (attendance.Repository, func()) {
	if cfg.DatabaseURL == "" {
		slog.Info("Using in-memory redemption store")
		return attendance.NewMemoryRepository(), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := attendance.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	return repo, repo.Close
}

func runGracefulShutdown(srv *server.Server, h *hub.Hub, stopEviction func()) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		if err := h.Shutdown(shutdownCtx); err != nil {
			slog.Error("Hub shutdown error", "error", err)
		}

		stopEviction()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	slog.Info("Application starting",
		"env", cfg.AppEnv,
		"port", cfg.Port,
		"version", info.Version,
		"commit", info.Commit,
	)

	repo, closeRepo := setupRepository(cfg)
	defer closeRepo()

	tokens := token.NewService(clock, cfg.DefaultTokenTTL)
	stopEviction := tokens.StartEviction(evictionInterval)

	h := hub.New(clock, hub.Opts{
		MaxConnections:    cfg.MaxConnections,
		SendBufferSize:    cfg.SendBufferSize,
		HeartbeatInterval: cfg.HeartbeatInterval,
		StopTimeout:       5 * time.Second,
	})

	att := attendance.NewService(tokens, repo, h, clock)

	srv := server.NewServer(cfg, h, att, repo)

	done := runGracefulShutdown(srv, h, stopEviction)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
