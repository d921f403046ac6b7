package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/fy-st0rm/lobic/internal/config"
	"github.com/fy-st0rm/lobic/internal/conns"
	"github.com/fy-st0rm/lobic/internal/database"
	"github.com/fy-st0rm/lobic/internal/lobby"
	"github.com/fy-st0rm/lobic/internal/logging"
	"github.com/fy-st0rm/lobic/internal/notify"
	"github.com/fy-st0rm/lobic/internal/server"
	"github.com/fy-st0rm/lobic/internal/ws"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	clock := clockwork.NewRealClock()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("starting lobic engine", "env", cfg.AppEnv, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool); err != nil {
		return err
	}

	users := database.NewUserRepository(pool)
	notifications := database.NewNotificationRepository(pool)

	registry := conns.NewRegistry()
	notifier := notify.NewService(registry, notifications, clock)
	lobbies := lobby.NewPool(users, registry, notifier, clock)
	wsHandler := ws.NewHandler(registry, lobbies, clock)

	srv := server.New(cfg, pool, registry, notifier, wsHandler, clock)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("shutdown complete")
	return nil
}
