// Package server wires the HTTP surface: the websocket endpoint, health
// probes, metrics and the notification REST API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fy-st0rm/lobic/internal/config"
	"github.com/fy-st0rm/lobic/internal/conns"
	"github.com/fy-st0rm/lobic/internal/notify"
	"github.com/fy-st0rm/lobic/internal/ws"
)

type Server struct {
	echo      *echo.Echo
	cfg       config.Config
	pool      *pgxpool.Pool
	registry  *conns.Registry
	notifier  *notify.Service
	wsHandler *ws.Handler
	limits    *ConnectionLimits
	startTime time.Time
}

func New(cfg config.Config, pool *pgxpool.Pool, registry *conns.Registry, notifier *notify.Service, wsHandler *ws.Handler, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.IsDevelopment()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		echo:      e,
		cfg:       cfg,
		pool:      pool,
		registry:  registry,
		notifier:  notifier,
		wsHandler: wsHandler,
		limits:    NewConnectionLimits(cfg, clock),
		startTime: clock.Now(),
	}
	s.registerRoutes()
	return s
}

// Start blocks serving HTTP until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	if err := s.echo.Start(":" + s.cfg.Port); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// Shutdown stops accepting new connections, drains in-flight requests and
// closes the live websockets, which echo's Shutdown leaves alone because
// they are hijacked.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	if open := s.registry.Len(); open > 0 {
		slog.Info("closing live websocket connections", "count", open)
	}
	s.registry.CloseAll("server shutting down")
	return nil
}
