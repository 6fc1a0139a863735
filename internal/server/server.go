// Package server exposes the authorization callback and the latest
// leaderboard over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"strava-leaderboard/internal/auth"
	"strava-leaderboard/internal/observability"
	"strava-leaderboard/internal/service"
)

// Callbacks is the authorization intake
type Callbacks interface {
	AuthorizationURL() (string, error)
	Complete(ctx context.Context, state, code, errParam string) (*auth.Outcome, error)
}

// Board is the scheduler as seen over HTTP
type Board interface {
	Latest() *service.Snapshot
	State() service.State
	NextCycle() time.Time
}

// Server serves the HTTP routes
type Server struct {
	echo      *echo.Echo
	callbacks Callbacks
	board     Board
	log       *observability.Logger
}

// New creates a server and registers its routes
func New(callbacks Callbacks, board Board, log *observability.Logger) *Server {
	if log == nil {
		log = observability.Discard()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, callbacks: callbacks, board: board, log: log}
	e.GET("/authorize", s.authorize)
	e.GET("/authorized", s.authorized)
	e.GET("/leaderboard", s.leaderboard)
	e.GET("/health", s.health)
	return s
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run listens on addr until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server_listening", map[string]any{"addr": addr})
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
