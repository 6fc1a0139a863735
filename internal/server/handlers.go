package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"strava-leaderboard/internal/auth"
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status    string `json:"status"`
	State     string `json:"state"`
	NextCycle string `json:"next_cycle,omitempty"`
	Snapshot  string `json:"snapshot,omitempty"`
}

// authorize redirects to Strava's consent page with a fresh state
func (s *Server) authorize(c echo.Context) error {
	url, err := s.callbacks.AuthorizationURL()
	if err != nil {
		s.log.Error("authorize_failed", map[string]any{"error": err})
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "could not start authorization"})
	}
	return c.Redirect(http.StatusFound, url)
}

// authorized is the OAuth redirect target
func (s *Server) authorized(c echo.Context) error {
	out, err := s.callbacks.Complete(c.Request().Context(),
		c.QueryParam("state"), c.QueryParam("code"), c.QueryParam("error"))
	if err != nil {
		status, msg := callbackFailure(err)
		s.log.Warn("callback_failed", map[string]any{"status": status, "error": err})
		return c.String(status, msg)
	}

	msg := "Authorization complete. You can close this window."
	if out.Registered {
		msg = "Welcome " + out.Grant.Athlete.FullName() + ", you are on the leaderboard. You can close this window."
	}
	return c.String(http.StatusOK, msg)
}

// callbackFailure maps err to a status and a fixed page; the detail stays in the log
func callbackFailure(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidState):
		return http.StatusBadRequest, "Authorization failed: this link is invalid or has expired. Start again from /authorize."
	case errors.Is(err, auth.ErrAuthorizationDenied):
		return http.StatusForbidden, "Authorization failed: access was not granted."
	case errors.Is(err, auth.ErrExchangeFailed):
		return http.StatusBadGateway, "Authorization failed: Strava did not accept the authorization. Please try again."
	}
	return http.StatusInternalServerError, "Authorization failed: something went wrong on our side. Please try again."
}

// leaderboard returns the latest snapshot
func (s *Server) leaderboard(c echo.Context) error {
	snap := s.board.Latest()
	if snap == nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "no leaderboard yet"})
	}
	return c.JSON(http.StatusOK, snap)
}

// health reports the scheduler state
func (s *Server) health(c echo.Context) error {
	resp := healthResponse{Status: "ok", State: string(s.board.State())}
	if next := s.board.NextCycle(); !next.IsZero() {
		resp.NextCycle = next.UTC().Format(time.RFC3339)
	}
	if snap := s.board.Latest(); snap != nil {
		resp.Snapshot = snap.ID
	}
	return c.JSON(http.StatusOK, resp)
}
