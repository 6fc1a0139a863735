package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"strava-leaderboard/internal/auth"
	"strava-leaderboard/internal/service"
	"strava-leaderboard/internal/strava"
)

type fakeCallbacks struct {
	outcome *auth.Outcome
	err     error
	got     []string
}

func (f *fakeCallbacks) AuthorizationURL() (string, error) {
	return "https://www.strava.com/oauth/authorize?state=s1", nil
}

func (f *fakeCallbacks) Complete(ctx context.Context, state, code, errParam string) (*auth.Outcome, error) {
	f.got = []string{state, code, errParam}
	return f.outcome, f.err
}

type fakeBoard struct {
	latest *service.Snapshot
	next   time.Time
}

func (f *fakeBoard) Latest() *service.Snapshot { return f.latest }
func (f *fakeBoard) State() service.State      { return service.StateSleeping }
func (f *fakeBoard) NextCycle() time.Time      { return f.next }

func serve(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestAuthorizeRedirects(t *testing.T) {
	s := New(&fakeCallbacks{}, &fakeBoard{}, nil)

	rec := serve(t, s, "/authorize")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "https://www.strava.com/oauth/authorize") {
		t.Errorf("Location = %q", loc)
	}
}

func TestAuthorizedCallback(t *testing.T) {
	tests := []struct {
		name       string
		outcome    *auth.Outcome
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "delivered",
			outcome:    &auth.Outcome{Grant: &auth.Grant{}, Delivered: true},
			wantStatus: http.StatusOK,
			wantBody:   "Authorization complete",
		},
		{
			name:       "registered",
			outcome:    &auth.Outcome{Grant: &auth.Grant{Athlete: strava.Athlete{ID: 9, Firstname: "Ann"}}, Registered: true},
			wantStatus: http.StatusOK,
			wantBody:   "Welcome Ann",
		},
		{
			name:       "denied",
			err:        fmt.Errorf("%w: access_denied", auth.ErrAuthorizationDenied),
			wantStatus: http.StatusForbidden,
			wantBody:   "access was not granted",
		},
		{
			name:       "bad state",
			err:        auth.ErrInvalidState,
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid or has expired",
		},
		{
			name:       "exchange",
			err:        fmt.Errorf(`%w: oauth2: "invalid_client" {"client_secret":"s3cr3t-body"}`, auth.ErrExchangeFailed),
			wantStatus: http.StatusBadGateway,
			wantBody:   "Strava did not accept",
		},
		{
			name:       "other",
			err:        errors.New("disk full"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Please try again",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := &fakeCallbacks{outcome: tt.outcome, err: tt.err}
			rec := serve(t, New(cb, &fakeBoard{}, nil), "/authorized?state=st&code=c1&scope=read")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
			if tt.err != nil && strings.Contains(rec.Body.String(), tt.err.Error()) {
				t.Errorf("body = %q leaks the error detail", rec.Body.String())
			}
			if cb.got[0] != "st" || cb.got[1] != "c1" || cb.got[2] != "" {
				t.Errorf("Complete got %v", cb.got)
			}
		})
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	board := &fakeBoard{}
	s := New(&fakeCallbacks{}, board, nil)

	if rec := serve(t, s, "/leaderboard"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before first cycle status = %d, want 503", rec.Code)
	}

	board.latest = &service.Snapshot{ID: "snap-1", Entries: []service.Entry{{Rank: 1, Name: "Ben", Total: 300}}}
	rec := serve(t, s, "/leaderboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got service.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "snap-1" || len(got.Entries) != 1 || got.Entries[0].Name != "Ben" {
		t.Errorf("snapshot = %+v", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	next := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	s := New(&fakeCallbacks{}, &fakeBoard{next: next}, nil)

	rec := serve(t, s, "/health")
	var got healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := healthResponse{Status: "ok", State: "SLEEPING", NextCycle: "2025-06-02T12:00:00Z"}
	if got != want {
		t.Errorf("health = %+v, want %+v", got, want)
	}
}
