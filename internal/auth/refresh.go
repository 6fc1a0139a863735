package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"strava-leaderboard/internal/observability"
	"strava-leaderboard/internal/store"
)

// Refresher exchanges a refresh token for a new grant
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Grant, error)
}

// Authorizer runs the full consent flow and blocks until it completes
type Authorizer interface {
	Authorize(ctx context.Context) (*Grant, error)
}

// Credentials is where the manager reads the latest record and persists new tokens
type Credentials interface {
	Get(key string) (store.Credential, bool)
	Update(ctx context.Context, key string, c store.Credential) error
}

// Manager keeps each athlete's access token valid.
// Calls for the same athlete are collapsed, so a refresh token is never spent twice.
type Manager struct {
	refresher  Refresher
	authorizer Authorizer
	creds      Credentials
	log        *observability.Logger

	// leeway treats tokens this close to expiry as expired
	leeway time.Duration
	now    func() time.Time

	flights singleflight.Group
}

// NewManager creates a token lifecycle manager
func NewManager(refresher Refresher, authorizer Authorizer, creds Credentials, leeway time.Duration, log *observability.Logger) *Manager {
	if log == nil {
		log = observability.Discard()
	}
	return &Manager{
		refresher:  refresher,
		authorizer: authorizer,
		creds:      creds,
		log:        log,
		leeway:     leeway,
		now:        time.Now,
	}
}

// EnsureValid returns a usable access token for cred, refreshing or running
// the full authorization flow as needed. New tokens are persisted before they
// are returned.
func (m *Manager) EnsureValid(ctx context.Context, cred store.Credential) (string, error) {
	key := cred.Key()
	v, err, _ := m.flights.Do(key, func() (interface{}, error) {
		// The registry copy may be newer than the caller's, e.g. refreshed by
		// a concurrent caller that finished just before this one started.
		if latest, ok := m.creds.Get(key); ok {
			cred = latest
		}
		return m.ensure(ctx, cred)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) ensure(ctx context.Context, cred store.Credential) (string, error) {
	if !cred.HasToken() {
		m.log.Info("authorization_started", map[string]any{"user": cred.Key()})
		return m.authorize(ctx, cred)
	}

	if cred.ValidAt(m.now().Add(m.leeway)) {
		return cred.AccessToken, nil
	}

	m.log.Info("token_refresh", map[string]any{"user": cred.Key(), "expired_at": cred.ExpiresAt})
	grant, err := m.refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return "", err
	}

	updated := cred.WithTokens(grant.AccessToken, grant.RefreshToken, grant.ExpiresAt)
	if err := m.creds.Update(ctx, cred.Key(), updated); err != nil {
		return "", fmt.Errorf("saving refreshed token: %w", err)
	}
	return updated.AccessToken, nil
}

func (m *Manager) authorize(ctx context.Context, cred store.Credential) (string, error) {
	grant, err := m.authorizer.Authorize(ctx)
	if err != nil {
		return "", err
	}

	if cred.ID != 0 && grant.Athlete.ID != 0 && grant.Athlete.ID != cred.ID {
		return "", fmt.Errorf("%w: got %d, want %d", ErrWrongAthlete, grant.Athlete.ID, cred.ID)
	}

	updated := cred.WithTokens(grant.AccessToken, grant.RefreshToken, grant.ExpiresAt)
	if updated.ID == 0 {
		updated.ID = grant.Athlete.ID
	}
	if updated.Name == "" {
		updated.Name = grant.Athlete.FullName()
	}

	if err := m.creds.Update(ctx, cred.Key(), updated); err != nil {
		return "", fmt.Errorf("saving authorized token: %w", err)
	}
	m.log.Info("authorization_completed", map[string]any{"user": updated.Key(), "name": updated.Name})
	return updated.AccessToken, nil
}
