package store

import (
	"strconv"
	"time"
)

// Credential holds the OAuth token state for one registered athlete.
// The JSON layout matches the users.json file the leaderboard has always used.
type Credential struct {
	ID           int64  `json:"id,omitempty" db:"id"` // Strava athlete id, 0 until first authorization
	Name         string `json:"name,omitempty" db:"name"`
	AccessToken  string `json:"access_token,omitempty" db:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty" db:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at,omitempty" db:"expires_at"` // unix seconds, UTC
}

// Key identifies a credential inside a registry. Records that have never been
// authorized have no athlete id yet and are keyed by display name instead.
func (c Credential) Key() string {
	if c.ID != 0 {
		return "id:" + strconv.FormatInt(c.ID, 10)
	}
	return "name:" + c.Name
}

// HasToken reports whether an access token has ever been recorded.
func (c Credential) HasToken() bool {
	return c.AccessToken != ""
}

// Expiry returns the access token expiry as a time.
func (c Credential) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

// ValidAt reports whether the access token can still be used at t.
// A token whose expiry is at or before t is never valid.
func (c Credential) ValidAt(t time.Time) bool {
	return c.HasToken() && c.ExpiresAt > t.Unix()
}

// WithTokens returns a copy of c with the whole token triple replaced.
func (c Credential) WithTokens(accessToken, refreshToken string, expiresAt int64) Credential {
	c.AccessToken = accessToken
	c.RefreshToken = refreshToken
	c.ExpiresAt = expiresAt
	return c
}

// DisplayName returns the name shown on the leaderboard.
func (c Credential) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.ID != 0 {
		return "athlete " + strconv.FormatInt(c.ID, 10)
	}
	return "unknown athlete"
}
