package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const stateIssuer = "strava-leaderboard"

// StateSigner issues and verifies the OAuth state parameter as a short-lived
// HS256 token carrying a nonce, so callbacks can be matched to the
// authorization that started them without server-side storage.
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner creates a signer; ttl bounds how long a consent link stays usable
func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	return &StateSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a state for nonce
func (s *StateSigner) Issue(nonce string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        nonce,
		Issuer:    stateIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing state: %w", err)
	}
	return signed, nil
}

// Verify checks a state and returns its nonce
func (s *StateSigner) Verify(state string) (string, error) {
	if state == "" {
		return "", fmt.Errorf("%w: missing", ErrInvalidState)
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(state, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if claims.ID == "" {
		return "", fmt.Errorf("%w: %w", ErrInvalidState, errors.New("no nonce"))
	}
	return claims.ID, nil
}
