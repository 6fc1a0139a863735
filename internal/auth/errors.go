package auth

import "errors"

var (
	// ErrAuthorizationDenied is returned when the provider redirects back with an error parameter
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrAuthorizationTimeout is returned when no callback arrives in time
	ErrAuthorizationTimeout = errors.New("authorization timed out")

	// ErrRefreshFailed is returned when the provider rejects a refresh token
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrExchangeFailed is returned when an authorization code cannot be exchanged
	ErrExchangeFailed = errors.New("code exchange failed")

	// ErrInvalidState is returned for callbacks whose state was not issued by us or has expired
	ErrInvalidState = errors.New("invalid oauth state")

	// ErrWrongAthlete is returned when a pending authorization is completed by a different athlete
	ErrWrongAthlete = errors.New("authorized athlete does not match")
)
