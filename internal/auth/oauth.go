package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"

	"strava-leaderboard/internal/strava"
)

const (
	// Strava OAuth endpoints
	AuthURL  = "https://www.strava.com/oauth/authorize"
	TokenURL = "https://www.strava.com/oauth/token"
)

// Scopes required for our app (Strava uses comma-separated scopes)
var Scopes = []string{
	"read,activity:read_all",
}

// Config holds the OAuth client credentials
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "http://localhost:5000/authorized"

	// Endpoint overrides, empty means Strava's
	AuthURL  string
	TokenURL string
}

// NewOAuthConfig creates an oauth2.Config from our Config
func NewOAuthConfig(cfg Config) *oauth2.Config {
	authURL, tokenURL := cfg.AuthURL, cfg.TokenURL
	if authURL == "" {
		authURL = AuthURL
	}
	if tokenURL == "" {
		tokenURL = TokenURL
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
			// Strava wants client_id and client_secret in the form body
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: cfg.RedirectURL,
		Scopes:      Scopes,
	}
}

// Grant is the token triple returned by the token endpoint, plus the athlete
// when the provider includes one (code exchange does, refresh does not).
type Grant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64 // unix seconds
	Athlete      strava.Athlete
}

// Provider performs the two token-endpoint grants against Strava
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewProvider creates a Provider. httpClient may be nil.
func NewProvider(cfg Config, httpClient *http.Client) *Provider {
	return &Provider{config: NewOAuthConfig(cfg), httpClient: httpClient}
}

// AuthCodeURL builds the consent page URL carrying state
func (p *Provider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "auto"))
}

// Exchange trades an authorization code for the first token pair.
// A response without access_token is a failure even with a 200 status.
func (p *Provider) Exchange(ctx context.Context, code string) (*Grant, error) {
	token, err := p.config.Exchange(p.withClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}
	return grantFromToken(token), nil
}

// Refresh trades a refresh token for a new token pair. Strava refresh tokens
// are single use, so the returned refresh token replaces the old one.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*Grant, error) {
	src := p.config.TokenSource(p.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	return grantFromToken(token), nil
}

func (p *Provider) withClient(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// grantFromToken prefers Strava's absolute expires_at over the expiry oauth2
// derives from expires_in.
func grantFromToken(token *oauth2.Token) *Grant {
	g := &Grant{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Athlete:      ExtractAthlete(token),
	}
	if at, ok := unixExtra(token.Extra("expires_at")); ok {
		g.ExpiresAt = at
	} else if !token.Expiry.IsZero() {
		g.ExpiresAt = token.Expiry.Unix()
	}
	return g
}

// ExtractAthlete reads the athlete object Strava includes in code exchange responses
func ExtractAthlete(token *oauth2.Token) strava.Athlete {
	var a strava.Athlete
	athlete, ok := token.Extra("athlete").(map[string]interface{})
	if !ok {
		return a
	}
	if id, ok := unixExtra(athlete["id"]); ok {
		a.ID = id
	}
	a.Firstname, _ = athlete["firstname"].(string)
	a.Lastname, _ = athlete["lastname"].(string)
	return a
}

func unixExtra(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
