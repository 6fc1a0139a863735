package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const BaseURL = "https://www.strava.com/api/v3"

// PerPage is the page size used for activity listings (max allowed by Strava)
const PerPage = 100

// ErrNetwork marks transport failures talking to Strava
var ErrNetwork = errors.New("strava unreachable")

// APIError is a non-200 response from the Strava API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// DetailFetchError is returned when a single activity cannot be fetched
type DetailFetchError struct {
	ActivityID int64
	StatusCode int
	Body       string
}

func (e *DetailFetchError) Error() string {
	return fmt.Sprintf("activity %d: HTTP %d: %s", e.ActivityID, e.StatusCode, e.Body)
}

// Client is a Strava API client. It is shared by every athlete; each call
// carries the athlete's access token.
type Client struct {
	baseURL     string
	base        *http.Client
	rateLimiter *RateLimiter
	perPage     int
}

// NewClient creates a Strava client. An empty baseURL means the public API and
// a nil httpClient gets a 30 second timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		base:        httpClient,
		rateLimiter: NewRateLimiter(),
		perPage:     PerPage,
	}
}

// ListActivities fetches one page of activities started after 'after'
func (c *Client) ListActivities(ctx context.Context, accessToken string, after time.Time, page, perPage int) ([]ActivitySummary, error) {
	params := url.Values{}
	if !after.IsZero() {
		params.Set("after", strconv.FormatInt(after.Unix(), 10))
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	resp, err := c.get(ctx, accessToken, "/athlete/activities", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var activities []ActivitySummary
	if err := json.NewDecoder(resp.Body).Decode(&activities); err != nil {
		return nil, fmt.Errorf("decoding activities: %w", err)
	}

	return activities, nil
}

// ActivitiesSince lists activities that started on or after local midnight of
// the cutoff date. Pages are only requested as the returned sequence is
// consumed.
func (c *Client) ActivitiesSince(ctx context.Context, accessToken string, cutoff time.Time) *Activities {
	// Strava's "after" is exclusive; back off one second to include midnight itself.
	after := LocalMidnight(cutoff).Add(-time.Second)
	perPage := c.perPage

	return NewActivities(perPage, func(page int) ([]ActivitySummary, error) {
		return c.ListActivities(ctx, accessToken, after, page, perPage)
	})
}

// ActivityDetail fetches the full record for one activity
func (c *Client) ActivityDetail(ctx context.Context, accessToken string, activityID int64) (*ActivityDetail, error) {
	params := url.Values{}
	params.Set("include_all_efforts", "false")

	path := fmt.Sprintf("/activities/%d", activityID)
	resp, err := c.get(ctx, accessToken, path, params)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, &DetailFetchError{ActivityID: activityID, StatusCode: apiErr.StatusCode, Body: apiErr.Body}
		}
		return nil, err
	}
	defer resp.Body.Close()

	var detail ActivityDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, fmt.Errorf("decoding activity %d: %w", activityID, err)
	}

	return &detail, nil
}

// Athlete fetches the authenticated athlete's profile
func (c *Client) Athlete(ctx context.Context, accessToken string) (*Athlete, error) {
	resp, err := c.get(ctx, accessToken, "/athlete", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var athlete Athlete
	if err := json.NewDecoder(resp.Body).Decode(&athlete); err != nil {
		return nil, fmt.Errorf("decoding athlete: %w", err)
	}
	return &athlete, nil
}

// RateLimitStatus returns the current rate limit status
func (c *Client) RateLimitStatus() (shortRemaining, dailyRemaining int) {
	return c.rateLimiter.Status()
}

func (c *Client) get(ctx context.Context, accessToken, path string, params url.Values) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.authorized(accessToken).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrNetwork, path, err)
	}

	// Update rate limiter from response headers
	c.rateLimiter.UpdateFromHeaders(resp.Header)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return resp, nil
}

// authorized returns an http.Client that sends accessToken as a bearer token
func (c *Client) authorized(accessToken string) *http.Client {
	return &http.Client{
		Timeout: c.base.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   c.base.Transport,
		},
	}
}

// LocalMidnight returns the start of t's calendar day in the local zone
func LocalMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}
