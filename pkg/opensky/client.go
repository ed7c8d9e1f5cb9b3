// Package opensky provides a client for the OpenSky Network REST API.
//
// The client fetches state vectors (timestamped position/kinematics
// snapshots) for all aircraft inside a rectangular bounding box, handles
// OAuth2 client-credentials authentication, and enforces a local request
// rate limit to respect the upstream quota.
//
// API Documentation: https://openskynetwork.github.io/opensky-api/rest.html
package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/acollins/skyboard/pkg/geo"
)

const (
	// DefaultBaseURL is the OpenSky REST API base URL
	DefaultBaseURL = "https://opensky-network.org/api"

	// DefaultAuthURL is the OAuth2 token endpoint for OpenSky credentials
	DefaultAuthURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"

	// DefaultTimeout for API requests
	DefaultTimeout = 10 * time.Second

	// Unit conversions. OpenSky reports metric; the rest of the pipeline
	// works in aviation units.
	metersToFeet        = 3.28084
	metersPerSecToKnots = 1.94384
	metersPerSecToFpm   = 196.85

	// tokenExpiryMargin refreshes the OAuth2 token slightly before the
	// server-reported expiry to avoid racing the deadline.
	tokenExpiryMargin = 30 * time.Second
)

// Config contains configuration for the OpenSky client.
type Config struct {
	// BaseURL is the REST API base URL (default: DefaultBaseURL)
	BaseURL string

	// AuthURL is the OAuth2 token endpoint (default: DefaultAuthURL)
	AuthURL string

	// ClientID and ClientSecret are OpenSky API credentials. Leave both
	// empty for anonymous access (lower rate limits apply).
	ClientID     string
	ClientSecret string

	// Timeout bounds each HTTP request (default: 10 seconds)
	Timeout time.Duration

	// RequestsPerSecond limits outgoing API calls (default: 1)
	RequestsPerSecond float64
}

// Client is an OpenSky Network API client.
type Client struct {
	baseURL    string
	authURL    string
	clientID   string
	secret     string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a new OpenSky API client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		authURL:  cfg.AuthURL,
		clientID: cfg.ClientID,
		secret:   cfg.ClientSecret,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// StatesInBox returns state vectors for all aircraft inside the bounding
// box. Aircraft without a position report are omitted. The caller narrows
// the rectangular result to its circular fence locally.
func (c *Client) StatesInBox(ctx context.Context, box geo.BoundingBox) ([]StateVector, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("lamin", fmt.Sprintf("%.6f", box.MinLatitude))
	params.Set("lomin", fmt.Sprintf("%.6f", box.MinLongitude))
	params.Set("lamax", fmt.Sprintf("%.6f", box.MaxLatitude))
	params.Set("lomax", fmt.Sprintf("%.6f", box.MaxLongitude))

	reqURL := fmt.Sprintf("%s/states/all?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if c.clientID != "" {
		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("authenticate: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch state vectors: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
			Message:    "rate limit exceeded",
		}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var apiResp statesResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("parse API response: %w", err)
	}

	observed := time.Unix(apiResp.Time, 0).UTC()
	if apiResp.Time == 0 {
		observed = time.Now().UTC()
	}

	states := make([]StateVector, 0, len(apiResp.States))
	for _, raw := range apiResp.States {
		sv, ok := parseStateVector(raw, observed)
		if !ok {
			// No position report; useless for geofencing
			continue
		}
		states = append(states, sv)
	}

	return states, nil
}

// accessToken returns a cached OAuth2 access token, fetching a fresh one
// when the cached token is missing or about to expire.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpiryMargin)) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.token = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)

	return c.token, nil
}

// Close cleanly shuts down the client.
// For OpenSky, this is a no-op as there are no persistent connections.
func (c *Client) Close() error {
	return nil
}

// statesResponse represents the JSON response from /states/all.
type statesResponse struct {
	// Time is the Unix timestamp the states were valid for
	Time int64 `json:"time"`

	// States is an array of positional arrays, one per aircraft
	States [][]json.RawMessage `json:"states"`
}
