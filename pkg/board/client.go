package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// apiKeyHeader authenticates Local API requests
	apiKeyHeader = "X-Vestaboard-Local-Api-Key"

	// messagePath is the Local API message endpoint
	messagePath = "/local-api/message"

	// defaultTimeout bounds each request to the board
	defaultTimeout = 10 * time.Second
)

// Displayer posts a frame to a physical or simulated display.
type Displayer interface {
	Send(ctx context.Context, frame Frame) error
}

// DisplayError reports a failed exchange with the display hardware.
type DisplayError struct {
	// Op is the operation that failed ("send", "read", "clear")
	Op string

	// StatusCode is the HTTP status, when the board answered at all
	StatusCode int

	// Err is the underlying cause, when the request never completed
	Err error
}

func (e *DisplayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("display %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("display %s: unexpected status %d", e.Op, e.StatusCode)
}

func (e *DisplayError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth retrying. Transport
// failures and server-side errors are transient; a 4xx means the request
// itself is wrong (bad key, malformed frame) and retrying cannot help.
func (e *DisplayError) Retryable() bool {
	if e.Err != nil {
		return true
	}
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client talks to a Vestaboard over its Local API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Local API client for the board at baseURL
// (e.g. "http://192.168.1.70:7000").
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// messageBody is the Local API frame payload.
type messageBody struct {
	Characters [Rows][Columns]int `json:"characters"`
}

// Send posts a frame to the display. The Local API answers 201 when the
// board accepts the frame.
func (c *Client) Send(ctx context.Context, frame Frame) error {
	body, err := json.Marshal(messageBody{Characters: frame})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagePath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &DisplayError{Op: "send", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return &DisplayError{Op: "send", StatusCode: resp.StatusCode}
	}
	return nil
}

// Read fetches the frame currently shown on the board.
func (c *Client) Read(ctx context.Context) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+messagePath, nil)
	if err != nil {
		return Frame{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Frame{}, &DisplayError{Op: "read", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Frame{}, &DisplayError{Op: "read", StatusCode: resp.StatusCode}
	}

	var payload struct {
		Message Frame `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Frame{}, fmt.Errorf("parse board state: %w", err)
	}
	return payload.Message, nil
}

// Clear blanks the display.
func (c *Client) Clear(ctx context.Context) error {
	return c.Send(ctx, BlankFrame())
}

// TestConnection verifies the board is reachable and the key is accepted.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.Read(ctx)
	return err
}
