package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// HexDBBaseURL is the public hexdb.io API base URL
	HexDBBaseURL = "https://hexdb.io/api/v1"

	// hexDBTimeout bounds each lookup request
	hexDBTimeout = 5 * time.Second
)

// HexDBClient looks up aircraft metadata in the public hexdb.io registry.
type HexDBClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHexDBClient creates a hexdb.io client.
// baseURL defaults to the public API when empty.
func NewHexDBClient(baseURL string) *HexDBClient {
	if baseURL == "" {
		baseURL = HexDBBaseURL
	}
	return &HexDBClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: hexDBTimeout,
		},
	}
}

// hexDBAircraft represents the hexdb.io aircraft response.
type hexDBAircraft struct {
	ModeS            string `json:"ModeS"`
	Registration     string `json:"Registration"`
	Manufacturer     string `json:"Manufacturer"`
	Type             string `json:"Type"`
	ICAOTypeCode     string `json:"ICAOTypeCode"`
	RegisteredOwners string `json:"RegisteredOwners"`
}

// Lookup fetches metadata for one aircraft.
// Returns ErrNotFound for unknown addresses (HTTP 404 or an empty record).
func (c *HexDBClient) Lookup(ctx context.Context, icao24 string) (Aircraft, error) {
	icao := NormalizeICAO(icao24)
	url := fmt.Sprintf("%s/aircraft/%s", c.baseURL, icao)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Aircraft{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Aircraft{}, fmt.Errorf("fetch aircraft metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Aircraft{}, fmt.Errorf("hexdb %s: %w", icao, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Aircraft{}, &lookupStatusError{statusCode: resp.StatusCode, body: string(body)}
	}

	var rec hexDBAircraft
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return Aircraft{}, fmt.Errorf("parse metadata response: %w", err)
	}

	meta := Aircraft{
		ICAO24:       icao,
		Registration: rec.Registration,
		Manufacturer: rec.Manufacturer,
		Type:         rec.Type,
		Operator:     rec.RegisteredOwners,
		FetchedAt:    time.Now().UTC(),
	}
	if meta.Type == "" {
		meta.Type = rec.ICAOTypeCode
	}

	// Some records exist but carry nothing useful
	if meta.Registration == "" && meta.Manufacturer == "" && meta.Type == "" && meta.Operator == "" {
		return Aircraft{}, fmt.Errorf("hexdb %s: empty record: %w", icao, ErrNotFound)
	}

	return meta, nil
}

// lookupStatusError is a non-200 metadata response.
type lookupStatusError struct {
	statusCode int
	body       string
}

func (e *lookupStatusError) Error() string {
	return fmt.Sprintf("metadata API returned status %d", e.statusCode)
}

// Retryable reports whether the status is transient.
func (e *lookupStatusError) Retryable() bool {
	return e.statusCode >= 500 || e.statusCode == http.StatusTooManyRequests
}
