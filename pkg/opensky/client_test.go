package opensky

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/acollins/skyboard/pkg/geo"
)

// testBox is a bounding box around the default fence for request tests.
var testBox = geo.BoundingBox{
	MinLatitude:  51.55,
	MaxLatitude:  51.65,
	MinLongitude: -0.63,
	MaxLongitude: -0.48,
}

func testClient(serverURL string) *Client {
	return NewClient(Config{
		BaseURL:           serverURL,
		Timeout:           2 * time.Second,
		RequestsPerSecond: 1000, // Don't slow the tests down
	})
}

// statesJSON builds a /states/all response body with a single aircraft.
func statesJSON(icao string, lat, lon float64) string {
	return fmt.Sprintf(`{
		"time": 1700000000,
		"states": [
			["%s", "BAW123  ", "United Kingdom", 1700000000, 1700000000,
			 %f, %f, 3048.0, false, 128.6, 207.5, -2.54, null, 3100.0, "7000", false, 0]
		]
	}`, icao, lon, lat)
}

// TestStatesInBox tests fetching and parsing state vectors.
func TestStatesInBox(t *testing.T) {
	t.Run("Parses state vectors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, statesJSON("4ca1fc", 51.6, -0.55))
		}))
		defer server.Close()

		states, err := testClient(server.URL).StatesInBox(context.Background(), testBox)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(states) != 1 {
			t.Fatalf("Expected 1 state vector, got %d", len(states))
		}

		sv := states[0]
		if sv.ICAO24 != "4ca1fc" {
			t.Errorf("Expected ICAO24 4ca1fc, got %q", sv.ICAO24)
		}
		if sv.Callsign != "BAW123" {
			t.Errorf("Expected trimmed callsign BAW123, got %q", sv.Callsign)
		}
		if sv.OriginCountry != "United Kingdom" {
			t.Errorf("Expected origin country, got %q", sv.OriginCountry)
		}
		if sv.Position.Latitude != 51.6 || sv.Position.Longitude != -0.55 {
			t.Errorf("Unexpected position: %+v", sv.Position)
		}
		// 3048 m = 10000 ft
		if sv.AltitudeFt < 9999 || sv.AltitudeFt > 10001 {
			t.Errorf("Expected ~10000 ft, got %f", sv.AltitudeFt)
		}
		// 128.6 m/s = ~250 kt
		if sv.GroundSpeedKt < 249 || sv.GroundSpeedKt > 251 {
			t.Errorf("Expected ~250 kt, got %f", sv.GroundSpeedKt)
		}
		if sv.HeadingDeg != 207.5 {
			t.Errorf("Expected heading 207.5, got %f", sv.HeadingDeg)
		}
		if sv.VerticalRateFpm > -490 || sv.VerticalRateFpm < -510 {
			t.Errorf("Expected ~-500 fpm, got %f", sv.VerticalRateFpm)
		}
		if sv.OnGround {
			t.Error("Expected airborne aircraft")
		}
		if sv.Squawk != "7000" {
			t.Errorf("Expected squawk 7000, got %q", sv.Squawk)
		}
		if sv.ObservedAt.Unix() != 1700000000 {
			t.Errorf("Unexpected observation time: %v", sv.ObservedAt)
		}
	})

	t.Run("Sends bounding box parameters", func(t *testing.T) {
		var query map[string][]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.Query()
			fmt.Fprint(w, `{"time": 0, "states": []}`)
		}))
		defer server.Close()

		if _, err := testClient(server.URL).StatesInBox(context.Background(), testBox); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		for _, param := range []string{"lamin", "lamax", "lomin", "lomax"} {
			if len(query[param]) == 0 {
				t.Errorf("Expected %s query parameter", param)
			}
		}
	})

	t.Run("Skips aircraft without position", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{
				"time": 1700000000,
				"states": [
					["abc123", "NOPOS", "Unknown", null, null, null, null,
					 null, false, null, null, null, null, null, null, false, 0]
				]
			}`)
		}))
		defer server.Close()

		states, err := testClient(server.URL).StatesInBox(context.Background(), testBox)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(states) != 0 {
			t.Errorf("Expected positionless aircraft to be skipped, got %d", len(states))
		}
	})

	t.Run("Null states array", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"time": 1700000000, "states": null}`)
		}))
		defer server.Close()

		states, err := testClient(server.URL).StatesInBox(context.Background(), testBox)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(states) != 0 {
			t.Errorf("Expected empty result, got %d", len(states))
		}
	})

	t.Run("Rate limit returns RateLimitError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := testClient(server.URL).StatesInBox(context.Background(), testBox)
		var rle *RateLimitError
		if !errors.As(err, &rle) {
			t.Fatalf("Expected RateLimitError, got: %v", err)
		}
		if rle.RetryAfter != 30*time.Second {
			t.Errorf("Expected Retry-After 30s, got %v", rle.RetryAfter)
		}
		if !rle.Retryable() {
			t.Error("Expected rate limit error to be retryable")
		}
	})

	t.Run("Server error is retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := testClient(server.URL).StatesInBox(context.Background(), testBox)
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("Expected StatusError, got: %v", err)
		}
		if !se.Retryable() {
			t.Error("Expected 502 to be retryable")
		}
	})

	t.Run("Client error is not retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		_, err := testClient(server.URL).StatesInBox(context.Background(), testBox)
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("Expected StatusError, got: %v", err)
		}
		if se.Retryable() {
			t.Error("Expected 400 to be non-retryable")
		}
	})
}

// TestAccessToken tests the OAuth2 client-credentials flow.
func TestAccessToken(t *testing.T) {
	t.Run("Token fetched and cached", func(t *testing.T) {
		tokenCalls := 0
		mux := http.NewServeMux()
		mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
			tokenCalls++
			if r.Method != http.MethodPost {
				t.Errorf("Expected POST token request, got %s", r.Method)
			}
			if err := r.ParseForm(); err != nil {
				t.Fatalf("Failed to parse form: %v", err)
			}
			if r.PostForm.Get("grant_type") != "client_credentials" {
				t.Errorf("Expected client_credentials grant, got %q", r.PostForm.Get("grant_type"))
			}
			fmt.Fprint(w, `{"access_token": "test-token", "expires_in": 1800}`)
		})
		mux.HandleFunc("/states/all", func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
				t.Errorf("Expected bearer token header, got %q", got)
			}
			fmt.Fprint(w, `{"time": 0, "states": []}`)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		client := NewClient(Config{
			BaseURL:           server.URL,
			AuthURL:           server.URL + "/token",
			ClientID:          "id",
			ClientSecret:      "secret",
			RequestsPerSecond: 1000,
		})

		for i := 0; i < 3; i++ {
			if _, err := client.StatesInBox(context.Background(), testBox); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		}
		if tokenCalls != 1 {
			t.Errorf("Expected 1 token fetch for 3 requests, got %d", tokenCalls)
		}
	})

	t.Run("Token failure surfaces", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		client := NewClient(Config{
			BaseURL:           server.URL,
			AuthURL:           server.URL + "/token",
			ClientID:          "id",
			ClientSecret:      "bad",
			RequestsPerSecond: 1000,
		})

		_, err := client.StatesInBox(context.Background(), testBox)
		if err == nil {
			t.Fatal("Expected authentication error")
		}
	})
}
