// Package config loads layered configuration for the skyboard daemon:
// struct defaults, then an optional YAML file, then SKYBOARD_* environment
// variables, highest last.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first hit wins.
var DefaultConfigPaths = []string{
	"skyboard.yaml",
	"skyboard.yml",
	"/etc/skyboard/config.yaml",
	"/etc/skyboard/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "SKYBOARD_CONFIG"

// Config is the full daemon configuration.
type Config struct {
	Fence    FenceConfig    `koanf:"fence"`
	OpenSky  OpenSkyConfig  `koanf:"opensky"`
	Metadata MetadataConfig `koanf:"metadata"`
	Board    BoardConfig    `koanf:"board"`
	Detector DetectorConfig `koanf:"detector"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
}

// FenceConfig defines the watch area.
type FenceConfig struct {
	// Latitude of the fence center in decimal degrees
	Latitude float64 `koanf:"latitude" validate:"gte=-90,lte=90"`

	// Longitude of the fence center in decimal degrees
	Longitude float64 `koanf:"longitude" validate:"gte=-180,lte=180"`

	// RadiusKm is the fence radius in kilometers
	RadiusKm float64 `koanf:"radius_km" validate:"gt=0"`
}

// OpenSkyConfig configures the position source.
type OpenSkyConfig struct {
	// BaseURL of the OpenSky REST API; empty uses the public endpoint
	BaseURL string `koanf:"base_url"`

	// AuthURL of the OAuth2 token endpoint; empty uses the public endpoint
	AuthURL string `koanf:"auth_url"`

	// ClientID for OAuth2 client-credentials auth; empty runs anonymous
	ClientID string `koanf:"client_id"`

	// ClientSecret for OAuth2 client-credentials auth
	ClientSecret string `koanf:"client_secret"`

	// Timeout bounds each API request
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// RequestsPerSecond throttles outbound API calls
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gt=0"`
}

// MetadataConfig configures registry lookups and caching.
type MetadataConfig struct {
	// HexDBURL of the hexdb.io API; empty uses the public endpoint
	HexDBURL string `koanf:"hexdb_url"`

	// CacheTTL is how long a registry record stays cached
	CacheTTL time.Duration `koanf:"cache_ttl" validate:"gt=0"`
}

// BoardConfig configures the split-flap display.
type BoardConfig struct {
	// Enabled turns display notifications on
	Enabled bool `koanf:"enabled"`

	// BaseURL of the board's Local API (e.g. "http://192.168.1.70:7000")
	BaseURL string `koanf:"base_url"`

	// APIKey is the Local API key
	APIKey string `koanf:"api_key"`

	// ClearOnStart blanks the board when the daemon starts
	ClearOnStart bool `koanf:"clear_on_start"`
}

// DetectorConfig configures the watch loop.
type DetectorConfig struct {
	// Interval is the pause between polling ticks
	Interval time.Duration `koanf:"interval" validate:"gt=0"`

	// MaxAttempts is the total number of tries per poll or lookup
	MaxAttempts int `koanf:"max_attempts" validate:"gte=1"`

	// RetryDelay is the pause between attempts
	RetryDelay time.Duration `koanf:"retry_delay" validate:"gt=0"`

	// SummaryEvery is how many ticks between logged stats summaries
	SummaryEvery int `koanf:"summary_every" validate:"gte=1"`

	// RearmAfter lets an aircraft notify again after this long out of
	// the fence; zero keeps at-most-once per session
	RearmAfter time.Duration `koanf:"rearm_after" validate:"gte=0"`
}

// ServerConfig configures the status HTTP API.
type ServerConfig struct {
	// Enabled turns the status API on
	Enabled bool `koanf:"enabled"`

	// Listen is the address to bind (e.g. ":8039")
	Listen string `koanf:"listen"`
}

// DatabaseConfig configures the optional local aircraft registry.
type DatabaseConfig struct {
	// Enabled turns the Postgres registry source on
	Enabled bool `koanf:"enabled"`

	// DSN is the Postgres connection string
	DSN string `koanf:"dsn"`

	// Retention is how long detection history is kept; zero disables
	// cleanup
	Retention time.Duration `koanf:"retention" validate:"gte=0"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is the minimum level: trace, debug, info, warn, error
	Level string `koanf:"level" validate:"oneof=trace debug info warn error"`

	// Format is json or console
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Default returns the built-in configuration: a 5 km fence west of
// London, one-second polling, three attempts with a five-second pause,
// and a day-long metadata cache.
func Default() *Config {
	return &Config{
		Fence: FenceConfig{
			Latitude:  51.5995,
			Longitude: -0.5545,
			RadiusKm:  5,
		},
		OpenSky: OpenSkyConfig{
			Timeout:           10 * time.Second,
			RequestsPerSecond: 1,
		},
		Metadata: MetadataConfig{
			CacheTTL: 24 * time.Hour,
		},
		Board: BoardConfig{
			Enabled:      false,
			ClearOnStart: false,
		},
		Detector: DetectorConfig{
			Interval:     time.Second,
			MaxAttempts:  3,
			RetryDelay:   5 * time.Second,
			SummaryEvery: 100,
			RearmAfter:   0,
		},
		Server: ServerConfig{
			Enabled: true,
			Listen:  ":8039",
		},
		Database: DatabaseConfig{
			Enabled:   false,
			Retention: 30 * 24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// envKeys maps SKYBOARD_* environment variables to config paths.
// Explicit because key names contain underscores that a naive transform
// would split at the wrong places.
var envKeys = map[string]string{
	"SKYBOARD_FENCE_LATITUDE":         "fence.latitude",
	"SKYBOARD_FENCE_LONGITUDE":        "fence.longitude",
	"SKYBOARD_FENCE_RADIUS_KM":        "fence.radius_km",
	"SKYBOARD_OPENSKY_BASE_URL":       "opensky.base_url",
	"SKYBOARD_OPENSKY_AUTH_URL":       "opensky.auth_url",
	"SKYBOARD_OPENSKY_CLIENT_ID":      "opensky.client_id",
	"SKYBOARD_OPENSKY_CLIENT_SECRET":  "opensky.client_secret",
	"SKYBOARD_OPENSKY_TIMEOUT":        "opensky.timeout",
	"SKYBOARD_OPENSKY_RPS":            "opensky.requests_per_second",
	"SKYBOARD_METADATA_HEXDB_URL":     "metadata.hexdb_url",
	"SKYBOARD_METADATA_CACHE_TTL":     "metadata.cache_ttl",
	"SKYBOARD_BOARD_ENABLED":          "board.enabled",
	"SKYBOARD_BOARD_BASE_URL":         "board.base_url",
	"SKYBOARD_BOARD_API_KEY":          "board.api_key",
	"SKYBOARD_BOARD_CLEAR_ON_START":   "board.clear_on_start",
	"SKYBOARD_DETECTOR_INTERVAL":      "detector.interval",
	"SKYBOARD_DETECTOR_MAX_ATTEMPTS":  "detector.max_attempts",
	"SKYBOARD_DETECTOR_RETRY_DELAY":   "detector.retry_delay",
	"SKYBOARD_DETECTOR_SUMMARY_EVERY": "detector.summary_every",
	"SKYBOARD_DETECTOR_REARM_AFTER":   "detector.rearm_after",
	"SKYBOARD_SERVER_ENABLED":         "server.enabled",
	"SKYBOARD_SERVER_LISTEN":          "server.listen",
	"SKYBOARD_DATABASE_ENABLED":       "database.enabled",
	"SKYBOARD_DATABASE_DSN":           "database.dsn",
	"SKYBOARD_DATABASE_RETENTION":     "database.retention",
	"SKYBOARD_LOG_LEVEL":              "log.level",
	"SKYBOARD_LOG_FORMAT":             "log.format",
}

// Load builds the configuration from defaults, an optional YAML file,
// and environment variables, then validates it.
func Load() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile builds the configuration using the given YAML file.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("SKYBOARD_", ".", func(s string) string {
		return envKeys[s]
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns the config file to use, or empty when running
// on defaults alone.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Board.Enabled {
		if c.Board.BaseURL == "" {
			return errors.New("invalid configuration: board.base_url is required when the board is enabled")
		}
		if c.Board.APIKey == "" {
			return errors.New("invalid configuration: board.api_key is required when the board is enabled")
		}
	}
	if c.Server.Enabled && c.Server.Listen == "" {
		return errors.New("invalid configuration: server.listen is required when the server is enabled")
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return errors.New("invalid configuration: database.dsn is required when the database is enabled")
	}
	return nil
}
