package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all client configuration.
type Config struct {
	Gateway  GatewayConfig
	State    StateConfig
	Terminal TerminalConfig
	Window   WindowConfig
	Logging  LogConfig
}

// GatewayConfig holds the session gateway endpoints.
type GatewayConfig struct {
	BaseURL string        `envconfig:"TERMDOCK_GATEWAY_URL" default:"http://127.0.0.1:7700"`
	Timeout time.Duration `envconfig:"TERMDOCK_GATEWAY_TIMEOUT" default:"10s"`
}

// StateConfig holds persisted client state configuration.
type StateConfig struct {
	Path string `envconfig:"TERMDOCK_STATE_PATH" default:""`
}

// TerminalConfig holds emulator defaults.
type TerminalConfig struct {
	Cols int `envconfig:"TERMDOCK_COLS" default:"80"`
	Rows int `envconfig:"TERMDOCK_ROWS" default:"24"`
}

// WindowConfig holds floating-window behavior.
type WindowConfig struct {
	MinWidth         int           `envconfig:"TERMDOCK_WIN_MIN_WIDTH" default:"320"`
	MinHeight        int           `envconfig:"TERMDOCK_WIN_MIN_HEIGHT" default:"200"`
	GridSnap         int           `envconfig:"TERMDOCK_WIN_GRID_SNAP" default:"0"`
	CellWidth        int           `envconfig:"TERMDOCK_CELL_WIDTH" default:"8"`
	CellHeight       int           `envconfig:"TERMDOCK_CELL_HEIGHT" default:"17"`
	AnimationTimeout time.Duration `envconfig:"TERMDOCK_ANIM_TIMEOUT" default:"1s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"TERMDOCK_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"TERMDOCK_LOG_DEV" default:"false"`
}

// ServerConfig holds dev PTY server configuration.
type ServerConfig struct {
	Host     string `envconfig:"TERMDOCKD_HOST" default:"127.0.0.1"`
	Port     string `envconfig:"TERMDOCKD_PORT" default:"7700"`
	SaveDir  string `envconfig:"TERMDOCKD_SAVE_DIR" default:""`
	Profiles string `envconfig:"TERMDOCKD_PROFILES" default:""` // optional YAML profile table

	RateLimit RateLimitConfig
	Logging   LogConfig
}

// RateLimitConfig holds per-IP rate limiting for the dev server.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"TERMDOCKD_RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"TERMDOCKD_RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"TERMDOCKD_RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads client configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default client configuration.
func Default() *Config {
	return &Config{
		Gateway:  GatewayConfig{BaseURL: "http://127.0.0.1:7700", Timeout: 10 * time.Second},
		Terminal: TerminalConfig{Cols: 80, Rows: 24},
		Window: WindowConfig{
			MinWidth:         320,
			MinHeight:        200,
			CellWidth:        8,
			CellHeight:       17,
			AnimationTimeout: time.Second,
		},
		Logging: LogConfig{Level: "info"},
	}
}

// LoadServer loads dev server configuration from environment variables.
func LoadServer() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	return &cfg, nil
}
