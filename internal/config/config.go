// Package config loads SDK configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-driven configuration shared by the CLI and the
// MCP bridge.
type Config struct {
	APIKey  string `env:"WEAVE_API_KEY"`
	WorldID string `env:"WEAVE_WORLD_ID"`
	URL     string `env:"WEAVE_URL" envDefault:"wss://api.weave.dev/ws"`
	Debug   bool   `env:"WEAVE_DEBUG" envDefault:"false"`
}

// Load parses the environment. APIKey is required.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("config: WEAVE_API_KEY is required")
	}
	return cfg, nil
}
