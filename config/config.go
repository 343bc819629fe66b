// Package config holds the runtime configuration for slackgammon.
//
// Settings are resolved in increasing precedence: built-in defaults, an
// optional YAML config file, then SLACKGAMMON_* environment variables.
// Command-line flags are applied on top by the caller.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Built-in defaults, overridable by file, env, and flags.
const (
	DefaultHost            = "localhost"
	DefaultPort            = 80
	DefaultMaxGames        = 1
	DefaultGnubgPath       = "/usr/local/bin/gnubg"
	DefaultResponseTimeout = 100 * time.Millisecond
	DefaultTerminateGrace  = 2 * time.Second
)

// Duration wraps time.Duration so values like "100ms" parse from both
// YAML and environment variables.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler (used by env parsing).
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// Config holds the application configuration.
type Config struct {
	Host       string `yaml:"host" env:"SLACKGAMMON_HOST"`
	Port       int    `yaml:"port" env:"SLACKGAMMON_PORT"`
	SlashToken string `yaml:"slash_token" env:"SLACKGAMMON_SLASH_TOKEN"` // Slack token for the associated slash command
	WebhookURL string `yaml:"webhook_url" env:"SLACKGAMMON_WEBHOOK_URL"` // Slack incoming webhook URL
	MaxGames   int    `yaml:"max_games" env:"SLACKGAMMON_MAX_GAMES"`     // Max gnubg instances running to handle games
	GnubgPath  string `yaml:"gnubg_path" env:"SLACKGAMMON_GNUBG_PATH"`

	// ResponseTimeout is the idle period after which an engine response is
	// considered complete. TerminateGrace bounds the wait for natural exit
	// before an engine process is force-killed.
	ResponseTimeout Duration `yaml:"response_timeout" env:"SLACKGAMMON_RESPONSE_TIMEOUT"`
	TerminateGrace  Duration `yaml:"terminate_grace" env:"SLACKGAMMON_TERMINATE_GRACE"`
}

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		MaxGames:        DefaultMaxGames,
		GnubgPath:       DefaultGnubgPath,
		ResponseTimeout: Duration(DefaultResponseTimeout),
		TerminateGrace:  Duration(DefaultTerminateGrace),
	}
}

// Load builds the configuration from defaults, the YAML file at path (when
// non-empty), and environment variables. Validation is deferred to
// Validate() so callers can apply flag overrides first.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is complete and coherent.
func (c *Config) Validate() error {
	if c.SlashToken == "" {
		return fmt.Errorf("slash token is required")
	}
	if c.WebhookURL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxGames < 1 {
		return fmt.Errorf("max games must be at least 1, got %d", c.MaxGames)
	}
	if c.GnubgPath == "" {
		return fmt.Errorf("gnubg path is required")
	}
	if c.ResponseTimeout <= 0 {
		return fmt.Errorf("response timeout must be positive")
	}
	if c.TerminateGrace <= 0 {
		return fmt.Errorf("terminate grace must be positive")
	}
	return nil
}

// Addr returns the host:port address the HTTP server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
