package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Config is the console's runtime configuration, read from the environment.
type Config struct {
	// Addr is the console's own listen address.
	Addr string
	// GatewayURL is the registry gateway the console talks to.
	GatewayURL string
	// StateFile persists the operator session across restarts.
	StateFile string
	// PollInterval is the notification polling cadence.
	PollInterval time.Duration
	// HTTPTimeout bounds each gateway exchange.
	HTTPTimeout time.Duration
}

// Env abstracts environment lookup so tests can inject values.
type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return LoadFromEnv(osEnv{})
}

// LoadFromEnv reads the configuration from env, applying defaults and
// validating the result.
func LoadFromEnv(env Env) (Config, error) {
	cfg := Config{
		Addr:         ":8089",
		PollInterval: 30 * time.Second,
		HTTPTimeout:  20 * time.Second,
	}

	if raw := env.Getenv("CONSOLE_ADDR"); raw != "" {
		cfg.Addr = raw
	}

	cfg.GatewayURL = env.Getenv("CONSOLE_GATEWAY_URL")
	if cfg.GatewayURL == "" {
		return Config{}, fmt.Errorf("CONSOLE_GATEWAY_URL is required")
	}
	if u, err := url.Parse(cfg.GatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
		return Config{}, fmt.Errorf("invalid CONSOLE_GATEWAY_URL %q", cfg.GatewayURL)
	}

	cfg.StateFile = env.Getenv("CONSOLE_STATE_FILE")
	if cfg.StateFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("CONSOLE_STATE_FILE is required when no user config dir exists: %w", err)
		}
		cfg.StateFile = filepath.Join(dir, "registry-console", "session.json")
	}

	if raw := env.Getenv("CONSOLE_POLL_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid CONSOLE_POLL_INTERVAL %q", raw)
		}
		cfg.PollInterval = d
	}

	if raw := env.Getenv("CONSOLE_HTTP_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid CONSOLE_HTTP_TIMEOUT %q", raw)
		}
		cfg.HTTPTimeout = d
	}

	return cfg, nil
}
