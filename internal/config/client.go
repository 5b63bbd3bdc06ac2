package config

import (
	"fmt"
	"net/url"
	"time"
)

// Client configures the keycheck CLI.
type Client struct {
	Boundary string        `yaml:"boundary"`
	Profile  string        `yaml:"profile"`
	Timeout  time.Duration `yaml:"timeout"`
	Log      Log           `yaml:"log"`
}

func DefaultClient() Client {
	return Client{
		Boundary: "http://localhost:8081",
		Profile:  "access_key",
		Timeout:  10 * time.Second,
		Log:      Log{Level: "warn", Format: "text"},
	}
}

func LoadClient(path string) (Client, error) {
	cfg := DefaultClient()
	if err := readYAML(path, &cfg); err != nil {
		return cfg, err
	}

	envString("KEYCHECK_BOUNDARY", &cfg.Boundary)
	envString("KEYCHECK_PROFILE", &cfg.Profile)
	if err := envDuration("KEYCHECK_TIMEOUT", &cfg.Timeout); err != nil {
		return cfg, err
	}
	applyLogEnv(&cfg.Log)

	return cfg, nil
}

func (c Client) Validate() error {
	boundary, err := url.Parse(c.Boundary)
	if err != nil || boundary.Scheme == "" || boundary.Host == "" {
		return fmt.Errorf("%w: boundary must be an absolute URL, got %q", ErrInvalidConfig, c.Boundary)
	}
	if c.Profile == "" {
		return fmt.Errorf("%w: profile is required", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	return c.Log.Validate()
}
