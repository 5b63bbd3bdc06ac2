package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
)

// Boundary configures the trusted boundary that holds secrets and user
// attributes.
type Boundary struct {
	Listen   string            `yaml:"listen"`
	Upstream string            `yaml:"upstream"`
	DBPath   string            `yaml:"db_path"`
	SealKey  string            `yaml:"seal_key"`
	User     User              `yaml:"user"`
	Secrets  map[string]string `yaml:"secrets"`
	Log      Log               `yaml:"log"`
}

type User struct {
	DisplayName string `yaml:"display_name"`
	Email       string `yaml:"email"`
}

func DefaultBoundary() Boundary {
	return Boundary{
		Listen:   ":8081",
		Upstream: "http://localhost:8080",
		DBPath:   "boundary.sqlite",
		Log:      Log{Level: "info", Format: "text"},
	}
}

func LoadBoundary(path string) (Boundary, error) {
	cfg := DefaultBoundary()
	if err := readYAML(path, &cfg); err != nil {
		return cfg, err
	}

	envString("KEYCHECK_BOUNDARY_LISTEN", &cfg.Listen)
	envString("KEYCHECK_UPSTREAM", &cfg.Upstream)
	envString("KEYCHECK_BOUNDARY_DB_PATH", &cfg.DBPath)
	envString("KEYCHECK_SEAL_KEY", &cfg.SealKey)
	envString("KEYCHECK_USER_NAME", &cfg.User.DisplayName)
	envString("KEYCHECK_USER_EMAIL", &cfg.User.Email)
	applyLogEnv(&cfg.Log)

	return cfg, nil
}

// SealKeyBytes decodes the base64 secret sealing key.
func (c Boundary) SealKeyBytes() ([32]byte, error) {
	var key [32]byte
	raw, err := base64.StdEncoding.DecodeString(c.SealKey)
	if err != nil {
		return key, fmt.Errorf("%w: seal_key is not base64: %v", ErrInvalidConfig, err)
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("%w: seal_key must be %d bytes, got %d", ErrInvalidConfig, len(key), len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

func (c Boundary) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("%w: listen is required", ErrInvalidConfig)
	}
	if c.DBPath == "" {
		return fmt.Errorf("%w: db_path is required", ErrInvalidConfig)
	}
	upstream, err := url.Parse(c.Upstream)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return fmt.Errorf("%w: upstream must be an absolute URL, got %q", ErrInvalidConfig, c.Upstream)
	}
	if _, err := c.SealKeyBytes(); err != nil {
		return err
	}
	if c.User.Email == "" {
		return fmt.Errorf("%w: user.email is required", ErrInvalidConfig)
	}
	return c.Log.Validate()
}
