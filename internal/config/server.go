package config

import (
	"fmt"
	"strings"
	"time"
)

// Server configures the data server.
type Server struct {
	Listen         string        `yaml:"listen"`
	IssuerDomain   string        `yaml:"issuer_domain"`
	DBPath         string        `yaml:"db_path"`
	CatalogDir     string        `yaml:"catalog_dir"`
	SigningKeyPath string        `yaml:"signing_key_path"`
	TokenLifetime  time.Duration `yaml:"token_lifetime"`
	Keys           []KeySeed     `yaml:"keys"`
	Log            Log           `yaml:"log"`
}

// KeySeed is a key registered for a profile at startup.
type KeySeed struct {
	Profile string `yaml:"profile"`
	Label   string `yaml:"label"`
	Value   string `yaml:"value"`
}

// ParseKeySeed parses "profile:value" or "profile:label:value".
func ParseKeySeed(s string) (KeySeed, error) {
	parts := strings.SplitN(s, ":", 3)
	switch len(parts) {
	case 2:
		return KeySeed{Profile: parts[0], Label: "seed", Value: parts[1]}.checked()
	case 3:
		return KeySeed{Profile: parts[0], Label: parts[1], Value: parts[2]}.checked()
	default:
		return KeySeed{}, fmt.Errorf("%w: key must be in format 'profile:value'", ErrInvalidConfig)
	}
}

func (k KeySeed) checked() (KeySeed, error) {
	if k.Profile == "" || k.Value == "" {
		return KeySeed{}, fmt.Errorf("%w: key needs a profile and a value", ErrInvalidConfig)
	}
	if k.Label == "" {
		k.Label = "seed"
	}
	return k, nil
}

func DefaultServer() Server {
	return Server{
		Listen:         ":8080",
		IssuerDomain:   "keycheck.local",
		DBPath:         "keycheck.sqlite",
		SigningKeyPath: "credentials/signing_key",
		TokenLifetime:  30 * time.Minute,
		Log:            Log{Level: "info", Format: "text"},
	}
}

// LoadServer reads path (if non-empty) over the defaults and applies the
// environment.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()
	if err := readYAML(path, &cfg); err != nil {
		return cfg, err
	}

	envString("KEYCHECK_LISTEN", &cfg.Listen)
	envString("KEYCHECK_ISSUER_DOMAIN", &cfg.IssuerDomain)
	envString("KEYCHECK_DB_PATH", &cfg.DBPath)
	envString("KEYCHECK_CATALOG_DIR", &cfg.CatalogDir)
	envString("KEYCHECK_SIGNING_KEY", &cfg.SigningKeyPath)
	if err := envDuration("KEYCHECK_TOKEN_LIFETIME", &cfg.TokenLifetime); err != nil {
		return cfg, err
	}
	for _, raw := range envList("KEYCHECK_KEYS") {
		seed, err := ParseKeySeed(raw)
		if err != nil {
			return cfg, fmt.Errorf("KEYCHECK_KEYS: %w", err)
		}
		cfg.Keys = append(cfg.Keys, seed)
	}
	applyLogEnv(&cfg.Log)

	return cfg, nil
}

func (c Server) Validate() error {
	switch {
	case c.Listen == "":
		return fmt.Errorf("%w: listen is required", ErrInvalidConfig)
	case c.IssuerDomain == "":
		return fmt.Errorf("%w: issuer_domain is required", ErrInvalidConfig)
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path is required", ErrInvalidConfig)
	case c.SigningKeyPath == "":
		return fmt.Errorf("%w: signing_key_path is required", ErrInvalidConfig)
	case c.TokenLifetime <= 0:
		return fmt.Errorf("%w: token_lifetime must be positive", ErrInvalidConfig)
	}
	for i, k := range c.Keys {
		if _, err := k.checked(); err != nil {
			return fmt.Errorf("keys[%d]: %w", i, err)
		}
	}
	return c.Log.Validate()
}
