package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"git.sr.ht/~jakintosh/keycheck/internal/resources"
	"git.sr.ht/~jakintosh/keycheck/pkg/profile"
)

// CheckDefinition is a profile served by the data server, with the lifetime
// of the tokens it issues. Zero lifetime means the catalog default.
type CheckDefinition struct {
	profile.Profile `yaml:",inline"`
	Lifetime        time.Duration `yaml:"lifetime"`
}

// CheckCatalog holds the built-in profiles plus any YAML definitions found
// in its directory. Definitions in the directory replace built-ins of the
// same name.
type CheckCatalog struct {
	dir             string
	defaultLifetime time.Duration
	log             logrus.FieldLogger

	mu     sync.RWMutex
	byPath map[string]*CheckDefinition
	byName map[string]*CheckDefinition
}

// NewCheckCatalog loads the catalog. An empty dir serves only the built-ins;
// an unreadable dir is an error.
func NewCheckCatalog(
	dir string,
	defaultLifetime time.Duration,
	log logrus.FieldLogger,
) (
	*CheckCatalog,
	error,
) {
	c := &CheckCatalog{
		dir:             dir,
		defaultLifetime: defaultLifetime,
		log:             log.WithField("component", "catalog"),
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the directory. Files that fail to parse are logged and
// skipped; the previous catalog stays in place if the directory itself
// cannot be read.
func (c *CheckCatalog) Reload() error {
	defs := make(map[string]*CheckDefinition)
	for _, p := range profile.Builtins() {
		defs[p.Name] = &CheckDefinition{Profile: p}
	}

	if c.dir != "" {
		files, err := os.ReadDir(c.dir)
		if err != nil {
			return fmt.Errorf("failed to read catalog directory '%s': %w", c.dir, err)
		}
		for _, file := range files {
			name := file.Name()
			if !file.Type().IsRegular() || !isYAML(name) {
				continue
			}
			def, err := loadCheckDefinition(filepath.Join(c.dir, name))
			if err != nil {
				c.log.WithError(err).Warnf("skipping check definition '%s'", name)
				continue
			}
			defs[def.Name] = def
		}
	}

	byPath := make(map[string]*CheckDefinition, len(defs))
	for name, def := range defs {
		if def.Lifetime <= 0 {
			def.Lifetime = c.defaultLifetime
		}
		if other, ok := byPath[def.CheckPath]; ok {
			c.log.Warnf("check path %s claimed by '%s' and '%s'; keeping '%s'",
				def.CheckPath, other.Name, name, min(other.Name, name))
			if other.Name < name {
				continue
			}
		}
		byPath[def.CheckPath] = def
	}

	c.mu.Lock()
	c.byName = defs
	c.byPath = byPath
	c.mu.Unlock()

	c.log.Infof("loaded %d checks", len(defs))
	return nil
}

// Watch reloads the catalog whenever its directory changes.
func (c *CheckCatalog) Watch(debounce time.Duration) (*resources.Watcher, error) {
	if c.dir == "" {
		return nil, fmt.Errorf("%w: catalog has no directory to watch", ErrInvalidCheck)
	}
	return resources.WatchDir(c.dir, debounce, func() {
		if err := c.Reload(); err != nil {
			c.log.WithError(err).Error("catalog reload failed")
		}
	}, c.log)
}

// ByPath returns the definition served at checkPath.
func (c *CheckCatalog) ByPath(checkPath string) (CheckDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if def, ok := c.byPath[checkPath]; ok {
		return *def, nil
	}
	return CheckDefinition{}, fmt.Errorf("%w: %s", ErrCheckNotFound, checkPath)
}

// ByName returns the definition for a profile name.
func (c *CheckCatalog) ByName(name string) (CheckDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if def, ok := c.byName[name]; ok {
		return *def, nil
	}
	return CheckDefinition{}, fmt.Errorf("%w: %s", ErrCheckNotFound, name)
}

// Definitions returns every definition ordered by name.
func (c *CheckCatalog) Definitions() []CheckDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs := make([]CheckDefinition, 0, len(c.byName))
	for _, def := range c.byName {
		defs = append(defs, *def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func loadCheckDefinition(
	path string,
) (
	*CheckDefinition,
	error,
) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load check definition: %w", err)
	}

	def := &CheckDefinition{}
	if err := yaml.Unmarshal(file, def); err != nil {
		return nil, fmt.Errorf("failed to parse yaml of '%s': %w", path, err)
	}
	if def.SecretName == "" {
		def.SecretName = def.Name
	}
	if def.KeyField == "" {
		def.KeyField = def.Name
	}
	if def.Audience == "" {
		def.Audience = def.Name
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCheck, err)
	}
	return def, nil
}
