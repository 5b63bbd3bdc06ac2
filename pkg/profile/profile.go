// Package profile describes the kinds of secret a caller can verify.
//
// A Profile carries every point of variation between an access-key check and a
// license-key check: the name of the stored secret, the verification route on
// the data server, the JSON field the placeholder is sent in, the label used in
// user-facing messages, and the audience of the session token the server
// issues. Everything else about the workflow is shared.
package profile

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	ErrUnknownProfile = errors.New("unknown profile")
	ErrInvalidProfile = errors.New("invalid profile")
)

var namePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Profile parameterizes a verification workflow.
type Profile struct {
	Name       string `yaml:"name" json:"name"`
	SecretName string `yaml:"secret_name" json:"secret_name"`
	CheckPath  string `yaml:"check_path" json:"check_path"`
	KeyField   string `yaml:"key_field" json:"key_field"`
	Label      string `yaml:"label" json:"label"`
	Audience   string `yaml:"audience" json:"audience"`
}

var (
	AccessKey = Profile{
		Name:       "access_key",
		SecretName: "access_key",
		CheckPath:  "/access_check",
		KeyField:   "access_key",
		Label:      "Access key",
		Audience:   "access",
	}
	LicenseKey = Profile{
		Name:       "license_key",
		SecretName: "license_key",
		CheckPath:  "/license_check",
		KeyField:   "license_key",
		Label:      "License key",
		Audience:   "license",
	}
)

var builtins = map[string]Profile{
	AccessKey.Name:  AccessKey,
	LicenseKey.Name: LicenseKey,
}

// Builtins returns the built-in profiles ordered by name.
func Builtins() []Profile {
	out := make([]Profile, 0, len(builtins))
	for _, p := range builtins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the built-in profile with the given name.
func Lookup(name string) (Profile, error) {
	if p, ok := builtins[name]; ok {
		return p, nil
	}
	return Profile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
}

// Validate reports whether every field needed to run a check is present.
func (p Profile) Validate() error {
	switch {
	case !namePattern.MatchString(p.Name):
		return fmt.Errorf("%w: name %q", ErrInvalidProfile, p.Name)
	case !namePattern.MatchString(p.SecretName):
		return fmt.Errorf("%w: secret name %q", ErrInvalidProfile, p.SecretName)
	case !strings.HasPrefix(p.CheckPath, "/") || len(p.CheckPath) < 2:
		return fmt.Errorf("%w: check path %q", ErrInvalidProfile, p.CheckPath)
	case p.KeyField == "" || p.KeyField == "name" || p.KeyField == "email":
		return fmt.Errorf("%w: key field %q", ErrInvalidProfile, p.KeyField)
	case p.Label == "":
		return fmt.Errorf("%w: empty label", ErrInvalidProfile)
	}
	return nil
}

func (p Profile) ValidText() string   { return p.Label + " is valid" }
func (p Profile) InvalidText() string { return p.Label + " is NOT valid" }
