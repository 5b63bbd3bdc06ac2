// Package secretref turns named secrets into opaque placeholders.
//
// A placeholder is the only form in which a secret travels through the
// client. The trusted boundary that owns the secret substitutes the real
// value for the placeholder (see Expand) before a request leaves it, so the
// client never handles plaintext.
package secretref

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Placeholder stands in for a server-held secret and is safe to transmit.
type Placeholder string

// Resolver produces the placeholder for a named secret. It is synchronous
// and always succeeds.
type Resolver interface {
	Reference(secretName string) Placeholder
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(secretName string) Placeholder

func (f ResolverFunc) Reference(secretName string) Placeholder { return f(secretName) }

var (
	tagPattern  = regexp.MustCompile(`\{\{secret:([a-z0-9_]+)\}\}`)
	namePattern = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// ValidName reports whether name can appear in a placeholder.
func ValidName(name string) bool { return namePattern.MatchString(name) }

// Tag formats the placeholder for secretName.
func Tag(secretName string) Placeholder {
	return Placeholder(fmt.Sprintf("{{secret:%s}}", secretName))
}

// TagResolver is the Resolver understood by Expand.
type TagResolver struct{}

func (TagResolver) Reference(secretName string) Placeholder { return Tag(secretName) }

// Expand replaces every placeholder in body with the value returned by
// lookup. Placeholders with no stored value expand to the empty string and
// their names are returned in missing.
func Expand(
	body []byte,
	lookup func(secretName string) (string, bool),
) (
	expanded []byte,
	missing []string,
) {
	expanded = tagPattern.ReplaceAllFunc(body, func(match []byte) []byte {
		name := string(tagPattern.FindSubmatch(match)[1])
		value, ok := lookup(name)
		if !ok {
			missing = append(missing, name)
			return nil
		}
		return jsonEscape(value)
	})
	return expanded, missing
}

// Names returns the secret names referenced in body, in order of appearance.
func Names(body []byte) []string {
	var names []string
	for _, m := range tagPattern.FindAllSubmatch(body, -1) {
		names = append(names, string(m[1]))
	}
	return names
}

// jsonEscape encodes value as the inside of a JSON string.
func jsonEscape(value string) []byte {
	encoded, _ := json.Marshal(value)
	return encoded[1 : len(encoded)-1]
}
