// Package devproxy forwards development traffic under configured path
// prefixes to an external origin, typically the camera's HTTP server.
//
// It is only ever installed in development. Production builds never
// construct a Proxy, so /api paths are not forwarded there.
package devproxy

import (
	"fmt"
	"net/url"
	"strings"
)

// Rule maps a literal path prefix to a target origin.
type Rule struct {
	// Prefix is matched literally against the request path, so "/api" also
	// matches "/apiary".
	Prefix string

	// Target is the absolute origin requests are forwarded to. The incoming
	// path and query are appended unchanged.
	Target *url.URL

	// ChangeOrigin rewrites the outbound Host header and any Origin header to
	// the target origin.
	ChangeOrigin bool

	// WS allows WebSocket (and other protocol) upgrades to be forwarded.
	// Without it, upgrade requests are rejected with 400.
	WS bool
}

// Matches reports whether path falls under the rule's prefix.
func (r Rule) Matches(path string) bool {
	return strings.HasPrefix(path, r.Prefix)
}

// Origin returns the scheme://host form of the target.
func (r Rule) Origin() string {
	return r.Target.Scheme + "://" + r.Target.Host
}

// ParseRule builds a Rule from its textual parts.
func ParseRule(prefix, target string, changeOrigin, ws bool) (Rule, error) {
	if prefix == "" || !strings.HasPrefix(prefix, "/") {
		return Rule{}, &ConfigError{Prefix: prefix, Message: "prefix must start with /"}
	}
	if target == "" {
		return Rule{}, &ConfigError{Prefix: prefix, Message: "target is required"}
	}
	u, err := url.Parse(target)
	if err != nil {
		return Rule{}, &ConfigError{Prefix: prefix, Message: fmt.Sprintf("parsing target: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Rule{}, &ConfigError{Prefix: prefix, Message: fmt.Sprintf("unsupported target scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return Rule{}, &ConfigError{Prefix: prefix, Message: "target has no host"}
	}
	return Rule{Prefix: prefix, Target: u, ChangeOrigin: changeOrigin, WS: ws}, nil
}

// ConfigError is returned when a proxy rule cannot be used.
type ConfigError struct {
	Prefix  string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("proxy rule %q: %s", e.Prefix, e.Message)
}
