package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sisbarc/camshell/internal/devproxy"
)

// rawProxyRule is the YAML form of a devproxy.Rule.
type rawProxyRule struct {
	Prefix       string `yaml:"prefix"`
	Target       string `yaml:"target"`
	ChangeOrigin bool   `yaml:"change_origin"`
	WS           bool   `yaml:"ws"`
}

// DefaultProxyPrefix is the path prefix forwarded to the camera by default.
const DefaultProxyPrefix = "/api"

// ProxyRules returns the dev proxy rules. When ProxyFile is unset, does not
// exist, or lists no rules, a single rule forwarding /api to DeviceURL with origin rewriting and
// WebSocket upgrades is returned.
func (c *AppConfig) ProxyRules() ([]devproxy.Rule, error) {
	if c.ProxyFile != "" {
		rules, err := LoadProxyRules(c.ProxyFile)
		if err != nil {
			return nil, err
		}
		if len(rules) > 0 {
			return rules, nil
		}
	}

	rule, err := devproxy.ParseRule(DefaultProxyPrefix, c.DeviceURL, true, true)
	if err != nil {
		return nil, fmt.Errorf("default proxy rule: %w", err)
	}
	return []devproxy.Rule{rule}, nil
}

// LoadProxyRules reads an ordered YAML list of proxy rules from filePath.
// A missing file, or one that lists no rules, yields nil rules and no error.
func LoadProxyRules(filePath string) ([]devproxy.Rule, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // path is operator-supplied
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading proxy rules %q: %w", filePath, err)
	}

	var raw []rawProxyRule
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing proxy rules %q: %w", filePath, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	rules := make([]devproxy.Rule, 0, len(raw))
	for i, r := range raw {
		rule, err := devproxy.ParseRule(r.Prefix, r.Target, r.ChangeOrigin, r.WS)
		if err != nil {
			return nil, fmt.Errorf("proxy rule %d in %q: %w", i, filePath, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
