package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Application environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// AppConfig holds all application-level configuration loaded from environment variables.
type AppConfig struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `envconfig:"PORT" default:"8080"`

	// BaseURL prefixes every application route, for deployments under a
	// non-root path. Defaults to "/".
	BaseURL string `envconfig:"BASE_URL" default:"/"`

	// Env selects development or production behaviour. The dev proxy is only
	// ever installed in development.
	Env string `envconfig:"APP_ENV" default:"development"`

	// DeviceURL is the camera origin the default /api proxy rule targets.
	DeviceURL string `envconfig:"DEVICE_URL" default:"http://esp32-cam2:80"`

	// ProxyFile optionally points at a YAML list of proxy rules. When empty or
	// missing, a single /api rule targeting DeviceURL is used.
	ProxyFile string `envconfig:"DEV_PROXY_FILE"`

	// DataDir is the root data directory. Defaults to ~/.camshell.
	DataDir string `envconfig:"CAMSHELL_DATA_DIR"`

	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// DiscoveryEnabled toggles the periodic mDNS browse for cameras.
	DiscoveryEnabled bool `envconfig:"DISCOVERY_ENABLED" default:"true"`

	// DiscoveryInterval is the delay between mDNS browses. The firmware
	// re-queries every 55 seconds, so we do the same.
	DiscoveryInterval time.Duration `envconfig:"DISCOVERY_INTERVAL" default:"55s"`
}

// Load reads AppConfig from environment variables using envconfig.
// DataDir defaults to ~/.camshell if not set.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".camshell")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports the first invalid field.
func (c *AppConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return &ValidationError{Field: "PORT", Message: fmt.Sprintf("invalid port %d", c.Port)}
	}
	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		return &ValidationError{Field: "APP_ENV", Message: fmt.Sprintf("unknown environment %q", c.Env)}
	}
	if !strings.HasPrefix(c.BaseURL, "/") {
		return &ValidationError{Field: "BASE_URL", Message: "must start with /"}
	}
	if c.DiscoveryEnabled && c.DiscoveryInterval <= 0 {
		return &ValidationError{Field: "DISCOVERY_INTERVAL", Message: "must be positive"}
	}
	return nil
}

// IsProduction reports whether the shell runs as a production build.
func (c *AppConfig) IsProduction() bool {
	return c.Env == EnvProduction
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogDir returns the path to the log directory (~/.camshell/logs).
func (c *AppConfig) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// DBPath returns the path to the SQLite database holding discovered devices.
func (c *AppConfig) DBPath() string {
	return filepath.Join(c.DataDir, "camshell.db")
}

// ValidationError is returned when a configuration value is unusable.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid config %s: %s", e.Field, e.Message)
	}
	return e.Message
}
