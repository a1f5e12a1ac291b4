package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears keys for the duration of the test so envconfig falls back
// to its defaults; an empty value would otherwise be taken literally.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestAppConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     slog.Level
	}{
		{"debug", "debug", slog.LevelDebug},
		{"info", "info", slog.LevelInfo},
		{"warn", "warn", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &AppConfig{LogLevel: tt.logLevel}
			assert.Equal(t, tt.want, c.SlogLevel())
		})
	}
}

func TestAppConfig_DirectoryPaths(t *testing.T) {
	c := &AppConfig{DataDir: "/data"}
	assert.Equal(t, "/data/logs", c.LogDir())
	assert.Equal(t, "/data/camshell.db", c.DBPath())
}

func TestLoad(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CAMSHELL_DATA_DIR", "/tmp/test-camshell")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("BASE_URL", "/cam/")
	unsetEnv(t, "APP_ENV", "DEVICE_URL", "DISCOVERY_INTERVAL", "DISCOVERY_ENABLED")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/tmp/test-camshell", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/cam/", cfg.BaseURL)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "http://esp32-cam2:80", cfg.DeviceURL)
	assert.Equal(t, 55*time.Second, cfg.DiscoveryInterval)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Production(t *testing.T) {
	t.Setenv("CAMSHELL_DATA_DIR", "/tmp/test-camshell")
	t.Setenv("APP_ENV", "production")
	unsetEnv(t, "PORT", "BASE_URL", "DISCOVERY_INTERVAL", "DISCOVERY_ENABLED")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestAppConfig_Validate(t *testing.T) {
	valid := func() AppConfig {
		return AppConfig{
			Port:              8080,
			BaseURL:           "/",
			Env:               EnvDevelopment,
			DiscoveryEnabled:  true,
			DiscoveryInterval: time.Minute,
		}
	}

	tests := []struct {
		name      string
		mutate    func(c *AppConfig)
		wantField string
	}{
		{"valid", func(*AppConfig) {}, ""},
		{"port out of range", func(c *AppConfig) { c.Port = 99999 }, "PORT"},
		{"unknown env", func(c *AppConfig) { c.Env = "staging" }, "APP_ENV"},
		{"relative base", func(c *AppConfig) { c.BaseURL = "cam/" }, "BASE_URL"},
		{"zero interval", func(c *AppConfig) { c.DiscoveryInterval = 0 }, "DISCOVERY_INTERVAL"},
		{"zero interval with discovery off", func(c *AppConfig) {
			c.DiscoveryInterval = 0
			c.DiscoveryEnabled = false
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestProxyRules_Default(t *testing.T) {
	c := &AppConfig{DeviceURL: "http://esp32-cam2:80"}

	rules, err := c.ProxyRules()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "/api", rules[0].Prefix)
	assert.Equal(t, "http://esp32-cam2:80", rules[0].Target.String())
	assert.True(t, rules[0].ChangeOrigin)
	assert.True(t, rules[0].WS)
}

func TestProxyRules_MissingFileFallsBack(t *testing.T) {
	c := &AppConfig{
		DeviceURL: "http://cam.local",
		ProxyFile: filepath.Join(t.TempDir(), "absent.yaml"),
	}

	rules, err := c.ProxyRules()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "cam.local", rules[0].Target.Host)
}

func TestProxyRules_EmptyFileFallsBack(t *testing.T) {
	for _, content := range []string{"", "[]\n", "# no rules yet\n"} {
		path := filepath.Join(t.TempDir(), "proxy.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		rules, err := LoadProxyRules(path)
		require.NoError(t, err)
		assert.Nil(t, rules, "%q", content)

		c := &AppConfig{DeviceURL: "http://cam.local", ProxyFile: path}
		rules, err = c.ProxyRules()
		require.NoError(t, err)
		require.Len(t, rules, 1, "%q", content)
		assert.Equal(t, "/api", rules[0].Prefix)
		assert.Equal(t, "cam.local", rules[0].Target.Host)
	}
}

func TestLoadProxyRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxy.yaml")
	content := `
- prefix: /api/v1/cam/stream
  target: http://esp32-cam2:81
  change_origin: true
- prefix: /api
  target: http://esp32-cam2:80
  change_origin: true
  ws: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	rules, err := LoadProxyRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "/api/v1/cam/stream", rules[0].Prefix)
	assert.Equal(t, "esp32-cam2:81", rules[0].Target.Host)
	assert.False(t, rules[0].WS)

	assert.Equal(t, "/api", rules[1].Prefix)
	assert.True(t, rules[1].WS)
}

func TestLoadProxyRules_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "- prefix: [unterminated"},
		{"relative prefix", "- prefix: api\n  target: http://cam"},
		{"missing target", "- prefix: /api"},
		{"unsupported scheme", "- prefix: /api\n  target: ftp://cam"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "proxy.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			_, err := LoadProxyRules(path)
			assert.Error(t, err)
		})
	}
}
