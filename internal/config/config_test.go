// ABOUTME: Tests for configuration loading and validation
// ABOUTME: Verifies YAML parsing, env var expansion, required fields, logging setup

package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parley.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validConfig = `
server:
  http_addr: ":8080"
database:
  path: "/tmp/parley.db"
auth:
  jwt_secret: "secret"
logging:
  level: debug
  format: json
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/parley.db", cfg.Database.Path)
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("PARLEY_TEST_SECRET", "from-env")

	cfg, err := Load(writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/parley.db"
auth:
  jwt_secret: "${PARLEY_TEST_SECRET}"
`))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestLoad_UnsetEnvVarFailsValidation(t *testing.T) {
	_, err := Load(writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/parley.db"
auth:
  jwt_secret: "${PARLEY_DEFINITELY_UNSET_VAR}"
`))
	assert.ErrorContains(t, err, "jwt_secret")
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing http_addr", func(c *Config) { c.Server.HTTPAddr = "" }, "http_addr"},
		{"missing db path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }, "jwt_secret"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server:   ServerConfig{HTTPAddr: ":8080"},
				Database: DatabaseConfig{Path: "/tmp/db"},
				Auth:     AuthConfig{JWTSecret: "s"},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn"}, &buf)

	logger.Info("hidden")
	logger.Warn("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Format: "json"}, &buf)

	logger.Info("hello", slog.String("key", "value"))
	assert.Contains(t, buf.String(), `"key":"value"`)
}
