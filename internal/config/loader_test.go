package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o644))
	return dir
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, TransportStreamableHTTP, cfg.Server.Transport)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvHTTPPort, "")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv(EnvHTTPPort, "")
	dir := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9090
  transport: sse
prompt:
  file: /etc/map/catalog.md
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, TransportSSE, cfg.Server.Transport)
	assert.Equal(t, "/etc/map/catalog.md", cfg.Prompt.File)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	t.Setenv(EnvHTTPPort, "")
	dir := writeConfig(t, "server:\n  port: 9000\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, TransportStreamableHTTP, cfg.Server.Transport)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := writeConfig(t, "server: [not a mapping")

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoadEnvPortOverride(t *testing.T) {
	dir := writeConfig(t, "server:\n  port: 9000\n")

	t.Setenv(EnvHTTPPort, "7777")
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port, "environment wins over file")

	t.Setenv(EnvHTTPPort, "not-a-port")
	_, err = Load(dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid default", mutate: func(c *Config) {}},
		{name: "stdio transport", mutate: func(c *Config) { c.Server.Transport = TransportStdio }},
		{
			name:    "unknown transport",
			mutate:  func(c *Config) { c.Server.Transport = "carrier-pigeon" },
			wantErr: "invalid transport",
		},
		{
			name:    "port too low",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid port",
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}
