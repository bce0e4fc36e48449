package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/boettiger-lab/mcp-map-server/pkg/logging"
)

const (
	userConfigDir  = ".config/mcp-map-server"
	configFileName = "config.yaml"

	// EnvHTTPPort overrides the configured HTTP port, matching the
	// deployment convention the server has always used.
	EnvHTTPPort = "HTTP_PORT"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:      "localhost",
			Port:      8081,
			Transport: TransportStreamableHTTP,
		},
	}
}

// DefaultConfigPath returns the per-user configuration directory.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// Load reads config.yaml from configPath (or the user config directory
// when empty), applies defaults for anything unset, then applies
// environment overrides. A missing file is not an error; a malformed
// one is.
func Load(configPath string) (Config, error) {
	cfg := Default()

	if configPath == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		configPath = defaultPath
	}

	configFilePath := filepath.Join(configPath, configFileName)
	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return Config{}, fmt.Errorf("error reading config from %s: %w", configFilePath, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if portStr := os.Getenv(EnvHTTPPort); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", EnvHTTPPort, portStr, err)
		}
		cfg.Server.Port = port
	}
	return nil
}
