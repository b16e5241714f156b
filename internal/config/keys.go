package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// apiKeyEnvVars are checked in order before the config file.
var apiKeyEnvVars = []string{"ANTHROPIC_API_KEY", EnvPrefix + "_ANTHROPIC_API_KEY"}

// GetAPIKey returns the Anthropic API key.
// It checks in order: environment variables, config file.
func GetAPIKey(cfg *Config) (string, error) {
	if key := envAPIKey(); key != "" {
		return key, nil
	}
	if key := configAPIKey(cfg); key != "" {
		return key, nil
	}
	return "", ErrNoAPIKey
}

// RequiresAPIKey reports whether the configured backend needs an API key.
// Bedrock authenticates through the AWS credential chain instead.
func RequiresAPIKey(cfg *Config) bool {
	return cfg == nil || !cfg.Anthropic.UseBedrock
}

func envAPIKey() string {
	for _, name := range apiKeyEnvVars {
		if key := os.Getenv(name); key != "" {
			return key
		}
	}
	return ""
}

func configAPIKey(cfg *Config) string {
	if cfg == nil || cfg.Anthropic.APIKey == "" {
		return ""
	}
	key := os.ExpandEnv(cfg.Anthropic.APIKey)
	if strings.HasPrefix(key, "${") {
		return ""
	}
	return key
}

// ValidateAPIKey performs basic validation on an API key.
// It checks format but does not verify the key with Anthropic's API.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}
	if !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("invalid API key format: expected 'sk-ant-' prefix")
	}
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}
	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters (sk-ant-) and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	if envAPIKey() != "" {
		return KeySourceEnv
	}
	if configAPIKey(cfg) != "" {
		return KeySourceConfig
	}
	return KeySourceNone
}
