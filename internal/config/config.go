// Package config handles configuration loading and management for crewline.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProjectConfigName is the per-project config file searched for in the
// working directory and its parents.
const ProjectConfigName = ".crewline.yaml"

// EnvPrefix prefixes every environment override, e.g. CREWLINE_ENGINE_MAX_PARALLEL.
const EnvPrefix = "CREWLINE"

// Config holds all configuration for crewline.
type Config struct {
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// EngineConfig holds workflow engine settings.
type EngineConfig struct {
	// MaxParallel caps concurrent tasks in a parallel wave. Zero is unlimited.
	MaxParallel int `mapstructure:"max_parallel"`
	// SkipOnFailure marks pending dependents of a failed task as skipped.
	SkipOnFailure bool `mapstructure:"skip_on_failure"`
	// TurnTimeout bounds a single executor turn. Zero disables the bound.
	TurnTimeout time.Duration `mapstructure:"turn_timeout"`
	// EventBuffer sizes the engine event channel used by the TUI.
	EventBuffer int `mapstructure:"event_buffer"`
	// StateDir holds signals, logs and the default checkpoint locations.
	StateDir string `mapstructure:"state_dir"`
}

// RetryConfig configures the retrying turn executor.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Delay       time.Duration `mapstructure:"delay"`
	Backoff     float64       `mapstructure:"backoff"`
}

// BreakerConfig configures the circuit breaker around the turn executor.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
}

// MemoryConfig selects the shared memory backend.
type MemoryConfig struct {
	// Backend is "local", "log" (in-process conversation log) or "redis".
	Backend        string `mapstructure:"backend"`
	RedisAddr      string `mapstructure:"redis_addr"`
	RedisPassword  string `mapstructure:"redis_password"`
	RedisDB        int    `mapstructure:"redis_db"`
	ConversationID string `mapstructure:"conversation_id"`
}

// CheckpointConfig selects the checkpoint storage backend.
type CheckpointConfig struct {
	// Backend is "file", "sqlite" or "redis".
	Backend string `mapstructure:"backend"`
	// Dir is the file backend directory.
	Dir string `mapstructure:"dir"`
	// DBPath is the sqlite database file.
	DBPath string `mapstructure:"db_path"`
	// Driver is the sqlite driver, "sqlite" or "sqlite3".
	Driver      string `mapstructure:"driver"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the endpoint.
	Addr string `mapstructure:"addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level     string `mapstructure:"level"`
	DebugFile string `mapstructure:"debug_file"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, CREWLINE_*)
// 2. Project config (.crewline.yaml in current directory or parent)
// 3. User config (~/.config/crewline/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file on top of the defaults.
// Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY", EnvPrefix+"_ANTHROPIC_API_KEY")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Memory.RedisPassword = expandEnv(cfg.Memory.RedisPassword)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown backends and negative limits.
func (c *Config) Validate() error {
	switch c.Memory.Backend {
	case "local", "log", "redis":
	default:
		return fmt.Errorf("memory.backend: unknown backend %q (want local, log or redis)", c.Memory.Backend)
	}
	switch c.Checkpoint.Backend {
	case "file", "sqlite", "redis":
	default:
		return fmt.Errorf("checkpoint.backend: unknown backend %q (want file, sqlite or redis)", c.Checkpoint.Backend)
	}
	if c.Engine.MaxParallel < 0 {
		return fmt.Errorf("engine.max_parallel: must not be negative, got %d", c.Engine.MaxParallel)
	}
	if c.Engine.EventBuffer < 0 {
		return fmt.Errorf("engine.event_buffer: must not be negative, got %d", c.Engine.EventBuffer)
	}
	return nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return SaveToPath(cfg, filepath.Join(userConfigDir, "config.yaml"))
}

// SaveToPath writes the configuration to path.
func SaveToPath(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	for key, value := range cfg.Settings() {
		v.Set(key, value)
	}
	return v.WriteConfig()
}

// Settings flattens the configuration into dotted keys. Durations are
// rendered as strings so they round-trip through YAML.
func (c *Config) Settings() map[string]any {
	return map[string]any{
		"anthropic.api_key":         c.Anthropic.APIKey,
		"anthropic.model":           c.Anthropic.Model,
		"anthropic.use_bedrock":     c.Anthropic.UseBedrock,
		"anthropic.aws_region":      c.Anthropic.AWSRegion,
		"anthropic.aws_profile":     c.Anthropic.AWSProfile,
		"engine.max_parallel":       c.Engine.MaxParallel,
		"engine.skip_on_failure":    c.Engine.SkipOnFailure,
		"engine.turn_timeout":       c.Engine.TurnTimeout.String(),
		"engine.event_buffer":       c.Engine.EventBuffer,
		"engine.state_dir":          c.Engine.StateDir,
		"retry.max_attempts":        c.Retry.MaxAttempts,
		"retry.delay":               c.Retry.Delay.String(),
		"retry.backoff":             c.Retry.Backoff,
		"breaker.failure_threshold": c.Breaker.FailureThreshold,
		"breaker.recovery_timeout":  c.Breaker.RecoveryTimeout.String(),
		"memory.backend":            c.Memory.Backend,
		"memory.redis_addr":         c.Memory.RedisAddr,
		"memory.redis_password":     c.Memory.RedisPassword,
		"memory.redis_db":           c.Memory.RedisDB,
		"memory.conversation_id":    c.Memory.ConversationID,
		"checkpoint.backend":        c.Checkpoint.Backend,
		"checkpoint.dir":            c.Checkpoint.Dir,
		"checkpoint.db_path":        c.Checkpoint.DBPath,
		"checkpoint.driver":         c.Checkpoint.Driver,
		"checkpoint.redis_prefix":   c.Checkpoint.RedisPrefix,
		"metrics.addr":              c.Metrics.Addr,
		"log.level":                 c.Log.Level,
		"log.debug_file":            c.Log.DebugFile,
	}
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	for key, value := range Default().Settings() {
		v.SetDefault(key, value)
	}
}

// getUserConfigDir returns the XDG config directory for crewline.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "crewline")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "crewline")
	}
	return filepath.Join(home, ".config", "crewline")
}

// findProjectConfig searches for .crewline.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			AWSRegion: "us-west-2",
		},
		Engine: EngineConfig{
			TurnTimeout: 5 * time.Minute,
			EventBuffer: 256,
			StateDir:    ".crewline",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Delay:       time.Second,
			Backoff:     2.0,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  60 * time.Second,
		},
		Memory: MemoryConfig{
			Backend:   "local",
			RedisAddr: "localhost:6379",
		},
		Checkpoint: CheckpointConfig{
			Backend:     "file",
			Dir:         filepath.Join(".crewline", "checkpoints"),
			DBPath:      filepath.Join(".crewline", "state.db"),
			Driver:      "sqlite",
			RedisPrefix: "crewline:checkpoint:",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
