// Package config provides YAML-based configuration loading for frameexec.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Swind/go-frame-executor/core"
)

// Config is the root application configuration.
type Config struct {
	// Executor configures the task executor and its worker
	Executor ExecutorConfig `mapstructure:"executor"`

	// Log holds logging configuration
	Log LogConfig `mapstructure:"log"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ExecutorConfig defines executor settings.
type ExecutorConfig struct {
	Name string `mapstructure:"name"`
	// InvokeTimeout bounds Invoke and worker identity resolution
	InvokeTimeout time.Duration `mapstructure:"invoke_timeout"`
	// ReleaseTimeout bounds the wait for an owned worker to exit
	ReleaseTimeout  time.Duration `mapstructure:"release_timeout"`
	HistoryCapacity int           `mapstructure:"history_capacity"`
	// SharedWorker runs the executor on the process-wide worker instead of
	// a dedicated one.
	SharedWorker bool `mapstructure:"shared_worker"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable" yaml:"enable"`
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig defines the Prometheus endpoint.
type MetricsConfig struct {
	Enable    bool   `mapstructure:"enable"`
	Addr      string `mapstructure:"addr"`
	Namespace string `mapstructure:"namespace"`
	// PollInterval is the Stats() snapshot period
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Executor: ExecutorConfig{
			Name:            "frame-executor",
			InvokeTimeout:   core.DefaultInvokeTimeout,
			ReleaseTimeout:  core.DefaultReleaseTimeout,
			HistoryCapacity: 100,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stdout"},
			Development: true,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/frameexec.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Metrics: MetricsConfig{
			Enable:       false,
			Addr:         ":9090",
			Namespace:    "frameexec",
			PollInterval: time.Second,
		},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix FRAMEEXEC and `.`/`-` are replaced with `_`.
// Example: FRAMEEXEC_EXECUTOR_INVOKE_TIMEOUT=1s
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FRAMEEXEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("executor.name", cfg.Executor.Name)
	v.SetDefault("executor.invoke_timeout", cfg.Executor.InvokeTimeout)
	v.SetDefault("executor.release_timeout", cfg.Executor.ReleaseTimeout)
	v.SetDefault("executor.history_capacity", cfg.Executor.HistoryCapacity)
	v.SetDefault("executor.shared_worker", cfg.Executor.SharedWorker)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("metrics.enable", cfg.Metrics.Enable)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
	v.SetDefault("metrics.namespace", cfg.Metrics.Namespace)
	v.SetDefault("metrics.poll_interval", cfg.Metrics.PollInterval)

	// Choose config file
	if path == "" {
		// Allow override via env var
		if envPath := os.Getenv("FRAMEEXEC_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search common locations with base name `frameexec`
		v.SetConfigName("frameexec")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".frameexec"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var viperConfigFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &viperConfigFileNotFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch lvl {
	case "debug", "info", "warn", "warning", "error":
		// ok
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}

	switch strings.ToLower(c.Log.Format) {
	case "":
		c.Log.Format = "console"
	case "console", "json":
	default:
		return fmt.Errorf("invalid log.format: %q", c.Log.Format)
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}

	if c.Executor.InvokeTimeout < 0 {
		return fmt.Errorf("invalid executor.invoke_timeout: %v", c.Executor.InvokeTimeout)
	}
	if c.Executor.ReleaseTimeout < 0 {
		return fmt.Errorf("invalid executor.release_timeout: %v", c.Executor.ReleaseTimeout)
	}
	if c.Executor.HistoryCapacity < 0 {
		return fmt.Errorf("invalid executor.history_capacity: %d", c.Executor.HistoryCapacity)
	}
	if strings.TrimSpace(c.Executor.Name) == "" {
		c.Executor.Name = "frame-executor"
	}

	if c.Metrics.Enable && strings.TrimSpace(c.Metrics.Addr) == "" {
		return errors.New("metrics.addr is required when metrics.enable is set")
	}
	if c.Metrics.PollInterval <= 0 {
		c.Metrics.PollInterval = time.Second
	}
	return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// ToCore converts the executor section into a core.ExecutorConfig. Logger and
// metrics are left for the caller to fill in.
func (c ExecutorConfig) ToCore() *core.ExecutorConfig {
	return &core.ExecutorConfig{
		Name:            c.Name,
		InvokeTimeout:   c.InvokeTimeout,
		ReleaseTimeout:  c.ReleaseTimeout,
		HistoryCapacity: c.HistoryCapacity,
	}
}

// =============================================================================
// YAML dump
// =============================================================================

// The dump mirrors Config with durations rendered as strings ("500ms"), the
// form Load accepts back.
type dumpConfig struct {
	Executor dumpExecutor `yaml:"executor"`
	Log      dumpLog      `yaml:"log"`
	Metrics  dumpMetrics  `yaml:"metrics"`
}

type dumpExecutor struct {
	Name            string `yaml:"name"`
	InvokeTimeout   string `yaml:"invoke_timeout"`
	ReleaseTimeout  string `yaml:"release_timeout"`
	HistoryCapacity int    `yaml:"history_capacity"`
	SharedWorker    bool   `yaml:"shared_worker"`
}

type dumpLog struct {
	Level       string         `yaml:"level"`
	Format      string         `yaml:"format"`
	Outputs     []string       `yaml:"outputs"`
	Rotation    RotationConfig `yaml:"rotation"`
	Development bool           `yaml:"development"`
}

type dumpMetrics struct {
	Enable       bool   `yaml:"enable"`
	Addr         string `yaml:"addr"`
	Namespace    string `yaml:"namespace"`
	PollInterval string `yaml:"poll_interval"`
}

// Dump writes c as YAML.
func (c *Config) Dump(w io.Writer) error {
	out := dumpConfig{
		Executor: dumpExecutor{
			Name:            c.Executor.Name,
			InvokeTimeout:   c.Executor.InvokeTimeout.String(),
			ReleaseTimeout:  c.Executor.ReleaseTimeout.String(),
			HistoryCapacity: c.Executor.HistoryCapacity,
			SharedWorker:    c.Executor.SharedWorker,
		},
		Log: dumpLog{
			Level:       c.Log.Level,
			Format:      c.Log.Format,
			Outputs:     c.Log.Outputs,
			Rotation:    c.Log.Rotation,
			Development: c.Log.Development,
		},
		Metrics: dumpMetrics{
			Enable:       c.Metrics.Enable,
			Addr:         c.Metrics.Addr,
			Namespace:    c.Metrics.Namespace,
			PollInterval: c.Metrics.PollInterval.String(),
		},
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
