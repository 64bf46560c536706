// Package config resolves orc's configuration: built-in defaults, then the
// project file (.orc/config.yaml), then ORC_* environment variables, then
// CLI flags — each layer overriding the last.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds orc's full runtime configuration.
type Config struct {
	Workers      int           `yaml:"workers" mapstructure:"workers"`
	AgentCommand string        `yaml:"agent_command" mapstructure:"agent_command"`
	AgentArgs    []string      `yaml:"agent_args" mapstructure:"agent_args"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	PlannerEvery int           `yaml:"planner_every" mapstructure:"planner_every"`
	Model        string        `yaml:"model" mapstructure:"model"`

	BackoffInitial time.Duration `yaml:"backoff_initial" mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max" mapstructure:"backoff_max"`
	BackoffFactor  float64       `yaml:"backoff_factor" mapstructure:"backoff_factor"`
	BackoffRetries int           `yaml:"backoff_retries" mapstructure:"backoff_retries"`

	DatabasePath string `yaml:"database_path" mapstructure:"database_path"`
	LogLevel     string `yaml:"log_level" mapstructure:"log_level"`
	LogFormat    string `yaml:"log_format" mapstructure:"log_format"`

	RetryBudget int `yaml:"retry_budget" mapstructure:"retry_budget"`
}

// Defaults returns orc's built-in configuration, the lowest-precedence layer.
func Defaults() Config {
	return Config{
		Workers:        4,
		AgentCommand:   "claude",
		AgentArgs:      []string{"--print", "--output-format", "stream-json"},
		IdleTimeout:    10 * time.Minute,
		PlannerEvery:   1,
		Model:          "sonnet",
		BackoffInitial: 1 * time.Second,
		BackoffMax:     4 * time.Second,
		BackoffFactor:  2.0,
		BackoffRetries: 3,
		DatabasePath:   ".orc/transcripts.db",
		LogLevel:       "info",
		LogFormat:      "text",
		RetryBudget:    3,
	}
}

// Init writes a fresh .orc/config.yaml with the built-in defaults. If the
// file already exists, it is left untouched unless force is set.
func Init(orcDir string, force bool) error {
	path := filepath.Join(orcDir, "config.yaml")
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(orcDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", orcDir, err)
	}

	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RequireInit returns an error unless orcDir's config.yaml exists.
func RequireInit(orcDir string) error {
	path := filepath.Join(orcDir, "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("orc is not initialized in this directory (run 'orc init' first)")
	}
	return nil
}

// Load resolves configuration for the project rooted at orcDir (typically
// ".orc"), layering defaults -> project file -> ORC_* environment variables.
// CLI flags are applied afterward by the caller.
func Load(orcDir string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("ORC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaultsOn(v, cfg)

	projectFile := filepath.Join(orcDir, "config.yaml")
	if data, err := os.ReadFile(projectFile); err == nil {
		var fileCfg map[string]any
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", projectFile, err)
		}
		// Merged as config-file values so ORC_* environment variables still
		// take precedence over them.
		if err := v.MergeConfigMap(fileCfg); err != nil {
			return cfg, fmt.Errorf("merge %s: %w", projectFile, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read %s: %w", projectFile, err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return cfg, aggregateError(errs)
	}

	return cfg, nil
}

func setDefaultsOn(v *viper.Viper, cfg Config) {
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("agent_command", cfg.AgentCommand)
	v.SetDefault("agent_args", cfg.AgentArgs)
	v.SetDefault("idle_timeout", cfg.IdleTimeout)
	v.SetDefault("planner_every", cfg.PlannerEvery)
	v.SetDefault("model", cfg.Model)
	v.SetDefault("backoff_initial", cfg.BackoffInitial)
	v.SetDefault("backoff_max", cfg.BackoffMax)
	v.SetDefault("backoff_factor", cfg.BackoffFactor)
	v.SetDefault("backoff_retries", cfg.BackoffRetries)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("retry_budget", cfg.RetryBudget)
}

// Validate checks Config for invalid field combinations. It returns every
// violation found rather than stopping at the first, matching the
// aggregated-error validation pattern.
func (c Config) Validate() []error {
	var errs []error

	if c.Workers < 1 || c.Workers > 8 {
		errs = append(errs, fmt.Errorf("workers must be in [1,8], got %d", c.Workers))
	}
	if c.AgentCommand == "" {
		errs = append(errs, fmt.Errorf("agent_command must not be empty"))
	}
	if c.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("idle_timeout must be positive"))
	}
	if c.BackoffFactor <= 1.0 {
		errs = append(errs, fmt.Errorf("backoff_factor must be > 1.0, got %f", c.BackoffFactor))
	}
	if c.BackoffRetries < 0 {
		errs = append(errs, fmt.Errorf("backoff_retries must be >= 0, got %d", c.BackoffRetries))
	}
	if c.DatabasePath == "" {
		errs = append(errs, fmt.Errorf("database_path must not be empty"))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}

	return errs
}

// aggregatedError joins multiple validation errors into one message.
type aggregatedError struct{ errs []error }

func (e *aggregatedError) Error() string {
	parts := make([]string, len(e.errs))
	for i, err := range e.errs {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("config validation failed (%d errors): %s", len(e.errs), strings.Join(parts, "; "))
}

func (e *aggregatedError) Unwrap() []error { return e.errs }

func aggregateError(errs []error) error {
	return &aggregatedError{errs: errs}
}
