// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads and validates maestro configuration from YAML
// files and environment variables. Environment variables take
// precedence over file-based configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tombee/maestro/internal/log"
	maestroerrors "github.com/tombee/maestro/pkg/errors"
)

// Config represents the complete maestro configuration.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Router RouterConfig `yaml:"router"`
	Ledger LedgerConfig `yaml:"ledger"`

	// Tiers overrides the built-in tier table. Empty means defaults.
	Tiers []TierConfig `yaml:"tiers,omitempty"`

	// Plans overrides individual built-in plans by name.
	Plans map[string]PlanConfig `yaml:"plans,omitempty"`

	// Tenants maps tenant IDs to plan names. Unknown tenants get
	// DefaultPlan.
	Tenants     map[string]string `yaml:"tenants,omitempty"`
	DefaultPlan string            `yaml:"default_plan,omitempty"`

	// Stages overrides the built-in pipeline. Empty means defaults.
	Stages []StageConfig `yaml:"stages,omitempty"`
}

// LogConfig configures structured logging. Defaults come from the
// logging environment variables (MAESTRO_DEBUG, MAESTRO_LOG_LEVEL,
// LOG_LEVEL, LOG_FORMAT, LOG_SOURCE); file values override them.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level,omitempty"`

	// Format is the log format (json, text).
	Format string `yaml:"format,omitempty"`

	// AddSource adds source file and line information to logs.
	AddSource bool `yaml:"add_source,omitempty"`
}

// RouterConfig configures task routing and estimation.
type RouterConfig struct {
	// InvokeTimeout bounds each backend call.
	// Environment: MAESTRO_INVOKE_TIMEOUT
	// Default: 60s
	InvokeTimeout time.Duration `yaml:"invoke_timeout,omitempty"`

	// AssumedOutputRatio is the fraction of input tokens assumed for
	// output when estimating cost before execution.
	// Default: 0.5
	AssumedOutputRatio float64 `yaml:"assumed_output_ratio,omitempty"`

	// MinAssumedOutputTokens is the estimation floor for assumed
	// output tokens.
	// Default: 256
	MinAssumedOutputTokens int `yaml:"min_assumed_output_tokens,omitempty"`
}

// LedgerConfig configures spend persistence.
type LedgerConfig struct {
	// Backend is the ledger type: "memory" or "sqlite".
	// Default: memory
	Backend string `yaml:"backend,omitempty"`

	// Path is the SQLite database path (for backend=sqlite).
	// Environment: MAESTRO_LEDGER_PATH
	Path string `yaml:"path,omitempty"`
}

// TierConfig declares one model tier. Prices are per million tokens,
// given as decimal strings so no precision is lost in YAML.
type TierConfig struct {
	Name                  string `yaml:"name"`
	Model                 string `yaml:"model"`
	InputPricePerMillion  string `yaml:"input_price_per_million"`
	OutputPricePerMillion string `yaml:"output_price_per_million"`
	Restricted            bool   `yaml:"restricted,omitempty"`
	SupportsReasoning     bool   `yaml:"supports_reasoning,omitempty"`
	PrimaryBackend        string `yaml:"primary_backend"`
	SecondaryBackend      string `yaml:"secondary_backend"`
}

// PlanConfig overrides one subscription plan. Limits are decimal
// strings in account currency.
type PlanConfig struct {
	DailyLimit             string   `yaml:"daily_limit,omitempty"`
	MonthlyLimit           string   `yaml:"monthly_limit,omitempty"`
	AllowedTiers           []string `yaml:"allowed_tiers,omitempty"`
	MaxConcurrentWorkflows int      `yaml:"max_concurrent_workflows,omitempty"`
}

// StageConfig declares one pipeline stage.
type StageConfig struct {
	Name        string   `yaml:"name"`
	Complexity  string   `yaml:"complexity"`
	Policy      string   `yaml:"policy"`
	Placeholder string   `yaml:"placeholder,omitempty"`
	Consumes    []string `yaml:"consumes,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	envLog := log.FromEnv()
	return &Config{
		Log: LogConfig{
			Level:     envLog.Level,
			Format:    string(envLog.Format),
			AddSource: envLog.AddSource,
		},
		Router: RouterConfig{
			InvokeTimeout:          60 * time.Second,
			AssumedOutputRatio:     0.5,
			MinAssumedOutputTokens: 256,
		},
		Ledger: LedgerConfig{
			Backend: "memory",
		},
		DefaultPlan: "basic",
	}
}

// Load loads configuration from environment variables and optionally
// from a YAML file. Environment variables take precedence. If
// configPath is empty, only defaults and environment variables are
// used.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &maestroerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	// Expand home directory if present
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// applyDefaults fills zero values left by a minimal config file.
func (c *Config) applyDefaults() {
	defaults := Default()
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Router.InvokeTimeout == 0 {
		c.Router.InvokeTimeout = defaults.Router.InvokeTimeout
	}
	if c.Router.AssumedOutputRatio == 0 {
		c.Router.AssumedOutputRatio = defaults.Router.AssumedOutputRatio
	}
	if c.Router.MinAssumedOutputTokens == 0 {
		c.Router.MinAssumedOutputTokens = defaults.Router.MinAssumedOutputTokens
	}
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = defaults.Ledger.Backend
	}
	if c.DefaultPlan == "" {
		c.DefaultPlan = defaults.DefaultPlan
	}
}

// loadFromEnv loads configuration from environment variables.
// MAESTRO_DEBUG keeps the debug level it set through the defaults, so
// the plain level variables yield to it here as they do in log.FromEnv.
func (c *Config) loadFromEnv() {
	if os.Getenv("MAESTRO_DEBUG") == "" {
		if val := os.Getenv("MAESTRO_LOG_LEVEL"); val != "" {
			c.Log.Level = strings.ToLower(val)
		} else if val := os.Getenv("LOG_LEVEL"); val != "" {
			c.Log.Level = strings.ToLower(val)
		}
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("MAESTRO_INVOKE_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Router.InvokeTimeout = duration
		}
	}
	if val := os.Getenv("MAESTRO_LEDGER_BACKEND"); val != "" {
		c.Ledger.Backend = strings.ToLower(val)
	}
	if val := os.Getenv("MAESTRO_LEDGER_PATH"); val != "" {
		c.Ledger.Path = val
	}
	if val := os.Getenv("MAESTRO_DEFAULT_PLAN"); val != "" {
		c.DefaultPlan = val
	}
}

// Validate checks configuration consistency. Tier, plan, and stage
// semantics are validated again by the packages that consume them; this
// catches what YAML parsing alone cannot.
func (c *Config) Validate() error {
	switch c.Ledger.Backend {
	case "memory":
	case "sqlite":
		if c.Ledger.Path == "" {
			return &maestroerrors.ConfigError{
				Key:    "ledger.path",
				Reason: "sqlite ledger requires a database path",
			}
		}
	default:
		return &maestroerrors.ConfigError{
			Key:    "ledger.backend",
			Reason: fmt.Sprintf("unknown ledger backend %q (expected memory or sqlite)", c.Ledger.Backend),
		}
	}

	if c.Router.InvokeTimeout < 0 {
		return &maestroerrors.ConfigError{
			Key:    "router.invoke_timeout",
			Reason: "invoke timeout cannot be negative",
		}
	}
	if c.Router.AssumedOutputRatio < 0 {
		return &maestroerrors.ConfigError{
			Key:    "router.assumed_output_ratio",
			Reason: "assumed output ratio cannot be negative",
		}
	}

	for tenant, plan := range c.Tenants {
		if plan == "" {
			return &maestroerrors.ConfigError{
				Key:    "tenants." + tenant,
				Reason: "tenant plan name cannot be empty",
			}
		}
	}
	return nil
}
