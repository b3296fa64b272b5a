// Package config provides configuration loading for schelling runs.
// Values come from defaults, then an optional YAML file, then environment
// variables; command-line flags are applied last by the CLI.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/talgya/schelling/internal/engine"
	"github.com/talgya/schelling/internal/logging"
	"github.com/talgya/schelling/internal/world"
)

// Config contains all settings for a run.
type Config struct {
	// World holds the city construction parameters.
	World world.GenConfig `yaml:"world"`

	// Engine holds relocation loop safeguards.
	Engine engine.Options `yaml:"engine"`

	// Run holds per-invocation settings.
	Run RunConfig `yaml:"run"`

	// Logging configures operational logging.
	Logging LoggingConfig `yaml:"logging"`
}

// RunConfig holds settings that are not part of the model itself.
type RunConfig struct {
	// Seed fixes every random draw of the run. 0 picks a random seed.
	Seed int64 `yaml:"seed"`

	// DBPath is the SQLite file runs are recorded to. Empty disables recording.
	DBPath string `yaml:"db_path"`
}

// LoggingConfig configures log verbosity.
type LoggingConfig struct {
	// Level is one of "trace", "debug", "info" (default), "warn", "error".
	Level string `yaml:"level"`
}

// Default returns a Config with the standard model parameters.
func Default() *Config {
	return &Config{
		World:  world.DefaultGenConfig(),
		Engine: engine.DefaultOptions(),
		Run: RunConfig{
			Seed:   0,
			DBPath: "",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load returns defaults overlaid with the file at path (if non-empty) and
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		cfg = fileCfg
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file. Fields the file
// omits keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.World.Validate(); err != nil {
		return err
	}
	if c.Engine.MaxMoves < 0 {
		return fmt.Errorf("max_moves must be non-negative, got %d", c.Engine.MaxMoves)
	}
	if c.Engine.MaxIdleEvaluations < 0 {
		return fmt.Errorf("max_idle_evaluations must be non-negative, got %d", c.Engine.MaxIdleEvaluations)
	}
	if c.Engine.ReportEvery < 0 {
		return fmt.Errorf("report_every must be non-negative, got %d", c.Engine.ReportEvery)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: trace, debug, info, warn, error)", c.Logging.Level)
	}
	return nil
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SCHELLING_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCHELLING_SIZE: %w", err)
		}
		cfg.World.Size = n
	}
	if v := os.Getenv("SCHELLING_NEIGHBOR_RADIUS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCHELLING_NEIGHBOR_RADIUS: %w", err)
		}
		cfg.World.NeighborRadius = n
	}
	if v := os.Getenv("SCHELLING_MAX_TOLERANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SCHELLING_MAX_TOLERANCE: %w", err)
		}
		cfg.World.MaxTolerance = f
	}
	if v := os.Getenv("SCHELLING_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("SCHELLING_SEED: %w", err)
		}
		cfg.Run.Seed = n
	}
	if v := os.Getenv("SCHELLING_DB"); v != "" {
		cfg.Run.DBPath = v
	}
	if v := os.Getenv("SCHELLING_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}
