// Package config loads componentmesh settings from YAML files.
//
// Environment variables referenced as ${VAR} or $VAR are expanded before
// parsing, so values can come from the process environment or a .env file
// loaded beforehand. Fields missing from the file keep their defaults.
//
// Example file:
//
//	engine:
//	  call_timeout: 500ms
//	logging:
//	  level: ${MESH_LOG_LEVEL}
//	  format: text
//	  add_source: false
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/componentmesh/engine"
	"github.com/hupe1980/componentmesh/logging"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig holds engine tuning.
type EngineConfig struct {
	CallTimeout string `yaml:"call_timeout"` // Duration string (e.g. "1s", "250ms").
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`  // debug, info, warn or error.
	Format    string `yaml:"format"` // json or text.
	AddSource bool   `yaml:"add_source"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Engine:  EngineConfig{CallTimeout: engine.DefaultConfig.DefaultCallTimeout.String()},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads the YAML file at path on top of Default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration
	if err != nil {
		return Config{}, fmt.Errorf("config: load: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes on top of Default after expanding environment
// variables.
func Parse(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}

	return cfg, nil
}

// Validate checks that every value can be converted.
func (c Config) Validate() error {
	d, err := time.ParseDuration(c.Engine.CallTimeout)
	if err != nil {
		return fmt.Errorf("config: engine.call_timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("config: engine.call_timeout must be positive, got %s", d)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: logging.level: %w", err)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("config: logging.format: unknown format %q", c.Logging.Format)
	}

	return nil
}

// EngineConfig converts the engine section. Unparsable values fall back to
// engine.DefaultConfig; call Validate first to surface them.
func (c Config) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig
	if d, err := time.ParseDuration(c.Engine.CallTimeout); err == nil && d > 0 {
		cfg.DefaultCallTimeout = d
	}
	return cfg
}

// LoggerConfig converts the logging section. Output is left nil, which
// NewLogger treats as stdout.
func (c Config) LoggerConfig() *logging.LoggerConfig {
	level, _ := logging.ParseLevel(c.Logging.Level)

	format := strings.ToLower(c.Logging.Format)
	if format == "" {
		format = "json"
	}

	return &logging.LoggerConfig{
		Level:       level,
		Format:      format,
		AddSource:   c.Logging.AddSource,
		CustomAttrs: map[string]any{},
	}
}
