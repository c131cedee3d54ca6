// Package config loads the tickflow command's YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vnykmshr/tickflow/pkg/common/validation"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of a tickflow host process.
type Config struct {
	// TickInterval is the time between two scheduler ticks.
	TickInterval time.Duration `yaml:"tick_interval"`

	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json

	// MetricsAddr is the listen address for /metrics and /healthz. Empty
	// disables the HTTP server.
	MetricsAddr string `yaml:"metrics_addr"`

	// RecoverPanics turns panicking routines into reported errors.
	RecoverPanics bool `yaml:"recover_panics"`

	Offload OffloadConfig `yaml:"offload"`
	Redis   RedisConfig   `yaml:"redis"`
}

// OffloadConfig sizes the worker pool for blocking work.
type OffloadConfig struct {
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

// RedisConfig enables Redis-backed conditions. Empty Addr disables them.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Key          string        `yaml:"key"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		TickInterval: 50 * time.Millisecond,
		LogLevel:     "info",
		LogFormat:    "text",
		Offload: OffloadConfig{
			Workers:   4,
			QueueSize: 100,
		},
		Redis: RedisConfig{
			Key:          "tickflow:signal",
			PollTimeout:  50 * time.Millisecond,
			PollInterval: 100 * time.Millisecond,
		},
	}
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// fields are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(validation.ValidatePositiveDuration("config", "tick_interval", c.TickInterval))
	add(validation.ValidatePositive("config", "offload.workers", c.Offload.Workers))
	add(validation.ValidatePositive("config", "offload.queue_size", c.Offload.QueueSize))
	add(validation.ValidateNonNegative("config", "offload.task_timeout", c.Offload.TaskTimeout))

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		add(fmt.Errorf("config: invalid log_format %q (want text or json)", c.LogFormat))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add(fmt.Errorf("config: invalid log_level %q (want debug, info, warn or error)", c.LogLevel))
	}

	if c.Redis.Addr != "" {
		add(validation.ValidateNotEmpty("config", "redis.key", c.Redis.Key))
		add(validation.ValidatePositiveDuration("config", "redis.poll_timeout", c.Redis.PollTimeout))
		add(validation.ValidateNonNegative("config", "redis.poll_interval", c.Redis.PollInterval))
	}
	return errors.Join(errs...)
}
