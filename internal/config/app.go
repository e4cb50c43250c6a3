package config

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rennerdo30/relaunch/internal/lifecycle"
	"github.com/rennerdo30/relaunch/internal/logging"
	"github.com/rennerdo30/relaunch/internal/releases"
	"github.com/rennerdo30/relaunch/internal/updater"
)

// Config is the main configuration for relaunch.
type Config struct {
	Updates   updater.Config  `yaml:"updates" json:"updates"`
	Release   releases.Config `yaml:"release" json:"release"`
	Logging   logging.Config  `yaml:"logging" json:"logging"`
	API       APIConfig       `yaml:"api" json:"api"`
	Lifecycle LifecycleConfig `yaml:"lifecycle" json:"lifecycle"`
}

// APIConfig contains the control API settings.
type APIConfig struct {
	Enabled         bool     `yaml:"enabled" json:"enabled"`
	Listen          string   `yaml:"listen" json:"listen"`
	Token           string   `yaml:"token" json:"token,omitempty"`
	ReadTimeout     Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// LifecycleConfig selects how foreground/background transitions are reported.
type LifecycleConfig struct {
	// Signals maps process signals to lifecycle states (unix only).
	Signals bool `yaml:"signals" json:"signals"`

	// Initial is the state the process starts in: active, inactive or background.
	Initial string `yaml:"initial" json:"initial"`
}

// InitialState parses Initial, defaulting to active.
func (c LifecycleConfig) InitialState() (lifecycle.AppState, error) {
	if c.Initial == "" {
		return lifecycle.Active, nil
	}
	return lifecycle.ParseAppState(c.Initial)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Updates: updater.DefaultConfig(),
		Release: releases.DefaultConfig(),
		Logging: logging.DefaultConfig(),
		API: APIConfig{
			Enabled:         true,
			Listen:          "127.0.0.1:7090",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			ShutdownTimeout: Duration(5 * time.Second),
		},
		Lifecycle: LifecycleConfig{
			Signals: true,
			Initial: string(lifecycle.Active),
		},
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Updates.Validate(); err != nil {
		return fmt.Errorf("updates: %w", err)
	}
	if err := c.Release.Validate(); err != nil {
		return fmt.Errorf("release: %w", err)
	}
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if _, err := c.Lifecycle.InitialState(); err != nil {
		return fmt.Errorf("lifecycle: %w", err)
	}
	return nil
}

// Validate checks the API listener settings.
func (c APIConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Listen == "" {
		return fmt.Errorf("listen address is required when enabled")
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// LoadFile reads path over DefaultConfig and validates the result.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := LoadAndValidate(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Duration is a time.Duration that can be unmarshaled from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
