package updater

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config holds updater configuration.
type Config struct {
	// UpdateOnStartup runs one (retried) update cycle when the session starts.
	UpdateOnStartup bool `yaml:"update_on_startup" json:"update_on_startup"`

	// MinRefreshSeconds is the refresh window for foreground-triggered checks.
	MinRefreshSeconds int64 `yaml:"min_refresh_seconds" json:"min_refresh_seconds"`

	// ShowDebugInConsole echoes update log lines to the console logger.
	ShowDebugInConsole bool `yaml:"show_debug_in_console" json:"show_debug_in_console"`

	// ThrowUpdateErrors surfaces cycle errors to the caller instead of swallowing them.
	ThrowUpdateErrors bool `yaml:"throw_update_errors" json:"throw_update_errors"`

	// MaxRetries bounds the startup retries. Total attempts = MaxRetries + 1.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// RetryDelay is the pause between startup attempts. Zero retries back-to-back.
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		UpdateOnStartup:    true,
		MinRefreshSeconds:  300,
		ShowDebugInConsole: false,
		ThrowUpdateErrors:  false,
		MaxRetries:         3,
	}
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	if c.MinRefreshSeconds < 0 {
		return fmt.Errorf("%w: min_refresh_seconds must not be negative", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must not be negative", ErrInvalidConfig)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry_delay must not be negative", ErrInvalidConfig)
	}
	return nil
}

// RetryBackOff returns the delay policy used between startup attempts.
func (c Config) RetryBackOff() backoff.BackOff {
	if c.RetryDelay <= 0 {
		return &backoff.ZeroBackOff{}
	}
	return backoff.NewConstantBackOff(c.RetryDelay)
}
