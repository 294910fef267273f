package client

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrInvalidConfig is matched by every ConfigError.
var ErrInvalidConfig = errors.New("client: invalid configuration")

// ConfigError represents a configuration error.
type ConfigError struct {
	Option  string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("client: config error for %q (value: %v): %s", e.Option, e.Value, e.Message)
	}
	return fmt.Sprintf("client: config error for %q: %s", e.Option, e.Message)
}

// Is reports whether the target matches the sentinel error for ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigError creates a new ConfigError.
func NewConfigError(option string, value any, message string) *ConfigError {
	return &ConfigError{
		Option:  option,
		Value:   value,
		Message: message,
	}
}

// IsConfigError reports whether the error is a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

// Option configures a Client.
type Option func(*Client) error

// WithLogger sets the logger used by the client and its executor.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) error {
		if l == nil {
			return NewConfigError("Logger", nil, "logger cannot be nil")
		}
		c.logger = l
		return nil
	}
}

// WithConcurrency sets the number of insertions InsertMany runs at once.
func WithConcurrency(n int) Option {
	return func(c *Client) error {
		if n < 1 {
			return NewConfigError("Concurrency", n, "concurrency must be at least 1")
		}
		c.concurrency = n
		return nil
	}
}
