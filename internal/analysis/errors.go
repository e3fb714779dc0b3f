package analysis

import "fmt"

// ConfigError marks an invalid run configuration or dependency graph. It is
// the only error class that surfaces from an orchestrator run; everything
// else is recorded inside the combined result.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Reason
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// NewConfigError builds a ConfigError with a preformatted reason.
func NewConfigError(format string, args ...any) error {
	return configErrorf(format, args...)
}
