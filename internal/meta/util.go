package meta

import (
	"fmt"
	"time"

	"github.com/avint/metaloom/internal/logging"
)

// Duration wraps time.Duration so YAML configs can use "6h" / "90m" forms
type Duration time.Duration

// Hours builds a Duration of n hours
func Hours(n int) Duration {
	return Duration(time.Duration(n) * time.Hour)
}

// Std returns the underlying time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML parses a duration string like "6h" or "30m"
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in time.Duration string form
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func logf(format string, args ...any) {
	logging.Info("meta", format, args...)
}

func debugf(format string, args ...any) {
	logging.Debug("meta", format, args...)
}

// truncate shortens text to maxLen, adding ellipsis if needed
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
