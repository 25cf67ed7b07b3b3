package config

import (
	"fmt"
	"path/filepath"

	"github.com/leapstack-labs/leapvault/internal/cli/output"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		return err
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be positive, got %s", c.Watch.Interval)
	}
	if _, err := filepath.Match(c.PatternFor("x"), ""); err != nil {
		return fmt.Errorf("invalid watch.pattern %q: %w", c.Watch.Pattern, err)
	}
	for name, src := range c.Sources {
		if src.Pattern == "" {
			continue
		}
		if _, err := filepath.Match(src.Pattern, ""); err != nil {
			return fmt.Errorf("invalid pattern %q for source %s: %w", src.Pattern, name, err)
		}
	}
	for _, name := range c.Watch.Sources {
		if name == "" {
			return fmt.Errorf("watch.sources contains an empty name")
		}
	}
	return nil
}
