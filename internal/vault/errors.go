package vault

import (
	"fmt"

	"github.com/leapstack-labs/leapvault/internal/adapter"
)

// Re-exported so callers of this package need not import adapter.
type (
	// StatementError is an attempted statement and its failure description.
	StatementError = adapter.StatementError

	// Errors is the collected result of a statement-executing operation.
	Errors = adapter.Errors
)

// ConfigError is a metadata configuration error for one entity. It is fatal
// to that entity's step only.
type ConfigError struct {
	Entity string `json:"entity"`
	Reason string `json:"reason"`
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Entity, e.Reason)
}

func configErrorf(entity, format string, args ...any) *ConfigError {
	return &ConfigError{Entity: entity, Reason: fmt.Sprintf(format, args...)}
}
