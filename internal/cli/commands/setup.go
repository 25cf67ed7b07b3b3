// Package commands implements the leapvault subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/leapvault/internal/cli/config"
	"github.com/leapstack-labs/leapvault/internal/cli/output"
	"github.com/leapstack-labs/leapvault/internal/engine"
	"github.com/leapstack-labs/leapvault/internal/state"
	"github.com/leapstack-labs/leapvault/internal/vault"
	"github.com/spf13/cobra"
)

// CommandContext holds common resources for command execution.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return nil, nil, err
	}

	eng, err := createEngine(cmd.Context(), cc.Cfg, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	cc.Engine = eng

	cleanup := func() {
		if err := eng.Close(); err != nil {
			cc.Logger.Warn("failed to close engine", "error", err)
		}
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need database access.
func NewCommandContextWithoutEngine(cmd *cobra.Command) (*CommandContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
		cmd.SetContext(ctx)
	}

	cfg := config.FromContext(ctx)
	if cfg == nil {
		var err error
		if cfg, err = config.Load("", nil); err != nil {
			return nil, err
		}
	}

	mode, err := output.ParseMode(cfg.OutputFormat)
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(ctx),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}, nil
}

// Helper functions shared across commands

// createEngine creates an engine from the configuration, opening the flow
// journal when a state path is set. A journal that cannot be opened is
// skipped with a warning.
func createEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	if err := ensureParentDir(cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	var journal state.Store
	if cfg.StatePath != "" {
		if err := ensureParentDir(cfg.StatePath); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		store := state.NewSQLiteStore(logger)
		if err := store.Open(ctx, cfg.StatePath); err != nil {
			logger.Warn("flow journal disabled", "path", cfg.StatePath, "error", err)
		} else {
			journal = store
		}
	}

	return engine.New(engine.Config{
		AdapterConfig: cfg.AdapterConfig(),
		ScriptsDir:    cfg.ScriptsDir,
		Journal:       journal,
		Logger:        logger,
	}), nil
}

func ensureParentDir(path string) error {
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o750)
}

// reportErrors writes each statement error and returns a summary error, or
// nil when errs is empty.
func reportErrors(r *output.Renderer, what string, errs vault.Errors) error {
	if len(errs) == 0 {
		return nil
	}
	if !r.IsJSON() {
		for _, e := range errs {
			r.Error(fmt.Sprintf("%s\n  %s", statementSummary(e.Statement), e.Message))
		}
	}
	return fmt.Errorf("%s failed with %d error(s)", what, len(errs))
}

// statementSummary returns the first line of stmt, shortened.
func statementSummary(stmt string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(stmt), "\n")
	if len(line) > 100 {
		line = line[:97] + "..."
	}
	return line
}

var loadDateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

// parseLoadDate parses a --load-date value. Empty yields the zero time,
// which lets the engine use the current time.
func parseLoadDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range loadDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid load date %q (want RFC 3339 or YYYY-MM-DD[ HH:MM:SS])", s)
}

// formatTime renders a timestamp for tables.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
