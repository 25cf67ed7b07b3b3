package engine

// watch.go - Drop-directory ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/leapvault/internal/vault"
)

// WatchSource routes files matching Pattern (a filepath.Match glob on the
// base name) to a flow for Source.
type WatchSource struct {
	Source       string
	Pattern      string
	RecordSource string
}

// WatchConfig configures a Watcher.
type WatchConfig struct {
	Dir     string
	Sources []WatchSource
	// Settle is how long a file must stay unchanged before it is loaded.
	Settle time.Duration
	// OnFlow is called after every flow (optional).
	OnFlow func(path string, result *FlowResult, errs vault.Errors)
}

// Watcher loads files dropped into a directory, one at a time.
type Watcher struct {
	engine  *Engine
	cfg     WatchConfig
	pending map[string]time.Time
}

// NewWatcher validates cfg and creates a watcher.
func NewWatcher(e *Engine, cfg WatchConfig) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("at least one watch source is required")
	}
	for _, s := range cfg.Sources {
		if _, err := filepath.Match(s.Pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q for source %s: %w", s.Pattern, s.Source, err)
		}
	}
	if cfg.Settle <= 0 {
		cfg.Settle = time.Second
	}
	return &Watcher{engine: e, cfg: cfg, pending: make(map[string]time.Time)}, nil
}

// Match returns the first source whose pattern matches the base name of
// path.
func (w *Watcher) Match(path string) (WatchSource, bool) {
	name := filepath.Base(path)
	for _, s := range w.cfg.Sources {
		if ok, _ := filepath.Match(s.Pattern, name); ok {
			return s, true
		}
	}
	return WatchSource{}, false
}

// Process runs the flow for path if it matches a source.
func (w *Watcher) Process(ctx context.Context, path string) (*FlowResult, vault.Errors, bool) {
	src, ok := w.Match(path)
	if !ok {
		return nil, nil, false
	}

	result, errs := w.engine.ExecuteFlow(ctx, FlowRequest{
		Source:       src.Source,
		RecordSource: src.RecordSource,
		FilePath:     path,
	})
	if w.cfg.OnFlow != nil {
		w.cfg.OnFlow(path, result, errs)
	}
	return result, errs, true
}

// Scan processes the files already in the directory in name order.
func (w *Watcher) Scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("failed to read watch directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		w.Process(ctx, filepath.Join(w.cfg.Dir, entry.Name()))
	}
	return nil
}

// Run scans the directory, then processes new or rewritten files until ctx
// is done. Flows never overlap.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.cfg.Dir, err)
	}

	if err := w.Scan(ctx); err != nil {
		return err
	}

	w.engine.logger.Info("watching for files", slog.String("dir", w.cfg.Dir))

	ticker := time.NewTicker(w.cfg.Settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if _, ok := w.Match(event.Name); !ok {
				continue
			}
			w.pending[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.engine.logger.Warn("watcher error", slog.String("error", err.Error()))

		case now := <-ticker.C:
			for _, path := range w.settled(now) {
				delete(w.pending, path)
				w.Process(ctx, path)
			}
		}
	}
}

// settled returns pending paths unchanged for the settle period, sorted.
func (w *Watcher) settled(now time.Time) []string {
	var out []string
	for path, seen := range w.pending {
		if now.Sub(seen) >= w.cfg.Settle {
			out = append(out, path)
		}
	}
	slices.Sort(out)
	return out
}
