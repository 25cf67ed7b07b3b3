package commands

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/leapstack-labs/leapvault/internal/cli/config"
	"github.com/leapstack-labs/leapvault/internal/engine"
	"github.com/leapstack-labs/leapvault/internal/vault"
	"github.com/spf13/cobra"
)

// WatchOptions holds options for the watch command.
type WatchOptions struct {
	Dir     string
	Sources []string
	Once    bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Load files dropped into a directory",
		Long: `Watch a drop directory and run the load flow for every file whose name matches
a source pattern. Existing files are processed first, in name order. Files
are loaded one at a time; files that already loaded successfully are
skipped.

Patterns come from sources.<name>.pattern in leapvault.yaml, else from
watch.pattern with {source} replaced by the source name. Without --source or
watch.sources every configured source is watched, falling back to every
source named by the transition metadata.`,
		Example: `  leapvault watch --dir /data/incoming
  leapvault watch --source customer --source purchase --once`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "Drop directory (default from watch.dir)")
	cmd.Flags().StringSliceVar(&opts.Sources, "source", nil, "Source to watch (repeatable)")
	cmd.Flags().BoolVar(&opts.Once, "once", false, "Process existing files and exit")
	return cmd
}

func runWatch(cmd *cobra.Command, opts *WatchOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := cc.Cfg.Watch.Dir
	if opts.Dir != "" {
		if dir, err = filepath.Abs(opts.Dir); err != nil {
			return fmt.Errorf("failed to resolve %s: %w", opts.Dir, err)
		}
	}

	names := opts.Sources
	if len(names) == 0 {
		if names, err = configuredSources(cc.Cfg, func() ([]string, error) { return cc.Engine.Sources(ctx) }); err != nil {
			return err
		}
	}
	sources := make([]engine.WatchSource, len(names))
	for i, name := range names {
		sources[i] = engine.WatchSource{
			Source:       name,
			Pattern:      cc.Cfg.PatternFor(name),
			RecordSource: cc.Cfg.RecordSourceFor(name),
		}
	}

	r := cc.Renderer
	var failed int
	w, err := engine.NewWatcher(cc.Engine, engine.WatchConfig{
		Dir:     dir,
		Sources: sources,
		Settle:  cc.Cfg.Watch.Interval,
		OnFlow: func(path string, result *engine.FlowResult, errs vault.Errors) {
			if len(errs) > 0 {
				failed++
			}
			if err := renderFlow(r, path, result, errs); err != nil {
				cc.Logger.Warn("failed to render flow", "error", err)
			}
			_ = reportErrors(r, "run "+result.Source, errs)
		},
	})
	if err != nil {
		return err
	}

	if opts.Once {
		if err := w.Scan(ctx); err != nil {
			return err
		}
	} else {
		if !r.IsJSON() {
			r.StatusLine("watch", fmt.Sprintf("%s for %d source(s), Ctrl-C to stop", dir, len(sources)))
		}
		if err := w.Run(ctx); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d flow(s) failed", failed)
	}
	return nil
}

// configuredSources returns watch.sources, else the keys of sources, else
// the sources named by the stored metadata.
func configuredSources(cfg *config.Config, fromMetadata func() ([]string, error)) ([]string, error) {
	if len(cfg.Watch.Sources) > 0 {
		return cfg.Watch.Sources, nil
	}
	if len(cfg.Sources) > 0 {
		names := make([]string, 0, len(cfg.Sources))
		for name := range cfg.Sources {
			names = append(names, name)
		}
		slices.Sort(names)
		return names, nil
	}
	names, err := fromMetadata()
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return names, nil
}
