package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/leapstack-labs/leapvault/internal/metadata"
	"github.com/leapstack-labs/leapvault/internal/state"
	"github.com/spf13/cobra"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var (
		source string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List run history",
		Long: `List metadata.runinfo records, newest run first. Every run has a start record
followed by a success or failure record.`,
		Example: `  leapvault runs --source customer --limit 20
  leapvault runs show 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			runs, err := cc.Engine.Runs(cmd.Context(), metadata.RunFilter{Source: source, Limit: limit})
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.IsJSON() {
				return r.JSON(runs)
			}
			rows := make([][]any, len(runs))
			for i, run := range runs {
				rows[i] = []any{run.RunID, run.SourceEntity, run.Status, formatTime(run.LogDate), run.SourceFile, statementSummary(run.Message)}
			}
			r.Table([]string{"run", "source", "status", "logged", "file", "message"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Only runs of this source")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of records (0 for all)")
	cmd.AddCommand(newRunsShowCommand())
	return cmd
}

func newRunsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the records and journaled stages of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || runID <= 0 {
				return fmt.Errorf("invalid run id %q", args[0])
			}

			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			ctx := cmd.Context()

			runs, err := cc.Engine.Runs(ctx, metadata.RunFilter{RunID: runID})
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				return fmt.Errorf("run %d not found", runID)
			}
			stages, err := cc.Engine.Stages(ctx, state.StageFilter{RunID: runID})
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.IsJSON() {
				return r.JSON(map[string]any{"records": runs, "stages": stages})
			}

			latest := runs[0]
			r.Header(fmt.Sprintf("Run %d", runID))
			r.KeyValue("source", latest.SourceEntity)
			r.KeyValue("status", latest.Status)
			if latest.SourceFile != "" {
				r.KeyValue("file", latest.SourceFile)
			}
			r.KeyValue("logged", formatTime(latest.LogDate))
			if latest.Message != "" {
				r.KeyValue("message", latest.Message)
			}
			r.Println()

			if cc.Cfg.StatePath == "" {
				r.Warning("no journal configured, stage details unavailable")
				return nil
			}
			rows := make([][]any, len(stages))
			for i, s := range stages {
				rows[i] = []any{s.Stage, s.Statements, s.Errors, s.Duration.Round(time.Millisecond), formatTime(s.StartedAt), statementSummary(s.FirstError)}
			}
			r.Table([]string{"stage", "statements", "errors", "duration", "started", "first error"}, rows)
			return nil
		},
	}
}
