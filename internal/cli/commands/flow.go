package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/leapvault/internal/cli/output"
	"github.com/leapstack-labs/leapvault/internal/engine"
	"github.com/leapstack-labs/leapvault/internal/vault"
	"github.com/spf13/cobra"
)

// FlowOptions holds options shared by the run and load commands.
type FlowOptions struct {
	File         string
	Force        bool
	LoadDate     string
	RecordSource string
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &FlowOptions{}

	cmd := &cobra.Command{
		Use:   "run <source>",
		Short: "Run the full load flow of a source",
		Long: `Execute the load flow of a source: register a run, load the file into the
staging table, recompute the hash view, then load hubs, links and satellites.

A file that already loaded successfully for the source is skipped unless
--force is given. The first failing stage ends the run with a failure
record; earlier stages are not rolled back.`,
		Example: `  # Load a delivery file
  leapvault run customer --file drop/customer_2024-01-01.csv

  # Reload it with a fixed load date
  leapvault run customer --file drop/customer_2024-01-01.csv --force --load-date 2024-01-01

  # Load whatever is in stg.customer
  leapvault run customer`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlow(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Source file to stage before loading")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Reload a file that already loaded successfully")
	addLoadFlags(cmd, opts)
	return cmd
}

// NewLoadCommand creates the load command.
func NewLoadCommand() *cobra.Command {
	opts := &FlowOptions{}

	cmd := &cobra.Command{
		Use:   "load <source>",
		Short: "Load the vault from the current staging data of a source",
		Long: `Register a run and load hubs, links and satellites from the rows already in
stg.<source>. No file is staged and no idempotency check is made.`,
		Example: `  leapvault load customer --record-source crm`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlow(cmd, args[0], opts)
		},
	}

	addLoadFlags(cmd, opts)
	return cmd
}

func addLoadFlags(cmd *cobra.Command, opts *FlowOptions) {
	cmd.Flags().StringVar(&opts.LoadDate, "load-date", "", "Override load_dts (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.RecordSource, "record-source", "", "Override record_source (default from config, else the source name)")
}

func runFlow(cmd *cobra.Command, source string, opts *FlowOptions) error {
	loadDate, err := parseLoadDate(opts.LoadDate)
	if err != nil {
		return err
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	req := engine.FlowRequest{
		Source:       source,
		RecordSource: opts.RecordSource,
		LoadDate:     loadDate,
		Force:        opts.Force,
	}
	if req.RecordSource == "" {
		req.RecordSource = cc.Cfg.RecordSourceFor(source)
	}
	if opts.File != "" {
		if req.FilePath, err = filepath.Abs(opts.File); err != nil {
			return fmt.Errorf("failed to resolve %s: %w", opts.File, err)
		}
	}

	start := time.Now()
	result, errs := cc.Engine.ExecuteFlow(cmd.Context(), req)
	if err := renderFlow(cc.Renderer, req.FilePath, result, errs); err != nil {
		return err
	}
	if !cc.Renderer.IsJSON() && len(errs) == 0 {
		cc.Renderer.Printf("Completed in %s\n", time.Since(start).Round(time.Millisecond))
	}
	return reportErrors(cc.Renderer, "run "+source, errs)
}

// flowOutput is the JSON form of a flow result.
type flowOutput struct {
	*engine.FlowResult
	File   string       `json:"file,omitempty"`
	Errors vault.Errors `json:"errors,omitempty"`
}

// renderFlow writes the outcome of one flow.
func renderFlow(r *output.Renderer, file string, result *engine.FlowResult, errs vault.Errors) error {
	if r.IsJSON() {
		return r.JSON(flowOutput{FlowResult: result, File: file, Errors: errs})
	}

	if result.Skipped {
		r.StatusLine("skipped", fmt.Sprintf("%s: %s already loaded", result.Source, file))
		return nil
	}

	title := "Run of " + result.Source
	if result.RunID > 0 {
		title = fmt.Sprintf("Run %d of %s", result.RunID, result.Source)
	}
	r.Header(title)
	if file != "" {
		r.KeyValue("file", file)
	}

	if len(result.Stages) > 0 {
		rows := make([][]any, len(result.Stages))
		for i, s := range result.Stages {
			rows[i] = []any{s.Stage, s.Statements, s.Errors, s.Duration.Round(time.Millisecond)}
		}
		r.Table([]string{"stage", "statements", "errors", "duration"}, rows)
	}

	status := "success"
	if len(errs) > 0 {
		status = "failure"
	}
	r.StatusLine(status, fmt.Sprintf("%s ended in state %s", result.Source, result.State))
	return nil
}
