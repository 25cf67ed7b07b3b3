package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapvault/internal/engine"
	"github.com/spf13/cobra"
)

// InitOptions holds options for the init command.
type InitOptions struct {
	MetaOnly    bool
	Tables      string
	Transitions string
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	opts := &InitOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Bootstrap the vault database",
		Long: `Create the stg, dv, bv, dm and metadata schemas and the metadata tables.

When metadata files are given (by flag or the metadata section of
leapvault.yaml) the stored metadata is replaced by their contents. Unless
--meta-only is set, every staging table, staging script, hub, link,
satellite and current view described by the metadata is then created.`,
		Example: `  # Bootstrap from CSV metadata
  leapvault init --tables meta/tables.csv --transitions meta/transitions.csv

  # Only (re)load the metadata
  leapvault init --meta-only --tables meta/vault.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.MetaOnly, "meta-only", false, "Only create schemas and metadata tables")
	cmd.Flags().StringVar(&opts.Tables, "tables", "", "Table metadata file (.csv or .yaml)")
	cmd.Flags().StringVar(&opts.Transitions, "transitions", "", "Transition metadata file (.csv or .yaml)")

	return cmd
}

func runInit(cmd *cobra.Command, opts *InitOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	tables, transitions := metadataPaths(cc, opts.Tables, opts.Transitions)
	errs := cc.Engine.Init(cmd.Context(), engine.InitOptions{
		MetaOnly:        opts.MetaOnly,
		TablesPath:      tables,
		TransitionsPath: transitions,
	})

	r := cc.Renderer
	if r.IsJSON() {
		if err := r.JSON(map[string]any{"meta_only": opts.MetaOnly, "errors": errs}); err != nil {
			return err
		}
		return reportErrors(r, "init", errs)
	}
	if err := reportErrors(r, "init", errs); err != nil {
		return err
	}

	r.Success(fmt.Sprintf("vault initialized in %s", cc.Cfg.AdapterConfig().Path))
	return nil
}

// metadataPaths returns the flag paths, falling back to the configured
// metadata files.
func metadataPaths(cc *CommandContext, tables, transitions string) (string, string) {
	if tables == "" {
		tables = cc.Cfg.Metadata.Tables
	}
	if transitions == "" {
		transitions = cc.Cfg.Metadata.Transitions
	}
	return tables, transitions
}
