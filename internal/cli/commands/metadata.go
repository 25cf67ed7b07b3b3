package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapvault/internal/metadata"
	"github.com/spf13/cobra"
)

// NewMetadataCommand creates the metadata command group.
func NewMetadataCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Load or inspect the vault metadata",
	}
	cmd.AddCommand(newMetadataLoadCommand(), newMetadataShowCommand())
	return cmd
}

func newMetadataLoadCommand() *cobra.Command {
	var tables, transitions string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Replace the stored metadata from files",
		Long: `Truncate and reload metadata.tables and/or metadata.transitions.

CSV files are bulk loaded by the database; .yaml files hold a document with
tables and transitions lists. A relation whose file is not given is left
untouched.`,
		Example: `  leapvault metadata load --tables meta/tables.csv --transitions meta/transitions.csv
  leapvault metadata load --tables meta/vault.yaml --transitions meta/vault.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tablesPath, transitionsPath := metadataPaths(cc, tables, transitions)
			if tablesPath == "" && transitionsPath == "" {
				return fmt.Errorf("no metadata files given (use --tables/--transitions or metadata in leapvault.yaml)")
			}
			if err := reportErrors(cc.Renderer, "metadata load", cc.Engine.LoadMetadata(cmd.Context(), tablesPath, transitionsPath)); err != nil {
				return err
			}
			if !cc.Renderer.IsJSON() {
				cc.Renderer.Success("metadata loaded")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tables, "tables", "", "Table metadata file (.csv or .yaml)")
	cmd.Flags().StringVar(&transitions, "transitions", "", "Transition metadata file (.csv or .yaml)")
	return cmd
}

func newMetadataShowCommand() *cobra.Command {
	var (
		base, kind, source string
		showTransitions    bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show stored table or transition metadata",
		Example: `  leapvault metadata show --kind hub
  leapvault metadata show --transitions --source customer -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			ctx := cmd.Context()
			r := cc.Renderer

			if showTransitions {
				ts, err := cc.Engine.Transitions(ctx, source)
				if err != nil {
					return err
				}
				if r.IsJSON() {
					return r.JSON(ts)
				}
				rows := make([][]any, len(ts))
				for i, t := range ts {
					rows[i] = []any{t.SourceEntity, t.SourceField, t.TargetEntity, t.TargetField, t.GroupName, t.Position, t.Raw, t.Transformation, t.Kind}
				}
				r.Table([]string{"source", "field", "target", "target field", "group", "pos", "raw", "transformation", "type"}, rows)
				return nil
			}

			filter := metadata.TableFilter{Name: base}
			if kind != "" {
				k, err := metadata.ParseEntityKind(kind)
				if err != nil {
					return err
				}
				filter.Kind = k
			}
			cols, err := cc.Engine.Tables(ctx, filter)
			if err != nil {
				return err
			}
			if r.IsJSON() {
				return r.JSON(cols)
			}
			rows := make([][]any, len(cols))
			for i, c := range cols {
				rows[i] = []any{c.EntityName, c.EntityKind, c.ColumnName, c.ColumnType, c.Position, c.Role}
			}
			r.Table([]string{"base", "kind", "column", "type", "pos", "mapping"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showTransitions, "transitions", false, "Show field transitions instead of table columns")
	cmd.Flags().StringVar(&base, "base", "", "Only rows of this base name")
	cmd.Flags().StringVar(&kind, "kind", "", "Only rows of this entity kind (hub, link, nhl, hsat, lsat, stg, stg_vw)")
	cmd.Flags().StringVar(&source, "source", "", "Only transitions of this source (with --transitions)")
	return cmd
}
