package commands

import (
	"fmt"

	"github.com/leapstack-labs/leapvault/internal/engine"
	"github.com/leapstack-labs/leapvault/internal/metadata"
	"github.com/spf13/cobra"
)

// NewCreateCommand creates the create command.
func NewCreateCommand() *cobra.Command {
	var base, kind string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create vault entities from metadata",
		Long: `Create staging tables, staging scripts, hubs, links, satellites and current
views described by the stored metadata. Creation is idempotent.`,
		Example: `  leapvault create
  leapvault create --kind hub
  leapvault create --kind hsat --base customer_details`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := engine.CreateOptions{Base: base}
			if kind != "" {
				k, err := metadata.ParseEntityKind(kind)
				if err != nil {
					return err
				}
				opts.Kind = k
			}

			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := reportErrors(cc.Renderer, "create", cc.Engine.Create(cmd.Context(), opts)); err != nil {
				return err
			}
			if !cc.Renderer.IsJSON() {
				what := "all entities"
				if opts.Kind != "" {
					what = string(opts.Kind) + " entities"
				}
				if base != "" {
					what += " of " + base
				}
				cc.Renderer.Success(fmt.Sprintf("created %s", what))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&base, "base", "", "Only entities with this base name")
	cmd.Flags().StringVar(&kind, "kind", "", "Only entities of this kind (stg, stg_vw, hub, link, nhl, hsat, lsat)")
	return cmd
}
