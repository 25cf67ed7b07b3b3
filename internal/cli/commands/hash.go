package commands

import (
	"github.com/leapstack-labs/leapvault/internal/vault"
	"github.com/spf13/cobra"
)

// NewHashCommand creates the hash command.
func NewHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <source>",
		Short: "Recreate the hash view of a source",
		Long: `Recreate stg.<source>_hash, the view exposing the source's columns together
with every hash key and hash diff its transitions require.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := reportErrors(cc.Renderer, "hash", cc.Engine.ComputeHashView(cmd.Context(), args[0])); err != nil {
				return err
			}
			if !cc.Renderer.IsJSON() {
				cc.Renderer.Success("created " + vault.HashViewName(args[0]))
			}
			return nil
		},
	}
}
