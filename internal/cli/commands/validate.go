package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the stored metadata for configuration errors",
		Long: `Check metadata.tables and metadata.transitions for problems that would make
entity creation or loading fail: unknown kinds, satellites without exactly
one hash key column, link keys referencing unknown groups, duplicate
positions and satellite markers without payload.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			problems, err := cc.Engine.Validate(cmd.Context())
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.IsJSON() {
				if err := r.JSON(problems); err != nil {
					return err
				}
			} else if len(problems) == 0 {
				r.Success("metadata is valid")
			} else {
				rows := make([][]any, len(problems))
				for i, p := range problems {
					rows[i] = []any{p.Entity, p.Reason}
				}
				r.Table([]string{"entity", "problem"}, rows)
			}

			if len(problems) > 0 {
				return fmt.Errorf("metadata has %d problem(s)", len(problems))
			}
			return nil
		},
	}
}
