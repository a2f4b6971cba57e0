package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root fuelgate command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fuelgate",
		Short: "Gated HTTP endpoint for a single shared CSV file",
		Long: `Fuelgate serves one CSV file produced by an external writer to a fixed set
of client machines. Clients must come from an allowed address and present
Basic credentials; repeated failures lock the address out. Reads wait while
the writer's busy marker file exists.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newAuditCmd(),
		newFetchCmd(),
		newInitCmd(),
	)

	return root
}
