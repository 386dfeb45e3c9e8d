package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bhandras/delaydeck/internal/version"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Overrides the root hook so a broken config does not hide the
		// version.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "delaydeck %s\n", version.Full())
			return err
		},
	}
}
