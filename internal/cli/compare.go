package cli

import (
	"github.com/spf13/cobra"
)

var compareDirection string

// NewCompareCommand creates the compare command
func NewCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [paths...]",
		Short: "Show what a push or pull would transfer (dry-run)",
		Long: `Resolve the selection against the local root and the remote and report
which files a push or pull would transfer, without transferring anything.
This is equivalent to push --dry-run or pull --dry-run. Combine it with
--comparison to see which files are already up to date.`,
		RunE: runCompare,
	}

	cmd.Flags().StringVarP(&compareDirection, "direction", "d", "push", "direction to compare: push, pull")
	addSyncFlags(cmd)

	return cmd
}

func runCompare(cmd *cobra.Command, args []string) error {
	direction, err := parseDirection(compareDirection)
	if err != nil {
		return err
	}

	// Force dry-run mode for compare command
	return runTransfer(cmd, direction, args, true)
}
