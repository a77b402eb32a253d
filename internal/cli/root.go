package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdejongh/remotesync/pkg/transport"
)

// NewRootCommand assembles the remotesync command tree
func NewRootCommand() *cobra.Command {
	transport.Version = Version

	rootCmd := &cobra.Command{
		Use:   "remotesync",
		Short: "Push and pull local files to a GitHub Gist or a WebDAV server",
		Long: `remotesync transfers a tree of local files to and from a remote storage
backend. Supported backends are a single GitHub Gist and a WebDAV collection.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	AddGlobalFlags(rootCmd)

	// Add commands
	rootCmd.AddCommand(NewConnectCommand())
	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewPushCommand())
	rootCmd.AddCommand(NewPullCommand())
	rootCmd.AddCommand(NewCompareCommand())
	rootCmd.AddCommand(NewGistCommand())
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}
