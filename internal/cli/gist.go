package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdejongh/remotesync/pkg/config"
)

// NewGistCommand creates the gist command
func NewGistCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gist",
		Short: "Manage the backing GitHub Gist",
	}

	cmd.AddCommand(newGistCreateCommand())

	return cmd
}

func newGistCreateCommand() *cobra.Command {
	var (
		description string
		public      bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a gist and save its id in the configuration",
		Long: `Create a new gist with the configured token and store its id as gist.id,
so later push and pull commands use it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			s, cleanup, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			g, ok := s.Gist()
			if !ok {
				return fmt.Errorf("configured service is %s, not %s", s.Provider().Name(), config.ServiceGist)
			}
			if g.GistID() != "" && !force {
				return fmt.Errorf("gist id already configured (%s); use --force to replace it", g.GistID())
			}

			if err := g.Connect(ctx); err != nil {
				return err
			}
			id, err := g.Create(ctx, description, public)
			if err != nil {
				return err
			}

			store, err := configStore()
			if err != nil {
				return err
			}
			if err := store.Set("gist.id", id); err != nil {
				return fmt.Errorf("gist %s created but not saved: %w", id, err)
			}

			if !globalFlags.Quiet {
				fmt.Printf("Created gist %s (saved to %s)\n", id, store.Path())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "remotesync", "gist description")
	cmd.Flags().BoolVar(&public, "public", false, "create a public gist")
	cmd.Flags().BoolVar(&force, "force", false, "replace an already configured gist id")

	return cmd
}
