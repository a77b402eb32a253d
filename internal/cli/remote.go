package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/sdejongh/remotesync/pkg/provider"
	"github.com/sdejongh/remotesync/pkg/session"
)

// NewConnectCommand creates the connect command
func NewConnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Check the configured credentials against the remote",
		Long: `Issue the backend's lightweight authenticated probe. Nothing on the
remote is modified.`,
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

			if err := s.Provider().Connect(ctx); err != nil {
				return err
			}
			if !globalFlags.Quiet {
				fmt.Printf("Connected to %s\n", s.Provider().Name())
			}
			return nil
		},
	}
}

// NewListCommand creates the list command
func NewListCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list [path]",
		Short: "List remote files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			scope := ""
			if len(args) == 1 {
				var err error
				if scope, err = provider.CleanScope(args[0]); err != nil {
					return err
				}
			}

			s, cleanup, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			p := s.Provider()
			if err := p.Connect(ctx); err != nil {
				return err
			}
			entries, err := p.List(ctx, scope)
			if err != nil {
				return err
			}

			// flat backends ignore the scope
			filtered := entries[:0]
			for _, e := range entries {
				if provider.Within(e.Path, scope) {
					filtered = append(filtered, e)
				}
			}

			switch format {
			case "json":
				return writeEntriesJSON(os.Stdout, filtered)
			case "human":
				return writeEntries(os.Stdout, filtered)
			default:
				return fmt.Errorf("invalid output format: %s (valid: human, json)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "human", "output format: human, json")
	return cmd
}

func writeEntries(w io.Writer, entries []provider.RemoteEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No remote files.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		size := "-"
		if e.Size >= 0 {
			size = humanize.IBytes(uint64(e.Size))
		}
		modified := "-"
		if !e.ModTime.IsZero() {
			modified = e.ModTime.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", size, modified, e.Path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d file(s)\n", len(entries))
	return err
}

type entryJSON struct {
	Path    string `json:"path"`
	Size    *int64 `json:"size,omitempty"`
	ETag    string `json:"etag,omitempty"`
	ModTime string `json:"mod_time,omitempty"`
}

func writeEntriesJSON(w io.Writer, entries []provider.RemoteEntry) error {
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		item := entryJSON{Path: e.Path, ETag: e.ETag}
		if e.Size >= 0 {
			size := e.Size
			item.Size = &size
		}
		if !e.ModTime.IsZero() {
			item.ModTime = e.ModTime.UTC().Format(time.RFC3339)
		}
		out = append(out, item)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// openSession loads the configuration and builds a session with a console
// logger. cleanup closes both.
func openSession(cmd *cobra.Command) (*session.Session, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := createLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	s, err := session.New(cfg, logger)
	if err != nil {
		logger.Close()
		return nil, nil, err
	}
	return s, func() {
		s.Close()
		logger.Close()
	}, nil
}
