package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/sdejongh/remotesync/pkg/config"
	"github.com/sdejongh/remotesync/pkg/transport"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// buildInfo is what the version command reports
type buildInfo struct {
	Version   string   `json:"version"`
	Commit    string   `json:"commit"`
	BuildDate string   `json:"build_date"`
	GoVersion string   `json:"go_version"`
	Platform  string   `json:"platform"`
	UserAgent string   `json:"user_agent"`
	Services  []string `json:"services"`
}

func currentBuildInfo() buildInfo {
	return buildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		UserAgent: transport.DefaultUserAgent(),
		Services:  []string{config.ServiceGist, config.ServiceWebDAV},
	}
}

func writeBuildInfo(w io.Writer, info buildInfo, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "human":
		fmt.Fprintf(w, "remotesync %s\n", info.Version)
		fmt.Fprintf(w, "  Commit:     %s\n", info.Commit)
		fmt.Fprintf(w, "  Built:      %s\n", info.BuildDate)
		fmt.Fprintf(w, "  Go version: %s\n", info.GoVersion)
		fmt.Fprintf(w, "  OS/Arch:    %s\n", info.Platform)
		fmt.Fprintf(w, "  User-Agent: %s\n", info.UserAgent)
		fmt.Fprintf(w, "  Services:   %s, %s\n", info.Services[0], info.Services[1])
		return nil
	default:
		return fmt.Errorf("invalid output format: %s (valid: human, json)", format)
	}
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	var (
		short  bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the build version, commit and Go version, plus the User-Agent
sent to remote services.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), Version)
				return nil
			}
			return writeBuildInfo(cmd.OutOrStdout(), currentBuildInfo(), format)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "print only the version number")
	cmd.Flags().StringVarP(&format, "output", "o", "human", "output format: human, json")

	return cmd
}
