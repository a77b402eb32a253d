package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// GlobalFlags holds global flag values
type GlobalFlags struct {
	ConfigFile string
	Root       string
	Verbose    bool
	Quiet      bool
}

var globalFlags GlobalFlags

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&globalFlags.ConfigFile,
		"config",
		"",
		"config file (default is $HOME/.config/remotesync/config.yaml)",
	)
	cmd.PersistentFlags().StringVar(
		&globalFlags.Root,
		"root",
		"",
		"local directory synced paths are relative to (overrides config root)",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Verbose,
		"verbose",
		"v",
		false,
		"verbose output",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Quiet,
		"quiet",
		"q",
		false,
		"suppress non-error output",
	)
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() *GlobalFlags {
	return &globalFlags
}

// flagKeys maps command-line flags onto the configuration keys they override
var flagKeys = map[string]string{
	"root":       "root",
	"parallel":   "sync.max_workers",
	"comparison": "sync.comparison",
	"bandwidth":  "sync.bandwidth_limit",
	"output":     "output.format",
	"log-file":   "logging.file",
	"log-format": "logging.format",
	"log-level":  "logging.level",
}

// ExitError carries a process exit code out of a command. Err is set when
// the failure has not been reported to the user yet.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
