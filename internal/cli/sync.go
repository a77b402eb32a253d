package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sdejongh/remotesync/pkg/config"
	"github.com/sdejongh/remotesync/pkg/logging"
	"github.com/sdejongh/remotesync/pkg/models"
	"github.com/sdejongh/remotesync/pkg/output"
	"github.com/sdejongh/remotesync/pkg/session"
)

// SyncFlags holds push/pull command flags
type SyncFlags struct {
	Comparison   string
	DryRun       bool
	Parallel     int
	Bandwidth    string
	Exclude      []string
	Output       string
	Report       string
	ReportFormat string
	// Logging flags
	LogFile   string
	LogFormat string
	LogLevel  string
}

var syncFlags SyncFlags

// NewPushCommand creates the push command
func NewPushCommand() *cobra.Command {
	return newTransferCommand(models.DirectionUpload, &cobra.Command{
		Use:   "push [paths...]",
		Short: "Upload local files to the remote",
		Long: `Upload files below the local root to the configured remote.
Paths are relative to the root; a directory selects every file below it.
Without paths every local file is uploaded.`,
	})
}

// NewPullCommand creates the pull command
func NewPullCommand() *cobra.Command {
	return newTransferCommand(models.DirectionDownload, &cobra.Command{
		Use:   "pull [paths...]",
		Short: "Download remote files into the local root",
		Long: `Download files from the configured remote into the local root,
creating parent directories. Paths select remote files or directories;
without paths every remote file is downloaded. Local files are overwritten.`,
	})
}

func newTransferCommand(direction models.Direction, cmd *cobra.Command) *cobra.Command {
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runTransfer(cmd, direction, args, syncFlags.DryRun)
	}
	addSyncFlags(cmd)
	cmd.Flags().BoolVar(&syncFlags.DryRun, "dry-run", false, "list what would be transferred without transferring")
	return cmd
}

// addSyncFlags registers the flags shared by push, pull and compare
func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&syncFlags.Comparison, "comparison", "", "skip unchanged files: none, namesize, timestamp")
	cmd.Flags().IntVarP(&syncFlags.Parallel, "parallel", "p", 0, "number of parallel transfers when the remote allows it")
	cmd.Flags().StringVarP(&syncFlags.Bandwidth, "bandwidth", "b", "", "bandwidth limit per second (e.g. \"512KiB\", \"10MiB\")")
	cmd.Flags().StringSliceVar(&syncFlags.Exclude, "exclude", []string{}, "glob patterns to exclude (replaces configured patterns)")
	cmd.Flags().StringVarP(&syncFlags.Output, "output", "o", "", "output format: human, json")
	cmd.Flags().StringVar(&syncFlags.Report, "report", "", "write a per-file report to this file")
	cmd.Flags().StringVar(&syncFlags.ReportFormat, "report-format", "human", "per-file report format: human, json")

	// Logging flags
	cmd.Flags().StringVar(&syncFlags.LogFile, "log-file", "", "write logs to file")
	cmd.Flags().StringVar(&syncFlags.LogFormat, "log-format", "", "log file format: text, json")
	cmd.Flags().StringVar(&syncFlags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
}

func runTransfer(cmd *cobra.Command, direction models.Direction, paths []string, dryRun bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := validateSyncFlags(); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := createLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	s, err := session.New(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	formatter, err := createFormatter(cfg)
	if err != nil {
		return err
	}

	engine, err := s.NewEngine(formatter, s.NewOperation(direction, paths, dryRun))
	if err != nil {
		return fmt.Errorf("failed to create sync operation: %w", err)
	}

	result := <-engine.Start(ctx)
	report := result.Report

	if syncFlags.Report != "" {
		if err := output.WriteOutcomesReport(report, syncFlags.Report, syncFlags.ReportFormat); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	code := report.Status.ExitCode()
	if code == 0 {
		return nil
	}
	exitErr := &ExitError{Code: code}
	if result.Err != nil && formatter == nil {
		exitErr.Err = result.Err
	}
	return exitErr
}

// createFormatter returns nil in quiet human mode
func createFormatter(cfg *config.Config) (output.Formatter, error) {
	if cfg.Output.Quiet && cfg.Output.Format == "human" {
		return nil, nil
	}
	return output.New(cfg.Output.Format, os.Stdout, cfg.Output.Progress)
}

// createLogger logs warnings (everything with -v) to stderr and, when a log
// file is configured, to that file as well
func createLogger(cfg *config.Config) (logging.Logger, error) {
	consoleLevel := logging.WarnLevel
	switch {
	case globalFlags.Verbose:
		consoleLevel = logging.DebugLevel
	case globalFlags.Quiet:
		consoleLevel = logging.ErrorLevel
	}
	console := logging.NewConsoleLogger(os.Stderr, consoleLevel)

	if cfg.Logging.File == "" {
		return console, nil
	}

	format := logging.FormatText
	if cfg.Logging.Format == "json" {
		format = logging.FormatJSON
	}

	file, err := logging.NewFileLogger(logging.FileLoggerConfig{
		Path:       cfg.Logging.File,
		Format:     format,
		Level:      logging.ParseLevel(cfg.Logging.Level),
		MaxSize:    10 * 1024 * 1024, // 10 MB
		MaxBackups: 5,
	})
	if err != nil {
		return nil, err
	}

	return logging.NewMultiLogger(console, file), nil
}
