package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sdejongh/remotesync/pkg/config"
	"github.com/sdejongh/remotesync/pkg/models"
)

// envPrefix namespaces environment overrides: REMOTESYNC_GIST_TOKEN sets gist.token
const envPrefix = "REMOTESYNC"

// configStore returns the store for --config or the default location
func configStore() (*config.FileStore, error) {
	if globalFlags.ConfigFile != "" {
		return config.NewFileStore(globalFlags.ConfigFile), nil
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return config.NewFileStore(path), nil
}

// loadConfig loads the stored configuration and applies environment and
// flag overrides, in that order of precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	store, err := configStore()
	if err != nil {
		return nil, err
	}
	cfg, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyOverrides(cmd, cfg); err != nil {
		return nil, err
	}
	applyGlobalFlags(cfg)
	return cfg, nil
}

// applyOverrides lets viper resolve every configuration key from changed
// flags first, then REMOTESYNC_* environment variables.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for name, key := range flagKeys {
			flag := cmd.Flags().Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	for _, key := range config.Keys() {
		if !v.IsSet(key) {
			continue
		}
		if err := config.SetKey(cfg, key, v.GetString(key)); err != nil {
			return err
		}
	}

	if cmd != nil {
		if flag := cmd.Flags().Lookup("exclude"); flag != nil && flag.Changed {
			cfg.Sync.Exclude = append([]string(nil), syncFlags.Exclude...)
		}
	}
	return nil
}

// applyGlobalFlags applies -q and -v
func applyGlobalFlags(cfg *config.Config) {
	// Disable progress in quiet mode
	if globalFlags.Quiet {
		cfg.Output.Progress = false
		cfg.Output.Quiet = true
	}

	if globalFlags.Verbose {
		cfg.Logging.Level = "debug"
	}
}

// validateSyncFlags validates flags the configuration does not cover
func validateSyncFlags() error {
	if syncFlags.ReportFormat != "human" && syncFlags.ReportFormat != "json" {
		return fmt.Errorf("invalid report format: %s (valid: human, json)", syncFlags.ReportFormat)
	}
	if globalFlags.Quiet && globalFlags.Verbose {
		return fmt.Errorf("--quiet and --verbose cannot be combined")
	}
	for _, p := range syncFlags.Exclude {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("exclude patterns cannot be empty")
		}
	}
	return nil
}

func parseDirection(s string) (models.Direction, error) {
	switch strings.ToLower(s) {
	case "push", "upload":
		return models.DirectionUpload, nil
	case "pull", "download":
		return models.DirectionDownload, nil
	default:
		return "", fmt.Errorf("invalid direction: %s (valid: push, pull)", s)
	}
}
