package config

import (
	"time"

	"github.com/sdejongh/remotesync/pkg/models"
)

// Service names
const (
	ServiceGist   = "gist"
	ServiceWebDAV = "webdav"
)

// Config represents the application configuration
type Config struct {
	// Service selects the remote backend: "gist" or "webdav"
	Service string `yaml:"service"`

	// Root is the local directory logical paths are relative to
	Root string `yaml:"root"`

	Gist      GistConfig      `yaml:"gist"`
	WebDAV    WebDAVConfig    `yaml:"webdav"`
	Transport TransportConfig `yaml:"transport"`
	Sync      SyncConfig      `yaml:"sync"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GistConfig holds the GitHub Gist backend settings
type GistConfig struct {
	Token       string `yaml:"token"`
	ID          string `yaml:"id"` // empty until a gist is created
	APIURL      string `yaml:"api_url"`
	PathPolicy  string `yaml:"path_policy"`   // "reject" or "escape"
	MaxFileSize int64  `yaml:"max_file_size"` // bytes
}

// WebDAVConfig holds the WebDAV backend settings
type WebDAVConfig struct {
	URL           string `yaml:"url"`
	User          string `yaml:"user"`
	Pass          string `yaml:"pass"`
	CreateParents bool   `yaml:"create_parents"`
}

// TransportConfig holds HTTP client settings
type TransportConfig struct {
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxAttempts     int           `yaml:"max_attempts"` // for idempotent requests, 1 disables retries
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	RetryMaxBackoff time.Duration `yaml:"retry_max_backoff"`
}

// SyncConfig holds sync-related settings
type SyncConfig struct {
	MaxWorkers     int                     `yaml:"max_workers"`
	Exclude        []string                `yaml:"exclude"`
	Comparison     models.ComparisonMethod `yaml:"comparison"`
	BandwidthLimit int64                   `yaml:"bandwidth_limit"` // bytes per second, 0 = unlimited
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format"`   // "human" or "json"
	Progress bool   `yaml:"progress"` // Show progress bars
	Quiet    bool   `yaml:"quiet"`    // Suppress non-error output
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	File   string `yaml:"file"`   // Log file path (empty = no file log)
	Format string `yaml:"format"` // "json" or "text"
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Service: ServiceGist,
		Root:    ".",
		Gist: GistConfig{
			APIURL:      "https://api.github.com",
			PathPolicy:  "reject",
			MaxFileSize: 10 * 1024 * 1024,
		},
		Transport: TransportConfig{
			ConnectTimeout:  10 * time.Second,
			Timeout:         5 * time.Minute,
			MaxAttempts:     3,
			RetryBackoff:    500 * time.Millisecond,
			RetryMaxBackoff: 5 * time.Second,
		},
		Sync: SyncConfig{
			MaxWorkers: 1,
			Comparison: models.CompareNone,
			Exclude: []string{
				"*.tmp",
				".git/",
			},
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
		},
		Logging: LoggingConfig{
			Format: "json",
			Level:  "info",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Service != ServiceGist && c.Service != ServiceWebDAV {
		return &models.ValidationError{Field: "service", Message: "must be 'gist' or 'webdav'"}
	}

	if c.Gist.PathPolicy != "" && c.Gist.PathPolicy != "reject" && c.Gist.PathPolicy != "escape" {
		return &models.ValidationError{Field: "gist.path_policy", Message: "must be 'reject' or 'escape'"}
	}
	if c.Gist.MaxFileSize < 0 {
		return &models.ValidationError{Field: "gist.max_file_size", Message: "cannot be negative"}
	}

	if c.Transport.ConnectTimeout < 0 || c.Transport.Timeout < 0 {
		return &models.ValidationError{Field: "transport.timeout", Message: "timeouts cannot be negative"}
	}
	if c.Transport.MaxAttempts < 1 {
		return &models.ValidationError{Field: "transport.max_attempts", Message: "must be at least 1"}
	}
	if c.Transport.RetryBackoff < 0 || c.Transport.RetryMaxBackoff < c.Transport.RetryBackoff {
		return &models.ValidationError{Field: "transport.retry_backoff", Message: "backoff must be non-negative and not exceed retry_max_backoff"}
	}

	if c.Sync.MaxWorkers < 1 {
		return &models.ValidationError{Field: "sync.max_workers", Message: "must be at least 1"}
	}
	if _, err := models.ParseComparisonMethod(string(c.Sync.Comparison)); err != nil {
		return &models.ValidationError{Field: "sync.comparison", Message: "must be 'none', 'namesize' or 'timestamp'"}
	}
	if c.Sync.BandwidthLimit < 0 {
		return &models.ValidationError{Field: "sync.bandwidth_limit", Message: "cannot be negative"}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{Field: "output.format", Message: "must be 'human' or 'json'"}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{Field: "logging.format", Message: "must be 'json' or 'text'"}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{Field: "logging.level", Message: "must be 'debug', 'info', 'warn', or 'error'"}
	}

	return nil
}

// Redacted returns a copy with credentials masked, suitable for display
func (c *Config) Redacted() *Config {
	out := *c
	out.Sync.Exclude = append([]string(nil), c.Sync.Exclude...)
	out.Gist.Token = mask(c.Gist.Token)
	out.WebDAV.Pass = mask(c.WebDAV.Pass)
	return &out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "********"
}
