package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sdejongh/remotesync/pkg/models"
)

// Store is the configuration store the CLI host reads settings from and
// persists them through. Keys are dotted YAML paths such as "gist.token".
type Store interface {
	// Load returns the stored configuration, or defaults when nothing is stored
	Load() (*Config, error)

	// Save validates and persists cfg
	Save(cfg *Config) error

	// Get returns the string form of one key
	Get(key string) (string, error)

	// Set parses value for key, validates and persists the result
	Set(key, value string) error
}

// FileStore is a Store backed by one YAML file
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store for the YAML file at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the file, falling back to defaults when it does not exist
func (s *FileStore) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadOrDefault(s.path)
}

// Save writes cfg to the file
func (s *FileStore) Save(cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SaveToFile(cfg, s.path)
}

// Get returns the string form of key
func (s *FileStore) Get(key string) (string, error) {
	cfg, err := s.Load()
	if err != nil {
		return "", err
	}
	return GetKey(cfg, key)
}

// Set updates one key and saves the file
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := loadOrDefault(s.path)
	if err != nil {
		return err
	}
	if err := SetKey(cfg, key, value); err != nil {
		return err
	}
	return SaveToFile(cfg, s.path)
}

type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringField(ptr func(c *Config) *string) field {
	return field{
		get: func(c *Config) string { return *ptr(c) },
		set: func(c *Config, v string) error { *ptr(c) = v; return nil },
	}
}

func boolField(ptr func(c *Config) *bool) field {
	return field{
		get: func(c *Config) string { return strconv.FormatBool(*ptr(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("expected true or false: %w", err)
			}
			*ptr(c) = b
			return nil
		},
	}
}

func intField(ptr func(c *Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*ptr(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("expected an integer: %w", err)
			}
			*ptr(c) = n
			return nil
		},
	}
}

// bytesField accepts plain integers or sizes such as "10MiB" and "512KB"
func bytesField(ptr func(c *Config) *int64) field {
	return field{
		get: func(c *Config) string { return strconv.FormatInt(*ptr(c), 10) },
		set: func(c *Config, v string) error {
			n, err := ParseBytes(v)
			if err != nil {
				return err
			}
			*ptr(c) = n
			return nil
		},
	}
}

func durationField(ptr func(c *Config) *time.Duration) field {
	return field{
		get: func(c *Config) string { return ptr(c).String() },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("expected a duration such as 30s: %w", err)
			}
			*ptr(c) = d
			return nil
		},
	}
}

var fields = map[string]field{
	"service":                     stringField(func(c *Config) *string { return &c.Service }),
	"root":                        stringField(func(c *Config) *string { return &c.Root }),
	"gist.token":                  stringField(func(c *Config) *string { return &c.Gist.Token }),
	"gist.id":                     stringField(func(c *Config) *string { return &c.Gist.ID }),
	"gist.api_url":                stringField(func(c *Config) *string { return &c.Gist.APIURL }),
	"gist.path_policy":            stringField(func(c *Config) *string { return &c.Gist.PathPolicy }),
	"gist.max_file_size":          bytesField(func(c *Config) *int64 { return &c.Gist.MaxFileSize }),
	"webdav.url":                  stringField(func(c *Config) *string { return &c.WebDAV.URL }),
	"webdav.user":                 stringField(func(c *Config) *string { return &c.WebDAV.User }),
	"webdav.pass":                 stringField(func(c *Config) *string { return &c.WebDAV.Pass }),
	"webdav.create_parents":       boolField(func(c *Config) *bool { return &c.WebDAV.CreateParents }),
	"transport.connect_timeout":   durationField(func(c *Config) *time.Duration { return &c.Transport.ConnectTimeout }),
	"transport.timeout":           durationField(func(c *Config) *time.Duration { return &c.Transport.Timeout }),
	"transport.max_attempts":      intField(func(c *Config) *int { return &c.Transport.MaxAttempts }),
	"transport.retry_backoff":     durationField(func(c *Config) *time.Duration { return &c.Transport.RetryBackoff }),
	"transport.retry_max_backoff": durationField(func(c *Config) *time.Duration { return &c.Transport.RetryMaxBackoff }),
	"sync.max_workers":            intField(func(c *Config) *int { return &c.Sync.MaxWorkers }),
	"sync.bandwidth_limit":        bytesField(func(c *Config) *int64 { return &c.Sync.BandwidthLimit }),
	"sync.comparison": {
		get: func(c *Config) string { return string(c.Sync.Comparison) },
		set: func(c *Config, v string) error {
			m, err := models.ParseComparisonMethod(v)
			if err != nil {
				return err
			}
			c.Sync.Comparison = m
			return nil
		},
	},
	"sync.exclude": {
		get: func(c *Config) string { return strings.Join(c.Sync.Exclude, ",") },
		set: func(c *Config, v string) error {
			c.Sync.Exclude = nil
			for _, p := range strings.Split(v, ",") {
				if p = strings.TrimSpace(p); p != "" {
					c.Sync.Exclude = append(c.Sync.Exclude, p)
				}
			}
			return nil
		},
	},
	"output.format":   stringField(func(c *Config) *string { return &c.Output.Format }),
	"output.progress": boolField(func(c *Config) *bool { return &c.Output.Progress }),
	"output.quiet":    boolField(func(c *Config) *bool { return &c.Output.Quiet }),
	"logging.file":    stringField(func(c *Config) *string { return &c.Logging.File }),
	"logging.format":  stringField(func(c *Config) *string { return &c.Logging.Format }),
	"logging.level":   stringField(func(c *Config) *string { return &c.Logging.Level }),
}

// Keys returns every settable key, sorted
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetKey returns the string form of key in cfg
func GetKey(cfg *Config, key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %s", key)
	}
	return f.get(cfg), nil
}

// SetKey parses value into key and validates the result. cfg is left
// unchanged when the value is rejected.
func SetKey(cfg *Config, key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}

	updated := *cfg
	updated.Sync.Exclude = append([]string(nil), cfg.Sync.Exclude...)
	if err := f.set(&updated, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := updated.Validate(); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*cfg = updated
	return nil
}

// ParseBytes parses a byte count. Plain integers are bytes; suffixed values
// use humanize notation ("10MiB", "512KB").
func ParseBytes(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return 0, fmt.Errorf("expected a byte size such as 10MiB: %w", err)
	}
	if n > uint64(1<<62) {
		return 0, fmt.Errorf("byte size too large: %s", v)
	}
	return int64(n), nil
}
