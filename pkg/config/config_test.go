package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sdejongh/remotesync/pkg/models"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Service != ServiceGist {
		t.Errorf("Service = %s, want gist", cfg.Service)
	}
	if cfg.Transport.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Transport.MaxAttempts)
	}
	if cfg.Sync.Comparison != models.CompareNone {
		t.Errorf("Comparison = %s, want none", cfg.Sync.Comparison)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"UnknownService", func(c *Config) { c.Service = "ftp" }, "service"},
		{"UnknownPathPolicy", func(c *Config) { c.Gist.PathPolicy = "flatten" }, "gist.path_policy"},
		{"NegativeMaxFileSize", func(c *Config) { c.Gist.MaxFileSize = -1 }, "gist.max_file_size"},
		{"NegativeTimeout", func(c *Config) { c.Transport.Timeout = -time.Second }, "transport.timeout"},
		{"ZeroAttempts", func(c *Config) { c.Transport.MaxAttempts = 0 }, "transport.max_attempts"},
		{"BackoffAboveMax", func(c *Config) { c.Transport.RetryBackoff = time.Minute }, "transport.retry_backoff"},
		{"ZeroWorkers", func(c *Config) { c.Sync.MaxWorkers = 0 }, "sync.max_workers"},
		{"UnknownComparison", func(c *Config) { c.Sync.Comparison = "hash" }, "sync.comparison"},
		{"NegativeBandwidth", func(c *Config) { c.Sync.BandwidthLimit = -5 }, "sync.bandwidth_limit"},
		{"UnknownOutput", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
		{"UnknownLogFormat", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"UnknownLogLevel", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			var ve *models.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %s, want %s", ve.Field, tt.field)
			}
		})
	}

	t.Run("WebDAVService", func(t *testing.T) {
		cfg := Default()
		cfg.Service = ServiceWebDAV
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Service = ServiceWebDAV
	cfg.WebDAV = WebDAVConfig{URL: "https://dav.example.com/files", User: "alice", Pass: "s3cret", CreateParents: true}
	cfg.Transport.Timeout = 90 * time.Second
	cfg.Sync.Exclude = []string{"*.bak"}

	if err := SaveToFile(cfg, path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm()&0077 != 0 {
		t.Errorf("config file mode = %v, want owner-only", info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "timeout: 1m30s") {
		t.Errorf("durations should be written in Go notation, got:\n%s", data)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.Service != ServiceWebDAV || loaded.WebDAV != cfg.WebDAV {
		t.Errorf("loaded = %+v, want %+v", loaded.WebDAV, cfg.WebDAV)
	}
	if loaded.Transport.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 1m30s", loaded.Transport.Timeout)
	}
	if len(loaded.Sync.Exclude) != 1 || loaded.Sync.Exclude[0] != "*.bak" {
		t.Errorf("Exclude = %v", loaded.Sync.Exclude)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Run("PartialFileKeepsDefaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := "service: gist\ngist:\n  token: ghp_abc\n  id: 1234\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadFromFile(path)
		if err != nil {
			t.Fatalf("LoadFromFile() error = %v", err)
		}
		if cfg.Gist.Token != "ghp_abc" || cfg.Gist.ID != "1234" {
			t.Errorf("Gist = %+v", cfg.Gist)
		}
		if cfg.Gist.APIURL != "https://api.github.com" {
			t.Errorf("APIURL = %s, want default", cfg.Gist.APIURL)
		}
		if cfg.Transport.ConnectTimeout != 10*time.Second {
			t.Errorf("ConnectTimeout = %v, want default", cfg.Transport.ConnectTimeout)
		}
	})

	t.Run("InvalidYAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("service: [unclosed"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFromFile(path); err == nil {
			t.Error("LoadFromFile() should fail on malformed YAML")
		}
	})

	t.Run("InvalidValues", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte("service: ftp\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFromFile(path); err == nil {
			t.Error("LoadFromFile() should reject an unknown service")
		}
	})

	t.Run("Missing", func(t *testing.T) {
		if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("LoadFromFile() should fail on a missing file")
		}
	})
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	store := NewFileStore(path)

	t.Run("LoadWithoutFileGivesDefaults", func(t *testing.T) {
		cfg, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Service != ServiceGist {
			t.Errorf("Service = %s, want gist", cfg.Service)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("Load() must not create the file")
		}
	})

	t.Run("SetAndGet", func(t *testing.T) {
		sets := map[string]string{
			"gist.token":             "ghp_secret",
			"gist.id":                "abc123",
			"webdav.url":             "https://dav.example.com",
			"webdav.create_parents":  "true",
			"sync.max_workers":       "8",
			"sync.bandwidth_limit":   "1MiB",
			"sync.exclude":           "*.tmp, .git/ ,",
			"transport.timeout":      "45s",
			"transport.max_attempts": "5",
			"sync.comparison":        "timestamp",
		}
		for k, v := range sets {
			if err := store.Set(k, v); err != nil {
				t.Fatalf("Set(%s) error = %v", k, err)
			}
		}

		want := map[string]string{
			"gist.token":             "ghp_secret",
			"gist.id":                "abc123",
			"webdav.url":             "https://dav.example.com",
			"webdav.create_parents":  "true",
			"sync.max_workers":       "8",
			"sync.bandwidth_limit":   "1048576",
			"sync.exclude":           "*.tmp,.git/",
			"transport.timeout":      "45s",
			"transport.max_attempts": "5",
			"sync.comparison":        "timestamp",
		}
		for k, v := range want {
			got, err := store.Get(k)
			if err != nil {
				t.Fatalf("Get(%s) error = %v", k, err)
			}
			if got != v {
				t.Errorf("Get(%s) = %q, want %q", k, got, v)
			}
		}
	})

	t.Run("RejectsInvalidValues", func(t *testing.T) {
		bad := map[string]string{
			"service":               "ftp",
			"sync.max_workers":      "zero",
			"webdav.create_parents": "maybe",
			"transport.timeout":     "soon",
			"sync.comparison":       "md5",
			"sync.bandwidth_limit":  "fast",
		}
		for k, v := range bad {
			if err := store.Set(k, v); err == nil {
				t.Errorf("Set(%s, %s) should fail", k, v)
			}
		}

		got, _ := store.Get("service")
		if got != ServiceGist {
			t.Errorf("service = %s, a rejected value must not be saved", got)
		}
	})

	t.Run("UnknownKey", func(t *testing.T) {
		if err := store.Set("gist.color", "blue"); err == nil {
			t.Error("Set() should reject unknown keys")
		}
		if _, err := store.Get("nope"); err == nil {
			t.Error("Get() should reject unknown keys")
		}
	})
}

func TestKeys(t *testing.T) {
	keys := Keys()
	required := []string{"service", "root", "gist.token", "gist.id", "webdav.url", "webdav.user", "webdav.pass"}
	for _, k := range required {
		found := false
		for _, have := range keys {
			if have == k {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Keys() is missing %s", k)
		}
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("Keys() not sorted at %d", i)
		}
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Gist.Token = "ghp_1234567890"
	cfg.WebDAV.Pass = "short"

	r := cfg.Redacted()
	if r.Gist.Token != "ghp_********" {
		t.Errorf("Token = %s", r.Gist.Token)
	}
	if r.WebDAV.Pass != "********" {
		t.Errorf("Pass = %s", r.WebDAV.Pass)
	}
	if cfg.Gist.Token != "ghp_1234567890" {
		t.Error("Redacted() must not modify the original")
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{"1024", 1024, false},
		{"1KiB", 1024, false},
		{"10MiB", 10 * 1024 * 1024, false},
		{"1MB", 1000 * 1000, false},
		{"lots", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBytes(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBytes(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseBytes(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadFromFileStrict(t *testing.T) {
	dir := t.TempDir()

	t.Run("UnknownKey", func(t *testing.T) {
		path := filepath.Join(dir, "typo.yaml")
		if err := os.WriteFile(path, []byte("gist:\n  tokn: abc\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadFromFile(path); err == nil {
			t.Error("LoadFromFile() should reject unknown keys")
		}
	})

	t.Run("EmptyFile", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		if err := os.WriteFile(path, nil, 0600); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadFromFile(path)
		if err != nil {
			t.Fatalf("LoadFromFile() error = %v", err)
		}
		if cfg.Service != ServiceGist {
			t.Errorf("Service = %s, want default", cfg.Service)
		}
	})

	t.Run("SavedFileHasHeader", func(t *testing.T) {
		path := filepath.Join(dir, "saved.yaml")
		if err := SaveToFile(Default(), path); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(string(data), "# remotesync configuration") {
			t.Errorf("saved file starts with %q", strings.SplitN(string(data), "\n", 2)[0])
		}
		if _, err := LoadFromFile(path); err != nil {
			t.Errorf("saved file does not load back: %v", err)
		}
	})
}
