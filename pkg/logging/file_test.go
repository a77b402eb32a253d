package logging

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
)

func newTestLogger(t *testing.T, format Format, level Level) (*FileLogger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "nested", "remotesync.log")
	logger, err := NewFileLogger(FileLoggerConfig{Path: logPath, Format: format, Level: level})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	return logger, logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	return string(content)
}

func TestNewFileLogger_CreatesDirectory(t *testing.T) {
	logger, logPath := newTestLogger(t, FormatText, InfoLevel)
	defer logger.Close()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Log file was not created")
	}
}

func TestNewFileLogger_EmptyPath(t *testing.T) {
	if _, err := NewFileLogger(FileLoggerConfig{}); err == nil {
		t.Error("NewFileLogger() with empty path should fail")
	}
}

func TestFileLogger_LevelFiltering(t *testing.T) {
	logger, logPath := newTestLogger(t, FormatText, InfoLevel)
	ctx := context.Background()

	logger.Debug(ctx, "debug message", nil)
	logger.Info(ctx, "info message", nil)
	logger.Warn(ctx, "warn message", nil)
	logger.Error(ctx, "error message", nil, nil)
	logger.Close()

	content := readLog(t, logPath)
	if strings.Contains(content, "debug message") {
		t.Error("Debug message should be filtered at INFO level")
	}
	for _, want := range []string{"info message", "warn message", "error message"} {
		if !strings.Contains(content, want) {
			t.Errorf("Log should contain %q", want)
		}
	}
}

func TestFileLogger_TextFormat(t *testing.T) {
	logger, logPath := newTestLogger(t, FormatText, InfoLevel)
	logger.Info(context.Background(), "uploaded", Fields{"path": "dicts/a.txt", "bytes": 42})
	logger.Close()

	content := readLog(t, logPath)
	if !strings.Contains(content, "[INFO] uploaded bytes=42 path=dicts/a.txt") {
		t.Errorf("unexpected text line: %q", content)
	}
}

func TestFileLogger_JSONFormat(t *testing.T) {
	logger, logPath := newTestLogger(t, FormatJSON, InfoLevel)
	logger.Error(context.Background(), "upload failed", errors.New("HTTP 500"), Fields{"path": "a.txt"})
	logger.Close()

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(readLog(t, logPath)), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR", entry["level"])
	}
	if entry["message"] != "upload failed" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["error"] != "HTTP 500" {
		t.Errorf("error = %v", entry["error"])
	}
	if entry["path"] != "a.txt" {
		t.Errorf("path = %v", entry["path"])
	}
	if entry["timestamp"] == nil {
		t.Error("timestamp should be present")
	}
}

func TestFileLogger_WithFields(t *testing.T) {
	logger, logPath := newTestLogger(t, FormatJSON, InfoLevel)

	derived := logger.WithFields(Fields{"provider": "webdav"})
	derived.Info(context.Background(), "connected", Fields{"url": "https://dav.example.com"})
	logger.Close()

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(readLog(t, logPath)), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	if entry["provider"] != "webdav" || entry["url"] != "https://dav.example.com" {
		t.Errorf("fields not merged: %v", entry)
	}
}

func TestFileLogger_Rotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "remotesync.log")
	logger, err := NewFileLogger(FileLoggerConfig{
		Path:       logPath,
		Format:     FormatText,
		Level:      InfoLevel,
		MaxSize:    100,
		MaxBackups: 2,
	})
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	for i := 0; i < 20; i++ {
		logger.Info(context.Background(), "a message long enough to trigger rotation after a couple of lines", nil)
	}
	logger.Close()

	if _, err := os.Stat(logPath + ".1"); os.IsNotExist(err) {
		t.Error("Backup file .1 should exist after rotation")
	}
	if _, err := os.Stat(logPath + ".3"); !os.IsNotExist(err) {
		t.Error("Backups beyond MaxBackups should be removed")
	}
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Main log file should still exist")
	}
}

func TestFileLogger_ConcurrentDerivedWrites(t *testing.T) {
	logger, logPath := newTestLogger(t, FormatText, InfoLevel)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			derived := logger.WithFields(Fields{"worker": id})
			for j := 0; j < 100; j++ {
				derived.Info(context.Background(), "transfer", Fields{"iteration": j})
			}
		}(i)
	}
	wg.Wait()
	logger.Close()

	lines := strings.Split(strings.TrimSpace(readLog(t, logPath)), "\n")
	if len(lines) != 1000 {
		t.Errorf("Expected 1000 log lines, got %d", len(lines))
	}
}

func TestFileLogger_WriteAfterClose(t *testing.T) {
	logger, logPath := newTestLogger(t, FormatText, InfoLevel)
	logger.Close()
	logger.Info(context.Background(), "dropped", nil)

	if strings.Contains(readLog(t, logPath), "dropped") {
		t.Error("entries after Close should be dropped")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsoleLogger(&buf, InfoLevel)
	ctx := context.Background()

	logger.Debug(ctx, "hidden", nil)
	logger.WithFields(Fields{"provider": "gist"}).Info(ctx, "connected", Fields{"files": 3})
	logger.Error(ctx, "list failed", errors.New("boom"), nil)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug entry should be filtered")
	}
	for _, want := range []string{"connected", "provider=gist", "files=3", "list failed", "boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q: %q", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("non-terminal writer should not receive color codes")
	}
}

func TestMultiLogger(t *testing.T) {
	var a, b bytes.Buffer
	logger := NewMultiLogger(NewConsoleLogger(&a, InfoLevel), nil, NewConsoleLogger(&b, WarnLevel))

	logger.Info(context.Background(), "info entry", nil)
	logger.WithFields(Fields{"k": "v"}).Warn(context.Background(), "warn entry", nil)

	if !strings.Contains(a.String(), "info entry") || !strings.Contains(a.String(), "warn entry") {
		t.Errorf("first logger output = %q", a.String())
	}
	if strings.Contains(b.String(), "info entry") || !strings.Contains(b.String(), "k=v") {
		t.Errorf("second logger output = %q", b.String())
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if _, ok := NewMultiLogger().(*NullLogger); !ok {
		t.Error("empty multi logger should be a NullLogger")
	}
}

func TestNullLogger(t *testing.T) {
	logger := NewNullLogger()
	ctx := context.Background()

	logger.Debug(ctx, "debug", nil)
	logger.Info(ctx, "info", nil)
	logger.Warn(ctx, "warn", nil)
	logger.Error(ctx, "error", nil, nil)

	if logger.WithFields(Fields{"key": "value"}) == nil {
		t.Error("WithFields should return a logger")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"unknown", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := ParseLevel(tt.input); result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if result := LevelString(tt.level); result != tt.expected {
				t.Errorf("LevelString(%v) = %q, want %q", tt.level, result, tt.expected)
			}
		})
	}
}
