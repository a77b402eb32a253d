package storage

import (
	"context"
	"io"
	"time"
)

// FileInfo represents metadata about a local file
type FileInfo struct {
	// RelativePath is relative to the backend root and always '/'-separated
	RelativePath string
	Size         int64
	ModTime      time.Time
	IsDir        bool
	Permissions  uint32
}

// Backend is the local file source a sync session reads from and writes to.
// Paths crossing this boundary are relative and '/'-separated.
type Backend interface {
	// List returns every entry under path recursively, the root itself excluded
	List(ctx context.Context, path string) ([]FileInfo, error)

	// Read opens a file for reading
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write creates or replaces a file, creating parent directories.
	// size is checked when >= 0. metadata may carry a modification time.
	Write(ctx context.Context, path string, reader io.Reader, size int64, metadata *FileInfo) error

	// Delete removes a file or directory tree
	Delete(ctx context.Context, path string) error

	// Exists checks if a file or directory exists
	Exists(ctx context.Context, path string) (bool, error)

	// Stat returns file metadata
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// MkdirAll creates a directory and all necessary parents
	MkdirAll(ctx context.Context, path string) error

	// Root describes where the backend is rooted, for reports and logs
	Root() string

	// Close releases any resources held by the backend
	Close() error
}
