package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// ErrOutsideRoot is returned for paths that would escape the backend root
var ErrOutsideRoot = errors.New("path escapes storage root")

// tempPrefix names in-flight writes, which List never reports
const tempPrefix = ".remotesync-"

// Local is a storage backend over a go-billy filesystem rooted at a directory
type Local struct {
	fs   billy.Filesystem
	root string

	// memfs keeps its file table in plain maps; metadata calls are
	// serialized when mu is set
	mu *sync.Mutex
}

// NewLocal creates a backend rooted at an existing directory on disk
func NewLocal(rootPath string) (*Local, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", absPath)
	}

	return &Local{fs: osfs.New(absPath), root: absPath}, nil
}

// NewMemory creates a backend held entirely in memory
func NewMemory() *Local {
	return &Local{fs: memfs.New(), root: "memory", mu: &sync.Mutex{}}
}

func (l *Local) lock() func() {
	if l.mu == nil {
		return func() {}
	}
	l.mu.Lock()
	return l.mu.Unlock
}

// Root returns the directory the backend is rooted at
func (l *Local) Root() string {
	return l.root
}

// clean turns a relative '/' path into the form billy expects. An empty
// result addresses the root.
func clean(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
		}
	}
	cleaned := strings.Trim(path.Clean("/"+p), "/")
	return filepath.FromSlash(cleaned), nil
}

func toFileInfo(rel string, info os.FileInfo) FileInfo {
	return FileInfo{
		RelativePath: filepath.ToSlash(rel),
		Size:         info.Size(),
		ModTime:      info.ModTime(),
		IsDir:        info.IsDir(),
		Permissions:  uint32(info.Mode().Perm()),
	}
}

// List returns all entries below path recursively, in lexical order
func (l *Local) List(ctx context.Context, p string) ([]FileInfo, error) {
	start, err := clean(p)
	if err != nil {
		return nil, err
	}

	unlock := l.lock()
	defer unlock()

	var files []FileInfo
	err = util.Walk(l.fs, start, func(walked string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if walked == start {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		if !info.IsDir() && strings.HasPrefix(filepath.Base(walked), tempPrefix) {
			return nil
		}
		files = append(files, toFileInfo(walked, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}

// Read opens a file for reading
func (l *Local) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	name, err := clean(p)
	if err != nil {
		return nil, err
	}
	unlock := l.lock()
	f, err := l.fs.Open(name)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Write replaces a file by writing a temporary sibling and renaming it into
// place, so a failed transfer never leaves a truncated file behind.
func (l *Local) Write(ctx context.Context, p string, reader io.Reader, size int64, metadata *FileInfo) error {
	name, err := clean(p)
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("cannot write to storage root")
	}

	dir := filepath.Dir(name)
	unlock := l.lock()
	if err := l.fs.MkdirAll(dir, 0755); err != nil {
		unlock()
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := util.TempFile(l.fs, dir, tempPrefix)
	unlock()
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, reader)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && size >= 0 && written != size {
		err = fmt.Errorf("incomplete write: expected %d bytes, wrote %d", size, written)
	}

	unlock = l.lock()
	defer unlock()

	if err != nil {
		l.fs.Remove(tmpName)
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := l.fs.Rename(tmpName, name); err != nil {
		l.fs.Remove(tmpName)
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	if metadata != nil && !metadata.ModTime.IsZero() {
		if err := l.chtimes(name, metadata.ModTime); err != nil {
			return fmt.Errorf("failed to set modification time: %w", err)
		}
	}

	return nil
}

// chtimes sets the modification time when the filesystem supports it. The
// chroot osfs does not expose billy.Change, so disk backends go to the OS.
func (l *Local) chtimes(name string, mtime time.Time) error {
	if ch, ok := l.fs.(billy.Change); ok {
		return ch.Chtimes(name, mtime, mtime)
	}
	if l.mu == nil {
		return os.Chtimes(filepath.Join(l.root, name), mtime, mtime)
	}
	return nil
}

// Delete removes a file or directory
func (l *Local) Delete(ctx context.Context, p string) error {
	name, err := clean(p)
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("cannot delete storage root")
	}
	unlock := l.lock()
	defer unlock()
	if err := util.RemoveAll(l.fs, name); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	return nil
}

// Exists checks if a file or directory exists
func (l *Local) Exists(ctx context.Context, p string) (bool, error) {
	name, err := clean(p)
	if err != nil {
		return false, err
	}
	unlock := l.lock()
	_, err = l.fs.Stat(name)
	unlock()
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
}

// Stat returns file metadata
func (l *Local) Stat(ctx context.Context, p string) (*FileInfo, error) {
	name, err := clean(p)
	if err != nil {
		return nil, err
	}
	unlock := l.lock()
	info, err := l.fs.Stat(name)
	unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	fi := toFileInfo(name, info)
	return &fi, nil
}

// MkdirAll creates a directory and all necessary parents
func (l *Local) MkdirAll(ctx context.Context, p string) error {
	name, err := clean(p)
	if err != nil {
		return err
	}
	unlock := l.lock()
	defer unlock()
	if err := l.fs.MkdirAll(name, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// Close releases resources (no-op for billy filesystems)
func (l *Local) Close() error {
	return nil
}
