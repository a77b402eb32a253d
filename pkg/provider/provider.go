// Package provider defines the contract every remote storage backend
// implements, the entries it reports and the errors it returns.
package provider

import (
	"context"
	"io"
	"sync/atomic"
	"time"
)

// RemoteEntry describes one file in a remote store
type RemoteEntry struct {
	// Path is the logical path: relative, '/'-separated, no leading slash
	Path string

	// Size in bytes, -1 when the backend does not report it
	Size int64

	// ETag is the entity tag or content hash, empty when unknown
	ETag string

	// ModTime is the last modification time, zero when unknown
	ModTime time.Time
}

// Capabilities describes what a backend can safely do
type Capabilities struct {
	// ConcurrentWrites is true when uploads to different paths may run in parallel
	ConcurrentWrites bool

	// Hierarchical is true when the backend preserves directory structure
	Hierarchical bool
}

// Provider is implemented by every remote backend.
// Connect must succeed before List, Upload or Download are called.
type Provider interface {
	// Connect validates credentials and reachability without mutating remote state
	Connect(ctx context.Context) error

	// List enumerates remote files under the given logical scope
	List(ctx context.Context, path string) ([]RemoteEntry, error)

	// Upload creates or overwrites the remote file at path
	Upload(ctx context.Context, path string, content io.Reader) error

	// Download opens the remote file at path. The caller closes the stream.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Capabilities reports backend limitations to the orchestrator
	Capabilities() Capabilities

	// Name returns the backend name used in logs and reports
	Name() string

	// Close moves the provider to its terminal state
	Close() error
}

// State is the lifecycle state of a provider instance
type State int32

const (
	StateUninitialized State = iota
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Lifecycle tracks the connection state of a provider. Backends embed it.
type Lifecycle struct {
	state atomic.Int32
}

// State returns the current state
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

// MarkConnected records a successful probe. A closed provider stays closed.
func (l *Lifecycle) MarkConnected() {
	l.state.CompareAndSwap(int32(StateUninitialized), int32(StateConnected))
}

// MarkClosed moves to the terminal state
func (l *Lifecycle) MarkClosed() {
	l.state.Store(int32(StateClosed))
}

// Ready returns ErrNotConnected unless Connect has succeeded and Close has not been called
func (l *Lifecycle) Ready(op, path string) error {
	if l.State() == StateConnected {
		return nil
	}
	return &Error{Op: op, Path: path, Kind: ErrNotConnected, Err: errStateDetail(l.State())}
}
