package output

import (
	"fmt"
	"io"

	"github.com/sdejongh/remotesync/pkg/models"
)

// Progress event types
const (
	EventFileStart    = "file_start"
	EventFileProgress = "file_progress"
	EventFileComplete = "file_complete"
	EventFileError    = "file_error"
	EventFileSkipped  = "file_skipped"
)

// ProgressUpdate represents a progress notification during sync
type ProgressUpdate struct {
	Type         string
	Action       models.Action
	FilePath     string
	BytesWritten int64
	TotalBytes   int64 // -1 when unknown
	CurrentFile  int
	TotalFiles   int
	Error        error
}

// Formatter defines the interface for output formatting.
// Implementations include human-readable, progress bar and JSON formatters.
type Formatter interface {
	// Start initializes the formatter for a new sync session
	Start(totalFiles int, totalBytes int64, maxWorkers int) error

	// Progress reports progress during sync. It may be called from several goroutines.
	Progress(update ProgressUpdate) error

	// Complete finalizes output and displays summary
	Complete(report *models.SyncReport) error

	// Error reports a session-level error
	Error(err error) error

	// Name returns the formatter name
	Name() string
}

// New returns the formatter for format writing to w. progress selects the
// progress bar variant of the human format.
func New(format string, w io.Writer, progress bool) (Formatter, error) {
	switch format {
	case "", "human":
		if progress {
			return NewProgressFormatter(w), nil
		}
		return NewHumanFormatter(w), nil
	case "json":
		return NewJSONFormatter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}
