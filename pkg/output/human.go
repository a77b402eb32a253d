package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sdejongh/remotesync/pkg/models"
)

// HumanFormatter formats output in human-readable format
type HumanFormatter struct {
	writer     io.Writer
	totalFiles int
	totalBytes int64
	startTime  time.Time
	mu         sync.Mutex
}

// NewHumanFormatter creates a new human-readable formatter
func NewHumanFormatter(w io.Writer) *HumanFormatter {
	if w == nil {
		w = io.Discard
	}
	return &HumanFormatter{writer: w}
}

// Start initializes the formatter
func (f *HumanFormatter) Start(totalFiles int, totalBytes int64, maxWorkers int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.totalFiles = totalFiles
	f.totalBytes = totalBytes
	f.startTime = time.Now()

	fmt.Fprintf(f.writer, "Starting sync: %d files, %s total\n", totalFiles, formatBytes(totalBytes))
	return nil
}

// Progress reports progress during sync
func (f *HumanFormatter) Progress(update ProgressUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch update.Type {
	case EventFileStart:
		fmt.Fprintf(f.writer, "[%d/%d] %s %s (%s)...\n",
			update.CurrentFile, f.totalFiles, verb(update.Action),
			update.FilePath, formatBytes(update.TotalBytes))

	case EventFileComplete:
		fmt.Fprintf(f.writer, "[%d/%d] ✓ %s (%s)\n",
			update.CurrentFile, f.totalFiles,
			update.FilePath, formatBytes(update.BytesWritten))

	case EventFileError:
		fmt.Fprintf(f.writer, "[%d/%d] ✗ %s: %v\n",
			update.CurrentFile, f.totalFiles,
			update.FilePath, update.Error)
	}

	return nil
}

// Complete finalizes output and displays summary
func (f *HumanFormatter) Complete(report *models.SyncReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeSummary(f.writer, report)
	return nil
}

// Error reports an error
func (f *HumanFormatter) Error(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.writer, "Error: %v\n", err)
	return nil
}

// Name returns the formatter name
func (f *HumanFormatter) Name() string {
	return "human"
}

// writeSummary prints the end-of-session summary shared by the human formatters
func writeSummary(w io.Writer, report *models.SyncReport) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Sync completed in %s\n", report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Provider:       %s (%s)\n", report.Provider, report.Direction)
	fmt.Fprintf(w, "  Root:           %s\n", report.RootPath)
	fmt.Fprintf(w, "  Files resolved: %d\n", report.Stats.FilesResolved)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Operations:\n")
	fmt.Fprintf(w, "    Attempted:    %d\n", report.Stats.Attempted)
	fmt.Fprintf(w, "    Succeeded:    %d\n", report.Stats.Succeeded)
	fmt.Fprintf(w, "    Failed:       %d\n", report.Stats.Failed)
	fmt.Fprintf(w, "    Skipped:      %d\n", report.Stats.Skipped)
	if report.DryRun {
		fmt.Fprintf(w, "    Dry run:      %d would be transferred\n", report.Stats.WouldTransfer)
	}
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Transfer:\n")
	fmt.Fprintf(w, "    Data:           %s\n", formatBytes(report.Stats.BytesTransferred))
	if report.Stats.AverageSpeed > 0 {
		fmt.Fprintf(w, "    Average speed:  %s/s\n", formatBytes(report.Stats.AverageSpeed))
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Status: %s\n", report.Status)

	if report.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", report.Error)
	}
	if failures := report.Failures(); len(failures) > 0 {
		fmt.Fprintf(w, "\nErrors:\n")
		for _, o := range failures {
			fmt.Fprintf(w, "  %s: %s\n", o.Path, o.Reason)
		}
	}
}

func verb(a models.Action) string {
	switch a {
	case models.ActionUpload:
		return "Uploading"
	case models.ActionDownload:
		return "Downloading"
	default:
		return "Processing"
	}
}

// formatBytes formats bytes in human-readable format
func formatBytes(bytes int64) string {
	if bytes < 0 {
		return "unknown size"
	}
	return humanize.IBytes(uint64(bytes))
}
