package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/mattn/go-isatty"

	"github.com/sdejongh/remotesync/pkg/models"
)

const progressTemplate = `{{string . "prefix"}} {{counters . }} {{bar . }} {{percent . }} {{speed . }}`

// ProgressFormatter renders one aggregate progress bar for the session
type ProgressFormatter struct {
	writer     io.Writer
	bar        *pb.ProgressBar
	totalFiles int
	doneFiles  int

	// bytes already reported per in-flight file, so progress events can be
	// turned into bar increments
	reported map[int]int64

	mu sync.Mutex
}

// NewProgressFormatter creates a new progress bar formatter
func NewProgressFormatter(w io.Writer) *ProgressFormatter {
	if w == nil {
		w = os.Stdout
	}
	return &ProgressFormatter{writer: w, reported: make(map[int]int64)}
}

// Start creates the bar sized to totalBytes
func (f *ProgressFormatter) Start(totalFiles int, totalBytes int64, maxWorkers int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if totalBytes < 0 {
		totalBytes = 0
	}
	f.totalFiles = totalFiles
	f.doneFiles = 0
	f.bar = pb.New64(totalBytes).
		SetTemplateString(progressTemplate).
		SetWriter(f.writer).
		Set(pb.Bytes, true).
		Set(pb.Terminal, isTerminal(f.writer)).
		Set("prefix", f.prefix())
	f.bar.Start()
	return nil
}

func (f *ProgressFormatter) prefix() string {
	return fmt.Sprintf("[%d/%d files]", f.doneFiles, f.totalFiles)
}

// Progress advances the bar
func (f *ProgressFormatter) Progress(update ProgressUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bar == nil {
		return nil
	}

	switch update.Type {
	case EventFileStart:
		f.reported[update.CurrentFile] = 0

	case EventFileProgress, EventFileComplete:
		delta := update.BytesWritten - f.reported[update.CurrentFile]
		if delta > 0 {
			f.bar.Add64(delta)
			f.reported[update.CurrentFile] = update.BytesWritten
		}
		if update.Type == EventFileComplete {
			delete(f.reported, update.CurrentFile)
			f.doneFiles++
		}

	case EventFileError:
		delete(f.reported, update.CurrentFile)
		f.doneFiles++

	case EventFileSkipped:
		f.doneFiles++
	}

	f.bar.Set("prefix", f.prefix())
	return nil
}

// Complete stops the bar and displays the summary
func (f *ProgressFormatter) Complete(report *models.SyncReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bar != nil {
		f.bar.Finish()
		f.bar = nil
	}
	writeSummary(f.writer, report)
	return nil
}

// Error reports an error
func (f *ProgressFormatter) Error(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.bar != nil {
		f.bar.Finish()
		f.bar = nil
	}
	fmt.Fprintf(f.writer, "\nError: %v\n", err)
	return nil
}

// Name returns the formatter name
func (f *ProgressFormatter) Name() string {
	return "progress"
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd()))
}
