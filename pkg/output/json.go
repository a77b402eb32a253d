package output

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/sdejongh/remotesync/pkg/models"
)

// JSONFormatter formats output as JSON for automation and scripting.
// Only the final report is written so the output stays parseable.
type JSONFormatter struct {
	writer io.Writer
	errors []string
	mu     sync.Mutex
}

// JSONReportData represents the final report
type JSONReportData struct {
	OperationID string            `json:"operation_id"`
	Provider    string            `json:"provider"`
	Direction   string            `json:"direction"`
	Root        string            `json:"root"`
	DryRun      bool              `json:"dry_run"`
	Status      string            `json:"status"`
	ExitCode    int               `json:"exit_code"`
	Duration    string            `json:"duration"`
	DurationMs  int64             `json:"duration_ms"`
	Stats       JSONStatsData     `json:"stats"`
	Files       []JSONOutcomeData `json:"files,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// JSONStatsData represents statistics in JSON format
type JSONStatsData struct {
	FilesResolved    int    `json:"files_resolved"`
	Attempted        int    `json:"attempted"`
	Succeeded        int    `json:"succeeded"`
	Failed           int    `json:"failed"`
	Skipped          int    `json:"skipped"`
	WouldTransfer    int    `json:"would_transfer,omitempty"`
	BytesTransferred int64  `json:"bytes_transferred"`
	AverageSpeed     int64  `json:"average_speed_bytes_per_sec,omitempty"`
	AverageSpeedStr  string `json:"average_speed,omitempty"`
}

// JSONOutcomeData represents one file outcome
type JSONOutcomeData struct {
	Path       string `json:"path"`
	Action     string `json:"action"`
	Success    bool   `json:"success"`
	DryRun     bool   `json:"dry_run,omitempty"`
	Bytes      int64  `json:"bytes,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	if w == nil {
		w = os.Stdout
	}
	return &JSONFormatter{writer: w}
}

// Start initializes the formatter
func (f *JSONFormatter) Start(totalFiles int, totalBytes int64, maxWorkers int) error {
	return nil
}

// Progress is a no-op: progress events would break the single-document output
func (f *JSONFormatter) Progress(update ProgressUpdate) error {
	return nil
}

// Complete writes the report as one indented JSON document
func (f *JSONFormatter) Complete(report *models.SyncReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := BuildJSONReport(report)
	if data.Error == "" && len(f.errors) > 0 {
		data.Error = f.errors[0]
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// BuildJSONReport converts a finalized report into its JSON representation
func BuildJSONReport(report *models.SyncReport) JSONReportData {
	data := JSONReportData{
		OperationID: report.OperationID,
		Provider:    report.Provider,
		Direction:   string(report.Direction),
		Root:        report.RootPath,
		DryRun:      report.DryRun,
		Status:      string(report.Status),
		ExitCode:    report.Status.ExitCode(),
		Duration:    report.Duration.Round(time.Millisecond).String(),
		DurationMs:  report.Duration.Milliseconds(),
		Error:       report.Error,
		Stats: JSONStatsData{
			FilesResolved:    report.Stats.FilesResolved,
			Attempted:        report.Stats.Attempted,
			Succeeded:        report.Stats.Succeeded,
			Failed:           report.Stats.Failed,
			Skipped:          report.Stats.Skipped,
			WouldTransfer:    report.Stats.WouldTransfer,
			BytesTransferred: report.Stats.BytesTransferred,
			AverageSpeed:     report.Stats.AverageSpeed,
		},
	}
	if report.Stats.AverageSpeed > 0 {
		data.Stats.AverageSpeedStr = formatBytes(report.Stats.AverageSpeed) + "/s"
	}

	for _, o := range report.Outcomes {
		data.Files = append(data.Files, JSONOutcomeData{
			Path:       o.Path,
			Action:     string(o.Action),
			Success:    o.Success(),
			DryRun:     o.DryRun,
			Bytes:      o.Bytes,
			DurationMs: o.Duration.Milliseconds(),
			Detail:     o.Detail,
			Error:      o.Reason,
		})
	}
	return data
}

// Error records a session-level error, reported with the final document
func (f *JSONFormatter) Error(err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, err.Error())
	return nil
}

// Name returns the formatter name
func (f *JSONFormatter) Name() string {
	return "json"
}
