package models

import (
	"sort"
	"sync"
	"time"
)

// TransferOutcome is the result of one planned file in a session
type TransferOutcome struct {
	Path   string
	Action Action

	// Reason is empty on success and carries the failure otherwise
	Reason string

	// Detail is informational, e.g. why a file was skipped
	Detail string

	// DryRun marks a transfer that was resolved but not performed
	DryRun bool

	Bytes    int64
	Duration time.Duration
}

// Success reports whether the transfer (or skip) succeeded
func (o TransferOutcome) Success() bool {
	return o.Reason == ""
}

// Succeeded builds a successful outcome
func Succeeded(path string, action Action, bytes int64, d time.Duration) TransferOutcome {
	return TransferOutcome{Path: path, Action: action, Bytes: bytes, Duration: d}
}

// Failed builds a failed outcome
func Failed(path string, action Action, err error) TransferOutcome {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return TransferOutcome{Path: path, Action: action, Reason: reason}
}

// Skipped builds the outcome of a file left alone
func Skipped(path, detail string) TransferOutcome {
	return TransferOutcome{Path: path, Action: ActionSkip, Detail: detail}
}

// Planned builds the outcome of a dry-run transfer
func Planned(path string, action Action, bytes int64) TransferOutcome {
	return TransferOutcome{Path: path, Action: action, Detail: "dry run", DryRun: true, Bytes: bytes}
}

// Statistics holds session counters
type Statistics struct {
	// FilesResolved is the number of paths resolved for the session
	FilesResolved int

	// Attempted counts transfers started; skips and dry-run entries are not attempts
	Attempted int
	Succeeded int
	Failed    int
	Skipped   int

	// WouldTransfer counts dry-run entries
	WouldTransfer int

	BytesTransferred int64

	// AverageSpeed in bytes per second over the session duration
	AverageSpeed int64
}

// SyncStatus represents the overall result
type SyncStatus string

const (
	// StatusNothing indicates no transfer was needed or selected
	StatusNothing SyncStatus = "nothing"
	// StatusSuccess indicates every attempted transfer succeeded
	StatusSuccess SyncStatus = "success"
	// StatusPartial indicates some transfers failed
	StatusPartial SyncStatus = "partial"
	// StatusFailed indicates every attempted transfer failed, or the session could not start
	StatusFailed SyncStatus = "failed"
	// StatusCancelled indicates the session was cancelled
	StatusCancelled SyncStatus = "cancelled"
)

// ExitCode returns the process exit code for the status
func (s SyncStatus) ExitCode() int {
	switch s {
	case StatusSuccess, StatusNothing:
		return 0
	case StatusPartial:
		return 1
	case StatusFailed:
		return 2
	case StatusCancelled:
		return 3
	default:
		return 2
	}
}

// SyncReport is the sole output of a sync session. Record is safe for
// concurrent use; read the other fields after Finalize.
type SyncReport struct {
	OperationID string
	Provider    string
	Direction   Direction
	RootPath    string
	DryRun      bool

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Stats    Statistics
	Outcomes []TransferOutcome
	Status   SyncStatus

	// Error is set when the session failed before any transfer, e.g. on connect
	Error string

	mu sync.Mutex
}

// NewReport starts a report for op
func NewReport(op *SyncOperation) *SyncReport {
	return &SyncReport{
		OperationID: op.ID,
		Provider:    op.Provider,
		Direction:   op.Direction,
		RootPath:    op.RootPath,
		DryRun:      op.DryRun,
		StartTime:   time.Now(),
	}
}

// Record adds one outcome and updates the counters
func (r *SyncReport) Record(o TransferOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Outcomes = append(r.Outcomes, o)
	switch {
	case o.DryRun:
		r.Stats.WouldTransfer++
		return
	case o.Action == ActionSkip:
		r.Stats.Skipped++
		return
	}
	r.Stats.Attempted++
	if o.Success() {
		r.Stats.Succeeded++
		r.Stats.BytesTransferred += o.Bytes
	} else {
		r.Stats.Failed++
	}
}

// SetResolved records how many paths the session resolved
func (r *SyncReport) SetResolved(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stats.FilesResolved = n
}

// Fail marks a session that could not run at all
func (r *SyncReport) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.Error = err.Error()
	}
}

// Finalize stamps the end time, sorts outcomes by path and derives the status
func (r *SyncReport) Finalize(cancelled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	if secs := r.Duration.Seconds(); secs > 0 {
		r.Stats.AverageSpeed = int64(float64(r.Stats.BytesTransferred) / secs)
	}
	sort.SliceStable(r.Outcomes, func(i, j int) bool { return r.Outcomes[i].Path < r.Outcomes[j].Path })

	switch {
	case cancelled:
		r.Status = StatusCancelled
	case r.Error != "":
		r.Status = StatusFailed
	case r.Stats.Attempted == 0:
		r.Status = StatusNothing
	case r.Stats.Failed == 0:
		r.Status = StatusSuccess
	case r.Stats.Succeeded == 0:
		r.Status = StatusFailed
	default:
		r.Status = StatusPartial
	}
}

// HadFailures reports whether any transfer failed or the session itself failed
func (r *SyncReport) HadFailures() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Stats.Failed > 0 || r.Error != ""
}

// Failures returns the failed outcomes
func (r *SyncReport) Failures() []TransferOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var failed []TransferOutcome
	for _, o := range r.Outcomes {
		if !o.Success() {
			failed = append(failed, o)
		}
	}
	return failed
}

// SucceededPaths returns the paths transferred successfully
func (r *SyncReport) SucceededPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var paths []string
	for _, o := range r.Outcomes {
		if o.Success() && o.Action != ActionSkip && !o.DryRun {
			paths = append(paths, o.Path)
		}
	}
	return paths
}
