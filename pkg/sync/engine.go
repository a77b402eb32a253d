package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sdejongh/remotesync/pkg/compare"
	"github.com/sdejongh/remotesync/pkg/logging"
	"github.com/sdejongh/remotesync/pkg/models"
	"github.com/sdejongh/remotesync/pkg/output"
	"github.com/sdejongh/remotesync/pkg/provider"
	"github.com/sdejongh/remotesync/pkg/ratelimit"
	"github.com/sdejongh/remotesync/pkg/storage"
)

// Engine orchestrates one sync session between the local tree and a provider
type Engine struct {
	provider   provider.Provider
	local      storage.Backend
	comparator compare.Comparator
	excluder   *Excluder
	limiter    *ratelimit.Limiter
	formatter  output.Formatter
	logger     logging.Logger
	operation  *models.SyncOperation

	totalFiles int
	notifyMu   sync.Mutex
}

// Result is delivered by Start once the session is over
type Result struct {
	Report *models.SyncReport
	Err    error
}

// NewEngine creates a new sync engine. formatter and logger may be nil.
func NewEngine(
	p provider.Provider,
	local storage.Backend,
	formatter output.Formatter,
	logger logging.Logger,
	operation *models.SyncOperation,
) (*Engine, error) {
	if p == nil || local == nil {
		return nil, fmt.Errorf("provider and local backend are required")
	}
	if operation == nil {
		return nil, fmt.Errorf("operation is required")
	}
	if err := operation.Validate(); err != nil {
		return nil, fmt.Errorf("invalid operation: %w", err)
	}

	comparator, err := compare.New(operation.ComparisonMethod)
	if err != nil {
		return nil, err
	}
	excluder, err := NewExcluder(operation.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	return &Engine{
		provider:   p,
		local:      local,
		comparator: comparator,
		excluder:   excluder,
		limiter:    ratelimit.NewLimiter(operation.BandwidthLimit),
		formatter:  formatter,
		logger:     logger.WithFields(logging.Fields{"operation_id": operation.ID, "provider": p.Name()}),
		operation:  operation,
	}, nil
}

// Run executes the session. Per-file failures are recorded in the report
// and do not produce an error; the error is set only when the session could
// not run (connect or listing failure). The report is always returned.
func (e *Engine) Run(ctx context.Context) (*models.SyncReport, error) {
	report := models.NewReport(e.operation)

	e.logger.Info(ctx, "Starting sync operation", logging.Fields{
		"direction":   string(e.operation.Direction),
		"root":        e.operation.RootPath,
		"paths":       len(e.operation.Paths),
		"comparison":  string(e.comparator.Name()),
		"dry_run":     e.operation.DryRun,
		"max_workers": e.workers(),
	})

	if err := e.provider.Connect(ctx); err != nil {
		return e.abort(ctx, report, fmt.Errorf("connect failed: %w", err))
	}

	tasks, failures, err := e.plan(ctx)
	if err != nil {
		return e.abort(ctx, report, fmt.Errorf("failed to resolve files: %w", err))
	}
	for _, f := range failures {
		e.logger.Warn(ctx, "Selected path rejected", logging.Fields{"path": f.Path, "error": f.Reason})
		report.Record(f)
	}

	var totalBytes int64
	for i, task := range tasks {
		task.Index = i + 1
		if task.Action != models.ActionSkip {
			if size := task.Size(); size > 0 {
				totalBytes += size
			}
		}
	}
	e.totalFiles = len(tasks)
	report.SetResolved(len(tasks) + len(failures))

	if e.formatter != nil {
		e.formatter.Start(len(tasks), totalBytes, e.workers())
	}

	e.execute(ctx, tasks, report)

	cancelled := ctx.Err() != nil
	report.Finalize(cancelled)
	if cancelled {
		e.logger.Warn(ctx, "Sync cancelled", logging.Fields{"succeeded": report.Stats.Succeeded})
	}

	e.logger.Info(ctx, "Sync completed", logging.Fields{
		"status":            string(report.Status),
		"duration":          report.Duration.String(),
		"attempted":         report.Stats.Attempted,
		"succeeded":         report.Stats.Succeeded,
		"failed":            report.Stats.Failed,
		"skipped":           report.Stats.Skipped,
		"bytes_transferred": report.Stats.BytesTransferred,
	})

	if e.formatter != nil {
		e.formatter.Complete(report)
	}
	return report, nil
}

// Start runs the session in its own goroutine. The channel delivers exactly
// one Result and is then closed.
func (e *Engine) Start(ctx context.Context) <-chan Result {
	done := make(chan Result, 1)
	go func() {
		defer close(done)
		report, err := e.Run(ctx)
		done <- Result{Report: report, Err: err}
	}()
	return done
}

// abort finalizes a report for a session that could not run
func (e *Engine) abort(ctx context.Context, report *models.SyncReport, err error) (*models.SyncReport, error) {
	cancelled := ctx.Err() != nil || errors.Is(err, context.Canceled)
	report.Fail(err)
	report.Finalize(cancelled)

	e.logger.Error(ctx, "Sync aborted", err, logging.Fields{"status": string(report.Status)})
	if e.formatter != nil {
		e.formatter.Error(err)
		e.formatter.Complete(report)
	}
	return report, err
}
