package sync

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sdejongh/remotesync/pkg/logging"
	"github.com/sdejongh/remotesync/pkg/models"
	"github.com/sdejongh/remotesync/pkg/output"
	"github.com/sdejongh/remotesync/pkg/ratelimit"
	"github.com/sdejongh/remotesync/pkg/storage"
)

// progressReader wraps an io.Reader to count bytes and report progress
type progressReader struct {
	reader         io.Reader
	read           int64
	lastReported   int64
	lastReportTime time.Time
	onProgress     func(bytesRead int64)
}

// Progress reporting thresholds
const (
	progressReportInterval = 50 * time.Millisecond
	progressReportBytes    = 64 * 1024
)

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.read += int64(n)

		if pr.onProgress != nil {
			shouldReport := pr.read-pr.lastReported >= progressReportBytes ||
				time.Since(pr.lastReportTime) >= progressReportInterval ||
				err != nil
			if shouldReport {
				pr.onProgress(pr.read)
				pr.lastReported = pr.read
				pr.lastReportTime = time.Now()
			}
		}
	}
	return n, err
}

// execute runs the tasks, sequentially unless the provider allows
// concurrent writes and more than one worker is configured. No task starts
// once ctx is done; outcomes already recorded stay in the report.
func (e *Engine) execute(ctx context.Context, tasks []*FileTask, report *models.SyncReport) {
	workers := e.workers()
	e.logger.Debug(ctx, "Executing transfers", logging.Fields{"tasks": len(tasks), "workers": workers})

	if workers == 1 {
		for _, task := range tasks {
			if ctx.Err() != nil {
				return
			}
			report.Record(e.process(ctx, task))
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			report.Record(e.process(ctx, task))
			return nil
		})
	}
	g.Wait()
}

// workers returns the effective parallelism
func (e *Engine) workers() int {
	if e.operation.MaxWorkers > 1 && e.provider.Capabilities().ConcurrentWrites {
		return e.operation.MaxWorkers
	}
	return 1
}

// process handles one task and notifies the formatter
func (e *Engine) process(ctx context.Context, task *FileTask) models.TransferOutcome {
	if task.Action == models.ActionSkip {
		e.notify(output.ProgressUpdate{Type: output.EventFileSkipped, Action: task.Action, FilePath: task.Path(), CurrentFile: task.Index})
		e.logger.Debug(ctx, "File skipped", logging.Fields{"path": task.Path(), "reason": task.Detail})
		return models.Skipped(task.Path(), task.Detail)
	}

	if e.operation.DryRun {
		e.notify(output.ProgressUpdate{Type: output.EventFileSkipped, Action: task.Action, FilePath: task.Path(), CurrentFile: task.Index})
		e.logger.Info(ctx, "Dry run: would transfer", logging.Fields{"path": task.Path(), "action": string(task.Action)})
		return models.Planned(task.Path(), task.Action, task.Size())
	}

	e.notify(output.ProgressUpdate{
		Type:        output.EventFileStart,
		Action:      task.Action,
		FilePath:    task.Path(),
		TotalBytes:  task.Size(),
		CurrentFile: task.Index,
	})

	start := time.Now()
	var (
		n   int64
		err error
	)
	switch task.Action {
	case models.ActionUpload:
		n, err = e.upload(ctx, task)
	case models.ActionDownload:
		n, err = e.download(ctx, task)
	default:
		err = fmt.Errorf("unknown action: %s", task.Action)
	}
	elapsed := time.Since(start)

	if err != nil {
		e.logger.Error(ctx, "Transfer failed", err, logging.Fields{"path": task.Path(), "action": string(task.Action)})
		e.notify(output.ProgressUpdate{
			Type:        output.EventFileError,
			Action:      task.Action,
			FilePath:    task.Path(),
			CurrentFile: task.Index,
			Error:       err,
		})
		return models.Failed(task.Path(), task.Action, err)
	}

	e.logger.Info(ctx, "Transfer complete", logging.Fields{
		"path":     task.Path(),
		"action":   string(task.Action),
		"bytes":    n,
		"duration": elapsed.String(),
	})
	e.notify(output.ProgressUpdate{
		Type:         output.EventFileComplete,
		Action:       task.Action,
		FilePath:     task.Path(),
		BytesWritten: n,
		TotalBytes:   task.Size(),
		CurrentFile:  task.Index,
	})
	return models.Succeeded(task.Path(), task.Action, n, elapsed)
}

// upload streams the local file into the provider
func (e *Engine) upload(ctx context.Context, task *FileTask) (int64, error) {
	reader, err := e.local.Read(ctx, task.Path())
	if err != nil {
		return 0, fmt.Errorf("failed to read local file: %w", err)
	}
	defer reader.Close()

	counter := e.wrap(ctx, reader, task)
	if err := e.provider.Upload(ctx, task.Path(), counter); err != nil {
		return counter.read, err
	}
	return counter.read, nil
}

// download streams the remote file into the local tree, creating parents
func (e *Engine) download(ctx context.Context, task *FileTask) (int64, error) {
	body, err := e.provider.Download(ctx, task.Path())
	if err != nil {
		return 0, err
	}
	defer body.Close()

	var meta *storage.FileInfo
	if task.Entry.Remote != nil && !task.Entry.Remote.ModTime.IsZero() {
		meta = &storage.FileInfo{ModTime: task.Entry.Remote.ModTime}
	}

	// remote sizes are advisory, the local write does not enforce them
	counter := e.wrap(ctx, body, task)
	if err := e.local.Write(ctx, task.Path(), counter, -1, meta); err != nil {
		return counter.read, fmt.Errorf("failed to write local file: %w", err)
	}
	return counter.read, nil
}

// wrap applies the bandwidth limit and progress reporting to a transfer stream
func (e *Engine) wrap(ctx context.Context, r io.Reader, task *FileTask) *progressReader {
	return &progressReader{
		reader:         ratelimit.NewReader(ctx, r, e.limiter),
		lastReportTime: time.Now(),
		onProgress: func(bytesRead int64) {
			e.notify(output.ProgressUpdate{
				Type:         output.EventFileProgress,
				Action:       task.Action,
				FilePath:     task.Path(),
				BytesWritten: bytesRead,
				TotalBytes:   task.Size(),
				CurrentFile:  task.Index,
			})
		},
	}
}

// notify forwards an update to the formatter. Formatters may not be
// goroutine-safe, so updates are serialized.
func (e *Engine) notify(update output.ProgressUpdate) {
	if e.formatter == nil {
		return
	}
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	update.TotalFiles = e.totalFiles
	e.formatter.Progress(update)
}
