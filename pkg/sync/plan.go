package sync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/sdejongh/remotesync/pkg/compare"
	"github.com/sdejongh/remotesync/pkg/logging"
	"github.com/sdejongh/remotesync/pkg/models"
	"github.com/sdejongh/remotesync/pkg/provider"
)

// plan resolves the selection into tasks. Selected paths that cannot be
// resolved are returned as failed outcomes; a returned error aborts the session.
func (e *Engine) plan(ctx context.Context) ([]*FileTask, []models.TransferOutcome, error) {
	var (
		entries  []*models.FileEntry
		failures []models.TransferOutcome
		err      error
	)

	switch e.operation.Direction {
	case models.DirectionUpload:
		entries, failures, err = e.resolveUpload(ctx)
	case models.DirectionDownload:
		entries, failures, err = e.resolveDownload(ctx)
	default:
		return nil, nil, fmt.Errorf("unknown direction: %s", e.operation.Direction)
	}
	if err != nil {
		return nil, nil, err
	}

	action := models.ActionUpload
	if e.operation.Direction == models.DirectionDownload {
		action = models.ActionDownload
	}

	tasks := make([]*FileTask, 0, len(entries))
	for _, entry := range entries {
		task := &FileTask{Entry: entry, Action: action}
		if result := e.comparator.Compare(entry, e.operation.Direction); result.Match {
			task.Action = models.ActionSkip
			task.Detail = result.Reason
		}
		tasks = append(tasks, task)
	}
	return tasks, failures, nil
}

// resolveUpload enumerates the local side. An empty selection means every local file.
func (e *Engine) resolveUpload(ctx context.Context) ([]*models.FileEntry, []models.TransferOutcome, error) {
	selected := make(map[string]*models.FileEntry)
	var failures []models.TransferOutcome

	addDir := func(dir string) error {
		files, err := e.local.List(ctx, dir)
		if err != nil {
			return err
		}
		for i := range files {
			if files[i].IsDir || e.excluder.Excluded(files[i].RelativePath) {
				continue
			}
			selected[files[i].RelativePath] = &models.FileEntry{
				RelativePath: files[i].RelativePath,
				Local:        compare.LocalMeta(&files[i]),
			}
		}
		return nil
	}

	if len(e.operation.Paths) == 0 {
		if err := addDir(""); err != nil {
			return nil, nil, fmt.Errorf("failed to enumerate local files: %w", err)
		}
	}

	for _, raw := range e.operation.Paths {
		p, err := provider.CleanPath(raw)
		if err != nil {
			failures = append(failures, models.Failed(raw, models.ActionUpload, err))
			continue
		}
		info, err := e.local.Stat(ctx, p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				err = fmt.Errorf("local file not found: %w", err)
			}
			failures = append(failures, models.Failed(p, models.ActionUpload, err))
			continue
		}
		if info.IsDir {
			if err := addDir(p); err != nil {
				failures = append(failures, models.Failed(p, models.ActionUpload, err))
			}
			continue
		}
		if e.excluder.Excluded(p) {
			e.logger.Debug(ctx, "Selected path excluded", logging.Fields{"path": p})
			continue
		}
		selected[p] = &models.FileEntry{RelativePath: p, Local: compare.LocalMeta(info)}
	}

	if e.comparator.Name() != models.CompareNone && len(selected) > 0 {
		remote, err := e.provider.List(ctx, "")
		if err != nil {
			return nil, nil, err
		}
		for _, r := range remote {
			if entry, ok := selected[r.Path]; ok {
				entry.Remote = compare.RemoteMeta(r)
			}
		}
	}

	return sortedEntries(selected), failures, nil
}

// resolveDownload lists the remote once and intersects it with the selection.
// An empty selection means every remote file.
func (e *Engine) resolveDownload(ctx context.Context) ([]*models.FileEntry, []models.TransferOutcome, error) {
	remote, err := e.provider.List(ctx, "")
	if err != nil {
		return nil, nil, err
	}

	var (
		scopes   []string
		failures []models.TransferOutcome
	)
	for _, raw := range e.operation.Paths {
		p, err := provider.CleanPath(raw)
		if err != nil {
			failures = append(failures, models.Failed(raw, models.ActionDownload, err))
			continue
		}
		scopes = append(scopes, p)
	}
	if len(e.operation.Paths) > 0 && len(scopes) == 0 {
		return nil, failures, nil
	}

	selected := make(map[string]*models.FileEntry)
	matched := make(map[string]bool, len(scopes))
	for _, r := range remote {
		if e.excluder.Excluded(r.Path) {
			continue
		}
		if len(scopes) > 0 {
			in := false
			for _, scope := range scopes {
				if provider.Within(r.Path, scope) {
					matched[scope] = true
					in = true
				}
			}
			if !in {
				continue
			}
		}
		selected[r.Path] = &models.FileEntry{RelativePath: r.Path, Remote: compare.RemoteMeta(r)}
	}

	for _, scope := range scopes {
		if !matched[scope] {
			e.logger.Warn(ctx, "Selected path not found on remote", logging.Fields{"path": scope})
		}
	}

	if e.comparator.Name() != models.CompareNone {
		for p, entry := range selected {
			info, err := e.local.Stat(ctx, p)
			if err == nil && !info.IsDir {
				entry.Local = compare.LocalMeta(info)
			}
		}
	}

	return sortedEntries(selected), failures, nil
}

func sortedEntries(m map[string]*models.FileEntry) []*models.FileEntry {
	entries := make([]*models.FileEntry, 0, len(m))
	for _, entry := range m {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].RelativePath < entries[j].RelativePath })
	return entries
}
