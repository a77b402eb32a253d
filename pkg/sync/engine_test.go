package sync

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdejongh/remotesync/pkg/models"
	"github.com/sdejongh/remotesync/pkg/output"
	"github.com/sdejongh/remotesync/pkg/provider"
	"github.com/sdejongh/remotesync/pkg/storage"
)

// memProvider is an in-memory provider.Provider
type memProvider struct {
	provider.Lifecycle

	mu         sync.Mutex
	files      map[string][]byte
	modTimes   map[string]time.Time
	fail       map[string]int // path -> HTTP status returned by Upload/Download
	connectErr error
	listErr    error
	concurrent bool

	uploads   []string
	downloads []string
	lists     int

	// onTransfer runs before every upload or download
	onTransfer func(path string)

	active    atomic.Int32
	maxActive atomic.Int32
}

func newMemProvider() *memProvider {
	return &memProvider{
		files:    make(map[string][]byte),
		modTimes: make(map[string]time.Time),
		fail:     make(map[string]int),
	}
}

func (m *memProvider) Connect(ctx context.Context) error {
	if m.connectErr != nil {
		return m.connectErr
	}
	m.MarkConnected()
	return nil
}

func (m *memProvider) List(ctx context.Context, path string) ([]provider.RemoteEntry, error) {
	if err := m.Ready("list", path); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var entries []provider.RemoteEntry
	for p, content := range m.files {
		entries = append(entries, provider.RemoteEntry{Path: p, Size: int64(len(content)), ModTime: m.modTimes[p]})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (m *memProvider) enter(path string) func() {
	if m.onTransfer != nil {
		m.onTransfer(path)
	}
	n := m.active.Add(1)
	for {
		max := m.maxActive.Load()
		if n <= max || m.maxActive.CompareAndSwap(max, n) {
			break
		}
	}
	if m.concurrent {
		time.Sleep(20 * time.Millisecond)
	}
	return func() { m.active.Add(-1) }
}

func (m *memProvider) Upload(ctx context.Context, path string, content io.Reader) error {
	if err := m.Ready("upload", path); err != nil {
		return err
	}
	defer m.enter(path)()
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, path)
	if status, ok := m.fail[path]; ok {
		return provider.StatusError("upload", path, status)
	}
	m.files[path] = data
	return nil
}

func (m *memProvider) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := m.Ready("download", path); err != nil {
		return nil, err
	}
	defer m.enter(path)()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads = append(m.downloads, path)
	if status, ok := m.fail[path]; ok {
		return nil, provider.StatusError("download", path, status)
	}
	data, ok := m.files[path]
	if !ok {
		return nil, provider.StatusError("download", path, http.StatusNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{ConcurrentWrites: m.concurrent, Hierarchical: true}
}

func (m *memProvider) Name() string { return "memory" }

func (m *memProvider) Close() error {
	m.MarkClosed()
	return nil
}

func (m *memProvider) uploaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string(nil), m.uploads...)
	sort.Strings(out)
	return out
}

func writeLocal(t *testing.T, local storage.Backend, files map[string]string) {
	t.Helper()
	for p, content := range files {
		require.NoError(t, local.Write(context.Background(), p, strings.NewReader(content), int64(len(content)), nil))
	}
}

func readLocal(t *testing.T, local storage.Backend, p string) string {
	t.Helper()
	rc, err := local.Read(context.Background(), p)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func operation(direction models.Direction, paths ...string) *models.SyncOperation {
	return &models.SyncOperation{
		ID:         "test-op",
		Provider:   "memory",
		Direction:  direction,
		RootPath:   "/memory",
		Paths:      paths,
		MaxWorkers: 1,
	}
}

func newEngine(t *testing.T, p provider.Provider, local storage.Backend, op *models.SyncOperation) *Engine {
	t.Helper()
	engine, err := NewEngine(p, local, nil, nil, op)
	require.NoError(t, err)
	return engine
}

func TestUploadPartialFailure(t *testing.T) {
	local := storage.NewMemory()
	writeLocal(t, local, map[string]string{"a": "alpha", "b": "bravo", "c": "charlie"})

	remote := newMemProvider()
	remote.fail["b"] = http.StatusInternalServerError

	report, err := newEngine(t, remote, local, operation(models.DirectionUpload, "a", "b", "c")).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPartial, report.Status)
	assert.Equal(t, 3, report.Stats.Attempted)
	assert.Equal(t, 2, report.Stats.Succeeded)
	assert.Equal(t, 1, report.Stats.Failed)
	assert.True(t, report.HadFailures())
	assert.Equal(t, []string{"a", "c"}, report.SucceededPaths())

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].Path)
	assert.Contains(t, failures[0].Reason, "500")

	assert.Equal(t, []byte("alpha"), remote.files["a"])
	assert.Equal(t, []byte("charlie"), remote.files["c"])
	assert.Equal(t, int64(len("alpha")+len("charlie")), report.Stats.BytesTransferred)
}

func TestUploadCancellationStopsRemainingFiles(t *testing.T) {
	local := storage.NewMemory()
	writeLocal(t, local, map[string]string{"a": "1", "b": "2", "c": "3"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remote := newMemProvider()
	remote.onTransfer = func(path string) {
		if path == "a" {
			// cancellation lands while a is in flight; a still completes
			cancel()
		}
	}

	report, err := newEngine(t, remote, local, operation(models.DirectionUpload, "a", "b", "c")).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCancelled, report.Status)
	assert.Equal(t, []string{"a"}, remote.uploaded())
	assert.Equal(t, []string{"a"}, report.SucceededPaths())
	assert.Equal(t, 1, report.Stats.Attempted)
}

func TestUploadAllWhenSelectionEmpty(t *testing.T) {
	local := storage.NewMemory()
	writeLocal(t, local, map[string]string{"x.txt": "x", "dir/y.txt": "yy", "dir/sub/z.txt": "zzz"})

	remote := newMemProvider()
	report, err := newEngine(t, remote, local, operation(models.DirectionUpload)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, report.Status)
	assert.Equal(t, []string{"dir/sub/z.txt", "dir/y.txt", "x.txt"}, remote.uploaded())
	assert.Equal(t, 3, report.Stats.FilesResolved)
}

func TestUploadSelectedDirectory(t *testing.T) {
	local := storage.NewMemory()
	writeLocal(t, local, map[string]string{"dicts/en.txt": "en", "dicts/fr.txt": "fr", "notes.txt": "n"})

	remote := newMemProvider()
	report, err := newEngine(t, remote, local, operation(models.DirectionUpload, "dicts")).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, report.Status)
	assert.Equal(t, []string{"dicts/en.txt", "dicts/fr.txt"}, remote.uploaded())
}

func TestUploadMissingAndInvalidSelection(t *testing.T) {
	local := storage.NewMemory()
	writeLocal(t, local, map[string]string{"a": "1"})

	remote := newMemProvider()
	report, err := newEngine(t, remote, local, operation(models.DirectionUpload, "a", "missing", "../escape")).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPartial, report.Status)
	assert.Equal(t, []string{"a"}, remote.uploaded())

	failures := report.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "../escape", failures[0].Path)
	assert.Equal(t, "missing", failures[1].Path)
	assert.Contains(t, failures[1].Reason, "not found")
}

func TestUploadExcludes(t *testing.T) {
	local := storage.NewMemory()
	writeLocal(t, local, map[string]string{"keep.txt": "k", "debug.log": "d", ".git/config": "c", "build/out.bin": "b"})

	op := operation(models.DirectionUpload)
	op.ExcludePatterns = []string{"*.log", ".git/", "build/*"}

	remote := newMemProvider()
	report, err := newEngine(t, remote, local, op).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, report.Status)
	assert.Equal(t, []string{"keep.txt"}, remote.uploaded())
}

func TestUploadDryRun(t *testing.T) {
	local := storage.NewMemory()
	writeLocal(t, local, map[string]string{"a": "1", "b": "22"})

	op := operation(models.DirectionUpload)
	op.DryRun = true

	remote := newMemProvider()
	report, err := newEngine(t, remote, local, op).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusNothing, report.Status)
	assert.Empty(t, remote.uploaded())
	assert.Equal(t, 2, report.Stats.WouldTransfer)
	assert.Equal(t, 0, report.Stats.Attempted)
}

func TestUploadComparisonSkipsMatchingFiles(t *testing.T) {
	local := storage.NewMemory()
	writeLocal(t, local, map[string]string{"same": "12345", "changed": "abc"})

	remote := newMemProvider()
	remote.files["same"] = []byte("54321")
	remote.files["changed"] = []byte("abcdef")

	op := operation(models.DirectionUpload)
	op.ComparisonMethod = models.CompareNameSize

	report, err := newEngine(t, remote, local, op).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, report.Status)
	assert.Equal(t, []string{"changed"}, remote.uploaded())
	assert.Equal(t, 1, report.Stats.Skipped)
	assert.Equal(t, 1, remote.lists)
}

func TestUploadComparisonListFailureAborts(t *testing.T) {
	local := storage.NewMemory()
	writeLocal(t, local, map[string]string{"a": "1"})

	remote := newMemProvider()
	remote.listErr = &provider.Error{Op: "list", Kind: provider.ErrUnsupported}

	op := operation(models.DirectionUpload)
	op.ComparisonMethod = models.CompareTimestamp

	report, err := newEngine(t, remote, local, op).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrUnsupported)
	assert.Equal(t, models.StatusFailed, report.Status)
	assert.Empty(t, remote.uploaded())
}

func TestConnectFailure(t *testing.T) {
	local := storage.NewMemory()
	writeLocal(t, local, map[string]string{"a": "1"})

	remote := newMemProvider()
	remote.connectErr = provider.StatusError("connect", "", http.StatusUnauthorized)

	report, err := newEngine(t, remote, local, operation(models.DirectionUpload)).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrAuth)
	assert.Equal(t, models.StatusFailed, report.Status)
	assert.Equal(t, 401, provider.StatusCode(err))
	assert.NotEmpty(t, report.Error)
	assert.Empty(t, remote.uploaded())
}

func TestDownloadWritesParents(t *testing.T) {
	remote := newMemProvider()
	remote.files["dicts/en/words.txt"] = []byte("hello")
	remote.files["top.txt"] = []byte("top")
	mtime := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	remote.modTimes["top.txt"] = mtime

	dir := t.TempDir()
	local, err := storage.NewLocal(dir)
	require.NoError(t, err)

	report, err := newEngine(t, remote, local, operation(models.DirectionDownload)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, report.Status)
	assert.Equal(t, "hello", readLocal(t, local, "dicts/en/words.txt"))
	assert.Equal(t, "top", readLocal(t, local, "top.txt"))
	assert.Equal(t, 1, remote.lists)

	info, err := local.Stat(context.Background(), "top.txt")
	require.NoError(t, err)
	assert.True(t, info.ModTime.Equal(mtime), "remote modification time is kept")
}

func TestDownloadIntersectsSelection(t *testing.T) {
	remote := newMemProvider()
	remote.files["a.txt"] = []byte("a")
	remote.files["b.txt"] = []byte("b")
	remote.files["dir/c.txt"] = []byte("c")

	local := storage.NewMemory()
	report, err := newEngine(t, remote, local, operation(models.DirectionDownload, "a.txt", "dir", "absent.txt")).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, report.Status)
	assert.Equal(t, []string{"a.txt", "dir/c.txt"}, report.SucceededPaths())

	exists, err := local.Exists(context.Background(), "b.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDownloadPartialFailure(t *testing.T) {
	remote := newMemProvider()
	remote.files["a"] = []byte("1")
	remote.files["b"] = []byte("2")
	remote.files["c"] = []byte("3")
	remote.fail["b"] = http.StatusInternalServerError

	local := storage.NewMemory()
	report, err := newEngine(t, remote, local, operation(models.DirectionDownload)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPartial, report.Status)
	assert.Equal(t, []string{"a", "c"}, report.SucceededPaths())
	exists, _ := local.Exists(context.Background(), "b")
	assert.False(t, exists, "a failed download leaves no local file")
}

func TestDownloadComparisonTimestamp(t *testing.T) {
	dir := t.TempDir()
	local, err := storage.NewLocal(dir)
	require.NoError(t, err)

	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, local.Write(context.Background(), "kept.txt", strings.NewReader("same"), 4, &storage.FileInfo{ModTime: time.Now()}))
	require.NoError(t, local.Write(context.Background(), "stale.txt", strings.NewReader("old!"), 4, &storage.FileInfo{ModTime: old}))

	remote := newMemProvider()
	remote.files["kept.txt"] = []byte("same")
	remote.modTimes["kept.txt"] = old
	remote.files["stale.txt"] = []byte("new!")
	remote.modTimes["stale.txt"] = time.Now()

	op := operation(models.DirectionDownload)
	op.ComparisonMethod = models.CompareTimestamp

	report, err := newEngine(t, remote, local, op).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, report.Status)
	assert.Equal(t, []string{"stale.txt"}, report.SucceededPaths())
	assert.Equal(t, 1, report.Stats.Skipped)
	assert.Equal(t, "new!", readLocal(t, local, "stale.txt"))
}

func TestNothingToDo(t *testing.T) {
	remote := newMemProvider()
	report, err := newEngine(t, remote, storage.NewMemory(), operation(models.DirectionDownload)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusNothing, report.Status)
	assert.False(t, report.HadFailures())
}

func TestAllFailed(t *testing.T) {
	local := storage.NewMemory()
	writeLocal(t, local, map[string]string{"a": "1"})

	remote := newMemProvider()
	remote.fail["a"] = http.StatusForbidden

	report, err := newEngine(t, remote, local, operation(models.DirectionUpload)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, report.Status)

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Reason, provider.ErrAuth.Error())
}

func TestConcurrentTransfers(t *testing.T) {
	files := map[string]string{}
	for _, name := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		files[name] = name
	}

	t.Run("ParallelWhenProviderAllows", func(t *testing.T) {
		local := storage.NewMemory()
		writeLocal(t, local, files)

		remote := newMemProvider()
		remote.concurrent = true
		op := operation(models.DirectionUpload)
		op.MaxWorkers = 4

		report, err := newEngine(t, remote, local, op).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, models.StatusSuccess, report.Status)
		assert.Len(t, remote.uploaded(), 8)
		assert.LessOrEqual(t, remote.maxActive.Load(), int32(4))
		assert.Greater(t, remote.maxActive.Load(), int32(1))
	})

	t.Run("SequentialWhenProviderForbids", func(t *testing.T) {
		local := storage.NewMemory()
		writeLocal(t, local, files)

		remote := newMemProvider()
		op := operation(models.DirectionUpload)
		op.MaxWorkers = 4

		engine := newEngine(t, remote, local, op)
		assert.Equal(t, 1, engine.workers())

		report, err := engine.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, models.StatusSuccess, report.Status)
		assert.Equal(t, int32(1), remote.maxActive.Load())
	})
}

func TestStartDeliversResult(t *testing.T) {
	local := storage.NewMemory()
	writeLocal(t, local, map[string]string{"a": "1"})

	remote := newMemProvider()
	done := newEngine(t, remote, local, operation(models.DirectionUpload)).Start(context.Background())

	select {
	case res, ok := <-done:
		require.True(t, ok)
		require.NoError(t, res.Err)
		assert.Equal(t, models.StatusSuccess, res.Report.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not complete")
	}

	_, ok := <-done
	assert.False(t, ok, "channel is closed after the result")
}

func TestBandwidthLimitApplied(t *testing.T) {
	local := storage.NewMemory()
	content := strings.Repeat("x", 96*1024)
	writeLocal(t, local, map[string]string{"big": content})

	op := operation(models.DirectionUpload)
	op.BandwidthLimit = 64 * 1024

	remote := newMemProvider()
	start := time.Now()
	report, err := newEngine(t, remote, local, op).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, report.Status)
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
	assert.Equal(t, []byte(content), remote.files["big"])
}

// recordingFormatter captures progress events
type recordingFormatter struct {
	mu       sync.Mutex
	started  int
	events   []output.ProgressUpdate
	complete *models.SyncReport
	errs     []error
}

func (f *recordingFormatter) Start(totalFiles int, totalBytes int64, maxWorkers int) error {
	f.started = totalFiles
	return nil
}

func (f *recordingFormatter) Progress(update output.ProgressUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, update)
	return nil
}

func (f *recordingFormatter) Complete(report *models.SyncReport) error {
	f.complete = report
	return nil
}

func (f *recordingFormatter) Error(err error) error {
	f.errs = append(f.errs, err)
	return nil
}

func (f *recordingFormatter) Name() string { return "recording" }

func TestFormatterNotified(t *testing.T) {
	local := storage.NewMemory()
	writeLocal(t, local, map[string]string{"a": "1", "b": "2"})

	remote := newMemProvider()
	remote.fail["b"] = http.StatusBadGateway

	formatter := &recordingFormatter{}
	engine, err := NewEngine(remote, local, formatter, nil, operation(models.DirectionUpload))
	require.NoError(t, err)

	report, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, formatter.started)
	assert.Same(t, report, formatter.complete)

	var types []string
	for _, ev := range formatter.events {
		if ev.Type != output.EventFileProgress {
			types = append(types, ev.Type+":"+ev.FilePath)
		}
	}
	assert.Equal(t, []string{
		"file_start:a", "file_complete:a",
		"file_start:b", "file_error:b",
	}, types)
}

func TestNewEngineValidation(t *testing.T) {
	remote := newMemProvider()
	local := storage.NewMemory()

	_, err := NewEngine(nil, local, nil, nil, operation(models.DirectionUpload))
	assert.Error(t, err)

	_, err = NewEngine(remote, local, nil, nil, nil)
	assert.Error(t, err)

	op := operation(models.DirectionUpload)
	op.MaxWorkers = 0
	_, err = NewEngine(remote, local, nil, nil, op)
	var ve *models.ValidationError
	assert.True(t, errors.As(err, &ve))

	op = operation(models.DirectionUpload)
	op.ExcludePatterns = []string{"[unclosed"}
	_, err = NewEngine(remote, local, nil, nil, op)
	assert.Error(t, err)
}
