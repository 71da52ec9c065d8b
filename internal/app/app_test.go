package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/atinylittleshell/clipminder/internal/events"
	"github.com/atinylittleshell/clipminder/internal/history"
	"github.com/atinylittleshell/clipminder/internal/settings"
	"github.com/atinylittleshell/clipminder/internal/summarize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClipboard struct {
	mu     sync.Mutex
	paths  []string
	writes []string
}

func (f *fakeClipboard) ReadFileReferences() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...), nil
}

func (f *fakeClipboard) WriteText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, text)
	return nil
}

func (f *fakeClipboard) lastWrite() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writes) == 0 {
		return ""
	}
	return f.writes[len(f.writes)-1]
}

type fakeBackend struct {
	title  string
	models []string
	err    error
}

func (b fakeBackend) Generate(context.Context, string, string) (string, error) {
	return b.title, b.err
}

func (b fakeBackend) ListModels(context.Context) ([]string, error) {
	return b.models, b.err
}

type fixture struct {
	app       *App
	store     *history.Store
	clipboard *fakeClipboard
	recorder  *events.Recorder
}

func newFixture(t *testing.T, backend summarize.Backend) *fixture {
	t.Helper()

	store, err := history.Open(":memory:")
	require.NoError(t, err)

	f := &fixture{
		store:     store,
		clipboard: &fakeClipboard{},
		recorder:  &events.Recorder{},
	}

	a, err := New(Options{
		Store:        store,
		Clipboard:    f.clipboard,
		Backend:      backend,
		Summarizer:   summarize.NewSummarizer(backend, summarize.WithRetryDelay(time.Millisecond)),
		Sink:         f.recorder,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	f.app = a

	t.Cleanup(func() {
		a.Close()
		store.Close()
	})
	return f
}

func writeFile(t *testing.T, dir string, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCopyIsStoredAndMarkedDisabled(t *testing.T) {
	f := newFixture(t, fakeBackend{title: "unused"})
	path := writeFile(t, t.TempDir(), "a.txt", "hello")
	f.clipboard.paths = []string{path}

	require.NoError(t, f.app.StartMonitoring())
	require.Eventually(t, func() bool {
		_, ok := f.recorder.Summary(1)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, f.app.Close())

	summary, _ := f.recorder.Summary(1)
	assert.Equal(t, SummaryDisabled, summary)

	records, err := f.app.History()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, SummaryDisabled, records[0].Summary.String)
	assert.Contains(t, records[0].Content, "File: a.txt\n")

	assert.Contains(t, f.clipboard.lastWrite(), "hello")
	assert.Equal(t, []string{"status:Monitoring started"}, f.recorder.Order()[:1])
}

func TestCopyIsSummarizedWhenEnabled(t *testing.T) {
	f := newFixture(t, fakeBackend{title: "Greeting File"})

	s := f.app.Settings()
	s.UseOllama = true
	s.OllamaModel = "llama3"
	require.NoError(t, f.app.UpdateSettings(s))

	path := writeFile(t, t.TempDir(), "a.txt", "hello")
	f.clipboard.paths = []string{path}

	require.NoError(t, f.app.StartMonitoring())
	require.Eventually(t, func() bool {
		_, ok := f.recorder.Summary(1)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, f.app.Close())

	summary, _ := f.recorder.Summary(1)
	assert.Equal(t, "Greeting File", summary)

	record, found, err := f.store.Get(1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Greeting File", record.Summary.String)
}

func TestSummaryErrorIsStored(t *testing.T) {
	f := newFixture(t, fakeBackend{err: errors.New("connection refused")})

	s := f.app.Settings()
	s.UseOllama = true
	s.OllamaModel = "llama3"
	require.NoError(t, f.app.UpdateSettings(s))

	f.clipboard.paths = []string{writeFile(t, t.TempDir(), "a.txt", "hello")}

	require.NoError(t, f.app.StartMonitoring())
	require.Eventually(t, func() bool {
		_, ok := f.recorder.Summary(1)
		return ok
	}, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, f.app.Close())

	summary, _ := f.recorder.Summary(1)
	assert.True(t, summarize.IsError(summary))
}

func TestSettingsChangeAppliesToNextCopy(t *testing.T) {
	f := newFixture(t, fakeBackend{})
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "text")
	writeFile(t, dir, "main.go", "package main")

	s := f.app.Settings()
	s.ProcessAllFiles = false
	s.SupportedExtensions = []string{".go"}
	require.NoError(t, f.app.UpdateSettings(s))

	f.clipboard.paths = []string{dir}
	require.NoError(t, f.app.StartMonitoring())
	require.Eventually(t, func() bool {
		return len(f.recorder.Copies()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	f.app.StopMonitoring()

	copied := f.recorder.Copies()[0]
	assert.Equal(t, 1, copied.FileCount)
	assert.Contains(t, copied.Content, "File: main.go\n")
	assert.NotContains(t, copied.Content, "notes.txt")

	reloaded, err := settings.Load(f.store)
	require.NoError(t, err)
	assert.Equal(t, []string{".go"}, reloaded.SupportedExtensions)
	assert.False(t, reloaded.ProcessAllFiles)
}

func TestToggleMonitoring(t *testing.T) {
	f := newFixture(t, fakeBackend{})

	running, err := f.app.ToggleMonitoring()
	require.NoError(t, err)
	assert.True(t, running)
	assert.True(t, f.app.Monitoring())

	running, err = f.app.ToggleMonitoring()
	require.NoError(t, err)
	assert.False(t, running)
	assert.False(t, f.app.Monitoring())

	require.NoError(t, f.app.Close())
	assert.Equal(t, []string{"Monitoring started", "Monitoring stopped"}, f.recorder.Statuses())
}

func TestCopyHistoryItem(t *testing.T) {
	f := newFixture(t, fakeBackend{})
	id, err := f.store.Append(1, 1, "File: a.txt\nPath: /a.txt\n\nhello\n\n")
	require.NoError(t, err)

	require.NoError(t, f.app.CopyHistoryItem(id))
	assert.Equal(t, "File: a.txt\nPath: /a.txt\n\nhello\n\n", f.clipboard.lastWrite())

	err = f.app.CopyHistoryItem(id + 100)
	assert.ErrorIs(t, err, ErrNoHistoryItem)

	require.NoError(t, f.app.Close())
	assert.Equal(t, []string{"Copied historical content to clipboard"}, f.recorder.Statuses())
}

func TestModels(t *testing.T) {
	f := newFixture(t, fakeBackend{models: []string{"llama3", "phi3"}})

	models, err := f.app.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3", "phi3"}, models)
}

func TestNewRequiresStoreAndClipboard(t *testing.T) {
	_, err := New(Options{Clipboard: &fakeClipboard{}})
	assert.Error(t, err)

	store, err := history.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, err = New(Options{Store: store})
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFixture(t, fakeBackend{})
	require.NoError(t, f.app.StartMonitoring())

	assert.NoError(t, f.app.Close())
	assert.NoError(t, f.app.Close())
	assert.False(t, f.app.Monitoring())
}

func TestSettingsChangeRestartsRunningMonitor(t *testing.T) {
	f := newFixture(t, fakeBackend{})
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "text")
	writeFile(t, dir, "main.go", "package main")
	f.clipboard.paths = []string{dir}

	require.NoError(t, f.app.StartMonitoring())
	require.Eventually(t, func() bool {
		return len(f.recorder.Copies()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, f.recorder.Copies()[0].FileCount)

	s := f.app.Settings()
	s.ProcessAllFiles = false
	s.SupportedExtensions = []string{".go"}
	require.NoError(t, f.app.UpdateSettings(s))
	assert.True(t, f.app.Monitoring())

	// The unchanged clipboard is processed again under the new filter.
	require.Eventually(t, func() bool {
		return len(f.recorder.Copies()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.recorder.Copies()[1].FileCount)
}
