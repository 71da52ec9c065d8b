// Package app wires the clipboard monitor, history store and summarization
// workers together and exposes the operations a front end needs.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atinylittleshell/clipminder/internal/aggregate"
	"github.com/atinylittleshell/clipminder/internal/clipboard"
	"github.com/atinylittleshell/clipminder/internal/events"
	"github.com/atinylittleshell/clipminder/internal/history"
	"github.com/atinylittleshell/clipminder/internal/monitor"
	"github.com/atinylittleshell/clipminder/internal/settings"
	"github.com/atinylittleshell/clipminder/internal/summarize"
	"go.uber.org/zap"
)

// SummaryDisabled is stored for copies made while summarization is off.
const SummaryDisabled = "Summarization disabled"

var ErrNoHistoryItem = errors.New("history item not found")

// Options configures an App.
type Options struct {
	Store     *history.Store
	Clipboard clipboard.Clipboard

	// Backend is used for model discovery and, unless Summarizer is set,
	// for generating summaries.
	Backend    summarize.Backend
	Summarizer *summarize.Summarizer

	// Sink receives every event on a single goroutine.
	Sink events.Sink

	PollInterval time.Duration
	Logger       *zap.Logger
}

// App is the running application minus its front end.
type App struct {
	store     *history.Store
	clipboard clipboard.Clipboard
	backend   summarize.Backend
	sink      events.Sink
	logger    *zap.Logger

	dispatcher *events.Dispatcher
	poller     *monitor.Poller
	pool       *summarize.Pool

	mu       sync.RWMutex
	settings settings.Settings

	closeOnce sync.Once
	closeErr  error
}

// New loads the persisted settings and prepares the workers. Monitoring is
// not started.
func New(opts Options) (*App, error) {
	if opts.Store == nil {
		return nil, errors.New("app requires a history store")
	}
	if opts.Clipboard == nil {
		return nil, errors.New("app requires a clipboard")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Sink == nil {
		opts.Sink = events.Nop{}
	}

	current, err := settings.Load(opts.Store)
	if err != nil {
		return nil, err
	}

	a := &App{
		store:     opts.Store,
		clipboard: opts.Clipboard,
		backend:   opts.Backend,
		sink:      opts.Sink,
		logger:    opts.Logger,
		settings:  current,
	}

	a.dispatcher = events.NewDispatcher(&handler{app: a}, opts.Logger)

	summarizer := opts.Summarizer
	if summarizer == nil && opts.Backend != nil {
		summarizer = summarize.NewSummarizer(opts.Backend, summarize.WithLogger(opts.Logger))
	}
	if summarizer != nil {
		a.pool = summarize.NewPool(summarizer, opts.Store, a.dispatcher, opts.Logger)
	}

	a.poller = monitor.New(monitor.Options{
		Clipboard: opts.Clipboard,
		History:   opts.Store,
		Policy:    a.policy,
		Sink:      a.dispatcher,
		Interval:  opts.PollInterval,
		Logger:    opts.Logger,
	})

	return a, nil
}

func (a *App) policy() aggregate.Policy {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings.Policy()
}

// Settings returns the current settings.
func (a *App) Settings() settings.Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

// UpdateSettings persists s. A running monitor is restarted so the clipboard
// is evaluated again under the new filter.
func (a *App) UpdateSettings(s settings.Settings) error {
	if err := s.Save(a.store); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	a.mu.Lock()
	a.settings = s
	a.mu.Unlock()

	if a.poller.Running() {
		a.poller.Stop()
		if err := a.poller.Start(); err != nil {
			return fmt.Errorf("failed to restart monitor: %w", err)
		}
	}

	a.logger.Info("settings updated",
		zap.Bool("processAllFiles", s.ProcessAllFiles),
		zap.Int("maxFileSizeMB", s.MaxFileSizeMB),
		zap.Strings("extensions", s.SupportedExtensions),
		zap.Bool("useOllama", s.UseOllama),
		zap.String("model", s.OllamaModel),
	)
	return nil
}

// StartMonitoring starts watching the clipboard.
func (a *App) StartMonitoring() error {
	if a.poller.Running() {
		return monitor.ErrAlreadyRunning
	}
	// Announced first so it precedes anything the immediate first tick reports.
	a.dispatcher.StatusMessage("Monitoring started")
	return a.poller.Start()
}

// StopMonitoring stops watching the clipboard and waits for the current tick.
func (a *App) StopMonitoring() {
	if !a.poller.Running() {
		return
	}
	a.poller.Stop()
	a.dispatcher.StatusMessage("Monitoring stopped")
}

// ToggleMonitoring flips the monitoring state and reports the new one.
func (a *App) ToggleMonitoring() (bool, error) {
	if a.poller.Running() {
		a.StopMonitoring()
		return false, nil
	}
	if err := a.StartMonitoring(); err != nil {
		return false, err
	}
	return true, nil
}

// Monitoring reports whether the clipboard is being watched.
func (a *App) Monitoring() bool {
	return a.poller.Running()
}

// History returns the retained copies, newest first.
func (a *App) History() ([]history.Record, error) {
	return a.store.List()
}

// CopyHistoryItem puts the content of a previous copy back on the clipboard.
func (a *App) CopyHistoryItem(id uint) error {
	content, found, err := a.store.GetContent(id)
	if err != nil {
		return err
	}
	if !found || content == "" {
		return fmt.Errorf("%w: %d", ErrNoHistoryItem, id)
	}

	if err := a.clipboard.WriteText(content); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}

	a.dispatcher.StatusMessage("Copied historical content to clipboard")
	return nil
}

// Models lists the models offered by the summarization backend.
func (a *App) Models(ctx context.Context) ([]string, error) {
	if a.backend == nil {
		return nil, errors.New("no summarization backend configured")
	}
	return a.backend.ListModels(ctx)
}

// Close stops monitoring, delivers pending events, waits for in-flight
// summaries and returns the first failure to store one. The store itself is
// left open for the caller to close.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.poller.Stop()
		a.dispatcher.Close()
		if a.pool != nil {
			a.closeErr = a.pool.Wait()
		}
	})
	return a.closeErr
}

// handler runs on the dispatcher goroutine and forwards events to the front
// end after acting on them.
type handler struct {
	app *App
}

func (h *handler) StatusMessage(text string) {
	h.app.sink.StatusMessage(text)
}

func (h *handler) CopyCompleted(event events.CopyCompleted) {
	a := h.app
	a.sink.CopyCompleted(event)

	current := a.Settings()
	if current.SummariesEnabled() && a.pool != nil {
		a.pool.Dispatch(summarize.Job{
			RecordID: event.RecordID,
			Content:  event.Content,
			Model:    current.OllamaModel,
		})
		return
	}

	if err := a.store.UpdateSummary(event.RecordID, SummaryDisabled); err != nil {
		a.logger.Error("failed to store summary", zap.Uint("id", event.RecordID), zap.Error(err))
		a.sink.StatusMessage(fmt.Sprintf("Error: %v", err))
		return
	}
	a.sink.SummaryUpdated(event.RecordID, SummaryDisabled)
}

func (h *handler) SummaryUpdated(recordID uint, summary string) {
	h.app.sink.SummaryUpdated(recordID, summary)
}
