// Package monitor implements the background loop that watches the clipboard
// for copied files and replaces them with their aggregated text.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/atinylittleshell/clipminder/internal/aggregate"
	"github.com/atinylittleshell/clipminder/internal/clipboard"
	"github.com/atinylittleshell/clipminder/internal/events"
	"go.uber.org/zap"
)

// DefaultInterval is how often the clipboard is sampled.
const DefaultInterval = time.Second

var ErrAlreadyRunning = errors.New("monitor is already running")

// HistoryAppender records completed copies.
type HistoryAppender interface {
	Append(fileCount int, lineCount int, content string) (uint, error)
}

// Options configures a Poller.
type Options struct {
	Clipboard clipboard.Clipboard
	History   HistoryAppender

	// Policy is called at the start of every tick so that settings changes
	// take effect without a restart.
	Policy func() aggregate.Policy

	Sink     events.Sink
	Interval time.Duration
	Logger   *zap.Logger
}

// Poller samples the clipboard once per interval on a single goroutine.
type Poller struct {
	clipboard clipboard.Clipboard
	history   HistoryAppender
	policy    func() aggregate.Policy
	sink      events.Sink
	interval  time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// lastPaths is only touched by the loop goroutine.
	lastPaths []string
}

// New creates a stopped Poller.
func New(opts Options) *Poller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Sink == nil {
		opts.Sink = events.Nop{}
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	return &Poller{
		clipboard: opts.Clipboard,
		history:   opts.History,
		policy:    opts.Policy,
		sink:      opts.Sink,
		interval:  opts.Interval,
		logger:    opts.Logger,
	}
}

// Start launches the polling loop. The first tick runs immediately.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.lastPaths = nil

	go p.run(ctx, p.done)

	p.logger.Info("clipboard monitor started", zap.Duration("interval", p.interval))
	return nil
}

// Stop signals the loop to exit and waits until it has. Calling Stop on a
// stopped Poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done == nil {
		return
	}

	p.cancel()
	<-p.done

	p.cancel = nil
	p.done = nil
	p.logger.Info("clipboard monitor stopped")
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done != nil
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.safeTick()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Stop may have been requested while waiting on the ticker.
		if ctx.Err() != nil {
			return
		}
	}
}

// safeTick runs one iteration and converts any failure, including a panic,
// into a status event so the loop keeps going.
func (p *Poller) safeTick() {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic in clipboard monitor tick", zap.Any("panic", r))
			p.sink.StatusMessage(fmt.Sprintf("Error: %v", r))
		}
	}()

	if err := p.tick(); err != nil {
		p.logger.Warn("clipboard monitor tick failed", zap.Error(err))
		p.sink.StatusMessage(fmt.Sprintf("Error: %v", err))
	}
}

func (p *Poller) tick() error {
	paths, err := p.clipboard.ReadFileReferences()
	if err != nil {
		return fmt.Errorf("failed to read clipboard: %w", err)
	}

	if len(paths) == 0 || slices.Equal(paths, p.lastPaths) {
		return nil
	}

	p.sink.StatusMessage(fmt.Sprintf("Processing %d file(s)/folder(s)...", len(paths)))

	var policy aggregate.Policy
	if p.policy != nil {
		policy = p.policy()
	}
	result := aggregate.Aggregate(paths, policy)

	if result.Empty() {
		p.logger.Debug("no supported files in copied paths", zap.Strings("paths", paths))
		p.sink.StatusMessage("No supported files found in the copied path(s)")
		p.lastPaths = paths
		return nil
	}

	if err := p.clipboard.WriteText(result.Text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}

	id, err := p.history.Append(result.FileCount, result.LineCount, result.Text)
	if err != nil {
		return err
	}

	p.logger.Info("copied files to clipboard",
		zap.Uint("id", id),
		zap.Int("files", result.FileCount),
		zap.Int("lines", result.LineCount),
	)

	p.sink.StatusMessage(fmt.Sprintf("Processed %d file(s), %d line(s)", result.FileCount, result.LineCount))
	p.sink.CopyCompleted(events.CopyCompleted{
		RecordID:  id,
		Content:   result.Text,
		FileCount: result.FileCount,
		LineCount: result.LineCount,
		Paths:     paths,
	})
	p.lastPaths = paths

	return nil
}
