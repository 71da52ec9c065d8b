// Package events carries notifications from the background workers to
// whatever front end is observing them.
package events

import (
	"sync"

	"go.uber.org/zap"
)

// CopyCompleted describes a copy operation that was written to the clipboard
// and recorded in history.
type CopyCompleted struct {
	RecordID  uint
	Content   string
	FileCount int
	LineCount int
	Paths     []string
}

// Sink receives notifications. Implementations should return quickly.
type Sink interface {
	StatusMessage(text string)
	CopyCompleted(event CopyCompleted)
	SummaryUpdated(recordID uint, summary string)
}

// Nop discards every event.
type Nop struct{}

func (Nop) StatusMessage(string)        {}
func (Nop) CopyCompleted(CopyCompleted) {}
func (Nop) SummaryUpdated(uint, string) {}

// Dispatcher is a Sink that hands events off to another Sink on a single
// dedicated goroutine, in the order they were emitted. Emitting never blocks
// on the receiver.
type Dispatcher struct {
	target Sink
	logger *zap.Logger

	mu      sync.Mutex
	queue   []func(Sink)
	closed  bool
	wake    chan struct{}
	drained chan struct{}
}

// NewDispatcher starts a dispatcher delivering to target.
func NewDispatcher(target Sink, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		target:  target,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		drained: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) StatusMessage(text string) {
	d.enqueue(func(s Sink) { s.StatusMessage(text) })
}

func (d *Dispatcher) CopyCompleted(event CopyCompleted) {
	d.enqueue(func(s Sink) { s.CopyCompleted(event) })
}

func (d *Dispatcher) SummaryUpdated(recordID uint, summary string) {
	d.enqueue(func(s Sink) { s.SummaryUpdated(recordID, summary) })
}

func (d *Dispatcher) enqueue(deliver func(Sink)) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Debug("event dropped after dispatcher close")
		return
	}
	d.queue = append(d.queue, deliver)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) run() {
	defer close(d.drained)

	for {
		d.mu.Lock()
		pending := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, deliver := range pending {
			d.deliver(deliver)
		}

		if len(pending) == 0 {
			if closed {
				return
			}
			<-d.wake
		}
	}
}

func (d *Dispatcher) deliver(fn func(Sink)) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event sink panicked", zap.Any("panic", r))
		}
	}()
	fn(d.target)
}

// Close stops accepting events and blocks until everything already queued
// has been delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.drained
		return
	}
	d.closed = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.drained
}
