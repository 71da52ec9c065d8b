package summarize

import (
	"context"
	"fmt"

	"github.com/atinylittleshell/clipminder/internal/events"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SummaryStore persists finished summaries.
type SummaryStore interface {
	UpdateSummary(id uint, summary string) error
}

// Job asks for one history record to be summarized.
type Job struct {
	RecordID uint
	Content  string
	Model    string
}

// Pool runs every dispatched Job on its own goroutine. Jobs are independent
// and finish in no particular order. Callers must not dispatch the same
// record twice while a job for it is in flight.
type Pool struct {
	summarizer *Summarizer
	store      SummaryStore
	sink       events.Sink
	logger     *zap.Logger

	group errgroup.Group
}

// NewPool creates a Pool writing results to store and announcing them on sink.
func NewPool(summarizer *Summarizer, store SummaryStore, sink events.Sink, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = events.Nop{}
	}

	return &Pool{
		summarizer: summarizer,
		store:      store,
		sink:       sink,
		logger:     logger,
	}
}

// Dispatch starts summarizing job in the background and returns immediately.
func (p *Pool) Dispatch(job Job) {
	p.logger.Debug("summarization dispatched", zap.Uint("id", job.RecordID), zap.String("model", job.Model))

	p.group.Go(func() error {
		// Jobs are not cancellable; each attempt is bounded by its own timeout.
		summary := p.summarizer.Summarize(context.Background(), job.Content, job.Model)
		if IsError(summary) {
			p.logger.Warn("summarization failed", zap.Uint("id", job.RecordID), zap.String("summary", summary))
		} else {
			p.logger.Debug("summarization result", zap.Uint("id", job.RecordID), zap.String("summary", summary))
		}

		if err := p.store.UpdateSummary(job.RecordID, summary); err != nil {
			p.logger.Error("failed to store summary", zap.Uint("id", job.RecordID), zap.Error(err))
			p.sink.StatusMessage(fmt.Sprintf("Error: %v", err))
			return err
		}

		p.sink.SummaryUpdated(job.RecordID, summary)
		return nil
	})
}

// Wait blocks until every dispatched job has finished and returns the first
// store failure, if any.
func (p *Pool) Wait() error {
	return p.group.Wait()
}
