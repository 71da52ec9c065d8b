// Package summarize asks a local language model for a short title describing
// a copied document, and stores the answer back into history.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultAttempts       = 3
	DefaultAttemptTimeout = 30 * time.Second
	DefaultRetryDelay     = time.Second
	DefaultMaxWords       = 50

	// FallbackSummary is stored when the model answers with nothing.
	FallbackSummary = "Unable to generate summary"

	// ErrorPrefix marks a stored summary as a failure message rather than a title.
	ErrorPrefix = "Error:"
)

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, model string, prompt string) (string, error)
}

// ModelLister enumerates the models a backend can serve.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Backend is a generation endpoint that can also list its models.
type Backend interface {
	Generator
	ModelLister
}

// Summarizer turns content into a short title with a bounded retry policy.
type Summarizer struct {
	generator      Generator
	attempts       int
	attemptTimeout time.Duration
	retryDelay     time.Duration
	maxWords       int
	logger         *zap.Logger
}

type Option func(*Summarizer)

func WithAttempts(n int) Option {
	return func(s *Summarizer) { s.attempts = n }
}

func WithAttemptTimeout(d time.Duration) Option {
	return func(s *Summarizer) { s.attemptTimeout = d }
}

func WithRetryDelay(d time.Duration) Option {
	return func(s *Summarizer) { s.retryDelay = d }
}

func WithMaxWords(n int) Option {
	return func(s *Summarizer) { s.maxWords = n }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Summarizer) { s.logger = logger }
}

// NewSummarizer creates a Summarizer using generator.
func NewSummarizer(generator Generator, opts ...Option) *Summarizer {
	s := &Summarizer{
		generator:      generator,
		attempts:       DefaultAttempts,
		attemptTimeout: DefaultAttemptTimeout,
		retryDelay:     DefaultRetryDelay,
		maxWords:       DefaultMaxWords,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.attempts < 1 {
		s.attempts = 1
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// BuildPrompt returns the instruction sent to the model for content.
func BuildPrompt(content string) string {
	return "Answer a title from the following content, just the title, nothing else:\n\n" +
		content +
		"\n\nAnswer a title from the content above, just the title, nothing else."
}

// Summarize returns a title for content. It never fails: when every attempt
// errors the returned string starts with ErrorPrefix and describes the problem.
func (s *Summarizer) Summarize(ctx context.Context, content string, model string) string {
	prompt := BuildPrompt(content)

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		text, err := s.generate(ctx, model, prompt)
		if err == nil {
			summary := TruncateWords(text, s.maxWords)
			if summary == "" {
				return FallbackSummary
			}
			return summary
		}

		lastErr = err
		s.logger.Warn("summarization attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", s.attempts),
			zap.String("model", model),
			zap.Error(err),
		)

		if attempt == s.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Sprintf("%s summarization cancelled: %v", ErrorPrefix, ctx.Err())
		case <-time.After(s.retryDelay):
		}
	}

	return fmt.Sprintf("%s unable to reach the model after %d attempts: %v", ErrorPrefix, s.attempts, lastErr)
}

func (s *Summarizer) generate(ctx context.Context, model string, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.attemptTimeout)
	defer cancel()

	return s.generator.Generate(attemptCtx, model, prompt)
}

// TruncateWords keeps the first n whitespace separated words of text.
func TruncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// IsError reports whether a stored summary is a failure message.
func IsError(summary string) bool {
	return strings.HasPrefix(summary, ErrorPrefix)
}
