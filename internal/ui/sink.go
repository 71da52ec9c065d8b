package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/atinylittleshell/clipminder/internal/events"
	"github.com/atinylittleshell/clipminder/internal/styles"
	tea "github.com/charmbracelet/bubbletea"
)

// ProgramSink forwards events to a bubbletea program. Events arriving before
// a program is attached are held and replayed, in order, by Attach.
type ProgramSink struct {
	mu      sync.Mutex
	program *tea.Program
	backlog []tea.Msg
}

// Attach blocks until the backlog has been delivered, which requires the
// program to be running.
func (s *ProgramSink) Attach(program *tea.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.program = program
	for _, msg := range s.backlog {
		program.Send(msg)
	}
	s.backlog = nil
}

func (s *ProgramSink) send(msg tea.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.program == nil {
		s.backlog = append(s.backlog, msg)
		return
	}
	s.program.Send(msg)
}

func (s *ProgramSink) StatusMessage(text string) {
	s.send(statusMsg(text))
}

func (s *ProgramSink) CopyCompleted(event events.CopyCompleted) {
	s.send(copyCompletedMsg(event))
}

func (s *ProgramSink) SummaryUpdated(recordID uint, summary string) {
	s.send(summaryUpdatedMsg{recordID: recordID, summary: summary})
}

// PlainSink writes one line per event, for non-interactive sessions.
type PlainSink struct {
	mu      sync.Mutex
	out     io.Writer
	palette styles.Palette
}

func NewPlainSink(out io.Writer) *PlainSink {
	return &PlainSink{out: out, palette: styles.For(out)}
}

func (s *PlainSink) println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, line)
}

func (s *PlainSink) StatusMessage(text string) {
	if strings.HasPrefix(text, "Error:") {
		s.println(s.palette.Error(text))
		return
	}
	s.println(s.palette.Status(text))
}

func (s *PlainSink) CopyCompleted(event events.CopyCompleted) {
	s.println(s.palette.Muted(fmt.Sprintf("#%d copied %d file(s), %d line(s) to the clipboard",
		event.RecordID, event.FileCount, event.LineCount)))
}

func (s *PlainSink) SummaryUpdated(recordID uint, summary string) {
	line := fmt.Sprintf("#%d %s", recordID, summary)
	if strings.HasPrefix(summary, "Error:") {
		s.println(s.palette.Error(line))
		return
	}
	s.println(s.palette.Summary(line))
}
