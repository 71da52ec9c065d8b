// Package ui renders application events, either as a bubbletea program or as
// plain log lines.
package ui

import (
	"fmt"
	"strings"

	"github.com/atinylittleshell/clipminder/internal/events"
	"github.com/atinylittleshell/clipminder/internal/history"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
)

// maxShortcuts is how many history rows get a number key.
const maxShortcuts = 9

const defaultWidth = 80

// NoSummary is shown for records that have no summary and none in progress.
const NoSummary = "(no summary)"

// Controller is the part of the application the TUI drives.
type Controller interface {
	ToggleMonitoring() (bool, error)
	Monitoring() bool
	History() ([]history.Record, error)
	CopyHistoryItem(id uint) error
}

type statusMsg string

type copyCompletedMsg events.CopyCompleted

type summaryUpdatedMsg struct {
	recordID uint
	summary  string
}

type historyLoadedMsg struct {
	records []history.Record
	err     error
}

// Model is the bubbletea model of the main screen.
type Model struct {
	controller Controller

	records    []history.Record
	pending    map[uint]bool
	status     string
	monitoring bool
	width      int

	spinner spinner.Model
}

func NewModel(controller Controller) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SummaryStyle

	return Model{
		controller: controller,
		pending:    map[uint]bool{},
		monitoring: controller.Monitoring(),
		width:      defaultWidth,
		spinner:    s,
		status:     "Ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadHistory)
}

func (m Model) loadHistory() tea.Msg {
	records, err := m.controller.History()
	return historyLoadedMsg{records: records, err: err}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case copyCompletedMsg:
		m.pending[msg.RecordID] = true
		return m, m.loadHistory

	case summaryUpdatedMsg:
		delete(m.pending, msg.recordID)
		for i := range m.records {
			if m.records[i].ID == msg.recordID {
				m.records[i].Summary.String = msg.summary
				m.records[i].Summary.Valid = true
				return m, nil
			}
		}
		return m, m.loadHistory

	case historyLoadedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}
		m.records = msg.records
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit

	case "m":
		running, err := m.controller.ToggleMonitoring()
		if err != nil {
			m.status = fmt.Sprintf("Error: %v", err)
		}
		m.monitoring = running
		return m, nil

	case "r":
		return m, m.loadHistory
	}

	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		index := int(key[0] - '1')
		if index >= len(m.records) {
			return m, nil
		}
		if err := m.controller.CopyHistoryItem(m.records[index].ID); err != nil {
			m.status = fmt.Sprintf("Error: %v", err)
		}
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("ClipMinder"))
	b.WriteString("  ")
	if m.monitoring {
		b.WriteString(ActiveStyle.Render(SymbolMonitoring + " Monitoring"))
	} else {
		b.WriteString(PausedStyle.Render(SymbolPaused + " Paused"))
	}
	b.WriteString("\n")

	if strings.HasPrefix(m.status, "Error:") {
		b.WriteString(ErrorStyle.Render(m.status))
	} else {
		b.WriteString(DimStyle.Render(m.status))
	}
	b.WriteString("\n\n")

	if len(m.records) == 0 {
		b.WriteString(DimStyle.Render("No copies yet. Copy some files to get started."))
		b.WriteString("\n")
	}

	for i, record := range m.records {
		b.WriteString(m.renderRecord(i, record))
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render("m: toggle monitoring • 1-9: copy again • r: refresh • q: quit"))
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderRecord(index int, record history.Record) string {
	prefix := "   "
	if index < maxShortcuts {
		prefix = fmt.Sprintf("%d. ", index+1)
	}

	title := record.Summary.String
	switch {
	case m.pending[record.ID]:
		title = m.spinner.View() + " Summarizing..."
	case !record.Summary.Valid:
		// Left unsummarized by an earlier session; nothing is working on it.
		title = DimStyle.Render(NoSummary)
	case strings.HasPrefix(title, "Error:"):
		title = ErrorStyle.Render(title)
	default:
		title = SummaryStyle.Render(title)
	}

	meta := fmt.Sprintf("%d file(s), %d line(s), %s",
		record.FileCount, record.LineCount, humanize.Time(record.CreatedAt))

	row := prefix + title + "  " + DimStyle.Render(meta)
	return truncate.StringWithTail(row, uint(max(m.width, 10)), "…")
}
