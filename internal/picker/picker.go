// Package picker is the interactive script browser.
package picker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// PickerModel holds the state for the Bubble Tea picker
type PickerModel struct {
	state PickerState

	dir     string
	entries []Entry
	cursor  int

	run     Runner
	cancel  context.CancelFunc
	spinner spinner.Model

	// Last run
	artifact string
	elapsed  string
	err      error

	width int
}

// New creates a picker over entries found in dir.
func New(dir string, entries []Entry, run Runner) PickerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = selectedStyle
	return PickerModel{
		state:   StateBrowse,
		dir:     dir,
		entries: entries,
		run:     run,
		spinner: s,
	}
}

// Init initializes the picker (Bubble Tea Init)
func (m PickerModel) Init() tea.Cmd {
	return nil
}

// Update handles state transitions (Bubble Tea Update)
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if m.state != StateRunning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case runFinishedMsg:
		m.cancel = nil
		m.artifact = msg.artifact
		m.elapsed = msg.elapsed
		m.err = msg.err
		if msg.err != nil {
			m.state = StateFailed
		} else {
			m.state = StateDone
		}
		return m, nil
	}

	return m, nil
}

func (m PickerModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state == StateRunning {
		// Cancellation takes effect at the next step boundary.
		if msg.String() == "ctrl+c" || msg.String() == "esc" {
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.state == StateBrowse && m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.state == StateBrowse && m.cursor < len(m.entries)-1 {
			m.cursor++
		}

	case "esc":
		m.state = StateBrowse

	case "enter":
		if m.state != StateBrowse {
			m.state = StateBrowse
			return m, nil
		}
		return m.start()
	}
	return m, nil
}

func (m PickerModel) start() (tea.Model, tea.Cmd) {
	if len(m.entries) == 0 || m.entries[m.cursor].Err != nil {
		return m, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.state = StateRunning
	m.artifact, m.err = "", nil
	return m, tea.Batch(m.spinner.Tick, execute(ctx, cancel, m.run, m.entries[m.cursor].Path))
}

func execute(ctx context.Context, cancel context.CancelFunc, run Runner, path string) tea.Cmd {
	return func() tea.Msg {
		defer cancel()
		start := time.Now()
		artifact, err := run(ctx, path)
		return runFinishedMsg{
			artifact: artifact,
			elapsed:  time.Since(start).Round(time.Millisecond).String(),
			err:      err,
		}
	}
}

// View renders the picker UI (Bubble Tea View)
func (m PickerModel) View() string {
	var b strings.Builder

	b.WriteString(renderHeader("sqlseq"))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("Scripts in " + m.dir))
	b.WriteString("\n\n")

	if len(m.entries) == 0 {
		b.WriteString(labelStyle.Render("No scripts found."))
		b.WriteString("\n")
	}
	for i, e := range m.entries {
		b.WriteString(renderOption(i == m.cursor, m.describe(e)))
		b.WriteString("\n")
	}

	switch m.state {
	case StateBrowse:
		if len(m.entries) > 0 {
			if err := m.entries[m.cursor].Err; err != nil {
				b.WriteString(renderDetail(renderError(err.Error())))
			}
		}
		b.WriteString("\n")
		b.WriteString(renderStatusBar("↑/↓: navigate  Enter: run  q: quit"))

	case StateRunning:
		b.WriteString("\n")
		b.WriteString(m.spinner.View() + " Running " + m.entries[m.cursor].Name + "...")
		b.WriteString("\n")
		b.WriteString(renderStatusBar("Esc: cancel after the current step"))

	case StateDone:
		b.WriteString(renderDetail(renderSuccess("Wrote " + m.artifact + " in " + m.elapsed)))
		b.WriteString("\n")
		b.WriteString(renderStatusBar("Enter: back  q: quit"))

	case StateFailed:
		msg := "Run failed"
		if errors.Is(m.err, context.Canceled) {
			msg = "Run cancelled"
		}
		detail := renderError(msg) + "\n" + errorStyle.Render(m.err.Error())
		if m.artifact != "" {
			detail += "\n" + labelStyle.Render("Partial artifact: "+m.artifact)
		}
		b.WriteString(renderDetail(detail))
		b.WriteString("\n")
		b.WriteString(renderStatusBar("Enter: back  q: quit"))
	}

	return borderStyle.Render(b.String())
}

func (m PickerModel) describe(e Entry) string {
	name := e.Name
	if name == "" {
		name = filepath.Base(e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s (invalid)", iconError, name)
	}
	detail := fmt.Sprintf("%d step", e.Steps)
	if e.Steps != 1 {
		detail += "s"
	}
	if e.Aggregation {
		detail += " + post-sequence"
	}
	if len(e.Identifiers) > 0 {
		detail += " [" + strings.Join(e.Identifiers, ", ") + "]"
	}
	return fmt.Sprintf("%s  %s", name, labelStyle.Render(detail))
}

// Run starts the picker
func Run(dir string, entries []Entry, run Runner) error {
	p := tea.NewProgram(New(dir, entries, run))
	_, err := p.Run()
	return err
}
