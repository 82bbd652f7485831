// Package tui is an interactive terminal chat over the query pipeline.
// Each question is answered independently; no conversation state is kept.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Asker is the TUI-facing subset of the pipeline
type Asker interface {
	Invoke(ctx context.Context, query string) (string, error)
}

// Turn is one question and its answer in the transcript
type Turn struct {
	Query  string
	Answer string
	Err    error
}

type answerMsg struct {
	turn Turn
}

// Model is the Bubble Tea model for the chat
type Model struct {
	asker   Asker
	timeout time.Duration

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	turns   []Turn
	pending string
	status  string
	ready   bool
}

// New creates a chat model. timeout bounds each question; zero means none.
func New(asker Asker, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "[USER] "
	ti.Placeholder = "Ask about the facility, or type quit"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		asker:    asker,
		timeout:  timeout,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Ready.",
	}
}

// Init initializes the model (text input cursor blink)
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Turns returns the transcript so far
func (m Model) Turns() []Turn { return m.turns }

// Update handles key, window and answer events
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 1 + 1 + ih + th // header + status
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil

	case answerMsg:
		m.pending = ""
		m.turns = append(m.turns, msg.turn)
		if msg.turn.Err != nil {
			m.status = "Error: " + msg.turn.Err.Error()
		} else {
			m.status = "Ready."
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.pending == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			q := strings.TrimSpace(m.input.Value())
			if strings.EqualFold(q, "quit") {
				return m, tea.Quit
			}
			if q == "" || m.pending != "" {
				return m, nil
			}
			m.input.Reset()
			m.pending = q
			m.status = "Thinking..."
			m.refresh()
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs the pipeline off the update loop
func (m Model) ask(q string) tea.Cmd {
	asker, timeout := m.asker, m.timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		answer, err := asker.Invoke(ctx, q)
		return answerMsg{turn: Turn{Query: q, Answer: answer, Err: err}}
	}
}

// View renders the transcript, input line and status
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("AIRAC")
	status := statusStyle.Render(m.status)
	if m.pending != "" {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" +
		status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 && m.pending == "" {
		return hintStyle.Render("Ask a question to get started.")
	}
	width := max(10, m.viewport.Width-4)
	var b strings.Builder
	for _, t := range m.turns {
		b.WriteString(userStyle.Render("[USER] ") + t.Query + "\n")
		if t.Err != nil {
			b.WriteString(errorStyle.Width(width).Render("[AIRAC] "+t.Err.Error()) + "\n\n")
			continue
		}
		b.WriteString(botStyle.Render("[AIRAC] ") + lipgloss.NewStyle().Width(width).Render(t.Answer) + "\n\n")
	}
	if m.pending != "" {
		b.WriteString(userStyle.Render("[USER] ") + m.pending + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
