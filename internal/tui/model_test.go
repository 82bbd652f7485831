package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAsker struct {
	answer string
	err    error
	asked  []string
}

func (f *fakeAsker) Invoke(ctx context.Context, query string) (string, error) {
	f.asked = append(f.asked, query)
	return f.answer, f.err
}

func typeText(m Model, s string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return next.(Model)
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func TestModel_AsksAndRecordsAnswer(t *testing.T) {
	asker := &fakeAsker{answer: "Breakfast is served 7-9am."}
	m := sized(New(asker, 0))
	m = typeText(m, "  When is breakfast?  ")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.Equal(t, "When is breakfast?", m.pending)
	assert.Empty(t, m.input.Value())

	msg := m.ask("When is breakfast?")()
	next, _ = m.Update(msg)
	m = next.(Model)

	require.Len(t, m.Turns(), 1)
	assert.Equal(t, "When is breakfast?", m.Turns()[0].Query)
	assert.Equal(t, "Breakfast is served 7-9am.", m.Turns()[0].Answer)
	assert.Empty(t, m.pending)
	assert.Contains(t, m.View(), "Breakfast is served 7-9am.")
	assert.Equal(t, []string{"When is breakfast?"}, asker.asked)
}

func TestModel_ErrorTurn(t *testing.T) {
	m := sized(New(&fakeAsker{err: errors.New("index unavailable")}, 0))

	next, _ := m.Update(m.ask("hi")())
	m = next.(Model)

	require.Len(t, m.Turns(), 1)
	assert.Error(t, m.Turns()[0].Err)
	assert.Contains(t, m.status, "index unavailable")
}

func TestModel_IgnoresBlankInput(t *testing.T) {
	m := sized(New(&fakeAsker{}, 0))
	m = typeText(m, "   ")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, next.(Model).pending)
}

func TestModel_Quit(t *testing.T) {
	tests := []struct {
		name string
		msg  func(Model) (tea.Model, tea.Cmd)
	}{
		{name: "ctrl+c", msg: func(m Model) (tea.Model, tea.Cmd) { return m.Update(tea.KeyMsg{Type: tea.KeyCtrlC}) }},
		{name: "ctrl+d", msg: func(m Model) (tea.Model, tea.Cmd) { return m.Update(tea.KeyMsg{Type: tea.KeyCtrlD}) }},
		{name: "quit word", msg: func(m Model) (tea.Model, tea.Cmd) {
			return typeText(m, "QUIT").Update(tea.KeyMsg{Type: tea.KeyEnter})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, cmd := tt.msg(sized(New(&fakeAsker{}, 0)))
			require.NotNil(t, cmd)
			assert.Equal(t, tea.Quit(), cmd())
		})
	}
}

func TestModel_ViewBeforeSize(t *testing.T) {
	assert.Equal(t, "Loading...", New(&fakeAsker{}, 0).View())
}
