package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/auditnest/internal/scaffold"
)

func testAgents() []scaffold.Agent {
	return []scaffold.Agent{
		{Number: 1, Name: "adk_base", Description: "Minimal agent"},
		{Number: 2, Name: "agentic_rag", Description: "Retrieval agent"},
		{Number: 3, Name: "vector_search_rag"},
	}
}

func press(t *testing.T, m tea.Model, keys ...tea.KeyMsg) (tea.Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = m.Update(k)
	}
	return m, cmd
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestPickerSelectsWithArrowKeys(t *testing.T) {
	m, cmd := press(t, NewPickerModel(testAgents()),
		tea.KeyMsg{Type: tea.KeyDown},
		runeKey('j'),
		runeKey('k'),
		tea.KeyMsg{Type: tea.KeyEnter},
	)

	require.NotNil(t, cmd)
	agent, err := m.(PickerModel).Result()
	require.NoError(t, err)
	assert.Equal(t, "agentic_rag", agent.Name)
}

func TestPickerCursorStaysInBounds(t *testing.T) {
	m, _ := press(t, NewPickerModel(testAgents()),
		tea.KeyMsg{Type: tea.KeyUp},
		runeKey('j'), runeKey('j'), runeKey('j'), runeKey('j'),
		tea.KeyMsg{Type: tea.KeyEnter},
	)

	agent, err := m.(PickerModel).Result()
	require.NoError(t, err)
	assert.Equal(t, "vector_search_rag", agent.Name)
}

func TestPickerDigitJumps(t *testing.T) {
	m, _ := press(t, NewPickerModel(testAgents()), runeKey('3'), runeKey('9'), tea.KeyMsg{Type: tea.KeyEnter})

	agent, err := m.(PickerModel).Result()
	require.NoError(t, err)
	assert.Equal(t, 3, agent.Number)
}

func TestPickerCancel(t *testing.T) {
	for _, k := range []tea.KeyMsg{runeKey('q'), {Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		m, cmd := press(t, NewPickerModel(testAgents()), k)

		require.NotNil(t, cmd)
		_, err := m.(PickerModel).Result()
		assert.ErrorIs(t, err, ErrCancelled)
		assert.Empty(t, m.View())
	}
}

func TestPickerView(t *testing.T) {
	view := NewPickerModel(testAgents()).View()

	assert.Contains(t, view, "Select an agent template")
	assert.Contains(t, view, "1. adk_base")
	assert.Contains(t, view, "Retrieval agent")
	assert.Contains(t, view, "3. vector_search_rag")
}

func TestSelectAgentWithoutAgents(t *testing.T) {
	_, err := SelectAgent(nil)

	assert.ErrorIs(t, err, scaffold.ErrNoAgents)
}
