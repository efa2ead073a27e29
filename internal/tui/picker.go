package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tildaslashalef/auditnest/internal/scaffold"
)

// ErrCancelled is returned when the user leaves a view without choosing
var ErrCancelled = errors.New("selection cancelled")

// PickerModel is the bubbletea model of the agent picker
type PickerModel struct {
	agents    []scaffold.Agent
	cursor    int
	chosen    *scaffold.Agent
	cancelled bool
	keys      PickerKeyMap
	help      help.Model
	styles    Styles
}

// NewPickerModel creates a picker over agents
func NewPickerModel(agents []scaffold.Agent) PickerModel {
	return PickerModel{
		agents: agents,
		keys:   DefaultPickerKeyMap(),
		help:   help.New(),
		styles: DefaultStyles(),
	}
}

// SelectAgent runs the picker and returns the chosen agent
func SelectAgent(agents []scaffold.Agent, opts ...tea.ProgramOption) (scaffold.Agent, error) {
	if len(agents) == 0 {
		return scaffold.Agent{}, scaffold.ErrNoAgents
	}

	final, err := tea.NewProgram(NewPickerModel(agents), opts...).Run()
	if err != nil {
		return scaffold.Agent{}, fmt.Errorf("running agent picker: %w", err)
	}
	return final.(PickerModel).Result()
}

// Result returns the chosen agent once the picker has finished
func (m PickerModel) Result() (scaffold.Agent, error) {
	if m.chosen == nil {
		return scaffold.Agent{}, ErrCancelled
	}
	return *m.chosen, nil
}

// Init initializes the model
func (m PickerModel) Init() tea.Cmd {
	return nil
}

// Update handles key presses
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.cancelled = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}

		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.agents)-1 {
				m.cursor++
			}

		case key.Matches(msg, m.keys.Select):
			agent := m.agents[m.cursor]
			m.chosen = &agent
			return m, tea.Quit

		default:
			// digits jump to the agent with that number
			if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
				if n := int(s[0] - '0'); n <= len(m.agents) {
					m.cursor = n - 1
				}
			}
		}
	}
	return m, nil
}

// View renders the agent list
func (m PickerModel) View() string {
	if m.chosen != nil || m.cancelled {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Select an agent template"))
	sb.WriteString("\n\n")

	for i, agent := range m.agents {
		line := fmt.Sprintf("%d. %s", agent.Number, agent.Name)
		if i == m.cursor {
			sb.WriteString(m.styles.Cursor.Render("> ") + m.styles.Selected.Render(line))
		} else {
			sb.WriteString("  " + m.styles.Paragraph.Render(line))
		}
		if agent.Description != "" {
			sb.WriteString(" " + m.styles.Subtle.Render("- "+agent.Description))
		}
		sb.WriteString("\n")
	}

	return lipgloss.JoinVertical(lipgloss.Left, sb.String(), m.help.View(m.keys))
}
