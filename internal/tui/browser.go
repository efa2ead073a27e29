package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/tildaslashalef/auditnest/internal/audit"
	"github.com/tildaslashalef/auditnest/internal/loggy"
	"github.com/tildaslashalef/auditnest/internal/report"
)

const (
	headerHeight = 4
	footerHeight = 3
	minViewport  = 5
)

// BrowserModel is the bubbletea model of the issue browser
type BrowserModel struct {
	title    string
	issues   []audit.Issue
	filter   audit.Impact
	viewport viewport.Model
	help     help.Model
	keys     BrowserKeyMap
	styles   Styles
	renderer *glamour.TermRenderer
	width    int
	ready    bool
}

// NewBrowserModel creates a browser over issues
func NewBrowserModel(title string, issues []audit.Issue) BrowserModel {
	return BrowserModel{
		title:  title,
		issues: issues,
		help:   help.New(),
		keys:   DefaultBrowserKeyMap(),
		styles: DefaultStyles(),
	}
}

// BrowseIssues shows issues in a scrollable, filterable full-screen view
func BrowseIssues(title string, issues []audit.Issue, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	if _, err := tea.NewProgram(NewBrowserModel(title, issues), opts...).Run(); err != nil {
		return fmt.Errorf("running issue browser: %w", err)
	}
	return nil
}

// Init initializes the model
func (m BrowserModel) Init() tea.Cmd {
	return nil
}

// Visible returns the issues passing the current filter
func (m BrowserModel) Visible() []audit.Issue {
	if m.filter == "" {
		return m.issues
	}
	out := make([]audit.Issue, 0, len(m.issues))
	for _, issue := range m.issues {
		if issue.Impact == m.filter {
			out = append(out, issue)
		}
	}
	return out
}

// Filter returns the active impact filter; empty means all
func (m BrowserModel) Filter() audit.Impact {
	return m.filter
}

// Update handles key presses and resizes
func (m BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.FilterHigh):
			return m.setFilter(audit.ImpactHigh), nil
		case key.Matches(msg, m.keys.FilterMed):
			return m.setFilter(audit.ImpactMedium), nil
		case key.Matches(msg, m.keys.FilterLow):
			return m.setFilter(audit.ImpactLow), nil
		case key.Matches(msg, m.keys.FilterAll):
			return m.setFilter(""), nil
		case key.Matches(msg, m.keys.Up):
			m.viewport.LineUp(1)
		case key.Matches(msg, m.keys.Down):
			m.viewport.LineDown(1)
		case key.Matches(msg, m.keys.PageUp):
			m.viewport.HalfViewUp()
		case key.Matches(msg, m.keys.PageDown):
			m.viewport.HalfViewDown()
		case key.Matches(msg, m.keys.Top):
			m.viewport.GotoTop()
		case key.Matches(msg, m.keys.Bottom):
			m.viewport.GotoBottom()
		}
		return m, nil

	case tea.WindowSizeMsg:
		height := msg.Height - headerHeight - footerHeight
		if height < minViewport {
			height = minViewport
		}

		if !m.ready || msg.Width != m.width {
			r, err := report.NewRenderer(msg.Width - 2)
			if err != nil {
				loggy.Warn("Failed to create markdown renderer", "error", err)
			}
			m.renderer = r
		}

		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.width = msg.Width
		m.help.Width = msg.Width
		m.viewport.SetContent(m.content())
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m BrowserModel) setFilter(impact audit.Impact) BrowserModel {
	m.filter = impact
	if m.ready {
		m.viewport.SetContent(m.content())
		m.viewport.GotoTop()
	}
	return m
}

// content renders the visible issues as terminal markdown
func (m BrowserModel) content() string {
	md := report.Markdown(m.title, m.Visible())
	if m.renderer != nil {
		out, err := m.renderer.Render(md)
		if err == nil {
			return out
		}
		loggy.Warn("Failed to render issue markdown", "error", err)
	}
	return wordwrap.String(md, max(m.width-2, 20))
}

// View renders the header, the issue viewport and the help footer
func (m BrowserModel) View() string {
	if !m.ready {
		return "Loading issues..."
	}

	s := audit.Summarize(m.issues)
	counts := fmt.Sprintf("%s  %s  %s",
		m.styles.HighImpact.Render(fmt.Sprintf("%d high", s.High)),
		m.styles.MediumImpact.Render(fmt.Sprintf("%d medium", s.Medium)),
		m.styles.LowImpact.Render(fmt.Sprintf("%d low", s.Low)),
	)

	filter := "all"
	if m.filter != "" {
		filter = string(m.filter)
	}
	status := m.styles.StatusBar.Render(fmt.Sprintf("showing %d of %d issues (%s) · %3.f%%",
		len(m.Visible()), len(m.issues), filter, m.viewport.ScrollPercent()*100))

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(m.styles.Title.Render(m.title)+"  "+counts),
		m.viewport.View(),
		status,
		m.help.View(m.keys),
	)
}
