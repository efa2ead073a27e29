package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/auditnest/internal/audit"
)

func testIssues() []audit.Issue {
	return []audit.Issue{
		{AuditID: "lcp", Title: "Largest Contentful Paint", Score: 0.2, Impact: audit.ImpactHigh},
		{AuditID: "cls", Title: "Cumulative Layout Shift", Score: 0.6, Impact: audit.ImpactMedium},
		{AuditID: "tbt", Title: "Total Blocking Time", Score: 0.9, Impact: audit.ImpactLow},
		{AuditID: "fcp", Title: "First Contentful Paint", Score: 0.4, Impact: audit.ImpactHigh},
	}
}

func sized(t *testing.T) BrowserModel {
	t.Helper()
	m, _ := NewBrowserModel("Audit", testIssues()).Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m.(BrowserModel)
}

func TestBrowserLoadingBeforeResize(t *testing.T) {
	assert.Equal(t, "Loading issues...", NewBrowserModel("Audit", testIssues()).View())
}

func TestBrowserFilters(t *testing.T) {
	tests := []struct {
		key  tea.KeyMsg
		want audit.Impact
		n    int
	}{
		{key: runeKey('h'), want: audit.ImpactHigh, n: 2},
		{key: runeKey('2'), want: audit.ImpactMedium, n: 1},
		{key: runeKey('l'), want: audit.ImpactLow, n: 1},
		{key: runeKey('a'), want: "", n: 4},
	}

	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			m, cmd := press(t, sized(t), runeKey('1'), tt.key)

			assert.Nil(t, cmd)
			bm := m.(BrowserModel)
			assert.Equal(t, tt.want, bm.Filter())
			assert.Len(t, bm.Visible(), tt.n)
		})
	}
}

func TestBrowserView(t *testing.T) {
	m, _ := press(t, sized(t), runeKey('h'))

	view := m.View()
	assert.Contains(t, view, "Audit")
	assert.Contains(t, view, "2 high")
	assert.Contains(t, view, "showing 2 of 4 issues (high)")
}

func TestBrowserHelpAndQuit(t *testing.T) {
	m, _ := press(t, sized(t), runeKey('?'))
	assert.True(t, m.(BrowserModel).help.ShowAll)

	_, cmd := press(t, m, runeKey('q'))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestBrowserFilterBeforeResize(t *testing.T) {
	m, _ := press(t, NewBrowserModel("Audit", testIssues()), runeKey('m'))

	assert.Len(t, m.(BrowserModel).Visible(), 1)
}
