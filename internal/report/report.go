// Package report renders extracted issues as tables, markdown and JSON
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/muesli/reflow/wordwrap"
	"github.com/tildaslashalef/auditnest/internal/audit"
	"github.com/tildaslashalef/auditnest/internal/parser"
	"github.com/tildaslashalef/auditnest/internal/utils"
)

// DefaultWidth is the wrap width used when the terminal width is unknown
const DefaultWidth = 100

// suggestionWidth bounds the suggestions column of the issue table
const suggestionWidth = 60

// Table writes issues as a go-pretty table, followed by an impact summary line
func Table(w io.Writer, title string, issues []audit.Issue) {
	opts := utils.DefaultTableOptions()
	opts.Title = title
	t := utils.CreateTable(w, opts)

	t.AppendHeader(table.Row{"#", "Audit", "Title", "Score", "Impact", "Suggestions"})
	for i, issue := range issues {
		t.AppendRow(table.Row{
			i + 1,
			issue.AuditID,
			issue.Title,
			fmt.Sprintf("%.2f", issue.Score),
			ImpactColors(issue.Impact).Sprint(string(issue.Impact)),
			wrapSuggestions(issue.Suggestions, suggestionWidth),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, WidthMax: 40},
		{Number: 4, Align: text.AlignRight},
	})
	t.Render()

	s := audit.Summarize(issues)
	fmt.Fprintf(w, "%d issues: %d high, %d medium, %d low\n", s.Total, s.High, s.Medium, s.Low)
}

// ImpactColors picks the table colours for an impact level
func ImpactColors(impact audit.Impact) text.Colors {
	switch impact {
	case audit.ImpactHigh:
		return utils.Theme.Error
	case audit.ImpactMedium:
		return utils.Theme.Warning
	default:
		return utils.Theme.Info
	}
}

func wrapSuggestions(suggestions []string, width int) string {
	lines := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		lines = append(lines, "- "+wordwrap.String(s, width-2))
	}
	return strings.Join(lines, "\n")
}

// Markdown renders issues as a markdown document. Code snippets are fenced
// and tagged with their guessed language.
func Markdown(title string, issues []audit.Issue) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", title)
	if len(issues) == 0 {
		sb.WriteString("No issues found.\n")
		return sb.String()
	}

	s := audit.Summarize(issues)
	fmt.Fprintf(&sb, "**%d issues**: %d high, %d medium, %d low\n\n", s.Total, s.High, s.Medium, s.Low)

	for _, issue := range issues {
		sb.WriteString(IssueMarkdown(issue))
		sb.WriteString("\n")
	}
	return sb.String()
}

// IssueMarkdown renders a single issue section
func IssueMarkdown(issue audit.Issue) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## %s\n\n", issue.Title)
	fmt.Fprintf(&sb, "`%s` · score **%.2f** · impact **%s**\n\n", issue.AuditID, issue.Score, issue.Impact)

	if issue.Description != "" {
		sb.WriteString(issue.Description)
		sb.WriteString("\n\n")
	}

	// the description is usually the first suggestion as well
	suggestions := issue.Suggestions
	if len(suggestions) > 0 && suggestions[0] == issue.Description {
		suggestions = suggestions[1:]
	}
	if len(suggestions) > 0 {
		sb.WriteString("### Suggestions\n\n")
		for _, s := range suggestions {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
		sb.WriteString("\n")
	}

	if issue.CodeSnippet != nil && strings.TrimSpace(*issue.CodeSnippet) != "" {
		fmt.Fprintf(&sb, "```%s\n%s\n```\n", parser.SnippetLanguage(*issue.CodeSnippet), strings.TrimRight(*issue.CodeSnippet, "\n"))
	}
	return sb.String()
}

// NewRenderer creates a glamour renderer wrapping at width
func NewRenderer(width int) (*glamour.TermRenderer, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
}

// Terminal renders markdown for the terminal. When glamour fails the text is
// returned word-wrapped instead.
func Terminal(markdown string, width int) string {
	r, err := NewRenderer(width)
	if err == nil {
		if out, renderErr := r.Render(markdown); renderErr == nil {
			return out
		}
	}
	if width <= 0 {
		width = DefaultWidth
	}
	return wordwrap.String(markdown, width)
}

// JSON writes v as indented JSON
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}
