package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/auditnest/internal/audit"
)

func snippet(s string) *string { return &s }

func sampleIssues() []audit.Issue {
	return []audit.Issue{
		{
			AuditID:     "uses-webp-images",
			Title:       "Serve images in modern formats",
			Description: "Image formats like WebP often provide better compression.",
			Score:       0.3,
			Impact:      audit.ImpactHigh,
			Suggestions: []string{
				"Image formats like WebP often provide better compression.",
				"Convert hero.png to WebP",
			},
			CodeSnippet: snippet(`{"url": "hero.png", "wastedBytes": 1200}`),
		},
		{
			AuditID:     "color-contrast",
			Title:       "Background and foreground colors lack contrast",
			Score:       0.7,
			Impact:      audit.ImpactMedium,
			Suggestions: []string{},
		},
	}
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer

	Table(&buf, "Issues", sampleIssues())

	out := buf.String()
	assert.Contains(t, out, "uses-webp-images")
	assert.Contains(t, out, "color-contrast")
	assert.Contains(t, out, "0.30")
	assert.Contains(t, out, "Convert hero.png to WebP")
	assert.Contains(t, out, "2 issues: 1 high, 1 medium, 0 low")
}

func TestWrapSuggestions(t *testing.T) {
	got := wrapSuggestions([]string{"short", strings.Repeat("word ", 10)}, 20)

	lines := strings.Split(got, "\n")
	assert.Equal(t, "- short", lines[0])
	assert.Greater(t, len(lines), 2)
	for _, l := range lines {
		assert.LessOrEqual(t, len(strings.TrimRight(l, " ")), 20)
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown("Audit of https://example.com", sampleIssues())

	assert.True(t, strings.HasPrefix(md, "# Audit of https://example.com\n"))
	assert.Contains(t, md, "**2 issues**: 1 high, 1 medium, 0 low")
	assert.Contains(t, md, "## Serve images in modern formats")
	assert.Contains(t, md, "- Convert hero.png to WebP")
	assert.Equal(t, 1, strings.Count(md, "Image formats like WebP"), "description is not repeated as a suggestion")
	assert.Contains(t, md, "```json\n{\"url\": \"hero.png\", \"wastedBytes\": 1200}\n```")
	assert.NotContains(t, md, "### Suggestions\n\n## Background")
}

func TestMarkdownNoIssues(t *testing.T) {
	assert.Equal(t, "# Clean\n\nNo issues found.\n", Markdown("Clean", nil))
}

func TestTerminal(t *testing.T) {
	out := Terminal("# Heading\n\nSome body text.", 40)

	require.NotEmpty(t, out)
	assert.Contains(t, out, "Heading")
	assert.Contains(t, out, "Some body text.")
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, JSON(&buf, map[string]int{"total": 2}))

	assert.Equal(t, "{\n  \"total\": 2\n}\n", buf.String())
}

func TestJSONUnsupportedValue(t *testing.T) {
	assert.Error(t, JSON(&bytes.Buffer{}, make(chan int)))
}
