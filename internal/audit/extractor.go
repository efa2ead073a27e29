package audit

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

const unknownTitle = "Unknown Issue"

var (
	suggestionKeys = []string{"suggestion", "recommendation", "message"}
	snippetKeys    = []string{"snippet", "source", "code"}
)

// ExtractIssuesJSON decodes a JSON report and extracts its issues.
// Nothing is returned when the document is malformed.
func ExtractIssuesJSON(data []byte) ([]Issue, error) {
	report, err := ParseReport(data)
	if err != nil {
		return nil, err
	}
	return ExtractIssues(report), nil
}

// ExtractIssues returns one issue per failing audit, in audit order.
// An audit fails when its score is strictly below 1; a missing score passes.
func ExtractIssues(report *Report) []Issue {
	if report == nil {
		return nil
	}

	issues := make([]Issue, 0, len(report.Audits))
	for _, a := range report.Audits {
		score, ok := a.Entry.number("score")
		if !ok || score >= 1 {
			continue
		}
		issues = append(issues, newIssue(a, score))
	}
	return issues
}

func newIssue(a Audit, score float64) Issue {
	title, ok := a.Entry.text("title")
	if !ok {
		title = unknownTitle
	}
	description, _ := a.Entry.text("description")
	weight, _ := a.Entry.number("weight")

	return Issue{
		AuditID:     a.ID,
		Title:       title,
		Description: description,
		Score:       score,
		Impact:      ClassifyImpact(score, weight),
		Suggestions: collectSuggestions(a.Entry),
		CodeSnippet: findCodeSnippet(a.Entry),
	}
}

// ClassifyImpact rates a failing audit from its score and weight
func ClassifyImpact(score, weight float64) Impact {
	switch {
	case score < 0.5 && weight > 3:
		return ImpactHigh
	case score < 0.8:
		return ImpactMedium
	default:
		return ImpactLow
	}
}

// collectSuggestions gathers the description and per-item advice.
// Duplicates are dropped, keeping the first occurrence.
func collectSuggestions(entry Entry) []string {
	seen := make(map[string]struct{})
	suggestions := make([]string, 0)

	add := func(s string) {
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		suggestions = append(suggestions, s)
	}

	if description, ok := entry.text("description"); ok {
		add(description)
	}

	for _, raw := range entry.items() {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range suggestionKeys {
			if v, present := item[key]; present && v != nil {
				add(stringify(v))
			}
		}
	}

	return suggestions
}

// findCodeSnippet returns the first snippet-like value found in the details items
func findCodeSnippet(entry Entry) *string {
	for _, raw := range entry.items() {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range snippetKeys {
			v, present := item[key]
			if !present {
				continue
			}
			var snippet string
			if s, isText := v.(string); isText {
				snippet = StripHTML(s)
			} else {
				snippet = stringify(v)
			}
			return &snippet
		}
	}
	return nil
}

// StripHTML returns the visible text of an HTML fragment.
// Script and style bodies and comments are dropped.
func StripHTML(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))

	var b strings.Builder
	hidden := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a tokenizer failure; either way keep what was collected
			return b.String()
		case html.TextToken:
			if hidden == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			if isHiddenTag(z) {
				hidden++
			}
		case html.EndTagToken:
			if isHiddenTag(z) && hidden > 0 {
				hidden--
			}
		}
	}
}

func isHiddenTag(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

// stringify renders a decoded JSON value as text
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return "null"
	}

	raw, err := marshalJSON(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}
