// Package audit turns Lighthouse JSON reports into issue records and size-bounded chunks
package audit

import (
	"encoding/json"
	"errors"
)

var (
	// ErrInvalidReportFormat is returned when a report document cannot be decoded
	ErrInvalidReportFormat = errors.New("invalid report format")

	// ErrInvalidChunkSize is returned when the chunk budget is not positive
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
)

// Impact classifies how much a failing audit matters
type Impact string

const (
	// ImpactHigh marks a low-scoring audit with a large weight
	ImpactHigh Impact = "high"
	// ImpactMedium marks an audit scoring below 0.8
	ImpactMedium Impact = "medium"
	// ImpactLow marks everything else that still failed
	ImpactLow Impact = "low"
)

// Audit is one named entry of a report's audits object.
// Raw holds the entry exactly as it appeared in the source document.
type Audit struct {
	ID    string
	Raw   json.RawMessage
	Entry Entry
}

// Entry is the decoded form of an audit entry
type Entry map[string]any

// Report is a decoded Lighthouse report. Audits keep their source order.
type Report struct {
	Metadata json.RawMessage
	Audits   []Audit
}

// Chunk is a contiguous, size-bounded run of a report's audits.
// It shares the source report's metadata.
type Chunk struct {
	Metadata json.RawMessage
	Audits   []Audit
}

// Issue is an actionable record derived from one failing audit
type Issue struct {
	AuditID     string   `json:"audit_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Score       float64  `json:"score"`
	Impact      Impact   `json:"impact"`
	Suggestions []string `json:"suggestions"`
	CodeSnippet *string  `json:"code_snippet,omitempty"`
}

// Summary counts issues per impact
type Summary struct {
	Total  int `json:"total"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Summarize counts the given issues by impact
func Summarize(issues []Issue) Summary {
	s := Summary{Total: len(issues)}
	for _, issue := range issues {
		switch issue.Impact {
		case ImpactHigh:
			s.High++
		case ImpactMedium:
			s.Medium++
		default:
			s.Low++
		}
	}
	return s
}

// ParseImpact maps a stored string back to an Impact, defaulting to low
func ParseImpact(s string) Impact {
	switch Impact(s) {
	case ImpactHigh:
		return ImpactHigh
	case ImpactMedium:
		return ImpactMedium
	default:
		return ImpactLow
	}
}
