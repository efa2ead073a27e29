// Package history stores audit runs and the issues extracted from them
package history

import (
	"errors"
	"time"

	"github.com/tildaslashalef/auditnest/internal/audit"
)

var (
	// ErrRunNotFound is returned when no run has the requested ID
	ErrRunNotFound = errors.New("audit run not found")
)

// Run is one recorded Lighthouse audit
type Run struct {
	ID                string
	URL               string
	ReportPath        string
	LighthouseVersion string
	Summary           audit.Summary
	Duration          time.Duration
	CreatedAt         time.Time
}

// StoredIssue is an extracted issue attached to a run. Position keeps the
// audit order of the source report.
type StoredIssue struct {
	audit.Issue
	ID        string
	RunID     string
	Position  int
	CreatedAt time.Time
}

// RecordParams describes a finished audit to be recorded
type RecordParams struct {
	URL               string
	ReportPath        string
	LighthouseVersion string
	Duration          time.Duration
}
