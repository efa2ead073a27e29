package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tildaslashalef/auditnest/internal/audit"
	"github.com/tildaslashalef/auditnest/internal/loggy"
)

// Service records and queries audit history
type Service struct {
	repo   Repository
	logger *loggy.Logger
}

// NewService creates a history service backed by db
func NewService(db *sql.DB, logger *loggy.Logger) *Service {
	return NewServiceWithRepository(NewSQLRepository(db, logger), logger)
}

// NewServiceWithRepository creates a service with a custom repository implementation (for testing)
func NewServiceWithRepository(repo Repository, logger *loggy.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record stores a run together with its issues. If the issues cannot be
// saved the run is removed again so no half-written run stays behind.
func (s *Service) Record(ctx context.Context, params RecordParams, issues []audit.Issue) (*Run, error) {
	run := &Run{
		URL:               params.URL,
		ReportPath:        params.ReportPath,
		LighthouseVersion: params.LighthouseVersion,
		Summary:           audit.Summarize(issues),
		Duration:          params.Duration,
	}

	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}

	if _, err := s.repo.SaveIssues(ctx, run.ID, issues); err != nil {
		if delErr := s.repo.DeleteRun(ctx, run.ID); delErr != nil {
			s.logger.Error("Failed to remove incomplete run", "id", run.ID, "error", delErr)
		}
		return nil, fmt.Errorf("saving issues: %w", err)
	}

	s.logger.Info("Recorded audit run", "id", run.ID, "url", run.URL, "issues", run.Summary.Total)
	return run, nil
}

// Runs lists recorded runs newest first
func (s *Service) Runs(ctx context.Context, limit, offset int) ([]*Run, error) {
	return s.repo.ListRuns(ctx, limit, offset)
}

// Run returns a run and its issues
func (s *Service) Run(ctx context.Context, id string) (*Run, []*StoredIssue, error) {
	run, err := s.repo.GetRun(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	issues, err := s.repo.GetIssuesByRun(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("loading issues for %s: %w", id, err)
	}
	return run, issues, nil
}

// Delete removes a run and its issues
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteRun(ctx, id)
}

// Issues flattens stored issues back into plain issues
func Issues(stored []*StoredIssue) []audit.Issue {
	out := make([]audit.Issue, 0, len(stored))
	for _, si := range stored {
		out = append(out, si.Issue)
	}
	return out
}
