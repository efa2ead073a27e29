package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/tildaslashalef/auditnest/internal/audit"
	"github.com/tildaslashalef/auditnest/internal/database"
	"github.com/tildaslashalef/auditnest/internal/loggy"
	"github.com/tildaslashalef/auditnest/internal/ulid"
)

// Repository defines persistence operations for audit history
type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// SaveIssues stores all issues of a run in one transaction
	SaveIssues(ctx context.Context, runID string, issues []audit.Issue) ([]*StoredIssue, error)
	GetIssuesByRun(ctx context.Context, runID string) ([]*StoredIssue, error)
}

var runColumns = []string{
	"id", "url", "report_path", "lighthouse_version",
	"issue_count", "high_count", "medium_count", "low_count",
	"duration_ms", "created_at",
}

var issueColumns = []string{
	"id", "run_id", "position", "audit_id", "title", "description",
	"score", "impact", "suggestions", "code_snippet", "created_at",
}

// SQLRepository implements Repository on SQLite
type SQLRepository struct {
	db      *sql.DB
	logger  *loggy.Logger
	builder sq.StatementBuilderType
}

// NewSQLRepository creates a new history SQL repository
func NewSQLRepository(db *sql.DB, logger *loggy.Logger) *SQLRepository {
	return &SQLRepository{
		db:      db,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// CreateRun inserts a run, assigning its ID and timestamp when unset
func (r *SQLRepository) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = ulid.RunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query, args, err := r.builder.
		Insert("audit_runs").
		Columns(runColumns...).
		Values(
			run.ID,
			run.URL,
			run.ReportPath,
			run.LighthouseVersion,
			run.Summary.Total,
			run.Summary.High,
			run.Summary.Medium,
			run.Summary.Low,
			run.Duration.Milliseconds(),
			run.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert run query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	r.logger.Debug("Created audit run", "id", run.ID, "url", run.URL)
	return nil
}

// GetRun retrieves a run by ID
func (r *SQLRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	query, args, err := r.builder.
		Select(runColumns...).
		From("audit_runs").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select run query: %w", err)
	}

	run, err := scanRun(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first
func (r *SQLRepository) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	q := r.builder.
		Select(runColumns...).
		From("audit_runs").
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list runs query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run; its issues go with it through the foreign key
func (r *SQLRepository) DeleteRun(ctx context.Context, id string) error {
	query, args, err := r.builder.
		Delete("audit_runs").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete run query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	r.logger.Info("Deleted audit run", "id", id)
	return nil
}

// SaveIssues stores issues in their given order
func (r *SQLRepository) SaveIssues(ctx context.Context, runID string, issues []audit.Issue) ([]*StoredIssue, error) {
	if len(issues) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	stored := make([]*StoredIssue, 0, len(issues))

	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		for i, issue := range issues {
			si := &StoredIssue{
				Issue:     issue,
				ID:        ulid.IssueID(),
				RunID:     runID,
				Position:  i,
				CreatedAt: now,
			}

			suggestions, err := json.Marshal(nonNil(issue.Suggestions))
			if err != nil {
				return fmt.Errorf("marshaling suggestions: %w", err)
			}

			query, args, err := r.builder.
				Insert("audit_issues").
				Columns(issueColumns...).
				Values(
					si.ID,
					si.RunID,
					si.Position,
					issue.AuditID,
					issue.Title,
					issue.Description,
					issue.Score,
					string(issue.Impact),
					string(suggestions),
					nullString(issue.CodeSnippet),
					si.CreatedAt,
				).
				ToSql()
			if err != nil {
				return fmt.Errorf("building insert issue query: %w", err)
			}

			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("inserting issue %s: %w", issue.AuditID, err)
			}
			stored = append(stored, si)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Saved audit issues", "run_id", runID, "count", len(stored))
	return stored, nil
}

// GetIssuesByRun returns a run's issues in report order
func (r *SQLRepository) GetIssuesByRun(ctx context.Context, runID string) ([]*StoredIssue, error) {
	query, args, err := r.builder.
		Select(issueColumns...).
		From("audit_issues").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select issues query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying issues: %w", err)
	}
	defer rows.Close()

	var issues []*StoredIssue
	for rows.Next() {
		var (
			si          StoredIssue
			impact      string
			suggestions string
			snippet     sql.NullString
		)
		if err := rows.Scan(
			&si.ID,
			&si.RunID,
			&si.Position,
			&si.AuditID,
			&si.Title,
			&si.Description,
			&si.Score,
			&impact,
			&suggestions,
			&snippet,
			&si.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning issue: %w", err)
		}

		si.Impact = audit.ParseImpact(impact)
		if err := json.Unmarshal([]byte(suggestions), &si.Suggestions); err != nil {
			return nil, fmt.Errorf("unmarshaling suggestions of %s: %w", si.ID, err)
		}
		if snippet.Valid {
			s := snippet.String
			si.CodeSnippet = &s
		}
		issues = append(issues, &si)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating issues: %w", err)
	}
	return issues, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run        Run
		durationMS int64
	)
	err := s.Scan(
		&run.ID,
		&run.URL,
		&run.ReportPath,
		&run.LighthouseVersion,
		&run.Summary.Total,
		&run.Summary.High,
		&run.Summary.Medium,
		&run.Summary.Low,
		&durationMS,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return &run, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
