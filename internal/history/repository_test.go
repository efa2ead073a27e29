package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/auditnest/internal/audit"
	"github.com/tildaslashalef/auditnest/internal/loggy"
)

func newMockRepository(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock database")
	t.Cleanup(func() { db.Close() })

	return NewSQLRepository(db, loggy.NewNoopLogger()), mock
}

func runRows(runs ...*Run) *sqlmock.Rows {
	rows := sqlmock.NewRows(runColumns)
	for _, r := range runs {
		rows.AddRow(r.ID, r.URL, r.ReportPath, r.LighthouseVersion,
			r.Summary.Total, r.Summary.High, r.Summary.Medium, r.Summary.Low,
			r.Duration.Milliseconds(), r.CreatedAt)
	}
	return rows
}

func TestCreateRun(t *testing.T) {
	repo, mock := newMockRepository(t)

	run := &Run{
		URL:      "https://example.com",
		Summary:  audit.Summary{Total: 3, High: 1, Medium: 1, Low: 1},
		Duration: 1500 * time.Millisecond,
	}

	mock.ExpectExec("INSERT INTO audit_runs").
		WithArgs(sqlmock.AnyArg(), "https://example.com", "", "", 3, 1, 1, 1, int64(1500), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRun(context.Background(), run)

	require.NoError(t, err)
	assert.Regexp(t, `^run-[0-9A-Z]{26}$`, run.ID)
	assert.False(t, run.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRun(t *testing.T) {
	repo, mock := newMockRepository(t)
	created := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	want := &Run{
		ID:                "run-01J00000000000000000000000",
		URL:               "https://example.com",
		ReportPath:        "/tmp/report.json",
		LighthouseVersion: "12.0.0",
		Summary:           audit.Summary{Total: 2, Medium: 2},
		Duration:          2 * time.Second,
		CreatedAt:         created,
	}

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT .+ FROM audit_runs WHERE id = \\?").
			WithArgs(want.ID).
			WillReturnRows(runRows(want))

		got, err := repo.GetRun(context.Background(), want.ID)

		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery("SELECT .+ FROM audit_runs WHERE id = \\?").
			WithArgs("run-missing").
			WillReturnRows(sqlmock.NewRows(runColumns))

		got, err := repo.GetRun(context.Background(), "run-missing")

		assert.Nil(t, got)
		assert.True(t, errors.Is(err, ErrRunNotFound))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRuns(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .+ FROM audit_runs ORDER BY created_at DESC, id DESC LIMIT 10 OFFSET 20").
		WillReturnRows(runRows(
			&Run{ID: "run-b", URL: "https://b.example", CreatedAt: now},
			&Run{ID: "run-a", URL: "https://a.example", CreatedAt: now.Add(-time.Hour)},
		))

	runs, err := repo.ListRuns(context.Background(), 10, 20)

	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].ID)
	assert.Equal(t, "run-a", runs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRun(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("DELETE FROM audit_runs WHERE id = \\?").
		WithArgs("run-a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM audit_runs WHERE id = \\?").
		WithArgs("run-gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.DeleteRun(context.Background(), "run-a"))
	assert.ErrorIs(t, repo.DeleteRun(context.Background(), "run-gone"), ErrRunNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveIssues(t *testing.T) {
	snippet := "<img>"
	issues := []audit.Issue{
		{AuditID: "lcp", Title: "LCP", Score: 0.3, Impact: audit.ImpactHigh, Suggestions: []string{"preload"}, CodeSnippet: &snippet},
		{AuditID: "cls", Title: "CLS", Score: 0.7, Impact: audit.ImpactMedium},
	}

	t.Run("commits every issue", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO audit_issues").
			WithArgs(sqlmock.AnyArg(), "run-a", 0, "lcp", "LCP", "", 0.3, "high", `["preload"]`, "<img>", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO audit_issues").
			WithArgs(sqlmock.AnyArg(), "run-a", 1, "cls", "CLS", "", 0.7, "medium", `[]`, nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectCommit()

		stored, err := repo.SaveIssues(context.Background(), "run-a", issues)

		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.Equal(t, 1, stored[1].Position)
		assert.Equal(t, "run-a", stored[0].RunID)
		assert.Regexp(t, `^iss-`, stored[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on failure", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO audit_issues").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO audit_issues").WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		stored, err := repo.SaveIssues(context.Background(), "run-a", issues)

		assert.Error(t, err)
		assert.Nil(t, stored)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no issues touches nothing", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		stored, err := repo.SaveIssues(context.Background(), "run-a", nil)

		assert.NoError(t, err)
		assert.Empty(t, stored)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetIssuesByRun(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(issueColumns).
		AddRow("iss-1", "run-a", 0, "lcp", "LCP", "desc", 0.3, "high", `["a","b"]`, "code", now).
		AddRow("iss-2", "run-a", 1, "cls", "CLS", "", 0.7, "medium", `[]`, nil, now)

	mock.ExpectQuery("SELECT .+ FROM audit_issues WHERE run_id = \\? ORDER BY position ASC").
		WithArgs("run-a").
		WillReturnRows(rows)

	issues, err := repo.GetIssuesByRun(context.Background(), "run-a")

	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, audit.ImpactHigh, issues[0].Impact)
	assert.Equal(t, []string{"a", "b"}, issues[0].Suggestions)
	require.NotNil(t, issues[0].CodeSnippet)
	assert.Equal(t, "code", *issues[0].CodeSnippet)
	assert.Nil(t, issues[1].CodeSnippet)
	assert.Empty(t, issues[1].Suggestions)
	assert.NoError(t, mock.ExpectationsWereMet())
}
