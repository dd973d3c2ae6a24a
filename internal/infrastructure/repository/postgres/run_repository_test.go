package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*RunRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewRunRepository(db), mock, func() { _ = db.Close() }
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(schemaLockID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS site_runs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordSiteRun(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := domain.SiteRunRecord{
		RunID:           "run-1",
		Slug:            "lancaster",
		Status:          domain.RunStatusSuccess,
		FilesTotal:      3,
		LotsTotal:       12,
		LotsEmitted:     12,
		AvgCompleteness: 50,
		StartedAt:       started,
		FinishedAt:      started.Add(time.Second),
	}
	mock.ExpectExec("INSERT INTO site_runs").
		WithArgs("run-1", "lancaster", "success", false, 3, 0, 12, 12, 0, 50.0, "", started, started.Add(time.Second)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RecordSiteRun(context.Background(), rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordSiteRunWrapsDriverError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	errDriver := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO site_runs").WillReturnError(errDriver)

	err := repo.RecordSiteRun(context.Background(), domain.SiteRunRecord{RunID: "r", Slug: "s"})
	if !errors.Is(err, errDriver) {
		t.Fatalf("expected driver error, got %v", err)
	}
}

func TestListSiteRuns(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	columns := []string{
		"run_id", "slug", "status", "dry_run", "files_total", "files_unclassified", "lots_total",
		"lots_emitted", "lots_complete", "avg_completeness", "error_message", "started_at", "finished_at",
	}
	mock.ExpectQuery("SELECT run_id, slug, status").
		WithArgs("lancaster", maxHistoryLimit).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("run-2", "lancaster", "failed", false, 3, 1, 12, 12, 0, 0.0, "disk full", started, started).
			AddRow("run-1", "lancaster", "success", true, 3, 0, 12, 12, 2, 25.0, "", started, started))

	runs, err := repo.ListSiteRuns(context.Background(), "lancaster", 10_000)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Status != domain.RunStatusFailed || runs[0].Error != "disk full" {
		t.Fatalf("unexpected first run %+v", runs[0])
	}
	if !runs[1].DryRun || runs[1].LotsComplete != 2 {
		t.Fatalf("unexpected second run %+v", runs[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListSiteRunsRequiresSlug(t *testing.T) {
	repo, _, done := newRepoWithMock(t)
	defer done()

	if _, err := repo.ListSiteRuns(context.Background(), " ", 5); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
