package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/protectedvision/backend/internal/core/domain"
)

func newStatsRepoWithMock(t *testing.T) (*StatsRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &StatsRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestApplyUpsertsCounters(t *testing.T) {
	repo, mock, done := newStatsRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO user_stats").
		WithArgs("user-1", int64(0), int64(1), int64(0), int64(4), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Apply(context.Background(), "user-1", domain.StatsDelta{
		DocumentsProcessed: 1,
		SensitiveDetected:  4,
		NonDetectedItems:   2,
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetReturnsZeroValueForUnknownUser(t *testing.T) {
	repo, mock, done := newStatsRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT user_id, documents_saved").
		WithArgs("new-user").
		WillReturnError(sql.ErrNoRows)

	stats, err := repo.Get(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stats.UserID != "new-user" || stats.DocumentsSaved != 0 {
		t.Fatalf("stats = %+v, want zero value with user id", stats)
	}
}

func TestGetDecodesCounters(t *testing.T) {
	repo, mock, done := newStatsRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{
		"user_id", "documents_saved", "documents_processed", "documents_shared", "sensitive_items_detected", "non_detected_items",
	}).AddRow("user-1", int64(5), int64(3), int64(1), int64(9), int64(3))
	mock.ExpectQuery("SELECT user_id, documents_saved").
		WithArgs("user-1").
		WillReturnRows(rows)

	stats, err := repo.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stats.SensitiveDetected != 9 || stats.NonDetectedItems != 3 {
		t.Fatalf("stats = %+v", stats)
	}
	if got := stats.DetectionAccuracy(); got != 75 {
		t.Fatalf("accuracy = %v, want 75", got)
	}
}
