package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/protectedvision/backend/internal/core/domain"
)

func newScanRepoWithMock(t *testing.T) (*ScanRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ScanRepository{db: db}, mock, func() { _ = db.Close() }
}

func testScan() (*domain.DocumentScan, []domain.Finding) {
	key := "redacted/abc.png"
	scan := &domain.DocumentScan{
		ID:          "scan-1",
		DocumentID:  "doc-1",
		JobID:       "job-1",
		RiskLevel:   domain.RiskHigh,
		RedactedKey: &key,
		Duration:    1500 * time.Millisecond,
		CreatedAt:   time.Now().UTC(),
	}
	findings := []domain.Finding{
		{
			ID: "f-1", ScanID: "scan-1", Category: domain.CategoryCreditCard,
			Confidence: 0.95, Region: &domain.Region{X: 1, Y: 2, Width: 30, Height: 10}, Count: 2, Redacted: true,
		},
	}
	return scan, findings
}

func TestCommitScanCommitsAllWritesInOneTx(t *testing.T) {
	repo, mock, done := newScanRepoWithMock(t)
	defer done()
	scan, findings := testScan()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO document_scans").
		WithArgs(scan.ID, scan.DocumentID, scan.JobID, "high", scan.RedactedKey, int64(1500), scan.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO sensitive_findings").
		WithArgs("f-1", "scan-1", "credit_card", 0.95, sqlmock.AnyArg(), 2, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE detection_jobs").
		WithArgs("job-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.CommitScan(context.Background(), scan, findings); err != nil {
		t.Fatalf("CommitScan() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCommitScanRollsBackWhenJobAlreadyTerminal(t *testing.T) {
	repo, mock, done := newScanRepoWithMock(t)
	defer done()
	scan, findings := testScan()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO document_scans").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO sensitive_findings").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE detection_jobs").
		WithArgs("job-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.CommitScan(context.Background(), scan, findings)
	if !domain.IsKind(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCommitScanRollsBackWhenDocumentMissing(t *testing.T) {
	repo, mock, done := newScanRepoWithMock(t)
	defer done()
	scan, findings := testScan()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO document_scans").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO sensitive_findings").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.CommitScan(context.Background(), scan, findings)
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCommitScanRollsBackOnFindingInsertFailure(t *testing.T) {
	repo, mock, done := newScanRepoWithMock(t)
	defer done()
	scan, findings := testScan()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO document_scans").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO sensitive_findings").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	if err := repo.CommitScan(context.Background(), scan, findings); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestScanGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newScanRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, document_id, job_id, risk_level").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, _, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrScanNotFound) {
		t.Fatalf("expected ErrScanNotFound, got %v", err)
	}
}

func TestScanGetByIDDecodesFindings(t *testing.T) {
	repo, mock, done := newScanRepoWithMock(t)
	defer done()
	created := time.Now().UTC()

	scanRows := sqlmock.NewRows([]string{
		"id", "document_id", "job_id", "risk_level", "redacted_key", "processing_ms", "created_at",
	}).AddRow("scan-1", "doc-1", "job-1", "medium", nil, int64(2500), created)
	mock.ExpectQuery("SELECT id, document_id, job_id, risk_level").
		WithArgs("scan-1").
		WillReturnRows(scanRows)

	findingRows := sqlmock.NewRows([]string{
		"id", "scan_id", "category", "confidence", "region", "instance_count", "redacted",
	}).
		AddRow("f-1", "scan-1", "email", 0.9, []byte(`{"x":1,"y":2,"width":3,"height":4}`), 1, false).
		AddRow("f-2", "scan-1", "phone_number", 0.8, nil, 2, true)
	mock.ExpectQuery("SELECT id, scan_id, category, confidence, region").
		WithArgs("scan-1").
		WillReturnRows(findingRows)

	scan, findings, err := repo.GetByID(context.Background(), "scan-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if scan.RedactedKey != nil {
		t.Fatalf("redacted_key must stay nil")
	}
	if scan.Duration != 2500*time.Millisecond {
		t.Fatalf("duration = %v, want 2.5s", scan.Duration)
	}
	if len(findings) != 2 {
		t.Fatalf("findings = %+v, want 2", findings)
	}
	if findings[0].Region == nil || findings[0].Region.Width != 3 {
		t.Fatalf("region not decoded: %+v", findings[0].Region)
	}
	if findings[1].Region != nil {
		t.Fatalf("null region must stay nil")
	}
}
