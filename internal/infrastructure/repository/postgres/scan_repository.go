package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/protectedvision/backend/internal/core/domain"
)

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// CommitScan writes the scan row, its findings, the document's
// processed flag and the job's completed transition in one transaction.
// Either everything lands or nothing does; a scan can never exist
// against a non-completed job.
func (r *ScanRepository) CommitScan(ctx context.Context, scan *domain.DocumentScan, findings []domain.Finding) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scan tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO document_scans (
	id, document_id, job_id, risk_level, redacted_key, processing_ms, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		scan.ID, scan.DocumentID, scan.JobID, string(scan.RiskLevel),
		scan.RedactedKey, scan.Duration.Milliseconds(), scan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}

	for _, f := range findings {
		var regionJSON any
		if f.Region != nil {
			raw, err := json.Marshal(f.Region)
			if err != nil {
				return fmt.Errorf("marshal finding region: %w", err)
			}
			regionJSON = raw
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO sensitive_findings (
	id, scan_id, category, confidence, region, instance_count, redacted
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
			f.ID, scan.ID, string(f.Category), f.Confidence, regionJSON, f.Count, f.Redacted,
		)
		if err != nil {
			return fmt.Errorf("insert finding: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
UPDATE documents
SET processed = TRUE, updated_at = $2
WHERE id = $1
`, scan.DocumentID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark document processed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "mark processed", fmt.Errorf("id %s", scan.DocumentID))
	}

	res, err = tx.ExecContext(ctx, `
UPDATE detection_jobs
SET status = 'completed', completed_at = $2, error_message = NULL
WHERE id = $1 AND status NOT IN ('completed', 'failed')
`, scan.JobID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrJobNotFound, "complete job", fmt.Errorf("id %s not updatable", scan.JobID))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scan tx: %w", err)
	}
	return nil
}

func (r *ScanRepository) GetByID(ctx context.Context, id string) (*domain.DocumentScan, []domain.Finding, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, document_id, job_id, risk_level, redacted_key, processing_ms, created_at
FROM document_scans
WHERE id = $1
`, id)

	scan, err := scanScanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, domain.WrapError(domain.ErrScanNotFound, "get scan", fmt.Errorf("id %s", id))
		}
		return nil, nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, scan_id, category, confidence, region, instance_count, redacted
FROM sensitive_findings
WHERE scan_id = $1
ORDER BY id
`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var findings []domain.Finding
	for rows.Next() {
		var f domain.Finding
		var category string
		var regionRaw []byte
		if err := rows.Scan(&f.ID, &f.ScanID, &category, &f.Confidence, &regionRaw, &f.Count, &f.Redacted); err != nil {
			return nil, nil, fmt.Errorf("scan finding: %w", err)
		}
		f.Category = domain.Category(category)
		if len(regionRaw) > 0 {
			var region domain.Region
			if err := json.Unmarshal(regionRaw, &region); err != nil {
				return nil, nil, fmt.Errorf("unmarshal finding region: %w", err)
			}
			f.Region = &region
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate findings: %w", err)
	}
	return scan, findings, nil
}

func (r *ScanRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.DocumentScan, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, job_id, risk_level, redacted_key, processing_ms, created_at
FROM document_scans
WHERE document_id = $1
ORDER BY created_at DESC
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query scans by document: %w", err)
	}
	return collectScans(rows)
}

func (r *ScanRepository) ListByUser(ctx context.Context, userID string) ([]domain.DocumentScan, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT s.id, s.document_id, s.job_id, s.risk_level, s.redacted_key, s.processing_ms, s.created_at
FROM document_scans s
JOIN documents d ON d.id = s.document_id
WHERE d.user_id = $1
ORDER BY s.created_at DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("query scans by user: %w", err)
	}
	return collectScans(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScanRow(row rowScanner) (*domain.DocumentScan, error) {
	var scan domain.DocumentScan
	var risk string
	var redactedKey sql.NullString
	var processingMS int64

	err := row.Scan(&scan.ID, &scan.DocumentID, &scan.JobID, &risk, &redactedKey, &processingMS, &scan.CreatedAt)
	if err != nil {
		return nil, err
	}
	scan.RiskLevel = domain.RiskLevel(risk)
	scan.Duration = time.Duration(processingMS) * time.Millisecond
	if redactedKey.Valid {
		key := redactedKey.String
		scan.RedactedKey = &key
	}
	return &scan, nil
}

func collectScans(rows *sql.Rows) ([]domain.DocumentScan, error) {
	defer rows.Close()
	var scans []domain.DocumentScan
	for rows.Next() {
		scan, err := scanScanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scan row: %w", err)
		}
		scans = append(scans, *scan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return scans, nil
}
