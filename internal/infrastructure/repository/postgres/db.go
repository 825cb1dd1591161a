package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables and seeds the default model registry.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026030501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	modality TEXT NOT NULL,
	storage_key TEXT NOT NULL,
	processed BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS detection_models (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	version TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS detection_jobs (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	status TEXT NOT NULL,
	models_used JSONB NOT NULL DEFAULT '[]'::jsonb,
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_jobs_document ON detection_jobs(document_id, started_at DESC);

CREATE TABLE IF NOT EXISTS document_scans (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	job_id TEXT NOT NULL REFERENCES detection_jobs(id),
	risk_level TEXT NOT NULL,
	redacted_key TEXT,
	processing_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scans_document ON document_scans(document_id, created_at DESC);

CREATE TABLE IF NOT EXISTS sensitive_findings (
	id TEXT PRIMARY KEY,
	scan_id TEXT NOT NULL REFERENCES document_scans(id) ON DELETE CASCADE,
	category TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	region JSONB,
	instance_count INTEGER NOT NULL DEFAULT 1,
	redacted BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_findings_scan ON sensitive_findings(scan_id);

CREATE TABLE IF NOT EXISTS user_stats (
	user_id TEXT PRIMARY KEY,
	documents_saved BIGINT NOT NULL DEFAULT 0,
	documents_processed BIGINT NOT NULL DEFAULT 0,
	documents_shared BIGINT NOT NULL DEFAULT 0,
	sensitive_items_detected BIGINT NOT NULL DEFAULT 0,
	non_detected_items BIGINT NOT NULL DEFAULT 0
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	const seed = `
INSERT INTO detection_models (id, name, kind, version, active, created_at) VALUES
	('doc-detector', 'document-region-detector', 'detector', '1.2.0', TRUE, NOW()),
	('text-recognizer', 'scene-text-recognizer', 'recognizer', '2.0.1', TRUE, NOW()),
	('pii-classifier', 'pii-entity-classifier', 'classifier', '1.0.3', TRUE, NOW())
ON CONFLICT (id) DO NOTHING
`
	if _, err := tx.ExecContext(ctx, seed); err != nil {
		return fmt.Errorf("seed detection models: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
