package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/protectedvision/backend/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, user_id, title, filename, mime_type, modality, storage_key, processed, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		doc.ID, doc.UserID, doc.Title, doc.Filename, doc.MimeType,
		string(doc.Modality), doc.StorageKey, doc.Processed, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, title, filename, mime_type, modality, storage_key, processed, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	var doc domain.Document
	var modality string

	err := row.Scan(
		&doc.ID, &doc.UserID, &doc.Title, &doc.Filename, &doc.MimeType,
		&modality, &doc.StorageKey, &doc.Processed, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.Modality = domain.Modality(modality)
	return &doc, nil
}
