package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/protectedvision/backend/internal/core/domain"
)

type ModelRegistry struct {
	db *sql.DB
}

func NewModelRegistry(db *sql.DB) *ModelRegistry {
	return &ModelRegistry{db: db}
}

func (r *ModelRegistry) ListActive(ctx context.Context) ([]domain.DetectionModel, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, kind, version, active, created_at
FROM detection_models
WHERE active = TRUE
ORDER BY name
`)
	if err != nil {
		return nil, fmt.Errorf("query active models: %w", err)
	}
	defer rows.Close()

	models := []domain.DetectionModel{}
	for rows.Next() {
		var m domain.DetectionModel
		var kind string
		if err := rows.Scan(&m.ID, &m.Name, &kind, &m.Version, &m.Active, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		m.Kind = domain.ModelKind(kind)
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate models: %w", err)
	}
	return models, nil
}
