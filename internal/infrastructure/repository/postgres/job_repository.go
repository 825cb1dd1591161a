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

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *domain.DetectionJob) error {
	modelsJSON, err := json.Marshal(job.ModelsUsed)
	if err != nil {
		return fmt.Errorf("marshal models snapshot: %w", err)
	}
	if job.ModelsUsed == nil {
		modelsJSON = []byte("[]")
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO detection_jobs (
	id, document_id, user_id, status, models_used, started_at, completed_at, error_message
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		job.ID, job.DocumentID, job.UserID, string(job.Status), modelsJSON,
		job.StartedAt, job.CompletedAt, job.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert detection job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.DetectionJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, document_id, user_id, status, models_used, started_at, completed_at, error_message
FROM detection_jobs
WHERE id = $1
`, id)

	var job domain.DetectionJob
	var status string
	var modelsRaw []byte
	var completedAt sql.NullTime
	var errMessage sql.NullString

	err := row.Scan(
		&job.ID, &job.DocumentID, &job.UserID, &status, &modelsRaw,
		&job.StartedAt, &completedAt, &errMessage,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get job", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan detection job: %w", err)
	}
	if err := json.Unmarshal(modelsRaw, &job.ModelsUsed); err != nil {
		return nil, fmt.Errorf("unmarshal models snapshot: %w", err)
	}
	job.Status = domain.JobStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	if errMessage.Valid {
		job.ErrorMessage = errMessage.String
	}
	return &job, nil
}

// MarkProcessing records the model snapshot together with the status
// transition. Refuses to touch jobs already in a terminal state.
func (r *JobRepository) MarkProcessing(ctx context.Context, id string, models []domain.DetectionModel) error {
	if models == nil {
		models = []domain.DetectionModel{}
	}
	modelsJSON, err := json.Marshal(models)
	if err != nil {
		return fmt.Errorf("marshal models snapshot: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE detection_jobs
SET status = $2, models_used = $3
WHERE id = $1 AND status NOT IN ('completed', 'failed')
`, id, string(domain.JobProcessing), modelsJSON)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return requireJobRow(res, id)
}

func (r *JobRepository) MarkFailed(ctx context.Context, id, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE detection_jobs
SET status = $2, completed_at = $3, error_message = $4
WHERE id = $1 AND status NOT IN ('completed', 'failed')
`, id, string(domain.JobFailed), time.Now().UTC(), errMessage)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return requireJobRow(res, id)
}

func requireJobRow(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrJobNotFound, "update job", fmt.Errorf("id %s not updatable", id))
	}
	return nil
}
