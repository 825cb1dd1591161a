package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/protectedvision/backend/internal/core/domain"
)

type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Apply increments the user's counters in a single upsert. The
// read-modify-write happens inside Postgres under the row lock, so
// concurrent pipeline completions for the same user cannot lose
// updates.
func (r *StatsRepository) Apply(ctx context.Context, userID string, delta domain.StatsDelta) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO user_stats (
	user_id, documents_saved, documents_processed, documents_shared, sensitive_items_detected, non_detected_items
) VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (user_id) DO UPDATE SET
	documents_saved = user_stats.documents_saved + EXCLUDED.documents_saved,
	documents_processed = user_stats.documents_processed + EXCLUDED.documents_processed,
	documents_shared = user_stats.documents_shared + EXCLUDED.documents_shared,
	sensitive_items_detected = user_stats.sensitive_items_detected + EXCLUDED.sensitive_items_detected,
	non_detected_items = user_stats.non_detected_items + EXCLUDED.non_detected_items
`,
		userID, delta.DocumentsSaved, delta.DocumentsProcessed, delta.DocumentsShared,
		delta.SensitiveDetected, delta.NonDetectedItems,
	)
	if err != nil {
		return fmt.Errorf("apply stats delta: %w", err)
	}
	return nil
}

// Get returns the user's counters; a user with no recorded activity
// gets the zero value.
func (r *StatsRepository) Get(ctx context.Context, userID string) (domain.UserStats, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT user_id, documents_saved, documents_processed, documents_shared, sensitive_items_detected, non_detected_items
FROM user_stats
WHERE user_id = $1
`, userID)

	var stats domain.UserStats
	err := row.Scan(
		&stats.UserID, &stats.DocumentsSaved, &stats.DocumentsProcessed,
		&stats.DocumentsShared, &stats.SensitiveDetected, &stats.NonDetectedItems,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserStats{UserID: userID}, nil
		}
		return domain.UserStats{}, fmt.Errorf("scan user stats: %w", err)
	}
	return stats, nil
}
