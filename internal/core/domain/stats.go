package domain

// UserStats are the per-user running totals. Each counter is
// monotonically non-decreasing and incremented exactly once per
// qualifying event.
type UserStats struct {
	UserID             string `json:"user_id"`
	DocumentsSaved     int64  `json:"total_documents_saved"`
	DocumentsProcessed int64  `json:"total_documents_processed"`
	DocumentsShared    int64  `json:"total_documents_shared"`
	SensitiveDetected  int64  `json:"total_sensitive_items_detected"`
	NonDetectedItems   int64  `json:"total_non_detected_items"`
}

// DetectionAccuracy is the detected share of all classified items, as a
// percentage. Zero when nothing has been classified yet.
func (s UserStats) DetectionAccuracy() float64 {
	total := s.SensitiveDetected + s.NonDetectedItems
	if total == 0 {
		return 0
	}
	return float64(s.SensitiveDetected) / float64(total) * 100
}

// StatsDelta is the single statistics event emitted at pipeline
// completion. Counters are applied atomically per row; callers must not
// re-emit on retry.
type StatsDelta struct {
	DocumentsSaved     int64
	DocumentsProcessed int64
	DocumentsShared    int64
	SensitiveDetected  int64
	NonDetectedItems   int64
}
