package ports

import (
	"context"
	"io"

	"github.com/protectedvision/backend/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload.
type DocumentIngestor interface {
	Upload(ctx context.Context, userID, title, filename, mimeType string, body io.Reader) (*domain.Document, error)
	Share(ctx context.Context, userID, documentID string) error
}

// ScanSubmitter enqueues a detection run and returns the job without
// waiting for completion.
type ScanSubmitter interface {
	Submit(ctx context.Context, userID, documentID string) (*domain.DetectionJob, error)
}

// ScanProcessor executes one queued detection job to a terminal state.
type ScanProcessor interface {
	ProcessJob(ctx context.Context, jobID string) error
}
