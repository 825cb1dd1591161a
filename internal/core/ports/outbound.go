package ports

import (
	"context"
	"io"

	"github.com/protectedvision/backend/internal/core/domain"
)

// DocumentRepository persists and reads document metadata. The
// processed flag is flipped only by ScanRepository.CommitScan.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// ModelRegistry exposes the set of currently active detection models.
// Callers snapshot the result once per run.
type ModelRegistry interface {
	ListActive(ctx context.Context) ([]domain.DetectionModel, error)
}

// JobRepository tracks detection jobs. Terminal transitions set
// completed_at; a job in a terminal state is never updated again. The
// completed transition lives in ScanRepository.CommitScan so a scan and
// its job's terminal state commit together.
type JobRepository interface {
	Create(ctx context.Context, job *domain.DetectionJob) error
	GetByID(ctx context.Context, id string) (*domain.DetectionJob, error)
	MarkProcessing(ctx context.Context, id string, models []domain.DetectionModel) error
	MarkFailed(ctx context.Context, id, errMessage string) error
}

// ScanRepository persists scan outcomes. CommitScan writes the scan,
// its findings, the document's processed flag and the job's completed
// transition in one transaction.
type ScanRepository interface {
	CommitScan(ctx context.Context, scan *domain.DocumentScan, findings []domain.Finding) error
	GetByID(ctx context.Context, id string) (*domain.DocumentScan, []domain.Finding, error)
	ListByDocument(ctx context.Context, documentID string) ([]domain.DocumentScan, error)
	ListByUser(ctx context.Context, userID string) ([]domain.DocumentScan, error)
}

// StatsRepository applies per-user counter deltas atomically. Apply is
// not idempotent; callers emit each event exactly once.
type StatsRepository interface {
	Apply(ctx context.Context, userID string, delta domain.StatsDelta) error
	Get(ctx context.Context, userID string) (domain.UserStats, error)
}

// ObjectStorage stores source and redacted artifacts as separate blobs.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue carries scan requests from the API to the workers.
type MessageQueue interface {
	PublishScanRequested(ctx context.Context, jobID string) error
	SubscribeScanRequested(ctx context.Context, handler func(context.Context, string) error) error
}

// Analyzer detects sensitive information in a document of one
// modality. Discarded counts instances dropped below the confidence
// threshold; they feed the non-detected statistics counter.
type Analyzer interface {
	Analyze(ctx context.Context, doc *domain.Document, models []domain.DetectionModel) (domain.Analysis, error)
}

// Redactor produces a masked copy of the document as a new blob and
// reports which findings (by index) were actually masked. The source
// blob is never modified.
type Redactor interface {
	Redact(ctx context.Context, doc *domain.Document, findings []domain.Finding) (redactedKey string, masked []int, err error)
}
