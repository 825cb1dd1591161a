package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/protectedvision/backend/internal/core/domain"
	"github.com/protectedvision/backend/internal/core/ports"
)

// ScanObserver receives pipeline outcomes, typically for metrics.
type ScanObserver interface {
	ScanStarted()
	ScanFinished(risk domain.RiskLevel, findings int, duration time.Duration, err error)
}

type ScanUseCase struct {
	docs      ports.DocumentRepository
	jobs      ports.JobRepository
	scans     ports.ScanRepository
	registry  ports.ModelRegistry
	queue     ports.MessageQueue
	stats     ports.StatsRepository
	analyzers map[domain.Modality]ports.Analyzer
	redactors map[domain.Modality]ports.Redactor
	locks     *documentLocks
	observer  ScanObserver
}

func NewScanUseCase(
	docs ports.DocumentRepository,
	jobs ports.JobRepository,
	scans ports.ScanRepository,
	registry ports.ModelRegistry,
	queue ports.MessageQueue,
	stats ports.StatsRepository,
	analyzers map[domain.Modality]ports.Analyzer,
	redactors map[domain.Modality]ports.Redactor,
) *ScanUseCase {
	return &ScanUseCase{
		docs:      docs,
		jobs:      jobs,
		scans:     scans,
		registry:  registry,
		queue:     queue,
		stats:     stats,
		analyzers: analyzers,
		redactors: redactors,
		locks:     newDocumentLocks(),
	}
}

// SetObserver attaches a metrics observer. Must be called before the
// worker starts consuming.
func (uc *ScanUseCase) SetObserver(obs ScanObserver) { uc.observer = obs }

// Submit creates a pending job for an owned document and enqueues it.
// It returns immediately; callers poll the job for the terminal result.
func (uc *ScanUseCase) Submit(ctx context.Context, userID, documentID string) (*domain.DetectionJob, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.UserID != userID {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "submit scan",
			fmt.Errorf("document %s not owned by caller", documentID))
	}

	job := &domain.DetectionJob{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		UserID:     userID,
		Status:     domain.JobPending,
		StartedAt:  time.Now().UTC(),
	}
	if err := uc.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create detection job: %w", err)
	}

	if err := uc.queue.PublishScanRequested(ctx, job.ID); err != nil {
		// The job row is the audit trail; it must not stay pending forever.
		if failErr := uc.jobs.MarkFailed(context.WithoutCancel(ctx), job.ID, "enqueue failed: "+err.Error()); failErr != nil {
			return nil, fmt.Errorf("publish scan request: %w; mark failed status: %v", err, failErr)
		}
		return nil, fmt.Errorf("publish scan request: %w", err)
	}
	return job, nil
}

// ProcessJob drives one queued job to a terminal state. Runs for the
// same document are serialized; a redelivered terminal job is a no-op.
func (uc *ScanUseCase) ProcessJob(ctx context.Context, jobID string) error {
	job, err := uc.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetch job by id: %w", err)
	}
	if job.Status.Terminal() {
		slog.Info("scan_job_already_terminal", "job_id", job.ID, "status", job.Status)
		return nil
	}

	unlock := uc.locks.lock(job.DocumentID)
	defer unlock()

	if uc.observer != nil {
		uc.observer.ScanStarted()
	}
	started := time.Now()

	result, runErr := uc.runPipeline(ctx, job, started)
	elapsed := time.Since(started)

	if runErr != nil {
		uc.failJob(ctx, job.ID, runErr)
		if uc.observer != nil {
			uc.observer.ScanFinished("", 0, elapsed, runErr)
		}
		return runErr
	}

	if uc.observer != nil {
		uc.observer.ScanFinished(result.scan.RiskLevel, len(result.findings), elapsed, nil)
	}
	slog.Info("scan_completed",
		"job_id", job.ID,
		"document_id", job.DocumentID,
		"scan_id", result.scan.ID,
		"risk_level", result.scan.RiskLevel,
		"findings", len(result.findings),
		"duration_ms", elapsed.Milliseconds(),
	)
	return nil
}

type scanResult struct {
	scan     *domain.DocumentScan
	findings []domain.Finding
}

// runPipeline performs snapshot, dispatch, scoring, redaction and the
// atomic persist. Panics surface as errors so the deferred failJob in
// ProcessJob always leaves the job terminal.
func (uc *ScanUseCase) runPipeline(ctx context.Context, job *domain.DetectionJob, started time.Time) (result *scanResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	models, err := uc.registry.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot active models: %w", err)
	}
	if err := uc.jobs.MarkProcessing(ctx, job.ID, models); err != nil {
		return nil, fmt.Errorf("set status=processing: %w", err)
	}

	doc, err := uc.docs.GetByID(ctx, job.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}

	analyzer, ok := uc.analyzers[doc.Modality]
	if !ok {
		return nil, domain.WrapError(domain.ErrUnsupportedModality, "dispatch analyzer",
			fmt.Errorf("no analyzer for modality %q", doc.Modality))
	}

	analysis, err := analyzer.Analyze(ctx, doc, models)
	if err != nil {
		if domain.IsKind(err, domain.ErrAnalysisFailed) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrAnalysisFailed, "analyze document", err)
	}

	risk := domain.ScoreRisk(analysis.Findings)

	redactor, ok := uc.redactors[doc.Modality]
	if !ok {
		return nil, domain.WrapError(domain.ErrUnsupportedModality, "dispatch redactor",
			fmt.Errorf("no redactor for modality %q", doc.Modality))
	}
	redactedKey, masked, err := redactor.Redact(ctx, doc, analysis.Findings)
	if err != nil {
		if domain.IsKind(err, domain.ErrRedactionFailed) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrRedactionFailed, "redact document", err)
	}
	for _, i := range masked {
		if i >= 0 && i < len(analysis.Findings) {
			analysis.Findings[i].Redacted = true
		}
	}

	// Persistence is past the point of no return; cancellation no longer applies.
	persistCtx := context.WithoutCancel(ctx)

	scan := &domain.DocumentScan{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		JobID:      job.ID,
		RiskLevel:  risk,
		Duration:   time.Since(started),
		CreatedAt:  time.Now().UTC(),
	}
	if redactedKey != "" {
		scan.RedactedKey = &redactedKey
	}
	findings := make([]domain.Finding, len(analysis.Findings))
	for i, f := range analysis.Findings {
		f.ID = uuid.NewString()
		f.ScanID = scan.ID
		if f.Count < 1 {
			f.Count = 1
		}
		findings[i] = f
	}

	// CommitScan also moves the job to completed; the scan and its
	// job's terminal state can never disagree.
	if err := uc.scans.CommitScan(persistCtx, scan, findings); err != nil {
		return nil, domain.WrapError(domain.ErrPersistenceFailed, "commit scan", err)
	}

	delta := domain.StatsDelta{
		DocumentsProcessed: 1,
		SensitiveDetected:  int64(domain.Instances(findings)),
		NonDetectedItems:   int64(analysis.Discarded),
	}
	if err := uc.stats.Apply(persistCtx, job.UserID, delta); err != nil {
		// The scan is committed and the job terminal; a lost counter
		// update is logged, not retried (Apply is not idempotent).
		slog.Warn("stats_update_failed", "event", "scan_completed", "user_id", job.UserID, "error", err)
	}

	return &scanResult{scan: scan, findings: findings}, nil
}

func (uc *ScanUseCase) failJob(ctx context.Context, jobID string, runErr error) {
	if err := uc.jobs.MarkFailed(context.WithoutCancel(ctx), jobID, runErr.Error()); err != nil {
		slog.Error("mark_job_failed_error", "job_id", jobID, "error", err, "run_error", runErr)
	}
}
