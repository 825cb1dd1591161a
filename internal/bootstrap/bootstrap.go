package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/protectedvision/backend/internal/config"
	"github.com/protectedvision/backend/internal/core/domain"
	"github.com/protectedvision/backend/internal/core/ports"
	"github.com/protectedvision/backend/internal/core/usecase"
	"github.com/protectedvision/backend/internal/infrastructure/analyzer"
	"github.com/protectedvision/backend/internal/infrastructure/inference"
	"github.com/protectedvision/backend/internal/infrastructure/media"
	"github.com/protectedvision/backend/internal/infrastructure/queue/nats"
	"github.com/protectedvision/backend/internal/infrastructure/redactor"
	"github.com/protectedvision/backend/internal/infrastructure/repository/postgres"
	"github.com/protectedvision/backend/internal/infrastructure/resilience"
	"github.com/protectedvision/backend/internal/infrastructure/storage/localfs"
	"github.com/protectedvision/backend/internal/infrastructure/storage/miniostore"
)

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Docs     ports.DocumentRepository
	Jobs     ports.JobRepository
	Scans    ports.ScanRepository
	Registry ports.ModelRegistry
	Stats    ports.StatsRepository

	IngestUC *usecase.IngestDocumentUseCase
	ScanUC   *usecase.ScanUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	docs := postgres.NewDocumentRepository(db)
	jobs := postgres.NewJobRepository(db)
	scans := postgres.NewScanRepository(db)
	registry := postgres.NewModelRegistry(db)
	stats := postgres.NewStatsRepository(db)

	storage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	inferenceClient := inference.New(
		cfg.InferenceURL,
		inference.WithResilienceExecutor(executor),
		inference.WithTimeout(time.Duration(cfg.InferenceTimeoutSeconds)*time.Second),
	)
	toolbox := media.NewToolbox(cfg.FFmpegPath, cfg.MutoolPath)

	imageAnalyzer := analyzer.NewImage(storage, inferenceClient, cfg.ConfidenceThreshold)
	analyzers := map[domain.Modality]ports.Analyzer{
		domain.ModalityImage: imageAnalyzer,
		domain.ModalityVideo: analyzer.NewVideo(storage, toolbox, imageAnalyzer, cfg.VideoFrameStep, cfg.VideoMaxFrames),
		domain.ModalityPDF:   analyzer.NewPDF(storage, imageAnalyzer, toolbox, cfg.PDFRasterDPI, slog.Default()),
	}
	redactors := map[domain.Modality]ports.Redactor{
		domain.ModalityImage: redactor.NewImage(storage, slog.Default()),
		domain.ModalityVideo: redactor.NewVideo(storage, toolbox),
		domain.ModalityPDF:   redactor.NewPDF(storage, toolbox, cfg.PDFRasterDPI, slog.Default()),
	}

	ingestUC := usecase.NewIngestDocumentUseCase(docs, storage, stats)
	scanUC := usecase.NewScanUseCase(docs, jobs, scans, registry, queue, stats, analyzers, redactors)

	return &App{
		Config: cfg,

		Queue:    queue,
		Docs:     docs,
		Jobs:     jobs,
		Scans:    scans,
		Registry: registry,
		Stats:    stats,

		IngestUC: ingestUC,
		ScanUC:   scanUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "minio":
		return miniostore.New(ctx, miniostore.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	case "local", "":
		return localfs.New(cfg.StoragePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
