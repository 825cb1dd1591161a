package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/protectedvision/backend/internal/core/domain"
	"github.com/protectedvision/backend/internal/core/ports"
)

type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	stats   ports.StatsRepository
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	stats ports.StatsRepository,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		stats:   stats,
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	userID, title, filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	modality, ok := domain.ParseModality(mimeType)
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse modality",
			fmt.Errorf("unsupported mime type %q", mimeType))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("documents/%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	if strings.TrimSpace(title) == "" {
		title = filename
	}

	doc := &domain.Document{
		ID:         id,
		UserID:     userID,
		Title:      title,
		Filename:   filename,
		MimeType:   mimeType,
		Modality:   modality,
		StorageKey: storageKey,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.stats.Apply(ctx, userID, domain.StatsDelta{DocumentsSaved: 1}); err != nil {
		// The document is stored; a lost counter increment is logged, not fatal.
		slog.Warn("stats_update_failed", "event", "document_saved", "user_id", userID, "error", err)
	}

	return doc, nil
}

// Share records a share event for an owned document.
func (uc *IngestDocumentUseCase) Share(ctx context.Context, userID, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.UserID != userID {
		return domain.WrapError(domain.ErrDocumentNotFound, "share document",
			fmt.Errorf("document %s not owned by caller", documentID))
	}
	if err := uc.stats.Apply(ctx, userID, domain.StatsDelta{DocumentsShared: 1}); err != nil {
		return fmt.Errorf("record share event: %w", err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
