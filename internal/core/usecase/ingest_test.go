package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/protectedvision/backend/internal/core/domain"
)

type captureDocRepo struct {
	created *domain.Document
	doc     *domain.Document
	getErr  error
}

func (f *captureDocRepo) Create(_ context.Context, doc *domain.Document) error {
	f.created = doc
	return nil
}

func (f *captureDocRepo) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

type storageFake struct {
	saved   map[string][]byte
	saveErr error
}

func newStorageFake() *storageFake {
	return &storageFake{saved: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.saved[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.saved[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func TestUploadStoresBlobAndMetadata(t *testing.T) {
	repo := &captureDocRepo{}
	storage := newStorageFake()
	stats := &statsFake{}
	uc := NewIngestDocumentUseCase(repo, storage, stats)

	doc, err := uc.Upload(context.Background(), "user-1", "", "Invoice Scan.PNG", "image/png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if doc.Modality != domain.ModalityImage {
		t.Fatalf("modality = %s, want image", doc.Modality)
	}
	if doc.Title != "Invoice Scan.PNG" {
		t.Fatalf("empty title must fall back to the filename, got %q", doc.Title)
	}
	if !strings.HasPrefix(doc.StorageKey, "documents/"+doc.ID+"_") {
		t.Fatalf("unexpected storage key %q", doc.StorageKey)
	}
	if strings.Contains(doc.StorageKey, " ") {
		t.Fatalf("storage key must be sanitized, got %q", doc.StorageKey)
	}
	if _, ok := storage.saved[doc.StorageKey]; !ok {
		t.Fatalf("blob was not saved under %q", doc.StorageKey)
	}
	if repo.created == nil || repo.created.ID != doc.ID {
		t.Fatalf("metadata was not persisted")
	}
	if len(stats.deltas) != 1 || stats.deltas[0].DocumentsSaved != 1 {
		t.Fatalf("documents_saved counter not applied: %+v", stats.deltas)
	}
}

func TestUploadRejectsUnknownMimeType(t *testing.T) {
	repo := &captureDocRepo{}
	storage := newStorageFake()
	uc := NewIngestDocumentUseCase(repo, storage, &statsFake{})

	_, err := uc.Upload(context.Background(), "user-1", "", "notes.txt", "text/plain", strings.NewReader("hi"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(storage.saved) != 0 {
		t.Fatalf("nothing must be stored for a rejected upload")
	}
}

func TestUploadSurvivesStatsFailure(t *testing.T) {
	repo := &captureDocRepo{}
	storage := newStorageFake()
	uc := NewIngestDocumentUseCase(repo, storage, &statsFake{err: errors.New("stats down")})

	if _, err := uc.Upload(context.Background(), "user-1", "t", "a.png", "image/png", strings.NewReader("x")); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
}

func TestShareRejectsForeignDocument(t *testing.T) {
	repo := &captureDocRepo{doc: &domain.Document{ID: "doc-1", UserID: "owner"}}
	stats := &statsFake{}
	uc := NewIngestDocumentUseCase(repo, newStorageFake(), stats)

	err := uc.Share(context.Background(), "intruder", "doc-1")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if len(stats.deltas) != 0 {
		t.Fatalf("no share event must be recorded for a foreign document")
	}
}

func TestShareRecordsEvent(t *testing.T) {
	repo := &captureDocRepo{doc: &domain.Document{ID: "doc-1", UserID: "owner"}}
	stats := &statsFake{}
	uc := NewIngestDocumentUseCase(repo, newStorageFake(), stats)

	if err := uc.Share(context.Background(), "owner", "doc-1"); err != nil {
		t.Fatalf("Share() error = %v", err)
	}
	if len(stats.deltas) != 1 || stats.deltas[0].DocumentsShared != 1 {
		t.Fatalf("documents_shared counter not applied: %+v", stats.deltas)
	}
}
