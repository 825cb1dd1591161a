package redactor

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/protectedvision/backend/internal/core/domain"
	"github.com/protectedvision/backend/internal/core/ports"
	"github.com/protectedvision/backend/internal/infrastructure/media"
)

// VideoMasker re-encodes a video with the given boxes filled black.
type VideoMasker interface {
	RedactVideo(ctx context.Context, video io.Reader, boxes []media.Box) ([]byte, error)
}

// Video masks findings per frame through ffmpeg. Findings without a
// frame index are masked on every frame.
type Video struct {
	storage ports.ObjectStorage
	masker  VideoMasker
}

func NewVideo(storage ports.ObjectStorage, masker VideoMasker) *Video {
	return &Video{storage: storage, masker: masker}
}

func (r *Video) Redact(ctx context.Context, doc *domain.Document, findings []domain.Finding) (string, []int, error) {
	var boxes []media.Box
	var masked []int
	for i, f := range findings {
		if f.Region == nil || f.Region.Width <= 0 || f.Region.Height <= 0 {
			continue
		}
		boxes = append(boxes, media.Box{
			X:      f.Region.X,
			Y:      f.Region.Y,
			Width:  f.Region.Width,
			Height: f.Region.Height,
			Frame:  f.Region.Frame,
		})
		masked = append(masked, i)
	}
	if len(boxes) == 0 {
		return "", nil, nil
	}

	blob, err := r.storage.Open(ctx, doc.StorageKey)
	if err != nil {
		return "", nil, fmt.Errorf("open artifact %s: %w", doc.StorageKey, err)
	}
	defer blob.Close()

	out, err := r.masker.RedactVideo(ctx, blob, boxes)
	if err != nil {
		return "", nil, fmt.Errorf("redact video: %w", err)
	}

	key := "redacted/" + uuid.NewString() + ".mp4"
	if err := r.storage.Save(ctx, key, bytes.NewReader(out)); err != nil {
		return "", nil, fmt.Errorf("save redacted video: %w", err)
	}
	return key, masked, nil
}
