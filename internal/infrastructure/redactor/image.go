// Package redactor produces masked copies of documents. Redaction is
// irreversible: regions are filled with opaque black before the copy is
// stored under a new key. The source blob is never touched.
package redactor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/protectedvision/backend/internal/core/domain"
	"github.com/protectedvision/backend/internal/core/ports"
)

// Image masks findings directly on the decoded raster with image/draw.
type Image struct {
	storage ports.ObjectStorage
	logger  *slog.Logger
}

func NewImage(storage ports.ObjectStorage, logger *slog.Logger) *Image {
	if logger == nil {
		logger = slog.Default()
	}
	return &Image{storage: storage, logger: logger}
}

func (r *Image) Redact(ctx context.Context, doc *domain.Document, findings []domain.Finding) (string, []int, error) {
	raw, err := readBlob(ctx, r.storage, doc.StorageKey)
	if err != nil {
		return "", nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, img, bounds.Min, draw.Src)

	var masked []int
	for i, f := range findings {
		rect, ok := maskRect(f, bounds)
		if !ok {
			r.logger.Warn("skipping unmaskable image finding",
				"document_id", doc.ID, "category", f.Category)
			continue
		}
		draw.Draw(canvas, rect, image.NewUniform(color.Black), image.Point{}, draw.Src)
		masked = append(masked, i)
	}
	if len(masked) == 0 {
		return "", nil, nil
	}

	buf := &bytes.Buffer{}
	ext := ".png"
	if format == "jpeg" {
		ext = ".jpg"
		err = jpeg.Encode(buf, canvas, &jpeg.Options{Quality: 90})
	} else {
		err = png.Encode(buf, canvas)
	}
	if err != nil {
		return "", nil, fmt.Errorf("encode redacted image: %w", err)
	}

	key := "redacted/" + uuid.NewString() + ext
	if err := r.storage.Save(ctx, key, buf); err != nil {
		return "", nil, fmt.Errorf("save redacted image: %w", err)
	}
	return key, masked, nil
}

// maskRect returns the clipped mask rectangle for a finding, or false
// when the finding carries no maskable region.
func maskRect(f domain.Finding, bounds image.Rectangle) (image.Rectangle, bool) {
	if f.Region == nil || f.Region.Width <= 0 || f.Region.Height <= 0 {
		return image.Rectangle{}, false
	}
	rect := image.Rect(
		f.Region.X,
		f.Region.Y,
		f.Region.X+f.Region.Width,
		f.Region.Y+f.Region.Height,
	).Intersect(bounds)
	if rect.Empty() {
		return image.Rectangle{}, false
	}
	return rect, true
}

func maskPNG(raw []byte, rects []image.Rectangle) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode page raster: %w", err)
	}

	bounds := img.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, img, bounds.Min, draw.Src)
	for _, rect := range rects {
		draw.Draw(canvas, rect.Intersect(bounds), image.NewUniform(color.Black), image.Point{}, draw.Src)
	}

	buf := &bytes.Buffer{}
	if err := png.Encode(buf, canvas); err != nil {
		return nil, fmt.Errorf("encode page raster: %w", err)
	}
	return buf.Bytes(), nil
}

func readBlob(ctx context.Context, storage ports.ObjectStorage, key string) ([]byte, error) {
	blob, err := storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", key, err)
	}
	defer blob.Close()

	raw, err := io.ReadAll(blob)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	return raw, nil
}
