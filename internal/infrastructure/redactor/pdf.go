package redactor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/protectedvision/backend/internal/core/domain"
	"github.com/protectedvision/backend/internal/core/ports"
)

// PageConverter is the slice of the media toolbox the pdf redactor
// needs.
type PageConverter interface {
	RasterizePDF(ctx context.Context, doc io.Reader, dpi int) ([][]byte, error)
	ImagesToPDF(ctx context.Context, pages [][]byte) ([]byte, error)
}

// PDF flattens the document: every page is rasterized at the analysis
// DPI, boxed findings are masked on their page raster and the pages are
// reassembled into a new PDF. Flattening drops the text layer, which
// makes the redaction irrecoverable. Text-layer findings carry no box
// and are skipped.
type PDF struct {
	storage ports.ObjectStorage
	pages   PageConverter
	dpi     int
	logger  *slog.Logger
}

func NewPDF(storage ports.ObjectStorage, pages PageConverter, dpi int, logger *slog.Logger) *PDF {
	if dpi < 72 {
		dpi = 150
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PDF{storage: storage, pages: pages, dpi: dpi, logger: logger}
}

func (r *PDF) Redact(ctx context.Context, doc *domain.Document, findings []domain.Finding) (string, []int, error) {
	type pageMask struct {
		rects   []image.Rectangle
		indices []int
	}
	masks := make(map[int]*pageMask)
	for i, f := range findings {
		if f.Region == nil || f.Region.Width <= 0 || f.Region.Height <= 0 {
			if f.Region != nil && f.Region.Page != nil {
				r.logger.Warn("skipping boxless pdf finding",
					"document_id", doc.ID, "category", f.Category, "page", *f.Region.Page)
			}
			continue
		}
		if f.Region.Page == nil {
			continue
		}
		m, ok := masks[*f.Region.Page]
		if !ok {
			m = &pageMask{}
			masks[*f.Region.Page] = m
		}
		m.rects = append(m.rects, image.Rect(
			f.Region.X,
			f.Region.Y,
			f.Region.X+f.Region.Width,
			f.Region.Y+f.Region.Height,
		))
		m.indices = append(m.indices, i)
	}
	if len(masks) == 0 {
		return "", nil, nil
	}

	blob, err := r.storage.Open(ctx, doc.StorageKey)
	if err != nil {
		return "", nil, fmt.Errorf("open artifact %s: %w", doc.StorageKey, err)
	}
	defer blob.Close()

	rasters, err := r.pages.RasterizePDF(ctx, blob, r.dpi)
	if err != nil {
		return "", nil, fmt.Errorf("rasterize pdf: %w", err)
	}

	var masked []int
	for pageNum, m := range masks {
		if pageNum < 1 || pageNum > len(rasters) {
			r.logger.Warn("pdf finding references missing page", "document_id", doc.ID, "page", pageNum)
			continue
		}
		redone, err := maskPNG(rasters[pageNum-1], m.rects)
		if err != nil {
			return "", nil, fmt.Errorf("mask page %d: %w", pageNum, err)
		}
		rasters[pageNum-1] = redone
		masked = append(masked, m.indices...)
	}
	if len(masked) == 0 {
		return "", nil, nil
	}
	// Map iteration order is random; callers compare masked indices.
	sort.Ints(masked)

	out, err := r.pages.ImagesToPDF(ctx, rasters)
	if err != nil {
		return "", nil, fmt.Errorf("assemble redacted pdf: %w", err)
	}

	key := "redacted/" + uuid.NewString() + ".pdf"
	if err := r.storage.Save(ctx, key, bytes.NewReader(out)); err != nil {
		return "", nil, fmt.Errorf("save redacted pdf: %w", err)
	}
	return key, masked, nil
}
