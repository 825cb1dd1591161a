package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	pdfreader "github.com/ledongthuc/pdf"

	"github.com/protectedvision/backend/internal/core/domain"
	"github.com/protectedvision/backend/internal/core/ports"
	"github.com/protectedvision/backend/internal/infrastructure/textpattern"
)

// Rasterizer renders pdf pages to PNG for pages without a text layer.
type Rasterizer interface {
	RasterizePDF(ctx context.Context, doc io.Reader, dpi int) ([][]byte, error)
}

// PDF analyzes page by page. Pages with a text layer go through the
// text-pattern recognizer; scanned pages are rasterized and run through
// image analysis. Every finding carries its page number.
type PDF struct {
	storage ports.ObjectStorage
	image   *Image
	raster  Rasterizer
	dpi     int
	logger  *slog.Logger
}

func NewPDF(storage ports.ObjectStorage, image *Image, raster Rasterizer, dpi int, logger *slog.Logger) *PDF {
	if dpi < 72 {
		dpi = 150
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PDF{storage: storage, image: image, raster: raster, dpi: dpi, logger: logger}
}

func (a *PDF) Analyze(ctx context.Context, doc *domain.Document, models []domain.DetectionModel) (domain.Analysis, error) {
	raw, err := readBlob(ctx, a.storage, doc.StorageKey)
	if err != nil {
		return domain.Analysis{}, err
	}

	reader, err := pdfreader.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("parse pdf: %w", err)
	}

	var analysis domain.Analysis
	var rasterPages []int

	runPatterns := hasRecognizer(models)
	for p := 1; p <= reader.NumPage(); p++ {
		page := reader.Page(p)
		if page.V.IsNull() {
			rasterPages = append(rasterPages, p)
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			rasterPages = append(rasterPages, p)
			continue
		}
		if !runPatterns {
			continue
		}
		for _, match := range textpattern.Scan(text) {
			pageNum := p
			analysis.Findings = append(analysis.Findings, domain.Finding{
				Category:   match.Category,
				Confidence: match.Confidence,
				Region:     &domain.Region{Page: &pageNum},
				Count:      match.Count,
			})
		}
	}

	if len(rasterPages) == 0 {
		return analysis, nil
	}

	rasters, err := a.raster.RasterizePDF(ctx, bytes.NewReader(raw), a.dpi)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("rasterize pdf: %w", err)
	}

	for _, p := range rasterPages {
		if p > len(rasters) {
			a.logger.Warn("raster missing for pdf page", "document_id", doc.ID, "page", p)
			continue
		}
		pageAnalysis, err := a.image.AnalyzeBytes(ctx, rasters[p-1], "image/png", models)
		if err != nil {
			return domain.Analysis{}, fmt.Errorf("page %d: %w", p, err)
		}
		analysis.Discarded += pageAnalysis.Discarded

		for _, f := range pageAnalysis.Findings {
			pageNum := p
			if f.Region == nil {
				f.Region = &domain.Region{}
			}
			f.Region.Page = &pageNum
			analysis.Findings = append(analysis.Findings, f)
		}
	}
	return analysis, nil
}

func hasRecognizer(models []domain.DetectionModel) bool {
	for _, m := range models {
		if m.Kind == domain.ModelRecognizer {
			return true
		}
	}
	return false
}
