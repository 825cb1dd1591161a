package analyzer

import (
	"context"
	"fmt"

	"github.com/protectedvision/backend/internal/core/domain"
	"github.com/protectedvision/backend/internal/core/ports"
)

// Image runs every model of the snapshot over the whole raster and
// merges the per-model outputs into one analysis.
type Image struct {
	storage   ports.ObjectStorage
	client    ModelClient
	threshold float64
}

func NewImage(storage ports.ObjectStorage, client ModelClient, threshold float64) *Image {
	return &Image{storage: storage, client: client, threshold: threshold}
}

func (a *Image) Analyze(ctx context.Context, doc *domain.Document, models []domain.DetectionModel) (domain.Analysis, error) {
	raw, err := readBlob(ctx, a.storage, doc.StorageKey)
	if err != nil {
		return domain.Analysis{}, err
	}
	return a.AnalyzeBytes(ctx, raw, doc.MimeType, models)
}

// AnalyzeBytes analyzes raster content directly. The video and pdf
// analyzers reuse it for sampled frames and rasterized pages.
func (a *Image) AnalyzeBytes(ctx context.Context, content []byte, contentType string, models []domain.DetectionModel) (domain.Analysis, error) {
	var analysis domain.Analysis

	for _, model := range models {
		detections, err := a.client.Detect(ctx, model.Name, content, contentType)
		if err != nil {
			return domain.Analysis{}, fmt.Errorf("model %s: %w", model.Name, err)
		}
		findings, discarded := normalize(detections, a.threshold)
		analysis.Discarded += discarded
		for _, f := range findings {
			if i := findDuplicate(analysis.Findings, f.Category, f.Region); i >= 0 {
				analysis.Findings[i].Count += f.Count
				if f.Confidence > analysis.Findings[i].Confidence {
					analysis.Findings[i].Confidence = f.Confidence
				}
				continue
			}
			analysis.Findings = append(analysis.Findings, f)
		}
	}
	return analysis, nil
}
