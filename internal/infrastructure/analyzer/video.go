package analyzer

import (
	"context"
	"fmt"
	"io"

	"github.com/protectedvision/backend/internal/core/domain"
	"github.com/protectedvision/backend/internal/core/ports"
	"github.com/protectedvision/backend/internal/infrastructure/media"
)

// FrameExtractor samples frames from a video stream.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, video io.Reader, step, maxFrames int) ([]media.Frame, error)
}

// Video samples frames and runs image analysis per frame. Findings keep
// their frame index; duplicates are never merged across frames because
// the same card shown in two frames is two instances.
type Video struct {
	storage   ports.ObjectStorage
	frames    FrameExtractor
	image     *Image
	step      int
	maxFrames int
}

func NewVideo(storage ports.ObjectStorage, frames FrameExtractor, image *Image, step, maxFrames int) *Video {
	if step < 1 {
		step = 30
	}
	if maxFrames < 1 {
		maxFrames = 120
	}
	return &Video{storage: storage, frames: frames, image: image, step: step, maxFrames: maxFrames}
}

func (a *Video) Analyze(ctx context.Context, doc *domain.Document, models []domain.DetectionModel) (domain.Analysis, error) {
	blob, err := a.storage.Open(ctx, doc.StorageKey)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("open artifact %s: %w", doc.StorageKey, err)
	}
	defer blob.Close()

	frames, err := a.frames.ExtractFrames(ctx, blob, a.step, a.maxFrames)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("extract frames: %w", err)
	}

	var analysis domain.Analysis
	for _, frame := range frames {
		frameAnalysis, err := a.image.AnalyzeBytes(ctx, frame.PNG, "image/png", models)
		if err != nil {
			return domain.Analysis{}, fmt.Errorf("frame %d: %w", frame.Index, err)
		}
		analysis.Discarded += frameAnalysis.Discarded

		for _, f := range frameAnalysis.Findings {
			index := frame.Index
			if f.Region == nil {
				f.Region = &domain.Region{}
			}
			f.Region.Frame = &index
			analysis.Findings = append(analysis.Findings, f)
		}
	}
	return analysis, nil
}
