// Package analyzer implements the per-modality detection strategies.
// Each analyzer normalizes raw model output into findings, drops
// detections under the confidence threshold and merges duplicates that
// share a category and region.
package analyzer

import (
	"context"
	"fmt"
	"io"

	"github.com/protectedvision/backend/internal/core/domain"
	"github.com/protectedvision/backend/internal/core/ports"
	"github.com/protectedvision/backend/internal/infrastructure/inference"
)

// ModelClient is the slice of the inference client the analyzers use.
type ModelClient interface {
	Detect(ctx context.Context, model string, content []byte, contentType string) ([]inference.Detection, error)
}

var knownCategories = map[string]domain.Category{
	"pii":             domain.CategoryPII,
	"credit_card":     domain.CategoryCreditCard,
	"passport":        domain.CategoryPassport,
	"driver_license":  domain.CategoryDriverLicense,
	"bank_account":    domain.CategoryBankAccount,
	"social_security": domain.CategorySocialSecurity,
	"phone_number":    domain.CategoryPhoneNumber,
	"email":           domain.CategoryEmail,
	"address":         domain.CategoryAddress,
	"medical_record":  domain.CategoryMedicalRecord,
}

// mapCategory folds unknown model labels into the "other" bucket so the
// category enum stays closed.
func mapCategory(label string) domain.Category {
	if c, ok := knownCategories[label]; ok {
		return c
	}
	return domain.CategoryOther
}

// normalize converts raw detections into findings. Detections under the
// threshold are dropped and counted; duplicates with the same category
// and identical region merge into one finding with count > 1, keeping
// the highest confidence.
func normalize(detections []inference.Detection, threshold float64) ([]domain.Finding, int) {
	var findings []domain.Finding
	discarded := 0

	for _, det := range detections {
		if det.Confidence < threshold {
			discarded++
			continue
		}

		var region *domain.Region
		if det.Box != nil {
			region = &domain.Region{
				X:      det.Box.X,
				Y:      det.Box.Y,
				Width:  det.Box.Width,
				Height: det.Box.Height,
			}
		}
		category := mapCategory(det.Category)

		if i := findDuplicate(findings, category, region); i >= 0 {
			findings[i].Count++
			if det.Confidence > findings[i].Confidence {
				findings[i].Confidence = det.Confidence
			}
			continue
		}

		findings = append(findings, domain.Finding{
			Category:   category,
			Confidence: det.Confidence,
			Region:     region,
			Count:      1,
		})
	}
	return findings, discarded
}

func findDuplicate(findings []domain.Finding, category domain.Category, region *domain.Region) int {
	for i, f := range findings {
		if f.Category != category {
			continue
		}
		if sameRegion(f.Region, region) {
			return i
		}
	}
	return -1
}

func sameRegion(a, b *domain.Region) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.X != b.X || a.Y != b.Y || a.Width != b.Width || a.Height != b.Height {
		return false
	}
	return samePtr(a.Frame, b.Frame) && samePtr(a.Page, b.Page)
}

func samePtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
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
