package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/protectedvision/backend/internal/core/domain"
	"github.com/protectedvision/backend/internal/infrastructure/inference"
)

type rasterizerFake struct {
	rasters [][]byte
	dpi     int
	calls   int
	err     error
}

func (f *rasterizerFake) RasterizePDF(_ context.Context, _ io.Reader, dpi int) ([][]byte, error) {
	f.calls++
	f.dpi = dpi
	if f.err != nil {
		return nil, f.err
	}
	return f.rasters, nil
}

// twoPagePDF assembles a minimal document: page one carries a text
// layer with the given string, page two has an empty content stream and
// therefore no extractable text. Object offsets are tracked while
// writing so the xref table is valid.
func twoPagePDF(t *testing.T, pageOneText string) []byte {
	t.Helper()

	var buf bytes.Buffer
	var offsets []int
	addObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	addObj("<</Type/Catalog/Pages 2 0 R>>")
	addObj("<</Type/Pages/Kids[3 0 R 5 0 R]/Count 2>>")
	addObj("<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]/Resources<</Font<</F1 4 0 R>>>>/Contents 6 0 R>>")
	addObj("<</Type/Font/Subtype/Type1/BaseFont/Helvetica/Encoding/WinAnsiEncoding>>")
	addObj("<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]/Contents 7 0 R>>")
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", pageOneText)
	addObj(fmt.Sprintf("<</Length %d>>\nstream\n%s\nendstream", len(content), content))
	addObj("<</Length 0>>\nstream\n\nendstream")

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<</Size %d/Root 1 0 R>>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefOffset)
	return buf.Bytes()
}

func pdfDoc(store *blobStoreFake, raw []byte) *domain.Document {
	store.blobs["documents/doc-1_statement.pdf"] = raw
	return &domain.Document{
		ID:         "doc-1",
		Modality:   domain.ModalityPDF,
		MimeType:   "application/pdf",
		StorageKey: "documents/doc-1_statement.pdf",
	}
}

func TestPDFAnalyzeRoutesTextAndRasterPages(t *testing.T) {
	store := newBlobStoreFake()
	doc := pdfDoc(store, twoPagePDF(t, "Contact billing at test@example.com today"))

	client := &modelClientFake{byModel: map[string][]inference.Detection{
		"doc-detector": {
			{Category: "passport", Confidence: 0.9, Box: &inference.Box{X: 5, Y: 6, Width: 40, Height: 20}},
			{Category: "email", Confidence: 0.2},
		},
	}}
	raster := &rasterizerFake{rasters: [][]byte{[]byte("page-1-png"), []byte("page-2-png")}}
	a := NewPDF(store, NewImage(store, client, 0.5), raster, 0, nil)

	analysis, err := a.Analyze(context.Background(), doc, testModels)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	var email, passport *domain.Finding
	for i := range analysis.Findings {
		switch analysis.Findings[i].Category {
		case domain.CategoryEmail:
			email = &analysis.Findings[i]
		case domain.CategoryPassport:
			passport = &analysis.Findings[i]
		}
	}

	if email == nil {
		t.Fatalf("text-layer email was not found: %+v", analysis.Findings)
	}
	if email.Region == nil || email.Region.Page == nil || *email.Region.Page != 1 {
		t.Fatalf("text finding must carry page 1, got %+v", email.Region)
	}
	if email.Region.Width != 0 || email.Region.Height != 0 {
		t.Fatalf("text finding must carry no pixel box, got %+v", email.Region)
	}

	if passport == nil {
		t.Fatalf("raster-page detection was not found: %+v", analysis.Findings)
	}
	if passport.Region == nil || passport.Region.Page == nil || *passport.Region.Page != 2 {
		t.Fatalf("raster finding must carry page 2, got %+v", passport.Region)
	}
	if passport.Region.Width != 40 {
		t.Fatalf("raster finding must keep its box, got %+v", passport.Region)
	}

	if analysis.Discarded != 1 {
		t.Fatalf("discarded = %d, want the below-threshold raster detection", analysis.Discarded)
	}
	if raster.calls != 1 {
		t.Fatalf("rasterizer calls = %d, want exactly one for the whole document", raster.calls)
	}
	if raster.dpi != 150 {
		t.Fatalf("dpi = %d, want the 150 default", raster.dpi)
	}
}

func TestPDFAnalyzeSkipsTextPatternsWithoutRecognizer(t *testing.T) {
	store := newBlobStoreFake()
	doc := pdfDoc(store, twoPagePDF(t, "Reach me at test@example.com"))

	client := &modelClientFake{byModel: map[string][]inference.Detection{}}
	raster := &rasterizerFake{rasters: [][]byte{[]byte("page-1-png"), []byte("page-2-png")}}
	a := NewPDF(store, NewImage(store, client, 0.5), raster, 0, nil)

	analysis, err := a.Analyze(context.Background(), doc, testModels[:1])
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(analysis.Findings) != 0 {
		t.Fatalf("without a recognizer in the snapshot no text findings must surface, got %+v", analysis.Findings)
	}
	if raster.calls != 1 {
		t.Fatalf("the textless page must still be rasterized")
	}
}

func TestPDFAnalyzeToleratesMissingRaster(t *testing.T) {
	store := newBlobStoreFake()
	doc := pdfDoc(store, twoPagePDF(t, "Nothing sensitive here"))

	client := &modelClientFake{byModel: map[string][]inference.Detection{}}
	raster := &rasterizerFake{rasters: [][]byte{[]byte("page-1-png")}}
	a := NewPDF(store, NewImage(store, client, 0.5), raster, 0, nil)

	analysis, err := a.Analyze(context.Background(), doc, testModels)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	for _, f := range analysis.Findings {
		if f.Region != nil && f.Region.Page != nil && *f.Region.Page == 2 {
			t.Fatalf("page 2 has no raster and must yield no findings: %+v", f)
		}
	}
}
