package xlsxreport

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func TestWriteRendersHeaderAndRows(t *testing.T) {
	rows := []Row{
		{
			ScanID:        "scan-1",
			DocumentTitle: "Invoice",
			Modality:      "image",
			RiskLevel:     "high",
			Findings:      2,
			Instances:     3,
			Redacted:      true,
			DurationMS:    1500,
			CreatedAt:     time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC),
		},
		{
			ScanID:        "scan-2",
			DocumentTitle: "Clip",
			Modality:      "video",
			RiskLevel:     "low",
			Redacted:      false,
		},
	}

	buf := &bytes.Buffer{}
	if err := Write(buf, rows); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	cell := func(ref string) string {
		t.Helper()
		v, err := f.GetCellValue(sheet, ref)
		if err != nil {
			t.Fatalf("read %s: %v", ref, err)
		}
		return v
	}

	if cell("A1") != "Scan ID" || cell("D1") != "Risk" {
		t.Fatalf("unexpected header row: %q %q", cell("A1"), cell("D1"))
	}
	if cell("A2") != "scan-1" || cell("D2") != "high" || cell("G2") != "yes" {
		t.Fatalf("unexpected first row: %q %q %q", cell("A2"), cell("D2"), cell("G2"))
	}
	if cell("A3") != "scan-2" || cell("G3") != "no" {
		t.Fatalf("unexpected second row: %q %q", cell("A3"), cell("G3"))
	}
}

func TestWriteEmptyRows(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Write(buf, nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("workbook must still be written with only the header")
	}
}
