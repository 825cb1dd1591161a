// Package xlsxreport renders a user's scan history as a spreadsheet for
// the export endpoint.
package xlsxreport

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// Row is one scan in the export, already joined with its document.
type Row struct {
	ScanID        string
	DocumentTitle string
	Modality      string
	RiskLevel     string
	Findings      int
	Instances     int
	Redacted      bool
	DurationMS    int64
	CreatedAt     time.Time
}

const sheet = "Scans"

var headers = []string{
	"Scan ID", "Document", "Modality", "Risk", "Findings", "Instances", "Redacted", "Duration (ms)", "Created",
}

// Write renders the rows to an XLSX workbook.
func Write(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i, row := range rows {
		values := []any{
			row.ScanID,
			row.DocumentTitle,
			row.Modality,
			row.RiskLevel,
			row.Findings,
			row.Instances,
			boolWord(row.Redacted),
			row.DurationMS,
			row.CreatedAt.UTC().Format(time.RFC3339),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("row cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", i+1, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func boolWord(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
