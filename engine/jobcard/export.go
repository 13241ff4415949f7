package jobcard

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "JobCards"

var exportHeaders = []string{"ID", "Registration", "Customer", "Phone", "Status", "Priority", "Created At"}

func exportRecord(r Row) []string {
	created := ""
	if !r.CreatedAt.IsZero() {
		created = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	return []string{r.ID, r.RegistrationNumber, r.CustomerName, r.CustomerPhone, string(r.Status), r.Priority, created}
}

// ExportCSV writes rows as CSV with a header line.
func ExportCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeaders); err != nil {
		return fmt.Errorf("jobcard: export csv: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(exportRecord(r)); err != nil {
			return fmt.Errorf("jobcard: export csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportXLSX writes rows as a single-sheet workbook with a bold header.
func ExportXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(exportSheet)
	if err != nil {
		return fmt.Errorf("jobcard: export xlsx: %w", err)
	}
	f.SetActiveSheet(idx)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("jobcard: export xlsx: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return fmt.Errorf("jobcard: export xlsx: %w", err)
		}
		f.SetCellStyle(exportSheet, cell, cell, headerStyle)
	}
	for ri, r := range rows {
		for ci, v := range exportRecord(r) {
			cell, _ := excelize.CoordinatesToCellName(ci+1, ri+2)
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return fmt.Errorf("jobcard: export xlsx: %w", err)
			}
		}
	}
	last, _ := excelize.ColumnNumberToName(len(exportHeaders))
	f.SetColWidth(exportSheet, "A", last, 18)
	f.DeleteSheet("Sheet1")

	if err := f.Write(w); err != nil {
		return fmt.Errorf("jobcard: export xlsx: %w", err)
	}
	return nil
}
