// Package exporter writes flattened booking rows to an Excel workbook.
package exporter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/corkandcandles/bookingsync/internal/store"
)

const defaultSheetName = "Bookings"

// excelColumns fixes the column order and header labels of the sheet.
var excelColumns = []struct {
	Header string
	Value  func(store.Row) string
}{
	{"Booking #", func(r store.Row) string { return r.BookingNumber }},
	{"Start Time", func(r store.Row) string { return r.StartTime }},
	{"End Time", func(r store.Row) string { return r.EndTime }},
	{"Title", func(r store.Row) string { return r.Title }},
	{"Product", func(r store.Row) string { return r.ProductName }},
	{"Product ID", func(r store.Row) string { return r.ProductID }},
	{"Customer ID", func(r store.Row) string { return r.CustomerID }},
	{"Customer Name", func(r store.Row) string { return r.CustomerName }},
	{"Customer Email", func(r store.Row) string { return r.CustomerEmail }},
	{"Customer Phone", func(r store.Row) string { return r.CustomerPhone }},
	{"Canceled", func(r store.Row) string { return yesNo(r.Canceled) }},
	{"Cancelation Time", func(r store.Row) string { return r.CancelationTime }},
	{"Created", func(r store.Row) string { return r.CreationTime }},
	{"Created By", func(r store.Row) string { return r.CreationAgent }},
	{"Last Updated", func(r store.Row) string { return r.LastChangeTime }},
	{"Last Updated By", func(r store.Row) string { return r.LastChangeAgent }},
	{"Participants", func(r store.Row) string { return fmt.Sprintf("%d", r.TotalParticipants) }},
	{"Total (Gross)", func(r store.Row) string { return r.TotalGross }},
	{"Total (Net)", func(r store.Row) string { return r.TotalNet }},
	{"Total Paid", func(r store.Row) string { return r.TotalPaid }},
	{"Currency", func(r store.Row) string { return r.Currency }},
	{"External Ref", func(r store.Row) string { return r.ExternalRef }},
	{"Source", func(r store.Row) string { return r.Source }},
	{"No Show", func(r store.Row) string { return yesNo(r.NoShow) }},
	{"Resources", func(r store.Row) string { return r.Resources }},
	{"Options", func(r store.Row) string { return r.Options }},
}

// WriteExcel writes the rows to outputPath as a single-sheet workbook with
// a bold header row. Duplicate booking numbers collapse to their last
// occurrence. Returns the number of data rows written.
func WriteExcel(rows []store.Row, outputPath, sheetName string) (int, error) {
	if sheetName == "" {
		sheetName = defaultSheetName
	}
	// Excel caps sheet names at 31 characters.
	if len(sheetName) > 31 {
		sheetName = sheetName[:31]
	}
	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create output directory: %w", err)
		}
	}

	deduped := dedupeRows(rows)

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return 0, fmt.Errorf("rename sheet: %w", err)
	}

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, fmt.Errorf("create header style: %w", err)
	}

	for col, column := range excelColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return 0, err
		}
		if err := f.SetCellValue(sheetName, cell, column.Header); err != nil {
			return 0, fmt.Errorf("write header %q: %w", column.Header, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, boldStyle); err != nil {
			return 0, fmt.Errorf("style header %q: %w", column.Header, err)
		}
	}

	for i, row := range deduped {
		for col, column := range excelColumns {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return 0, err
			}
			if err := f.SetCellValue(sheetName, cell, column.Value(row)); err != nil {
				return 0, fmt.Errorf("write row %d: %w", i+1, err)
			}
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(excelColumns))
	if err != nil {
		return 0, err
	}
	if err := f.SetColWidth(sheetName, "A", lastCol, 14); err != nil {
		return 0, fmt.Errorf("set column widths: %w", err)
	}

	if err := f.SaveAs(outputPath); err != nil {
		return 0, fmt.Errorf("save workbook: %w", err)
	}
	return len(deduped), nil
}

// dedupeRows keeps the last occurrence per booking number while preserving
// first-seen order.
func dedupeRows(rows []store.Row) []store.Row {
	index := make(map[string]int, len(rows))
	out := make([]store.Row, 0, len(rows))
	for _, row := range rows {
		if pos, seen := index[row.BookingNumber]; seen {
			out[pos] = row
			continue
		}
		index[row.BookingNumber] = len(out)
		out = append(out, row)
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
