package exporter

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/mitchens84/APPLE-HEALTH/pkg/contracts/domain"
)

const scheduleSheet = "Schedule"

// WriteConsolidatedXLSX writes the consolidated schedule table as an Excel
// workbook with a bold header row. Numeric cells stay numeric so the sheet
// sorts and filters properly.
func (e *DatasetExporter) WriteConsolidatedXLSX(table *domain.Table, filePath string) error {
	fullPath := e.csvWriter.resolvePath(filePath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(scheduleSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}

	header := make([]interface{}, len(table.Columns))
	for i, name := range table.Columns {
		header[i] = name
	}
	if err := f.SetSheetRow(scheduleSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	styleID, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	lastHeaderCell, err := excelize.CoordinatesToCellName(len(table.Columns), 1)
	if err != nil {
		return fmt.Errorf("failed to locate header range: %w", err)
	}
	if err := f.SetCellStyle(scheduleSheet, "A1", lastHeaderCell, styleID); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}

	for i := range table.Rows {
		cells := make([]interface{}, len(table.Rows[i]))
		for j, cell := range table.Rows[i] {
			cells[j] = sheetCell(cell)
		}
		if err := f.SetSheetRow(scheduleSheet, fmt.Sprintf("A%d", i+2), &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if err := f.SaveAs(fullPath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// sheetCell maps a table cell to its spreadsheet representation. Nulls and
// NaN leave the cell empty; timestamps keep their textual form.
func sheetCell(v domain.Value) interface{} {
	switch v.Kind {
	case domain.KindFloat:
		if math.IsNaN(v.Num) {
			return nil
		}
		return v.Num
	case domain.KindNull:
		return nil
	default:
		return v.String()
	}
}
