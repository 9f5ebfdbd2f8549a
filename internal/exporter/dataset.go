package exporter

import (
	"fmt"
	"os"

	"github.com/mitchens84/APPLE-HEALTH/internal/config"
	"github.com/mitchens84/APPLE-HEALTH/pkg/contracts/domain"
)

// DatasetExporter persists extracted dataset tables and the consolidated
// schedule report
type DatasetExporter struct {
	csvWriter *CSVWriter
}

// NewDatasetExporter creates a new dataset exporter
func NewDatasetExporter(paths *config.Paths) *DatasetExporter {
	return &DatasetExporter{
		csvWriter: NewCSVWriter(paths),
	}
}

// WriteTable streams a dataset table to a CSV file row by row, in table
// order, and returns the byte size of the written file.
func (e *DatasetExporter) WriteTable(table *domain.Table, filePath string) (int64, error) {
	stream, err := e.csvWriter.CreateStreamWriter(filePath, table.Columns)
	if err != nil {
		return 0, err
	}

	for i := range table.Rows {
		if err := stream.WriteRecord(rowStrings(table.Rows[i])); err != nil {
			stream.Close()
			return 0, fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	if err := stream.Close(); err != nil {
		return 0, err
	}

	info, err := os.Stat(e.csvWriter.resolvePath(filePath))
	if err != nil {
		return 0, fmt.Errorf("failed to stat written file: %w", err)
	}
	return info.Size(), nil
}

// WriteConsolidated writes the consolidated schedule table as CSV.
func (e *DatasetExporter) WriteConsolidated(table *domain.Table, filePath string) error {
	return e.csvWriter.WriteCSV(filePath, WriteOptions{
		Headers:   table.Columns,
		Records:   TableRecords(table),
		BOMPrefix: true,
	})
}

// TableRecords converts a table's rows to their CSV string form. Null cells
// and NaN numbers render as empty strings.
func TableRecords(table *domain.Table) [][]string {
	records := make([][]string, 0, len(table.Rows))
	for i := range table.Rows {
		records = append(records, rowStrings(table.Rows[i]))
	}
	return records
}

func rowStrings(row domain.Row) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = cell.String()
	}
	return out
}
