// Package exporter persists extracted health datasets and the consolidated
// schedule report.
//
// This package contains three main components:
//
// CSVWriter: Core CSV writing functionality with support for headers,
// streaming, and UTF-8 BOM for Excel compatibility.
//
// DatasetExporter: Writes per-metric dataset tables and the consolidated
// schedule in CSV and XLSX form.
//
// BuildArchive: Bundles the artifacts of one output directory into a zip
// stream for download.
//
// Example usage:
//
//	datasetExporter := exporter.NewDatasetExporter(paths)
//
//	// Persist one extracted dataset
//	size, err := datasetExporter.WriteTable(table, "out/StepCount.csv")
//
//	// Persist the consolidated schedule
//	err = datasetExporter.WriteConsolidated(reportTable, "out/_APPLE_HEALTH_SCHEDULE.csv")
package exporter
