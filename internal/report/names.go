package report

import "strings"

// ScheduleFileName is the file name of the consolidated report.
const ScheduleFileName = "_APPLE_HEALTH_SCHEDULE.csv"

// metricNameRules maps raw type identifier prefixes to the display suffix
// appended after stripping. Checked in order, first match wins.
var metricNameRules = []struct {
	prefix string
	suffix string
}{
	{"HKQuantityTypeIdentifier", " (Quantity)"},
	{"HKCategoryTypeIdentifier", " (Category)"},
	{"HKDataTypeIdentifier", " (Data)"},
}

// CleanMetricName turns a raw export type identifier into the display name
// used for dataset files and report rows. Unknown identifiers pass through
// unchanged, which also makes the function idempotent: cleaning an already
// cleaned name is a no-op.
func CleanMetricName(raw string) string {
	for _, rule := range metricNameRules {
		if strings.HasPrefix(raw, rule.prefix) {
			return strings.TrimPrefix(raw, rule.prefix) + rule.suffix
		}
	}
	return raw
}

// DatasetFileName derives the CSV file name for a dataset from its display
// name by dropping the parenthesized category suffix.
func DatasetFileName(displayName string) string {
	base, _, _ := strings.Cut(displayName, " (")
	return base + ".csv"
}
