// Package report aggregates extracted datasets into the consolidated
// schedule report.
//
// A Report collects one DatasetSummary per dataset, keyed by the cleaned
// display name and ordered by first insertion; re-recording a name replaces
// the entry without moving it. ConsolidatedTable renders the collection as
// the _APPLE_HEALTH_SCHEDULE table, with Value statistic columns present
// only when at least one dataset carries numeric statistics.
package report
