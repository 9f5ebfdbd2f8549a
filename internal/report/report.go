package report

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mitchens84/APPLE-HEALTH/internal/observability"
	"github.com/mitchens84/APPLE-HEALTH/pkg/contracts/domain"
)

var (
	consolidatedBaseColumns = []string{
		"Dataset", "Records", "Start Date", "End Date", "File", "Size (KB)", "Columns",
	}
	consolidatedStatColumns = []string{
		"Value mean", "Value median", "Value std", "Value min", "Value max",
	}
)

// Report accumulates one DatasetSummary per extracted dataset, keyed by the
// cleaned display name and ordered by first insertion. Re-recording a name
// overwrites the entry in place without moving it. Recording is locked so
// parallel extraction workers can feed a single report.
type Report struct {
	mu      sync.Mutex
	order   []string
	entries map[string]*domain.DatasetSummary
	logger  *slog.Logger
}

// New creates an empty report.
func New(logger *slog.Logger) *Report {
	if logger == nil {
		logger = slog.Default()
	}
	return &Report{
		entries: make(map[string]*domain.DatasetSummary),
		logger:  logger,
	}
}

// Reserve pins the cleaned form of rawName to the next slot in the report
// order without recording a summary. Parallel extraction completes in an
// arbitrary order; reserving every name up front keeps the consolidated rows
// in selection order. A reserved name whose summary never arrives is left
// out of the rendered report.
func (r *Report) Reserve(rawName string) {
	name := CleanMetricName(rawName)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
		r.entries[name] = nil
	}
}

// RecordDataset registers an extracted dataset under the cleaned form of
// rawName and returns the summary it built. filePath and fileSize describe
// the artifact the dataset was persisted to; they are carried through to the
// consolidated report untouched.
func (r *Report) RecordDataset(ctx context.Context, rawName string, table *domain.Table, filePath string, fileSize int64) *domain.DatasetSummary {
	name := CleanMetricName(rawName)
	summary := r.buildSummary(ctx, name, table, filePath, fileSize)

	r.mu.Lock()
	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	}
	r.entries[name] = summary
	r.mu.Unlock()

	observability.RecordDatasetRecorded()
	r.logger.InfoContext(ctx, "dataset recorded",
		slog.String("dataset", name),
		slog.Int("records", summary.RecordCount),
		slog.Bool("has_stats", summary.Stats != nil))
	return summary
}

func (r *Report) buildSummary(ctx context.Context, name string, table *domain.Table, filePath string, fileSize int64) *domain.DatasetSummary {
	summary := &domain.DatasetSummary{
		Name:        name,
		RecordCount: table.RowCount(),
		FilePath:    filePath,
		FileSize:    fileSize,
		Columns:     table.Columns,
		ColumnTypes: table.ColumnTypes(),
	}
	summary.StartDate, summary.EndDate = dateRange(table)

	if idx := table.ColumnIndex(domain.ValueColumn); idx >= 0 {
		switch {
		case table.Kinds[idx] != domain.KindFloat:
			r.logger.DebugContext(ctx, "statistics skipped, value column not numeric",
				slog.String("dataset", name))
		case table.RowCount() > 0:
			summary.Stats = computeStats(table.Column(domain.ValueColumn))
		}
	}
	return summary
}

// dateRange returns the earliest and latest non-null start timestamps, or
// nils when the column is absent or entirely null.
func dateRange(table *domain.Table) (*time.Time, *time.Time) {
	idx := table.ColumnIndex(domain.StartDateColumn)
	if idx < 0 {
		return nil, nil
	}

	var first, last *time.Time
	for i := range table.Rows {
		cell := table.Rows[i][idx]
		if cell.Kind != domain.KindTime {
			continue
		}
		t := cell.Time
		if first == nil || t.Before(*first) {
			tt := t
			first = &tt
		}
		if last == nil || t.After(*last) {
			tt := t
			last = &tt
		}
	}
	return first, last
}

// Len returns the number of recorded datasets. Reserved slots without a
// summary do not count.
func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, summary := range r.entries {
		if summary != nil {
			n++
		}
	}
	return n
}

// Get returns a copy of the summary recorded under the cleaned display name.
func (r *Report) Get(name string) (domain.DatasetSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	summary, ok := r.entries[name]
	if !ok || summary == nil {
		return domain.DatasetSummary{}, false
	}
	return *summary, true
}

// Summaries returns copies of the recorded summaries in insertion order.
func (r *Report) Summaries() []domain.DatasetSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.DatasetSummary, 0, len(r.order))
	for _, name := range r.order {
		if summary := r.entries[name]; summary != nil {
			out = append(out, *summary)
		}
	}
	return out
}

// ConsolidatedTable renders the report as a table, one row per dataset in
// insertion order. The fixed columns are followed by the Value statistic
// columns when at least one dataset carries statistics; datasets without
// statistics leave those cells null.
func (r *Report) ConsolidatedTable() *domain.Table {
	r.mu.Lock()
	defer r.mu.Unlock()

	hasStats := false
	for _, name := range r.order {
		if s := r.entries[name]; s != nil && s.Stats != nil {
			hasStats = true
			break
		}
	}

	columns := consolidatedBaseColumns
	if hasStats {
		columns = append(append([]string{}, consolidatedBaseColumns...), consolidatedStatColumns...)
	}

	table := domain.NewTable("Schedule", columns)
	table.Kinds[1] = domain.KindFloat
	table.Kinds[2] = domain.KindTime
	table.Kinds[3] = domain.KindTime
	table.Kinds[5] = domain.KindFloat
	for i := len(consolidatedBaseColumns); i < len(columns); i++ {
		table.Kinds[i] = domain.KindFloat
	}

	for _, name := range r.order {
		s := r.entries[name]
		if s == nil {
			continue
		}
		row := domain.Row{
			domain.StringValue(s.Name),
			domain.FloatValue(float64(s.RecordCount)),
			timeCell(s.StartDate),
			timeCell(s.EndDate),
			domain.StringValue(s.FilePath),
			domain.FloatValue(float64(s.FileSize) / 1024),
			domain.StringValue(strings.Join(s.Columns, "; ")),
		}
		if hasStats {
			row = append(row, statCells(s.Stats)...)
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func timeCell(t *time.Time) domain.Value {
	if t == nil {
		return domain.NullValue()
	}
	return domain.TimeValue(*t)
}

func statCells(stats *domain.SampleStats) []domain.Value {
	if stats == nil {
		null := domain.NullValue()
		return []domain.Value{null, null, null, null, null}
	}
	return []domain.Value{
		domain.FloatValue(stats.Mean),
		domain.FloatValue(stats.Median),
		domain.FloatValue(stats.Std),
		domain.FloatValue(stats.Min),
		domain.FloatValue(stats.Max),
	}
}
