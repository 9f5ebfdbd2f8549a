package healthdata

import (
	"strconv"
	"strings"
	"time"

	"github.com/mitchens84/APPLE-HEALTH/internal/observability"
	"github.com/mitchens84/APPLE-HEALTH/pkg/contracts/domain"
)

// exportTimeLayouts lists the timestamp layouts seen in export documents.
// The canonical layout carries a UTC offset; some older exports drop it.
var exportTimeLayouts = []string{
	domain.ExportTimeLayout,
	"2006-01-02 15:04:05",
}

// ParseExportTime parses a startDate or endDate attribute value. It returns
// ok=false for anything that is not a timestamp in the export's layout, so
// callers write a null cell instead of failing the dataset.
func ParseExportTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range exportTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumber parses a value attribute the way the dataset coercion does:
// surrounding whitespace is tolerated, anything else must be valid float
// syntax.
func parseNumber(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// CoerceNumericColumn attempts to convert a column of raw string cells to
// numbers. The conversion is all or nothing: if every non-null cell parses,
// it returns the numeric column and true; if any cell fails, it returns the
// input untouched and false and the column stays textual. Null cells pass
// through either way.
func CoerceNumericColumn(cells []domain.Value) ([]domain.Value, bool) {
	coerced := make([]domain.Value, len(cells))
	for i, cell := range cells {
		if cell.IsNull() {
			coerced[i] = cell
			continue
		}
		f, ok := parseNumber(cell.Str)
		if !ok {
			return cells, false
		}
		coerced[i] = domain.FloatValue(f)
	}
	return coerced, true
}

// CoerceNumericLenient converts a column of raw string cells to numbers one
// cell at a time. Cells that fail to parse become null; the column is always
// numeric afterwards.
func CoerceNumericLenient(cells []domain.Value) []domain.Value {
	coerced := make([]domain.Value, len(cells))
	for i, cell := range cells {
		if cell.IsNull() {
			coerced[i] = cell
			continue
		}
		f, ok := parseNumber(cell.Str)
		if !ok {
			coerced[i] = domain.NullValue()
			continue
		}
		coerced[i] = domain.FloatValue(f)
	}
	return coerced
}

// coerceTimeColumn rewrites the named column in place, parsing each cell
// with ParseExportTime and nulling the ones that fail. The column kind
// becomes time regardless; nulls mark the failures.
func coerceTimeColumn(t *domain.Table, name string) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return
	}

	for i := range t.Rows {
		cell := t.Rows[i][idx]
		if cell.IsNull() {
			continue
		}
		if ts, ok := ParseExportTime(cell.Str); ok {
			t.Rows[i][idx] = domain.TimeValue(ts)
		} else {
			t.Rows[i][idx] = domain.NullValue()
		}
	}
	t.Kinds[idx] = domain.KindTime
}

// coerceValueColumn applies the all-or-nothing numeric conversion to the
// value column and reports whether the column ended up numeric.
func coerceValueColumn(t *domain.Table) bool {
	idx := t.ColumnIndex(domain.ValueColumn)
	if idx < 0 {
		return false
	}

	coerced, ok := CoerceNumericColumn(t.Column(domain.ValueColumn))
	if !ok {
		observability.RecordCoercionFallback()
		return false
	}

	for i := range t.Rows {
		t.Rows[i][idx] = coerced[i]
	}
	t.Kinds[idx] = domain.KindFloat
	return true
}

// coerceMeasureColumn applies the lenient numeric conversion to one workout
// measure column.
func coerceMeasureColumn(t *domain.Table, name string) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return
	}

	coerced := CoerceNumericLenient(t.Column(name))
	for i := range t.Rows {
		t.Rows[i][idx] = coerced[i]
	}
	t.Kinds[idx] = domain.KindFloat
}

// applyRecordCoercion assigns the final column kinds of a record dataset
// after its traversal completed: both date columns parse cell by cell, the
// value column converts all or nothing, the remaining columns stay textual.
func applyRecordCoercion(t *domain.Table) (valueNumeric bool) {
	coerceTimeColumn(t, domain.StartDateColumn)
	coerceTimeColumn(t, domain.EndDateColumn)
	return coerceValueColumn(t)
}

// applyWorkoutCoercion assigns the final column kinds of the workouts
// dataset: measure columns convert leniently, date columns parse cell by
// cell, the remaining columns stay textual.
func applyWorkoutCoercion(t *domain.Table) {
	for _, name := range domain.WorkoutMeasureColumns {
		coerceMeasureColumn(t, name)
	}
	coerceTimeColumn(t, domain.StartDateColumn)
	coerceTimeColumn(t, domain.EndDateColumn)
}
