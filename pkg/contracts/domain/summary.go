package domain

import (
	"encoding/json"
	"math"
	"time"
)

// SampleStats summarizes the numeric value column of a dataset. Std is the
// sample standard deviation (n-1 denominator); with a single observation it
// is NaN and renders as an empty cell.
type SampleStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// MarshalJSON renders NaN statistics as null, which encoding/json otherwise
// refuses to encode.
func (s SampleStats) MarshalJSON() ([]byte, error) {
	fields := []struct {
		name  string
		value float64
	}{
		{"mean", s.Mean},
		{"median", s.Median},
		{"std", s.Std},
		{"min", s.Min},
		{"max", s.Max},
	}
	out := make(map[string]*float64, len(fields))
	for _, f := range fields {
		if math.IsNaN(f.value) {
			out[f.name] = nil
			continue
		}
		v := f.value
		out[f.name] = &v
	}
	return json.Marshal(out)
}

// DatasetSummary describes one recorded dataset for the consolidated report.
type DatasetSummary struct {
	Name        string            `json:"name"`
	RecordCount int               `json:"record_count"`
	StartDate   *time.Time        `json:"start_date,omitempty"`
	EndDate     *time.Time        `json:"end_date,omitempty"`
	FilePath    string            `json:"file_path"`
	FileSize    int64             `json:"file_size"`
	Columns     []string          `json:"columns"`
	ColumnTypes map[string]string `json:"column_types"`
	Stats       *SampleStats      `json:"stats,omitempty"`
}
