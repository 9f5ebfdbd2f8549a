package report

import (
	"math"
	"sort"

	"github.com/mitchens84/APPLE-HEALTH/pkg/contracts/domain"
)

// computeStats derives the descriptive statistics of a numeric value column.
// Null cells and NaN samples are excluded. A column with no usable samples
// still yields a stats object, with every field NaN, mirroring the behavior
// of aggregating an all-null numeric column.
func computeStats(cells []domain.Value) *domain.SampleStats {
	values := make([]float64, 0, len(cells))
	for _, cell := range cells {
		if cell.Kind != domain.KindFloat || math.IsNaN(cell.Num) {
			continue
		}
		values = append(values, cell.Num)
	}

	if len(values) == 0 {
		nan := math.NaN()
		return &domain.SampleStats{Mean: nan, Median: nan, Std: nan, Min: nan, Max: nan}
	}

	sort.Float64s(values)
	m := mean(values)
	return &domain.SampleStats{
		Mean:   m,
		Median: median(values),
		Std:    sampleStd(values, m),
		Min:    values[0],
		Max:    values[len(values)-1],
	}
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// median expects values to be sorted.
func median(values []float64) float64 {
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

// sampleStd is the sample standard deviation (n-1 denominator). A single
// sample has no spread to estimate and yields NaN.
func sampleStd(values []float64, mean float64) float64 {
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
