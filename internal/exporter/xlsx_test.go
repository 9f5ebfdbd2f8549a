package exporter

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mitchens84/APPLE-HEALTH/pkg/contracts/domain"
)

func TestWriteConsolidatedXLSX(t *testing.T) {
	e := NewDatasetExporter(testPaths(t))
	table := buildTable("Schedule", []string{"Dataset", "Records", "Value std"},
		domain.Row{domain.StringValue("StepCount (Quantity)"), domain.FloatValue(2), domain.FloatValue(0.5)},
		domain.Row{domain.StringValue("Height (Quantity)"), domain.FloatValue(1), domain.FloatValue(math.NaN())},
	)

	target := filepath.Join(t.TempDir(), "_APPLE_HEALTH_SCHEDULE.xlsx")
	require.NoError(t, e.WriteConsolidatedXLSX(table, target))

	f, err := excelize.OpenFile(target)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{scheduleSheet}, f.GetSheetList())

	rows, err := f.GetRows(scheduleSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Dataset", "Records", "Value std"}, rows[0])
	assert.Equal(t, []string{"StepCount (Quantity)", "2", "0.5"}, rows[1])
	// NaN leaves the cell empty; trailing empty cells are not returned.
	assert.Equal(t, []string{"Height (Quantity)", "1"}, rows[2])

	styleID, err := f.GetCellStyle(scheduleSheet, "A1")
	require.NoError(t, err)
	assert.NotZero(t, styleID, "header row carries a style")
}
