package domain

// ExportTimeLayout is the timestamp layout Apple Health exports use for
// startDate and endDate attributes.
const ExportTimeLayout = "2006-01-02 15:04:05 -0700"

// RecordColumns is the column order of extracted record datasets. Column
// names match the attribute names of a <Record> element.
var RecordColumns = []string{"startDate", "endDate", "value", "unit", "device", "sourceName"}

// WorkoutColumns is the column order of the workouts dataset.
var WorkoutColumns = []string{"workoutActivityType", "duration", "startDate", "endDate", "totalDistance", "totalEnergyBurned", "sourceName"}

// WorkoutMeasureColumns are the workout columns coerced to numbers value by
// value; unparseable entries become null cells.
var WorkoutMeasureColumns = []string{"duration", "totalDistance", "totalEnergyBurned"}

// Column names referenced by the coercion and reporting layers.
const (
	ValueColumn     = "value"
	StartDateColumn = "startDate"
	EndDateColumn   = "endDate"
)

// Record is one <Record> element read off the export stream. Cells follow
// RecordColumns and hold raw attribute text; attributes absent on the
// element are null cells.
type Record struct {
	Type  string
	Cells Row
}

// Workout is one <Workout> element read off the export stream. Cells follow
// WorkoutColumns.
type Workout struct {
	Cells Row
}
