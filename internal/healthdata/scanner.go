package healthdata

import (
	"bufio"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"log/slog"
	"os"
	"sort"

	apperrors "github.com/mitchens84/APPLE-HEALTH/internal/errors"
	"github.com/mitchens84/APPLE-HEALTH/internal/observability"
	"github.com/mitchens84/APPLE-HEALTH/pkg/contracts/domain"
)

const (
	elemRecord  = "Record"
	elemWorkout = "Workout"
	attrType    = "type"

	// WorkoutsDatasetName is the name of the dataset produced by
	// ExtractWorkouts. Workouts are not keyed by a record type, so the
	// dataset carries a fixed name.
	WorkoutsDatasetName = "Workouts"

	readBufferSize = 256 << 10
)

var (
	recordColumnIndex  = indexColumns(domain.RecordColumns)
	workoutColumnIndex = indexColumns(domain.WorkoutColumns)
)

func indexColumns(columns []string) map[string]int {
	idx := make(map[string]int, len(columns))
	for i, name := range columns {
		idx[name] = i
	}
	return idx
}

// Processor streams Record and Workout elements out of a single Apple Health
// export document. Each operation runs one full pass over the file and never
// materializes the document tree, so memory stays proportional to the matched
// rows rather than the export size.
type Processor struct {
	exportPath string
	logger     *slog.Logger
}

// NewProcessor creates a Processor for the export file at path.
func NewProcessor(path string, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		exportPath: path,
		logger:     logger,
	}
}

// Path returns the export file the processor reads from.
func (p *Processor) Path() string {
	return p.exportPath
}

// scan runs one streaming pass over the export, invoking the callbacks for
// every Record and Workout element. Attributes are read off the start tag and
// the rest of the element is skipped, so metadata children are never kept.
// Any failure discards the pass: callers must not use partial results.
func (p *Processor) scan(onRecord func(domain.Record), onWorkout func(domain.Workout)) (recordCount, workoutCount int, err error) {
	f, err := os.Open(p.exportPath)
	if err != nil {
		return 0, 0, apperrors.NewSourceUnreadableError(p.exportPath, err)
	}
	defer f.Close()

	decoder := xml.NewDecoder(bufio.NewReaderSize(f, readBufferSize))
	sawElement := false
	for {
		tok, tokErr := decoder.Token()
		if tokErr == io.EOF {
			if !sawElement {
				return 0, 0, apperrors.NewMalformedSourceError(p.exportPath, errors.New("no root element"))
			}
			return recordCount, workoutCount, nil
		}
		if tokErr != nil {
			return 0, 0, p.classifyStreamError(tokErr)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawElement = true

		switch start.Name.Local {
		case elemRecord:
			recordCount++
			if onRecord != nil {
				onRecord(recordFromElement(start))
			}
		case elemWorkout:
			workoutCount++
			if onWorkout != nil {
				onWorkout(workoutFromElement(start))
			}
		default:
			continue
		}

		if err := decoder.Skip(); err != nil {
			return 0, 0, p.classifyStreamError(err)
		}
	}
}

// classifyStreamError separates parse failures from read failures. Both
// discard the traversal, but they surface as different error types.
func (p *Processor) classifyStreamError(err error) error {
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		return apperrors.NewMalformedSourceError(p.exportPath, err)
	}
	return apperrors.NewSourceUnreadableError(p.exportPath, err)
}

// recordFromElement builds a Record from the attributes of a Record start
// tag. Attributes that are absent stay null; present attributes become
// string cells even when empty.
func recordFromElement(start xml.StartElement) domain.Record {
	rec := domain.Record{Cells: nullRow(len(domain.RecordColumns))}
	for _, attr := range start.Attr {
		if attr.Name.Local == attrType {
			rec.Type = attr.Value
			continue
		}
		if idx, ok := recordColumnIndex[attr.Name.Local]; ok {
			rec.Cells[idx] = domain.StringValue(attr.Value)
		}
	}
	return rec
}

// workoutFromElement builds a Workout from the attributes of a Workout start
// tag, with the same null semantics as recordFromElement.
func workoutFromElement(start xml.StartElement) domain.Workout {
	w := domain.Workout{Cells: nullRow(len(domain.WorkoutColumns))}
	for _, attr := range start.Attr {
		if idx, ok := workoutColumnIndex[attr.Name.Local]; ok {
			w.Cells[idx] = domain.StringValue(attr.Value)
		}
	}
	return w
}

func nullRow(n int) domain.Row {
	row := make(domain.Row, n)
	for i := range row {
		row[i] = domain.NullValue()
	}
	return row
}

// ListTypes returns the distinct record types present in the export, sorted
// lexicographically. Records without a type attribute are not listed.
func (p *Processor) ListTypes(ctx context.Context) ([]string, error) {
	p.logger.InfoContext(ctx, "listing record types",
		slog.String("path", p.exportPath))

	seen := make(map[string]struct{})
	records, workouts, err := p.scan(func(rec domain.Record) {
		if rec.Type != "" {
			seen[rec.Type] = struct{}{}
		}
	}, nil)
	if err != nil {
		return nil, err
	}

	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)

	observability.AddElementsScanned("record", records)
	observability.AddElementsScanned("workout", workouts)
	observability.RecordTraversal("list_types")

	p.logger.InfoContext(ctx, "record types listed",
		slog.Int("types", len(types)),
		slog.Int("records_scanned", records))
	return types, nil
}

// ExtractByType collects every record whose type attribute equals recordType,
// in document order, and returns them as a dataset with the fixed record
// columns. A type that never occurs yields an empty dataset, not an error.
// After the traversal the date columns are parsed and the value column is
// converted to numbers if every present value allows it.
func (p *Processor) ExtractByType(ctx context.Context, recordType string) (*domain.Table, error) {
	p.logger.InfoContext(ctx, "extracting records",
		slog.String("record_type", recordType),
		slog.String("path", p.exportPath))

	table := domain.NewTable(recordType, domain.RecordColumns)
	records, _, err := p.scan(func(rec domain.Record) {
		if rec.Type != recordType {
			return
		}
		table.Rows = append(table.Rows, rec.Cells)
	}, nil)
	if err != nil {
		return nil, err
	}

	valueNumeric := applyRecordCoercion(table)

	observability.AddElementsScanned("record", records)
	observability.RecordTraversal("extract_records")

	p.logger.InfoContext(ctx, "records extracted",
		slog.String("record_type", recordType),
		slog.Int("rows", table.RowCount()),
		slog.Int("records_scanned", records),
		slog.Bool("value_numeric", valueNumeric))
	return table, nil
}

// ExtractWorkouts collects every workout in document order into the Workouts
// dataset. The duration, distance and energy columns convert to numbers cell
// by cell, with unparseable cells nulled.
func (p *Processor) ExtractWorkouts(ctx context.Context) (*domain.Table, error) {
	p.logger.InfoContext(ctx, "extracting workouts",
		slog.String("path", p.exportPath))

	table := domain.NewTable(WorkoutsDatasetName, domain.WorkoutColumns)
	_, workouts, err := p.scan(nil, func(w domain.Workout) {
		table.Rows = append(table.Rows, w.Cells)
	})
	if err != nil {
		return nil, err
	}

	applyWorkoutCoercion(table)

	observability.AddElementsScanned("workout", workouts)
	observability.RecordTraversal("extract_workouts")

	p.logger.InfoContext(ctx, "workouts extracted",
		slog.Int("rows", table.RowCount()))
	return table, nil
}
