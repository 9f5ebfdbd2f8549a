package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchens84/APPLE-HEALTH/internal/config"
	apperrors "github.com/mitchens84/APPLE-HEALTH/internal/errors"
	"github.com/mitchens84/APPLE-HEALTH/internal/report"
)

const sampleExport = `<?xml version="1.0" encoding="UTF-8"?>
<HealthData locale="en_US">
 <Record type="HKQuantityTypeIdentifierStepCount" sourceName="Watch" unit="count" startDate="2024-01-02 08:00:00 +0700" endDate="2024-01-02 08:10:00 +0700" value="312"/>
 <Record type="HKQuantityTypeIdentifierStepCount" sourceName="Watch" unit="count" startDate="2024-01-03 08:00:00 +0700" endDate="2024-01-03 08:10:00 +0700" value="450"/>
 <Record type="HKCategoryTypeIdentifierSleepAnalysis" sourceName="Phone" startDate="2024-01-02 22:00:00 +0700" endDate="2024-01-03 06:00:00 +0700" value="HKCategoryValueSleepAnalysisAsleep"/>
 <Workout workoutActivityType="HKWorkoutActivityTypeRunning" duration="42.5" startDate="2024-01-04 06:00:00 +0700" endDate="2024-01-04 06:45:00 +0700" totalDistance="7.2" totalEnergyBurned="512" sourceName="Watch"/>
</HealthData>
`

type sinkEvent struct {
	messageType string
	data        map[string]interface{}
}

// captureSink records broadcast events so tests can assert on the stream.
type captureSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (s *captureSink) Broadcast(messageType string, data interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, _ := data.(map[string]interface{})
	s.events = append(s.events, sinkEvent{messageType: messageType, data: payload})
}

func (s *captureSink) messageTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, len(s.events))
	for i, e := range s.events {
		types[i] = e.messageType
	}
	return types
}

func newTestHarness(t *testing.T, sink ProgressSink) (*ProcessingService, *Session, *config.Config) {
	t.Helper()

	base := t.TempDir()
	paths := &config.Paths{
		ExecutableDir: base,
		DataDir:       filepath.Join(base, "data"),
		UploadsDir:    filepath.Join(base, "data", "uploads"),
		ReportsDir:    filepath.Join(base, "data", "reports"),
		LogsDir:       filepath.Join(base, "logs"),
	}

	manager := NewSessionManager(filepath.Join(base, "sessions"), testLogger())
	sess, err := manager.Create(context.Background(), strings.NewReader(sampleExport))
	require.NoError(t, err)

	cfg := config.Default()
	svc := NewProcessingService(cfg, paths, sink, testLogger())
	return svc, sess, cfg
}

func TestProcessingService_ListTypes(t *testing.T) {
	svc, sess, _ := newTestHarness(t, nil)

	types, err := svc.ListTypes(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"HKCategoryTypeIdentifierSleepAnalysis",
		"HKQuantityTypeIdentifierStepCount",
	}, types)
}

func TestProcessingService_ExtractDataset(t *testing.T) {
	svc, sess, _ := newTestHarness(t, nil)

	summary, err := svc.ExtractDataset(context.Background(), sess, "HKQuantityTypeIdentifierStepCount")
	require.NoError(t, err)

	assert.Equal(t, "StepCount (Quantity)", summary.Name)
	assert.Equal(t, 2, summary.RecordCount)
	require.NotNil(t, summary.Stats)
	assert.InDelta(t, 381.0, summary.Stats.Mean, 1e-9)
	assert.Equal(t, filepath.Join(sess.OutputDir, "StepCount.csv"), summary.FilePath)
	assert.Greater(t, summary.FileSize, int64(0))

	data, err := os.ReadFile(summary.FilePath)
	require.NoError(t, err)
	content := strings.TrimPrefix(string(data), "\xef\xbb\xbf")
	assert.True(t, strings.HasPrefix(content, "startDate,endDate,value,unit,device,sourceName\n"))
	assert.Contains(t, content, "312")

	assert.Equal(t, 1, sess.Report.Len())
}

func TestProcessingService_ExtractWorkouts(t *testing.T) {
	svc, sess, _ := newTestHarness(t, nil)

	summary, err := svc.ExtractWorkouts(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, "Workouts", summary.Name)
	assert.Equal(t, 1, summary.RecordCount)
	assert.Nil(t, summary.Stats)
	assert.Equal(t, filepath.Join(sess.OutputDir, "Workouts.csv"), summary.FilePath)
}

func TestProcessingService_ProcessAll(t *testing.T) {
	sink := &captureSink{}
	svc, sess, _ := newTestHarness(t, sink)

	types := []string{
		"HKQuantityTypeIdentifierStepCount",
		"HKCategoryTypeIdentifierSleepAnalysis",
	}
	result, err := svc.ProcessAll(context.Background(), sess, types, true)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, result.Datasets, 3)
	assert.Equal(t, "StepCount (Quantity)", result.Datasets[0].Name)
	assert.Equal(t, "SleepAnalysis (Category)", result.Datasets[1].Name)
	assert.Equal(t, "Workouts", result.Datasets[2].Name)
	assert.Equal(t, filepath.Join(sess.OutputDir, report.ScheduleFileName), result.ReportPath)
	assert.GreaterOrEqual(t, result.ElapsedSeconds, 0.0)

	data, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	content := strings.TrimPrefix(string(data), "\xef\xbb\xbf")
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "Dataset,Records,Start Date,End Date,File,Size (KB),Columns"))
	assert.True(t, strings.HasPrefix(lines[1], "StepCount (Quantity),2,"))

	msgTypes := sink.messageTypes()
	require.NotEmpty(t, msgTypes)
	assert.Equal(t, "processing_started", msgTypes[0])
	assert.Equal(t, "processing_complete", msgTypes[len(msgTypes)-1])
	progress := 0
	for _, mt := range msgTypes {
		if mt == "processing_progress" {
			progress++
		}
	}
	assert.Equal(t, 3, progress)
}

func TestProcessingService_ProcessAllParallelKeepsReportOrder(t *testing.T) {
	base := t.TempDir()
	paths := &config.Paths{
		ExecutableDir: base,
		DataDir:       filepath.Join(base, "data"),
		UploadsDir:    filepath.Join(base, "data", "uploads"),
		ReportsDir:    filepath.Join(base, "data", "reports"),
		LogsDir:       filepath.Join(base, "logs"),
	}

	// Varying row counts per type so workers finish out of order.
	var sb strings.Builder
	sb.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<HealthData locale=\"en_US\">\n")
	types := make([]string, 12)
	for i := range types {
		types[i] = fmt.Sprintf("HKQuantityTypeIdentifierMetric%02d", i)
		rows := 1 + (i*7)%11
		for r := 0; r < rows; r++ {
			fmt.Fprintf(&sb, " <Record type=%q sourceName=\"Watch\" unit=\"count\" startDate=\"2024-01-%02d 08:00:00 +0700\" endDate=\"2024-01-%02d 08:10:00 +0700\" value=\"%d\"/>\n",
				types[i], r+1, r+1, 100+r)
		}
	}
	sb.WriteString("</HealthData>\n")

	manager := NewSessionManager(filepath.Join(base, "sessions"), testLogger())
	sess, err := manager.Create(context.Background(), strings.NewReader(sb.String()))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Processing.Workers = 8
	svc := NewProcessingService(cfg, paths, nil, testLogger())

	result, err := svc.ProcessAll(context.Background(), sess, types, false)
	require.NoError(t, err)
	require.Equal(t, len(types), result.Processed)

	want := make([]string, len(types))
	for i, raw := range types {
		want[i] = report.CleanMetricName(raw)
	}

	summaries := sess.Report.Summaries()
	require.Len(t, summaries, len(types))
	got := make([]string, len(summaries))
	for i, s := range summaries {
		got[i] = s.Name
	}
	assert.Equal(t, want, got, "consolidated rows follow selection order, not completion order")

	data, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	content := strings.TrimPrefix(string(data), "\xef\xbb\xbf")
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, len(types)+1)
	for i, name := range want {
		assert.True(t, strings.HasPrefix(lines[i+1], name+","), "row %d is %q", i+1, lines[i+1])
	}
}

func TestProcessingService_ProcessAllContinuesAfterFailure(t *testing.T) {
	sink := &captureSink{}
	svc, sess, _ := newTestHarness(t, sink)

	// A directory squatting on the target path makes this dataset's write fail
	require.NoError(t, os.MkdirAll(filepath.Join(sess.OutputDir, "StepCount.csv"), 0755))

	types := []string{
		"HKQuantityTypeIdentifierStepCount",
		"HKCategoryTypeIdentifierSleepAnalysis",
	}
	result, err := svc.ProcessAll(context.Background(), sess, types, true)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Datasets, 3)
	assert.NotEmpty(t, result.Datasets[0].Error)
	assert.Nil(t, result.Datasets[0].Summary)
	assert.Empty(t, result.Datasets[1].Error)

	// The failed dataset stays out of the consolidated report
	data, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "StepCount (Quantity)")
	assert.Contains(t, string(data), "SleepAnalysis (Category)")

	assert.Contains(t, sink.messageTypes(), "processing_error")
}

func TestProcessingService_ProcessAllNothingSelected(t *testing.T) {
	svc, sess, _ := newTestHarness(t, nil)

	_, err := svc.ProcessAll(context.Background(), sess, nil, false)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestProcessingService_ProcessAllCancelledContext(t *testing.T) {
	svc, sess, _ := newTestHarness(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.ProcessAll(ctx, sess, []string{"HKQuantityTypeIdentifierStepCount"}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 1, result.Failed)
}

func TestProcessingService_WriteReportXLSX(t *testing.T) {
	svc, sess, cfg := newTestHarness(t, nil)
	cfg.Processing.WriteXLSX = true

	_, err := svc.ExtractDataset(context.Background(), sess, "HKQuantityTypeIdentifierStepCount")
	require.NoError(t, err)

	csvPath, err := svc.WriteReport(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sess.OutputDir, report.ScheduleFileName), csvPath)

	_, err = os.Stat(csvPath)
	assert.NoError(t, err)
	_, err = os.Stat(strings.TrimSuffix(csvPath, ".csv") + ".xlsx")
	assert.NoError(t, err)
}
