package services

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mitchens84/APPLE-HEALTH/internal/config"
	apperrors "github.com/mitchens84/APPLE-HEALTH/internal/errors"
	"github.com/mitchens84/APPLE-HEALTH/internal/exporter"
	"github.com/mitchens84/APPLE-HEALTH/internal/healthdata"
	"github.com/mitchens84/APPLE-HEALTH/internal/report"
	"github.com/mitchens84/APPLE-HEALTH/pkg/contracts/domain"
)

// ProgressSink receives processing progress events for live display
type ProgressSink interface {
	Broadcast(messageType string, data interface{})
}

// DatasetOutcome describes one item of a batch run. Failed items carry the
// error text; successful ones the recorded summary.
type DatasetOutcome struct {
	Name    string                 `json:"name"`
	Summary *domain.DatasetSummary `json:"summary,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// BatchResult is the outcome of a full processing run.
type BatchResult struct {
	Datasets       []DatasetOutcome `json:"datasets"`
	Processed      int              `json:"processed"`
	Failed         int              `json:"failed"`
	ReportPath     string           `json:"report_path"`
	ElapsedSeconds float64          `json:"elapsed_seconds"`
}

// ProcessingService drives extraction, persistence and report aggregation
// for upload sessions. One dataset failing never aborts a batch; the item is
// reported failed and the remaining datasets still process.
type ProcessingService struct {
	cfg      *config.Config
	exporter *exporter.DatasetExporter
	sink     ProgressSink
	logger   *slog.Logger
}

// NewProcessingService creates a processing service. sink may be nil when no
// live progress delivery is wanted.
func NewProcessingService(cfg *config.Config, paths *config.Paths, sink ProgressSink, logger *slog.Logger) *ProcessingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessingService{
		cfg:      cfg,
		exporter: exporter.NewDatasetExporter(paths),
		sink:     sink,
		logger:   logger,
	}
}

// ListTypes returns the record types available in the session's export.
func (p *ProcessingService) ListTypes(ctx context.Context, sess *Session) ([]string, error) {
	return sess.Processor.ListTypes(ctx)
}

// ExtractDataset extracts one record type, writes its CSV into the session
// output directory and records it in the session report.
func (p *ProcessingService) ExtractDataset(ctx context.Context, sess *Session, rawType string) (*domain.DatasetSummary, error) {
	table, err := sess.Processor.ExtractByType(ctx, rawType)
	if err != nil {
		return nil, err
	}
	return p.persistAndRecord(ctx, sess, rawType, table)
}

// ExtractWorkouts extracts the workouts dataset, writes its CSV and records
// it in the session report.
func (p *ProcessingService) ExtractWorkouts(ctx context.Context, sess *Session) (*domain.DatasetSummary, error) {
	table, err := sess.Processor.ExtractWorkouts(ctx)
	if err != nil {
		return nil, err
	}
	return p.persistAndRecord(ctx, sess, healthdata.WorkoutsDatasetName, table)
}

func (p *ProcessingService) persistAndRecord(ctx context.Context, sess *Session, rawName string, table *domain.Table) (*domain.DatasetSummary, error) {
	displayName := report.CleanMetricName(rawName)
	filePath := filepath.Join(sess.OutputDir, report.DatasetFileName(displayName))

	size, err := p.exporter.WriteTable(table, filePath)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to write dataset file", err).
			WithContext("dataset", displayName)
	}
	return sess.Report.RecordDataset(ctx, rawName, table, filePath, size), nil
}

// WriteReport writes the consolidated schedule of everything recorded so far
// into the session output directory and returns the CSV path. When XLSX
// output is enabled the workbook is written next to it.
func (p *ProcessingService) WriteReport(ctx context.Context, sess *Session) (string, error) {
	table := sess.Report.ConsolidatedTable()

	csvPath := filepath.Join(sess.OutputDir, report.ScheduleFileName)
	if err := p.exporter.WriteConsolidated(table, csvPath); err != nil {
		return "", apperrors.NewStorageError("failed to write consolidated report", err)
	}

	if p.cfg.Processing.WriteXLSX {
		xlsxPath := strings.TrimSuffix(csvPath, ".csv") + ".xlsx"
		if err := p.exporter.WriteConsolidatedXLSX(table, xlsxPath); err != nil {
			return "", apperrors.NewStorageError("failed to write consolidated workbook", err)
		}
	}

	p.logger.InfoContext(ctx, "consolidated report written",
		slog.String("path", csvPath),
		slog.Int("datasets", sess.Report.Len()))
	return csvPath, nil
}

type batchItem struct {
	rawName  string
	workouts bool
}

// ProcessAll extracts the given record types, and optionally the workouts
// dataset, then writes the consolidated report. Items run on a bounded
// worker pool; outcomes and consolidated report rows keep the selection
// order regardless of completion order.
func (p *ProcessingService) ProcessAll(ctx context.Context, sess *Session, types []string, includeWorkouts bool) (*BatchResult, error) {
	items := make([]batchItem, 0, len(types)+1)
	for _, t := range types {
		items = append(items, batchItem{rawName: t})
	}
	if includeWorkouts {
		items = append(items, batchItem{rawName: healthdata.WorkoutsDatasetName, workouts: true})
	}
	if len(items) == 0 {
		return nil, apperrors.NewAppValidationError("nothing selected for processing")
	}

	workers := p.cfg.Processing.Workers
	if workers < 1 {
		workers = 1
	}

	// Reserve report slots up front so the consolidated rows keep the
	// selection order even when workers finish out of order.
	for _, item := range items {
		sess.Report.Reserve(item.rawName)
	}

	started := time.Now()
	p.broadcast("processing_started", map[string]interface{}{
		"session_id": sess.ID,
		"total":      len(items),
		"workers":    workers,
	})
	p.logger.InfoContext(ctx, "batch processing started",
		slog.String("session_id", sess.ID),
		slog.Int("datasets", len(items)),
		slog.Int("workers", workers))

	outcomes := make([]DatasetOutcome, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, item := range items {
		g.Go(func() error {
			outcomes[i] = p.processItem(gctx, sess, item, i, len(items))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reportPath, err := p.WriteReport(ctx, sess)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{
		Datasets:       outcomes,
		ReportPath:     reportPath,
		ElapsedSeconds: time.Since(started).Seconds(),
	}
	for _, o := range outcomes {
		if o.Error == "" {
			result.Processed++
		} else {
			result.Failed++
		}
	}

	p.broadcast("processing_complete", map[string]interface{}{
		"session_id": sess.ID,
		"processed":  result.Processed,
		"failed":     result.Failed,
		"report":     reportPath,
	})
	p.logger.InfoContext(ctx, "batch processing complete",
		slog.String("session_id", sess.ID),
		slog.Int("processed", result.Processed),
		slog.Int("failed", result.Failed),
		slog.Float64("elapsed_seconds", result.ElapsedSeconds))
	return result, nil
}

func (p *ProcessingService) processItem(ctx context.Context, sess *Session, item batchItem, index, total int) DatasetOutcome {
	displayName := report.CleanMetricName(item.rawName)
	outcome := DatasetOutcome{Name: displayName}

	if err := ctx.Err(); err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	var (
		summary *domain.DatasetSummary
		err     error
	)
	if item.workouts {
		summary, err = p.ExtractWorkouts(ctx, sess)
	} else {
		summary, err = p.ExtractDataset(ctx, sess, item.rawName)
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "dataset processing failed",
			slog.String("session_id", sess.ID),
			slog.String("dataset", displayName),
			slog.String("error", err.Error()))
		outcome.Error = err.Error()
		p.broadcast("processing_error", map[string]interface{}{
			"session_id": sess.ID,
			"dataset":    displayName,
			"error":      err.Error(),
		})
		return outcome
	}

	outcome.Summary = summary
	p.broadcast("processing_progress", map[string]interface{}{
		"session_id": sess.ID,
		"dataset":    displayName,
		"index":      index + 1,
		"total":      total,
		"records":    summary.RecordCount,
	})
	return outcome
}

func (p *ProcessingService) broadcast(messageType string, data interface{}) {
	if p.sink == nil {
		return
	}
	p.sink.Broadcast(messageType, data)
}
