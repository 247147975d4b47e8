// Package pipeline runs the survey ETL from input file to written outputs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/survey-etl/pkg/cleaner"
	"github.com/David-Botos/survey-etl/pkg/config"
	"github.com/David-Botos/survey-etl/pkg/connector"
	"github.com/David-Botos/survey-etl/pkg/converter"
	"github.com/David-Botos/survey-etl/pkg/report"
)

// Pipeline stages, used to label errors
const (
	StageInput  = "input"
	StagePeek   = "peek"
	StageLoad   = "load"
	StageClean  = "clean"
	StageVerify = "verify"
	StageOutput = "output"
	StageSink   = "sink"
)

// Runner orchestrates one batch run
type Runner struct {
	cfg          *config.Config
	logger       *zap.Logger
	factory      *connector.ConnectorFactory
	dataCleaner  *cleaner.DataCleaner
	verifier     *Verifier
	errorHandler *ErrorHandler
	metrics      *RunMetrics
	sink         connector.Sink
	now          func() time.Time
	newRunID     func() string
}

// NewRunner wires the run components from configuration
func NewRunner(cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	conv := converter.NewTypeConverter(logger)
	dataCleaner, err := cleaner.NewDataCleaner(logger.Named("cleaner"), conv, cfg.Transform)
	if err != nil {
		return nil, fmt.Errorf("failed to create data cleaner: %w", err)
	}

	return &Runner{
		cfg:          cfg,
		logger:       logger,
		factory:      connector.NewConnectorFactory(cfg, logger, conv),
		dataCleaner:  dataCleaner,
		verifier:     NewVerifier(cfg.Transform, logger.Named("verifier")),
		errorHandler: NewErrorHandler(logger),
		metrics:      NewRunMetrics(),
		now:          time.Now,
		newRunID:     NewRunID,
	}, nil
}

// WithClock replaces the clock used for timestamps and file names
func (r *Runner) WithClock(now func() time.Time) *Runner {
	if now != nil {
		r.now = now
	}
	return r
}

// WithRunID replaces the run identifier generator
func (r *Runner) WithRunID(newRunID func() string) *Runner {
	if newRunID != nil {
		r.newRunID = newRunID
	}
	return r
}

// WithSink uses sink instead of opening the configured one
func (r *Runner) WithSink(sink connector.Sink) *Runner {
	r.sink = sink
	return r
}

// GetMetrics returns the run metrics
func (r *Runner) GetMetrics() *RunMetrics {
	return r.metrics
}

// GetErrorSummary returns recorded errors by category
func (r *Runner) GetErrorSummary() map[ErrorCategory]int {
	return r.errorHandler.GetErrorSummary()
}

// Run executes the whole pipeline. The returned result is never nil; on
// failure it holds whatever was completed before the error.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	result := NewRunResult(r.newRunID(), r.now())
	logger := r.logger.With(zap.String("runID", result.RunID))
	logger.Info("Starting survey ETL run",
		zap.String("outputDir", r.cfg.Output.Dir),
		zap.String("format", r.cfg.Output.Format),
		zap.String("sink", r.cfg.Sink.Driver))

	source, err := r.factory.CreateSource()
	if err != nil {
		return r.fail(result, StageInput, err)
	}
	path, err := source.ResolvePath()
	if err != nil {
		return r.fail(result, StageInput, err)
	}
	result.InputPath = path

	if n := r.cfg.Input.PeekRows; n > 0 {
		preview, err := source.Peek(ctx, path, n)
		if err != nil {
			return r.fail(result, StagePeek, err)
		}
		logger.Info("Previewed input",
			zap.String("path", path),
			zap.Int("rows", preview.NumRows()),
			zap.Int("columns", preview.NumColumns()))
	}

	raw, err := source.Load(ctx, path)
	if err != nil {
		return r.fail(result, StageLoad, err)
	}
	result.RowsRead = raw.NumRows()
	result.ColumnsRead = raw.NumColumns()
	before := report.MeasureQuality(raw)

	cleaned, err := r.dataCleaner.Clean(ctx, result.RunID, raw)
	if err != nil {
		return r.fail(result, StageClean, err)
	}
	result.Summary = cleaned.Summary
	for _, w := range cleaned.Summary.Warnings {
		result.AddWarning(w)
		r.errorHandler.RecordWarning(StageClean, w)
		r.metrics.RecordError(ErrorCategoryWarning)
	}

	verification, err := r.verifier.Verify(ctx, cleaned)
	result.Verification = verification
	if err != nil {
		return r.fail(result, StageVerify, err)
	}
	result.RowsWritten = cleaned.Table.NumRows()
	result.ColumnsWritten = cleaned.Table.NumColumns()

	if err := r.writeOutputs(result, cleaned, before); err != nil {
		return r.fail(result, StageOutput, err)
	}

	if err := r.writeSink(ctx, result, cleaned); err != nil {
		return r.fail(result, StageSink, err)
	}

	result.Complete(true, r.now())
	r.finish(result)
	r.logSummary(logger, result)
	return result, nil
}

// writeOutputs writes the CSV, spreadsheet and metadata files. Files written
// before a failure are left in place.
func (r *Runner) writeOutputs(result *RunResult, cleaned *cleaner.Result, before report.Quality) error {
	out := r.cfg.Output
	ts := result.Timestamp()
	rr := &report.RunReport{
		RunID:     result.RunID,
		StartedAt: result.StartTime,
		InputPath: result.InputPath,
		Summary:   cleaned.Summary,
		Rules:     r.cfg.Transform,
		Before:    before,
		After:     report.MeasureQuality(cleaned.Table),
	}

	if out.WantCSV() {
		path := filepath.Join(out.Dir, fmt.Sprintf("%s_%s.csv", out.FilePrefix, ts))
		if err := r.factory.CreateCSVWriter().Write(path, cleaned.Table); err != nil {
			return err
		}
		result.AddOutput(path)
	}

	if out.WantExcel() {
		path := filepath.Join(out.Dir, fmt.Sprintf("%s_%s.xlsx", out.FilePrefix, ts))
		wb := connector.Workbook{
			Table:    cleaned.Table,
			Metadata: cleaned.Metadata,
			Changes:  report.ChangeSummary(rr),
			Mapping:  report.ColumnMapping(cleaned.Summary),
		}
		if err := r.factory.CreateExcelWriter().Write(path, wb); err != nil {
			return err
		}
		result.AddOutput(path)
	}

	rr.Outputs = append([]string(nil), result.Outputs...)
	rr.FinishedAt = r.now()
	path := filepath.Join(out.Dir, fmt.Sprintf("%s_%s.txt", out.MetadataPrefix, ts))
	if err := writeMetadataFile(path, rr); err != nil {
		return err
	}
	result.AddOutput(path)
	r.logger.Info("Wrote metadata report", zap.String("path", path))
	return nil
}

func writeMetadataFile(path string, rr *report.RunReport) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", connector.ErrOutputWrite, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", connector.ErrOutputWrite, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %v", connector.ErrOutputWrite, cerr)
		}
	}()

	if err := report.WriteMetadata(f, rr); err != nil {
		return fmt.Errorf("%w: %v", connector.ErrOutputWrite, err)
	}
	return nil
}

// writeSink loads the cleaned table and the audit trail into the SQL sink
func (r *Runner) writeSink(ctx context.Context, result *RunResult, cleaned *cleaner.Result) (err error) {
	sink := r.sink
	if sink == nil {
		if !r.cfg.Sink.Enabled() {
			return nil
		}
		sink, err = r.factory.CreateSink(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := sink.Close(); cerr != nil {
				r.logger.Warn("Failed to close sink", zap.Error(cerr))
			}
		}()
	}

	n, err := sink.WriteTable(ctx, cleaned.Table, cleaned.Metadata)
	if err != nil {
		return err
	}
	result.SinkRows = n

	ops := cleaned.Summary.Operations
	if err := sink.RecordCleaningOperations(ctx, ops); err != nil {
		return err
	}
	result.AuditRecords = len(ops)

	r.logger.Info("Loaded cleaned table into sink",
		zap.String("driver", r.cfg.Sink.Driver),
		zap.Int64("rows", n),
		zap.Int("auditRecords", len(ops)))
	return nil
}

// fail records err against stage and closes the result
func (r *Runner) fail(result *RunResult, stage string, err error) (*RunResult, error) {
	record := r.errorHandler.HandleError(stage, err)
	r.metrics.RecordError(record.Category)
	result.AddError(record)
	result.Complete(false, r.now())
	r.finish(result)
	return result, WrapError(err, fmt.Sprintf("%s stage failed", stage))
}

// finish records metrics and writes the textfile when configured
func (r *Runner) finish(result *RunResult) {
	r.metrics.Record(result)
	if r.cfg.Output.MetricsFile == "" {
		return
	}
	if err := r.metrics.WriteTextfile(r.cfg.Output.MetricsFile); err != nil {
		r.logger.Warn("Failed to write metrics file",
			zap.String("path", r.cfg.Output.MetricsFile),
			zap.Error(err))
		return
	}
	r.logger.Debug("Wrote metrics file", zap.String("path", r.cfg.Output.MetricsFile))
}

// logSummary logs the end-of-run report
func (r *Runner) logSummary(logger *zap.Logger, result *RunResult) {
	s := result.Summary
	logger.Info("Survey ETL run completed",
		zap.String("input", result.InputPath),
		zap.Int("rowsRead", result.RowsRead),
		zap.Int("rowsWritten", result.RowsWritten),
		zap.Int("rowsRemoved", result.RowsRead-result.RowsWritten),
		zap.Float64("retentionRate", result.RetentionRate()),
		zap.Int("columnsRead", result.ColumnsRead),
		zap.Int("columnsWritten", result.ColumnsWritten),
		zap.Int("columnsDropped", len(s.DroppedColumns)),
		zap.Int("textImputed", s.TextImputed),
		zap.Int("numericImputed", s.NumericImputed),
		zap.Int("columnsRenamed", len(s.Renamed)),
		zap.Int("warnings", len(result.Warnings)),
		zap.Strings("outputs", result.Outputs),
		zap.Duration("duration", result.Duration))
}
