package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/survey-etl/pkg/config"
	"github.com/David-Botos/survey-etl/pkg/connector"
	"github.com/David-Botos/survey-etl/pkg/model"
)

const surveyCSV = `Time from Start to Finish (seconds),Q1,Q1_OTHER_TEXT,Q8,Q9,Q12_OTHER_TEXT
510,22-24,  Hello ,0-1,"0-10,000",
510,22-24,  Hello ,0-1,"0-10,000",
abc,30-34,,5-10,I do not wish to disclose my approximate yearly compensation,
300,,,20+,,
420,40-44,,7-8,"10-20,000",
`

var runStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeSink struct {
	table    *model.Table
	metadata *model.TableMetadata
	ops      []model.CleaningOperation
	writeErr error
	closed   bool
}

func (s *fakeSink) WriteTable(_ context.Context, table *model.Table, md *model.TableMetadata) (int64, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.table, s.metadata = table, md
	return int64(table.NumRows()), nil
}

func (s *fakeSink) RecordCleaningOperations(_ context.Context, ops []model.CleaningOperation) error {
	s.ops = append(s.ops, ops...)
	return nil
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "survey.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(t *testing.T, input string) *config.Config {
	t.Helper()
	cfg, err := config.DefaultConfig()
	require.NoError(t, err)
	cfg.Input.Path = input
	cfg.Output.Dir = filepath.Join(t.TempDir(), "out")
	return cfg
}

func newTestRunner(t *testing.T, cfg *config.Config) *Runner {
	t.Helper()
	r, err := NewRunner(cfg, zap.NewNop())
	require.NoError(t, err)
	return r.WithClock(func() time.Time { return runStart }).
		WithRunID(func() string { return "run-1" })
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestRunner_Run(t *testing.T) {
	cfg := testConfig(t, writeInput(t, surveyCSV))
	cfg.Output.MetricsFile = filepath.Join(t.TempDir(), "metrics", "surveyetl.prom")
	sink := &fakeSink{}
	r := newTestRunner(t, cfg).WithSink(sink)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Success)
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, 5, result.RowsRead)
	assert.Equal(t, 6, result.ColumnsRead)
	assert.Equal(t, 4, result.RowsWritten)
	assert.Equal(t, 7, result.ColumnsWritten)
	assert.InDelta(t, 80.0, result.RetentionRate(), 1e-9)
	assert.Len(t, result.Warnings, 3, "three configured lowercase columns are absent")
	require.NotNil(t, result.Verification)
	assert.True(t, result.Verification.Passed)

	csvPath := filepath.Join(cfg.Output.Dir, "survey_cleaned_20240501_120000.csv")
	xlsxPath := filepath.Join(cfg.Output.Dir, "survey_cleaned_20240501_120000.xlsx")
	metaPath := filepath.Join(cfg.Output.Dir, "metadata_etl_20240501_120000.txt")
	assert.Equal(t, []string{csvPath, xlsxPath, metaPath}, result.Outputs)
	assert.FileExists(t, xlsxPath)

	want := [][]string{
		{"Survey_Duration_Seconds", "Respondent_Age", "Respondent_Age_Free_Text", "Years_Experience",
			"Yearly_Compensation_Range", "Experience_Category", "Compensation_Category"},
		{"510", "22-24", "hello", "0-1", "0-10,000", "beginner(0-2)", "low(0-20k)"},
		{"420", "30-34", "Not specified", "5-10", "I do not wish to disclose my approximate yearly compensation",
			"advanced(4-10)", "not specified"},
		{"300", "Not specified", "Not specified", "20+", "Not specified", "expert(10+)", "not specified"},
		{"420", "40-44", "Not specified", "7-8", "10-20,000", "not specified", "low(0-20k)"},
	}
	if diff := cmp.Diff(want, readCSV(t, csvPath)); diff != "" {
		t.Errorf("cleaned CSV mismatch (-want +got):\n%s", diff)
	}

	meta, err := os.ReadFile(metaPath)
	require.NoError(t, err)
	assert.Contains(t, string(meta), "Run ID:    run-1")
	assert.Contains(t, string(meta), "Q12_OTHER_TEXT")
	assert.Contains(t, string(meta), `"7-8" (1)`)
	assert.Contains(t, string(meta), csvPath)

	require.NotNil(t, sink.table)
	assert.Equal(t, 4, sink.table.NumRows())
	assert.Equal(t, int64(4), result.SinkRows)
	assert.NotEmpty(t, sink.ops)
	assert.Equal(t, len(sink.ops), result.AuditRecords)
	for _, op := range sink.ops {
		assert.Equal(t, "run-1", op.RunID)
	}
	assert.False(t, sink.closed, "injected sinks are owned by the caller")

	m := r.GetMetrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.success))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.rows.WithLabelValues("output")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.droppedColumns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.unmatched.WithLabelValues("Experience_Category")))
	prom, err := os.ReadFile(cfg.Output.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "surveyetl_rows{stage=\"input\"} 5")

	assert.Equal(t, 3, r.GetErrorSummary()[ErrorCategoryWarning])
}

func TestRunner_CSVOnly(t *testing.T) {
	cfg := testConfig(t, writeInput(t, surveyCSV))
	cfg.Output.Format = config.FormatCSV

	result, err := newTestRunner(t, cfg).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Outputs, 2)
	assert.Equal(t, ".csv", filepath.Ext(result.Outputs[0]))
	assert.Equal(t, ".txt", filepath.Ext(result.Outputs[1]))
	assert.NoFileExists(t, filepath.Join(cfg.Output.Dir, "survey_cleaned_20240501_120000.xlsx"))
}

func TestRunner_InputNotFound(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing.csv"))

	result, err := newTestRunner(t, cfg).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, connector.ErrInputNotFound)

	require.NotNil(t, result)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrorCategoryInputNotFound, result.Errors[0].Category)
	assert.Equal(t, StageInput, result.Errors[0].Stage)
	assert.Empty(t, result.Outputs)
	assert.NoDirExists(t, cfg.Output.Dir)
}

func TestRunner_PatternSelectsNewestFile(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "a.csv")
	newer := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(older, []byte("Q1\nx\n"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte(surveyCSV), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	cfg := testConfig(t, "")
	cfg.Input.Pattern = filepath.Join(dir, "*.csv")

	result, err := newTestRunner(t, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, newer, result.InputPath)
}

func TestRunner_MalformedInput(t *testing.T) {
	cfg := testConfig(t, writeInput(t, "a,b\n1,2\n1,2,3\n"))
	cfg.Input.PeekRows = 0

	result, err := newTestRunner(t, cfg).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, connector.ErrMalformedInput)
	assert.Equal(t, ErrorCategoryMalformedInput, result.Errors[0].Category)
	assert.Equal(t, StageLoad, result.Errors[0].Stage)
}

func TestRunner_PeekCatchesMalformedHead(t *testing.T) {
	cfg := testConfig(t, writeInput(t, "a,b\n1,2,3\n"))

	result, err := newTestRunner(t, cfg).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StagePeek, result.Errors[0].Stage)
}

func TestRunner_SinkFailureKeepsFiles(t *testing.T) {
	cfg := testConfig(t, writeInput(t, surveyCSV))
	sink := &fakeSink{writeErr: fmt.Errorf("%w: connection refused", connector.ErrSink)}

	result, err := newTestRunner(t, cfg).WithSink(sink).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, connector.ErrSink)
	assert.Equal(t, ErrorCategorySink, result.Errors[0].Category)
	assert.False(t, result.Success)
	assert.Len(t, result.Outputs, 3)
}

func TestRunner_CancelledContext(t *testing.T) {
	cfg := testConfig(t, writeInput(t, surveyCSV))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newTestRunner(t, cfg).Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, ErrorCategoryCancelled, result.Errors[0].Category)
	assert.Empty(t, result.Outputs)
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(nil, zap.NewNop())
	assert.Error(t, err)

	cfg, err := config.DefaultConfig()
	require.NoError(t, err)
	_, err = NewRunner(cfg, nil)
	assert.Error(t, err)

	cfg.Transform.MissingThreshold = 2
	_, err = NewRunner(cfg, zap.NewNop())
	assert.ErrorIs(t, err, config.ErrInvalidThreshold)
}
