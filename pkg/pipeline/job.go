package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/David-Botos/survey-etl/pkg/cleaner"
)

// TimestampFormat names the files written by a run
const TimestampFormat = "20060102_150405"

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.New().String()
}

// RunResult represents the result of one pipeline run
type RunResult struct {
	RunID     string
	InputPath string
	Success   bool

	RowsRead       int
	ColumnsRead    int
	RowsWritten    int
	ColumnsWritten int
	SinkRows       int64
	AuditRecords   int

	Outputs  []string
	Warnings []string
	Errors   []ErrorRecord

	Summary      *cleaner.Summary
	Verification *VerificationReport

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// NewRunResult initializes the result of a run starting at start
func NewRunResult(runID string, start time.Time) *RunResult {
	return &RunResult{
		RunID:     runID,
		StartTime: start,
		Outputs:   make([]string, 0),
		Warnings:  make([]string, 0),
		Errors:    make([]ErrorRecord, 0),
	}
}

// Timestamp returns the file name timestamp of the run
func (r *RunResult) Timestamp() string {
	return r.StartTime.Format(TimestampFormat)
}

// Complete marks the run as finished at end
func (r *RunResult) Complete(success bool, end time.Time) {
	r.EndTime = end
	r.Duration = end.Sub(r.StartTime)
	r.Success = success && len(r.Errors) == 0
}

// AddError adds an error to the result
func (r *RunResult) AddError(err ErrorRecord) {
	r.Errors = append(r.Errors, err)
	r.Success = false
}

// AddWarning adds a warning to the result
func (r *RunResult) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

// AddOutput records a written file
func (r *RunResult) AddOutput(path string) {
	r.Outputs = append(r.Outputs, path)
}

// HasErrors checks if any errors occurred
func (r *RunResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// RetentionRate returns the percentage of input rows kept
func (r *RunResult) RetentionRate() float64 {
	if r.RowsRead == 0 {
		return 100
	}
	return float64(r.RowsWritten) * 100 / float64(r.RowsRead)
}
