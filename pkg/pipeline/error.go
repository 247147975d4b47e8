package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/survey-etl/pkg/cleaner"
	"github.com/David-Botos/survey-etl/pkg/config"
	"github.com/David-Botos/survey-etl/pkg/connector"
)

// ErrorCategory defines categories of errors during a run
type ErrorCategory int

const (
	ErrorCategoryNone ErrorCategory = iota
	// ErrorCategoryWarning covers skipped steps such as a missing configured column
	ErrorCategoryWarning
	ErrorCategoryConfig
	ErrorCategoryInputNotFound
	ErrorCategoryMalformedInput
	ErrorCategoryTransform
	ErrorCategoryOutputWrite
	ErrorCategorySink
	ErrorCategoryCancelled
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategoryWarning:
		return "Warning"
	case ErrorCategoryConfig:
		return "Config"
	case ErrorCategoryInputNotFound:
		return "InputNotFound"
	case ErrorCategoryMalformedInput:
		return "MalformedInput"
	case ErrorCategoryTransform:
		return "Transform"
	case ErrorCategoryOutputWrite:
		return "OutputWrite"
	case ErrorCategorySink:
		return "Sink"
	case ErrorCategoryCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// Fatal reports whether errors of this category abort the run
func (ec ErrorCategory) Fatal() bool {
	return ec > ErrorCategoryWarning
}

// CategorizeError determines the category of an error from its sentinel
func CategorizeError(err error) ErrorCategory {
	switch {
	case err == nil:
		return ErrorCategoryNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCategoryCancelled
	case errors.Is(err, cleaner.ErrMissingColumn):
		return ErrorCategoryWarning
	case errors.Is(err, connector.ErrInputNotFound):
		return ErrorCategoryInputNotFound
	case errors.Is(err, connector.ErrMalformedInput):
		return ErrorCategoryMalformedInput
	case errors.Is(err, connector.ErrOutputWrite):
		return ErrorCategoryOutputWrite
	case errors.Is(err, connector.ErrSink), errors.Is(err, connector.ErrSinkDisabled):
		return ErrorCategorySink
	case errors.Is(err, config.ErrConfigNotFound), errors.Is(err, config.ErrUnknownSinkDriver):
		return ErrorCategoryConfig
	default:
		return ErrorCategoryTransform
	}
}

// ErrorRecord represents a single error during a run
type ErrorRecord struct {
	Category  ErrorCategory
	Stage     string
	Error     error
	Message   string
	Timestamp time.Time
}

// NewErrorRecord creates a new error record with current timestamp
func NewErrorRecord(err error, category ErrorCategory) ErrorRecord {
	record := ErrorRecord{
		Category:  category,
		Error:     err,
		Timestamp: time.Now(),
	}
	if err != nil {
		record.Message = err.Error()
	}
	return record
}

// WithStage adds the pipeline stage to the error record
func (r ErrorRecord) WithStage(stage string) ErrorRecord {
	r.Stage = stage
	return r
}

// String returns a formatted error message
func (r ErrorRecord) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] ", r.Category))
	if r.Stage != "" {
		sb.WriteString(fmt.Sprintf("Stage: %s ", r.Stage))
	}
	if r.Error != nil {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Error.Error()))
	} else if r.Message != "" {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Message))
	}
	return sb.String()
}

// ErrorHandler collects the errors and warnings of a run
type ErrorHandler struct {
	logger       *zap.Logger
	errorCounts  map[ErrorCategory]int
	sampleErrors map[ErrorCategory][]ErrorRecord
	mu           sync.Mutex
	maxSamples   int
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger,
		errorCounts:  make(map[ErrorCategory]int),
		sampleErrors: make(map[ErrorCategory][]ErrorRecord),
		maxSamples:   5,
	}
}

// HandleError categorizes and records err, returning the record
func (eh *ErrorHandler) HandleError(stage string, err error) ErrorRecord {
	record := NewErrorRecord(err, CategorizeError(err)).WithStage(stage)
	eh.RecordError(record)
	return record
}

// RecordWarning records a non-fatal message
func (eh *ErrorHandler) RecordWarning(stage, message string) {
	eh.RecordError(ErrorRecord{
		Category:  ErrorCategoryWarning,
		Stage:     stage,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// RecordError saves an error occurrence
func (eh *ErrorHandler) RecordError(record ErrorRecord) {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	eh.errorCounts[record.Category]++
	samples := eh.sampleErrors[record.Category]
	if len(samples) < eh.maxSamples {
		eh.sampleErrors[record.Category] = append(samples, record)
	}

	if eh.logger == nil || record.Category == ErrorCategoryWarning {
		// warnings are logged where they are raised
		return
	}
	eh.logger.Error("Run error",
		zap.String("category", record.Category.String()),
		zap.String("stage", record.Stage),
		zap.String("error", record.Message))
}

// GetErrorSummary returns the number of records per category
func (eh *ErrorHandler) GetErrorSummary() map[ErrorCategory]int {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	summary := make(map[ErrorCategory]int, len(eh.errorCounts))
	for category, count := range eh.errorCounts {
		summary[category] = count
	}
	return summary
}

// GetErrorSamples returns sample records for each category
func (eh *ErrorHandler) GetErrorSamples() map[ErrorCategory][]ErrorRecord {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	samples := make(map[ErrorCategory][]ErrorRecord, len(eh.sampleErrors))
	for category, records := range eh.sampleErrors {
		categorySamples := make([]ErrorRecord, len(records))
		copy(categorySamples, records)
		samples[category] = categorySamples
	}
	return samples
}

// HasFatal reports whether any fatal error was recorded
func (eh *ErrorHandler) HasFatal() bool {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	for category, count := range eh.errorCounts {
		if category.Fatal() && count > 0 {
			return true
		}
	}
	return false
}

// WrapError creates a new error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
