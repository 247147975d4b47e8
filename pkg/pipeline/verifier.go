package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/survey-etl/pkg/cleaner"
	"github.com/David-Botos/survey-etl/pkg/config"
)

// ErrVerificationFailed is returned when a cleaned table breaks an output invariant
var ErrVerificationFailed = errors.New("cleaned table failed verification")

// Integrity issue types
const (
	IssueMissingValues   = "missing_values"
	IssueDuplicateRows   = "duplicate_rows"
	IssueUnrenamedColumn = "unrenamed_column"
	IssueMissingDerived  = "missing_derived_column"
	IssueMetadata        = "metadata_mismatch"
)

// IntegrityIssue represents a data integrity issue
type IntegrityIssue struct {
	IssueType    string
	Description  string
	ColumnName   string
	AffectedRows int64
}

// VerificationReport contains the results of verifying a cleaned table
type VerificationReport struct {
	VerificationTime time.Time
	Rows             int
	Columns          int
	MissingCells     int
	DuplicateRows    int
	Issues           []IntegrityIssue
	Passed           bool
	Duration         time.Duration
}

// Verifier checks the invariants of a cleaned table before it is written
type Verifier struct {
	rules  config.TransformConfig
	logger *zap.Logger
}

// NewVerifier creates a new verifier
func NewVerifier(rules config.TransformConfig, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{rules: rules, logger: logger}
}

// Verify checks that no value is missing, no row is duplicated, every mapped
// column was renamed and every computable derived column exists
func (v *Verifier) Verify(ctx context.Context, result *cleaner.Result) (*VerificationReport, error) {
	if result == nil || result.Table == nil {
		return nil, errors.New("nothing to verify")
	}
	startTime := time.Now()
	table := result.Table

	report := &VerificationReport{
		VerificationTime: startTime,
		Rows:             table.NumRows(),
		Columns:          table.NumColumns(),
	}

	// 1. completeness
	for i, name := range table.Columns {
		if n := table.ColumnMissingCount(i); n > 0 {
			report.MissingCells += n
			report.Issues = append(report.Issues, IntegrityIssue{
				IssueType:    IssueMissingValues,
				Description:  fmt.Sprintf("%d missing values remain", n),
				ColumnName:   name,
				AffectedRows: int64(n),
			})
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. uniqueness
	report.DuplicateRows = table.DuplicateCount()
	if report.DuplicateRows > 0 {
		report.Issues = append(report.Issues, IntegrityIssue{
			IssueType:    IssueDuplicateRows,
			Description:  fmt.Sprintf("%d duplicate rows remain", report.DuplicateRows),
			AffectedRows: int64(report.DuplicateRows),
		})
	}

	// 3. renames
	for _, r := range v.rules.Rename {
		if table.HasColumn(r.From) {
			report.Issues = append(report.Issues, IntegrityIssue{
				IssueType:   IssueUnrenamedColumn,
				Description: fmt.Sprintf("column was not renamed to %s", r.To),
				ColumnName:  r.From,
			})
		}
	}

	// 4. derived columns
	for _, b := range v.rules.Buckets {
		if table.HasColumn(b.Source) && !table.HasColumn(b.Name) {
			report.Issues = append(report.Issues, IntegrityIssue{
				IssueType:   IssueMissingDerived,
				Description: fmt.Sprintf("derived column from %s is absent", b.Source),
				ColumnName:  b.Name,
			})
		}
	}

	// 5. metadata
	if result.Metadata != nil && len(result.Metadata.Columns) != table.NumColumns() {
		report.Issues = append(report.Issues, IntegrityIssue{
			IssueType: IssueMetadata,
			Description: fmt.Sprintf("metadata describes %d columns, table has %d",
				len(result.Metadata.Columns), table.NumColumns()),
		})
	}

	report.Passed = len(report.Issues) == 0
	report.Duration = time.Since(startTime)

	v.logger.Info("Verification completed",
		zap.Bool("passed", report.Passed),
		zap.Int("rows", report.Rows),
		zap.Int("columns", report.Columns),
		zap.Int("issues", len(report.Issues)),
		zap.Duration("duration", report.Duration))

	if !report.Passed {
		for _, issue := range report.Issues {
			v.logger.Error("Integrity issue",
				zap.String("type", issue.IssueType),
				zap.String("column", issue.ColumnName),
				zap.String("description", issue.Description))
		}
		return report, fmt.Errorf("%w: %d issues", ErrVerificationFailed, len(report.Issues))
	}
	return report, nil
}
