// pkg/report/metadata.go
package report

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/David-Botos/survey-etl/pkg/cleaner"
	"github.com/David-Botos/survey-etl/pkg/config"
	"github.com/David-Botos/survey-etl/pkg/connector"
)

// TimestampLayout is used for report headers
const TimestampLayout = "2006-01-02 15:04:05 MST"

// RunReport is everything the metadata file records about a run
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	InputPath  string

	Summary *cleaner.Summary
	Rules   config.TransformConfig

	Before Quality
	After  Quality

	Outputs []string
}

// RowsRemoved returns the total rows dropped by both deduplication passes
func (r *RunReport) RowsRemoved() int {
	if r.Summary == nil {
		return 0
	}
	return r.Summary.RowsBefore - r.Summary.RowsAfter
}

// RetentionRate is the percent of input rows kept
func (r *RunReport) RetentionRate() float64 {
	if r.Summary == nil || r.Summary.RowsBefore == 0 {
		return 100
	}
	return float64(r.Summary.RowsAfter) * 100 / float64(r.Summary.RowsBefore)
}

// WriteMetadata renders the human-readable audit report of a run
func WriteMetadata(w io.Writer, r *RunReport) error {
	if r == nil || r.Summary == nil {
		return errors.New("run report has no cleaning summary")
	}
	s := r.Summary

	var sb strings.Builder
	sb.WriteString("SURVEY ETL METADATA\n")
	sb.WriteString("===================\n")
	fmt.Fprintf(&sb, "Run ID:    %s\n", r.RunID)
	fmt.Fprintf(&sb, "Generated: %s\n", r.FinishedAt.UTC().Format(TimestampLayout))
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		fmt.Fprintf(&sb, "Duration:  %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(&sb, "Input:     %s\n", r.InputPath)

	section(&sb, "DIMENSIONS")
	dims := newTextTable("Measure", "Before", "After")
	dims.add("Rows", strconv.Itoa(s.RowsBefore), strconv.Itoa(s.RowsAfter))
	dims.add("Columns", strconv.Itoa(s.ColumnsBefore), strconv.Itoa(s.ColumnsAfter))
	dims.render(&sb, "  ")
	fmt.Fprintf(&sb, "Rows removed: %d (duplicates %d, duplicated by cleaning %d)\n",
		r.RowsRemoved(), s.DuplicatesRemoved, s.FinalDuplicatesRemoved)
	fmt.Fprintf(&sb, "Retention rate: %.2f%%\n", r.RetentionRate())

	section(&sb, fmt.Sprintf("COLUMNS REMOVED (missing > %s)", formatPercent(r.Rules.MissingThreshold*100)))
	if len(s.DroppedColumns) == 0 {
		sb.WriteString("  none\n")
	} else {
		dropped := newTextTable("Column", "Missing")
		for _, d := range s.DroppedColumns {
			dropped.add(d.Name, formatPercent(d.MissingFraction*100))
		}
		dropped.render(&sb, "  ")
	}

	section(&sb, "NUMERIC COERCION")
	if len(s.CoercedValues) == 0 {
		sb.WriteString("  none\n")
	} else {
		coerced := newTextTable("Column", "Values set to missing")
		for _, name := range r.Rules.NumericColumns {
			if n, ok := s.CoercedValues[name]; ok {
				coerced.add(name, strconv.Itoa(n))
			}
		}
		coerced.render(&sb, "  ")
	}

	section(&sb, "IMPUTATION")
	fmt.Fprintf(&sb, "Text values imputed:    %d (sentinel %q)\n", s.TextImputed, r.Rules.TextSentinel)
	fmt.Fprintf(&sb, "Numeric values imputed: %d\n", s.NumericImputed)
	if len(s.Imputations) > 0 {
		imp := newTextTable("Column", "Kind", "Fill value", "Cells")
		for _, i := range s.Imputations {
			imp.add(i.Column, i.Kind.String(), i.Value, strconv.Itoa(i.Count))
		}
		imp.render(&sb, "  ")
	}

	section(&sb, "TEXT NORMALIZATION")
	fmt.Fprintf(&sb, "Cells trimmed:    %d\n", s.TrimmedCells)
	fmt.Fprintf(&sb, "Cells lowercased: %d\n", s.LowercasedCells)
	if len(r.Rules.LowercaseColumns) > 0 {
		fmt.Fprintf(&sb, "Lowercased columns: %s\n", strings.Join(r.Rules.LowercaseColumns, ", "))
	}

	section(&sb, fmt.Sprintf("COLUMN RENAMES (applied %d, not present %d)", len(s.Renamed), len(s.RenameKeysAbsent)))
	if len(s.Renamed) == 0 {
		sb.WriteString("  none\n")
	} else {
		renames := newTextTable("Original", "Renamed")
		for _, rn := range s.Renamed {
			renames.add(rn.From, rn.To)
		}
		renames.render(&sb, "  ")
	}

	section(&sb, "DERIVED COLUMNS")
	if len(s.Buckets) == 0 {
		sb.WriteString("  none\n")
	}
	for i, b := range s.Buckets {
		if i > 0 {
			sb.WriteString("\n")
		}
		writeBucket(&sb, b, bucketConfig(r.Rules, b.Name))
	}

	section(&sb, "DATA QUALITY")
	q := newTextTable("Metric", "Before", "After")
	q.add("Completeness", formatPercent(r.Before.Completeness), formatPercent(r.After.Completeness))
	q.add("Missing cells", strconv.Itoa(r.Before.MissingCells), strconv.Itoa(r.After.MissingCells))
	q.add("Duplicate rows", strconv.Itoa(r.Before.DuplicateRows), strconv.Itoa(r.After.DuplicateRows))
	q.add("Uniqueness", formatPercent(r.Before.Uniqueness), formatPercent(r.After.Uniqueness))
	q.render(&sb, "  ")

	section(&sb, "WARNINGS")
	if len(s.Warnings) == 0 {
		sb.WriteString("  none\n")
	}
	for _, warning := range s.Warnings {
		fmt.Fprintf(&sb, "  - %s\n", warning)
	}

	section(&sb, "OUTPUT FILES")
	if len(r.Outputs) == 0 {
		sb.WriteString("  none\n")
	}
	for _, out := range r.Outputs {
		fmt.Fprintf(&sb, "  - %s\n", out)
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("failed to write metadata report: %w", err)
	}
	return nil
}

// ChangeSummary returns the before/after rows of the spreadsheet summary sheet
func ChangeSummary(r *RunReport) []connector.ChangeRow {
	s := r.Summary
	rows := []connector.ChangeRow{
		{Metric: "Rows before", Value: strconv.Itoa(s.RowsBefore)},
		{Metric: "Rows after", Value: strconv.Itoa(s.RowsAfter)},
		{Metric: "Rows removed", Value: strconv.Itoa(r.RowsRemoved())},
		{Metric: "Columns before", Value: strconv.Itoa(s.ColumnsBefore)},
		{Metric: "Columns after", Value: strconv.Itoa(s.ColumnsAfter)},
		{Metric: "Columns removed", Value: strconv.Itoa(len(s.DroppedColumns))},
		{Metric: "Text values imputed", Value: strconv.Itoa(s.TextImputed)},
		{Metric: "Numeric values imputed", Value: strconv.Itoa(s.NumericImputed)},
		{Metric: "Columns renamed", Value: strconv.Itoa(len(s.Renamed))},
		{Metric: "Derived columns", Value: strconv.Itoa(derivedCount(s))},
		{Metric: "Completeness before", Value: formatPercent(r.Before.Completeness)},
		{Metric: "Completeness after", Value: formatPercent(r.After.Completeness)},
		{Metric: "Retention rate", Value: formatPercent(r.RetentionRate())},
	}
	return rows
}

// ColumnMapping returns the rename pairs actually applied
func ColumnMapping(s *cleaner.Summary) []config.RenameRule {
	out := make([]config.RenameRule, 0, len(s.Renamed))
	for _, rn := range s.Renamed {
		out = append(out, config.RenameRule{From: rn.From, To: rn.To})
	}
	return out
}

func writeBucket(sb *strings.Builder, b cleaner.BucketResult, cfg *config.BucketConfig) {
	fmt.Fprintf(sb, "%s (from %s)\n", b.Name, b.Source)
	if b.Skipped {
		sb.WriteString("  skipped: source column not present\n")
		return
	}

	if cfg != nil {
		rules := newTextTable("Label", "Source values")
		for _, rule := range cfg.Rules {
			rules.add(rule.Label, strings.Join(rule.Values, ", "))
		}
		rules.add(cfg.Fallback, "anything else")
		rules.render(sb, "  ")
		sb.WriteString("\n")
	}

	counts := newTextTable("Label", "Rows")
	for _, label := range bucketLabels(b, cfg) {
		counts.add(label, strconv.Itoa(b.Counts[label]))
	}
	counts.render(sb, "  ")

	unmatched := b.UnmatchedValues()
	if len(unmatched) == 0 {
		return
	}
	sb.WriteString("  Unmatched values:\n")
	for _, u := range unmatched {
		fmt.Fprintf(sb, "    %q (%d)\n", u.Value, u.Count)
	}
}

// bucketLabels lists labels in rule order, then any other label that received rows
func bucketLabels(b cleaner.BucketResult, cfg *config.BucketConfig) []string {
	var labels []string
	seen := make(map[string]bool)
	if cfg != nil {
		labels = cleaner.NewBucketer(*cfg).Labels()
		for _, l := range labels {
			seen[l] = true
		}
	}
	var extra []string
	for l := range b.Counts {
		if !seen[l] {
			extra = append(extra, l)
		}
	}
	sort.Strings(extra)
	return append(labels, extra...)
}

func bucketConfig(tc config.TransformConfig, name string) *config.BucketConfig {
	for i := range tc.Buckets {
		if tc.Buckets[i].Name == name {
			return &tc.Buckets[i]
		}
	}
	return nil
}

func derivedCount(s *cleaner.Summary) int {
	n := 0
	for _, b := range s.Buckets {
		if !b.Skipped {
			n++
		}
	}
	return n
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}
