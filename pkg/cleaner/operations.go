// pkg/cleaner/operations.go
package cleaner

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/David-Botos/survey-etl/pkg/converter"
	"github.com/David-Botos/survey-etl/pkg/model"
	"github.com/David-Botos/survey-etl/pkg/stats"
)

// DroppedColumn records a column removed for missingness
type DroppedColumn struct {
	Name            string
	MissingFraction float64
}

// Imputation records how missing cells of one column were filled
type Imputation struct {
	Column string
	Kind   model.ColumnKind
	Value  string
	Count  int
}

// RenamedColumn records one applied rename
type RenamedColumn struct {
	From string
	To   string
}

// Deduplicate removes rows equal in every column to an earlier row, keeping
// the first occurrence. It returns the number of removed rows.
func Deduplicate(table *model.Table) int {
	seen := make(map[string]struct{}, len(table.Rows))
	kept := table.Rows[:0]
	for _, row := range table.Rows {
		key := model.RowKey(row)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, row)
	}
	removed := len(table.Rows) - len(kept)
	table.Rows = kept
	return removed
}

// PruneColumns drops every column whose missing fraction is strictly greater
// than threshold. A table without rows has no missing values.
func PruneColumns(table *model.Table, threshold float64) []DroppedColumn {
	rows := table.NumRows()
	if rows == 0 {
		return nil
	}

	var dropped []DroppedColumn
	var names []string
	for i, name := range table.Columns {
		fraction := float64(table.ColumnMissingCount(i)) / float64(rows)
		if fraction > threshold {
			dropped = append(dropped, DroppedColumn{Name: name, MissingFraction: fraction})
			names = append(names, name)
		}
	}
	table.DropColumns(names)
	return dropped
}

// imputeColumn fills the missing cells of column idx with value
func imputeColumn(table *model.Table, idx int, value string) int {
	filled := 0
	for _, row := range table.Rows {
		if !row[idx].Valid {
			row[idx] = model.String(value)
			filled++
		}
	}
	return filled
}

// columnMedian returns the median of the present numeric values of column idx
func columnMedian(table *model.Table, idx int) (float64, bool) {
	values := make([]float64, 0, len(table.Rows))
	for _, row := range table.Rows {
		if !row[idx].Valid {
			continue
		}
		if v, ok := converter.ParseNumber(row[idx].Value); ok {
			values = append(values, v)
		}
	}
	return stats.Median(values)
}

// textNormalizer trims, composes (NFC) and optionally lowercases cell text
type textNormalizer struct {
	lower    cases.Caser
	sentinel string
}

func newTextNormalizer(sentinel string) *textNormalizer {
	return &textNormalizer{
		lower:    cases.Lower(language.Und),
		sentinel: sentinel,
	}
}

// normalize trims and composes s
func (n *textNormalizer) normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// normalizeColumn rewrites the cells of column idx, returning how many cells
// were trimmed or composed and how many were lowercased
func (n *textNormalizer) normalizeColumn(table *model.Table, idx int, lowercase bool) (int, int) {
	trimmed, lowered := 0, 0
	for _, row := range table.Rows {
		cell := row[idx]
		if !cell.Valid {
			continue
		}
		v := n.normalize(cell.Value)
		if v != cell.Value {
			trimmed++
		}
		if lowercase && v != n.sentinel {
			l := n.lower.String(v)
			if l != v {
				lowered++
				v = l
			}
		}
		row[idx] = model.String(v)
	}
	return trimmed, lowered
}

// trimColumn strips surrounding whitespace from the present cells of column
// idx and returns how many changed
func trimColumn(table *model.Table, idx int) int {
	trimmed := 0
	for _, row := range table.Rows {
		cell := row[idx]
		if !cell.Valid {
			continue
		}
		if v := strings.TrimSpace(cell.Value); v != cell.Value {
			row[idx] = model.String(v)
			trimmed++
		}
	}
	return trimmed
}

// RenameColumns applies a static lookup to the header. Unmapped columns keep
// their name. It fails when a new name collides with another column.
func RenameColumns(table *model.Table, mapping map[string]string) ([]RenamedColumn, error) {
	next := make([]string, len(table.Columns))
	var applied []RenamedColumn
	for i, name := range table.Columns {
		if to, ok := mapping[name]; ok && to != name {
			next[i] = to
			applied = append(applied, RenamedColumn{From: name, To: to})
			continue
		}
		next[i] = name
	}

	seen := make(map[string]int, len(next))
	for i, name := range next {
		if j, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q (from %q) collides with %q",
				ErrRenameCollision, name, table.Columns[i], table.Columns[j])
		}
		seen[name] = i
	}

	table.Columns = next
	return applied, nil
}

// DeriveBucket appends a derived column computed from its source column
func (c *DataCleaner) DeriveBucket(table *model.Table, b *Bucketer) (BucketResult, error) {
	result := BucketResult{
		Name:      b.cfg.Name,
		Source:    b.cfg.Source,
		Counts:    make(map[string]int),
		Unmatched: make(map[string]int),
	}

	if table.HasColumn(b.cfg.Name) {
		result.Skipped = true
		return result, fmt.Errorf("%w: %s", ErrDerivedExists, b.cfg.Name)
	}
	src, ok := table.Column(b.cfg.Source)
	if !ok {
		result.Skipped = true
		return result, fmt.Errorf("%w: %s (needed by %s)", ErrMissingColumn, b.cfg.Source, b.cfg.Name)
	}

	derived := make([]model.Cell, len(src))
	for i, cell := range src {
		label, outcome := b.Assign(cell)
		derived[i] = model.String(label)
		result.Counts[label]++
		if outcome == Unmatched {
			result.Unmatched[cell.Value]++
		}
	}

	if err := table.AddColumn(b.cfg.Name, derived); err != nil {
		return result, fmt.Errorf("failed to add derived column %s: %w", b.cfg.Name, err)
	}

	for _, vc := range result.UnmatchedValues() {
		c.logger.Warn("Bucket value matched no rule",
			zap.String("bucket", b.cfg.Name),
			zap.String("value", vc.Value),
			zap.Int("count", vc.Count))
	}
	return result, nil
}
