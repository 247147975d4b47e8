// pkg/cleaner/cleaner.go
package cleaner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/survey-etl/pkg/config"
	"github.com/David-Botos/survey-etl/pkg/converter"
	"github.com/David-Botos/survey-etl/pkg/model"
)

// Cleaning errors
var (
	ErrMissingColumn   = errors.New("configured column not found")
	ErrRenameCollision = errors.New("renamed column collides with an existing column")
	ErrDerivedExists   = errors.New("derived column already present")
)

// DataCleaner runs the cleaning steps over a loaded survey table
type DataCleaner struct {
	logger    *zap.Logger
	converter *converter.TypeConverter
	rules     config.TransformConfig
	now       func() time.Time
}

// Summary describes everything a Clean call changed
type Summary struct {
	RunID string

	RowsBefore    int
	ColumnsBefore int
	RowsAfter     int
	ColumnsAfter  int

	DuplicatesRemoved      int
	FinalDuplicatesRemoved int
	DroppedColumns         []DroppedColumn
	CoercedValues          map[string]int
	Imputations            []Imputation
	TextImputed            int
	NumericImputed         int
	TrimmedCells           int
	LowercasedCells        int
	Renamed                []RenamedColumn
	RenameKeysAbsent       []string
	Buckets                []BucketResult

	Warnings   []string
	Operations []model.CleaningOperation
}

// Result is the cleaned table plus its description
type Result struct {
	Table    *model.Table
	Metadata *model.TableMetadata
	Summary  *Summary
}

// NewDataCleaner creates a new DataCleaner instance
func NewDataCleaner(logger *zap.Logger, conv *converter.TypeConverter, rules config.TransformConfig) (*DataCleaner, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if conv == nil {
		return nil, errors.New("type converter cannot be nil")
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transform rules: %w", err)
	}

	return &DataCleaner{
		logger:    logger,
		converter: conv,
		rules:     rules,
		now:       time.Now,
	}, nil
}

// Clean applies every cleaning step to a copy of raw and returns the result.
// Missing configured columns are reported as warnings; a rename collision or
// a cancelled context aborts the run.
func (c *DataCleaner) Clean(ctx context.Context, runID string, raw *model.Table) (*Result, error) {
	if raw == nil {
		return nil, errors.New("table cannot be nil")
	}

	table := raw.Clone()
	s := &Summary{
		RunID:         runID,
		RowsBefore:    table.NumRows(),
		ColumnsBefore: table.NumColumns(),
		CoercedValues: make(map[string]int),
	}

	// 1. duplicates
	s.DuplicatesRemoved = Deduplicate(table)
	if s.DuplicatesRemoved > 0 {
		c.record(s, model.OpDeduplicate, "", "duplicate_row", s.DuplicatesRemoved, nil, "")
	}
	c.logger.Info("Removed duplicate rows", zap.Int("count", s.DuplicatesRemoved))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 2. sparse columns
	s.DroppedColumns = PruneColumns(table, c.rules.MissingThreshold)
	for _, d := range s.DroppedColumns {
		name := d.Name
		c.record(s, model.OpDropColumn, d.Name, fmt.Sprintf("missing_fraction=%.4f", d.MissingFraction), table.NumRows(), &name, "")
	}
	c.logger.Info("Dropped sparse columns",
		zap.Int("count", len(s.DroppedColumns)),
		zap.Float64("threshold", c.rules.MissingThreshold))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 3. numeric coercion
	numeric := make(map[string]bool)
	for _, name := range c.rules.NumericColumns {
		idx := table.ColumnIndex(name)
		if idx < 0 {
			c.warn(s, fmt.Sprintf("numeric column %q not found, coercion skipped", name))
			continue
		}
		cells, _ := table.Column(name)
		out, coerced := c.converter.CoerceNumeric(name, cells)
		for r, row := range table.Rows {
			row[idx] = out[r]
		}
		numeric[name] = true
		s.CoercedValues[name] = coerced
		if coerced > 0 {
			c.record(s, model.OpNumericCoercion, name, "unparsable_number", coerced, nil, "")
		}
	}

	// 4. imputation
	kinds := make(map[string]model.ColumnKind, table.NumColumns())
	for idx, name := range table.Columns {
		kind := model.KindNumeric
		if !numeric[name] {
			cells, _ := table.Column(name)
			kind = c.converter.InferKind(cells)
		}
		kinds[name] = kind

		if table.ColumnMissingCount(idx) == 0 {
			continue
		}
		c.imputeColumn(s, table, idx, name, kind)
	}
	c.logger.Info("Imputed missing values",
		zap.Int("text", s.TextImputed),
		zap.Int("numeric", s.NumericImputed))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 5. text normalization
	lower := make(map[string]bool, len(c.rules.LowercaseColumns))
	for _, name := range c.rules.LowercaseColumns {
		if !table.HasColumn(name) {
			c.warn(s, fmt.Sprintf("lowercase column %q not found, skipped", name))
			continue
		}
		lower[name] = true
	}
	normalizer := newTextNormalizer(c.rules.TextSentinel)
	for idx, name := range table.Columns {
		if kinds[name] == model.KindNumeric {
			trimmed := trimColumn(table, idx)
			s.TrimmedCells += trimmed
			if trimmed > 0 {
				c.record(s, model.OpTrim, name, "surrounding_whitespace", trimmed, nil, "")
			}
			continue
		}
		trimmed, lowered := normalizer.normalizeColumn(table, idx, lower[name])
		s.TrimmedCells += trimmed
		s.LowercasedCells += lowered
		if trimmed > 0 {
			c.record(s, model.OpTrim, name, "surrounding_whitespace", trimmed, nil, "")
		}
		if lowered > 0 {
			c.record(s, model.OpLowercase, name, "free_text_normalization", lowered, nil, "")
		}
	}

	// 6. rename
	renames := c.rules.RenameMap()
	applied, err := RenameColumns(table, renames)
	if err != nil {
		return nil, err
	}
	s.Renamed = applied
	renamedFrom := make(map[string]bool, len(applied))
	for _, r := range applied {
		renamedFrom[r.From] = true
		from := r.From
		c.record(s, model.OpRename, r.To, "descriptive_name", 0, &from, r.To)
	}
	for _, rule := range c.rules.Rename {
		if !renamedFrom[rule.From] {
			s.RenameKeysAbsent = append(s.RenameKeysAbsent, rule.From)
		}
	}
	c.logger.Info("Renamed columns",
		zap.Int("applied", len(applied)),
		zap.Int("absent", len(s.RenameKeysAbsent)))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 7. derived buckets
	derived := make(map[string]bool)
	for _, bc := range c.rules.Buckets {
		res, err := c.DeriveBucket(table, NewBucketer(bc, c.rules.TextSentinel))
		s.Buckets = append(s.Buckets, res)
		if err != nil {
			switch {
			case errors.Is(err, ErrMissingColumn):
				c.warn(s, fmt.Sprintf("bucket %s skipped: source column %q not found", bc.Name, bc.Source))
				continue
			case errors.Is(err, ErrDerivedExists):
				c.warn(s, fmt.Sprintf("bucket %s skipped: column already present in input", bc.Name))
				continue
			}
			return nil, err
		}
		derived[bc.Name] = true
		c.record(s, model.OpDeriveBucket, bc.Name, "derived_from_"+bc.Source, table.NumRows(), nil, "")
	}

	// 8. duplicates introduced by imputation or normalization
	s.FinalDuplicatesRemoved = Deduplicate(table)
	if s.FinalDuplicatesRemoved > 0 {
		c.record(s, model.OpDeduplicate, "", "duplicate_after_cleaning", s.FinalDuplicatesRemoved, nil, "")
		c.logger.Info("Removed rows duplicated by cleaning", zap.Int("count", s.FinalDuplicatesRemoved))
	}

	s.RowsAfter = table.NumRows()
	s.ColumnsAfter = table.NumColumns()

	return &Result{
		Table:    table,
		Metadata: buildMetadata(table, kinds, applied, derived),
		Summary:  s,
	}, nil
}

// imputeColumn fills one column according to its kind
func (c *DataCleaner) imputeColumn(s *Summary, table *model.Table, idx int, name string, kind model.ColumnKind) {
	if kind == model.KindText {
		n := imputeColumn(table, idx, c.rules.TextSentinel)
		s.TextImputed += n
		s.Imputations = append(s.Imputations, Imputation{Column: name, Kind: kind, Value: c.rules.TextSentinel, Count: n})
		c.record(s, model.OpImputeText, name, "missing_value", n, nil, c.rules.TextSentinel)
		return
	}

	op := model.OpImputeMedian
	median, ok := columnMedian(table, idx)
	if !ok {
		median = c.rules.NumericFallback
		op = model.OpImputeFallback
		c.warn(s, fmt.Sprintf("numeric column %q has no values, filled with fallback %s",
			name, converter.FormatNumber(median)))
	}
	value := converter.FormatNumber(median)
	n := imputeColumn(table, idx, value)
	s.NumericImputed += n
	s.Imputations = append(s.Imputations, Imputation{Column: name, Kind: kind, Value: value, Count: n})
	c.record(s, op, name, "missing_value", n, nil, value)
}

func (c *DataCleaner) warn(s *Summary, msg string) {
	s.Warnings = append(s.Warnings, msg)
	c.logger.Warn(msg)
}

func (c *DataCleaner) record(s *Summary, op, column, reason string, affected int, original *string, newValue string) {
	s.Operations = append(s.Operations, model.CleaningOperation{
		RunID:         s.RunID,
		ColumnName:    column,
		OriginalValue: original,
		NewValue:      newValue,
		AffectedRows:  affected,
		Operation:     op,
		Reason:        reason,
		CleanedAt:     c.now().UTC(),
	})
}

func buildMetadata(table *model.Table, kinds map[string]model.ColumnKind, applied []RenamedColumn, derived map[string]bool) *model.TableMetadata {
	original := make(map[string]string, len(applied))
	for _, r := range applied {
		original[r.To] = r.From
	}

	md := &model.TableMetadata{Columns: make([]model.Column, 0, table.NumColumns())}
	for _, name := range table.Columns {
		orig := name
		if from, ok := original[name]; ok {
			orig = from
		}
		kind := model.KindText
		if !derived[name] {
			kind = kinds[orig]
		}
		md.Columns = append(md.Columns, model.Column{
			Name:         name,
			OriginalName: orig,
			Kind:         kind,
			Derived:      derived[name],
		})
	}
	return md
}
