// Package profile computes the exploratory summary of a survey table.
package profile

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/David-Botos/survey-etl/pkg/converter"
	"github.com/David-Botos/survey-etl/pkg/model"
	"github.com/David-Botos/survey-etl/pkg/stats"
)

// Options controls how much detail a profile keeps
type Options struct {
	TopMissing int      // columns listed by missing count
	TopValues  int      // values listed per key column
	KeyColumns []string // columns whose most frequent values are listed
	Labels     map[string]string
}

// DefaultOptions returns the limits used by the CLI
func DefaultOptions() Options {
	return Options{TopMissing: 10, TopValues: 5}
}

// ColumnMissing is the missing count of one column
type ColumnMissing struct {
	Name    string
	Count   int
	Percent float64
}

// ColumnUnique is the distinct present value count of one column
type ColumnUnique struct {
	Name  string
	Count int
}

// NumericColumn summarizes one numeric column
type NumericColumn struct {
	Name string
	stats.Summary
}

// ValueShare is a value with its frequency
type ValueShare struct {
	Value   string
	Count   int
	Percent float64
}

// KeyColumn lists the most frequent values of a key column
type KeyColumn struct {
	Name   string
	Label  string
	Values []ValueShare
}

// Profile is the exploratory summary of a table
type Profile struct {
	Source  string
	Rows    int
	Columns int

	KindCounts map[model.ColumnKind]int

	MissingTotal       int
	ColumnsWithMissing int
	MeanMissingPercent float64
	TopMissing         []ColumnMissing

	Duplicates       int
	DuplicatePercent float64

	MostUnique  ColumnUnique
	LeastUnique ColumnUnique

	Numeric    []NumericColumn
	KeyColumns []KeyColumn
	Missing    []string // key columns absent from the table
}

// Profiler builds profiles
type Profiler struct {
	logger    *zap.Logger
	converter *converter.TypeConverter
}

// NewProfiler creates a profiler
func NewProfiler(logger *zap.Logger, conv *converter.TypeConverter) (*Profiler, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if conv == nil {
		return nil, errors.New("type converter cannot be nil")
	}
	return &Profiler{logger: logger, converter: conv}, nil
}

// Build profiles the table
func (p *Profiler) Build(ctx context.Context, source string, table *model.Table, opts Options) (*Profile, error) {
	if table == nil {
		return nil, errors.New("table cannot be nil")
	}

	md := p.converter.InferMetadata(source, table)
	prof := &Profile{
		Source:     source,
		Rows:       table.NumRows(),
		Columns:    table.NumColumns(),
		KindCounts: md.CountByKind(),
	}

	p.missing(prof, table, opts.TopMissing)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prof.Duplicates = table.DuplicateCount()
	prof.DuplicatePercent = percent(prof.Duplicates, prof.Rows)

	p.uniqueness(prof, table)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, col := range md.Columns {
		if col.Kind != model.KindNumeric {
			continue
		}
		values := make([]float64, 0, table.NumRows())
		for _, row := range table.Rows {
			if v, ok := converter.ParseNumber(row[i].Value); ok && row[i].Valid {
				values = append(values, v)
			}
		}
		if s, ok := stats.Describe(values); ok {
			prof.Numeric = append(prof.Numeric, NumericColumn{Name: col.Name, Summary: s})
		}
	}

	for _, name := range opts.KeyColumns {
		idx := table.ColumnIndex(name)
		if idx < 0 {
			prof.Missing = append(prof.Missing, name)
			continue
		}
		label := name
		if l, ok := opts.Labels[name]; ok {
			label = l
		}
		prof.KeyColumns = append(prof.KeyColumns, KeyColumn{
			Name:   name,
			Label:  label,
			Values: topValues(table, idx, opts.TopValues),
		})
	}

	p.logger.Info("Built profile",
		zap.String("source", source),
		zap.Int("rows", prof.Rows),
		zap.Int("columns", prof.Columns),
		zap.Int("missing", prof.MissingTotal),
		zap.Int("duplicates", prof.Duplicates))
	return prof, nil
}

func (p *Profiler) missing(prof *Profile, table *model.Table, top int) {
	all := make([]ColumnMissing, 0, table.NumColumns())
	var sumPercent float64
	for i, name := range table.Columns {
		n := table.ColumnMissingCount(i)
		pct := percent(n, table.NumRows())
		sumPercent += pct
		prof.MissingTotal += n
		if n > 0 {
			prof.ColumnsWithMissing++
			all = append(all, ColumnMissing{Name: name, Count: n, Percent: pct})
		}
	}
	if table.NumColumns() > 0 {
		prof.MeanMissingPercent = sumPercent / float64(table.NumColumns())
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Count > all[j].Count })
	if top > 0 && len(all) > top {
		all = all[:top]
	}
	prof.TopMissing = all
}

func (p *Profiler) uniqueness(prof *Profile, table *model.Table) {
	for i, name := range table.Columns {
		distinct := make(map[string]struct{})
		for _, row := range table.Rows {
			if row[i].Valid {
				distinct[row[i].Value] = struct{}{}
			}
		}
		u := ColumnUnique{Name: name, Count: len(distinct)}
		if i == 0 || u.Count > prof.MostUnique.Count {
			prof.MostUnique = u
		}
		if i == 0 || u.Count < prof.LeastUnique.Count {
			prof.LeastUnique = u
		}
	}
}

// topValues returns the n most frequent present values, ties broken by value
func topValues(table *model.Table, idx, n int) []ValueShare {
	counts := make(map[string]int)
	for _, row := range table.Rows {
		if row[idx].Valid {
			counts[row[idx].Value]++
		}
	}

	shares := make([]ValueShare, 0, len(counts))
	for v, c := range counts {
		shares = append(shares, ValueShare{Value: v, Count: c, Percent: percent(c, table.NumRows())})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Value < shares[j].Value
	})
	if n > 0 && len(shares) > n {
		shares = shares[:n]
	}
	return shares
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}
