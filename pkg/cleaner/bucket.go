// pkg/cleaner/bucket.go
package cleaner

import (
	"sort"

	"github.com/David-Botos/survey-etl/pkg/config"
	"github.com/David-Botos/survey-etl/pkg/model"
)

// Outcome tells how a bucket label was chosen
type Outcome int

const (
	// Matched means a rule listed the value
	Matched Outcome = iota
	// MissingValue means the value is missing or a declared missing marker
	MissingValue
	// Unmatched means a present value fell through every rule
	Unmatched
)

// Bucketer maps source values to bucket labels with an ordered rule table
type Bucketer struct {
	cfg     config.BucketConfig
	lookup  map[string]string
	missing map[string]struct{}
}

// NewBucketer builds the lookup for a bucket definition. When a value is
// listed by several rules the first rule wins. Extra missing markers, such as
// the imputation sentinel, are treated like the configured missing values.
func NewBucketer(cfg config.BucketConfig, missingMarkers ...string) *Bucketer {
	b := &Bucketer{
		cfg:     cfg,
		lookup:  make(map[string]string),
		missing: make(map[string]struct{}, len(cfg.MissingValues)+len(missingMarkers)),
	}
	for _, rule := range cfg.Rules {
		for _, v := range rule.Values {
			if _, exists := b.lookup[v]; !exists {
				b.lookup[v] = rule.Label
			}
		}
	}
	for _, v := range cfg.MissingValues {
		b.missing[v] = struct{}{}
	}
	for _, v := range missingMarkers {
		if _, ruled := b.lookup[v]; !ruled {
			b.missing[v] = struct{}{}
		}
	}
	return b
}

// Assign returns the label for a source cell. Every input yields a label.
func (b *Bucketer) Assign(cell model.Cell) (string, Outcome) {
	if !cell.Valid {
		return b.cfg.Fallback, MissingValue
	}
	if label, ok := b.lookup[cell.Value]; ok {
		return label, Matched
	}
	if _, ok := b.missing[cell.Value]; ok {
		return b.cfg.Fallback, MissingValue
	}
	return b.cfg.Fallback, Unmatched
}

// Labels returns every label the bucket can produce, rules first
func (b *Bucketer) Labels() []string {
	labels := make([]string, 0, len(b.cfg.Rules)+1)
	seen := make(map[string]bool)
	for _, rule := range b.cfg.Rules {
		if !seen[rule.Label] {
			labels = append(labels, rule.Label)
			seen[rule.Label] = true
		}
	}
	if !seen[b.cfg.Fallback] {
		labels = append(labels, b.cfg.Fallback)
	}
	return labels
}

// BucketResult reports how a derived column was filled
type BucketResult struct {
	Name      string
	Source    string
	Skipped   bool
	Counts    map[string]int
	Unmatched map[string]int
}

// UnmatchedValues returns unmatched source values ordered by count, then value
func (r BucketResult) UnmatchedValues() []ValueCount {
	out := make([]ValueCount, 0, len(r.Unmatched))
	for v, n := range r.Unmatched {
		out = append(out, ValueCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// ValueCount pairs a value with its number of occurrences
type ValueCount struct {
	Value string
	Count int
}
