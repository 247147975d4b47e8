// pkg/model/metadata.go
package model

import "strings"

// ColumnKind is the inferred storage kind of a column
type ColumnKind int

const (
	// KindText covers free text and selected choice labels
	KindText ColumnKind = iota
	// KindNumeric is used when every present value parses as a number
	KindNumeric
)

// String returns a string representation of the column kind
func (k ColumnKind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	default:
		return "text"
	}
}

// TableMetadata contains the structure information for a loaded table
type TableMetadata struct {
	Source  string   // Input file the table was read from
	Columns []Column // Column definitions in header order
}

// Column represents metadata about a table column
type Column struct {
	Name         string     // Current column name
	OriginalName string     // Name in the input header
	Kind         ColumnKind // Inferred kind
	Missing      int        // Missing cells at inference time
	Derived      bool       // Whether the column was computed by the pipeline
}

// GetColumnByName returns a column by name (case-insensitive)
// Returns nil if column not found
func (tm *TableMetadata) GetColumnByName(name string) *Column {
	normalizedName := normalizeColumnName(name)
	for i, col := range tm.Columns {
		if normalizeColumnName(col.Name) == normalizedName {
			return &tm.Columns[i]
		}
	}
	return nil
}

// CountByKind returns how many columns have each kind
func (tm *TableMetadata) CountByKind() map[ColumnKind]int {
	counts := make(map[ColumnKind]int)
	for _, col := range tm.Columns {
		counts[col.Kind]++
	}
	return counts
}

// IsFreeText checks if a column holds an "other, please specify" answer
// based on the survey's naming pattern
func (col *Column) IsFreeText() bool {
	name := normalizeColumnName(col.OriginalName)
	if name == "" {
		name = normalizeColumnName(col.Name)
	}
	return strings.HasSuffix(name, "_other_text") || strings.HasSuffix(name, "_text")
}

func normalizeColumnName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
