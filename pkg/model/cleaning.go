// pkg/model/cleaning.go
package model

import (
	"time"
)

// Cleaning operation names recorded in the audit trail
const (
	OpDeduplicate     = "deduplicate"
	OpDropColumn      = "drop_column"
	OpNumericCoercion = "numeric_coercion"
	OpImputeText      = "impute_text"
	OpImputeMedian    = "impute_median"
	OpImputeFallback  = "impute_fallback"
	OpTrim            = "trim_whitespace"
	OpLowercase       = "lowercase"
	OpRename          = "rename_column"
	OpDeriveBucket    = "derive_bucket"
)

// CleaningOperation represents a single column-level cleaning operation
type CleaningOperation struct {
	RunID         string    // Pipeline run that performed the operation
	ColumnName    string    // Column that was cleaned (empty for row operations)
	OriginalValue *string   // Original value or name, when one applies
	NewValue      string    // Value or name after cleaning
	AffectedRows  int       // Number of cells or rows touched
	Operation     string    // Type of cleaning performed (e.g., "impute_median")
	Reason        string    // Reason for cleaning (e.g., "missing_value")
	CleanedAt     time.Time // When the cleaning occurred
}
