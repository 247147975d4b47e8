// pkg/converter/converter.go
package converter

import (
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/survey-etl/pkg/model"
)

// TypeConverter turns raw CSV strings into cells and infers column kinds
type TypeConverter struct {
	logger *zap.Logger
	// Configuration options
	config TypeConverterConfig
	nulls  map[string]struct{}
}

// TypeConverterConfig provides configuration options for type conversion
type TypeConverterConfig struct {
	// Raw values read as missing, matched exactly
	NullTokens []string
	// Whether a value made only of whitespace is missing
	WhitespaceAsNull bool
}

// DefaultNullTokens mirrors the markers common dataframe readers treat as NA
var DefaultNullTokens = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// DefaultConfig returns the default configuration
func DefaultConfig() TypeConverterConfig {
	return TypeConverterConfig{
		NullTokens:       DefaultNullTokens,
		WhitespaceAsNull: true,
	}
}

// NewTypeConverter creates a new TypeConverter with default configuration
func NewTypeConverter(logger *zap.Logger) *TypeConverter {
	return NewTypeConverterWithConfig(logger, DefaultConfig())
}

// NewTypeConverterWithConfig creates a TypeConverter with custom configuration
func NewTypeConverterWithConfig(logger *zap.Logger, config TypeConverterConfig) *TypeConverter {
	if logger == nil {
		logger = zap.NewNop()
	}
	nulls := make(map[string]struct{}, len(config.NullTokens))
	for _, tok := range config.NullTokens {
		nulls[tok] = struct{}{}
	}
	return &TypeConverter{
		logger: logger,
		config: config,
		nulls:  nulls,
	}
}

// ParseCell converts a raw field into a cell, mapping null markers to missing
func (c *TypeConverter) ParseCell(raw string) model.Cell {
	if c.IsNullToken(raw) {
		return model.Null()
	}
	return model.String(raw)
}

// ParseRecord converts a raw CSV record into a row of cells
func (c *TypeConverter) ParseRecord(record []string) []model.Cell {
	row := make([]model.Cell, len(record))
	for i, raw := range record {
		row[i] = c.ParseCell(raw)
	}
	return row
}

// IsNullToken reports whether a raw value should be read as missing
func (c *TypeConverter) IsNullToken(raw string) bool {
	if _, ok := c.nulls[raw]; ok {
		return true
	}
	return c.config.WhitespaceAsNull && strings.TrimSpace(raw) == ""
}

// InferKind returns KindNumeric when the column has at least one present
// value and every present value parses as a number
func (c *TypeConverter) InferKind(cells []model.Cell) model.ColumnKind {
	present := 0
	for _, cell := range cells {
		if !cell.Valid {
			continue
		}
		if _, ok := ParseNumber(cell.Value); !ok {
			return model.KindText
		}
		present++
	}
	if present == 0 {
		return model.KindText
	}
	return model.KindNumeric
}

// InferMetadata builds column metadata for every column of the table
func (c *TypeConverter) InferMetadata(source string, table *model.Table) *model.TableMetadata {
	md := &model.TableMetadata{
		Source:  source,
		Columns: make([]model.Column, 0, table.NumColumns()),
	}
	for i, name := range table.Columns {
		cells, _ := table.Column(name)
		md.Columns = append(md.Columns, model.Column{
			Name:         name,
			OriginalName: name,
			Kind:         c.InferKind(cells),
			Missing:      table.ColumnMissingCount(i),
		})
	}
	return md
}

// CoerceNumeric parses every present cell as a number. Values that do not
// parse become missing; the number of such values is returned.
func (c *TypeConverter) CoerceNumeric(column string, cells []model.Cell) ([]model.Cell, int) {
	out := make([]model.Cell, len(cells))
	coerced := 0
	for i, cell := range cells {
		if !cell.Valid {
			out[i] = cell
			continue
		}
		v, ok := ParseNumber(cell.Value)
		if !ok {
			out[i] = model.Null()
			coerced++
			continue
		}
		out[i] = model.String(FormatNumber(v))
	}

	if coerced > 0 {
		c.logger.Debug("Coerced unparsable values to missing",
			zap.String("column", column),
			zap.Int("count", coerced))
	}
	return out, coerced
}
