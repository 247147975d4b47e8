// pkg/converter/values.go
package converter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/David-Botos/survey-etl/pkg/model"
)

// ParseNumber parses a decimal value. NaN and infinities are rejected.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := cast.ToFloat64E(s)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// FormatNumber renders a number with the shortest exact representation
func FormatNumber(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ConvertValueForSQL converts a cell to a value for database/sql parameters
func (c *TypeConverter) ConvertValueForSQL(cell model.Cell, kind model.ColumnKind, colName string) (interface{}, error) {
	if !cell.Valid {
		return nil, nil
	}

	switch kind {
	case model.KindNumeric:
		v, ok := ParseNumber(cell.Value)
		if !ok {
			return nil, fmt.Errorf("cannot convert %q in column %s to numeric", cell.Value, colName)
		}
		return v, nil
	default:
		return cell.Value, nil
	}
}

// ConvertRowForSQL converts a table row using per-column kinds
func (c *TypeConverter) ConvertRowForSQL(row []model.Cell, columns []model.Column) ([]interface{}, error) {
	if len(row) != len(columns) {
		return nil, fmt.Errorf("row has %d cells, expected %d", len(row), len(columns))
	}
	values := make([]interface{}, len(row))
	for i, cell := range row {
		v, err := c.ConvertValueForSQL(cell, columns[i].Kind, columns[i].Name)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}
