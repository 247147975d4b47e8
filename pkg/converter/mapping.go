// pkg/converter/mapping.go
package converter

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/David-Botos/survey-etl/pkg/model"
)

// MapKindToSQL returns the column type used for a kind on the given driver
func (c *TypeConverter) MapKindToSQL(kind model.ColumnKind, driver string) string {
	switch kind {
	case model.KindNumeric:
		if driver == "sqlite" {
			return "REAL"
		}
		return "DOUBLE PRECISION"
	case model.KindText:
		return "TEXT"
	default:
		c.logger.Warn("Unknown column kind encountered",
			zap.Int("kind", int(kind)),
			zap.String("driver", driver))
		return "TEXT"
	}
}

// GenerateColumnDefinitions creates column definitions for a CREATE TABLE
func (c *TypeConverter) GenerateColumnDefinitions(metadata *model.TableMetadata, driver string) ([]string, error) {
	if metadata == nil || len(metadata.Columns) == 0 {
		return nil, fmt.Errorf("no columns to define")
	}

	definitions := make([]string, 0, len(metadata.Columns))
	seen := make(map[string]string, len(metadata.Columns))
	for _, col := range metadata.Columns {
		quoted := QuoteIdentifier(col.Name)
		if prev, ok := seen[quoted]; ok {
			return nil, fmt.Errorf("columns %q and %q map to the same identifier %s", prev, col.Name, quoted)
		}
		seen[quoted] = col.Name

		definitions = append(definitions, fmt.Sprintf("%s %s NULL",
			quoted,
			c.MapKindToSQL(col.Kind, driver)))
	}

	return definitions, nil
}

// QuoteIdentifier quotes and escapes an identifier, folding it to lower case
func QuoteIdentifier(name string) string {
	return fmt.Sprintf("\"%s\"", strings.ToLower(strings.ReplaceAll(name, "\"", "\"\"")))
}
