// pkg/report/quality.go
package report

import "github.com/David-Botos/survey-etl/pkg/model"

// Quality holds table-level data quality measures
type Quality struct {
	Rows          int
	Columns       int
	MissingCells  int
	DuplicateRows int
	Completeness  float64 // percent of present cells
	Uniqueness    float64 // percent of rows that are not duplicates
}

// MeasureQuality computes completeness and uniqueness of a table
func MeasureQuality(table *model.Table) Quality {
	q := Quality{
		Rows:          table.NumRows(),
		Columns:       table.NumColumns(),
		MissingCells:  table.MissingCount(),
		DuplicateRows: table.DuplicateCount(),
		Completeness:  100,
		Uniqueness:    100,
	}

	cells := q.Rows * q.Columns
	if cells > 0 {
		q.Completeness = float64(cells-q.MissingCells) * 100 / float64(cells)
	}
	if q.Rows > 0 {
		q.Uniqueness = float64(q.Rows-q.DuplicateRows) * 100 / float64(q.Rows)
	}
	return q
}
