// pkg/connector/excel.go
package connector

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/David-Botos/survey-etl/pkg/config"
	"github.com/David-Botos/survey-etl/pkg/converter"
	"github.com/David-Botos/survey-etl/pkg/model"
)

// Workbook sheet names
const (
	SheetData    = "Cleaned_Data"
	SheetChanges = "Change_Summary"
	SheetMapping = "Column_Mapping"
)

// ChangeRow is one metric line of the change summary sheet
type ChangeRow struct {
	Metric string
	Value  string
}

// Workbook is everything written to the spreadsheet export
type Workbook struct {
	Table    *model.Table
	Metadata *model.TableMetadata // numeric columns are written as numbers when set
	Changes  []ChangeRow
	Mapping  []config.RenameRule
}

// ExcelWriter writes the cleaned table and its summaries as an .xlsx file
type ExcelWriter struct {
	logger *zap.Logger
}

// NewExcelWriter creates a spreadsheet writer
func NewExcelWriter(logger *zap.Logger) *ExcelWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExcelWriter{logger: logger.Named("excel-writer")}
}

// Write saves the workbook to path, creating parent directories
func (w *ExcelWriter) Write(path string, wb Workbook) (err error) {
	if wb.Table == nil {
		return fmt.Errorf("%w: workbook has no table", ErrOutputWrite)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %v", ErrOutputWrite, cerr)
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetData); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}
	if err := w.writeData(f, wb); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOutputWrite, SheetData, err)
	}

	changes := make([][]interface{}, 0, len(wb.Changes))
	for _, c := range wb.Changes {
		changes = append(changes, []interface{}{c.Metric, c.Value})
	}
	if err := writeSheet(f, SheetChanges, []interface{}{"Metric", "Value"}, changes); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOutputWrite, SheetChanges, err)
	}

	mapping := make([][]interface{}, 0, len(wb.Mapping))
	for _, m := range wb.Mapping {
		mapping = append(mapping, []interface{}{m.From, m.To})
	}
	if err := writeSheet(f, SheetMapping, []interface{}{"Original_Column", "New_Column"}, mapping); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOutputWrite, SheetMapping, err)
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}

	w.logger.Info("Wrote spreadsheet",
		zap.String("path", path),
		zap.Int("rows", wb.Table.NumRows()),
		zap.Int("changes", len(wb.Changes)),
		zap.Int("mappings", len(wb.Mapping)))
	return nil
}

// writeData streams the cleaned rows into the data sheet
func (w *ExcelWriter) writeData(f *excelize.File, wb Workbook) error {
	sw, err := f.NewStreamWriter(SheetData)
	if err != nil {
		return err
	}

	numeric := make([]bool, wb.Table.NumColumns())
	if wb.Metadata != nil && len(wb.Metadata.Columns) == len(numeric) {
		for i, col := range wb.Metadata.Columns {
			numeric[i] = col.Kind == model.KindNumeric
		}
	}

	header := make([]interface{}, len(wb.Table.Columns))
	for i, name := range wb.Table.Columns {
		header[i] = name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for r, row := range wb.Table.Rows {
		values := make([]interface{}, len(row))
		for i, cell := range row {
			switch {
			case !cell.Valid:
				values[i] = nil
			case numeric[i]:
				if v, ok := converter.ParseNumber(cell.Value); ok {
					values[i] = v
				} else {
					values[i] = cell.Value
				}
			default:
				values[i] = cell.Value
			}
		}
		addr, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(addr, values); err != nil {
			return err
		}
	}

	return sw.Flush()
}

func writeSheet(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, addr, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}
