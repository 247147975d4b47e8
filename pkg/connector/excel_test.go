package connector

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/David-Botos/survey-etl/pkg/config"
	"github.com/David-Botos/survey-etl/pkg/model"
)

func TestExcelWriter_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "survey_cleaned.xlsx")

	tbl := model.NewTable([]string{"Respondent_Age", "Survey_Duration_Seconds"})
	require.NoError(t, tbl.AppendRow([]model.Cell{model.String("22-24"), model.String("510")}))
	require.NoError(t, tbl.AppendRow([]model.Cell{model.String("30-34"), model.String("12.5")}))
	md := &model.TableMetadata{Columns: []model.Column{
		{Name: "Respondent_Age", Kind: model.KindText},
		{Name: "Survey_Duration_Seconds", Kind: model.KindNumeric},
	}}

	wb := Workbook{
		Table:    tbl,
		Metadata: md,
		Changes: []ChangeRow{
			{Metric: "Rows before", Value: "3"},
			{Metric: "Rows after", Value: "2"},
		},
		Mapping: []config.RenameRule{{From: "Q1", To: "Respondent_Age"}},
	}
	require.NoError(t, NewExcelWriter(zap.NewNop()).Write(path, wb))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetData, SheetChanges, SheetMapping}, f.GetSheetList())

	rows, err := f.GetRows(SheetData)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Respondent_Age", "Survey_Duration_Seconds"},
		{"22-24", "510"},
		{"30-34", "12.5"},
	}, rows)

	cellType, err := f.GetCellType(SheetData, "B2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, cellType)
	assert.NotEqual(t, excelize.CellTypeInlineString, cellType)

	changes, err := f.GetRows(SheetChanges)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Metric", "Value"}, {"Rows before", "3"}, {"Rows after", "2"}}, changes)

	mapping, err := f.GetRows(SheetMapping)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Original_Column", "New_Column"}, {"Q1", "Respondent_Age"}}, mapping)
}

func TestExcelWriter_NoTable(t *testing.T) {
	err := NewExcelWriter(zap.NewNop()).Write(filepath.Join(t.TempDir(), "x.xlsx"), Workbook{})
	assert.ErrorIs(t, err, ErrOutputWrite)
}
