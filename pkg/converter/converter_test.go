package converter

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/survey-etl/pkg/model"
)

func newTestConverter() *TypeConverter {
	return NewTypeConverter(zap.NewNop())
}

func TestTypeConverter_ParseCell(t *testing.T) {
	c := newTestConverter()

	for _, raw := range []string{"", "NA", "N/A", "null", "NaN", "   "} {
		assert.True(t, c.ParseCell(raw).IsNull(), "expected %q to be missing", raw)
	}
	assert.Equal(t, model.String(" 22-24 "), c.ParseCell(" 22-24 "))
	assert.Equal(t, model.String("Nothing"), c.ParseCell("Nothing"))
}

func TestTypeConverter_ParseCellKeepsWhitespaceWhenConfigured(t *testing.T) {
	c := NewTypeConverterWithConfig(zap.NewNop(), TypeConverterConfig{NullTokens: []string{""}})
	assert.Equal(t, model.String("  "), c.ParseCell("  "))
	assert.Equal(t, model.String("NA"), c.ParseCell("NA"))
	assert.True(t, c.ParseCell("").IsNull())
}

func TestTypeConverter_InferKind(t *testing.T) {
	c := newTestConverter()

	tests := []struct {
		name  string
		cells []model.Cell
		want  model.ColumnKind
	}{
		{"all numbers", []model.Cell{model.String("1"), model.String("2.5"), model.Null()}, model.KindNumeric},
		{"one text value", []model.Cell{model.String("1"), model.String("abc")}, model.KindText},
		{"all missing", []model.Cell{model.Null(), model.Null()}, model.KindText},
		{"empty", nil, model.KindText},
		{"range labels", []model.Cell{model.String("0-1"), model.String("5-10")}, model.KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.InferKind(tt.cells))
		})
	}
}

func TestTypeConverter_CoerceNumeric(t *testing.T) {
	c := newTestConverter()

	cells := []model.Cell{model.String("510"), model.String(" 12.50 "), model.String("oops"), model.Null()}
	out, coerced := c.CoerceNumeric("duration", cells)

	assert.Equal(t, 1, coerced)
	assert.Equal(t, []model.Cell{model.String("510"), model.String("12.5"), model.Null(), model.Null()}, out)
	assert.Equal(t, model.String("oops"), cells[2], "input is not modified")
}

func TestTypeConverter_InferMetadata(t *testing.T) {
	c := newTestConverter()
	tbl := model.NewTable([]string{"n", "t"})
	require.NoError(t, tbl.AppendRow([]model.Cell{model.String("1"), model.Null()}))
	require.NoError(t, tbl.AppendRow([]model.Cell{model.Null(), model.String("x")}))

	md := c.InferMetadata("in.csv", tbl)
	require.Len(t, md.Columns, 2)
	assert.Equal(t, model.KindNumeric, md.Columns[0].Kind)
	assert.Equal(t, model.KindText, md.Columns[1].Kind)
	assert.Equal(t, 1, md.Columns[1].Missing)
	assert.Equal(t, "in.csv", md.Source)
}

func TestParseNumberAndFormat(t *testing.T) {
	v, ok := ParseNumber("1e3")
	require.True(t, ok)
	assert.Equal(t, "1000", FormatNumber(v))

	_, ok = ParseNumber("Inf")
	assert.False(t, ok)
	_, ok = ParseNumber("")
	assert.False(t, ok)

	assert.Equal(t, "2.5", FormatNumber(2.5))
	assert.Equal(t, "0", FormatNumber(-0.0))
}

func TestTypeConverter_ConvertRowForSQL(t *testing.T) {
	c := newTestConverter()
	cols := []model.Column{{Name: "a", Kind: model.KindNumeric}, {Name: "b", Kind: model.KindText}}

	values, err := c.ConvertRowForSQL([]model.Cell{model.String("4.5"), model.Null()}, cols)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{4.5, nil}, values)

	_, err = c.ConvertRowForSQL([]model.Cell{model.String("x"), model.String("y")}, cols)
	assert.Error(t, err)

	_, err = c.ConvertRowForSQL([]model.Cell{model.String("1")}, cols)
	assert.Error(t, err)
}

func TestTypeConverter_GenerateColumnDefinitions(t *testing.T) {
	c := newTestConverter()
	md := &model.TableMetadata{Columns: []model.Column{
		{Name: "Survey_Duration_Seconds", Kind: model.KindNumeric},
		{Name: `Say "hi"`, Kind: model.KindText},
	}}

	defs, err := c.GenerateColumnDefinitions(md, "postgres")
	require.NoError(t, err)
	assert.Equal(t, []string{
		`"survey_duration_seconds" DOUBLE PRECISION NULL`,
		`"say ""hi""" TEXT NULL`,
	}, defs)

	defs, err = c.GenerateColumnDefinitions(md, "sqlite")
	require.NoError(t, err)
	assert.Equal(t, `"survey_duration_seconds" REAL NULL`, defs[0])

	clash := &model.TableMetadata{Columns: []model.Column{{Name: "Age"}, {Name: "age"}}}
	_, err = c.GenerateColumnDefinitions(clash, "postgres")
	assert.Error(t, err)
}

func TestNewDecodingReader(t *testing.T) {
	// "Año" in windows-1252
	latin := []byte{'A', 0xF1, 'o'}
	r, err := NewDecodingReader(bytes.NewReader(latin), "windows-1252")
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "Año", string(out))

	bom := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Q1,Q2")...)
	r, err = NewDecodingReader(bytes.NewReader(bom), "")
	require.NoError(t, err)
	out, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "Q1,Q2", string(out))

	_, err = NewDecodingReader(bytes.NewReader(nil), "klingon")
	assert.Error(t, err)
}
