package connector

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/survey-etl/pkg/config"
	"github.com/David-Botos/survey-etl/pkg/converter"
	"github.com/David-Botos/survey-etl/pkg/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestSource(t *testing.T, cfg config.InputConfig) *CSVSource {
	t.Helper()
	if cfg.Encoding == "" {
		cfg.Encoding = "utf-8"
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = ","
	}
	src, err := NewCSVSource(zap.NewNop(), converter.NewTypeConverter(zap.NewNop()), cfg)
	require.NoError(t, err)
	return src
}

func TestCSVSource_Load(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "survey.csv",
		"Q1,Q2,Q3\n"+
			"What is your age?,Gender?,Country?\n"+
			"22-24,Male,\n"+
			"\"30-34\",\"Female, other\",France\n")

	src := newTestSource(t, config.InputConfig{Path: path, SkipRows: 1})
	tbl, err := src.Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Q1", "Q2", "Q3"}, tbl.Columns)
	require.Equal(t, 2, tbl.NumRows())
	assert.True(t, tbl.Rows[0][2].IsNull())
	assert.Equal(t, model.String("Female, other"), tbl.Rows[1][1])
}

func TestCSVSource_Peek(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "survey.csv", "A,B\n1,2\n3,4\n5,6\n")

	src := newTestSource(t, config.InputConfig{Path: path})
	tbl, err := src.Peek(context.Background(), path, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.NumRows())
}

func TestCSVSource_FieldCountMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.csv", "A,B\n1,2\n3\n")

	src := newTestSource(t, config.InputConfig{Path: path})
	_, err := src.Load(context.Background(), path)
	assert.ErrorIs(t, err, ErrMalformedInput)
	assert.Contains(t, err.Error(), "line 3")
}

func TestCSVSource_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.csv", "")

	src := newTestSource(t, config.InputConfig{Path: path})
	_, err := src.Load(context.Background(), path)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestCSVSource_HeaderOnly(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "header.csv", "A,B\n")

	src := newTestSource(t, config.InputConfig{Path: path, SkipRows: 1})
	tbl, err := src.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.NumRows())
	assert.Equal(t, []string{"A", "B"}, tbl.Columns)
}

func TestCSVSource_Latin1AndDelimiter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latin.csv")
	// "País;Año\nEspaña;2019\n" in ISO-8859-1
	content := []byte{'P', 'a', 0xED, 's', ';', 'A', 0xF1, 'o', '\n',
		'E', 's', 'p', 'a', 0xF1, 'a', ';', '2', '0', '1', '9', '\n'}
	require.NoError(t, os.WriteFile(path, content, 0o600))

	src := newTestSource(t, config.InputConfig{Path: path, Encoding: "latin1", Delimiter: ";"})
	tbl, err := src.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"País", "Año"}, tbl.Columns)
	assert.Equal(t, model.String("España"), tbl.Rows[0][0])
}

func TestCSVSource_DuplicateHeader(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dup.csv", "A,A,A.1,A\n1,2,3,4\n")

	src := newTestSource(t, config.InputConfig{Path: path})
	tbl, err := src.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "A.2", "A.1", "A.3"}, tbl.Columns)
}

func TestCSVSource_ResolvePath(t *testing.T) {
	dir := t.TempDir()
	older := writeFile(t, dir, "survey_a.csv", "A\n1\n")
	newer := writeFile(t, dir, "survey_b.csv", "A\n1\n")
	writeFile(t, dir, "notes.txt", "x")

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	src := newTestSource(t, config.InputConfig{Pattern: filepath.Join(dir, "*.csv")})
	got, err := src.ResolvePath()
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	explicit := newTestSource(t, config.InputConfig{Path: older})
	got, err = explicit.ResolvePath()
	require.NoError(t, err)
	assert.Equal(t, older, got)
}

func TestCSVSource_ResolvePathNotFound(t *testing.T) {
	dir := t.TempDir()

	src := newTestSource(t, config.InputConfig{Pattern: filepath.Join(dir, "*.csv")})
	_, err := src.ResolvePath()
	assert.ErrorIs(t, err, ErrInputNotFound)

	missing := newTestSource(t, config.InputConfig{Path: filepath.Join(dir, "nope.csv")})
	_, err = missing.ResolvePath()
	assert.ErrorIs(t, err, ErrInputNotFound)

	_, err = missing.Load(context.Background(), filepath.Join(dir, "nope.csv"))
	assert.ErrorIs(t, err, ErrInputNotFound)
}

func TestCSVWriter_Write(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.csv")

	tbl := model.NewTable([]string{"Age", "Comment"})
	require.NoError(t, tbl.AppendRow([]model.Cell{model.String("22-24"), model.String("likes, commas")}))
	require.NoError(t, tbl.AppendRow([]model.Cell{model.String("30-34"), model.Null()}))

	require.NoError(t, NewCSVWriter(zap.NewNop()).Write(path, tbl))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Age", "Comment"},
		{"22-24", "likes, commas"},
		{"30-34", ""},
	}, records)
}

func TestCSVWriter_UnwritableDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := writeFile(t, dir, "file", "x")

	err := NewCSVWriter(zap.NewNop()).Write(filepath.Join(blocker, "out.csv"), model.NewTable([]string{"A"}))
	assert.ErrorIs(t, err, ErrOutputWrite)
}
