// pkg/connector/csv.go
package connector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/David-Botos/survey-etl/pkg/config"
	"github.com/David-Botos/survey-etl/pkg/converter"
	"github.com/David-Botos/survey-etl/pkg/model"
)

const cancelCheckInterval = 1000

// CSVSource loads a delimited survey export into a table
type CSVSource struct {
	logger    *zap.Logger
	converter *converter.TypeConverter
	cfg       config.InputConfig
}

// NewCSVSource creates a CSV source for the given input settings
func NewCSVSource(logger *zap.Logger, conv *converter.TypeConverter, cfg config.InputConfig) (*CSVSource, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if conv == nil {
		return nil, errors.New("type converter cannot be nil")
	}
	return &CSVSource{
		logger:    logger.Named("csv-source"),
		converter: conv,
		cfg:       cfg,
	}, nil
}

// ResolvePath returns the configured path, or the most recently modified
// file matching the configured pattern when no path is set
func (s *CSVSource) ResolvePath() (string, error) {
	if s.cfg.Path != "" {
		info, err := os.Stat(s.cfg.Path)
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w: %s", ErrInputNotFound, s.cfg.Path)
			}
			return "", fmt.Errorf("failed to stat input: %w", err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("%w: %s is a directory", ErrInputNotFound, s.cfg.Path)
		}
		return s.cfg.Path, nil
	}

	matches, err := filepath.Glob(s.cfg.Pattern)
	if err != nil {
		return "", fmt.Errorf("invalid input pattern %q: %w", s.cfg.Pattern, err)
	}

	var newest string
	var newestInfo os.FileInfo
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if newestInfo == nil ||
			info.ModTime().After(newestInfo.ModTime()) ||
			(info.ModTime().Equal(newestInfo.ModTime()) && m > newest) {
			newest, newestInfo = m, info
		}
	}
	if newest == "" {
		return "", fmt.Errorf("%w: no file matches %q", ErrInputNotFound, s.cfg.Pattern)
	}

	s.logger.Info("Resolved input file",
		zap.String("pattern", s.cfg.Pattern),
		zap.String("path", newest),
		zap.Int("candidates", len(matches)))
	return newest, nil
}

// Peek reads the header and at most n data rows, validating field counts
func (s *CSVSource) Peek(ctx context.Context, path string, n int) (*model.Table, error) {
	return s.read(ctx, path, n)
}

// Load reads the whole file into memory
func (s *CSVSource) Load(ctx context.Context, path string) (*model.Table, error) {
	table, err := s.read(ctx, path, -1)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Loaded input file",
		zap.String("path", path),
		zap.Int("rows", table.NumRows()),
		zap.Int("columns", table.NumColumns()))
	return table, nil
}

// read parses up to limit data rows; a negative limit reads everything
func (s *CSVSource) read(ctx context.Context, path string, limit int) (*model.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	decoded, err := converter.NewDecodingReader(f, s.cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	r := csv.NewReader(decoded)
	r.Comma = s.delimiter()
	r.FieldsPerRecord = 0

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s is empty", ErrMalformedInput, path)
		}
		return nil, wrapParseError(err)
	}

	table := model.NewTable(uniqueHeader(header))

	for i := 0; i < s.cfg.SkipRows; i++ {
		if _, err := r.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return table, nil
			}
			return nil, wrapParseError(err)
		}
	}

	for limit < 0 || table.NumRows() < limit {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapParseError(err)
		}
		if err := table.AppendRow(s.converter.ParseRecord(record)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}

		if table.NumRows()%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}

	return table, nil
}

func (s *CSVSource) delimiter() rune {
	if s.cfg.Delimiter == "" {
		return ','
	}
	return []rune(s.cfg.Delimiter)[0]
}

func wrapParseError(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return fmt.Errorf("%w: line %d: %v", ErrMalformedInput, parseErr.Line, parseErr.Err)
	}
	return fmt.Errorf("failed to read input: %w", err)
}

// uniqueHeader suffixes repeated column names with .1, .2, ...
func uniqueHeader(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for _, h := range header {
		used[h] = true
	}

	counts := make(map[string]int, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if !seen[h] {
			seen[h] = true
			out[i] = h
			continue
		}
		name := h
		for used[name] {
			counts[h]++
			name = h + "." + strconv.Itoa(counts[h])
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// CSVWriter writes a table as a comma-separated file
type CSVWriter struct {
	logger *zap.Logger
}

// NewCSVWriter creates a CSV writer
func NewCSVWriter(logger *zap.Logger) *CSVWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVWriter{logger: logger.Named("csv-writer")}
}

// Write writes the header and every row to path, creating parent directories
func (w *CSVWriter) Write(path string, table *model.Table) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %v", ErrOutputWrite, cerr)
		}
	}()

	cw := csv.NewWriter(f)
	if err := cw.Write(table.Columns); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}
	if err := cw.WriteAll(table.Records()); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputWrite, err)
	}

	w.logger.Info("Wrote CSV",
		zap.String("path", path),
		zap.Int("rows", table.NumRows()),
		zap.Int("columns", table.NumColumns()))
	return nil
}
