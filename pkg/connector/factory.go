// pkg/connector/factory.go
package connector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/David-Botos/survey-etl/pkg/config"
	"github.com/David-Botos/survey-etl/pkg/converter"
)

// ConnectorFactory creates the sources, writers and sinks of a run
type ConnectorFactory struct {
	cfg       *config.Config
	logger    *zap.Logger
	converter *converter.TypeConverter
}

// NewConnectorFactory creates a new connector factory
func NewConnectorFactory(cfg *config.Config, logger *zap.Logger, conv *converter.TypeConverter) *ConnectorFactory {
	return &ConnectorFactory{
		cfg:       cfg,
		logger:    logger,
		converter: conv,
	}
}

// CreateSource creates the CSV source for the configured input
func (f *ConnectorFactory) CreateSource() (*CSVSource, error) {
	source, err := NewCSVSource(f.logger, f.converter, f.cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV source: %w", err)
	}
	return source, nil
}

// CreateCSVWriter creates the CSV writer
func (f *ConnectorFactory) CreateCSVWriter() *CSVWriter {
	return NewCSVWriter(f.logger)
}

// CreateExcelWriter creates the spreadsheet writer
func (f *ConnectorFactory) CreateExcelWriter() *ExcelWriter {
	return NewExcelWriter(f.logger)
}

// CreateSink opens the configured SQL sink. It returns ErrSinkDisabled when
// no driver is set.
func (f *ConnectorFactory) CreateSink(ctx context.Context) (Sink, error) {
	if !f.cfg.Sink.Enabled() {
		return nil, ErrSinkDisabled
	}

	f.logger.Info("Creating SQL sink", zap.String("driver", f.cfg.Sink.Driver))
	sink, err := NewSQLSink(ctx, &f.cfg.Sink, f.logger, f.converter)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s sink: %w", f.cfg.Sink.Driver, err)
	}
	return sink, nil
}
