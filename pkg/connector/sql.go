// pkg/connector/sql.go
package connector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/David-Botos/survey-etl/pkg/config"
	"github.com/David-Botos/survey-etl/pkg/converter"
	"github.com/David-Botos/survey-etl/pkg/model"
)

// maxBindParams keeps multi-row inserts under every supported driver's
// parameter limit
const maxBindParams = 30000

const statementTimeout = 60 * time.Second

// SQLSink writes the cleaned table and audit trail through database/sql
type SQLSink struct {
	db        *sqlx.DB
	logger    *zap.Logger
	cfg       *config.SinkConfig
	converter *converter.TypeConverter
}

// NewSQLSink opens and verifies a connection for the configured driver
func NewSQLSink(ctx context.Context, cfg *config.SinkConfig, logger *zap.Logger, conv *converter.TypeConverter) (*SQLSink, error) {
	if cfg == nil || !cfg.Enabled() {
		return nil, ErrSinkDisabled
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if conv == nil {
		return nil, errors.New("type converter cannot be nil")
	}
	logger = logger.Named("sql-sink")

	dsn, err := cfg.DSN()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSink, err)
	}

	logger.Info("Connecting to sink database",
		zap.String("driver", cfg.Driver),
		zap.String("table", cfg.Table))

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize %s connection: %v", ErrSink, cfg.Driver, err)
	}

	if cfg.Driver == config.DriverSQLite {
		// every sqlite connection to ":memory:" is a separate database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		ApplyConnectionSettings(db.DB, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime, cfg.ConnMaxIdleTime)
	}

	if err := PingWithTimeout(ctx, db.DB, 10*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to connect to %s: %v", ErrSink, cfg.Driver, err)
	}

	LogConnectionStats(logger, cfg.Driver, db.DB)
	return &SQLSink{
		db:        db,
		logger:    logger,
		cfg:       cfg,
		converter: conv,
	}, nil
}

// DB returns the underlying connection
func (s *SQLSink) DB() *sqlx.DB {
	return s.db
}

// Close closes the database connection
func (s *SQLSink) Close() error {
	s.logger.Info("Closing sink connection")
	LogConnectionStats(s.logger, s.cfg.Driver, s.db.DB)
	return s.db.Close()
}

// WriteTable drops and recreates the destination table, then inserts every
// row in batches inside one transaction
func (s *SQLSink) WriteTable(ctx context.Context, table *model.Table, metadata *model.TableMetadata) (int64, error) {
	if table == nil || metadata == nil {
		return 0, errors.New("table and metadata are required")
	}
	if len(metadata.Columns) != table.NumColumns() {
		return 0, fmt.Errorf("%w: metadata has %d columns, table has %d", ErrSink, len(metadata.Columns), table.NumColumns())
	}

	defs, err := s.converter.GenerateColumnDefinitions(metadata, s.cfg.Driver)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSink, err)
	}

	tableName := converter.QuoteIdentifier(s.cfg.Table)
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin transaction: %v", ErrSink, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.NamedError("cause", err))
			}
		}
	}()

	if _, err = s.execWithTimeout(ctx, tx, "DROP TABLE IF EXISTS "+tableName); err != nil {
		return 0, fmt.Errorf("%w: failed to drop table %s: %v", ErrSink, s.cfg.Table, err)
	}

	createSQL := fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", tableName, strings.Join(defs, ",\n\t"))
	if _, err = s.execWithTimeout(ctx, tx, createSQL); err != nil {
		return 0, fmt.Errorf("%w: failed to create table %s: %v", ErrSink, s.cfg.Table, err)
	}

	var inserted int64
	inserted, err = s.batchInsert(ctx, tx, tableName, metadata, table.Rows)
	if err != nil {
		return inserted, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: failed to commit transaction: %v", ErrSink, err)
	}

	s.logger.Info("Wrote cleaned table",
		zap.String("table", s.cfg.Table),
		zap.Int64("rows", inserted))
	return inserted, nil
}

// batchSize caps rows per statement so the parameter count stays bounded
func (s *SQLSink) batchSize(columns int) int {
	size := s.cfg.BatchSize
	if size <= 0 {
		size = 500
	}
	if columns > 0 && size*columns > maxBindParams {
		size = maxBindParams / columns
	}
	if size < 1 {
		size = 1
	}
	return size
}

func (s *SQLSink) batchInsert(ctx context.Context, tx *sqlx.Tx, tableName string, metadata *model.TableMetadata, rows [][]model.Cell) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	columns := make([]string, len(metadata.Columns))
	for i, col := range metadata.Columns {
		columns[i] = converter.QuoteIdentifier(col.Name)
	}
	columnStr := strings.Join(columns, ", ")
	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	batchSize := s.batchSize(len(columns))
	var total int64

	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[i:end]

		placeholders := make([]string, len(batch))
		args := make([]interface{}, 0, len(batch)*len(columns))
		for j, row := range batch {
			values, err := s.converter.ConvertRowForSQL(row, metadata.Columns)
			if err != nil {
				return total, fmt.Errorf("%w: row %d: %v", ErrSink, i+j, err)
			}
			placeholders[j] = rowPlaceholder
			args = append(args, values...)
		}

		query := tx.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			tableName, columnStr, strings.Join(placeholders, ", ")))

		result, err := s.execWithTimeout(ctx, tx, query, args...)
		if err != nil {
			return total, fmt.Errorf("%w: batch insert failed: %v", ErrSink, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			s.logger.Warn("Couldn't get rows affected", zap.Error(err))
			affected = int64(len(batch))
		}
		total += affected

		s.logger.Debug("Inserted batch",
			zap.Int("offset", i),
			zap.Int("rows", len(batch)))
	}

	return total, nil
}

// RecordCleaningOperations batch inserts cleaning operations into the audit table
func (s *SQLSink) RecordCleaningOperations(ctx context.Context, operations []model.CleaningOperation) (err error) {
	if len(operations) == 0 {
		return nil
	}

	auditTable := converter.QuoteIdentifier(s.cfg.AuditTable)
	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			column_name TEXT,
			operation TEXT NOT NULL,
			reason TEXT NOT NULL,
			affected_rows INTEGER NOT NULL,
			original_value TEXT,
			new_value TEXT,
			cleaned_at TIMESTAMP NOT NULL
		)`, auditTable)
	if _, err := s.execWithTimeout(ctx, s.db, createSQL); err != nil {
		return fmt.Errorf("%w: failed to create audit table: %v", ErrSink, err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", ErrSink, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.NamedError("cause", err))
			}
		}
	}()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(fmt.Sprintf(`
		INSERT INTO %s
		(run_id, seq, column_name, operation, reason, affected_rows, original_value, new_value, cleaned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, auditTable)))
	if err != nil {
		return fmt.Errorf("%w: failed to prepare statement: %v", ErrSink, err)
	}
	defer stmt.Close()

	for i, op := range operations {
		_, err = stmt.ExecContext(ctx,
			op.RunID,
			i+1,
			toNullableString(&op.ColumnName),
			op.Operation,
			op.Reason,
			op.AffectedRows,
			toNullableString(op.OriginalValue),
			op.NewValue,
			op.CleanedAt,
		)
		if err != nil {
			return fmt.Errorf("%w: failed to insert cleaning operation: %v", ErrSink, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", ErrSink, err)
	}

	s.logger.Info("Recorded cleaning operations", zap.Int("count", len(operations)))
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *SQLSink) execWithTimeout(ctx context.Context, e execer, query string, args ...interface{}) (sql.Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, statementTimeout)
	defer cancel()
	return e.ExecContext(queryCtx, query, args...)
}

func toNullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
