package scriptrunner

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
)

// Status is the recorded result of one attempt.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

// failurePlaceholder is stored when diagnostics are not persisted.
const failurePlaceholder = "Script execution failed"

// HistoryRecord is one row of the history table.
type HistoryRecord struct {
	ScriptName   string    `db:"script_name"`
	AppliedOn    time.Time `db:"applied_on"`
	Status       Status    `db:"status"`
	ErrorMessage string    `db:"error_message"`
}

// HistoryStore records which scripts have been attempted and with what result.
//
// The table is an append-only log keyed on (ScriptName, AppliedOn): a script
// that failed and is later retried gets a second row. HasSucceeded only looks
// for the existence of a Success row.
type HistoryStore interface {
	EnsureSchema(ctx context.Context) error
	HasSucceeded(ctx context.Context, scriptName string) (bool, error)
	RecordOutcome(ctx context.Context, scriptName string, succeeded bool, errorDetail string) error
	Records(ctx context.Context) ([]HistoryRecord, error)
	DropSchema(ctx context.Context) error
}

// NewHistoryStore creates the HistoryStore for cfg.Driver on top of db.
func NewHistoryStore(cfg Config, db *sql.DB) (HistoryStore, error) {
	var d dialect
	switch cfg.Driver {
	case DriverSQLServer:
		d = sqlServerDialect{}
	case DriverPostgres:
		d = postgresDialect{}
	case DriverSQLite:
		d = sqliteDialect{}
	default:
		return nil, fmt.Errorf("%w: db driver '%s' not supported. Must be one of: sqlserver, pg or sqlite3", ErrConfiguration, cfg.Driver)
	}
	table := cfg.HistoryTable
	if table == "" {
		table = DefaultConfig.HistoryTable
	}
	return &sqlHistoryStore{
		db:      db,
		table:   table,
		dialect: d,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// dialect supplies the statements that differ between databases.
type dialect interface {
	placeholder() sq.PlaceholderFormat
	createTableSql(table string) string
	dropTableSql(table string) string
}

type sqlHistoryStore struct {
	db      *sql.DB
	table   string
	dialect dialect
	now     func() time.Time

	mu      sync.Mutex
	ensured bool
}

func (s *sqlHistoryStore) builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(s.dialect.placeholder())
}

// EnsureSchema creates the history table if it does not exist yet.
func (s *sqlHistoryStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.createTableSql(s.table)); err != nil {
		return fmt.Errorf("%w: create table %s: %w", ErrHistoryWriteFailed, s.table, err)
	}
	s.mu.Lock()
	s.ensured = true
	s.mu.Unlock()
	return nil
}

// ensure runs EnsureSchema once per store; a failed attempt is retried on the next call.
func (s *sqlHistoryStore) ensure(ctx context.Context) error {
	s.mu.Lock()
	done := s.ensured
	s.mu.Unlock()
	if done {
		return nil
	}
	return s.EnsureSchema(ctx)
}

// HasSucceeded reports whether scriptName has at least one Success row.
func (s *sqlHistoryStore) HasSucceeded(ctx context.Context, scriptName string) (bool, error) {
	if err := s.ensure(ctx); err != nil {
		return false, err
	}
	query, args, err := s.builder().
		Select("COUNT(1)").
		From(s.table).
		Where(sq.Eq{"ScriptName": scriptName, "Status": string(StatusSuccess)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("%w: build query: %w", ErrHistoryQueryFailed, err)
	}
	var count sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrHistoryQueryFailed, scriptName, err)
	}
	if !count.Valid {
		return false, fmt.Errorf("%w: %s: query returned no count", ErrHistoryQueryFailed, scriptName)
	}
	return count.Int64 > 0, nil
}

// RecordOutcome appends one row for an attempt. errorDetail is ignored on success.
func (s *sqlHistoryStore) RecordOutcome(ctx context.Context, scriptName string, succeeded bool, errorDetail string) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}
	status := StatusSuccess
	message := ""
	if !succeeded {
		status = StatusFailed
		message = errorDetail
		if message == "" {
			message = failurePlaceholder
		}
	}
	query, args, err := s.builder().
		Insert(s.table).
		Columns("ScriptName", "AppliedOn", "Status", "ErrorMessage").
		Values(scriptName, s.now(), string(status), message).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: build insert: %w", ErrHistoryWriteFailed, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrHistoryWriteFailed, scriptName, err)
	}
	return nil
}

// Records returns every row ordered by attempt time.
func (s *sqlHistoryStore) Records(ctx context.Context) ([]HistoryRecord, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	query, args, err := s.builder().
		Select(
			"ScriptName AS script_name",
			"AppliedOn AS applied_on",
			"Status AS status",
			"ErrorMessage AS error_message",
		).
		From(s.table).
		OrderBy("AppliedOn", "ScriptName").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build query: %w", ErrHistoryQueryFailed, err)
	}
	var records []HistoryRecord
	if err := sqlscan.Select(ctx, s.db, &records, query, args...); err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrHistoryQueryFailed, s.table, err)
	}
	return records, nil
}

// DropSchema drops the history table.
func (s *sqlHistoryStore) DropSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.dropTableSql(s.table)); err != nil {
		return fmt.Errorf("%w: drop table %s: %w", ErrHistoryWriteFailed, s.table, err)
	}
	s.mu.Lock()
	s.ensured = false
	s.mu.Unlock()
	return nil
}
