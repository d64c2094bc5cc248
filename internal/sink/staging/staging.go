// Package staging stores step results in an embedded SQLite file so that a
// post-sequence query can join across them.
package staging

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sqlseq/sqlseq/internal/database"
	"github.com/sqlseq/sqlseq/internal/sink"
)

// Session is an open staging store.
type Session struct {
	conn   database.Conn
	path   string
	logger *slog.Logger
}

var _ sink.Writer = (*Session)(nil)

// Open opens (creating if needed) the staging file at path.
func Open(ctx context.Context, provider database.Provider, path string, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := provider.ResolveEmbedded(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open staging store: %w", err)
	}
	return &Session{conn: conn, path: path, logger: logger}, nil
}

// Path returns the staging file path.
func (s *Session) Path() string {
	return s.path
}

// Write creates a table named resultID and inserts every row in a single
// transaction.
func (s *Session) Write(ctx context.Context, resultID string, rows sink.Rows) error {
	cols, err := sink.Columns(rows)
	if err != nil {
		return err
	}

	types := make([]string, len(cols))
	defs := make([]string, len(cols))
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		types[i] = sink.StagingType(c.DatabaseType)
		names[i] = QuoteIdent(c.Name)
		defs[i] = strings.TrimSpace(names[i] + " " + types[i])
		marks[i] = "?"
	}

	table := QuoteIdent(resultID)
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("failed to create staging table %q: %w", resultID, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	count := 0
	for rows.Next() {
		values, err := sink.ScanRow(rows, len(cols))
		if err != nil {
			return err
		}
		for i, v := range values {
			values[i] = sink.StagingValue(v, types[i])
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("failed to insert into %q: %w", resultID, err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit staging table %q: %w", resultID, err)
	}
	s.logger.Debug("staged result", "result", resultID, "rows", count, "columns", len(cols))
	return nil
}

// Tables lists staged tables in creation order.
func (s *Session) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to list staging tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Query runs sql against the staging store.
func (s *Session) Query(ctx context.Context, query string) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, query)
}

// QueryTable selects every row of a staged table.
func (s *Session) QueryTable(ctx context.Context, table string) (*sql.Rows, error) {
	return s.Query(ctx, "SELECT * FROM "+QuoteIdent(table))
}

// Close releases the staging connection. The file is left on disk.
func (s *Session) Close() error {
	return s.conn.Close()
}

// QuoteIdent quotes name as a SQLite identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
