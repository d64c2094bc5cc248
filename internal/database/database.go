// Package database defines connection configuration and the connection
// provider contract shared by the executor and the drivers.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
)

// DatabaseType names a supported engine.
type DatabaseType string

const (
	DatabaseTypePostgres DatabaseType = "postgres"
	DatabaseTypePgx      DatabaseType = "pgx"
	DatabaseTypeSQLite   DatabaseType = "sqlite"
	DatabaseTypeLibSQL   DatabaseType = "libsql"
)

// ConnectionConfig is one named connection with the databases it serves.
type ConnectionConfig struct {
	ID           string
	URL          string
	DatabaseType DatabaseType
	User         string
	Password     string
	Properties   map[string]string
	Databases    []string
}

// HasDatabase reports whether name is one of the connection's databases.
func (c ConnectionConfig) HasDatabase(name string) bool {
	return slices.Contains(c.Databases, name)
}

// Conn is the part of a database connection the executor uses. Both *sql.DB
// and *sql.Conn satisfy it.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	Close() error
}

// Provider hands out connections. Callers close what they receive.
type Provider interface {
	// Resolve returns a connection to database on the named connection.
	Resolve(ctx context.Context, connection, database string) (Conn, error)

	// ResolveEmbedded opens the SQLite file at path, creating it if needed.
	ResolveEmbedded(ctx context.Context, path string) (Conn, error)
}

// LookupError reports a (connection, database) pair that is not configured.
type LookupError struct {
	Connection string
	Database   string
	Suggestion string
}

func (e *LookupError) Error() string {
	var msg string
	if e.Database == "" {
		msg = fmt.Sprintf("unknown connection %q", e.Connection)
	} else {
		msg = fmt.Sprintf("database %q is not configured on connection %q", e.Database, e.Connection)
	}
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}
