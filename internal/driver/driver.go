// Package driver maps connection URLs to database/sql drivers and builds
// the data source name for each (connection, database) pair.
package driver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sqlseq/sqlseq/internal/database"
	"github.com/sqlseq/sqlseq/internal/driver/libsql"
	"github.com/sqlseq/sqlseq/internal/driver/pgx"
	"github.com/sqlseq/sqlseq/internal/driver/postgres"
	"github.com/sqlseq/sqlseq/internal/driver/sqlite"
	"github.com/sqlseq/sqlseq/internal/sqliteutil"
)

// Driver describes one supported engine.
type Driver interface {
	// Name returns the engine name, e.g. "postgres".
	Name() string

	// SQLDriverName returns the name registered with database/sql.
	SQLDriverName() string

	// DSN builds the data source name for database on the connection.
	DSN(cfg database.ConnectionConfig, databaseName string) (string, error)

	// Pooled reports whether connections should share a pool per database.
	// File-backed engines open a fresh handle per acquisition instead.
	Pooled() bool

	// DescribeError returns engine-specific detail for err, or "".
	DescribeError(err error) string
}

// NewDriver creates a driver for the database type.
func NewDriver(databaseType database.DatabaseType) (Driver, error) {
	switch databaseType {
	case database.DatabaseTypePostgres:
		return postgres.NewDriver(), nil
	case database.DatabaseTypePgx:
		return pgx.NewDriver(), nil
	case database.DatabaseTypeSQLite:
		return sqlite.NewDriver(), nil
	case database.DatabaseTypeLibSQL:
		return libsql.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", databaseType)
	}
}

// DetectDriver guesses the database type from a connection URL. Unknown
// URLs are treated as PostgreSQL.
func DetectDriver(connStr string) database.DatabaseType {
	lower := strings.ToLower(strings.TrimSpace(connStr))

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return database.DatabaseTypePostgres
	case strings.HasPrefix(lower, "libsql://"):
		return database.DatabaseTypeLibSQL
	case lower == ":memory:", sqliteutil.IsSQLiteFilePath(lower):
		return database.DatabaseTypeSQLite
	}
	return database.DatabaseTypePostgres
}

// ParseType normalises a configured driver name.
func ParseType(name string) (database.DatabaseType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql":
		return database.DatabaseTypePostgres, nil
	case "pgx":
		return database.DatabaseTypePgx, nil
	case "sqlite", "sqlite3":
		return database.DatabaseTypeSQLite, nil
	case "libsql", "turso":
		return database.DatabaseTypeLibSQL, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", name)
	}
}

// SQLDriverName returns the database/sql driver name for a driver type.
// Unknown types are returned unchanged.
func SQLDriverName(driverType string) string {
	t, err := ParseType(driverType)
	if err != nil {
		return driverType
	}
	d, err := NewDriver(t)
	if err != nil {
		return driverType
	}
	return d.SQLDriverName()
}

// Open opens database on the connection and pings it within timeout.
func Open(ctx context.Context, d Driver, cfg database.ConnectionConfig, databaseName string, timeout time.Duration) (*sql.DB, error) {
	dsn, err := d.DSN(cfg, databaseName)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.SQLDriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
