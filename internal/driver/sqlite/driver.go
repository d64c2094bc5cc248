// Package sqlite is the file-backed SQLite driver (modernc.org/sqlite).
package sqlite

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/sqlseq/sqlseq/internal/database"
	"github.com/sqlseq/sqlseq/internal/sqliteutil"
	sqlite3 "modernc.org/sqlite"
)

// Driver implements driver.Driver for SQLite files. A connection URL names a
// directory and each database is a file inside it.
type Driver struct{}

func NewDriver() *Driver {
	return &Driver{}
}

func (d *Driver) Name() string {
	return "sqlite"
}

func (d *Driver) SQLDriverName() string {
	return sqliteutil.DriverName
}

// Pooled is false: SQLite files are opened directly per acquisition.
func (d *Driver) Pooled() bool {
	return false
}

// DSN returns the database file path, with properties as query parameters
// (e.g. _pragma=busy_timeout(5000)). The file must already exist.
func (d *Driver) DSN(cfg database.ConnectionConfig, databaseName string) (string, error) {
	path := sqliteutil.DatabaseFile(cfg.URL, databaseName)

	exists, _, err := sqliteutil.CheckSQLiteDatabase(path)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("sqlite database file does not exist: %s", path)
	}

	if len(cfg.Properties) == 0 {
		return path, nil
	}
	q := url.Values{}
	for k, v := range cfg.Properties {
		q.Add(k, v)
	}
	return path + "?" + q.Encode(), nil
}

// DescribeError returns the SQLite result code of err.
func (d *Driver) DescribeError(err error) string {
	var sqliteErr *sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return ""
	}
	return fmt.Sprintf("sqlite code %d", sqliteErr.Code())
}
