// Package pgx is the PostgreSQL driver backed by jackc/pgx through its
// database/sql adapter.
package pgx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sqlseq/sqlseq/internal/database"
	"github.com/sqlseq/sqlseq/internal/driver/postgres"
)

// Driver implements driver.Driver using pgx.
type Driver struct{}

func NewDriver() *Driver {
	return &Driver{}
}

func (d *Driver) Name() string {
	return "pgx"
}

func (d *Driver) SQLDriverName() string {
	return "pgx"
}

func (d *Driver) Pooled() bool {
	return true
}

// DSN uses the same URL form as lib/pq; pgx parses it natively.
func (d *Driver) DSN(cfg database.ConnectionConfig, databaseName string) (string, error) {
	return postgres.BuildURL(cfg, databaseName)
}

// DescribeError returns the SQLSTATE and server detail of a pgx error.
func (d *Driver) DescribeError(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ""
	}
	parts := []string{fmt.Sprintf("SQLSTATE %s", pgErr.Code)}
	if pgErr.Detail != "" {
		parts = append(parts, "detail: "+pgErr.Detail)
	}
	if pgErr.Hint != "" {
		parts = append(parts, "hint: "+pgErr.Hint)
	}
	if pgErr.Position > 0 {
		parts = append(parts, fmt.Sprintf("position: %d", pgErr.Position))
	}
	return strings.Join(parts, "; ")
}
