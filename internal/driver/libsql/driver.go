// Package libsql is the libSQL/Turso driver. A libSQL URL addresses a single
// database, so the configured database names only label it.
package libsql

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sqlseq/sqlseq/internal/database"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// Driver implements driver.Driver for libSQL.
type Driver struct{}

func NewDriver() *Driver {
	return &Driver{}
}

func (d *Driver) Name() string {
	return "libsql"
}

func (d *Driver) SQLDriverName() string {
	return "libsql"
}

func (d *Driver) Pooled() bool {
	return true
}

// DSN returns the connection URL with the auth token attached. The token
// comes from the authToken property or, failing that, the password.
func (d *Driver) DSN(cfg database.ConnectionConfig, databaseName string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil {
		return "", fmt.Errorf("invalid connection url for %q: %w", cfg.ID, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid connection url for %q: expected libsql://host", cfg.ID)
	}

	q := u.Query()
	for k, v := range cfg.Properties {
		q.Set(k, v)
	}
	if q.Get("authToken") == "" && cfg.Password != "" {
		q.Set("authToken", cfg.Password)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DescribeError has no structured errors to unpack for libSQL.
func (d *Driver) DescribeError(error) string {
	return ""
}
