// Package postgres is the PostgreSQL driver backed by lib/pq.
package postgres

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/lib/pq"
	"github.com/sqlseq/sqlseq/internal/database"
)

// Driver implements driver.Driver for PostgreSQL.
type Driver struct{}

// NewDriver creates a new PostgreSQL driver
func NewDriver() *Driver {
	return &Driver{}
}

// Name returns the database driver name
func (d *Driver) Name() string {
	return "postgres"
}

// SQLDriverName returns the name lib/pq registers.
func (d *Driver) SQLDriverName() string {
	return "postgres"
}

// Pooled is true: each database gets a shared pool.
func (d *Driver) Pooled() bool {
	return true
}

// DSN builds the connection URL for a database on the connection.
func (d *Driver) DSN(cfg database.ConnectionConfig, databaseName string) (string, error) {
	return BuildURL(cfg, databaseName)
}

// DescribeError returns the SQLSTATE and server detail of a lib/pq error.
func (d *Driver) DescribeError(err error) string {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return ""
	}
	parts := []string{fmt.Sprintf("SQLSTATE %s (%s)", pqErr.Code, pqErr.Code.Name())}
	if pqErr.Detail != "" {
		parts = append(parts, "detail: "+pqErr.Detail)
	}
	if pqErr.Hint != "" {
		parts = append(parts, "hint: "+pqErr.Hint)
	}
	if pqErr.Position != "" {
		parts = append(parts, "position: "+pqErr.Position)
	}
	return strings.Join(parts, "; ")
}

// BuildURL turns a base server URL into a URL for one database. Credentials
// from the configuration replace any userinfo in the base URL, and
// properties become query parameters.
func BuildURL(cfg database.ConnectionConfig, databaseName string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil {
		return "", fmt.Errorf("invalid connection url for %q: %w", cfg.ID, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid connection url for %q: expected scheme://host[:port]", cfg.ID)
	}

	u.Path = "/" + databaseName
	u.RawPath = ""

	switch {
	case cfg.User != "" && cfg.Password != "":
		u.User = url.UserPassword(cfg.User, cfg.Password)
	case cfg.User != "":
		u.User = url.User(cfg.User)
	}

	if len(cfg.Properties) > 0 {
		q := u.Query()
		keys := make([]string, 0, len(cfg.Properties))
		for k := range cfg.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			q.Set(k, cfg.Properties[k])
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}
