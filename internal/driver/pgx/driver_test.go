package pgx

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sqlseq/sqlseq/internal/database"
)

func TestDSN(t *testing.T) {
	d := NewDriver()
	got, err := d.DSN(database.ConnectionConfig{ID: "w", URL: "postgres://db:5432", User: "u"}, "sales")
	if err != nil {
		t.Fatalf("DSN failed: %v", err)
	}
	if got != "postgres://u@db:5432/sales" {
		t.Errorf("DSN = %q", got)
	}
	if d.SQLDriverName() != "pgx" {
		t.Errorf("SQLDriverName = %q", d.SQLDriverName())
	}
}

func TestDescribeError(t *testing.T) {
	d := NewDriver()
	err := fmt.Errorf("query: %w", &pgconn.PgError{Code: "23505", Detail: "Key (id)=(1) already exists.", Position: 12})

	got := d.DescribeError(err)
	for _, want := range []string{"SQLSTATE 23505", "already exists", "position: 12"} {
		if !strings.Contains(got, want) {
			t.Errorf("description %q does not contain %q", got, want)
		}
	}
}
