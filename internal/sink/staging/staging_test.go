package staging

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sqlseq/sqlseq/internal/database/connection"
	"github.com/sqlseq/sqlseq/internal/sink"
	"github.com/sqlseq/sqlseq/internal/sqliteutil"
)

func openSource(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(sqliteutil.DriverName, filepath.Join(t.TempDir(), "source.db"))
	if err != nil {
		t.Fatalf("failed to open source: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	stmts := []string{
		`CREATE TABLE orders (id INTEGER, amount REAL, note TEXT, created DATETIME, payload BLOB)`,
		`INSERT INTO orders VALUES (1, 9.5, 'first', '2024-01-02 03:04:05', x'00ff')`,
		`INSERT INTO orders VALUES (2, NULL, 'second', NULL, NULL)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("failed to seed source: %v", err)
		}
	}
	return db
}

func openSession(t *testing.T) *Session {
	t.Helper()
	m, err := connection.NewManager(nil, connection.DefaultPoolSettings, nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	s, err := Open(context.Background(), m, filepath.Join(t.TempDir(), "staging", "run.db"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stage(t *testing.T, s *Session, src *sql.DB, id, query string) {
	t.Helper()
	ctx := context.Background()
	rows, err := src.QueryContext(ctx, query)
	if err != nil {
		t.Fatalf("source query failed: %v", err)
	}
	defer func() { _ = rows.Close() }()
	if err := s.Write(ctx, id, rows); err != nil {
		t.Fatalf("Write(%s) failed: %v", id, err)
	}
}

func TestWriteAndQuery(t *testing.T) {
	src := openSource(t)
	s := openSession(t)
	ctx := context.Background()

	stage(t, s, src, "orders", "SELECT id, amount, note FROM orders ORDER BY id")
	stage(t, s, src, "big orders", "SELECT id FROM orders WHERE amount > 1")

	tables, err := s.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables failed: %v", err)
	}
	if diff := cmp.Diff([]string{"orders", "big orders"}, tables); diff != "" {
		t.Errorf("Tables mismatch (-want +got):\n%s", diff)
	}

	rows, err := s.Query(ctx, `SELECT o.note FROM orders o JOIN "big orders" b ON b.id = o.id`)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var notes []string
	for rows.Next() {
		var note string
		if err := rows.Scan(&note); err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	if diff := cmp.Diff([]string{"first"}, notes); diff != "" {
		t.Errorf("join mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteKeepsValues(t *testing.T) {
	src := openSource(t)
	s := openSession(t)
	ctx := context.Background()

	stage(t, s, src, "orders", "SELECT id, amount, note, payload FROM orders ORDER BY id")

	rows, err := s.QueryTable(ctx, "orders")
	if err != nil {
		t.Fatalf("QueryTable failed: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var got [][]string
	for rows.Next() {
		values, err := sink.ScanRow(rows, 4)
		if err != nil {
			t.Fatalf("ScanRow failed: %v", err)
		}
		line := make([]string, len(values))
		for i, v := range values {
			line[i] = sink.Display(v)
		}
		got = append(got, line)
	}

	want := [][]string{
		{"1", "9.5", "first", "0x00ff"},
		{"2", "", "second", ""},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("staged values mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteDuplicateTable(t *testing.T) {
	src := openSource(t)
	s := openSession(t)
	ctx := context.Background()

	stage(t, s, src, "orders", "SELECT id FROM orders")

	rows, err := src.QueryContext(ctx, "SELECT id FROM orders")
	if err != nil {
		t.Fatalf("source query failed: %v", err)
	}
	defer func() { _ = rows.Close() }()

	if err := s.Write(ctx, "orders", rows); err == nil {
		t.Fatal("expected error staging the same result twice")
	}
}

func TestWriteCancelled(t *testing.T) {
	src := openSource(t)
	s := openSession(t)

	rows, err := src.Query("SELECT id FROM orders")
	if err != nil {
		t.Fatalf("source query failed: %v", err)
	}
	defer func() { _ = rows.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	if err := s.Write(ctx, "orders", rows); err == nil {
		t.Fatal("expected error with a cancelled context")
	}
	tables, err := s.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables failed: %v", err)
	}
	if len(tables) != 0 {
		t.Errorf("expected no tables after a failed write, got %v", tables)
	}
}
