// Package sqliteutil recognises SQLite locations in connection URLs and
// manages SQLite database files.
package sqliteutil

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// DriverName is the database/sql name registered by modernc.org/sqlite.
const DriverName = "sqlite"

// IsSQLiteFilePath reports whether s looks like a SQLite file location.
func IsSQLiteFilePath(s string) bool {
	s = strings.ToLower(s)

	if s == ":memory:" || strings.HasPrefix(s, "libsql://") {
		return false
	}
	if strings.HasPrefix(s, "sqlite://") || strings.HasPrefix(s, "file:") {
		return true
	}
	return strings.HasSuffix(s, ".db") ||
		strings.HasSuffix(s, ".sqlite") ||
		strings.HasSuffix(s, ".sqlite3")
}

// ExtractSQLiteFilePath strips the scheme and query parameters from a SQLite
// connection string.
func ExtractSQLiteFilePath(connStr string) string {
	for _, prefix := range []string{"sqlite://", "file:"} {
		if strings.HasPrefix(connStr, prefix) {
			path := strings.TrimPrefix(connStr, prefix)
			if idx := strings.Index(path, "?"); idx >= 0 {
				path = path[:idx]
			}
			return path
		}
	}
	return connStr
}

// DatabaseFile returns the file backing database name under a SQLite
// connection URL. The URL names a directory; names without an extension get
// ".db".
func DatabaseFile(connStr, name string) string {
	if filepath.Ext(name) == "" {
		name += ".db"
	}
	return filepath.Join(ExtractSQLiteFilePath(connStr), name)
}

// CheckSQLiteDatabase reports whether the database file exists and whether it
// is empty. A non-empty file must open as a SQLite database.
func CheckSQLiteDatabase(connStr string) (exists bool, isEmpty bool, err error) {
	filePath := ExtractSQLiteFilePath(connStr)

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return false, false, fmt.Errorf("path is a directory, not a file: %s", filePath)
	}
	if info.Size() == 0 {
		return true, true, nil
	}

	db, err := sql.Open(DriverName, filePath)
	if err != nil {
		return true, false, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec("SELECT count(*) FROM sqlite_master"); err != nil {
		return true, false, fmt.Errorf("file exists but is not a valid SQLite database: %w", err)
	}
	return true, false, nil
}

// CreateSQLiteDatabase creates an initialised SQLite file, including its
// parent directories.
func CreateSQLiteDatabase(connStr string) error {
	filePath := ExtractSQLiteFilePath(connStr)

	dir := filepath.Dir(filePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(DriverName, filePath)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer func() { _ = db.Close() }()

	// SQLite only writes the file on the first write.
	_, err = db.Exec("CREATE TABLE IF NOT EXISTS _sqlseq_init (id INTEGER PRIMARY KEY); DROP TABLE IF EXISTS _sqlseq_init;")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}
