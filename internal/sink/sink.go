// Package sink defines the result sinks the executor streams rows into, and
// the value conversions they share.
package sink

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Rows is the part of *sql.Rows a sink reads.
type Rows interface {
	Columns() ([]string, error)
	ColumnTypes() ([]*sql.ColumnType, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// Writer stores one result set per result id.
type Writer interface {
	Write(ctx context.Context, resultID string, rows Rows) error
	Close() error
}

// Column is a result column with the engine's type name.
type Column struct {
	Name         string
	DatabaseType string
}

// Columns describes the columns of rows. Duplicate names get a numeric
// suffix so every column can be stored.
func Columns(rows Rows) ([]Column, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("result has no columns")
	}

	cols := make([]Column, len(types))
	seen := make(map[string]int, len(types))
	for i, ct := range types {
		name := ct.Name()
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		key := strings.ToLower(name)
		seen[key]++
		if n := seen[key]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
			seen[strings.ToLower(name)]++
		}
		cols[i] = Column{Name: name, DatabaseType: ct.DatabaseTypeName()}
	}
	return cols, nil
}

// ScanRow scans the current row into n values. Byte slices are copied
// because drivers may reuse them.
func ScanRow(rows Rows, n int) ([]any, error) {
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = append([]byte(nil), b...)
		}
	}
	return values, nil
}

// SQLite column types used in the staging store.
const (
	TypeInteger = "INTEGER"
	TypeReal    = "REAL"
	TypeText    = "TEXT"
	TypeBlob    = "BLOB"
)

var stagingTypes = map[string]string{
	"int": TypeInteger, "integer": TypeInteger, "int2": TypeInteger, "int4": TypeInteger,
	"int8": TypeInteger, "smallint": TypeInteger, "bigint": TypeInteger, "tinyint": TypeInteger,
	"mediumint": TypeInteger, "serial": TypeInteger, "bigserial": TypeInteger, "smallserial": TypeInteger,
	"bool": TypeInteger, "boolean": TypeInteger,

	"float": TypeReal, "float4": TypeReal, "float8": TypeReal, "real": TypeReal,
	"double": TypeReal, "double precision": TypeReal, "numeric": TypeReal, "decimal": TypeReal,
	"number": TypeReal,

	"uuid": TypeText, "json": TypeText, "jsonb": TypeText, "interval": TypeText, "point": TypeText,

	"bytea": TypeBlob, "blob": TypeBlob, "binary": TypeBlob, "varbinary": TypeBlob,
}

// StagingType maps an engine type name to a SQLite column type. An empty
// type name maps to no declared type, so SQLite keeps each value as given.
func StagingType(databaseType string) string {
	t := strings.ToLower(strings.TrimSpace(databaseType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimPrefix(t, "_")
	if t == "" {
		return ""
	}
	if mapped, ok := stagingTypes[t]; ok {
		return mapped
	}

	switch {
	case strings.Contains(t, "char"), strings.Contains(t, "text"),
		strings.Contains(t, "clob"), strings.Contains(t, "string"):
		return TypeText
	case strings.Contains(t, "time"), strings.Contains(t, "date"):
		return TypeText
	case strings.Contains(t, "blob"), strings.Contains(t, "binary"):
		return TypeBlob
	case strings.HasSuffix(t, "int"), strings.HasPrefix(t, "int"):
		return TypeInteger
	}
	return TypeText
}

// StagingValue converts a scanned value for a column of the given staging
// type. Times become RFC 3339 text and text columns never receive bytes.
func StagingValue(v any, stagingType string) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []byte:
		if stagingType == TypeBlob || stagingType == "" && !utf8.Valid(x) {
			return x
		}
		return string(x)
	}
	return v
}

// DisplayTimeLayout is how times are shown in workbook cells.
const DisplayTimeLayout = "2006-01-02 15:04:05"

// Display renders a value as cell text. NULL renders as "".
func Display(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		return "0x" + hex.EncodeToString(x)
	case time.Time:
		if x.Nanosecond() != 0 {
			return x.Format(DisplayTimeLayout + ".000")
		}
		return x.Format(DisplayTimeLayout)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
