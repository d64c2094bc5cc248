// Package sqlvalidation checks step statements with the PostgreSQL parser
// before any connection is opened.
package sqlvalidation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"github.com/pganalyze/pg_query_go/v6/parser"

	"github.com/sqlseq/sqlseq/internal/database"
	"github.com/sqlseq/sqlseq/internal/queue"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue codes.
const (
	CodeSyntax        = "syntax_error"
	CodeMultiple      = "multiple_statements"
	CodeEmpty         = "empty_statement"
	CodeModifiesData  = "modifies_data"
	CodeChangesSchema = "changes_schema"
)

// ValidationIssue is one finding for a step. Line and Column are 1-based
// positions within the step's resolved SQL.
type ValidationIssue struct {
	Result   string `json:"result"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Code     string `json:"code,omitempty"`
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", i.Result, i.Line, i.Column, i.Severity, i.Message)
}

// SQLValidationResult holds every issue found in a queue.
type SQLValidationResult struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues"`
}

// Errors returns the issues with error severity.
func (r SQLValidationResult) Errors() []ValidationIssue {
	var out []ValidationIssue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// Engines reports the engine behind a connection id.
type Engines func(connection string) (database.DatabaseType, bool)

// Checks reports whether statements for dbType can be checked with the
// PostgreSQL parser.
func Checks(dbType database.DatabaseType) bool {
	return dbType == database.DatabaseTypePostgres || dbType == database.DatabaseTypePgx
}

// ValidateQueue checks every PostgreSQL-bound step of q without draining it.
// The aggregation runs on SQLite and is not checked.
func ValidateQueue(q *queue.Queue, engines Engines) SQLValidationResult {
	var issues []ValidationIssue
	for _, item := range q.Items() {
		dbType, ok := engines(item.Connection)
		if !ok || !Checks(dbType) {
			continue
		}
		issues = append(issues, ValidateStatement(item.Result, item.SQL)...)
	}

	result := SQLValidationResult{Valid: true, Issues: issues}
	if len(result.Errors()) > 0 {
		result.Valid = false
	}
	return result
}

// ValidateStatement checks that sql is exactly one statement and flags
// statements that write.
func ValidateStatement(result, sql string) []ValidationIssue {
	parsed, err := pg_query.Parse(sql)
	if err != nil {
		return []ValidationIssue{syntaxIssue(result, sql, err)}
	}

	switch len(parsed.Stmts) {
	case 0:
		return []ValidationIssue{{
			Result: result, Line: 1, Column: 1, Severity: SeverityError, Code: CodeEmpty,
			Message: "step contains no statement",
		}}
	case 1:
	default:
		line, col := statementPosition(sql, int(parsed.Stmts[1].StmtLocation))
		return []ValidationIssue{{
			Result: result, Line: line, Column: col, Severity: SeverityError, Code: CodeMultiple,
			Message: fmt.Sprintf("step must be a single query, found %d statements", len(parsed.Stmts)),
		}}
	}

	raw := parsed.Stmts[0]
	code, kind := classify(raw.Stmt)
	if code == "" {
		return nil
	}
	line, col := statementPosition(sql, int(raw.StmtLocation))
	return []ValidationIssue{{
		Result: result, Line: line, Column: col, Severity: SeverityWarning, Code: code,
		Message: fmt.Sprintf("%s statement in a reporting step", kind),
	}}
}

func classify(node *pg_query.Node) (code, kind string) {
	if node == nil {
		return "", ""
	}
	switch n := node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		if n.SelectStmt.GetIntoClause() != nil {
			return CodeChangesSchema, "SELECT INTO"
		}
		return "", ""
	case *pg_query.Node_InsertStmt:
		return CodeModifiesData, "INSERT"
	case *pg_query.Node_UpdateStmt:
		return CodeModifiesData, "UPDATE"
	case *pg_query.Node_DeleteStmt:
		return CodeModifiesData, "DELETE"
	case *pg_query.Node_MergeStmt:
		return CodeModifiesData, "MERGE"
	case *pg_query.Node_TruncateStmt:
		return CodeModifiesData, "TRUNCATE"
	case *pg_query.Node_CopyStmt:
		return CodeModifiesData, "COPY"
	case *pg_query.Node_CreateStmt, *pg_query.Node_CreateTableAsStmt, *pg_query.Node_IndexStmt,
		*pg_query.Node_ViewStmt, *pg_query.Node_CreateSchemaStmt, *pg_query.Node_CreateSeqStmt:
		return CodeChangesSchema, "CREATE"
	case *pg_query.Node_AlterTableStmt:
		return CodeChangesSchema, "ALTER"
	case *pg_query.Node_DropStmt:
		return CodeChangesSchema, "DROP"
	case *pg_query.Node_RenameStmt:
		return CodeChangesSchema, "RENAME"
	case *pg_query.Node_GrantStmt:
		return CodeChangesSchema, "GRANT"
	}
	return "", ""
}

var nearToken = regexp.MustCompile(`at or near "([^"]+)"`)

func syntaxIssue(result, sql string, err error) ValidationIssue {
	issue := ValidationIssue{
		Result:   result,
		Line:     1,
		Column:   1,
		Severity: SeverityError,
		Code:     CodeSyntax,
		Message:  strings.TrimPrefix(err.Error(), "failed to parse SQL: "),
	}

	var pgErr *parser.Error
	if errors.As(err, &pgErr) && pgErr.Cursorpos > 0 {
		issue.Line, issue.Column = findPositionFromOffsetInSQL(sql, pgErr.Cursorpos-1)
		return issue
	}
	if m := nearToken.FindStringSubmatch(issue.Message); len(m) > 1 {
		issue.Line, issue.Column = findTokenInContent(sql, m[1])
	}
	return issue
}

// statementPosition locates a statement from its byte offset, skipping the
// whitespace the parser counts as part of it.
func statementPosition(sql string, byteOffset int) (int, int) {
	if byteOffset < 0 || byteOffset > len(sql) {
		return 1, 1
	}
	rest := sql[byteOffset:]
	start := byteOffset + len(rest) - len(strings.TrimLeftFunc(rest, unicode.IsSpace))
	return findPositionFromOffsetInSQL(sql, utf8.RuneCountInString(sql[:start]))
}

func findTokenInContent(content, token string) (int, int) {
	idx := strings.Index(content, token)
	if idx == -1 {
		return 1, 1
	}
	return findPositionFromOffsetInSQL(content, len([]rune(content[:idx])))
}

// findPositionFromOffsetInSQL converts a 0-based character offset into a
// line and column.
func findPositionFromOffsetInSQL(content string, offset int) (int, int) {
	runes := []rune(content)
	if offset < 0 || offset >= len(runes) {
		return 1, 1
	}

	line, col := 1, 1
	for _, r := range runes[:offset] {
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
