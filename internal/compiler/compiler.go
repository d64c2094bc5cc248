// Package compiler resolves snippet placeholders and turns a document into an
// execution queue.
package compiler

import (
	"fmt"
	"strings"

	"github.com/sqlseq/sqlseq/internal/document"
	"github.com/sqlseq/sqlseq/internal/queue"
	"github.com/sqlseq/sqlseq/internal/syntax"
)

// CompileError reports a snippet or substitution failure. Line is the 1-based
// line within the snippet block, or zero when the failure is in a statement.
type CompileError struct {
	Reason string
	Line   int
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("compile: snippet line %d: %s", e.Line, e.Reason)
	}
	return "compile: " + e.Reason
}

// Snippet is one key/value pair from a snippet block.
type Snippet struct {
	Key   string
	Value string
}

// ParseSnippets splits a snippet block into key/value pairs on the first
// colon of each non-blank line. When a key repeats, the last value wins but
// the key keeps its first position.
func ParseSnippets(block string) ([]Snippet, error) {
	var out []Snippet
	index := make(map[string]int)

	for i, line := range strings.Split(strings.ReplaceAll(block, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, syntax.Separator)
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, &CompileError{Reason: fmt.Sprintf("bad snippet syntax: %q", strings.TrimSpace(line)), Line: i + 1}
		}
		value = strings.TrimSpace(value)

		if at, seen := index[key]; seen {
			out[at].Value = value
			continue
		}
		index[key] = len(out)
		out = append(out, Snippet{Key: key, Value: value})
	}
	return out, nil
}

// Substitute replaces every ${key} placeholder in sql with its snippet value.
// Values are inserted literally and are not expanded again. Any placeholder
// left afterwards is an error.
func Substitute(sql string, snippets []Snippet) (string, error) {
	if !syntax.HasPlaceholder(sql) {
		return sql, nil
	}
	for _, s := range snippets {
		sql = syntax.PlaceholderFor(s.Key).ReplaceAllLiteralString(sql, s.Value)
	}
	if left := syntax.Placeholders(sql); len(left) > 0 {
		return "", &CompileError{Reason: fmt.Sprintf("unresolved snippet variable %q", left[0])}
	}
	return sql, nil
}

// Compile resolves the document's snippets and enqueues its steps in order.
func Compile(doc *document.Document) (*queue.Queue, error) {
	var snippets []Snippet
	if doc.HasSnippets() {
		var err error
		snippets, err = ParseSnippets(doc.Snippets())
		if err != nil {
			return nil, err
		}
	}

	q := queue.New(doc.Name())
	for _, step := range doc.Steps() {
		sql, err := Substitute(step.Body, snippets)
		if err != nil {
			return nil, withContext(err, step.ResultTable)
		}
		q.Push(step.Connection, step.Database, sql, step.ResultTable)
	}

	if agg, ok := doc.Aggregation(); ok {
		sql, err := Substitute(agg.Body, snippets)
		if err != nil {
			return nil, withContext(err, agg.ResultTable)
		}
		q.SetAggregation(sql, agg.ResultTable)
	}
	return q, nil
}

func withContext(err error, result string) error {
	if ce, ok := err.(*CompileError); ok {
		ce.Reason = fmt.Sprintf("%s in %q", ce.Reason, result)
	}
	return err
}
