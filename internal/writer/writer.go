// Package writer renders documents back into sequence script text.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sqlseq/sqlseq/internal/document"
	"github.com/sqlseq/sqlseq/internal/syntax"
)

// Render returns the canonical script text for doc. Parsing the result
// yields a document equal to doc.
func Render(doc *document.Document) string {
	var sb strings.Builder
	line := func(s string) {
		sb.WriteString(s)
		sb.WriteByte('\n')
	}
	end := func() {
		line(syntax.Directive(syntax.End))
		sb.WriteByte('\n')
	}

	line(syntax.Directive(syntax.Head))
	line(syntax.Variable(syntax.Name, doc.Name()))
	line(syntax.Variable(syntax.Identifiers, strings.Join(doc.Identifiers(), syntax.ListSeparator+" ")))
	end()

	if doc.HasSnippets() {
		line(syntax.Directive(syntax.Snippets))
		line(doc.Snippets())
		end()
	}

	for _, step := range doc.Steps() {
		line(syntax.Directive(syntax.Sequence))
		line(syntax.Variable(syntax.Connection, step.Connection))
		line(syntax.Variable(syntax.Database, step.Database))
		line(syntax.Variable(syntax.ResultTable, step.ResultTable))
		line(step.Body)
		end()
	}

	if agg, ok := doc.Aggregation(); ok {
		line(syntax.Directive(syntax.PostSequence))
		line(syntax.Variable(syntax.ResultTable, agg.ResultTable))
		line(agg.Body)
		end()
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// Save writes the rendered document over its origin file.
func Save(doc *document.Document) error {
	return SaveAs(doc, doc.Origin())
}

// SaveAs writes the rendered document to path, replacing it atomically.
func SaveAs(doc *document.Document, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(Render(doc)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}
