package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sqlseq/sqlseq/internal/document"
	"github.com/sqlseq/sqlseq/internal/queue"
)

type step struct {
	result string
	body   string
}

func buildDoc(t *testing.T, snippets string, steps []step, agg *step) *document.Document {
	t.Helper()
	origin := filepath.Join(t.TempDir(), "doc.seq")
	if err := os.WriteFile(origin, nil, 0o600); err != nil {
		t.Fatalf("Failed to write origin: %v", err)
	}

	b := document.NewBuilder()
	if err := b.Origin(origin); err != nil {
		t.Fatalf("Origin: %v", err)
	}
	if err := b.Name("doc"); err != nil {
		t.Fatalf("Name: %v", err)
	}
	b.Identifier("test")
	if snippets != "" {
		if err := b.Snippets(snippets); err != nil {
			t.Fatalf("Snippets: %v", err)
		}
	}
	for _, s := range steps {
		sb := b.Step()
		_ = sb.Connection("main")
		_ = sb.Database("db")
		_ = sb.ResultTable(s.result)
		sb.Line(s.body)
		if err := sb.Apply(); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	if agg != nil {
		ab := b.Aggregation()
		_ = ab.ResultTable(agg.result)
		ab.Line(agg.body)
		if err := ab.Apply(); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}

	doc, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return doc
}

func drain(q *queue.Queue) []queue.Item {
	var items []queue.Item
	for q.HasNext() {
		item, _ := q.Next()
		items = append(items, item)
	}
	return items
}

func TestCompileSubstitutes(t *testing.T) {
	doc := buildDoc(t, "a: X\nb: Y", []step{
		{"r1", "select ${a} from ${ b } where c = '${a}'"},
		{"r2", "select 1"},
	}, &step{"total", "select * from r1 where x = ${b}"})

	q, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if q.Name() != "doc" {
		t.Errorf("Name = %q", q.Name())
	}

	want := []queue.Item{
		{Connection: "main", Database: "db", SQL: "select X from Y where c = 'X'", Result: "r1"},
		{Connection: "main", Database: "db", SQL: "select 1", Result: "r2"},
	}

	sql, result := q.Aggregation()
	if sql != "select * from r1 where x = Y" || result != "total" {
		t.Errorf("Aggregation = (%q, %q)", sql, result)
	}
	if diff := cmp.Diff(want, drain(q)); diff != "" {
		t.Errorf("queue mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name     string
		snippets string
		body     string
		line     int
		reason   string
	}{
		{"unresolved", "a: X", "select ${c}", 0, `unresolved snippet variable "c"`},
		{"no snippets but placeholder", "", "select ${a}", 0, "unresolved"},
		{"missing colon", "a: X\n\njunk", "select 1", 3, "bad snippet syntax"},
		{"blank key", " : X", "select 1", 1, "bad snippet syntax"},
		{"no recursive expansion", "a: ${b}\nb: Y", "select ${a}", 0, `unresolved snippet variable "b"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := buildDoc(t, tt.snippets, []step{{"r1", tt.body}}, nil)
			_, err := Compile(doc)
			var compileErr *CompileError
			if !errors.As(err, &compileErr) {
				t.Fatalf("expected *CompileError, got %v", err)
			}
			if compileErr.Line != tt.line {
				t.Errorf("Line = %d, want %d", compileErr.Line, tt.line)
			}
			if !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("error %q does not contain %q", err, tt.reason)
			}
		})
	}
}

func TestParseSnippets(t *testing.T) {
	got, err := ParseSnippets("a: 1\nurl: http://x:80\n a : 2 \n")
	if err != nil {
		t.Fatalf("ParseSnippets failed: %v", err)
	}
	want := []Snippet{{Key: "a", Value: "2"}, {Key: "url", Value: "http://x:80"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snippets mismatch (-want +got):\n%s", diff)
	}
}

func TestSubstituteLiteralValues(t *testing.T) {
	got, err := Substitute("select ${v}", []Snippet{{Key: "v", Value: "'$1'"}})
	if err != nil {
		t.Fatalf("Substitute failed: %v", err)
	}
	if got != "select '$1'" {
		t.Errorf("Substitute = %q", got)
	}
}
