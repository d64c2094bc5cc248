package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sqlseq/sqlseq/internal/document"
)

const validScript = `## head
## name: daily sales
## identifiers: sales, daily
## end

## snippets
from: 2024-01-01
region: 'EU'
## end

## sequence
## connection: warehouse
## database: db1
## result-table: res_db_1
select *
from orders
where created_at >= '${from}'
## end

## sequence
## connection: warehouse
## database: db2
## result-table: res_db_2
select * from orders where region = ${region}
## end

## post-sequence
## result-table: total
select * from res_db_1
union all
select * from res_db_2
## end
`

func writeScript(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daily.seq")
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}
	return path
}

func TestParseFileValid(t *testing.T) {
	path := writeScript(t, validScript)

	doc, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}

	if doc.Origin() != path {
		t.Errorf("Origin = %q, want %q", doc.Origin(), path)
	}
	if doc.Name() != "daily sales" {
		t.Errorf("Name = %q", doc.Name())
	}
	if diff := cmp.Diff([]string{"sales", "daily"}, doc.Identifiers()); diff != "" {
		t.Errorf("Identifiers mismatch (-want +got):\n%s", diff)
	}
	if doc.Snippets() != "from: 2024-01-01\nregion: 'EU'" {
		t.Errorf("Snippets = %q", doc.Snippets())
	}

	wantSteps := []document.Step{
		{
			Connection:  "warehouse",
			Database:    "db1",
			ResultTable: "res_db_1",
			Body:        "select *\nfrom orders\nwhere created_at >= '${from}'",
		},
		{
			Connection:  "warehouse",
			Database:    "db2",
			ResultTable: "res_db_2",
			Body:        "select * from orders where region = ${region}",
		},
	}
	if diff := cmp.Diff(wantSteps, doc.Steps()); diff != "" {
		t.Errorf("Steps mismatch (-want +got):\n%s", diff)
	}

	agg, ok := doc.Aggregation()
	if !ok {
		t.Fatal("expected aggregation")
	}
	want := document.Aggregation{
		ResultTable: "total",
		Body:        "select * from res_db_1\nunion all\nselect * from res_db_2",
	}
	if diff := cmp.Diff(want, agg); diff != "" {
		t.Errorf("Aggregation mismatch (-want +got):\n%s", diff)
	}
}

func TestParseNormalisesBodies(t *testing.T) {
	script := "## head\r\n## NAME: x\r\n## identifiers: a\r\n## end\r\n" +
		"## Sequence\r\n## connection: c\r\n## database: d\r\n## result-table: r\r\n\r\n" +
		"select 1   \r\n  from t\t\r\n\r\n## END\r\n"

	doc, err := Parse(script, writeScript(t, script))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := doc.Steps()[0].Body; got != "select 1\n  from t" {
		t.Errorf("Body = %q", got)
	}
	if doc.HasSnippets() || doc.HasAggregation() {
		t.Error("expected no snippets and no aggregation")
	}
}

func TestParsePostSequenceBeforeSequence(t *testing.T) {
	script := `## head
## name: x
## identifiers: a
## end
## post-sequence
## result-table: agg
select * from r
## end
## sequence
## connection: c
## database: d
## result-table: r
select 1
## end
`
	doc, err := Parse(script, writeScript(t, script))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if diff := cmp.Diff([]string{"r", "agg"}, doc.ResultTables()); diff != "" {
		t.Errorf("ResultTables mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	head := "## head\n## name: x\n## identifiers: a\n## end\n"
	step := "## sequence\n## connection: c\n## database: d\n## result-table: r\nselect 1\n## end\n"

	tests := []struct {
		name   string
		script string
		line   int
		reason string
	}{
		{"no head", step, 0, "no head section"},
		{"two heads", head + head + step, 5, "more than one head"},
		{"two snippets", head + "## snippets\na: 1\n## end\n## snippets\nb: 2\n## end\n" + step, 8, "more than one snippets"},
		{"empty snippets", head + "## snippets\n\n## end\n" + step, 5, "snippets section is empty"},
		{
			"sequence missing database",
			head + "## sequence\n## connection: c\n## result-table: r\nselect 1\n## end\n",
			5, `missing "## database: "`,
		},
		{
			"sequence without body",
			head + "## sequence\n## connection: c\n## database: d\n## result-table: r\n\n## end\n",
			5, "empty body",
		},
		{
			"duplicate variable",
			head + "## sequence\n## connection: c\n## connection: c2\n## database: d\n## result-table: r\nselect 1\n## end\n",
			7, "more than once",
		},
		{"variable in wrong section", head + "## sequence\n## name: y\n## end\n", 6, "not allowed in sequence"},
		{"head missing name", "## head\n## identifiers: a\n## end\n" + step, 1, `missing "## name: "`},
		{"head without identifiers", "## head\n## name: x\n## end\n" + step, 0, "no identifiers"},
		{"two identifiers variables", "## head\n## name: x\n## identifiers: a\n## identifiers: b\n## end\n", 4, "more than once"},
		{"nested section", head + "## sequence\n## sequence\n", 6, "opened inside sequence"},
		{"stray end", head + "## end\n", 5, "without an open section"},
		{"unterminated", head + "## sequence\n## connection: c\n", 5, "not closed"},
		{"two post-sequences", head + step + "## post-sequence\n## result-table: a\nselect 1\n## end\n## post-sequence\n## result-table: b\nselect 1\n## end\n", 15, "more than one post-sequence"},
		{"duplicate result table", head + step + step, 0, "more than once"},
		{"blank name", "## head\n## name:\n## identifiers: a\n## end\n" + step, 2, "name is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.script, writeScript(t, tt.script))
			if err == nil {
				t.Fatal("expected parse error")
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected *ParseError, got %T: %v", err, err)
			}
			if parseErr.Line != tt.line {
				t.Errorf("Line = %d, want %d (%v)", parseErr.Line, tt.line, err)
			}
			if !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("error %q does not contain %q", err, tt.reason)
			}
		})
	}
}

func TestParseSkipsAnnotations(t *testing.T) {
	tests := map[string]string{
		"text between sections": `## head
## name: daily
## identifiers: a
## end
nightly extract, owned by finance
## sequence
## connection: c
## database: d
## result-table: r
select 1
## end
`,
		"unknown directive in sequence": `## head
## name: daily
## identifiers: a
## end
## sequence
## connection: c
## database: d
## result-table: r
## note: nightly
select 1
## end
## bogus
`,
		"text in head": `## head
## name: daily
refreshed every morning
## identifiers: a
## end
## sequence
## connection: c
## database: d
## result-table: r
select 1
## end
`,
	}

	for name, script := range tests {
		t.Run(name, func(t *testing.T) {
			doc, err := Parse(script, writeScript(t, script))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			want := []document.Step{{Connection: "c", Database: "d", ResultTable: "r", Body: "select 1"}}
			if diff := cmp.Diff(want, doc.Steps()); diff != "" {
				t.Errorf("Steps mismatch (-want +got):\n%s", diff)
			}
			if doc.Name() != "daily" {
				t.Errorf("Name = %q", doc.Name())
			}
		})
	}
}

func TestParseWrapsBuildError(t *testing.T) {
	script := "## head\n## name: x\n## end\n## sequence\n## connection: c\n## database: d\n## result-table: r\nselect 1\n## end\n"
	_, err := Parse(script, writeScript(t, script))

	var buildErr *document.BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected wrapped *document.BuildError, got %v", err)
	}
}

func TestParseMissingOrigin(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.seq"))
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist in chain, got %v", err)
	}
}
