package writer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sqlseq/sqlseq/internal/document"
	"github.com/sqlseq/sqlseq/internal/parser"
)

type snapshot struct {
	Name        string
	Identifiers []string
	Snippets    string
	Steps       []document.Step
	Aggregation *document.Aggregation
}

func snap(doc *document.Document) snapshot {
	s := snapshot{
		Name:        doc.Name(),
		Identifiers: doc.Identifiers(),
		Snippets:    doc.Snippets(),
		Steps:       doc.Steps(),
	}
	if agg, ok := doc.Aggregation(); ok {
		s.Aggregation = &agg
	}
	return s
}

func TestRoundTrip(t *testing.T) {
	scripts := map[string]string{
		"full": `## head
## name: daily
## identifiers: a, b
## end
## snippets
from: 2024-01-01
  indented: x
## end
## sequence
## connection: warehouse
## database: sales
## result-table: r1
select *
  from t
 where d > '${from}'
## end
## sequence
## connection: other
## database: crm
## result-table: r2
select 2
## end
## post-sequence
## result-table: total
select * from r1 union all select * from r2
## end
`,
		"minimal": `## head
## name: minimal
## identifiers: x
## end
## sequence
## connection: c
## database: d
## result-table: r
select 1
## end
`,
	}

	for name, script := range scripts {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "doc.seq")
			if err := os.WriteFile(path, []byte(script), 0o600); err != nil {
				t.Fatalf("Failed to write script: %v", err)
			}

			doc, err := parser.ParseFile(path)
			if err != nil {
				t.Fatalf("ParseFile failed: %v", err)
			}

			reparsed, err := parser.Parse(Render(doc), path)
			if err != nil {
				t.Fatalf("Parse(Render) failed: %v\n%s", err, Render(doc))
			}
			if diff := cmp.Diff(snap(doc), snap(reparsed)); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderOmitsEmptySections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.seq")
	script := "## head\n## name: x\n## identifiers: a\n## end\n## sequence\n## connection: c\n## database: d\n## result-table: r\nselect 1\n## end\n"
	if err := os.WriteFile(path, []byte(script), 0o600); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}
	doc, err := parser.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}

	want := `## head
## name: x
## identifiers: a
## end

## sequence
## connection: c
## database: d
## result-table: r
select 1
## end
`
	if diff := cmp.Diff(want, Render(doc)); diff != "" {
		t.Errorf("Render mismatch (-want +got):\n%s", diff)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.seq")
	script := "## head\n## name:   spaced  \n## identifiers: a,a, b\n## end\n\n\n## sequence\n## connection: c\n## database: d\n## result-table: r\n\nselect 1   \n\n## end\n"
	if err := os.WriteFile(path, []byte(script), 0o600); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}
	doc, err := parser.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}

	if err := Save(doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if string(data) != Render(doc) {
		t.Errorf("saved content differs from Render:\n%s", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the saved document in %s, found %d entries", dir, len(entries))
	}
}
