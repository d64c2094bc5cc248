// Package document holds the in-memory form of a parsed sequence script.
//
// Documents, steps and aggregations are immutable values; they are only
// assembled through a Builder, which enforces the structural invariants.
package document

// Step is one SQL statement bound to a connection, a database and a result
// table name.
type Step struct {
	Connection  string
	Database    string
	ResultTable string
	Body        string
}

// Aggregation is the optional statement run over the staged step results.
type Aggregation struct {
	ResultTable string
	Body        string
}

// Document is one parsed and validated sequence script.
type Document struct {
	origin      string
	name        string
	identifiers []string
	snippets    string
	steps       []Step
	aggregation *Aggregation
}

// Origin returns the path of the file the document was parsed from.
func (d *Document) Origin() string { return d.origin }

// Name returns the human-readable document name.
func (d *Document) Name() string { return d.name }

// Identifiers returns the document tags in insertion order.
func (d *Document) Identifiers() []string {
	return append([]string(nil), d.identifiers...)
}

// HasSnippets reports whether the document carries a snippet block.
func (d *Document) HasSnippets() bool { return d.snippets != "" }

// Snippets returns the raw snippet block.
func (d *Document) Snippets() string { return d.snippets }

// Steps returns the steps in document order.
func (d *Document) Steps() []Step {
	return append([]Step(nil), d.steps...)
}

// HasAggregation reports whether the document has a post-sequence.
func (d *Document) HasAggregation() bool { return d.aggregation != nil }

// Aggregation returns the post-sequence and whether one is present.
func (d *Document) Aggregation() (Aggregation, bool) {
	if d.aggregation == nil {
		return Aggregation{}, false
	}
	return *d.aggregation, true
}

// ResultTables returns every result table name, steps first.
func (d *Document) ResultTables() []string {
	names := make([]string, 0, len(d.steps)+1)
	for _, s := range d.steps {
		names = append(names, s.ResultTable)
	}
	if d.aggregation != nil {
		names = append(names, d.aggregation.ResultTable)
	}
	return names
}

// Connections returns the distinct connection identifiers used by the steps.
func (d *Document) Connections() []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range d.steps {
		if !seen[s.Connection] {
			seen[s.Connection] = true
			out = append(out, s.Connection)
		}
	}
	return out
}

// Rebuild returns a builder pre-populated with the document contents, so an
// editing surface can change fields and build a new document.
func (d *Document) Rebuild() *Builder {
	b := NewBuilder()
	b.doc.origin = d.origin
	b.doc.name = d.name
	for _, id := range d.identifiers {
		b.Identifier(id)
	}
	b.doc.snippets = d.snippets
	b.doc.steps = append(b.doc.steps, d.steps...)
	if d.aggregation != nil {
		agg := *d.aggregation
		b.doc.aggregation = &agg
	}
	return b
}
