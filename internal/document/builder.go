package document

import (
	"fmt"
	"os"
	"strings"
)

// BuildError reports a document invariant violation.
type BuildError struct {
	Reason string
}

func (e *BuildError) Error() string {
	return "build document: " + e.Reason
}

func buildErr(format string, args ...any) error {
	return &BuildError{Reason: fmt.Sprintf(format, args...)}
}

// Builder assembles a Document. A builder is single-use: after Build
// succeeds or fails on the built-once guard, it cannot be reused.
type Builder struct {
	doc     *Document
	seenIDs map[string]bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		doc:     &Document{},
		seenIDs: make(map[string]bool),
	}
}

func (b *Builder) built() error {
	if b.doc == nil {
		return buildErr("document has already been built")
	}
	return nil
}

// Name sets the document name.
func (b *Builder) Name(name string) error {
	if err := b.built(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return buildErr("name is empty")
	}
	b.doc.name = name
	return nil
}

// Origin sets the source file. The path must name an existing regular file.
func (b *Builder) Origin(path string) error {
	if err := b.built(); err != nil {
		return err
	}
	if strings.TrimSpace(path) == "" {
		return buildErr("origin file is not set")
	}
	info, err := os.Stat(path)
	if err != nil {
		return buildErr("origin file %s does not exist", path)
	}
	if !info.Mode().IsRegular() {
		return buildErr("origin %s is not a regular file", path)
	}
	b.doc.origin = path
	return nil
}

// Identifier adds a tag. Blank identifiers are ignored and duplicates
// collapse into one.
func (b *Builder) Identifier(id string) {
	if b.doc == nil {
		return
	}
	id = strings.TrimSpace(id)
	if id == "" || b.seenIDs[id] {
		return
	}
	b.seenIDs[id] = true
	b.doc.identifiers = append(b.doc.identifiers, id)
}

// Snippets sets the raw snippet block, which must not be blank.
func (b *Builder) Snippets(block string) error {
	if err := b.built(); err != nil {
		return err
	}
	block = strings.TrimSpace(block)
	if block == "" {
		return buildErr("snippet block is empty")
	}
	b.doc.snippets = block
	return nil
}

// Step returns a builder for one step. The step is added on Apply.
func (b *Builder) Step() *StepBuilder {
	return &StepBuilder{parent: b, step: &Step{}}
}

// Aggregation returns a builder for the post-sequence. It is added on Apply.
func (b *Builder) Aggregation() *AggregationBuilder {
	return &AggregationBuilder{parent: b, agg: &Aggregation{}}
}

// Build validates and returns the document.
func (b *Builder) Build() (*Document, error) {
	if err := b.built(); err != nil {
		return nil, err
	}
	doc := b.doc
	if doc.origin == "" {
		return nil, buildErr("origin file is not set")
	}
	if doc.name == "" {
		return nil, buildErr("name is not set")
	}
	if len(doc.identifiers) == 0 {
		return nil, buildErr("document has no identifiers")
	}
	if len(doc.steps) == 0 {
		return nil, buildErr("document has no sequences")
	}

	seen := make(map[string]bool)
	for _, name := range doc.ResultTables() {
		// SQLite table names are case-insensitive.
		key := strings.ToLower(name)
		if seen[key] {
			return nil, buildErr("result table %q is used more than once (names are case-insensitive)", name)
		}
		seen[key] = true
	}

	b.doc = nil
	return doc, nil
}

// StepBuilder assembles a single Step.
type StepBuilder struct {
	parent *Builder
	step   *Step
	body   strings.Builder
}

// Connection sets the connection identifier.
func (sb *StepBuilder) Connection(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return buildErr("sequence connection identifier is empty")
	}
	sb.step.Connection = id
	return nil
}

// Database sets the database name.
func (sb *StepBuilder) Database(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return buildErr("sequence database name is empty")
	}
	sb.step.Database = name
	return nil
}

// ResultTable sets the result table name.
func (sb *StepBuilder) ResultTable(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return buildErr("sequence result table is empty")
	}
	sb.step.ResultTable = name
	return nil
}

// Line appends one body line.
func (sb *StepBuilder) Line(line string) {
	sb.body.WriteString(line)
	sb.body.WriteByte('\n')
}

// Apply validates the step and appends it to the parent builder.
func (sb *StepBuilder) Apply() error {
	if sb.step == nil {
		return buildErr("sequence has already been applied")
	}
	if err := sb.parent.built(); err != nil {
		return err
	}
	switch {
	case sb.step.Connection == "":
		return buildErr("sequence connection identifier is not set")
	case sb.step.Database == "":
		return buildErr("sequence database name is not set")
	case sb.step.ResultTable == "":
		return buildErr("sequence result table is not set")
	}
	body := strings.TrimSpace(sb.body.String())
	if body == "" {
		return buildErr("sequence %q has an empty body", sb.step.ResultTable)
	}
	sb.step.Body = body
	sb.parent.doc.steps = append(sb.parent.doc.steps, *sb.step)
	sb.step = nil
	return nil
}

// AggregationBuilder assembles the post-sequence.
type AggregationBuilder struct {
	parent *Builder
	agg    *Aggregation
	body   strings.Builder
}

// ResultTable sets the result table name.
func (ab *AggregationBuilder) ResultTable(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return buildErr("post-sequence result table is empty")
	}
	ab.agg.ResultTable = name
	return nil
}

// Line appends one body line.
func (ab *AggregationBuilder) Line(line string) {
	ab.body.WriteString(line)
	ab.body.WriteByte('\n')
}

// Apply validates the post-sequence and sets it on the parent builder.
func (ab *AggregationBuilder) Apply() error {
	if ab.agg == nil {
		return buildErr("post-sequence has already been applied")
	}
	if err := ab.parent.built(); err != nil {
		return err
	}
	if ab.agg.ResultTable == "" {
		return buildErr("post-sequence result table is not set")
	}
	body := strings.TrimSpace(ab.body.String())
	if body == "" {
		return buildErr("post-sequence body is not set")
	}
	if ab.parent.doc.aggregation != nil {
		return buildErr("document already has a post-sequence")
	}
	ab.agg.Body = body
	ab.parent.doc.aggregation = ab.agg
	ab.agg = nil
	return nil
}
