// Package parser turns sequence script text into a validated document.
//
// The parser scans the script one line at a time and drives a small state
// machine: outside any section, or inside a head, snippets, sequence or
// post-sequence section. Text outside sections, text inside head and
// unrecognised "##" lines are skipped. Every structural problem is reported
// as a *ParseError carrying the offending line number.
package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/sqlseq/sqlseq/internal/document"
	"github.com/sqlseq/sqlseq/internal/syntax"
)

type state int

const (
	stateOutside state = iota
	stateHead
	stateSnippets
	stateSequence
	statePostSequence
)

func (s state) String() string {
	switch s {
	case stateHead:
		return syntax.Head
	case stateSnippets:
		return syntax.Snippets
	case stateSequence:
		return syntax.Sequence
	case statePostSequence:
		return syntax.PostSequence
	default:
		return "outside"
	}
}

// allowed lists the variables each section accepts.
var allowed = map[state]map[string]bool{
	stateHead:         {syntax.Name: true, syntax.Identifiers: true},
	stateSequence:     {syntax.Connection: true, syntax.Database: true, syntax.ResultTable: true},
	statePostSequence: {syntax.ResultTable: true},
}

// required lists the variables each section must set exactly once.
var required = map[state][]string{
	stateHead:         {syntax.Name},
	stateSequence:     {syntax.Connection, syntax.Database, syntax.ResultTable},
	statePostSequence: {syntax.ResultTable},
}

// ParseFile reads and parses the script at path.
func ParseFile(path string) (*document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Origin: path, Reason: "failed to read file", Err: err}
	}
	return Parse(string(data), path)
}

// Parse parses script text. origin is the path of the file the text came
// from; it must exist because the document records it.
func Parse(text, origin string) (*document.Document, error) {
	p := &parser{
		origin:  origin,
		builder: document.NewBuilder(),
	}
	if err := p.builder.Origin(origin); err != nil {
		return nil, p.wrap(0, err)
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	for i, raw := range strings.Split(text, "\n") {
		p.line = i + 1
		if err := p.consume(raw); err != nil {
			return nil, err
		}
	}

	if p.state != stateOutside {
		return nil, p.errAt(p.opened, "%s section is not closed with %q", p.state, syntax.Directive(syntax.End))
	}
	if p.heads == 0 {
		return nil, p.errAt(0, "document has no %s section", syntax.Head)
	}

	doc, err := p.builder.Build()
	if err != nil {
		return nil, p.wrap(0, err)
	}
	return doc, nil
}

type parser struct {
	origin  string
	builder *document.Builder

	state  state
	line   int
	opened int

	heads        int
	snippets     int
	aggregations int

	vars map[string]int
	body []string

	step *document.StepBuilder
	agg  *document.AggregationBuilder
}

func (p *parser) errAt(line int, format string, args ...any) error {
	return &ParseError{Origin: p.origin, Line: line, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) wrap(line int, err error) error {
	return &ParseError{Origin: p.origin, Line: line, Reason: err.Error(), Err: err}
}

func (p *parser) consume(raw string) error {
	line := syntax.Classify(raw)

	switch line.Kind {
	case syntax.KindOpen:
		if p.state != stateOutside {
			return p.errAt(p.line, "%s section opened inside %s section started on line %d", line.Keyword, p.state, p.opened)
		}
		return p.open(line.Keyword)

	case syntax.KindEnd:
		if p.state == stateOutside {
			return p.errAt(p.line, "%q without an open section", syntax.Directive(syntax.End))
		}
		return p.close()

	case syntax.KindVariable:
		if p.state == stateOutside {
			return p.errAt(p.line, "variable %q outside of a section", line.Keyword)
		}
		return p.variable(line)

	case syntax.KindUnknown:
		// Unrecognised directives are annotations, never body text.
		return nil
	}

	switch p.state {
	case stateOutside, stateHead:
		// Free text between sections and inside head is ignored.
	case stateSnippets:
		p.body = append(p.body, raw)
	default:
		p.body = append(p.body, strings.TrimRight(raw, " \t"))
	}
	return nil
}

func (p *parser) open(keyword string) error {
	switch keyword {
	case syntax.Head:
		p.heads++
		if p.heads > 1 {
			return p.errAt(p.line, "document has more than one %s section", syntax.Head)
		}
		p.state = stateHead
	case syntax.Snippets:
		p.snippets++
		if p.snippets > 1 {
			return p.errAt(p.line, "document has more than one %s section", syntax.Snippets)
		}
		p.state = stateSnippets
	case syntax.Sequence:
		p.step = p.builder.Step()
		p.state = stateSequence
	case syntax.PostSequence:
		p.aggregations++
		if p.aggregations > 1 {
			return p.errAt(p.line, "document has more than one %s section", syntax.PostSequence)
		}
		p.agg = p.builder.Aggregation()
		p.state = statePostSequence
	}
	p.opened = p.line
	p.vars = make(map[string]int)
	p.body = nil
	return nil
}

func (p *parser) variable(line syntax.Line) error {
	if !allowed[p.state][line.Keyword] {
		return p.errAt(p.line, "variable %q is not allowed in %s section", line.Keyword, p.state)
	}
	p.vars[line.Keyword]++
	if p.vars[line.Keyword] > 1 {
		return p.errAt(p.line, "variable %q is set more than once in %s section", line.Keyword, p.state)
	}

	var err error
	switch p.state {
	case stateHead:
		switch line.Keyword {
		case syntax.Name:
			err = p.builder.Name(line.Value)
		case syntax.Identifiers:
			for _, id := range syntax.SplitList(line.Value) {
				p.builder.Identifier(id)
			}
		}
	case stateSequence:
		switch line.Keyword {
		case syntax.Connection:
			err = p.step.Connection(line.Value)
		case syntax.Database:
			err = p.step.Database(line.Value)
		case syntax.ResultTable:
			err = p.step.ResultTable(line.Value)
		}
	case statePostSequence:
		err = p.agg.ResultTable(line.Value)
	}
	if err != nil {
		return p.wrap(p.line, err)
	}
	return nil
}

func (p *parser) close() error {
	for _, name := range required[p.state] {
		if p.vars[name] == 0 {
			return p.errAt(p.opened, "%s section is missing %q", p.state, syntax.Variable(name, ""))
		}
	}

	var err error
	switch p.state {
	case stateSnippets:
		block := strings.TrimSpace(strings.Join(p.body, "\n"))
		if block == "" {
			return p.errAt(p.opened, "%s section is empty", syntax.Snippets)
		}
		err = p.builder.Snippets(block)
	case stateSequence:
		for _, l := range trimBlank(p.body) {
			p.step.Line(l)
		}
		err = p.step.Apply()
		p.step = nil
	case statePostSequence:
		for _, l := range trimBlank(p.body) {
			p.agg.Line(l)
		}
		err = p.agg.Apply()
		p.agg = nil
	}
	if err != nil {
		return p.wrap(p.opened, err)
	}

	p.state = stateOutside
	p.vars = nil
	p.body = nil
	return nil
}

// trimBlank drops blank lines at both ends of a body.
func trimBlank(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}
