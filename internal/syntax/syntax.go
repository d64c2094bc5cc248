// Package syntax defines the markers, keywords and line classification used by
// sequence scripts.
//
// A script is made of sections bounded by a directive line and "## end":
//
//	## head
//	## name: daily sales
//	## identifiers: sales, daily
//	## end
//
// Directive lines start with "##". Every other line inside a section is a body
// line. Keywords are matched case-insensitively.
package syntax

import (
	"strings"
)

// Literal markers.
const (
	Token         = "##"
	Separator     = ":"
	ListSeparator = ","
)

// Section and variable keywords.
const (
	Head         = "head"
	Name         = "name"
	Identifiers  = "identifiers"
	Snippets     = "snippets"
	Sequence     = "sequence"
	Connection   = "connection"
	Database     = "database"
	ResultTable  = "result-table"
	PostSequence = "post-sequence"
	End          = "end"
)

// Kind classifies a single script line.
type Kind int

const (
	// KindBody is any line that is not a directive.
	KindBody Kind = iota
	// KindOpen opens a section: "## head", "## sequence", ...
	KindOpen
	// KindEnd closes the current section.
	KindEnd
	// KindVariable is "## <keyword>: <value>".
	KindVariable
	// KindUnknown is a directive line that matches no known form.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindBody:
		return "body"
	case KindOpen:
		return "section"
	case KindEnd:
		return "end"
	case KindVariable:
		return "variable"
	default:
		return "unknown directive"
	}
}

// Line is the classification of one script line.
type Line struct {
	Kind    Kind
	Keyword string // lower-cased keyword for sections and variables
	Value   string // trimmed variable value
	Text    string // the original line
}

var sections = map[string]bool{
	Head:         true,
	Snippets:     true,
	Sequence:     true,
	PostSequence: true,
}

var variables = map[string]bool{
	Name:        true,
	Identifiers: true,
	Connection:  true,
	Database:    true,
	ResultTable: true,
}

// IsSection reports whether keyword names a section.
func IsSection(keyword string) bool {
	return sections[strings.ToLower(keyword)]
}

// IsVariable reports whether keyword names a variable.
func IsVariable(keyword string) bool {
	return variables[strings.ToLower(keyword)]
}

// IsDirective reports whether the line is a "##"-prefixed directive line.
func IsDirective(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), Token)
}

// Classify returns the classification of a single line. The line must not
// contain a line terminator.
func Classify(line string) Line {
	if !IsDirective(line) {
		return Line{Kind: KindBody, Text: line}
	}

	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimLeft(line, " \t"), Token))
	lower := strings.ToLower(rest)

	if lower == End {
		return Line{Kind: KindEnd, Keyword: End, Text: line}
	}
	if sections[lower] {
		return Line{Kind: KindOpen, Keyword: lower, Text: line}
	}

	if idx := strings.Index(rest, Separator); idx > 0 {
		keyword := strings.ToLower(strings.TrimSpace(rest[:idx]))
		if variables[keyword] {
			return Line{
				Kind:    KindVariable,
				Keyword: keyword,
				Value:   strings.TrimSpace(rest[idx+len(Separator):]),
				Text:    line,
			}
		}
	}

	return Line{Kind: KindUnknown, Text: line}
}

// Directive renders a section directive such as "## sequence".
func Directive(keyword string) string {
	return Token + " " + keyword
}

// Variable renders a variable directive such as "## name: value".
func Variable(keyword, value string) string {
	return Token + " " + keyword + Separator + " " + value
}

// SplitList splits an identifiers value on the list separator, dropping
// blank entries.
func SplitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ListSeparator) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
