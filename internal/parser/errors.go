package parser

import "fmt"

// ParseError reports a malformed sequence script. Line is 1-based; zero means
// the error concerns the document as a whole.
type ParseError struct {
	Origin string
	Line   int
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	where := e.Origin
	if where == "" {
		where = "<input>"
	}
	if e.Line > 0 {
		where = fmt.Sprintf("%s:%d", where, e.Line)
	}
	return fmt.Sprintf("parse %s: %s", where, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
