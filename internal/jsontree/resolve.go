// Package jsontree addresses nodes of a JSON document with JMESPath
// expressions: Resolve evaluates an expression, Index enumerates nodes
// together with the expression that reaches each of them.
package jsontree

import (
	"fmt"
	"strings"

	"github.com/jmespath/go-jmespath"

	"github.com/alfredjeanlab/feeder/internal/jsonval"
)

// Resolution is the outcome of a successful Resolve. Unset is true when the
// path was empty, in which case Value carries nothing.
type Resolution struct {
	Value jsonval.Value
	Unset bool
}

// PathParseError reports a malformed path expression.
type PathParseError struct {
	Path string
	Err  error
}

func (e *PathParseError) Error() string {
	return fmt.Sprintf("parse path %q: %v", e.Path, e.Err)
}

func (e *PathParseError) Unwrap() error { return e.Err }

// PathEvalError reports a well-formed expression that failed while being
// evaluated, e.g. a function called with an argument of the wrong type.
type PathEvalError struct {
	Path string
	Err  error
}

func (e *PathEvalError) Error() string {
	return fmt.Sprintf("evaluate path %q: %v", e.Path, e.Err)
}

func (e *PathEvalError) Unwrap() error { return e.Err }

// Resolve evaluates path against doc. An empty or blank path resolves to an
// unset result. A path into a branch that does not exist resolves to null.
func Resolve(doc jsonval.Value, path string) (Resolution, error) {
	if strings.TrimSpace(path) == "" {
		return Resolution{Unset: true}, nil
	}
	expr, err := jmespath.Compile(path)
	if err != nil {
		return Resolution{}, &PathParseError{Path: path, Err: err}
	}
	out, err := expr.Search(doc.ToAny())
	if err != nil {
		return Resolution{}, &PathEvalError{Path: path, Err: err}
	}
	return Resolution{Value: jsonval.FromAny(out)}, nil
}

// Validate reports whether path is a well-formed expression without
// evaluating it. Blank paths are valid.
func Validate(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if _, err := jmespath.Compile(path); err != nil {
		return &PathParseError{Path: path, Err: err}
	}
	return nil
}
