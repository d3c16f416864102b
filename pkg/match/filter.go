// Package match compiles the object filter expression into a key predicate.
//
// The expression is a doublestar glob evaluated against the full object key,
// e.g. "logs/2024/**/*.gz". A plain prefix with a trailing slash also works
// since "dir/" is treated as "dir/**".
package match

import (
	"errors"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidExpression is returned when the expression cannot be compiled.
var ErrInvalidExpression = errors.New("invalid filter expression")

// KeyFilter is a compiled filter expression. Safe for concurrent use.
type KeyFilter struct {
	raw     string
	pattern string
}

// Compile validates and compiles a filter expression. An empty expression
// returns a nil filter, meaning match-everything.
func Compile(expr string) (*KeyFilter, error) {
	if expr == "" {
		return nil, nil
	}

	pattern := expr
	if strings.HasSuffix(pattern, "/") {
		pattern += "**"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, &ExpressionError{Expression: expr, Err: ErrInvalidExpression}
	}
	return &KeyFilter{raw: expr, pattern: pattern}, nil
}

// Matches reports whether the key passes the filter. A nil filter matches
// every key.
func (f *KeyFilter) Matches(key string) bool {
	if f == nil {
		return true
	}
	ok, err := doublestar.Match(f.pattern, key)
	if err != nil {
		// Pattern was validated at compile time; an error here means a
		// malformed key, which cannot match.
		return false
	}
	return ok
}

// String returns the original expression.
func (f *KeyFilter) String() string {
	if f == nil {
		return ""
	}
	return f.raw
}

// ExpressionError wraps expression compile failures with context.
type ExpressionError struct {
	Expression string
	Err        error
}

func (e *ExpressionError) Error() string {
	return "filter " + e.Expression + ": " + e.Err.Error()
}

func (e *ExpressionError) Unwrap() error {
	return e.Err
}
