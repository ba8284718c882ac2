// Package pattern compiles expectation strings into message matchers.
//
// An expectation is either an explicit regular expression wrapped in "/"
// delimiters, or a wildcard template in which "%" stands for any run of
// characters (including none) and everything else is literal. Both forms
// perform a substring search: a template without "%" matches any message
// that contains it.
//
// The wildcard spans line breaks, so "first%second" matches a message whose
// two halves sit on separate lines. A plain ".*" template translation would
// stop at the first newline. Explicit regular expressions keep Go's default
// flags; add (?s) inside the delimiters to get the same behavior there.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Delimiter marks the start and end of an explicit regular expression.
const Delimiter = '/'

// Wildcard is the any-substring placeholder in a template.
const Wildcard = "%"

// ErrInvalidPattern is matched by every *InvalidPatternError.
var ErrInvalidPattern = errors.New("invalid pattern")

// InvalidPatternError reports an explicit regular expression that failed to compile.
type InvalidPatternError struct {
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error { return e.Err }

// Is reports whether target is ErrInvalidPattern.
func (e *InvalidPatternError) Is(target error) bool { return target == ErrInvalidPattern }

// Matcher tests message text against a compiled expectation.
type Matcher struct {
	source string
	re     *regexp.Regexp
}

// IsExplicitRegexp reports whether pattern is delimited by "/" on both ends.
// A lone "/" is a literal template, not an empty expression.
func IsExplicitRegexp(pattern string) bool {
	return len(pattern) >= 2 &&
		pattern[0] == Delimiter &&
		pattern[len(pattern)-1] == Delimiter
}

// Compile builds a Matcher for pattern.
func Compile(pattern string) (*Matcher, error) {
	expr := TemplateToRegexp(pattern)
	if IsExplicitRegexp(pattern) {
		expr = pattern[1 : len(pattern)-1]
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, &InvalidPatternError{Pattern: pattern, Err: err}
	}
	return &Matcher{source: pattern, re: re}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(pattern string) *Matcher {
	m, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// TemplateToRegexp converts a wildcard template into an unanchored regular
// expression. Literal runs are quoted; "%" becomes ".*" in dot-all mode so
// the wildcard also spans line breaks.
func TemplateToRegexp(template string) string {
	parts := strings.Split(template, Wildcard)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return "(?s)" + strings.Join(parts, ".*")
}

// Match reports whether text contains a match for the pattern.
func (m *Matcher) Match(text string) bool {
	return m.re.MatchString(text)
}

// String returns the pattern the Matcher was compiled from.
func (m *Matcher) String() string {
	return m.source
}
