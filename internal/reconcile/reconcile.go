// Package reconcile matches expected diagnostics against the outstanding
// records of an analyzer run, consuming each record at most once.
package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eykd/psalmspec/internal/diagnostic"
	"github.com/eykd/psalmspec/internal/pattern"
)

// Sentinel errors matched by *MatchError.
var (
	ErrSetEmpty            = errors.New("no diagnostics at all")
	ErrNoMatch             = errors.New("no matching diagnostic")
	ErrUnexpectedRemaining = errors.New("unexpected diagnostics remain")
)

// Expectation is one (kind, message pattern) pair a scenario expects to see.
// Kind is compared for exact equality; MessagePattern is compiled by
// pattern.Compile.
type Expectation struct {
	Kind           string `json:"type"`
	MessagePattern string `json:"message"`
}

func (e Expectation) String() string {
	return fmt.Sprintf("[ %s %s ]", e.Kind, e.MessagePattern)
}

// MatchError is returned by every failed reconciliation. Remaining is the
// snapshot of outstanding records at the time of failure.
type MatchError struct {
	Kind      error
	Expected  *Expectation
	Remaining []diagnostic.Record
}

func (e *MatchError) Error() string {
	switch e.Kind {
	case ErrSetEmpty:
		return fmt.Sprintf("No errors (expected %s)", e.Expected)
	case ErrNoMatch:
		return fmt.Sprintf("Didn't see %s in: \n%s", e.Expected, diagnostic.RenderTable(e.Remaining))
	case ErrUnexpectedRemaining:
		return "There were errors: \n" + diagnostic.RenderTable(e.Remaining)
	}
	return e.Kind.Error()
}

// Is reports whether target is the sentinel this error was raised for.
func (e *MatchError) Is(target error) bool { return target == e.Kind }

// ExpectOne consumes the first outstanding record whose kind equals kind and
// whose message matches messagePattern.
func ExpectOne(set *diagnostic.Set, kind, messagePattern string) error {
	return Consume(set, Expectation{Kind: kind, MessagePattern: messagePattern})
}

// Consume is ExpectOne for a prepared Expectation. An empty set fails with
// ErrSetEmpty before the pattern is even compiled.
func Consume(set *diagnostic.Set, exp Expectation) error {
	if set.Empty() {
		return &MatchError{Kind: ErrSetEmpty, Expected: &exp}
	}

	m, err := pattern.Compile(exp.MessagePattern)
	if err != nil {
		return fmt.Errorf("expectation %s: %w", exp, err)
	}

	for i := 0; i < set.Len(); i++ {
		r := set.At(i)
		if r.Kind == exp.Kind && m.Match(r.Message) {
			set.Remove(i)
			return nil
		}
	}
	return &MatchError{Kind: ErrNoMatch, Expected: &exp, Remaining: set.Records()}
}

// ExpectNone fails when any record is still outstanding.
func ExpectNone(set *diagnostic.Set) error {
	if set.Empty() {
		return nil
	}
	return &MatchError{Kind: ErrUnexpectedRemaining, Remaining: set.Records()}
}

// ExpectAll consumes one record per expectation, in order, and stops at the
// first failure.
func ExpectAll(set *diagnostic.Set, expectations []Expectation) error {
	for _, exp := range expectations {
		if err := Consume(set, exp); err != nil {
			return err
		}
	}
	return nil
}

// ExpectationsFromTable converts table rows into expectations. The first row
// is a column header and is dropped; every other row needs at least two
// cells, the kind and the message pattern.
func ExpectationsFromTable(rows [][]string) ([]Expectation, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	exps := make([]Expectation, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < 2 {
			return nil, fmt.Errorf("expectation row %d: want 2 cells (type, message), got %d", i+1, len(row))
		}
		exps = append(exps, Expectation{
			Kind:           strings.TrimSpace(row[0]),
			MessagePattern: row[1],
		})
	}
	return exps, nil
}
