package scenario

import "fmt"

// Status is the outcome of a step or scenario.
type Status int

const (
	Passed Status = iota
	Failed
	Skipped
	Undefined
)

func (s Status) String() string {
	switch s {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case Undefined:
		return "undefined"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is what a step returns. A skip carries a reason and is neither a
// pass nor a failure.
type Result struct {
	Status Status
	Reason string
	Err    error
}

// Pass returns a passing Result.
func Pass() Result { return Result{Status: Passed} }

// Fail returns a failing Result for err.
func Fail(err error) Result {
	return Result{Status: Failed, Reason: err.Error(), Err: err}
}

// Failf is Fail with a formatted error.
func Failf(format string, args ...any) Result {
	return Fail(fmt.Errorf(format, args...))
}

// Skip returns a skipped Result with reason.
func Skip(reason string) Result {
	return Result{Status: Skipped, Reason: reason}
}

// Check turns a plain error into a Result.
func Check(err error) Result {
	if err != nil {
		return Fail(err)
	}
	return Pass()
}
