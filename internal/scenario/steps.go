package scenario

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/eykd/psalmspec/acceptance"
	"github.com/eykd/psalmspec/internal/fixture"
	"github.com/eykd/psalmspec/internal/reconcile"
	"github.com/eykd/psalmspec/internal/version"
)

// StepFunc executes one matched step. args holds the pattern's submatches.
type StepFunc func(ctx context.Context, s *Session, step acceptance.Step, args []string) Result

// StepDef binds a step text pattern to its implementation.
type StepDef struct {
	Pattern *regexp.Regexp
	Run     StepFunc
}

func def(pattern string, run StepFunc) StepDef {
	return StepDef{Pattern: regexp.MustCompile("^" + pattern + "$"), Run: run}
}

// Steps returns the step library.
func Steps() []StepDef {
	return []StepDef{
		def(`I have the following code preamble`, haveCodePreamble),
		def(`I have the following code`, haveCode),
		def(`I have the following code in "([^"]+)"`, haveCodeIn),
		def(`I have the following config`, haveConfig),
		def(`I have the following (?:autoload map|classmap|class map)`, haveAutoloadMap),
		def(`I have [Pp]salm (newer than|older than) "([0-9.]+)" \(because of "([^"]+)"\)`, havePsalmVersion),
		def(`I have [Pp]salm with taint analysis`, havePsalmWithTaintAnalysis),
		def(`I have some future [Pp]salm that supports this feature "([^"]*)"`, haveFuturePsalm),
		def(`I have the "([^"]+)" package satisfying the "([^"]+)"`, havePackage),

		def(`I run [Pp]salm`, runPsalm),
		def(`I run [Pp]salm with dead code detection`, runPsalmWithDeadCode),
		def(`I run [Pp]salm with taint analysis`, runPsalmWithTaintAnalysis),
		def(`I run [Pp]salm on "([^"]+)"`, runPsalmOn),

		def(`I see exit code "?(-?\d+)"?`, seeExitCode),
		def(`I see no (?:other )?errors`, seeNoErrors),
		def(`I see these errors`, seeTheseErrors),
		def(`I see this error "([^"]+)" "([^"]*)"`, seeThisError),
	}
}

// Match returns the first definition whose pattern matches text, with its
// submatches.
func Match(defs []StepDef, text string) (StepDef, []string, bool) {
	for _, d := range defs {
		if m := d.Pattern.FindStringSubmatch(text); m != nil {
			return d, m[1:], true
		}
	}
	return StepDef{}, nil, false
}

func docString(step acceptance.Step) (string, error) {
	if step.DocString == nil {
		return "", fmt.Errorf("step %q needs a doc string", step.Text)
	}
	return step.DocString.Content, nil
}

func table(step acceptance.Step) ([][]string, error) {
	if step.Table == nil {
		return nil, fmt.Errorf("step %q needs a table", step.Text)
	}
	return step.Table, nil
}

func haveCodePreamble(_ context.Context, s *Session, step acceptance.Step, _ []string) Result {
	code, err := docString(step)
	if err != nil {
		return Fail(err)
	}
	s.SetPreamble(code)
	return Pass()
}

func haveCode(_ context.Context, s *Session, step acceptance.Step, _ []string) Result {
	code, err := docString(step)
	if err != nil {
		return Fail(err)
	}
	_, err = s.AddCode(code)
	return Check(err)
}

func haveCodeIn(_ context.Context, s *Session, step acceptance.Step, args []string) Result {
	code, err := docString(step)
	if err != nil {
		return Fail(err)
	}
	return Check(s.AddCodeIn(args[0], code))
}

func haveConfig(_ context.Context, s *Session, step acceptance.Step, _ []string) Result {
	xml, err := docString(step)
	if err != nil {
		return Fail(err)
	}
	s.SetConfig(xml)
	return Pass()
}

func haveAutoloadMap(_ context.Context, s *Session, step acceptance.Step, _ []string) Result {
	rows, err := table(step)
	if err != nil {
		return Fail(err)
	}
	var entries []fixture.AutoloadEntry
	for i, row := range rows[1:] {
		if len(row) < 2 {
			return Failf("autoload map row %d: want class and file, got %d cells", i+1, len(row))
		}
		entries = append(entries, fixture.AutoloadEntry{Class: row[0], File: row[1]})
	}
	return Check(s.SetAutoloadMap(entries))
}

func havePsalmVersion(_ context.Context, s *Session, _ acceptance.Step, args []string) Result {
	op, err := version.ResolveOperator(args[0])
	if err != nil {
		return Fail(err)
	}
	ver, reason := args[1], args[2]
	if !s.AnalyzerSatisfies(op + ver) {
		return Skip(fmt.Sprintf("This scenario requires Psalm %s %s because of %s", op, ver, reason))
	}
	return Pass()
}

func havePsalmWithTaintAnalysis(_ context.Context, s *Session, _ acceptance.Step, _ []string) Result {
	if !s.AnalyzerSatisfies(TaintAnalysisConstraint) {
		return Skip("This scenario requires Psalm with taint analysis (3.10+)")
	}
	return Pass()
}

func haveFuturePsalm(_ context.Context, _ *Session, _ acceptance.Step, args []string) Result {
	return Skip("Future functionality that Psalm has yet to support: " + args[0])
}

func havePackage(_ context.Context, s *Session, _ acceptance.Step, args []string) Result {
	pkg, constraint := args[0], args[1]
	if !s.PackageSatisfies(pkg, constraint) {
		return Skip(fmt.Sprintf("This scenario requires %s to match %s", pkg, constraint))
	}
	return Pass()
}

func runPsalm(ctx context.Context, s *Session, _ acceptance.Step, _ []string) Result {
	return Check(s.Run(ctx, ""))
}

func runPsalmWithDeadCode(ctx context.Context, s *Session, _ acceptance.Step, _ []string) Result {
	return Check(s.Run(ctx, "", "--find-dead-code"))
}

func runPsalmWithTaintAnalysis(ctx context.Context, s *Session, _ acceptance.Step, _ []string) Result {
	if !s.AnalyzerSatisfies(TaintAnalysisConstraint) {
		return Failf("Taint analysis is available since 3.10.0")
	}
	return Check(s.Run(ctx, "", "--track-tainted-input"))
}

func runPsalmOn(ctx context.Context, s *Session, _ acceptance.Step, args []string) Result {
	return Check(s.Run(ctx, args[0]))
}

func seeExitCode(_ context.Context, s *Session, _ acceptance.Step, args []string) Result {
	want, err := strconv.Atoi(args[0])
	if err != nil {
		return Fail(err)
	}
	got, err := s.ExitCode()
	if err != nil {
		return Fail(err)
	}
	if got != want {
		return Failf("Expected exit code %d, got %d", want, got)
	}
	return Pass()
}

func seeNoErrors(_ context.Context, s *Session, _ acceptance.Step, _ []string) Result {
	set, err := s.Diagnostics()
	if err != nil {
		return Fail(err)
	}
	return Check(reconcile.ExpectNone(set))
}

func seeTheseErrors(_ context.Context, s *Session, step acceptance.Step, _ []string) Result {
	rows, err := table(step)
	if err != nil {
		return Fail(err)
	}
	expectations, err := reconcile.ExpectationsFromTable(rows)
	if err != nil {
		return Fail(err)
	}
	set, err := s.Diagnostics()
	if err != nil {
		return Fail(err)
	}
	return Check(reconcile.ExpectAll(set, expectations))
}

func seeThisError(_ context.Context, s *Session, _ acceptance.Step, args []string) Result {
	set, err := s.Diagnostics()
	if err != nil {
		return Fail(err)
	}
	return Check(reconcile.ExpectOne(set, args[0], args[1]))
}
