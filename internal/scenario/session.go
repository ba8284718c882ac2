// Package scenario executes parsed feature files step by step against the
// analyzer, a fixture workspace and the installed package versions.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/eykd/psalmspec/internal/analyzer"
	"github.com/eykd/psalmspec/internal/diagnostic"
	"github.com/eykd/psalmspec/internal/fixture"
	"github.com/eykd/psalmspec/internal/version"
)

// Version constraints on the analyzer package.
const (
	NoProgressConstraint    = ">=3.4.0"
	TaintAnalysisConstraint = ">=3.10.0"
)

// ErrNotRun is returned by assertions made before the analyzer ran.
var ErrNotRun = errors.New("psalm has not been run in this scenario")

// Options configures a Session.
type Options struct {
	Workspace *fixture.Workspace
	Runner    analyzer.Runner
	Gate      *version.Gate
	// Package is the analyzer's Composer package, used for version gating.
	Package string
	Logger  *log.Logger
}

// Session is the state of one running scenario.
type Session struct {
	workspace *fixture.Workspace
	runner    analyzer.Runner
	gate      *version.Gate
	pkg       string
	log       *log.Logger

	preamble    string
	psalmConfig string
	hasAutoload bool
	result      *analyzer.Result
	diagnostics *diagnostic.Set
}

// NewSession returns a Session over opts. Call Begin before each scenario.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Session{
		workspace: opts.Workspace,
		runner:    opts.Runner,
		gate:      opts.Gate,
		pkg:       opts.Package,
		log:       logger,
	}
}

// Begin clears all per-scenario state and resets the workspace.
func (s *Session) Begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.preamble = ""
	s.psalmConfig = ""
	s.hasAutoload = false
	s.result = nil
	s.diagnostics = nil
	return s.workspace.Reset()
}

// SetPreamble sets the text prepended to every later code block.
func (s *Session) SetPreamble(code string) {
	s.preamble = code
}

// SetConfig replaces the default psalm.xml for the next run.
func (s *Session) SetConfig(xml string) {
	s.psalmConfig = xml
}

// AddCode writes preamble+code to a content-named file in the workspace.
func (s *Session) AddCode(code string) (string, error) {
	return s.workspace.WriteCode(s.preamble, code)
}

// AddCodeIn writes code, without the preamble, to file in the workspace.
func (s *Session) AddCodeIn(file, code string) error {
	return s.workspace.WriteCodeIn(file, code)
}

// SetAutoloadMap writes the class-map autoloader and enables it in the
// generated config.
func (s *Session) SetAutoloadMap(entries []fixture.AutoloadEntry) error {
	if err := s.workspace.WriteAutoloadMap(entries); err != nil {
		return err
	}
	s.hasAutoload = true
	return nil
}

// AnalyzerSatisfies reports whether the installed analyzer matches
// constraint.
func (s *Session) AnalyzerSatisfies(constraint string) bool {
	return s.gate.Satisfies(s.pkg, constraint)
}

// PackageSatisfies reports whether pkg is installed at a version matching
// constraint.
func (s *Session) PackageSatisfies(pkg, constraint string) bool {
	return s.gate.Satisfies(pkg, constraint)
}

// Run writes psalm.xml and runs the analyzer in the workspace on target
// (the whole project when empty). Any earlier result is replaced.
func (s *Session) Run(ctx context.Context, target string, options ...string) error {
	if err := s.workspace.WriteConfig(s.psalmConfig, s.hasAutoload); err != nil {
		return err
	}
	res, err := s.runner.Run(ctx, analyzer.Invocation{
		Dir:        s.workspace.Dir(),
		Target:     target,
		Options:    options,
		NoProgress: s.AnalyzerSatisfies(NoProgressConstraint),
	})
	if err != nil {
		return fmt.Errorf("running psalm: %w", err)
	}
	s.result = &res
	s.diagnostics = nil
	return nil
}

// ExitCode returns the exit code of the last run.
func (s *Session) ExitCode() (int, error) {
	if s.result == nil {
		return 0, ErrNotRun
	}
	return s.result.ExitCode, nil
}

// Diagnostics returns the diagnostics of the last run, decoding the output on
// first use. Assertions consume from the returned set.
func (s *Session) Diagnostics() (*diagnostic.Set, error) {
	if s.diagnostics != nil {
		return s.diagnostics, nil
	}
	if s.result == nil {
		return nil, ErrNotRun
	}
	set, err := diagnostic.Load(s.result.Output, s.result.ExitCode)
	if err != nil {
		return nil, err
	}
	s.log.Debugf("Psalm reported %d errors", set.Len())
	if !set.Empty() {
		s.log.Debug("Remaining errors:\n" + set.Table())
	}
	s.diagnostics = set
	return set, nil
}
