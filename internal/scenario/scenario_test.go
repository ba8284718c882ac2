package scenario

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eykd/psalmspec/acceptance"
	"github.com/eykd/psalmspec/internal/analyzer"
	"github.com/eykd/psalmspec/internal/fixture"
	"github.com/eykd/psalmspec/internal/version"
)

type fakeSource map[string]string

func (f fakeSource) Version(pkg string) (string, error) {
	if v, ok := f[pkg]; ok {
		return v, nil
	}
	return "", version.ErrNotInstalled
}

// fakeRunner returns its queued results in order and records every
// invocation along with the workspace's psalm.xml at the time of the run.
type fakeRunner struct {
	results []analyzer.Result
	err     error
	calls   []analyzer.Invocation
	configs []string
}

func (f *fakeRunner) Run(_ context.Context, inv analyzer.Invocation) (analyzer.Result, error) {
	f.calls = append(f.calls, inv)
	cfg, _ := os.ReadFile(filepath.Join(inv.Dir, fixture.ConfigFile))
	f.configs = append(f.configs, string(cfg))
	if f.err != nil {
		return analyzer.Result{}, f.err
	}
	if len(f.results) == 0 {
		return analyzer.Result{}, nil
	}
	res := f.results[0]
	f.results = f.results[1:]
	return res, nil
}

func newTestSession(t *testing.T, psalmVersion string, runner *fakeRunner) *Session {
	t.Helper()
	versions := fakeSource{}
	if psalmVersion != "" {
		versions["vimeo/psalm"] = psalmVersion
	}
	logger := log.New(io.Discard)
	return NewSession(Options{
		Workspace: fixture.New(filepath.Join(t.TempDir(), "_run"), "", logger),
		Runner:    runner,
		Gate:      version.NewGate(versions, logger),
		Package:   "vimeo/psalm",
		Logger:    logger,
	})
}

func parse(t *testing.T, content string) *acceptance.Feature {
	t.Helper()
	feature, err := acceptance.ParseFeature(content, "test.feature")
	require.NoError(t, err)
	return feature
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "passed", Passed.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "undefined", Undefined.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}

func TestResultConstructors(t *testing.T) {
	assert.Equal(t, Passed, Pass().Status)

	err := errors.New("boom")
	r := Fail(err)
	assert.Equal(t, Failed, r.Status)
	assert.Equal(t, "boom", r.Reason)
	assert.Same(t, err, r.Err)

	r = Skip("later")
	assert.Equal(t, Skipped, r.Status)
	assert.Equal(t, "later", r.Reason)
	assert.NoError(t, r.Err)

	assert.Equal(t, Passed, Check(nil).Status)
	assert.Equal(t, Failed, Check(err).Status)
}

func TestMatch(t *testing.T) {
	defs := Steps()
	tests := []struct {
		text string
		args []string
	}{
		{"I have the following code", []string{}},
		{"I have the following code preamble", []string{}},
		{`I have the following code in "src/Foo.php"`, []string{"src/Foo.php"}},
		{"I have the following class map", []string{}},
		{"I have the following classmap", []string{}},
		{`I have Psalm newer than "3.4" (because of "new syntax")`, []string{"newer than", "3.4", "new syntax"}},
		{`I have psalm older than "4.0.0" (because of "a bug")`, []string{"older than", "4.0.0", "a bug"}},
		{`I have some future Psalm that supports this feature "#123"`, []string{"#123"}},
		{`I have the "psalm/plugin-phpunit" package satisfying the "^0.10"`, []string{"psalm/plugin-phpunit", "^0.10"}},
		{"I run psalm", []string{}},
		{"I run Psalm with dead code detection", []string{}},
		{`I run Psalm on "src/Foo.php"`, []string{"src/Foo.php"}},
		{"I see exit code 2", []string{"2"}},
		{`I see exit code "1"`, []string{"1"}},
		{"I see no other errors", []string{}},
		{`I see this error "InvalidReturnType" "expected %"`, []string{"InvalidReturnType", "expected %"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, args, ok := Match(defs, tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.args, args)
		})
	}

	_, _, ok := Match(defs, "I dance")
	assert.False(t, ok)
	_, _, ok = Match(defs, "I run Psalm twice")
	assert.False(t, ok)
}

func TestDriver_PassingScenario(t *testing.T) {
	runner := &fakeRunner{results: []analyzer.Result{{
		Output:   `[{"type":"InvalidReturnType","message":"The declared return type 'string' for foo is incorrect, got 'int'"}]`,
		ExitCode: 2,
	}}}
	session := newTestSession(t, "5.0.0", runner)

	feature := parse(t, `Feature: Return types
  Background:
    Given I have the following code preamble
      """
      <?php

      """

  Scenario: Wrong return type
    Given I have the following code
      """
      function foo(): string { return 1; }
      """
    When I run Psalm
    Then I see exit code 2
    And I see these errors
      | Type              | Message                                   |
      | InvalidReturnType | The declared return type 'string' for % |
    And I see no other errors
`)

	report := NewDriver(session, nil).RunFeature(context.Background(), feature)
	require.Len(t, report.Scenarios, 1)
	sc := report.Scenarios[0]
	assert.Equal(t, Passed, sc.Result.Status, sc.Result.Reason)
	assert.Nil(t, sc.Step)
	assert.Equal(t, "Return types", report.Name)

	require.Len(t, runner.calls, 1)
	assert.True(t, runner.calls[0].NoProgress)
	assert.Empty(t, runner.calls[0].Target)
	assert.Equal(t, session.workspace.Dir(), runner.calls[0].Dir)

	entries, err := os.ReadDir(session.workspace.Dir())
	require.NoError(t, err)
	var php []string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".php" {
			data, err := os.ReadFile(filepath.Join(session.workspace.Dir(), e.Name()))
			require.NoError(t, err)
			php = append(php, string(data))
		}
	}
	assert.Equal(t, []string{"<?php\nfunction foo(): string { return 1; }"}, php)
}

func TestDriver_UnmatchedErrorFails(t *testing.T) {
	runner := &fakeRunner{results: []analyzer.Result{{
		Output:   `[{"type":"A","message":"one"},{"type":"B","message":"two"}]`,
		ExitCode: 2,
	}}}
	session := newTestSession(t, "5.0.0", runner)

	feature := parse(t, `Feature: x
  Scenario: y
    When I run Psalm
    Then I see this error "A" "one"
    And I see no other errors
`)

	sc := NewDriver(session, nil).RunFeature(context.Background(), feature).Scenarios[0]
	assert.Equal(t, Failed, sc.Result.Status)
	require.NotNil(t, sc.Step)
	assert.Equal(t, 5, sc.Step.Line)
	assert.Contains(t, sc.Result.Reason, "There were errors")
	assert.Contains(t, sc.Result.Reason, "| B    | two     |")
}

func TestDriver_ExitCodeMismatch(t *testing.T) {
	runner := &fakeRunner{results: []analyzer.Result{{Output: "[]", ExitCode: 0}}}
	session := newTestSession(t, "5.0.0", runner)

	feature := parse(t, "Feature: x\n  Scenario: y\n    When I run Psalm\n    Then I see exit code 2\n")
	sc := NewDriver(session, nil).RunFeature(context.Background(), feature).Scenarios[0]
	assert.Equal(t, Failed, sc.Result.Status)
	assert.Equal(t, "Expected exit code 2, got 0", sc.Result.Reason)
}

func TestDriver_AssertionBeforeRun(t *testing.T) {
	session := newTestSession(t, "5.0.0", &fakeRunner{})
	feature := parse(t, "Feature: x\n  Scenario: y\n    Then I see no errors\n")

	sc := NewDriver(session, nil).RunFeature(context.Background(), feature).Scenarios[0]
	assert.Equal(t, Failed, sc.Result.Status)
	assert.True(t, errors.Is(sc.Result.Err, ErrNotRun))
}

func TestDriver_MalformedOutputFails(t *testing.T) {
	runner := &fakeRunner{results: []analyzer.Result{{Output: "PHP Fatal error: oops", ExitCode: 255}}}
	session := newTestSession(t, "5.0.0", runner)
	feature := parse(t, "Feature: x\n  Scenario: y\n    When I run Psalm\n    Then I see no errors\n")

	sc := NewDriver(session, nil).RunFeature(context.Background(), feature).Scenarios[0]
	assert.Equal(t, Failed, sc.Result.Status)
}

func TestDriver_RunnerErrorFails(t *testing.T) {
	session := newTestSession(t, "5.0.0", &fakeRunner{err: errors.New("exec: not found")})
	feature := parse(t, "Feature: x\n  Scenario: y\n    When I run Psalm\n    Then I see no errors\n")

	sc := NewDriver(session, nil).RunFeature(context.Background(), feature).Scenarios[0]
	assert.Equal(t, Failed, sc.Result.Status)
	assert.Contains(t, sc.Result.Reason, "exec: not found")
	assert.Equal(t, 3, sc.Step.Line)
}

func TestDriver_Skips(t *testing.T) {
	tests := []struct {
		name    string
		psalm   string
		step    string
		reason  string
		skipped bool
	}{
		{
			name:    "older analyzer skips taint scenarios",
			psalm:   "3.9.0",
			step:    "Given I have Psalm with taint analysis",
			reason:  "This scenario requires Psalm with taint analysis (3.10+)",
			skipped: true,
		},
		{
			name:  "taint available",
			psalm: "3.10.0",
			step:  "Given I have Psalm with taint analysis",
		},
		{
			name:    "future functionality",
			psalm:   "5.0.0",
			step:    `Given I have some future Psalm that supports this feature "#42"`,
			reason:  "Future functionality that Psalm has yet to support: #42",
			skipped: true,
		},
		{
			name:    "version too old",
			psalm:   "3.4.0",
			step:    `Given I have Psalm newer than "3.5" (because of "new inference")`,
			reason:  "This scenario requires Psalm > 3.5 because of new inference",
			skipped: true,
		},
		{
			name:    "version too new",
			psalm:   "4.0.0",
			step:    `Given I have Psalm older than "4.0.0" (because of "removed check")`,
			reason:  "This scenario requires Psalm < 4.0.0 because of removed check",
			skipped: true,
		},
		{
			name:  "version ok",
			psalm: "4.1.0",
			step:  `Given I have Psalm newer than "4.0.0" (because of "new check")`,
		},
		{
			name:    "missing package",
			psalm:   "5.0.0",
			step:    `Given I have the "psalm/plugin-phpunit" package satisfying the "^0.10"`,
			reason:  "This scenario requires psalm/plugin-phpunit to match ^0.10",
			skipped: true,
		},
		{
			name:  "analyzer package satisfied",
			psalm: "5.0.0",
			step:  `Given I have the "vimeo/psalm" package satisfying the "^5.0"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{results: []analyzer.Result{{Output: "[]"}}}
			session := newTestSession(t, tt.psalm, runner)
			feature := parse(t, "Feature: x\n  Scenario: y\n    "+tt.step+"\n    When I run Psalm\n    Then I see no errors\n")

			sc := NewDriver(session, nil).RunFeature(context.Background(), feature).Scenarios[0]
			if tt.skipped {
				assert.Equal(t, Skipped, sc.Result.Status)
				assert.Equal(t, tt.reason, sc.Result.Reason)
				assert.Empty(t, runner.calls, "skipped scenario must not run the analyzer")
				return
			}
			assert.Equal(t, Passed, sc.Result.Status, sc.Result.Reason)
			assert.Len(t, runner.calls, 1)
		})
	}
}

func TestDriver_RunOptions(t *testing.T) {
	tests := []struct {
		name       string
		psalm      string
		step       string
		options    []string
		target     string
		noProgress bool
	}{
		{"plain", "3.4.0", "When I run Psalm", nil, "", true},
		{"old analyzer keeps progress", "3.3.9", "When I run Psalm", nil, "", false},
		{"dead code", "4.0.0", "When I run Psalm with dead code detection", []string{"--find-dead-code"}, "", true},
		{"taint", "3.10.0", "When I run Psalm with taint analysis", []string{"--track-tainted-input"}, "", true},
		{"single file", "4.0.0", `When I run psalm on "src/Foo.php"`, nil, "src/Foo.php", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			session := newTestSession(t, tt.psalm, runner)
			feature := parse(t, "Feature: x\n  Scenario: y\n    "+tt.step+"\n")

			sc := NewDriver(session, nil).RunFeature(context.Background(), feature).Scenarios[0]
			require.Equal(t, Passed, sc.Result.Status, sc.Result.Reason)
			require.Len(t, runner.calls, 1)
			assert.Equal(t, tt.options, runner.calls[0].Options)
			assert.Equal(t, tt.target, runner.calls[0].Target)
			assert.Equal(t, tt.noProgress, runner.calls[0].NoProgress)
		})
	}
}

func TestDriver_TaintRunOnOldAnalyzerFails(t *testing.T) {
	runner := &fakeRunner{}
	session := newTestSession(t, "3.9.0", runner)
	feature := parse(t, "Feature: x\n  Scenario: y\n    When I run Psalm with taint analysis\n")

	sc := NewDriver(session, nil).RunFeature(context.Background(), feature).Scenarios[0]
	assert.Equal(t, Failed, sc.Result.Status)
	assert.Equal(t, "Taint analysis is available since 3.10.0", sc.Result.Reason)
	assert.Empty(t, runner.calls)
}

func TestDriver_ConfigAndAutoload(t *testing.T) {
	runner := &fakeRunner{}
	session := newTestSession(t, "5.0.0", runner)
	feature := parse(t, `Feature: x
  Scenario: custom config
    Given I have the following config
      """
      <psalm %s><projectFiles><directory name="."/></projectFiles></psalm>
      """
    And I have the following autoload map
      | Class | File        |
      | Foo   | src/Foo.php |
    And I have the following code in "src/Foo.php"
      """
      <?php class Foo {}
      """
    When I run Psalm

  Scenario: default config
    When I run Psalm
`)

	report := NewDriver(session, nil).RunFeature(context.Background(), feature)
	for _, sc := range report.Scenarios {
		require.Equal(t, Passed, sc.Result.Status, sc.Result.Reason)
	}

	require.Len(t, runner.configs, 2)
	assert.Equal(t, `<psalm autoloader="autoload.php"><projectFiles><directory name="."/></projectFiles></psalm>`, runner.configs[0])
	assert.Equal(t, strings.ReplaceAll(fixture.DefaultConfig, "%s", ""), runner.configs[1])
	assert.NotContains(t, runner.configs[1], "autoloader", "state must not leak between scenarios")
	assert.NotContains(t, runner.configs[1], "%s")

	// The second scenario reset the workspace.
	_, err := os.Stat(filepath.Join(session.workspace.Dir(), "src", "Foo.php"))
	assert.True(t, os.IsNotExist(err))
}

func TestDriver_RerunReplacesDiagnostics(t *testing.T) {
	runner := &fakeRunner{results: []analyzer.Result{
		{Output: `[{"type":"A","message":"first"},{"type":"B","message":"left over"}]`, ExitCode: 2},
		{Output: "[]", ExitCode: 0},
	}}
	session := newTestSession(t, "5.0.0", runner)
	feature := parse(t, `Feature: x
  Scenario: run twice
    When I run Psalm
    Then I see this error "A" "first"
    When I run Psalm
    Then I see exit code 0
    And I see no errors
`)

	sc := NewDriver(session, nil).RunFeature(context.Background(), feature).Scenarios[0]
	assert.Equal(t, Passed, sc.Result.Status, sc.Result.Reason)
	assert.Len(t, runner.calls, 2)
}

func TestDriver_DiagnosticsDoNotCarryAcrossScenarios(t *testing.T) {
	runner := &fakeRunner{results: []analyzer.Result{
		{Output: `[{"type":"A","message":"first"},{"type":"B","message":"left over"}]`, ExitCode: 2},
	}}
	session := newTestSession(t, "5.0.0", runner)
	feature := parse(t, `Feature: x
  Scenario: leaves diagnostics behind
    When I run Psalm
    Then I see this error "A" "first"

  Scenario: never runs the analyzer
    Then I see no errors
`)

	report := NewDriver(session, nil).RunFeature(context.Background(), feature)
	require.Len(t, report.Scenarios, 2)
	assert.Equal(t, Passed, report.Scenarios[0].Result.Status, report.Scenarios[0].Result.Reason)

	second := report.Scenarios[1]
	assert.Equal(t, Failed, second.Result.Status)
	assert.True(t, errors.Is(second.Result.Err, ErrNotRun), "got %v", second.Result.Err)
	assert.NotContains(t, second.Result.Reason, "left over")
	assert.Len(t, runner.calls, 1)
}

func TestSession_RunAndBeginResetDiagnostics(t *testing.T) {
	runner := &fakeRunner{results: []analyzer.Result{
		{Output: `[{"type":"A","message":"m"}]`, ExitCode: 2},
		{Output: `[{"type":"B","message":"n"}]`, ExitCode: 2},
	}}
	session := newTestSession(t, "5.0.0", runner)
	ctx := context.Background()
	require.NoError(t, session.Begin(ctx))

	require.NoError(t, session.Run(ctx, ""))
	first, err := session.Diagnostics()
	require.NoError(t, err)
	assert.Equal(t, "A", first.Records()[0].Kind)

	require.NoError(t, session.Run(ctx, ""))
	second, err := session.Diagnostics()
	require.NoError(t, err)
	require.Equal(t, 1, second.Len())
	assert.Equal(t, "B", second.Records()[0].Kind)

	require.NoError(t, session.Begin(ctx))
	_, err = session.Diagnostics()
	assert.True(t, errors.Is(err, ErrNotRun))
	_, err = session.ExitCode()
	assert.True(t, errors.Is(err, ErrNotRun))
}

func TestDriver_Undefined(t *testing.T) {
	session := newTestSession(t, "5.0.0", &fakeRunner{})
	feature := parse(t, "Feature: x\n  Scenario: y\n    Given I dance\n    When I run Psalm\n")

	sc := NewDriver(session, nil).RunFeature(context.Background(), feature).Scenarios[0]
	assert.Equal(t, Undefined, sc.Result.Status)
	assert.Equal(t, "undefined step: Given I dance", sc.Result.Reason)
}

func TestDriver_MissingArguments(t *testing.T) {
	session := newTestSession(t, "5.0.0", &fakeRunner{})
	feature := parse(t, "Feature: x\n  Scenario: a\n    Given I have the following code\n  Scenario: b\n    Then I see these errors\n")

	report := NewDriver(session, nil).RunFeature(context.Background(), feature)
	assert.Contains(t, report.Scenarios[0].Result.Reason, "needs a doc string")
	assert.Contains(t, report.Scenarios[1].Result.Reason, "needs a table")
}

func TestDriver_SkipTags(t *testing.T) {
	runner := &fakeRunner{}
	session := newTestSession(t, "5.0.0", runner)
	feature := parse(t, "Feature: x\n  @slow\n  Scenario: a\n    When I run Psalm\n  Scenario: b\n    When I run Psalm\n")

	driver := NewDriver(session, nil)
	driver.SkipTags = []string{"slow"}
	report := driver.RunFeature(context.Background(), feature)

	assert.Equal(t, Skipped, report.Scenarios[0].Result.Status)
	assert.Equal(t, "excluded by tag @slow", report.Scenarios[0].Result.Reason)
	assert.Equal(t, Passed, report.Scenarios[1].Result.Status)
	assert.Len(t, runner.calls, 1)
}

func TestDriver_CancelledContext(t *testing.T) {
	runner := &fakeRunner{}
	session := newTestSession(t, "5.0.0", runner)
	feature := parse(t, "Feature: x\n  Scenario: y\n    When I run Psalm\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sc := NewDriver(session, nil).RunFeature(ctx, feature).Scenarios[0]
	assert.Equal(t, Failed, sc.Result.Status)
	assert.True(t, errors.Is(sc.Result.Err, context.Canceled))
	assert.Empty(t, runner.calls)
}

func TestSummary(t *testing.T) {
	var s Summary
	s.Add(FeatureReport{Scenarios: []ScenarioReport{
		{Result: Pass()},
		{Result: Pass()},
		{Result: Skip("x")},
	}})
	assert.True(t, s.OK())
	s.Add(FeatureReport{Scenarios: []ScenarioReport{{Result: Result{Status: Undefined}}}})
	assert.False(t, s.OK())
	s.Add(FeatureReport{Scenarios: []ScenarioReport{{Result: Fail(errors.New("x"))}}})

	assert.Equal(t, Summary{Passed: 2, Failed: 1, Skipped: 1, Undefined: 1}, s)
	assert.Equal(t, 5, s.Total())
}
