package scenario

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/eykd/psalmspec/acceptance"
)

// ScenarioReport is the outcome of one scenario.
type ScenarioReport struct {
	Name   string
	Line   int
	Result Result
	// Step is the step that ended the scenario early, if any.
	Step *acceptance.Step
}

// FeatureReport collects the scenario outcomes of one feature file.
type FeatureReport struct {
	SourceFile string
	Name       string
	Scenarios  []ScenarioReport
}

// Summary counts scenarios by status.
type Summary struct {
	Passed, Failed, Skipped, Undefined int
}

// Add accumulates r into s.
func (s *Summary) Add(r FeatureReport) {
	for _, sc := range r.Scenarios {
		switch sc.Result.Status {
		case Passed:
			s.Passed++
		case Failed:
			s.Failed++
		case Skipped:
			s.Skipped++
		case Undefined:
			s.Undefined++
		}
	}
}

// OK reports whether nothing failed and every step was defined.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Undefined == 0
}

// Total is the number of scenarios counted.
func (s Summary) Total() int {
	return s.Passed + s.Failed + s.Skipped + s.Undefined
}

// Driver runs features through a Session, one scenario at a time.
type Driver struct {
	session *Session
	steps   []StepDef
	log     *log.Logger

	// SkipTags excludes scenarios carrying any of these tags, on the
	// scenario or its feature.
	SkipTags []string
}

// NewDriver returns a Driver using the standard step library.
func NewDriver(session *Session, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Driver{session: session, steps: Steps(), log: logger}
}

// RunFeature runs every scenario of feature in order. Background steps run
// before each scenario's own steps.
func (d *Driver) RunFeature(ctx context.Context, feature *acceptance.Feature) FeatureReport {
	report := FeatureReport{SourceFile: feature.SourceFile, Name: feature.Name}
	for _, sc := range feature.Scenarios {
		rep := d.runScenario(ctx, feature, sc)
		d.log.Debug(rep.Result.Status.String(), "scenario", sc.Description, "file", feature.SourceFile, "line", sc.Line)
		report.Scenarios = append(report.Scenarios, rep)
	}
	return report
}

func (d *Driver) runScenario(ctx context.Context, feature *acceptance.Feature, sc acceptance.Scenario) ScenarioReport {
	rep := ScenarioReport{Name: sc.Description, Line: sc.Line}

	for _, tag := range d.SkipTags {
		if feature.HasTag(sc, tag) {
			rep.Result = Skip("excluded by tag @" + tag)
			return rep
		}
	}

	if err := d.session.Begin(ctx); err != nil {
		rep.Result = Fail(fmt.Errorf("preparing workspace: %w", err))
		return rep
	}

	steps := make([]acceptance.Step, 0, len(feature.Background)+len(sc.Steps))
	steps = append(steps, feature.Background...)
	steps = append(steps, sc.Steps...)

	for i := range steps {
		step := steps[i]
		res := d.runStep(ctx, step)
		if res.Status != Passed {
			rep.Result = res
			rep.Step = &step
			return rep
		}
	}
	rep.Result = Pass()
	return rep
}

func (d *Driver) runStep(ctx context.Context, step acceptance.Step) Result {
	if err := ctx.Err(); err != nil {
		return Fail(err)
	}
	def, args, ok := Match(d.steps, step.Text)
	if !ok {
		return Result{Status: Undefined, Reason: fmt.Sprintf("undefined step: %s %s", step.Keyword, step.Text)}
	}
	d.log.Debugf("%s %s", step.Keyword, step.Text)
	return def.Run(ctx, d.session, step, args)
}
