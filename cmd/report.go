package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/eykd/psalmspec/internal/scenario"
)

// runReport prints scenario outcomes as they complete.
type runReport struct {
	w io.Writer

	title  lipgloss.Style
	status map[scenario.Status]lipgloss.Style
	detail lipgloss.Style
}

func newRunReport(w io.Writer) *runReport {
	// A renderer bound to w drops colors when w is not a terminal.
	r := lipgloss.NewRenderer(w)
	return &runReport{
		w:     w,
		title: r.NewStyle().Bold(true),
		status: map[scenario.Status]lipgloss.Style{
			scenario.Passed:    r.NewStyle().Foreground(lipgloss.Color("#02BA84")),
			scenario.Failed:    r.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true),
			scenario.Skipped:   r.NewStyle().Foreground(lipgloss.Color("#FFB454")),
			scenario.Undefined: r.NewStyle().Foreground(lipgloss.Color("#7D56F4")),
		},
		detail: r.NewStyle().Foreground(lipgloss.Color("#626262")).PaddingLeft(6),
	}
}

var statusLabels = map[scenario.Status]string{
	scenario.Passed:    "PASS",
	scenario.Failed:    "FAIL",
	scenario.Skipped:   "SKIP",
	scenario.Undefined: "UNDEF",
}

func (r *runReport) feature(fr scenario.FeatureReport) {
	heading := fr.SourceFile
	if fr.Name != "" {
		heading += ": " + fr.Name
	}
	fmt.Fprintln(r.w, r.title.Render(sanitizeLine(heading)))

	for _, sc := range fr.Scenarios {
		label := r.status[sc.Result.Status].Render(fmt.Sprintf("%-5s", statusLabels[sc.Result.Status]))
		name := sc.Name
		if name == "" {
			name = "(unnamed scenario)"
		}
		fmt.Fprintf(r.w, "  %s %s (line %d)\n", label, sanitizeLine(name), sc.Line)

		if sc.Result.Status == scenario.Passed {
			continue
		}
		var detail []string
		if sc.Step != nil {
			detail = append(detail, sanitizeLine(fmt.Sprintf("%s %s (line %d)", sc.Step.Keyword, sc.Step.Text, sc.Step.Line)))
		}
		if sc.Result.Reason != "" {
			detail = append(detail, sanitizeBlock(sc.Result.Reason))
		}
		if len(detail) > 0 {
			fmt.Fprintln(r.w, r.detail.Render(strings.Join(detail, "\n")))
		}
	}
}

func (r *runReport) summary(s scenario.Summary) {
	parts := []string{
		r.status[scenario.Passed].Render(fmt.Sprintf("%d passed", s.Passed)),
		r.status[scenario.Failed].Render(fmt.Sprintf("%d failed", s.Failed)),
		r.status[scenario.Skipped].Render(fmt.Sprintf("%d skipped", s.Skipped)),
		r.status[scenario.Undefined].Render(fmt.Sprintf("%d undefined", s.Undefined)),
	}
	fmt.Fprintf(r.w, "\n%s %s\n", r.title.Render(fmt.Sprintf("%d scenarios:", s.Total())), strings.Join(parts, ", "))
}
