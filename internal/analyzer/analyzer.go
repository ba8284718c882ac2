// Package analyzer runs the static analyzer and captures its JSON report.
package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Invocation describes one analyzer run.
type Invocation struct {
	// Dir is the working directory the analyzer runs in.
	Dir string
	// Target is a file or directory to analyze; empty analyzes the project
	// described by the psalm.xml in Dir.
	Target string
	// Options are extra command-line flags, such as --find-dead-code.
	Options []string
	// NoProgress suppresses the progress bar (supported from Psalm 3.4.0).
	NoProgress bool
}

// Result is the captured outcome of a run. A non-zero ExitCode is a normal
// outcome, not an error.
type Result struct {
	Command  string
	Output   string
	ExitCode int
}

// Runner runs the analyzer.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// PsalmRunner runs a Psalm executable with JSON output.
type PsalmRunner struct {
	path string
	log  *log.Logger
}

// NewPsalmRunner returns a runner for the executable at path. A relative
// path with a directory component is made absolute, because the analyzer
// runs from inside the workspace; a bare name is looked up on PATH.
func NewPsalmRunner(path string, logger *log.Logger) *PsalmRunner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if strings.ContainsRune(path, filepath.Separator) && !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	return &PsalmRunner{path: path, log: logger}
}

// Args builds the analyzer's argument list for inv.
func Args(inv Invocation) []string {
	args := []string{"--output-format=json"}
	if inv.NoProgress {
		args = append(args, "--no-progress")
	}
	args = append(args, inv.Options...)
	if inv.Target != "" {
		args = append(args, inv.Target)
	}
	return args
}

// Run executes the analyzer and returns its combined stdout and stderr.
// It fails only when the process cannot be started or is interrupted by ctx.
func (r *PsalmRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	args := Args(inv)
	cmd := exec.CommandContext(ctx, r.path, args...)
	cmd.Dir = inv.Dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	res := Result{Command: strings.Join(append([]string{r.path}, args...), " ")}
	r.log.Debugf("Running: %s", res.Command)

	err := cmd.Run()
	res.Output = out.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return res, fmt.Errorf("running %s: %w", r.path, ctx.Err())
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, fmt.Errorf("running %s: %w", r.path, err)
	}

	r.log.Debugf("Psalm exit code: %d", res.ExitCode)
	return res, nil
}
