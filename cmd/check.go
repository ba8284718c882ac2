package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/eykd/psalmspec/acceptance"
	"github.com/eykd/psalmspec/internal/diagnostic"
	"github.com/eykd/psalmspec/internal/pattern"
	"github.com/eykd/psalmspec/internal/reconcile"
)

// Error kinds reported by check --json.
const (
	KindSetEmpty            = "set_empty"
	KindNoMatch             = "no_match"
	KindUnexpectedRemaining = "unexpected_remaining"
	KindMalformedOutput     = "malformed_output"
	KindInvalidPattern      = "invalid_pattern"
	KindInvalidExpectations = "invalid_expectations"
)

// CheckIO reads the analyzer output and expectation files for the check command.
type CheckIO interface {
	// ReadOutput reads analyzer output from path; "-" means stdin.
	ReadOutput(path string) ([]byte, error)
	ReadExpectations(path string) ([]byte, error)
}

// checkOutput is the JSON output schema for the check command.
type checkOutput struct {
	OK        bool                `json:"ok"`
	ErrorKind string              `json:"error_kind"`
	Message   string              `json:"message"`
	Remaining []diagnostic.Record `json:"remaining"`
}

// NewCheckCmd creates the check subcommand.
func NewCheckCmd(io CheckIO) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check --output <file|-> --exit-code <n> [--expect <table-file>]",
		Short: "Reconcile saved analyzer output against expected errors",
		Long: "Load the diagnostics from a saved analyzer run, consume one diagnostic for each row\n" +
			"of the expectations table, then assert that nothing else was reported.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outputPath, _ := cmd.Flags().GetString("output")
			exitCode, _ := cmd.Flags().GetInt("exit-code")
			expectPath, _ := cmd.Flags().GetString("expect")
			allowRemaining, _ := cmd.Flags().GetBool("allow-remaining")
			jsonMode, _ := cmd.Flags().GetBool("json")

			raw, err := io.ReadOutput(outputPath)
			if err != nil {
				return fmt.Errorf("reading analyzer output: %w", err)
			}

			var expectations []reconcile.Expectation
			if expectPath != "" {
				data, err := io.ReadExpectations(expectPath)
				if err != nil {
					return fmt.Errorf("reading expectations: %w", err)
				}
				rows, err := acceptance.ParseTable(string(data), expectPath)
				if err != nil {
					return emitCheckResult(cmd, jsonMode, nil, fmt.Errorf("%w: %v", errInvalidExpectations, err))
				}
				if expectations, err = reconcile.ExpectationsFromTable(rows); err != nil {
					return emitCheckResult(cmd, jsonMode, nil, fmt.Errorf("%w: %v", errInvalidExpectations, err))
				}
			}

			set, err := diagnostic.Load(string(raw), exitCode)
			if err != nil {
				return emitCheckResult(cmd, jsonMode, nil, err)
			}
			err = reconcile.ExpectAll(set, expectations)
			if err == nil && !allowRemaining {
				err = reconcile.ExpectNone(set)
			}
			return emitCheckResult(cmd, jsonMode, set, err)
		},
	}

	cmd.Flags().String("output", "", "Analyzer JSON output file, or - for stdin")
	cmd.Flags().Int("exit-code", 0, "Exit code the analyzer run finished with")
	cmd.Flags().String("expect", "", "Pipe table of expected errors (header row, then Type | Message)")
	cmd.Flags().Bool("allow-remaining", false, "Do not fail on diagnostics left after the expected ones")
	cmd.Flags().Bool("json", false, "Output result as JSON")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

var errInvalidExpectations = errors.New("invalid expectations")

// errorKind classifies a reconciliation failure for JSON output.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, reconcile.ErrSetEmpty):
		return KindSetEmpty
	case errors.Is(err, reconcile.ErrNoMatch):
		return KindNoMatch
	case errors.Is(err, reconcile.ErrUnexpectedRemaining):
		return KindUnexpectedRemaining
	case errors.Is(err, diagnostic.ErrMalformedOutput):
		return KindMalformedOutput
	case errors.Is(err, pattern.ErrInvalidPattern):
		return KindInvalidPattern
	default:
		return KindInvalidExpectations
	}
}

// emitCheckResult reports the outcome and returns a non-nil error when the
// check failed, so the process exits non-zero.
func emitCheckResult(cmd *cobra.Command, jsonMode bool, set *diagnostic.Set, checkErr error) error {
	remaining := []diagnostic.Record{}
	if set != nil {
		remaining = set.Records()
	}

	if jsonMode {
		out := checkOutput{OK: checkErr == nil, ErrorKind: errorKind(checkErr), Remaining: remaining}
		if checkErr != nil {
			out.Message = checkErr.Error()
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
	} else if checkErr != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), checkErr)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "OK (%d unmatched diagnostics allowed)\n", len(remaining))
	}

	if checkErr != nil {
		return fmt.Errorf("check failed: %s", errorKind(checkErr))
	}
	return nil
}

// fileCheckIO implements CheckIO using OS file I/O.
type fileCheckIO struct {
	stdin io.Reader
}

func newDefaultCheckIO() *fileCheckIO {
	return &fileCheckIO{stdin: os.Stdin}
}

func (f *fileCheckIO) ReadOutput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(f.stdin)
	}
	return os.ReadFile(path)
}

func (f *fileCheckIO) ReadExpectations(path string) ([]byte, error) {
	return os.ReadFile(path)
}
