package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eykd/psalmspec/acceptance"
)

// ParseReader reads feature files and writes IR for the parse command.
type ParseReader interface {
	ReadFeature(ctx context.Context, path string) ([]byte, error)
	WriteIR(path string, data []byte) error
}

// NewParseCmd creates the parse subcommand.
func NewParseCmd(reader ParseReader) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "parse <file.feature>",
		Short:        "Parse a feature file and output its JSON IR",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			content, err := reader.ReadFeature(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("reading feature: %w", err)
			}

			feature, err := acceptance.ParseFeature(string(content), path)
			if err != nil {
				return fmt.Errorf("parsing feature: %w", err)
			}

			data, err := acceptance.SerializeIR(feature)
			if err != nil {
				return fmt.Errorf("encoding output: %w", err)
			}

			if out, _ := cmd.Flags().GetString("out"); out != "" {
				if err := reader.WriteIR(out, data); err != nil {
					return fmt.Errorf("writing IR: %w", err)
				}
				return nil
			}

			if _, err := cmd.OutOrStdout().Write(append(data, '\n')); err != nil {
				return fmt.Errorf("encoding output: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().String("out", "", "Write the IR to this file instead of stdout")

	return cmd
}

// fileParseReader implements ParseReader using OS file I/O.
type fileParseReader struct{}

func newDefaultParseReader() *fileParseReader {
	return &fileParseReader{}
}

func (r *fileParseReader) ReadFeature(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (r *fileParseReader) WriteIR(path string, data []byte) error {
	return acceptance.WriteIRImpl(path, data)
}
