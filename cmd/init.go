package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eykd/psalmspec/internal/config"
)

// InitIO handles I/O for the init command.
type InitIO interface {
	StatFile(path string) (bool, error)
	MkdirAll(path string) error
	WriteFileAtomic(path, content string) error
}

// exampleFeature is written into a fresh features directory.
const exampleFeature = `Feature: Example
  Psalm reports a wrong return type.

  Scenario: Returning an int from a string function
    Given I have the following code
      """
      <?php
      function foo(): string { return 1; }
      """
    When I run Psalm
    Then I see these errors
      | Type              | Message                              |
      | InvalidReturnType | The declared return type 'string' % |
    And I see no other errors
`

// NewInitCmd creates the init subcommand.
func NewInitCmd(io InitIO) *cobra.Command {
	return newInitCmdWithGetCWD(io, os.Getwd)
}

func newInitCmdWithGetCWD(io InitIO, getwd func() (string, error)) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:          "init",
		Short:        "Write a psalmspec.yml and an example feature in the current directory",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, _ := cmd.Flags().GetString("project")
			if project == "" {
				cwd, err := getwd()
				if err != nil {
					return fmt.Errorf("getting working directory: %w", err)
				}
				project = cwd
			}

			cfg := config.Default()
			configPath := filepath.Join(project, config.DefaultFiles[0])
			featurePath := filepath.Join(project, cfg.Features, "Example.feature")

			configExists, err := io.StatFile(configPath)
			if err != nil {
				return fmt.Errorf("checking %s: %w", configPath, err)
			}
			if configExists && !force {
				return fmt.Errorf("%s already exists in %s; use --force to overwrite", config.DefaultFiles[0], project)
			}

			needsWarning := force && configExists

			content, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			if err := io.WriteFileAtomic(configPath, string(content)); err != nil {
				return fmt.Errorf("writing %s: %w", config.DefaultFiles[0], err)
			}

			featureExists, err := io.StatFile(featurePath)
			if err != nil {
				return fmt.Errorf("checking %s: %w", featurePath, err)
			}

			needsWarning = needsWarning || (force && featureExists)

			if !featureExists || force {
				if err := io.MkdirAll(filepath.Dir(featurePath)); err != nil {
					return fmt.Errorf("creating %s: %w", filepath.Dir(featurePath), err)
				}
				if err := io.WriteFileAtomic(featurePath, exampleFeature); err != nil {
					return fmt.Errorf(
						"writing Example.feature (partial init; re-run with --force to recover): %w", err)
				}
			}

			if needsWarning {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: overwriting existing files")
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Initialized "+project)
			return nil
		},
	}

	cmd.Flags().String("project", "", "project directory (default: current directory)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")

	return cmd
}

// fileInitIO implements InitIO using OS file I/O.
type fileInitIO struct{}

func newDefaultInitIO() *fileInitIO {
	return &fileInitIO{}
}

// StatFile returns true if the file at path exists, false if it does not.
// Returns an error only for unexpected OS errors.
func (f *fileInitIO) StatFile(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (f *fileInitIO) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

// WriteFileAtomic writes content to path via a temp file and rename.
func (f *fileInitIO) WriteFileAtomic(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".init-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err = tmp.Write([]byte(content)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
