package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/eykd/psalmspec/acceptance"
	"github.com/eykd/psalmspec/internal/analyzer"
	"github.com/eykd/psalmspec/internal/config"
	"github.com/eykd/psalmspec/internal/fixture"
	"github.com/eykd/psalmspec/internal/scenario"
	"github.com/eykd/psalmspec/internal/version"
)

// FeatureRunner runs one parsed feature.
type FeatureRunner interface {
	RunFeature(ctx context.Context, feature *acceptance.Feature) scenario.FeatureReport
}

// RunIO handles I/O for the run command.
type RunIO interface {
	ConfigLoader
	FindFeatures(paths []string) ([]string, error)
	LoadFeature(path string) (*acceptance.Feature, error)
	NewFeatureRunner(cfg config.Config, logger *log.Logger, skipTags []string) (FeatureRunner, error)
}

// NewRunCmd creates the run subcommand.
func NewRunCmd(io RunIO) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "run [paths...]",
		Short:        "Run feature files against the analyzer",
		Long:         "Run .feature files, or every .feature file under the given directories (default: the configured features directory).",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, io)
			if err != nil {
				return err
			}
			logger := newLogger(cmd)

			paths := args
			if len(paths) == 0 {
				paths = []string{cfg.Features}
			}
			files, err := io.FindFeatures(paths)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no feature files found in %v", paths)
			}

			skipTags, _ := cmd.Flags().GetStringSlice("skip-tag")
			runner, err := io.NewFeatureRunner(cfg, logger, skipTags)
			if err != nil {
				return err
			}

			report := newRunReport(cmd.OutOrStdout())
			var summary scenario.Summary
			for _, file := range files {
				feature, err := io.LoadFeature(file)
				if err != nil {
					return fmt.Errorf("loading %s: %w", file, err)
				}
				fr := runner.RunFeature(cmd.Context(), feature)
				summary.Add(fr)
				report.feature(fr)
			}
			report.summary(summary)

			if !summary.OK() {
				return fmt.Errorf("%d failed, %d undefined", summary.Failed, summary.Undefined)
			}
			return nil
		},
	}

	cmd.Flags().StringSlice("skip-tag", nil, "Skip scenarios carrying this tag (repeatable)")

	return cmd
}

// fileRunIO implements RunIO using the real analyzer and file system.
type fileRunIO struct {
	fileConfigLoader
}

func newDefaultRunIO() *fileRunIO {
	return &fileRunIO{}
}

func (f *fileRunIO) FindFeatures(paths []string) ([]string, error) {
	return acceptance.FindFeatureFiles(paths)
}

func (f *fileRunIO) LoadFeature(path string) (*acceptance.Feature, error) {
	return acceptance.LoadFeatureImpl(path)
}

// NewFeatureRunner prepares the workspace and wires a scenario driver to
// the configured analyzer and Composer metadata.
func (f *fileRunIO) NewFeatureRunner(cfg config.Config, logger *log.Logger, skipTags []string) (FeatureRunner, error) {
	if err := fixture.Prepare(cfg.DefaultDir); err != nil {
		return nil, err
	}
	locator := version.NewLocator(cfg.PackageVersions, cfg.InstalledJSON, cfg.ComposerLock)
	session := scenario.NewSession(scenario.Options{
		Workspace: fixture.New(cfg.DefaultDir, cfg.ComposerLock, logger),
		Runner:    analyzer.NewPsalmRunner(cfg.PsalmPath, logger),
		Gate:      version.NewGate(locator, logger),
		Package:   cfg.Package,
		Logger:    logger,
	})
	driver := scenario.NewDriver(session, logger)
	driver.SkipTags = skipTags
	return driver, nil
}
