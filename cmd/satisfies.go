package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eykd/psalmspec/internal/config"
	"github.com/eykd/psalmspec/internal/version"
)

// SatisfiesIO resolves installed package versions for the satisfies command.
type SatisfiesIO interface {
	ConfigLoader
	VersionSource(cfg config.Config) version.Source
}

// NewSatisfiesCmd creates the satisfies subcommand.
func NewSatisfiesCmd(io SatisfiesIO) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "satisfies <package> <constraint>",
		Short: "Check an installed package version against a Composer constraint",
		Example: "  psalmspec satisfies vimeo/psalm '>=3.10.0'\n" +
			"  psalmspec satisfies psalm/plugin-phpunit '^0.10 || ^0.11'",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, constraint := args[0], args[1]

			cfg, err := loadConfig(cmd, io)
			if err != nil {
				return err
			}
			gate := version.NewGate(io.VersionSource(cfg), newLogger(cmd))

			ok, current, err := gate.Check(pkg, constraint)
			switch {
			case err != nil:
				return err
			case current == "":
				return fmt.Errorf("%s is not installed", pkg)
			case !ok:
				return fmt.Errorf("%s %s does not satisfy %s", pkg, current, constraint)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s satisfies %s\n", pkg, current, constraint)
			return nil
		},
	}
	return cmd
}

// fileSatisfiesIO implements SatisfiesIO from Composer metadata on disk.
type fileSatisfiesIO struct {
	fileConfigLoader
}

func newDefaultSatisfiesIO() *fileSatisfiesIO {
	return &fileSatisfiesIO{}
}

func (f *fileSatisfiesIO) VersionSource(cfg config.Config) version.Source {
	return version.NewLocator(cfg.PackageVersions, cfg.InstalledJSON, cfg.ComposerLock)
}

