// Package cmd implements the psalmspec CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/eykd/psalmspec/internal/config"
)

// NewRootCmd creates the root psalmspec command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "psalmspec",
		Short:         "psalmspec - acceptance tests for Psalm and its plugins",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		RunE:          rootRunE,
	}
	root.PersistentFlags().String("config", "", "Config file (default: psalmspec.yml, psalmspec.yaml or psalmspec.toml in the working directory)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(NewInitCmd(newDefaultInitIO()))
	root.AddCommand(NewRunCmd(newDefaultRunIO()))
	root.AddCommand(NewCheckCmd(newDefaultCheckIO()))
	root.AddCommand(NewParseCmd(newDefaultParseReader()))
	root.AddCommand(NewSatisfiesCmd(newDefaultSatisfiesIO()))
	root.AddCommand(NewDoctorCmd(newDefaultDoctorIO()))
	return root
}

func rootRunE(cmd *cobra.Command, _ []string) error {
	return cmd.Help()
}

// ConfigLoader loads the suite settings. An empty path means discovery in
// the working directory.
type ConfigLoader interface {
	LoadConfig(path string) (config.Config, error)
}

// fileConfigLoader implements ConfigLoader using the config package.
type fileConfigLoader struct {
	getwd func() (string, error)
}

func (l fileConfigLoader) LoadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	getwd := l.getwd
	if getwd == nil {
		getwd = os.Getwd
	}
	dir, err := getwd()
	if err != nil {
		return config.Config{}, fmt.Errorf("getting working directory: %w", err)
	}
	cfg, _, err := config.Discover(dir)
	return cfg, err
}

// loadConfig reads the --config flag and loads the settings through loader.
func loadConfig(cmd *cobra.Command, loader ConfigLoader) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := loader.LoadConfig(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger returns a logger writing to the command's stderr, at debug level
// when --verbose is set.
func newLogger(cmd *cobra.Command) *log.Logger {
	level := log.InfoLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(cmd.ErrOrStderr(), log.Options{Level: level, Prefix: "psalmspec"})
}
