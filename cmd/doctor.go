package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/eykd/psalmspec/acceptance"
	"github.com/eykd/psalmspec/internal/config"
	"github.com/eykd/psalmspec/internal/scenario"
	"github.com/eykd/psalmspec/internal/version"
)

// Doctor diagnostic codes.
const (
	// DocInvalidConfig indicates the config cannot be loaded or fails validation.
	DocInvalidConfig = "DOC001"
	// DocAnalyzerMissing indicates psalm_path does not resolve to an executable.
	DocAnalyzerMissing = "DOC002"
	// DocNoComposerLock indicates composer.lock is missing (warning).
	DocNoComposerLock = "DOC003"
	// DocNoInstalledJSON indicates vendor/composer/installed.json is missing (warning).
	DocNoInstalledJSON = "DOC004"
	// DocVersionUnknown indicates the analyzer version cannot be determined, so version-gated scenarios will skip (warning).
	DocVersionUnknown = "DOC005"
	// DocNoFeatures indicates no .feature files were found in the features directory.
	DocNoFeatures = "DOC006"
	// DocFeatureSyntax indicates a feature file cannot be read or parsed.
	DocFeatureSyntax = "DOC007"
	// DocUndefinedStep indicates a step matches no step definition.
	DocUndefinedStep = "DOC008"
)

const (
	severityError   = "error"
	severityWarning = "warning"
)

// DoctorIO handles I/O for the doctor command.
type DoctorIO interface {
	ConfigLoader
	// LookPath resolves the analyzer executable.
	LookPath(path string) (string, error)
	// FileExists reports whether path exists.
	FileExists(path string) (bool, error)
	FindFeatures(paths []string) ([]string, error)
	ReadFeature(path string) ([]byte, error)
	VersionSource(cfg config.Config) version.Source
}

// DoctorDiagnosticJSON is the JSON output type for a single doctor diagnostic.
type DoctorDiagnosticJSON struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Path     string `json:"path"`
}

// NewDoctorCmd creates the doctor subcommand.
func NewDoctorCmd(io DoctorIO) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "doctor",
		Short:        "Check the analyzer, Composer metadata and feature files before a run",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonMode, _ := cmd.Flags().GetBool("json")

			var diags []DoctorDiagnosticJSON
			if cfg, err := loadConfig(cmd, io); err != nil {
				configPath, _ := cmd.Flags().GetString("config")
				diags = []DoctorDiagnosticJSON{{
					Code:     DocInvalidConfig,
					Severity: severityError,
					Message:  err.Error(),
					Path:     configPath,
				}}
			} else {
				diags = auditSetup(io, cfg)
			}

			hasError := false
			for _, d := range diags {
				if d.Severity == severityError {
					hasError = true
				}
			}

			if jsonMode {
				if diags == nil {
					diags = []DoctorDiagnosticJSON{}
				}
				if err := json.NewEncoder(cmd.OutOrStdout()).Encode(diags); err != nil {
					return fmt.Errorf("encoding output: %w", err)
				}
			} else {
				for _, d := range diags {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", d.Code, d.Severity, sanitizeLine(d.Message))
				}
			}

			if hasError {
				return fmt.Errorf("setup has errors")
			}
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "output diagnostics as JSON array")

	return cmd
}

// auditSetup inspects cfg and the files it names.
func auditSetup(io DoctorIO, cfg config.Config) []DoctorDiagnosticJSON {
	var diags []DoctorDiagnosticJSON
	add := func(code, severity, path, format string, args ...any) {
		diags = append(diags, DoctorDiagnosticJSON{
			Code:     code,
			Severity: severity,
			Message:  fmt.Sprintf(format, args...),
			Path:     path,
		})
	}

	if err := cfg.Validate(); err != nil {
		add(DocInvalidConfig, severityError, "", "invalid config: %v", err)
		return diags
	}

	if _, err := io.LookPath(cfg.PsalmPath); err != nil {
		add(DocAnalyzerMissing, severityError, cfg.PsalmPath, "psalm executable not found: %v", err)
	}

	for _, f := range []struct {
		code, path, what string
	}{
		{DocNoComposerLock, cfg.ComposerLock, "composer.lock"},
		{DocNoInstalledJSON, cfg.InstalledJSON, "installed.json"},
	} {
		if f.path == "" {
			continue
		}
		exists, err := io.FileExists(f.path)
		switch {
		case err != nil:
			add(f.code, severityWarning, f.path, "cannot check %s: %v", f.what, err)
		case !exists:
			add(f.code, severityWarning, f.path, "%s not found", f.what)
		}
	}

	if _, err := io.VersionSource(cfg).Version(cfg.Package); err != nil {
		if errors.Is(err, version.ErrNotInstalled) {
			add(DocVersionUnknown, severityWarning, "", "version of %s is unknown; version-gated scenarios will be skipped", cfg.Package)
		} else {
			add(DocVersionUnknown, severityWarning, "", "cannot read version of %s: %v", cfg.Package, err)
		}
	}

	files, err := io.FindFeatures([]string{cfg.Features})
	if err != nil || len(files) == 0 {
		add(DocNoFeatures, severityError, cfg.Features, "no feature files found in %s", cfg.Features)
		return diags
	}

	steps := scenario.Steps()
	for _, file := range files {
		content, err := io.ReadFeature(file)
		if err != nil {
			add(DocFeatureSyntax, severityError, file, "cannot read feature: %v", err)
			continue
		}
		feature, err := acceptance.ParseFeature(string(content), file)
		if err != nil {
			add(DocFeatureSyntax, severityError, file, "%v", err)
			continue
		}
		check := func(step acceptance.Step) {
			if _, _, ok := scenario.Match(steps, step.Text); !ok {
				add(DocUndefinedStep, severityError, file, "%s:%d: undefined step: %s %s", file, step.Line, step.Keyword, step.Text)
			}
		}
		for _, step := range feature.Background {
			check(step)
		}
		for _, sc := range feature.Scenarios {
			for _, step := range sc.Steps {
				check(step)
			}
		}
	}
	return diags
}

// fileDoctorIO implements DoctorIO using OS file I/O.
type fileDoctorIO struct {
	fileConfigLoader
}

func newDefaultDoctorIO() *fileDoctorIO {
	return &fileDoctorIO{}
}

func (f *fileDoctorIO) LookPath(path string) (string, error) {
	return exec.LookPath(path)
}

func (f *fileDoctorIO) FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (f *fileDoctorIO) FindFeatures(paths []string) ([]string, error) {
	return acceptance.FindFeatureFiles(paths)
}

func (f *fileDoctorIO) ReadFeature(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (f *fileDoctorIO) VersionSource(cfg config.Config) version.Source {
	return version.NewLocator(cfg.PackageVersions, cfg.InstalledJSON, cfg.ComposerLock)
}
