// Package config loads psalmspec settings from a YAML or TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultFiles are the config files looked up in the working directory when
// no --config flag is given, in order.
var DefaultFiles = []string{"psalmspec.yml", "psalmspec.yaml", "psalmspec.toml"}

// Config holds the analyzer and workspace settings for a suite.
type Config struct {
	// PsalmPath is the analyzer executable.
	PsalmPath string `yaml:"psalm_path" toml:"psalm_path"`
	// DefaultDir is the scratch workspace fixtures are written to.
	DefaultDir string `yaml:"default_dir" toml:"default_dir"`
	// ComposerLock is linked into the workspace when it exists, and is the
	// last place package versions are looked up.
	ComposerLock string `yaml:"composer_lock" toml:"composer_lock"`
	// InstalledJSON is Composer's vendor/composer/installed.json.
	InstalledJSON string `yaml:"installed_json" toml:"installed_json"`
	// Package is the analyzer's Composer package name.
	Package string `yaml:"package" toml:"package"`
	// PackageVersions pins versions ahead of any Composer metadata.
	PackageVersions map[string]string `yaml:"package_versions,omitempty" toml:"package_versions"`
	// Features is the default directory of .feature files.
	Features string `yaml:"features" toml:"features"`
}

// Default returns the settings used when no config file is present.
func Default() Config {
	return Config{
		PsalmPath:     "vendor/bin/psalm",
		DefaultDir:    "tests/_run/",
		ComposerLock:  "composer.lock",
		InstalledJSON: "vendor/composer/installed.json",
		Package:       "vimeo/psalm",
		Features:      "tests/acceptance",
	}
}

// Load reads the config file at path over the defaults. The decoder is
// chosen by extension: .yml/.yaml or .toml. Relative paths in the file are
// resolved against the file's directory.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolve(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over the defaults. ext selects the format.
func Parse(data []byte, ext string) (Config, error) {
	cfg := Default()
	switch strings.ToLower(ext) {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse TOML: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q (use .yml, .yaml or .toml)", ext)
	}
	return cfg, nil
}

// Marshal renders cfg as a YAML config file.
func Marshal(cfg Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return append([]byte("# psalmspec configuration\n"), data...), nil
}

// Discover loads the first of DefaultFiles found in dir, or returns the
// defaults when none exists.
func Discover(dir string) (Config, string, error) {
	for _, name := range DefaultFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			cfg, err := Load(path)
			return cfg, path, err
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, "", fmt.Errorf("failed to stat %q: %w", path, err)
		}
	}
	return Default(), "", nil
}

// Validate rejects settings the harness cannot run with.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.PsalmPath) == "":
		return errors.New("psalm_path must not be empty")
	case strings.TrimSpace(c.DefaultDir) == "":
		return errors.New("default_dir must not be empty")
	case strings.TrimSpace(c.Package) == "":
		return errors.New("package must not be empty")
	}
	return nil
}

// resolve makes relative paths relative to base. A psalm_path without a
// directory component is left alone so it is looked up on PATH.
func (c *Config) resolve(base string) {
	if strings.ContainsRune(c.PsalmPath, '/') && !filepath.IsAbs(c.PsalmPath) {
		c.PsalmPath = filepath.Join(base, c.PsalmPath)
	}
	for _, p := range []*string{&c.DefaultDir, &c.ComposerLock, &c.InstalledJSON, &c.Features} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}
