package version

import (
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// ErrNotInstalled is returned when no source knows the requested package.
var ErrNotInstalled = errors.New("package is not installed")

// Source reports the installed version of a package.
type Source interface {
	Version(pkg string) (string, error)
}

// Locator finds installed package versions. Pinned versions win; after that
// Composer's installed.json is consulted, then composer.lock. Missing files
// are skipped.
type Locator struct {
	Pinned        map[string]string
	InstalledJSON string
	ComposerLock  string

	readFile func(string) ([]byte, error)
}

// NewLocator returns a Locator reading Composer metadata from disk.
func NewLocator(pinned map[string]string, installedJSON, composerLock string) *Locator {
	return &Locator{
		Pinned:        pinned,
		InstalledJSON: installedJSON,
		ComposerLock:  composerLock,
		readFile:      os.ReadFile,
	}
}

// Version returns the pretty version string of pkg.
func (l *Locator) Version(pkg string) (string, error) {
	if v, ok := l.Pinned[pkg]; ok {
		return v, nil
	}

	// Composer 2 nests packages under "packages"; Composer 1 wrote a bare array.
	if v, err := l.lookup(l.InstalledJSON, pkg, "packages", ""); err == nil || !errors.Is(err, ErrNotInstalled) {
		return v, err
	}
	return l.lookup(l.ComposerLock, pkg, "packages", "packages-dev")
}

func (l *Locator) lookup(path, pkg string, lists ...string) (string, error) {
	if path == "" {
		return "", ErrNotInstalled
	}
	read := l.readFile
	if read == nil {
		read = os.ReadFile
	}
	data, err := read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotInstalled
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("reading %s: invalid JSON", path)
	}

	doc := gjson.ParseBytes(data)
	for _, list := range lists {
		query := fmt.Sprintf(`#(name==%q).version`, pkg)
		if list != "" {
			query = list + "." + query
		}
		if v := doc.Get(query); v.Exists() {
			return v.String(), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotInstalled, pkg)
}
