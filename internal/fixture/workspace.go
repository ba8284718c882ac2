// Package fixture manages the scratch directory scenarios write PHP code,
// analyzer config and autoload maps into.
package fixture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ConfigFile is the analyzer config written into the workspace.
const ConfigFile = "psalm.xml"

// AutoloadFile is the generated class-map autoloader.
const AutoloadFile = "autoload.php"

// DefaultConfig is the psalm.xml used when a scenario supplies none. "%s"
// receives the autoloader attribute.
const DefaultConfig = "<?xml version=\"1.0\"?>\n" +
	"<psalm totallyTyped=\"true\" %s>\n" +
	"  <projectFiles>\n" +
	"    <directory name=\".\"/>\n" +
	"  </projectFiles>\n" +
	"</psalm>\n"

const autoloaderAttr = `autoloader="` + AutoloadFile + `"`

// codeNamespace seeds the name-based UUIDs fixture files are named after.
var codeNamespace = uuid.MustParse("6f1c1f0e-4a53-4c52-9c2b-2f0a8d3c7e51")

// Prepare makes sure dir exists as a directory, replacing a plain file that
// occupies the path.
func Prepare(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		if err := os.Remove(dir); err != nil {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("checking %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dir %s: %w", dir, err)
	}
	return nil
}

// Workspace is the scratch directory of the running scenario.
type Workspace struct {
	dir          string
	composerLock string
	log          *log.Logger
}

// New returns a Workspace rooted at dir. When composerLock names an existing
// file, Reset links it into the workspace.
func New(dir, composerLock string, logger *log.Logger) *Workspace {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Workspace{dir: dir, composerLock: composerLock, log: logger}
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Reset empties the workspace and links the upstream composer.lock into it.
func (w *Workspace) Reset() error {
	if err := Prepare(w.dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("cleaning %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(w.dir, e.Name())); err != nil {
			return fmt.Errorf("cleaning %s: %w", w.dir, err)
		}
	}
	return w.linkComposerLock()
}

func (w *Workspace) linkComposerLock() error {
	if w.composerLock == "" {
		return nil
	}
	if _, err := os.Stat(w.composerLock); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("checking %s: %w", w.composerLock, err)
	}

	w.log.Debug("Linking composer.lock to working directory.")
	dst := filepath.Join(w.dir, "composer.lock")
	if err := os.Link(w.composerLock, dst); err == nil {
		return nil
	}
	// Hard links fail across devices; fall back to a copy.
	data, err := os.ReadFile(w.composerLock)
	if err != nil {
		return fmt.Errorf("reading %s: %w", w.composerLock, err)
	}
	return os.WriteFile(dst, data, 0o644)
}

// WriteCode writes preamble+code to a file named after a UUID derived from
// the content, so the same code always lands in the same file. It returns
// the file name relative to the workspace.
func (w *Workspace) WriteCode(preamble, code string) (string, error) {
	content := preamble + code
	name := uuid.NewSHA1(codeNamespace, []byte(content)).String() + ".php"
	if err := w.write(name, content); err != nil {
		return "", err
	}
	return name, nil
}

// WriteCodeIn writes code to name, a path relative to the workspace.
// Intermediate directories are created. Paths escaping the workspace are
// rejected.
func (w *Workspace) WriteCodeIn(name, code string) error {
	return w.write(name, code)
}

// WriteConfig writes psalm.xml from custom, or DefaultConfig when custom is
// empty. Each "%s" in the template is replaced with the autoloader
// attribute when hasAutoload is set, and removed otherwise.
func (w *Workspace) WriteConfig(custom string, hasAutoload bool) error {
	tmpl := custom
	if tmpl == "" {
		tmpl = DefaultConfig
	}
	attr := ""
	if hasAutoload {
		attr = autoloaderAttr
	}
	return w.write(ConfigFile, strings.ReplaceAll(tmpl, "%s", attr))
}

func (w *Workspace) write(name, content string) error {
	path, err := w.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func (w *Workspace) resolve(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if name == "" || filepath.IsAbs(clean) || clean == "." || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("file name %q escapes the workspace", name)
	}
	return filepath.Join(w.dir, clean), nil
}
