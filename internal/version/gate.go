package version

import (
	"errors"
	"io"

	"github.com/charmbracelet/log"
)

// Gate decides whether installed packages satisfy scenario preconditions.
type Gate struct {
	versions Source
	log      *log.Logger
}

// NewGate returns a Gate backed by versions. A nil logger discards output.
func NewGate(versions Source, logger *log.Logger) *Gate {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Gate{versions: versions, log: logger}
}

// Check returns whether pkg satisfies constraint together with the version
// that was found. A package that is not installed yields false and a nil
// error.
func (g *Gate) Check(pkg, constraint string) (ok bool, current string, err error) {
	current, err = g.versions.Version(pkg)
	if err != nil {
		if errors.Is(err, ErrNotInstalled) {
			g.log.Debugf("Package %s is not installed", pkg)
			return false, "", nil
		}
		return false, "", err
	}
	g.log.Debugf("Current version of %s : %s", pkg, current)

	ok, err = Satisfies(current, constraint)
	if err != nil {
		return false, current, err
	}
	g.log.Debugf("Comparing %s against %s => %s", current, constraint, okKo(ok))
	return ok, current, nil
}

// Satisfies is Check with errors logged and reported as unsatisfied.
func (g *Gate) Satisfies(pkg, constraint string) bool {
	ok, _, err := g.Check(pkg, constraint)
	if err != nil {
		g.log.Warn("version check failed", "package", pkg, "constraint", constraint, "err", err)
		return false
	}
	return ok
}

func okKo(ok bool) string {
	if ok {
		return "ok"
	}
	return "ko"
}
