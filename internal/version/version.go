// Package version normalizes Composer package versions and evaluates the
// version constraints that gate scenarios.
package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/blang/semver/v4"
)

// devComponent stands in for an unbounded version component. Development
// branches ("dev-main") and branch aliases ("4.x-dev") sort after every
// release that shares their fixed prefix.
const devComponent = 9999999

// stabilityRanks orders Composer's pre-release labels: dev < alpha < beta < RC.
var stabilityRanks = map[string]uint64{
	"dev":   0,
	"alpha": 1,
	"a":     1,
	"beta":  2,
	"b":     2,
	"rc":    3,
	"c":     3,
}

// unknownStability ranks labels Composer does not know, after RC.
const unknownStability = 4

var stabilityPattern = regexp.MustCompile(`^([a-z]+)[.-]?(\d*)$`)

// ErrUnknownOperator is returned for comparison operators outside Operators.
var ErrUnknownOperator = errors.New("unknown operator")

// Operators lists the comparison operators accepted by Compare.
var Operators = []string{">", "<", ">=", "<=", "==", "!="}

// operatorAliases maps the phrases used in scenario steps to operators.
var operatorAliases = map[string]string{
	"newer than": ">",
	"older than": "<",
}

// ResolveOperator returns the operator for op, translating the "newer than"
// and "older than" aliases.
func ResolveOperator(op string) (string, error) {
	op = strings.TrimSpace(op)
	if alias, ok := operatorAliases[op]; ok {
		return alias, nil
	}
	for _, known := range Operators {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperator, op)
}

// Normalize parses a Composer version string. A leading "v" and build
// metadata are dropped, short versions are padded to three components, a
// fourth component is discarded, and "x"/"*" components become devComponent.
// Any "dev-" branch normalizes above every numbered release.
func Normalize(v string) (semver.Version, error) {
	s := strings.TrimSpace(v)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "v"), "V")
	if strings.HasPrefix(s, "dev-") {
		return semver.Version{Major: devComponent, Pre: []semver.PRVersion{{VersionStr: "dev"}}}, nil
	}

	s, _, _ = strings.Cut(s, "+")
	core, pre, hasPre := strings.Cut(s, "-")

	parts := strings.Split(core, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	fill := "0"
	for i, p := range parts {
		switch p {
		case "x", "X", "*":
			parts[i] = strconv.Itoa(devComponent)
			fill = parts[i]
			continue
		}
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return semver.Version{}, fmt.Errorf("invalid version %q", v)
		}
		parts[i] = strconv.FormatUint(n, 10)
	}
	for len(parts) < 3 {
		parts = append(parts, fill)
	}

	s = strings.Join(parts, ".")
	if hasPre {
		s += "-" + pre
	}
	ver, err := semver.Parse(s)
	if err != nil {
		return semver.Version{}, fmt.Errorf("invalid version %q: %w", v, err)
	}
	return ver, nil
}

// Compare evaluates "current op other". op may be any of Operators or one
// of the "newer than"/"older than" aliases.
func Compare(current, op, other string) (bool, error) {
	resolved, err := ResolveOperator(op)
	if err != nil {
		return false, err
	}
	a, err := Normalize(current)
	if err != nil {
		return false, err
	}
	b, err := Normalize(other)
	if err != nil {
		return false, err
	}
	a, b = orderKey(a), orderKey(b)

	switch resolved {
	case ">":
		return a.GT(b), nil
	case "<":
		return a.LT(b), nil
	case ">=":
		return a.GTE(b), nil
	case "<=":
		return a.LTE(b), nil
	case "==":
		return a.EQ(b), nil
	default:
		return a.NE(b), nil
	}
}

// Satisfies reports whether version satisfies the Composer constraint.
func Satisfies(version, constraint string) (bool, error) {
	v, err := Normalize(version)
	if err != nil {
		return false, err
	}
	r, err := ParseConstraint(constraint)
	if err != nil {
		return false, err
	}
	return r(orderKey(v)), nil
}

// orderKey rewrites the pre-release of v as numeric identifiers so that
// semver ordering follows Composer's stability order instead of comparing
// labels as strings. "beta2" becomes [2 2]; a bare "dev" becomes [0 0].
// Ranges built by ParseConstraint hold keys too, so only keys may be
// compared against them.
func orderKey(v semver.Version) semver.Version {
	if len(v.Pre) == 0 {
		return v
	}
	key := semver.Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch}

	labels := make([]string, len(v.Pre))
	for i, pr := range v.Pre {
		labels[i] = pr.String()
	}
	if m := stabilityPattern.FindStringSubmatch(strings.ToLower(strings.Join(labels, "."))); m != nil {
		if rank, ok := stabilityRanks[m[1]]; ok {
			var n uint64
			if m[2] != "" {
				n, _ = strconv.ParseUint(m[2], 10, 64)
			}
			key.Pre = []semver.PRVersion{{VersionNum: rank, IsNum: true}, {VersionNum: n, IsNum: true}}
			return key
		}
	}
	key.Pre = append([]semver.PRVersion{{VersionNum: unknownStability, IsNum: true}}, v.Pre...)
	return key
}
