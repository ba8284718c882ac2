package version

import (
	"fmt"
	"strings"

	"github.com/blang/semver/v4"
)

// constraintOperators is ordered so that two-character operators are tried
// before their one-character prefixes.
var constraintOperators = []string{">=", "<=", "!=", "==", ">", "<", "=", "^", "~"}

// ParseConstraint translates a Composer constraint into a semver.Range.
//
// Supported forms: comparison operators, caret and tilde ranges, "*" and
// "x" wildcards, "," or whitespace for AND, and "||" (or "|") for OR.
// Hyphenated ranges are not supported.
//
// As in Composer, a ">=" or "<" bound that names no stability starts at the
// lowest pre-release of its version, so ">=3.4.0" admits 3.4.0-beta1 and
// "<4.0" excludes 4.0.0-beta2. The range must be called with orderKey
// versions, which Satisfies does.
func ParseConstraint(constraint string) (semver.Range, error) {
	c := strings.ReplaceAll(strings.TrimSpace(constraint), "||", "|")
	if c == "" {
		return nil, fmt.Errorf("empty version constraint")
	}

	var groups []string
	for _, alt := range strings.Split(c, "|") {
		comparators, err := translateGroup(alt)
		if err != nil {
			return nil, fmt.Errorf("invalid version constraint %q: %w", constraint, err)
		}
		groups = append(groups, strings.Join(comparators, " "))
	}

	r, err := semver.ParseRange(strings.Join(groups, " || "))
	if err != nil {
		return nil, fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	return r, nil
}

func translateGroup(group string) ([]string, error) {
	fields := strings.Fields(strings.ReplaceAll(group, ",", " "))
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty alternative")
	}

	var out []string
	for i := 0; i < len(fields); i++ {
		tok := fields[i]
		// ">= 3.4" is one comparator split by whitespace.
		if isOperator(tok) && i+1 < len(fields) {
			i++
			tok += fields[i]
		}
		comparators, err := translateComparator(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, comparators...)
	}
	return out, nil
}

func isOperator(tok string) bool {
	for _, op := range constraintOperators {
		if tok == op {
			return true
		}
	}
	return false
}

func splitOperator(tok string) (op, ver string) {
	for _, candidate := range constraintOperators {
		if strings.HasPrefix(tok, candidate) {
			return candidate, strings.TrimSpace(tok[len(candidate):])
		}
	}
	return "", tok
}

// translateComparator expands one Composer comparator into blang/semver
// comparators.
func translateComparator(tok string) ([]string, error) {
	op, raw := splitOperator(tok)
	raw = strings.TrimPrefix(raw, "v")

	if raw == "*" || raw == "x" || raw == "X" {
		if op != "" && op != "=" && op != "==" {
			return nil, fmt.Errorf("operator %q cannot apply to a wildcard", op)
		}
		return []string{">=" + lowestPre(semver.Version{})}, nil
	}

	parts, wildcard := splitComponents(raw)
	if wildcard {
		if op != "" && op != "=" && op != "==" {
			return nil, fmt.Errorf("operator %q cannot apply to wildcard %q", op, raw)
		}
		return wildcardBounds(parts)
	}

	switch op {
	case "^":
		return caretBounds(raw, parts)
	case "~":
		return tildeBounds(raw, parts)
	}

	v, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	switch op {
	case "", "=":
		op = "=="
	case ">=", "<":
		return []string{op + lowestPre(v)}, nil
	}
	return []string{op + orderKey(v).String()}, nil
}

// lowestPre renders v as a bound. A version without a pre-release gets the
// lowest one, "-0", which sorts below every key orderKey produces.
func lowestPre(v semver.Version) string {
	if len(v.Pre) > 0 {
		return orderKey(v).String()
	}
	return v.String() + "-0"
}

// splitComponents returns the numeric components before the first wildcard,
// and whether a wildcard was present.
func splitComponents(raw string) ([]string, bool) {
	core, _, _ := strings.Cut(raw, "-")
	var parts []string
	for _, p := range strings.Split(core, ".") {
		if p == "*" || p == "x" || p == "X" {
			return parts, true
		}
		parts = append(parts, p)
	}
	return parts, false
}

func wildcardBounds(fixed []string) ([]string, error) {
	lower, err := Normalize(strings.Join(fixed, "."))
	if err != nil {
		return nil, err
	}
	upper := lower
	switch len(fixed) {
	case 1:
		upper.Major++
		upper.Minor, upper.Patch = 0, 0
	default:
		upper.Minor++
		upper.Patch = 0
	}
	return bounds(lower, upper), nil
}

// caretBounds allows changes that do not modify the left-most non-zero
// component.
func caretBounds(raw string, parts []string) ([]string, error) {
	lower, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	upper := semver.Version{}
	switch {
	case lower.Major > 0 || len(parts) == 1:
		upper.Major = lower.Major + 1
	case lower.Minor > 0 || len(parts) == 2:
		upper.Minor = lower.Minor + 1
	default:
		upper.Patch = lower.Patch + 1
	}
	return bounds(lower, upper), nil
}

// tildeBounds allows the last specified component to increase.
func tildeBounds(raw string, parts []string) ([]string, error) {
	lower, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	upper := semver.Version{Major: lower.Major + 1}
	if len(parts) >= 3 {
		upper = semver.Version{Major: lower.Major, Minor: lower.Minor + 1}
	}
	return bounds(lower, upper), nil
}

func bounds(lower, upper semver.Version) []string {
	return []string{">=" + lowestPre(lower), "<" + lowestPre(upper)}
}
