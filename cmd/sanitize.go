package cmd

import "strings"

// sanitizeLine replaces control characters (runes < 0x20 or == 0x7F) with '?'
// before feature text or file names are printed, so a feature file cannot
// inject terminal escape sequences or break the one-line report layout.
func sanitizeLine(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7F {
			return '?'
		}
		return r
	}, s)
}

// sanitizeBlock is sanitizeLine applied per line, keeping the line breaks.
func sanitizeBlock(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = sanitizeLine(l)
	}
	return strings.Join(lines, "\n")
}
