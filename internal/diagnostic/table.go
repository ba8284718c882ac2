package diagnostic

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// TableHeader is the header row used for rendered snapshots. It matches the
// header scenario authors use in "I see these errors" tables, so a snapshot
// can be pasted back into a feature file.
var TableHeader = [2]string{"Type", "Message"}

// RenderTable formats records as a pipe table with a header row and columns
// padded to their display width. Pipes and line breaks inside cells are
// escaped.
func RenderTable(records []Record) string {
	rows := make([][2]string, 0, len(records)+1)
	rows = append(rows, TableHeader)
	for _, r := range records {
		rows = append(rows, [2]string{escapeCell(r.Kind), escapeCell(r.Message)})
	}

	var widths [2]int
	for _, row := range rows {
		for c, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[c] {
				widths[c] = w
			}
		}
	}

	var sb strings.Builder
	for i, row := range rows {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("|")
		for c, cell := range row {
			sb.WriteString(" ")
			sb.WriteString(runewidth.FillRight(cell, widths[c]))
			sb.WriteString(" |")
		}
	}
	return sb.String()
}

var cellEscaper = strings.NewReplacer(`|`, `\|`, "\r\n", `\n`, "\n", `\n`)

func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}
