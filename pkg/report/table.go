// pkg/report/table.go
package report

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// maxCellWidth truncates long free-text values in rendered tables
const maxCellWidth = 60

// textTable renders rows as aligned plain-text columns
type textTable struct {
	header []string
	rows   [][]string
}

func newTextTable(header ...string) *textTable {
	return &textTable{header: header}
}

func (t *textTable) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

// render writes the table with every line prefixed by indent
func (t *textTable) render(sb *strings.Builder, indent string) {
	widths := make([]int, len(t.header))
	measure := func(row []string) {
		for i := range widths {
			if i >= len(row) {
				continue
			}
			if w := runewidth.StringWidth(clip(row[i])); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(t.header)
	for _, row := range t.rows {
		measure(row)
	}

	line := func(row []string) {
		sb.WriteString(indent)
		for i, w := range widths {
			cell := ""
			if i < len(row) {
				cell = clip(row[i])
			}
			if i == len(widths)-1 {
				sb.WriteString(strings.TrimRight(cell, " "))
				break
			}
			sb.WriteString(runewidth.FillRight(cell, w))
			sb.WriteString("  ")
		}
		sb.WriteString("\n")
	}

	line(t.header)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	line(sep)
	for _, row := range t.rows {
		line(row)
	}
}

func clip(s string) string {
	if runewidth.StringWidth(s) <= maxCellWidth {
		return s
	}
	return runewidth.Truncate(s, maxCellWidth, "...")
}

func section(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", runewidth.StringWidth(title)))
	sb.WriteString("\n")
}
