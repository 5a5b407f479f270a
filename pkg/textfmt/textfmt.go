// Package textfmt provides pure helpers for building aligned, boxed and
// tabular plain-text output. It has no dependencies and performs no I/O.
package textfmt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Center pads s with spaces on both sides so it is centered within width.
// Strings longer than width are returned truncated.
func Center(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return Truncate(s, width)
	}
	left := (width - n) / 2
	right := width - n - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

// PadRight pads s with trailing spaces up to width.
func PadRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// PadLeft pads s with leading spaces up to width.
func PadLeft(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return strings.Repeat(" ", width-n) + s
}

// Truncate cuts s to at most max runes, appending "..." when it was cut
// and max leaves room for it.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max > 3 {
		return string(runes[:max-3]) + "..."
	}
	return string(runes[:max])
}

// Rule returns a horizontal line of width repetitions of ch.
func Rule(ch rune, width int) string {
	return strings.Repeat(string(ch), width)
}

// Box draws lines inside an ASCII border of the given inner width.
//
//	+--------+
//	| line 1 |
//	+--------+
func Box(lines []string, width int) string {
	var b strings.Builder
	border := "+" + strings.Repeat("-", width+2) + "+"
	b.WriteString(border)
	b.WriteByte('\n')
	for _, line := range lines {
		b.WriteString("| ")
		b.WriteString(PadRight(Truncate(line, width), width))
		b.WriteString(" |\n")
	}
	b.WriteString(border)
	return b.String()
}

// Table renders rows as space-aligned columns under the given headers.
// Column widths follow the widest cell; a dashed rule separates the
// headers from the body. Columns whose body cells are all integers are
// right-aligned.
func Table(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	numeric := make([]bool, len(headers))
	for i := range numeric {
		numeric[i] = len(rows) > 0
	}
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
			if !isInteger(cell) {
				numeric[i] = false
			}
		}
		for i := len(row); i < len(numeric); i++ {
			numeric[i] = false
		}
	}

	var b strings.Builder
	writeRow := func(cells []string, alignNumeric bool) {
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i > 0 {
				b.WriteString("  ")
			}
			switch {
			case alignNumeric && numeric[i]:
				b.WriteString(PadLeft(cell, widths[i]))
			case i == len(widths)-1:
				b.WriteString(cell)
			default:
				b.WriteString(PadRight(cell, widths[i]))
			}
		}
		b.WriteByte('\n')
	}

	writeRow(headers, false)
	for i, w := range widths {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(strings.Repeat("-", w))
	}
	b.WriteByte('\n')
	for _, row := range rows {
		writeRow(row, true)
	}
	return b.String()
}

func isInteger(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ProgressBar renders pct (0..100) as an ASCII bar of the given inner width,
// e.g. [########------------] 40%.
func ProgressBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct/100*float64(width) + 0.5)
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %.0f%%",
		strings.Repeat("#", filled),
		strings.Repeat("-", width-filled),
		pct)
}

// Wrap breaks s into lines of at most width runes, splitting on spaces.
// Words longer than width are emitted on their own line unbroken.
func Wrap(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		if utf8.RuneCountInString(line)+1+utf8.RuneCountInString(word) <= width {
			line += " " + word
		} else {
			lines = append(lines, line)
			line = word
		}
	}
	lines = append(lines, line)
	return lines
}
