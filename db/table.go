package db

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

var headerColor = color.New(color.Bold)

// Table renders rows as a boxed text grid. Cells that look numeric are
// right-aligned.
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]string
}

func NewTable(w io.Writer) *Table {
	return &Table{writer: w}
}

func (t *Table) Header(headers []string) {
	t.headers = headers
}

func (t *Table) Row(row []string) {
	t.rows = append(t.rows, row)
}

func (t *Table) Bulk(rows [][]string) {
	t.rows = append(t.rows, rows...)
}

func (t *Table) Render() {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return
	}

	widths := t.widths()
	rule := separator(widths)

	fmt.Fprintln(t.writer, rule)
	if len(t.headers) > 0 {
		fmt.Fprintln(t.writer, formatRow(t.headers, widths, true))
		fmt.Fprintln(t.writer, rule)
	}
	for _, row := range t.rows {
		fmt.Fprintln(t.writer, formatRow(row, widths, false))
	}
	fmt.Fprintln(t.writer, rule)
}

func (t *Table) widths() []int {
	n := len(t.headers)
	for _, row := range t.rows {
		n = max(n, len(row))
	}

	widths := make([]int, n)
	measure := func(row []string) {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}
	measure(t.headers)
	for _, row := range t.rows {
		measure(row)
	}
	for i := range widths {
		widths[i] = max(widths[i], 1)
	}
	return widths
}

func separator(widths []int) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteByte('+')
	}
	return b.String()
}

func formatRow(row []string, widths []int, header bool) string {
	var b strings.Builder
	b.WriteByte('|')
	for i, w := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		pad := strings.Repeat(" ", w-utf8.RuneCountInString(cell))

		b.WriteByte(' ')
		switch {
		case header:
			b.WriteString(headerColor.Sprint(cell) + pad)
		case numeric(cell):
			b.WriteString(pad + cell)
		default:
			b.WriteString(cell + pad)
		}
		b.WriteString(" |")
	}
	return b.String()
}

// numeric matches humanized integers such as "1,234" and plain decimals.
func numeric(cell string) bool {
	if cell == "" {
		return false
	}
	digits := 0
	for i, r := range cell {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '-' && i == 0, r == ',', r == '.':
		default:
			return false
		}
	}
	return digits > 0
}
