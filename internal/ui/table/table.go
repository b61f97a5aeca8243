// Package table renders department tables: an interactive browser driven by
// a grid.Controller (search, sort, selection, paging, row detail) plus
// plain text, JSON, YAML and raw tab-separated output.
package table

import (
	"io"
	"os"

	"golang.org/x/term"

	"github.com/needha-erp/erpdesk/internal/grid"
)

// Column is one displayed column.
type Column struct {
	Key   string
	Title string
}

// DisplayOptions controls how results are rendered.
type DisplayOptions struct {
	// JSON outputs results as a JSON array of objects.
	JSON bool
	// YAML outputs results as a YAML sequence of mappings.
	YAML bool
	// Raw outputs results as tab-separated values (for piping).
	Raw bool
	// Out is where non-interactive output goes (default stdout).
	Out io.Writer
}

func (o DisplayOptions) out() io.Writer {
	if o.Out != nil {
		return o.Out
	}
	return os.Stdout
}

// DisplayView renders one page of a grid view in the selected format. Plain
// output gets a footer with the page position.
func DisplayView(cols []Column, v grid.View, opts DisplayOptions) error {
	w := opts.out()
	switch {
	case opts.Raw:
		PrintRaw(w, cols, v.VisibleRows)
		return nil
	case opts.JSON:
		return PrintJSON(w, cols, v.VisibleRows)
	case opts.YAML:
		return PrintYAML(w, cols, v.VisibleRows)
	}
	PrintPlainTable(w, cols, v.VisibleRows, Footer(v))
	return nil
}

// IsInteractive reports whether stdout is a terminal.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Cells returns the text of each column for a row.
func Cells(cols []Column, row grid.Row) []string {
	cells := make([]string, len(cols))
	for i, c := range cols {
		cells[i] = grid.Text(row[c.Key])
	}
	return cells
}
