package table

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/needha-erp/erpdesk/internal/grid"
)

// PrintJSON outputs rows as a JSON array of objects keyed by column.
func PrintJSON(w io.Writer, cols []Column, rows []grid.Row) error {
	results := make([]map[string]any, len(rows))
	for i, row := range rows {
		obj := make(map[string]any, len(cols))
		for _, c := range cols {
			obj[c.Key] = row[c.Key]
		}
		results[i] = obj
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// PrintYAML outputs rows as a YAML sequence, keeping column order.
func PrintYAML(w io.Writer, cols []Column, rows []grid.Row) error {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, row := range rows {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, c := range cols {
			var val yaml.Node
			if err := val.Encode(row[c.Key]); err != nil {
				return fmt.Errorf("encode %s: %w", c.Key, err)
			}
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: c.Key},
				&val)
		}
		seq.Content = append(seq.Content, m)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(seq); err != nil {
		return err
	}
	return enc.Close()
}

// PrintRaw outputs rows as tab-separated values without a header.
func PrintRaw(w io.Writer, cols []Column, rows []grid.Row) {
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(Cells(cols, row), "\t"))
	}
}

// PrintPlainTable prints an aligned table for non-TTY output.
// Shows full content without truncation.
func PrintPlainTable(w io.Writer, cols []Column, rows []grid.Row, footer string) {
	if len(cols) == 0 {
		fmt.Fprintln(w, "(0 rows)")
		return
	}

	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = Cells(cols, row)
	}

	// Calculate column widths based on actual content (no truncation)
	colWidths := make([]int, len(cols))
	for i, c := range cols {
		colWidths[i] = lipgloss.Width(c.Title)
	}
	for _, row := range cells {
		for i, val := range row {
			if vw := lipgloss.Width(val); vw > colWidths[i] {
				colWidths[i] = vw
			}
		}
	}

	var sb strings.Builder

	// Header
	for i, c := range cols {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(pad(c.Title, colWidths[i]))
	}
	sb.WriteString("\n")

	// Separator
	for i, cw := range colWidths {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(strings.Repeat("─", cw))
	}
	sb.WriteString("\n")

	for _, row := range cells {
		for i, val := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(pad(val, colWidths[i]))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	if footer == "" {
		footer = fmt.Sprintf("(%d rows)", len(rows))
	}
	sb.WriteString(footer)
	sb.WriteString("\n")

	fmt.Fprint(w, sb.String())
}

// Footer summarizes a view's position, e.g. "page 2/5 · rows 11-20 of 47".
func Footer(v grid.View) string {
	if v.TotalFiltered == 0 {
		if v.TotalSource > 0 {
			return fmt.Sprintf("(0 of %d rows match)", v.TotalSource)
		}
		return "(0 rows)"
	}
	first := v.Offset() + 1
	last := v.Offset() + len(v.VisibleRows)
	s := fmt.Sprintf("page %d/%d · rows %d-%d of %d", v.PageNumber, v.PageCount, first, last, v.TotalFiltered)
	if v.TotalFiltered != v.TotalSource {
		s += fmt.Sprintf(" (filtered from %d)", v.TotalSource)
	}
	if n := len(v.SelectedIndices); n > 0 {
		s += fmt.Sprintf(" · %d selected", n)
	}
	return s
}

// pad adds spaces to reach the desired width (no truncation).
func pad(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// Truncate shortens a string to fit width, adding "..." if needed.
func Truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width > 3 {
		return string(r[:width-3]) + "..."
	}
	return string(r[:width])
}

// PadOrTruncate pads or truncates to exact width (for TUI table).
func PadOrTruncate(s string, width int) string {
	r := []rune(s)
	if len(r) > width {
		return Truncate(s, width)
	}
	return s + strings.Repeat(" ", width-len(r))
}
