package table

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/needha-erp/erpdesk/internal/grid"
	"github.com/needha-erp/erpdesk/internal/ui/styles"
)

// ChangeKind classifies a line of a table diff.
type ChangeKind int

const (
	Unchanged ChangeKind = iota
	Added
	Removed
)

// ChangeLine is one row of a table diff.
type ChangeLine struct {
	Kind ChangeKind
	Text string
}

// snapshot renders rows as sorted text lines, one per row, so that a
// reordered row set is not reported as changed.
func snapshot(cols []Column, rows []grid.Row) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = strings.Join(Cells(cols, r), "\t")
	}
	sort.Strings(lines)
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// DiffRows compares two loads of the same table. A row whose fields changed
// shows up as one removed and one added line.
func DiffRows(cols []Column, before, after []grid.Row) []ChangeLine {
	dmp := diffmatchpatch.New()

	oldRunes, newRunes, lineArray := dmp.DiffLinesToRunes(snapshot(cols, before), snapshot(cols, after))
	diffs := dmp.DiffMainRunes(oldRunes, newRunes, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var out []ChangeLine
	for _, d := range diffs {
		var kind ChangeKind
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			kind = Added
		case diffmatchpatch.DiffDelete:
			kind = Removed
		default:
			kind = Unchanged
		}
		if d.Text == "" {
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			out = append(out, ChangeLine{Kind: kind, Text: line})
		}
	}
	return out
}

// CountChanges returns how many lines were added and removed.
func CountChanges(lines []ChangeLine) (added, removed int) {
	for _, l := range lines {
		switch l.Kind {
		case Added:
			added++
		case Removed:
			removed++
		}
	}
	return added, removed
}

// FormatChanges renders only the added and removed lines, git style.
func FormatChanges(lines []ChangeLine) string {
	var sb strings.Builder
	for _, l := range lines {
		switch l.Kind {
		case Added:
			sb.WriteString(styles.Render(styles.DiffAddLine, "+ "+l.Text))
		case Removed:
			sb.WriteString(styles.Render(styles.DiffRemoveLine, "- "+l.Text))
		default:
			continue
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// ChangeSummary is a one-line summary such as "+2 -1".
func ChangeSummary(lines []ChangeLine) string {
	added, removed := CountChanges(lines)
	if added == 0 && removed == 0 {
		return "no changes"
	}
	return fmt.Sprintf("%s %s", styles.Greenf("+%d", added), styles.Render(styles.DiffRemoveLine, fmt.Sprintf("-%d", removed)))
}
