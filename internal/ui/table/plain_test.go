package table

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needha-erp/erpdesk/internal/grid"
)

func TestPrintPlainTable(t *testing.T) {
	var buf bytes.Buffer
	PrintPlainTable(&buf, testCols, testRows(2), "")

	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "ID    Status    Weight", strings.TrimRight(lines[0], " "))
	assert.Equal(t, "────  ────────  ──────", lines[1])
	assert.Equal(t, "B-01  Finished  1", strings.TrimRight(lines[2], " "))
	assert.Equal(t, "B-02  Pending   2", strings.TrimRight(lines[3], " "))
	assert.Equal(t, "(2 rows)", lines[5])
}

func TestPrintJSON_KeepsTypes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintJSON(&buf, testCols, testRows(1)))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []map[string]any{{"id": "B-01", "status": "Finished", "weight": 1.0}}, got)
}

func TestPrintYAML_ColumnOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintYAML(&buf, testCols, testRows(1)))
	assert.Equal(t, "- id: B-01\n  status: Finished\n  weight: 1\n", buf.String())
}

func TestPrintRaw(t *testing.T) {
	var buf bytes.Buffer
	PrintRaw(&buf, testCols, testRows(2))
	assert.Equal(t, "B-01\tFinished\t1\nB-02\tPending\t2\n", buf.String())
}

func TestFooter(t *testing.T) {
	ctrl, err := grid.New(grid.Options{PageSize: 5})
	require.NoError(t, err)
	ctrl.SetSourceRows(testRows(12))
	ctrl.SetPageNumber(3)
	assert.Equal(t, "page 3/3 · rows 11-12 of 12", Footer(ctrl.View()))

	ctrl.SetSearchQuery("pending")
	ctrl.ToggleRowSelected(0)
	assert.Equal(t, "page 1/2 · rows 1-5 of 6 (filtered from 12) · 1 selected", Footer(ctrl.View()))

	ctrl.SetSearchQuery("zzz")
	assert.Equal(t, "(0 of 12 rows match)", Footer(ctrl.View()))
}

func TestDisplayView_Formats(t *testing.T) {
	ctrl, err := grid.New(grid.Options{PageSize: 1})
	require.NoError(t, err)
	ctrl.SetSourceRows(testRows(3))
	v := ctrl.View()

	var buf bytes.Buffer
	require.NoError(t, DisplayView(testCols, v, DisplayOptions{Raw: true, Out: &buf}))
	assert.Equal(t, "B-01\tFinished\t1\n", buf.String())

	buf.Reset()
	require.NoError(t, DisplayView(testCols, v, DisplayOptions{Out: &buf}))
	assert.Contains(t, buf.String(), "page 1/3")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdefgh", 5))
	assert.Equal(t, "Caf", Truncate("Café", 3))
	assert.Equal(t, "Café  ", PadOrTruncate("Café", 6))
}
