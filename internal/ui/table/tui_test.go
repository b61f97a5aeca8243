package table

import (
	"context"
	"errors"
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needha-erp/erpdesk/internal/grid"
)

var testCols = []Column{
	{Key: "id", Title: "ID"},
	{Key: "status", Title: "Status"},
	{Key: "weight", Title: "Weight"},
}

func testRows(n int) []grid.Row {
	rows := make([]grid.Row, n)
	for i := range rows {
		status := "Pending"
		if i%2 == 0 {
			status = "Finished"
		}
		rows[i] = grid.Row{"id": fmt.Sprintf("B-%02d", i+1), "status": status, "weight": float64(i + 1)}
	}
	return rows
}

func newTestModel(t *testing.T, rows []grid.Row, b Browser) tableModel {
	t.Helper()
	ctrl, err := grid.New(grid.Options{PageSize: 5})
	require.NoError(t, err)
	ctrl.SetSourceRows(rows)

	b.Columns = testCols
	b.Controller = ctrl
	m := newTableModel(context.Background(), b)
	nm, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return nm.(tableModel)
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(m tableModel, keys ...string) (tableModel, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var nm tea.Model
		nm, cmd = m.Update(keyMsg(k))
		m = nm.(tableModel)
	}
	return m, cmd
}

func TestBrowser_SortTogglesOnCursorColumn(t *testing.T) {
	m := newTestModel(t, testRows(12), Browser{})

	m, _ = press(m, "right", "right", "s")
	v := m.ctrl.View()
	assert.Equal(t, grid.FieldID("weight"), v.SortKey)
	assert.Equal(t, grid.Ascending, v.SortDirection)

	m, _ = press(m, "s")
	v = m.ctrl.View()
	assert.Equal(t, grid.Descending, v.SortDirection)
	assert.Equal(t, 12.0, v.VisibleRows[0]["weight"])
}

func TestBrowser_Paging(t *testing.T) {
	m := newTestModel(t, testRows(12), Browser{})

	m, _ = press(m, "down", "down")
	assert.Equal(t, 2, m.cursor)

	m, _ = press(m, "n")
	assert.Equal(t, 2, m.ctrl.View().PageNumber)
	assert.Equal(t, 0, m.cursor, "cursor resets on page change")

	m, _ = press(m, "G")
	assert.Equal(t, 3, m.ctrl.View().PageNumber)
	m, _ = press(m, "n")
	assert.Equal(t, 3, m.ctrl.View().PageNumber, "clamped at last page")

	m, _ = press(m, "g")
	assert.Equal(t, 1, m.ctrl.View().PageNumber)
}

func TestBrowser_PageSizeKeys(t *testing.T) {
	m := newTestModel(t, testRows(12), Browser{})

	m, _ = press(m, "+")
	assert.Equal(t, 10, m.ctrl.View().PageSize)

	m, _ = press(m, "-", "-")
	assert.Equal(t, 5, m.ctrl.View().PageSize, "page size never drops below 1")
	assert.True(t, m.statusErr)
}

func TestBrowser_SelectionIsRelativeToPage(t *testing.T) {
	m := newTestModel(t, testRows(12), Browser{})

	m, _ = press(m, "n", "down", "space")
	v := m.ctrl.View()
	assert.Equal(t, []int{6}, v.SelectedIndices)
	require.Len(t, v.SelectedRows, 1)
	assert.Equal(t, "B-07", v.SelectedRows[0]["id"])

	m, _ = press(m, "a")
	assert.Len(t, m.ctrl.View().SelectedIndices, 12)
	m, _ = press(m, "A")
	assert.Empty(t, m.ctrl.View().SelectedIndices)
}

func TestBrowser_LiveSearch(t *testing.T) {
	m := newTestModel(t, testRows(12), Browser{})

	m, _ = press(m, "/", "p", "E", "n")
	assert.Equal(t, tableModeSearch, m.mode)
	v := m.ctrl.View()
	assert.Equal(t, "pEn", v.SearchQuery)
	assert.Equal(t, 6, v.TotalFiltered)

	m, _ = press(m, "enter")
	assert.Equal(t, tableModeNormal, m.mode)
	assert.Equal(t, "pEn", m.ctrl.View().SearchQuery, "enter keeps the filter")

	m, _ = press(m, "/", "esc")
	assert.Empty(t, m.ctrl.View().SearchQuery)
	assert.Equal(t, 12, m.ctrl.View().TotalFiltered)
}

func TestBrowser_DetailOverlay(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	m := newTestModel(t, testRows(3), Browser{})

	m, _ = press(m, "down", "enter")
	assert.Equal(t, tableModeDetail, m.mode)
	assert.Contains(t, m.View(), "B-02")

	m, _ = press(m, "n")
	assert.Equal(t, 1, m.ctrl.View().PageNumber, "keys do not reach the table while the detail is open")

	m, _ = press(m, "esc")
	assert.Equal(t, tableModeNormal, m.mode)
}

func TestBrowser_ReloadAppliesLatestTicketOnly(t *testing.T) {
	loads := 0
	m := newTestModel(t, testRows(3), Browser{
		Load: func(context.Context) []grid.Row {
			loads++
			return testRows(loads + 3)
		},
	})

	m, cmd := press(m, "r")
	require.NotNil(t, cmd)
	assert.True(t, m.loading)
	first := cmd().(loadedMsg)

	m, cmd = press(m, "r")
	second := cmd().(loadedMsg)

	nm, _ := m.Update(second)
	m = nm.(tableModel)
	assert.Equal(t, 5, m.ctrl.View().TotalSource)
	assert.False(t, m.loading)

	nm, _ = m.Update(first)
	m = nm.(tableModel)
	assert.Equal(t, 5, m.ctrl.View().TotalSource, "stale load is discarded")
}

func TestBrowser_ActionRunsOnSelection(t *testing.T) {
	var got []grid.Row
	m := newTestModel(t, testRows(4), Browser{
		Action: &Action{
			Key:   "x",
			Label: "approve",
			Run: func(_ context.Context, rows []grid.Row) (string, error) {
				got = rows
				return "approved", nil
			},
		},
	})

	m, cmd := press(m, "x")
	assert.True(t, m.statusErr, "nothing selected")
	assert.NotNil(t, cmd)
	assert.Nil(t, got)

	m, cmd = press(m, "space", "x")
	require.NotNil(t, cmd)
	done := cmd().(actionDoneMsg)
	require.NoError(t, done.err)
	require.Len(t, got, 1)
	assert.Equal(t, "B-01", got[0]["id"])

	nm, _ := m.Update(actionDoneMsg{err: errors.New("backend down")})
	m = nm.(tableModel)
	assert.True(t, m.statusErr)
	assert.Equal(t, "backend down", m.statusMsg)
}

func TestBrowser_ExportQuits(t *testing.T) {
	m := newTestModel(t, testRows(3), Browser{})
	m, cmd := press(m, "J")
	assert.Equal(t, exitJSON, m.exitMode)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestBrowser_ViewShowsPositionAndSortIndicator(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	m := newTestModel(t, testRows(12), Browser{Title: "polishing"})
	m, _ = press(m, "s")

	out := m.View()
	assert.Contains(t, out, "polishing")
	assert.Contains(t, out, "page 1/3 · rows 1-5 of 12")
	assert.Contains(t, out, "ID ▲")
}

func TestApplyViewport(t *testing.T) {
	assert.Equal(t, "cde  ", applyViewport("abcde", 2, 5))
	assert.Equal(t, "", applyViewport("abc", 0, 0))

	styled := "\x1b[31mred\x1b[0m text"
	assert.Equal(t, "\x1b[31med\x1b[0m", applyViewport(styled, 1, 2))
}
