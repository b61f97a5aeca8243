package table

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	overlay "github.com/rmhubbert/bubbletea-overlay"

	"github.com/needha-erp/erpdesk/internal/grid"
	"github.com/needha-erp/erpdesk/internal/ui/styles"
)

// ═══════════════════════════════════════════════════════════════════════════
// Constants
// ═══════════════════════════════════════════════════════════════════════════

const (
	defaultColWidth = 20
	minColWidth     = 3
	hiddenColWidth  = 3
	markerWidth     = 2 // selection marker before each row
	pageSizeStep    = 5
)

// Column display state
type colState int

const (
	colStateDefault  colState = iota // truncated to defaultColWidth
	colStateExpanded                 // full width
	colStateHidden                   // minimal width (just "...")
)

// Table mode
type tableMode int

const (
	tableModeNormal tableMode = iota
	tableModeSearch
	tableModeDetail
)

// Exit mode - what to do after quitting TUI
type exitMode int

const (
	exitNormal exitMode = iota
	exitJSON
	exitYAML
	exitRaw
	exitPlain
)

// Loader fetches a fresh row set for the browser's reload key.
type Loader func(ctx context.Context) []grid.Row

// Action runs against the selected rows, e.g. approving orders. The
// returned string is flashed in the footer.
type Action struct {
	Key   string
	Label string
	Run   func(ctx context.Context, rows []grid.Row) (string, error)
}

// Browser describes one interactive table session.
type Browser struct {
	Title      string
	Columns    []Column
	Controller *grid.Controller
	Load       Loader  // optional
	Action     *Action // optional
}

// ═══════════════════════════════════════════════════════════════════════════
// Model
// ═══════════════════════════════════════════════════════════════════════════

type tableModel struct {
	ctx           context.Context
	title         string
	columns       []Column
	ctrl          *grid.Controller
	load          Loader
	action        *Action
	actionKey     key.Binding
	fullColWidths []int      // actual max width of each column's content
	colStates     []colState // display state for each column
	cursor        int        // row within the current page
	colCursor     int        // selected column
	scrollX       int        // horizontal scroll offset in characters
	scrollY       int        // vertical scroll offset within the page
	width         int        // terminal width
	height        int        // terminal height
	ready         bool
	mode          tableMode
	searchInput   textinput.Model
	exitMode      exitMode // how to exit (for re-printing data)
	loading       bool
	detail        detailModel

	// Animation state for smooth horizontal scrolling
	animating   bool
	animTargetX int

	// Status message (flash notification, e.g. after yank)
	statusMsg   string
	statusUntil time.Time
	statusErr   bool
}

// ═══════════════════════════════════════════════════════════════════════════
// Key Bindings
// ═══════════════════════════════════════════════════════════════════════════

type tableKeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Left        key.Binding
	Right       key.Binding
	ShiftLeft   key.Binding
	ShiftRight  key.Binding
	NextPage    key.Binding
	PrevPage    key.Binding
	FirstPage   key.Binding
	LastPage    key.Binding
	Sort        key.Binding
	Toggle      key.Binding
	SelectAll   key.Binding
	ClearAll    key.Binding
	Bigger      key.Binding
	Smaller     key.Binding
	Detail      key.Binding
	Expand      key.Binding
	Hide        key.Binding
	Search      key.Binding
	Reload      key.Binding
	Quit        key.Binding
	Close       key.Binding
	YankCell    key.Binding
	YankRow     key.Binding
	ExportJSON  key.Binding
	ExportYAML  key.Binding
	ExportRaw   key.Binding
	ExportPlain key.Binding
}

var tableKeys = tableKeyMap{
	Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Left:        key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "prev column")),
	Right:       key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next column")),
	ShiftLeft:   key.NewBinding(key.WithKeys("shift+left"), key.WithHelp("⇧←", "scroll half left")),
	ShiftRight:  key.NewBinding(key.WithKeys("shift+right"), key.WithHelp("⇧→", "scroll half right")),
	NextPage:    key.NewBinding(key.WithKeys("n", "pgdown", "ctrl+d"), key.WithHelp("n", "next page")),
	PrevPage:    key.NewBinding(key.WithKeys("p", "pgup", "ctrl+u"), key.WithHelp("p", "prev page")),
	FirstPage:   key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "first page")),
	LastPage:    key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "last page")),
	Sort:        key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort by column")),
	Toggle:      key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "select")),
	SelectAll:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select all")),
	ClearAll:    key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "clear selection")),
	Bigger:      key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "more rows")),
	Smaller:     key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "fewer rows")),
	Detail:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Expand:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "expand/default")),
	Hide:        key.NewBinding(key.WithKeys("H"), key.WithHelp("H", "hide/default")),
	Search:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Reload:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Close:       key.NewBinding(key.WithKeys("esc", "enter", "q"), key.WithHelp("esc", "close")),
	YankCell:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy cell")),
	YankRow:     key.NewBinding(key.WithKeys("Y"), key.WithHelp("Y", "copy row")),
	ExportJSON:  key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "print as JSON")),
	ExportYAML:  key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "print as YAML")),
	ExportRaw:   key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "print raw")),
	ExportPlain: key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "print table")),
}

// ═══════════════════════════════════════════════════════════════════════════
// Entry Point
// ═══════════════════════════════════════════════════════════════════════════

// RunBrowser launches the interactive table viewer. It blocks until the
// user quits. If the user requests an export (J/L/R/P), every filtered row
// (all pages, current sort) is printed to stdout after the TUI exits.
func RunBrowser(ctx context.Context, b Browser) error {
	m := newTableModel(ctx, b)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	// Check if user requested output after exit
	if fm, ok := finalModel.(tableModel); ok {
		rows := fm.ctrl.State().Rows()
		switch fm.exitMode {
		case exitJSON:
			return PrintJSON(os.Stdout, b.Columns, rows)
		case exitYAML:
			return PrintYAML(os.Stdout, b.Columns, rows)
		case exitRaw:
			PrintRaw(os.Stdout, b.Columns, rows)
		case exitPlain:
			PrintPlainTable(os.Stdout, b.Columns, rows, "")
		}
	}

	return nil
}

func newTableModel(ctx context.Context, b Browser) tableModel {
	// Initialize search input
	ti := textinput.New()
	ti.Placeholder = "search..."
	ti.CharLimit = 100
	ti.Width = 30
	ti.SetValue(b.Controller.View().SearchQuery)

	m := tableModel{
		ctx:         ctx,
		title:       b.Title,
		columns:     b.Columns,
		ctrl:        b.Controller,
		load:        b.Load,
		action:      b.Action,
		colStates:   make([]colState, len(b.Columns)),
		mode:        tableModeNormal,
		searchInput: ti,
	}
	if b.Action != nil {
		m.actionKey = key.NewBinding(key.WithKeys(b.Action.Key), key.WithHelp(b.Action.Key, b.Action.Label))
	}
	m.measureColumns()
	return m
}

// measureColumns computes full column widths from every source row.
func (m *tableModel) measureColumns() {
	m.fullColWidths = make([]int, len(m.columns))
	for i, c := range m.columns {
		// room for the sort indicator
		m.fullColWidths[i] = len([]rune(c.Title)) + 2
	}
	for _, row := range m.ctrl.State().Rows() {
		for i, c := range m.columns {
			if w := len([]rune(grid.Text(row[c.Key]))); w > m.fullColWidths[i] {
				m.fullColWidths[i] = w
			}
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bubble Tea Interface
// ═══════════════════════════════════════════════════════════════════════════

type loadedMsg struct {
	ticket grid.Ticket
	rows   []grid.Row
}

type actionDoneMsg struct {
	text string
	err  error
}

func (m tableModel) Init() tea.Cmd {
	return nil
}

func (m tableModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.detail.width = msg.Width

	case animTickMsg:
		cmd := m.updateAnimation()
		return m, cmd

	case statusClearMsg:
		// Clear the flash message if it has expired
		if !m.statusUntil.IsZero() && time.Now().After(m.statusUntil) {
			m.statusMsg = ""
			m.statusUntil = time.Time{}
		}
		return m, nil

	case loadedMsg:
		m.loading = false
		if !m.ctrl.ApplyLoad(msg.ticket, msg.rows) {
			return m, nil
		}
		m.measureColumns()
		m.resetCursor()
		return m, m.setStatus(fmt.Sprintf("Loaded %d rows", len(msg.rows)))

	case actionDoneMsg:
		if msg.err != nil {
			return m, m.setError(msg.err.Error())
		}
		status := m.setStatus(msg.text)
		return m, tea.Batch(status, m.reload())

	case tea.KeyMsg:
		// Cancel any ongoing animation when user presses a key
		m.animating = false

		switch m.mode {
		case tableModeSearch:
			return m.updateSearch(msg)
		case tableModeDetail:
			if key.Matches(msg, tableKeys.Close) {
				m.mode = tableModeNormal
			}
			return m, nil
		}
		return m.updateNormal(msg)
	}

	return m, nil
}

func (m tableModel) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := m.ctrl.View()

	switch {
	case key.Matches(msg, tableKeys.Quit):
		return m, tea.Quit

	case key.Matches(msg, tableKeys.Search):
		m.mode = tableModeSearch
		m.searchInput.Focus()
		return m, textinput.Blink

	case key.Matches(msg, tableKeys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.ensureRowVisible()
		}

	case key.Matches(msg, tableKeys.Down):
		if m.cursor < len(v.VisibleRows)-1 {
			m.cursor++
			m.ensureRowVisible()
		}

	case key.Matches(msg, tableKeys.Left):
		if m.colCursor > 0 {
			m.colCursor--
			m.ensureColVisible()
		}

	case key.Matches(msg, tableKeys.Right):
		if m.colCursor < len(m.columns)-1 {
			m.colCursor++
			m.ensureColVisible()
		}

	case key.Matches(msg, tableKeys.ShiftLeft):
		return m, m.startAnimation(m.scrollX - max(m.width/2, 1))

	case key.Matches(msg, tableKeys.ShiftRight):
		return m, m.startAnimation(m.scrollX + max(m.width/2, 1))

	case key.Matches(msg, tableKeys.NextPage):
		m.ctrl.SetPageNumber(v.PageNumber + 1)
		m.resetCursor()

	case key.Matches(msg, tableKeys.PrevPage):
		m.ctrl.SetPageNumber(v.PageNumber - 1)
		m.resetCursor()

	case key.Matches(msg, tableKeys.FirstPage):
		m.ctrl.SetPageNumber(1)
		m.resetCursor()

	case key.Matches(msg, tableKeys.LastPage):
		m.ctrl.SetPageNumber(v.PageCount)
		m.resetCursor()

	case key.Matches(msg, tableKeys.Sort):
		if m.colCursor < len(m.columns) {
			m.ctrl.SetSort(grid.FieldID(m.columns[m.colCursor].Key))
			m.resetCursor()
		}

	case key.Matches(msg, tableKeys.Toggle):
		if m.cursor < len(v.VisibleRows) {
			m.ctrl.ToggleRowSelected(v.Offset() + m.cursor)
		}

	case key.Matches(msg, tableKeys.SelectAll):
		m.ctrl.SetAllSelected(true)

	case key.Matches(msg, tableKeys.ClearAll):
		m.ctrl.SetAllSelected(false)

	case key.Matches(msg, tableKeys.Bigger):
		if err := m.ctrl.SetPageSize(v.PageSize + pageSizeStep); err == nil {
			m.resetCursor()
		}

	case key.Matches(msg, tableKeys.Smaller):
		if err := m.ctrl.SetPageSize(v.PageSize - pageSizeStep); err != nil {
			return m, m.setError(fmt.Sprintf("page size cannot go below %d", v.PageSize))
		}
		m.resetCursor()

	case key.Matches(msg, tableKeys.Detail):
		if row := m.currentRow(); row != nil {
			m.detail = newDetailModel(m.columns, row, m.width)
			m.mode = tableModeDetail
		}

	case key.Matches(msg, tableKeys.Expand):
		m.toggleColState(colStateExpanded)

	case key.Matches(msg, tableKeys.Hide):
		m.toggleColState(colStateHidden)

	case key.Matches(msg, tableKeys.Reload):
		return m, m.reload()

	case m.action != nil && key.Matches(msg, m.actionKey):
		return m, m.runAction(v.SelectedRows)

	case key.Matches(msg, tableKeys.YankCell):
		return m, m.yankCell()

	case key.Matches(msg, tableKeys.YankRow):
		return m, m.yankRow()

	case key.Matches(msg, tableKeys.ExportJSON):
		m.exitMode = exitJSON
		return m, tea.Quit

	case key.Matches(msg, tableKeys.ExportYAML):
		m.exitMode = exitYAML
		return m, tea.Quit

	case key.Matches(msg, tableKeys.ExportRaw):
		m.exitMode = exitRaw
		return m, tea.Quit

	case key.Matches(msg, tableKeys.ExportPlain):
		m.exitMode = exitPlain
		return m, tea.Quit
	}

	return m, nil
}

func (m *tableModel) toggleColState(s colState) {
	if m.colCursor >= len(m.colStates) {
		return
	}
	if m.colStates[m.colCursor] == s {
		m.colStates[m.colCursor] = colStateDefault
	} else {
		m.colStates[m.colCursor] = s
	}
	m.ensureColVisible()
}

// ═══════════════════════════════════════════════════════════════════════════
// Search
// ═══════════════════════════════════════════════════════════════════════════

func (m tableModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = tableModeNormal
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.ctrl.SetSearchQuery("")
		m.resetCursor()
		return m, nil
	case tea.KeyEnter:
		m.mode = tableModeNormal
		m.searchInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)

	// Live filter as user types
	if q := m.searchInput.Value(); q != m.ctrl.View().SearchQuery {
		m.ctrl.SetSearchQuery(q)
		m.resetCursor()
	}

	return m, cmd
}

// ═══════════════════════════════════════════════════════════════════════════
// Loading and actions
// ═══════════════════════════════════════════════════════════════════════════

// reload starts a background load. Its result is applied only if no later
// load has been applied first.
func (m *tableModel) reload() tea.Cmd {
	if m.load == nil {
		return nil
	}
	m.loading = true
	ticket := m.ctrl.BeginLoad()
	load, ctx := m.load, m.ctx
	return func() tea.Msg {
		return loadedMsg{ticket: ticket, rows: load(ctx)}
	}
}

func (m *tableModel) runAction(rows []grid.Row) tea.Cmd {
	if len(rows) == 0 {
		return m.setError("select rows first (space, a)")
	}
	run, ctx := m.action.Run, m.ctx
	return func() tea.Msg {
		text, err := run(ctx, rows)
		return actionDoneMsg{text: text, err: err}
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Row / Column Helpers
// ═══════════════════════════════════════════════════════════════════════════

func (m tableModel) currentRow() grid.Row {
	rows := m.ctrl.View().VisibleRows
	if m.cursor < 0 || m.cursor >= len(rows) {
		return nil
	}
	return rows[m.cursor]
}

func (m *tableModel) resetCursor() {
	m.cursor = 0
	m.scrollY = 0
}

func (m tableModel) getColDisplayWidth(colIdx int) int {
	if colIdx >= len(m.colStates) {
		return defaultColWidth
	}

	switch m.colStates[colIdx] {
	case colStateExpanded:
		return max(m.fullColWidths[colIdx], minColWidth)
	case colStateHidden:
		return hiddenColWidth
	default:
		return max(min(m.fullColWidths[colIdx], defaultColWidth), minColWidth)
	}
}

func (m tableModel) getColStartX(colIdx int) int {
	x := 0
	for i := 0; i < colIdx && i < len(m.columns); i++ {
		x += m.getColDisplayWidth(i) + 2 // +2 for column separator spacing
	}
	return x
}

func (m tableModel) getColEndX(colIdx int) int {
	return m.getColStartX(colIdx) + m.getColDisplayWidth(colIdx)
}

func (m tableModel) getTotalWidth() int {
	total := 0
	for i := range m.columns {
		total += m.getColDisplayWidth(i) + 2
	}
	return total
}

func (m tableModel) viewportWidth() int {
	return m.width - 2 - markerWidth
}

func (m tableModel) getMaxScrollX() int {
	return max(m.getTotalWidth()-m.viewportWidth(), 0)
}

// ═══════════════════════════════════════════════════════════════════════════
// Animation
// ═══════════════════════════════════════════════════════════════════════════

type animTickMsg time.Time

const animationFrameInterval = 16 * time.Millisecond
const animationFraction = 0.25
const animationSnapThreshold = 1

func animTick() tea.Cmd {
	return tea.Tick(animationFrameInterval, func(t time.Time) tea.Msg {
		return animTickMsg(t)
	})
}

func (m *tableModel) startAnimation(targetX int) tea.Cmd {
	m.animTargetX = max(min(targetX, m.getMaxScrollX()), 0)

	if m.animTargetX == m.scrollX {
		m.animating = false
		return nil
	}
	if !m.animating {
		m.animating = true
		return animTick()
	}
	return nil
}

func (m *tableModel) updateAnimation() tea.Cmd {
	if !m.animating {
		return nil
	}

	remaining := m.animTargetX - m.scrollX
	if abs(remaining) <= animationSnapThreshold {
		m.scrollX = m.animTargetX
		m.animating = false
		return nil
	}

	delta := int(float64(remaining) * animationFraction)
	if delta == 0 {
		if remaining > 0 {
			delta = 1
		} else {
			delta = -1
		}
	}
	m.scrollX += delta

	return animTick()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ═══════════════════════════════════════════════════════════════════════════
// Status Message (flash notification)
// ═══════════════════════════════════════════════════════════════════════════

type statusClearMsg struct{}

const statusDuration = 2 * time.Second

// setStatus sets a temporary status message that auto-clears.
func (m *tableModel) setStatus(msg string) tea.Cmd {
	m.statusMsg = msg
	m.statusErr = false
	m.statusUntil = time.Now().Add(statusDuration)
	return tea.Tick(statusDuration, func(t time.Time) tea.Msg {
		return statusClearMsg{}
	})
}

func (m *tableModel) setError(msg string) tea.Cmd {
	cmd := m.setStatus(msg)
	m.statusErr = true
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════
// Clipboard (yank)
// ═══════════════════════════════════════════════════════════════════════════

// yankCell copies the selected cell value to the system clipboard.
func (m *tableModel) yankCell() tea.Cmd {
	row := m.currentRow()
	if row == nil || m.colCursor >= len(m.columns) {
		return nil
	}
	val := grid.Text(row[m.columns[m.colCursor].Key])
	if err := clipboard.WriteAll(val); err != nil {
		return m.setError(fmt.Sprintf("clipboard error: %s", err))
	}
	return m.setStatus(fmt.Sprintf("Copied: %s", Truncate(val, 40)))
}

// yankRow copies the entire selected row (tab-separated) to the clipboard.
func (m *tableModel) yankRow() tea.Cmd {
	row := m.currentRow()
	if row == nil {
		return nil
	}
	if err := clipboard.WriteAll(strings.Join(Cells(m.columns, row), "\t")); err != nil {
		return m.setError(fmt.Sprintf("clipboard error: %s", err))
	}
	return m.setStatus(fmt.Sprintf("Copied row (%d columns)", len(m.columns)))
}

// ═══════════════════════════════════════════════════════════════════════════
// ANSI-aware Viewport Slicing
// ═══════════════════════════════════════════════════════════════════════════

// applyViewport extracts a horizontal slice of a string, handling ANSI escape
// codes properly. It returns the portion of the string from visual column
// startX with the given width.
func applyViewport(s string, startX, width int) string {
	if width <= 0 {
		return ""
	}
	if startX < 0 {
		startX = 0
	}

	var result strings.Builder
	result.Grow(width + 64)

	visualPos := 0
	outputChars := 0
	stylesApplied := false
	inEscape := false
	escapeSeq := strings.Builder{}

	var activeStyles []string

	runes := []rune(s)
	i := 0

	for i < len(runes) && outputChars < width {
		r := runes[i]

		if r == '\x1b' && i+1 < len(runes) && runes[i+1] == '[' {
			inEscape = true
			escapeSeq.Reset()
			escapeSeq.WriteRune(r)
			i++
			continue
		}

		if inEscape {
			escapeSeq.WriteRune(r)
			if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
				inEscape = false
				seq := escapeSeq.String()

				if r == 'm' {
					if seq == "\x1b[0m" || seq == "\x1b[m" {
						activeStyles = nil
					} else {
						activeStyles = append(activeStyles, seq)
					}
				}

				if visualPos >= startX {
					result.WriteString(seq)
				}
			}
			i++
			continue
		}

		if visualPos >= startX {
			if !stylesApplied && len(activeStyles) > 0 {
				for _, style := range activeStyles {
					result.WriteString(style)
				}
				stylesApplied = true
			}
			result.WriteRune(r)
			outputChars++
		}

		visualPos++
		i++
	}

	if len(activeStyles) > 0 && outputChars > 0 {
		result.WriteString("\x1b[0m")
	}

	if outputChars < width {
		result.WriteString(strings.Repeat(" ", width-outputChars))
	}

	return result.String()
}

// ═══════════════════════════════════════════════════════════════════════════
// Scroll Helpers
// ═══════════════════════════════════════════════════════════════════════════

func (m *tableModel) ensureRowVisible() {
	visibleRows := m.visibleRowCount()
	if m.cursor < m.scrollY {
		m.scrollY = m.cursor
	} else if m.cursor >= m.scrollY+visibleRows {
		m.scrollY = m.cursor - visibleRows + 1
	}
}

func (m *tableModel) ensureColVisible() {
	colStartX := m.getColStartX(m.colCursor)
	colEndX := m.getColEndX(m.colCursor)
	viewportWidth := m.viewportWidth()

	if colStartX < m.scrollX {
		m.scrollX = colStartX
	} else if colEndX > m.scrollX+viewportWidth {
		if colEndX-colStartX <= viewportWidth {
			m.scrollX = colEndX - viewportWidth
		} else {
			m.scrollX = colStartX
		}
	}

	m.scrollX = max(min(m.scrollX, m.getMaxScrollX()), 0)
}

func (m tableModel) visibleRowCount() int {
	// header (2 lines) + column header (2 lines) + footer (2 lines)
	return max(m.height-6, 1)
}

// ═══════════════════════════════════════════════════════════════════════════
// View
// ═══════════════════════════════════════════════════════════════════════════

func (m tableModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.mode == tableModeDetail {
		return overlay.New(m.detail, pageView{m: m}, overlay.Center, overlay.Center, 0, 0).View()
	}
	return m.mainView()
}

// pageView wraps the table model so the detail overlay can draw over it.
type pageView struct{ m tableModel }

func (p pageView) Init() tea.Cmd                       { return nil }
func (p pageView) Update(tea.Msg) (tea.Model, tea.Cmd) { return p, nil }
func (p pageView) View() string                        { return p.m.mainView() }

func (m tableModel) mainView() string {
	var sb strings.Builder
	v := m.ctrl.View()

	// Header with position info
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(styles.Accent)
	sb.WriteString(headerStyle.Render(m.title))
	sb.WriteString("  ")
	sb.WriteString(styles.MutedMsg(Footer(v)))
	if m.loading {
		sb.WriteString(styles.MutedMsg("  loading..."))
	}
	sb.WriteString("\n")

	// Search bar
	switch {
	case m.mode == tableModeSearch:
		sb.WriteString(fmt.Sprintf("/%s\n", m.searchInput.View()))
	case v.SearchQuery != "":
		sb.WriteString(styles.MutedMsg(fmt.Sprintf("filter: %s\n", v.SearchQuery)))
	case v.DateFrom != "" || v.DateTo != "":
		sb.WriteString(styles.MutedMsg(fmt.Sprintf("dates: %s .. %s\n", orAny(v.DateFrom), orAny(v.DateTo))))
	default:
		sb.WriteString("\n")
	}

	sb.WriteString(m.renderTable(v))

	// Footer
	sb.WriteString("\n")
	switch {
	case m.statusMsg != "" && time.Now().Before(m.statusUntil):
		if m.statusErr {
			sb.WriteString(styles.WarningMsg(m.statusMsg))
		} else {
			sb.WriteString(styles.SuccessMsg(m.statusMsg))
		}
	case m.mode == tableModeSearch:
		sb.WriteString(styles.MutedMsg("enter confirm  esc clear"))
	default:
		help := "↑↓←→ nav  n/p page  s sort  space select  a/A all/none  +/- rows  enter details  / search  r reload  y copy  J json  q quit"
		if m.action != nil {
			help = m.action.Key + " " + m.action.Label + "  " + help
		}
		sb.WriteString(styles.MutedMsg(help))
	}

	return sb.String()
}

func orAny(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

// ═══════════════════════════════════════════════════════════════════════════
// Render Table
// ═══════════════════════════════════════════════════════════════════════════

func (m tableModel) renderTable(v grid.View) string {
	var sb strings.Builder

	if len(m.columns) == 0 {
		return "No columns"
	}

	viewportWidth := m.viewportWidth()
	blank := strings.Repeat(" ", markerWidth)

	headerLine := m.buildHeaderLine(v)
	sb.WriteString(blank + applyViewport(headerLine, m.scrollX, viewportWidth))
	sb.WriteString("\n")
	sb.WriteString(blank + applyViewport(m.buildSeparatorLine(), m.scrollX, viewportWidth))
	sb.WriteString("\n")

	if len(v.VisibleRows) == 0 {
		sb.WriteString(styles.MutedMsg(blank + "no rows"))
		sb.WriteString("\n")
	}

	end := min(m.scrollY+m.visibleRowCount(), len(v.VisibleRows))
	for i := m.scrollY; i < end; i++ {
		marker := blank
		selected := v.IsSelected(v.Offset() + i)
		if selected {
			marker = styles.Render(styles.HelpKey, styles.SymbolSelected) + " "
		}
		line := m.buildRowLine(v.VisibleRows[i], i == m.cursor, selected, v.SearchQuery)
		sb.WriteString(marker + applyViewport(line, m.scrollX, viewportWidth))
		sb.WriteString("\n")
	}

	// Scroll indicators
	var indicators []string
	if m.scrollX > 0 {
		indicators = append(indicators, "◀")
	}
	if m.scrollX+viewportWidth < m.getTotalWidth() {
		indicators = append(indicators, "▶")
	}
	if m.scrollY > 0 {
		indicators = append(indicators, "▲")
	}
	if end < len(v.VisibleRows) {
		indicators = append(indicators, "▼")
	}
	if len(indicators) > 0 {
		sb.WriteString(styles.MutedMsg(strings.Join(indicators, " ")))
	}

	return sb.String()
}

func (m tableModel) buildHeaderLine(v grid.View) string {
	var sb strings.Builder
	normal := lipgloss.NewStyle().Bold(true).Foreground(styles.Info)
	selected := lipgloss.NewStyle().Bold(true).Foreground(styles.Accent)

	for i, c := range m.columns {
		colWidth := m.getColDisplayWidth(i)

		name := c.Title
		if m.colStates[i] == colStateHidden {
			name = "..."
		} else if grid.FieldID(c.Key) == v.SortKey {
			name += " " + styles.SortIndicator(v.SortDirection == grid.Descending)
		}
		name = PadOrTruncate(name, colWidth)

		if i == m.colCursor {
			sb.WriteString(styles.Render(selected, name))
		} else {
			sb.WriteString(styles.Render(normal, name))
		}
		sb.WriteString("  ")
	}

	return sb.String()
}

func (m tableModel) buildSeparatorLine() string {
	var sb strings.Builder
	normal := lipgloss.NewStyle().Foreground(styles.Muted)
	selected := lipgloss.NewStyle().Foreground(styles.Accent)

	for i := range m.columns {
		sep := strings.Repeat("─", m.getColDisplayWidth(i))
		if i == m.colCursor {
			sb.WriteString(styles.Render(selected, sep))
		} else {
			sb.WriteString(styles.Render(normal, sep))
		}
		sb.WriteString("  ")
	}

	return sb.String()
}

func (m tableModel) buildRowLine(row grid.Row, isCursorRow, isSelected bool, query string) string {
	var sb strings.Builder
	cursorCell := lipgloss.NewStyle().Background(styles.Accent).Foreground(lipgloss.Color("#000000"))
	highlight := lipgloss.NewStyle().Foreground(styles.Warning)
	q := strings.ToLower(strings.TrimSpace(query))

	for i, c := range m.columns {
		colWidth := m.getColDisplayWidth(i)
		val := grid.Text(row[c.Key])

		var cell string
		if m.colStates[i] == colStateHidden {
			cell = PadOrTruncate("...", colWidth)
		} else {
			cell = PadOrTruncate(val, colWidth)
		}

		switch {
		case isCursorRow && i == m.colCursor:
			sb.WriteString(styles.Render(cursorCell, cell))
		case isCursorRow:
			sb.WriteString(styles.Render(styles.CursorStyle, cell))
		case isSelected:
			sb.WriteString(styles.Render(styles.SelectedStyle, cell))
		case q != "" && strings.Contains(strings.ToLower(val), q):
			sb.WriteString(styles.Render(highlight, cell))
		case c.Key == "status":
			sb.WriteString(styles.Status(cell))
		default:
			sb.WriteString(cell)
		}
		sb.WriteString("  ")
	}

	return sb.String()
}

// ═══════════════════════════════════════════════════════════════════════════
// Row detail overlay
// ═══════════════════════════════════════════════════════════════════════════

type detailModel struct {
	columns []Column
	row     grid.Row
	width   int
}

func newDetailModel(cols []Column, row grid.Row, width int) detailModel {
	return detailModel{columns: cols, row: row, width: width}
}

func (d detailModel) Init() tea.Cmd                       { return nil }
func (d detailModel) Update(tea.Msg) (tea.Model, tea.Cmd) { return d, nil }

func (d detailModel) View() string {
	labelWidth := 0
	for _, c := range d.columns {
		labelWidth = max(labelWidth, len([]rune(c.Title)))
	}
	valueWidth := max(d.width-labelWidth-12, 10)

	var sb strings.Builder
	sb.WriteString(styles.Render(styles.Bold, grid.Text(d.row["id"])))
	sb.WriteString("\n\n")
	for i, c := range d.columns {
		val := grid.Text(d.row[c.Key])
		if c.Key == "status" {
			val = styles.Status(val)
		} else {
			val = Truncate(val, valueWidth)
		}
		sb.WriteString(styles.Render(styles.HeaderStyle, PadOrTruncate(c.Title, labelWidth)))
		sb.WriteString("  ")
		sb.WriteString(val)
		if i < len(d.columns)-1 {
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n\n")
	sb.WriteString(styles.MutedMsg("esc close"))
	return styles.ModalStyle.Render(sb.String())
}
