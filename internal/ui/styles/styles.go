package styles

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
)

// Symbols - Unicode with ASCII fallbacks
const (
	SymbolSuccess  = "✓"
	SymbolError    = "✗"
	SymbolWarning  = "⚠"
	SymbolInfo     = "●"
	SymbolPending  = "○"
	SymbolArrow    = "→"
	SymbolSelected = "■"
	SymbolAsc      = "▲"
	SymbolDesc     = "▼"
)

var forceNoColor atomic.Bool

// DisableColor turns colors off for the rest of the process (--no-color)
func DisableColor() {
	forceNoColor.Store(true)
}

// NoColor checks if colors should be disabled
func NoColor() bool {
	return forceNoColor.Load() || os.Getenv("NO_COLOR") != "" || os.Getenv("ERPDESK_NO_COLOR") != ""
}

// IsAccessible checks if accessibility mode is enabled
// When enabled: no animations, no spinner, simplified output
func IsAccessible() bool {
	return os.Getenv("ERPDESK_ACCESSIBLE") == "1" || os.Getenv("ERPDESK_ACCESSIBLE") == "true"
}

// Bold is the base text style
var Bold = lipgloss.NewStyle().Bold(true)

// Semantic styles - use these instead of raw colors
var (
	// Record status
	PendingStyle  = lipgloss.NewStyle().Foreground(ColorPending)
	FinishedStyle = lipgloss.NewStyle().Foreground(ColorFinished)
	OpenStyle     = lipgloss.NewStyle().Foreground(ColorOpen)
	RejectedStyle = lipgloss.NewStyle().Foreground(ColorRejected)

	// Message types
	SuccessStyle = lipgloss.NewStyle().Foreground(Success)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning)
	InfoStyle    = lipgloss.NewStyle().Foreground(Info)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)

	// Table display
	IDStyle     = lipgloss.NewStyle().Foreground(ColorID)
	LossStyle   = lipgloss.NewStyle().Foreground(ColorLoss)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(TextSecondary)

	// Diff display
	DiffAddLine    = lipgloss.NewStyle().Foreground(ColorDiffAdd)
	DiffRemoveLine = lipgloss.NewStyle().Foreground(ColorDiffRemove)

	// Interactive TUI
	CursorStyle = lipgloss.NewStyle().
			Background(BgHighlight).
			Foreground(TextPrimary)
	SelectedStyle = lipgloss.NewStyle().
			Background(BgSelected).
			Foreground(TextPrimary)
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Accent).
			Padding(1, 2)

	// Help bar
	HelpKey = lipgloss.NewStyle().Foreground(Accent)
)

// ═══════════════════════════════════════════════════════════════════════════
// Render functions - centralized formatting with NoColor support
// ═══════════════════════════════════════════════════════════════════════════

// Render applies a style if colors are enabled
func Render(s lipgloss.Style, text string) string {
	if NoColor() {
		return text
	}
	return s.Render(text)
}

// ID formats a record ID
func ID(id string) string {
	return Render(IDStyle, id)
}

// Status colors a record status by its meaning
func Status(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "pending", "in progress", "issued":
		return Render(PendingStyle, status)
	case "finished", "completed", "received", "approved":
		return Render(FinishedStyle, status)
	case "open":
		return Render(OpenStyle, status)
	case "rejected", "cancelled":
		return Render(RejectedStyle, status)
	default:
		return status
	}
}

// Weight formats a weight in grams with 4 decimals
func Weight(g float64) string {
	return fmt.Sprintf("%.4fg", g)
}

// Loss formats a loss in grams, red when positive
func Loss(g float64) string {
	s := Weight(g)
	if g > 0 {
		return Render(LossStyle, s)
	}
	return s
}

// SortIndicator returns the arrow for a sort direction
func SortIndicator(desc bool) string {
	if desc {
		return SymbolDesc
	}
	return SymbolAsc
}

// ═══════════════════════════════════════════════════════════════════════════
// Message formatters - structured output
// ═══════════════════════════════════════════════════════════════════════════

// SuccessMsg formats a success message with checkmark
func SuccessMsg(msg string) string {
	symbol := SymbolSuccess
	if NoColor() {
		symbol = "+"
	}
	return fmt.Sprintf("%s %s", Render(SuccessStyle, symbol), msg)
}

// ErrorMsg formats an error message
func ErrorMsg(title string) string {
	return Render(ErrorStyle, "Error: "+title)
}

// WarningMsg formats a warning message
func WarningMsg(msg string) string {
	symbol := SymbolWarning
	if NoColor() {
		symbol = "!"
	}
	return fmt.Sprintf("%s %s", Render(WarningStyle, symbol), msg)
}

// MutedMsg formats muted/secondary text
func MutedMsg(msg string) string {
	return Render(MutedStyle, msg)
}

// ═══════════════════════════════════════════════════════════════════════════
// Section formatters - consistent output structure
// ═══════════════════════════════════════════════════════════════════════════

// SectionHeader formats a section header
func SectionHeader(title string) string {
	return Render(Bold, title)
}

// ═══════════════════════════════════════════════════════════════════════════
// Color functions - simple string coloring
// ═══════════════════════════════════════════════════════════════════════════

func Cyan(s string) string { return Render(InfoStyle, s) }
func Mute(s string) string { return Render(MutedStyle, s) }

// Greenf renders a formatted string in the finished color
func Greenf(format string, a ...any) string {
	return Render(FinishedStyle, fmt.Sprintf(format, a...))
}
