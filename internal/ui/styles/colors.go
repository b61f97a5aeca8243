package styles

import "github.com/charmbracelet/lipgloss"

// Color palette
// Dark mode optimized, semantic colors
var (
	// Primary semantic colors
	Accent  = lipgloss.Color("#7C3AED") // violet-500 - highlights, interactive
	Success = lipgloss.Color("#10B981") // emerald-500 - finished, additions
	Warning = lipgloss.Color("#F59E0B") // amber-500 - pending, changed
	Error   = lipgloss.Color("#EF4444") // red-500 - errors, removals
	Info    = lipgloss.Color("#3B82F6") // blue-500 - IDs, weights
	Muted   = lipgloss.Color("#6B7280") // gray-500 - secondary text

	// Text colors
	TextPrimary   = lipgloss.Color("#F9FAFB") // gray-50 - main text
	TextSecondary = lipgloss.Color("#9CA3AF") // gray-400 - descriptions

	// Background colors
	BgHighlight = lipgloss.Color("#1F2937") // gray-800 - cursor row
	BgSelected  = lipgloss.Color("#312E81") // indigo-900 - selected rows
)

// Semantic color aliases for clarity
var (
	// Record status colors
	ColorPending  = Warning
	ColorFinished = Success
	ColorOpen     = Info
	ColorRejected = Error

	ColorID   = Info
	ColorLoss = Error

	// Diff colors
	ColorDiffAdd    = Success // Added rows
	ColorDiffRemove = Error   // Removed rows
)
