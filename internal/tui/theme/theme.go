// Package theme provides the Lip Gloss color palette and reusable styles
// for the publications TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Job status colors.
var (
	ColorCollecting = lipgloss.Color("#7c3aed")
	ColorCollected  = lipgloss.Color("#2563eb")
	ColorSearching  = lipgloss.Color("#d97706")
	ColorCompleted  = lipgloss.Color("#16a34a")
	ColorError      = lipgloss.Color("#dc2626")
	ColorDefault    = lipgloss.Color("#9ca3af")
)

// Connection state colors.
var (
	ColorConnected    = lipgloss.Color("#22c55e")
	ColorConnecting   = lipgloss.Color("#d97706")
	ColorDisconnected = lipgloss.Color("#dc2626")
)

// Progress bar thresholds.
var (
	ColorProgressLow  = lipgloss.Color("#2563eb") // <40%
	ColorProgressMid  = lipgloss.Color("#d97706") // 40-90%
	ColorProgressHigh = lipgloss.Color("#22c55e") // >90%
)

// UI chrome colors.
var (
	ColorBorder = lipgloss.Color("#4b5563")
	ColorDimmed = lipgloss.Color("#6b7280")
	ColorBright = lipgloss.Color("#f9fafb")
	ColorAccent = lipgloss.Color("#06b6d4")
)

// StatusColor returns the Lip Gloss color for a job status name.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "CollectingInfo":
		return ColorCollecting
	case "CollectedInfo":
		return ColorCollected
	case "SearchingPapers":
		return ColorSearching
	case "Completed":
		return ColorCompleted
	case "Error":
		return ColorError
	default:
		return ColorDefault
	}
}

// StatusGlyph returns a Unicode glyph representing a job status name.
func StatusGlyph(status string) string {
	switch status {
	case "CollectingInfo":
		return "◎"
	case "CollectedInfo":
		return "●"
	case "SearchingPapers":
		return "⚙"
	case "Completed":
		return "✓"
	case "Error":
		return "✗"
	default:
		return "·"
	}
}

// ConnColor returns the color for a connection state name.
func ConnColor(state string) lipgloss.Color {
	switch state {
	case "connected":
		return ColorConnected
	case "connecting":
		return ColorConnecting
	default:
		return ColorDisconnected
	}
}

// ProgressColor returns the color for a progress percentage in [0,100].
func ProgressColor(pct int) lipgloss.Color {
	switch {
	case pct > 90:
		return ColorProgressHigh
	case pct >= 40:
		return ColorProgressMid
	default:
		return ColorProgressLow
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)
)
