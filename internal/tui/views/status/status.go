package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/zz9tf/publications-view/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	State     string
	SessionID string
	Active    int
	Done      int
	Failed    int
	Width     int
}

// New creates a status bar model.
func New() Model {
	return Model{State: "disconnected"}
}

// SetCounts updates the job counts.
func (m *Model) SetCounts(active, done, failed int) {
	m.Active = active
	m.Done = done
	m.Failed = failed
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	glyph := "○"
	switch m.State {
	case "connected":
		glyph = "●"
	case "connecting":
		glyph = "◌"
	}
	connStr := lipgloss.NewStyle().
		Foreground(theme.ConnColor(m.State)).
		Render(fmt.Sprintf("%s %s", glyph, m.State))

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr

	if m.SessionID != "" {
		id := m.SessionID
		if len(id) > 8 {
			id = id[:8]
		}
		content += sep + theme.StyleDimmed.Render("session "+id)
	}

	content += sep + fmt.Sprintf("%d active  %d done  %d failed", m.Active, m.Done, m.Failed)

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
