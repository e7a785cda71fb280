// Package newfetch renders the prompt for starting a fetch job.
package newfetch

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zz9tf/publications-view/internal/tui/theme"
)

const panelWidth = 72

var (
	stylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorBorder).
			Padding(0, 1)

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBright)

	styleError = lipgloss.NewStyle().
			Foreground(theme.ColorError)

	styleFooter = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)
)

// Model holds the new fetch prompt state.
type Model struct {
	Input textinput.Model
	Err   string
}

// New creates the prompt with an empty, focused input.
func New() Model {
	ti := textinput.New()
	ti.Placeholder = "https://scholar.google.com/citations?user=..."
	ti.CharLimit = 512
	ti.Width = panelWidth - 6
	return Model{Input: ti}
}

// Focus focuses the input field.
func (m *Model) Focus() tea.Cmd {
	return m.Input.Focus()
}

// Value returns the entered source URL, trimmed.
func (m Model) Value() string {
	return strings.TrimSpace(m.Input.Value())
}

// Update forwards key events to the input field.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

// View renders the prompt panel.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(styleTitle.Render("New fetch job") + "\n")
	b.WriteString(strings.Repeat("─", panelWidth-4) + "\n")
	b.WriteString(theme.StyleDimmed.Render("Author profile URL:") + "\n")
	b.WriteString(m.Input.View() + "\n")

	if m.Err != "" {
		b.WriteString(styleError.Render("Error: "+m.Err) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(styleFooter.Render("[enter] start  [esc] cancel"))

	return stylePanel.Width(panelWidth).Render(b.String())
}
