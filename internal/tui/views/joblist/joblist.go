// Package joblist renders the fetch job table.
package joblist

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/zz9tf/publications-view/internal/fetch"
	"github.com/zz9tf/publications-view/internal/tui/theme"
)

const (
	barWidth = 20
	srcWidth = 36
)

// Model holds the job list state.
type Model struct {
	Jobs     []fetch.Job
	Selected int
	Width    int
	Spinner  spinner.Model
}

// New creates a job list model.
func New() Model {
	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorAccent)
	return Model{Spinner: sp}
}

// View renders the job table.
func (m Model) View() string {
	lines := []string{
		theme.StyleHeader.Render("  PUBLICATION FETCH JOBS"),
		theme.StyleDimmed.Render(fmt.Sprintf("  %-1s %-8s  %-*s %-15s %-*s %4s %7s",
			" ", "JOB", srcWidth, "SOURCE", "STATUS", barWidth, "PROGRESS", "", "PAPERS")),
	}

	if len(m.Jobs) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  No fetch jobs. Press n to start one."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for i, j := range m.Jobs {
		lines = append(lines, m.renderRow(i, j))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderRow(i int, j fetch.Job) string {
	prefix := "  "
	if i == m.Selected {
		prefix = "> "
	}

	name := j.Status.String()
	color := theme.StatusColor(name)
	glyph := lipgloss.NewStyle().Foreground(color).Render(theme.StatusGlyph(name))

	id := j.JobID
	if len(id) > 8 {
		id = id[:8]
	}

	statusStr := lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf("%-15s", name))
	bar := renderBar(j.Progress, barWidth)
	pct := fmt.Sprintf("%3d%%", j.Progress)

	counts := strings.Repeat(" ", 7)
	if j.TotalCount > 0 {
		counts = fmt.Sprintf("%3d/%-3d", j.FetchedCount, j.TotalCount)
	}

	line := fmt.Sprintf("%s%s %-8s  %-*s %s %s %s %s",
		prefix, glyph, id, srcWidth, displaySource(j.SourceURL, srcWidth), statusStr, bar, pct, counts)

	if !j.Status.IsTerminal() {
		line += " " + m.Spinner.View()
	}
	return line
}

// displaySource compacts a source URL for the table: scheme stripped,
// truncated to max characters.
func displaySource(raw string, max int) string {
	s := strings.TrimPrefix(raw, "https://")
	s = strings.TrimPrefix(s, "http://")
	return truncate(s, max)
}

func renderBar(pct, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().Foreground(theme.ProgressColor(pct)).Render(bar)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
