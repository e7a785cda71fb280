// Package detail renders the job info flyout overlay.
package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/zz9tf/publications-view/internal/fetch"
	"github.com/zz9tf/publications-view/internal/tui/theme"
)

const (
	panelWidth = 72
	barWidth   = 24
	labelWidth = 12
	maxPapers  = 10
)

var (
	stylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorBorder).
			Padding(0, 1)

	styleLabel = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed).
			Width(labelWidth)

	styleValue = lipgloss.NewStyle().
			Foreground(theme.ColorBright)

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBright)

	styleFooter = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)

	styleSectionHeader = lipgloss.NewStyle().
				Bold(true).
				Foreground(theme.ColorDimmed)

	styleError = lipgloss.NewStyle().
			Foreground(theme.ColorError)
)

// Model holds the state for the detail overlay.
type Model struct {
	Job *fetch.Job
}

// New creates a detail model for the given job.
func New(j *fetch.Job) Model {
	return Model{Job: j}
}

// View renders the detail panel. Returns an empty string if no job is set.
func (m Model) View() string {
	if m.Job == nil {
		return ""
	}
	return stylePanel.Width(panelWidth).Render(m.renderInner(m.Job))
}

func (m Model) renderInner(j *fetch.Job) string {
	var b strings.Builder

	id := j.JobID
	if len(id) > 8 {
		id = id[:8]
	}
	b.WriteString(styleTitle.Render("Fetch job: "+id) + "\n")
	b.WriteString(strings.Repeat("─", panelWidth-4) + "\n")

	writeRow(&b, "Job ID", truncate(j.JobID, 40))
	writeRow(&b, "Source", truncate(j.SourceURL, 52))

	name := j.Status.String()
	writeRow(&b, "Status", lipgloss.NewStyle().Foreground(theme.StatusColor(name)).Render(name))

	bar := renderBar(j.Progress, barWidth)
	writeRow(&b, "Progress", fmt.Sprintf("%s %3d%%", bar, j.Progress))

	if j.TotalCount > 0 {
		writeRow(&b, "Papers", fmt.Sprintf("%d of %d fetched", j.FetchedCount, j.TotalCount))
	}
	if !j.StartedAt.IsZero() {
		writeRow(&b, "Started", formatAge(j.StartedAt))
	}

	if j.ErrorMessage != "" {
		b.WriteString("\n")
		b.WriteString(styleError.Render("Error: "+j.ErrorMessage) + "\n")
	}

	if len(j.Papers) > 0 {
		b.WriteString("\n")
		b.WriteString(styleSectionHeader.Render(fmt.Sprintf("Publications (%d)", len(j.Papers))) + "\n")
		for i, p := range j.Papers {
			if i == maxPapers {
				b.WriteString(theme.StyleDimmed.Render(fmt.Sprintf("  … and %d more", len(j.Papers)-maxPapers)) + "\n")
				break
			}
			b.WriteString(renderPaper(i, p) + "\n")
		}
	}

	b.WriteString("\n")
	footer := "[e] export yaml  [s] stop  [esc] close"
	if j.Status == fetch.StatusCompleted {
		footer = "[e] export yaml  [s] dismiss  [esc] close"
	}
	b.WriteString(styleFooter.Render(footer))

	return b.String()
}

func renderPaper(i int, p fetch.Paper) string {
	title := truncate(p.Title, 46)
	line := fmt.Sprintf("  %2d. %-46s %d", i+1, title, p.Year)
	if p.Citations > 0 {
		line += theme.StyleDimmed.Render(fmt.Sprintf("  cited %d", p.Citations))
	}
	return line
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(styleLabel.Render(label+":") + styleValue.Render(value) + "\n")
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

func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds ago", int(d.Minutes()), int(d.Seconds())%60)
	default:
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm ago", h, m)
	}
}
