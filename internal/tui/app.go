package tui

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/zz9tf/publications-view/internal/bus"
	"github.com/zz9tf/publications-view/internal/conn"
	"github.com/zz9tf/publications-view/internal/fetch"
	"github.com/zz9tf/publications-view/internal/tui/theme"
	"github.com/zz9tf/publications-view/internal/tui/views/detail"
	"github.com/zz9tf/publications-view/internal/tui/views/joblist"
	"github.com/zz9tf/publications-view/internal/tui/views/newfetch"
	"github.com/zz9tf/publications-view/internal/tui/views/status"
	"github.com/zz9tf/publications-view/internal/wire"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDetail
	OverlayNewFetch
)

// refreshMsg tells the program to re-read the registry and connection
// state. Job events and state changes land on goroutines owned by the
// connection manager; they are bridged into the Bubble Tea loop through
// a buffered channel so handlers never block on the UI.
type refreshMsg struct{}

// Model is the root Bubble Tea model.
type Model struct {
	mgr    *conn.Manager
	reg    *fetch.Registry
	events chan tea.Msg

	keys   KeyMap
	width  int
	height int

	jobs     []fetch.Job
	selected int
	overlay  Overlay
	detailID string

	statusBar status.Model
	list      joblist.Model
	prompt    newfetch.Model

	notice    string
	exportDir string
}

// New creates the root model and wires it to the connection manager's
// event stream.
func New(mgr *conn.Manager, reg *fetch.Registry, b *bus.Bus) Model {
	m := Model{
		mgr:       mgr,
		reg:       reg,
		events:    make(chan tea.Msg, 64),
		keys:      DefaultKeyMap(),
		statusBar: status.New(),
		list:      joblist.New(),
		exportDir: ".",
	}

	// A full channel means refreshes are already queued; dropping the
	// notification loses nothing.
	notify := func() {
		select {
		case m.events <- refreshMsg{}:
		default:
		}
	}
	if b != nil {
		for _, ev := range []wire.Event{wire.EventProgress, wire.EventCompleted, wire.EventFailed} {
			b.Subscribe(ev, func(json.RawMessage) { notify() })
		}
	}
	if mgr != nil {
		mgr.SetStateHook(func(conn.State) { notify() })
	}

	return m
}

// Init starts the connection.
func (m Model) Init() tea.Cmd {
	m.mgr.Connect()
	return tea.Batch(m.waitForRefresh(), m.list.Spinner.Tick)
}

func (m Model) waitForRefresh() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.list.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case refreshMsg:
		m.refresh()
		return m, m.waitForRefresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.list.Spinner, cmd = m.list.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.overlay {
	case OverlayNewFetch:
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
			return m, nil
		case key.Matches(msg, m.keys.Enter):
			return m.submitFetch()
		default:
			var cmd tea.Cmd
			m.prompt, cmd = m.prompt.Update(msg)
			return m, cmd
		}

	case OverlayDetail:
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Enter):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Export):
			m.exportCurrent()
		case key.Matches(msg, m.keys.Stop):
			m.stopCurrent()
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Quit):
			m.mgr.Disconnect()
			return m, tea.Quit
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.mgr.Disconnect()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Down):
		if len(m.jobs) > 0 {
			m.selected = (m.selected + 1) % len(m.jobs)
			m.list.Selected = m.selected
		}

	case key.Matches(msg, m.keys.Up):
		if len(m.jobs) > 0 {
			m.selected = (m.selected - 1 + len(m.jobs)) % len(m.jobs)
			m.list.Selected = m.selected
		}

	case key.Matches(msg, m.keys.Enter):
		if len(m.jobs) > 0 {
			m.detailID = m.jobs[m.selected].JobID
			m.overlay = OverlayDetail
		}

	case key.Matches(msg, m.keys.New):
		m.prompt = newfetch.New()
		m.overlay = OverlayNewFetch
		return m, m.prompt.Focus()

	case key.Matches(msg, m.keys.Stop):
		m.stopCurrent()

	case key.Matches(msg, m.keys.Export):
		m.exportCurrent()

	case key.Matches(msg, m.keys.Connect):
		m.mgr.Connect()

	case key.Matches(msg, m.keys.Disconnect):
		m.mgr.Disconnect()
		m.reg.Clear()
		m.refresh()
	}

	return m, nil
}

func (m Model) submitFetch() (tea.Model, tea.Cmd) {
	raw := m.prompt.Value()
	if err := validateSourceURL(raw); err != nil {
		m.prompt.Err = err.Error()
		return m, nil
	}

	jobID := uuid.NewString()
	if err := m.reg.Submit(raw, jobID); err != nil {
		m.prompt.Err = err.Error()
		return m, nil
	}

	m.overlay = OverlayNone
	m.notice = "fetch started: " + shortID(jobID)
	m.refresh()
	m.selected = len(m.jobs) - 1
	m.list.Selected = m.selected
	return m, nil
}

// refresh re-reads the registry and connection manager. All view state
// derives from those two; the model itself holds only navigation.
func (m *Model) refresh() {
	m.jobs = m.reg.List()
	if m.selected >= len(m.jobs) {
		m.selected = len(m.jobs) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}

	m.statusBar.State = m.mgr.State().String()
	if id, ok := m.mgr.SessionID(); ok {
		m.statusBar.SessionID = id
	} else {
		m.statusBar.SessionID = ""
	}

	active, done, failed := 0, 0, 0
	for i := range m.jobs {
		switch m.jobs[i].Status {
		case fetch.StatusCompleted:
			done++
		case fetch.StatusError:
			failed++
		default:
			active++
		}
	}
	m.statusBar.SetCounts(active, done, failed)

	m.list.Jobs = m.jobs
	m.list.Selected = m.selected

	if m.overlay == OverlayDetail && m.detailJob() == nil {
		m.overlay = OverlayNone
	}
}

// currentJob resolves the job an action applies to: the detail job when
// the overlay is open, the list selection otherwise.
func (m *Model) currentJob() *fetch.Job {
	if m.overlay == OverlayDetail {
		return m.detailJob()
	}
	if m.selected < len(m.jobs) {
		return &m.jobs[m.selected]
	}
	return nil
}

func (m *Model) detailJob() *fetch.Job {
	for i := range m.jobs {
		if m.jobs[i].JobID == m.detailID {
			return &m.jobs[i]
		}
	}
	return nil
}

func (m *Model) stopCurrent() {
	j := m.currentJob()
	if j == nil {
		return
	}
	if m.reg.Remove(j.JobID) {
		m.notice = "stopped " + shortID(j.JobID)
	}
	m.refresh()
}

func (m *Model) exportCurrent() {
	j := m.currentJob()
	if j == nil {
		return
	}
	if len(j.Papers) == 0 {
		m.notice = "nothing to export for " + shortID(j.JobID)
		return
	}

	name := fmt.Sprintf("publications_%s_%s.yaml", shortID(j.JobID), time.Now().Format("20060102_150405"))
	path := filepath.Join(m.exportDir, name)
	f, err := os.Create(path)
	if err != nil {
		m.notice = "export failed: " + err.Error()
		return
	}
	if err := fetch.ExportYAML(f, j.Papers); err != nil {
		f.Close()
		m.notice = "export failed: " + err.Error()
		return
	}
	if err := f.Close(); err != nil {
		m.notice = "export failed: " + err.Error()
		return
	}
	m.notice = "exported " + name
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	sections := []string{m.statusBar.View()}

	switch m.overlay {
	case OverlayDetail:
		sections = append(sections, detail.New(m.detailJob()).View())
	case OverlayNewFetch:
		sections = append(sections, m.prompt.View())
	default:
		sections = append(sections, m.list.View())
	}

	if m.notice != "" {
		sections = append(sections, theme.StyleDimmed.Render("  "+m.notice))
	}
	sections = append(sections,
		theme.StyleDimmed.Render("  j/k:navigate  enter:detail  n:new  s:stop  e:export  c:connect  d:disconnect  q:quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func validateSourceURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("source url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host")
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
