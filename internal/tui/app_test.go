package tui

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zz9tf/publications-view/internal/bus"
	"github.com/zz9tf/publications-view/internal/conn"
	"github.com/zz9tf/publications-view/internal/fetch"
	"github.com/zz9tf/publications-view/internal/wire"
)

// stubSender lets a registry accept submissions without a live
// connection.
type stubSender struct{}

func (stubSender) Send(wire.Event, any) error { return nil }

func (stubSender) SessionID() (string, bool) { return "11111111-2222-3333-4444-555555555555", true }

func newTestModel(t *testing.T) Model {
	t.Helper()
	b := bus.New()
	mgr := conn.NewManager(conn.Options{URL: "ws://127.0.0.1:9/ws", Bus: b})
	reg := fetch.NewRegistry(stubSender{})
	reg.Bind(b)
	m := New(mgr, reg, b)
	m.width = 100
	m.height = 30
	return m
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestViewBeforeFirstWindowSize(t *testing.T) {
	m := New(nil, nil, nil)
	if v := m.View(); v != "Initializing..." {
		t.Errorf("View() = %q, want placeholder", v)
	}
}

func TestViewListsJobs(t *testing.T) {
	m := New(nil, nil, nil)
	m.width = 100
	m.height = 30
	m.jobs = []fetch.Job{
		{JobID: "aaaa1111-0000-0000-0000-000000000000", SourceURL: "https://scholar.google.com/citations?user=abc", Status: fetch.StatusSearchingPapers, Progress: 40},
		{JobID: "bbbb2222-0000-0000-0000-000000000000", SourceURL: "https://scholar.google.com/citations?user=def", Status: fetch.StatusCompleted, Progress: 100},
	}
	m.list.Jobs = m.jobs

	v := m.View()
	for _, want := range []string{"PUBLICATION FETCH JOBS", "aaaa1111", "bbbb2222", "SearchingPapers", "Completed"} {
		if !strings.Contains(v, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestViewShowsEmptyHint(t *testing.T) {
	m := New(nil, nil, nil)
	m.width = 100
	m.height = 30

	if v := m.View(); !strings.Contains(v, "No fetch jobs") {
		t.Error("empty list should hint at starting a fetch")
	}
}

func TestNavigationWraps(t *testing.T) {
	m := New(nil, nil, nil)
	m.width = 100
	m.height = 30
	m.jobs = []fetch.Job{{JobID: "a"}, {JobID: "b"}, {JobID: "c"}}

	step := func(msg tea.KeyMsg) {
		t.Helper()
		updated, _ := m.Update(msg)
		m = updated.(Model)
	}

	step(keyRune('j'))
	step(keyRune('j'))
	if m.selected != 2 {
		t.Fatalf("selected = %d after two downs, want 2", m.selected)
	}
	step(keyRune('j'))
	if m.selected != 0 {
		t.Errorf("selected = %d, want wrap to 0", m.selected)
	}
	step(keyRune('k'))
	if m.selected != 2 {
		t.Errorf("selected = %d, want wrap back to 2", m.selected)
	}
}

func TestEnterOpensDetailOverlay(t *testing.T) {
	m := New(nil, nil, nil)
	m.width = 100
	m.height = 30
	m.jobs = []fetch.Job{{
		JobID:     "cccc3333-0000-0000-0000-000000000000",
		SourceURL: "https://scholar.google.com/citations?user=xyz",
		Status:    fetch.StatusCompleted,
		Progress:  100,
		Papers:    []fetch.Paper{{Title: "Attention Is All You Need", Year: 2017, Citations: 100000}},
	}}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if m.overlay != OverlayDetail {
		t.Fatalf("overlay = %d, want OverlayDetail", m.overlay)
	}

	v := m.View()
	if !strings.Contains(v, "Fetch job: cccc3333") {
		t.Error("detail overlay should show the job id")
	}
	if !strings.Contains(v, "Attention Is All You Need") {
		t.Error("detail overlay should list papers")
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = updated.(Model)
	if m.overlay != OverlayNone {
		t.Errorf("overlay = %d after esc, want OverlayNone", m.overlay)
	}
}

func TestEnterOnEmptyListKeepsBaseView(t *testing.T) {
	m := New(nil, nil, nil)
	m.width = 100
	m.height = 30

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if m.overlay != OverlayNone {
		t.Errorf("overlay = %d, want OverlayNone", m.overlay)
	}
}

func TestNewFetchRejectsBadURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no scheme", "scholar.google.com/citations"},
		{"bad scheme", "ftp://scholar.google.com/citations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t)

			updated, _ := m.Update(keyRune('n'))
			m = updated.(Model)
			if m.overlay != OverlayNewFetch {
				t.Fatalf("overlay = %d, want OverlayNewFetch", m.overlay)
			}

			m.prompt.Input.SetValue(tt.input)
			updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
			m = updated.(Model)

			if m.overlay != OverlayNewFetch {
				t.Error("overlay should stay open on a rejected url")
			}
			if m.prompt.Err == "" {
				t.Error("prompt should carry a validation error")
			}
			if m.reg.Len() != 0 {
				t.Errorf("registry tracks %d jobs, want 0", m.reg.Len())
			}
		})
	}
}

func TestNewFetchSubmitsJob(t *testing.T) {
	m := newTestModel(t)

	updated, _ := m.Update(keyRune('n'))
	m = updated.(Model)
	m.prompt.Input.SetValue("https://scholar.google.com/citations?user=abc123")
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)

	if m.overlay != OverlayNone {
		t.Error("overlay should close on a successful submit")
	}
	if m.reg.Len() != 1 {
		t.Fatalf("registry tracks %d jobs, want 1", m.reg.Len())
	}
	if len(m.jobs) != 1 {
		t.Fatalf("model sees %d jobs after refresh, want 1", len(m.jobs))
	}
	if !strings.Contains(m.notice, "fetch started") {
		t.Errorf("notice = %q, want fetch confirmation", m.notice)
	}
}

func TestStopRemovesSelectedJob(t *testing.T) {
	m := newTestModel(t)
	if err := m.reg.Submit("https://scholar.google.com/citations?user=abc", "dddd4444-0000-0000-0000-000000000000"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	m.refresh()
	if len(m.jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(m.jobs))
	}

	updated, _ := m.Update(keyRune('s'))
	m = updated.(Model)

	if m.reg.Len() != 0 {
		t.Errorf("registry tracks %d jobs after stop, want 0", m.reg.Len())
	}
	if len(m.jobs) != 0 {
		t.Errorf("model sees %d jobs after stop, want 0", len(m.jobs))
	}
	if !strings.Contains(m.notice, "stopped") {
		t.Errorf("notice = %q, want stop confirmation", m.notice)
	}
}

func TestDetailClosesWhenJobDisappears(t *testing.T) {
	m := newTestModel(t)
	if err := m.reg.Submit("https://scholar.google.com/citations?user=abc", "eeee5555-0000-0000-0000-000000000000"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	m.refresh()
	m.detailID = "eeee5555-0000-0000-0000-000000000000"
	m.overlay = OverlayDetail

	m.reg.Remove("eeee5555-0000-0000-0000-000000000000")
	m.refresh()

	if m.overlay != OverlayNone {
		t.Errorf("overlay = %d after the job vanished, want OverlayNone", m.overlay)
	}
}

func TestExportWritesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	m := New(nil, nil, nil)
	m.width = 100
	m.height = 30
	m.exportDir = dir
	m.jobs = []fetch.Job{{
		JobID:  "ffff6666-0000-0000-0000-000000000000",
		Status: fetch.StatusCompleted,
		Papers: []fetch.Paper{
			{Title: "Deep Residual Learning", Year: 2016, Citations: 180000},
			{Title: "Adam: A Method for Stochastic Optimization", Year: 2015},
		},
	}}

	m.exportCurrent()

	if !strings.Contains(m.notice, "exported") {
		t.Fatalf("notice = %q, want export confirmation", m.notice)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("export dir holds %d files, want 1", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "publications_ffff6666_") || !strings.HasSuffix(name, ".yaml") {
		t.Errorf("export file name = %q", name)
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "Deep Residual Learning") {
		t.Error("export file should contain the paper titles")
	}
}

func TestExportWithoutPapersLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	m := New(nil, nil, nil)
	m.exportDir = dir
	m.jobs = []fetch.Job{{JobID: "gggg7777", Status: fetch.StatusCollectingInfo}}

	m.exportCurrent()

	if !strings.Contains(m.notice, "nothing to export") {
		t.Errorf("notice = %q", m.notice)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("export dir holds %d files, want 0", len(entries))
	}
}

func TestBusEventQueuesRefresh(t *testing.T) {
	b := bus.New()
	mgr := conn.NewManager(conn.Options{URL: "ws://127.0.0.1:9/ws", Bus: b})
	m := New(mgr, fetch.NewRegistry(stubSender{}), b)

	b.Publish(wire.EventProgress, json.RawMessage(`{"job_id":"x"}`))

	select {
	case msg := <-m.events:
		if _, ok := msg.(refreshMsg); !ok {
			t.Errorf("queued %T, want refreshMsg", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no refresh queued for a bus event")
	}
}

func TestRefreshTracksConnectionState(t *testing.T) {
	m := newTestModel(t)
	m.refresh()

	if m.statusBar.State != "disconnected" {
		t.Errorf("statusBar.State = %q, want disconnected", m.statusBar.State)
	}
	if m.statusBar.SessionID != "" {
		t.Errorf("statusBar.SessionID = %q, want empty", m.statusBar.SessionID)
	}
}
