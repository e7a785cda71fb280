package simulate

import (
	"sync"
	"testing"
	"time"

	"github.com/zz9tf/publications-view/internal/fetch"
	"github.com/zz9tf/publications-view/internal/wire"
)

type emitted struct {
	event   wire.Event
	payload any
}

type collector struct {
	mu     sync.Mutex
	events []emitted
}

func (c *collector) emit(event wire.Event, payload any) {
	c.mu.Lock()
	c.events = append(c.events, emitted{event, payload})
	c.mu.Unlock()
}

func (c *collector) snapshot() []emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]emitted(nil), c.events...)
}

func (c *collector) lastEvent() (wire.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return "", false
	}
	return c.events[len(c.events)-1].event, true
}

func waitForTerminal(t *testing.T, c *collector, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ev, ok := c.lastEvent(); ok && (ev == wire.EventCompleted || ev == wire.EventFailed) {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("run never reached a terminal event")
}

func TestRunEmitsFullSequence(t *testing.T) {
	c := &collector{}
	r := NewRunner(Options{Tick: 2 * time.Millisecond, MinPapers: 3, MaxPapers: 3, Seed: 42}, c.emit)

	if err := r.Start("j1", "https://scholar.google.com/citations?user=x"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForTerminal(t, c, 2*time.Second)

	events := c.snapshot()
	first := events[0]
	fp, ok := first.payload.(progressPayload)
	if first.event != wire.EventProgress || !ok || fp.Status != fetch.StatusCollectingInfo {
		t.Fatalf("first event = %+v, want CollectingInfo progress", first)
	}

	sawCollected := false
	lastProgress := -1
	lastFetched := 0
	for _, e := range events {
		p, ok := e.payload.(progressPayload)
		if !ok {
			continue
		}
		if p.Progress < lastProgress {
			t.Errorf("progress regressed %d -> %d", lastProgress, p.Progress)
		}
		lastProgress = p.Progress
		if p.Status == fetch.StatusCollectedInfo {
			sawCollected = true
			if p.TotalCount != 3 {
				t.Errorf("collected totalCount = %d, want 3", p.TotalCount)
			}
		}
		if p.Status == fetch.StatusSearchingPapers {
			if p.FetchedCount != lastFetched+1 {
				t.Errorf("fetchedCount jumped %d -> %d", lastFetched, p.FetchedCount)
			}
			lastFetched = p.FetchedCount
		}
	}
	if !sawCollected {
		t.Error("no CollectedInfo announcement")
	}
	if lastFetched != 3 {
		t.Errorf("final fetchedCount = %d, want 3", lastFetched)
	}

	last := events[len(events)-1]
	done, ok := last.payload.(completedPayload)
	if last.event != wire.EventCompleted || !ok {
		t.Fatalf("last event = %+v, want completed", last)
	}
	if len(done.ResultItems) != 3 {
		t.Fatalf("resultItems = %d, want 3", len(done.ResultItems))
	}
	for i, p := range done.ResultItems {
		if p.Title == "" || p.URL == "" || len(p.Authors) == 0 || p.Year == 0 {
			t.Errorf("paper %d incomplete: %+v", i, p)
		}
	}
	if r.ActiveCount() != 0 {
		t.Errorf("ActiveCount after completion = %d, want 0", r.ActiveCount())
	}
}

func TestCertainFailureEndsWithFailedEvent(t *testing.T) {
	c := &collector{}
	r := NewRunner(Options{Tick: 2 * time.Millisecond, MinPapers: 4, MaxPapers: 4, FailureRate: 1, Seed: 7}, c.emit)

	if err := r.Start("j1", "https://example.org"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForTerminal(t, c, 2*time.Second)

	events := c.snapshot()
	last := events[len(events)-1]
	if last.event != wire.EventFailed {
		t.Fatalf("last event = %v, want failed", last.event)
	}
	f := last.payload.(failedPayload)
	if f.Status != fetch.StatusError || f.ErrorMessage == "" {
		t.Errorf("failed payload = %+v", f)
	}
	for _, e := range events {
		if e.event == wire.EventCompleted {
			t.Error("failed run also emitted completed")
		}
	}
	if r.ActiveCount() != 0 {
		t.Errorf("ActiveCount after failure = %d, want 0", r.ActiveCount())
	}
}

func TestStopSilencesRun(t *testing.T) {
	c := &collector{}
	r := NewRunner(Options{Tick: 30 * time.Millisecond, MinPapers: 50, MaxPapers: 50, Seed: 11}, c.emit)

	if err := r.Start("j1", "https://example.org"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := c.lastEvent(); ok {
			break
		}
		if !time.Now().Before(deadline) {
			t.Fatal("run never emitted anything")
		}
		time.Sleep(2 * time.Millisecond)
	}

	r.Stop("j1")
	time.Sleep(60 * time.Millisecond)
	before := len(c.snapshot())
	time.Sleep(120 * time.Millisecond)
	after := c.snapshot()

	if len(after) != before {
		t.Errorf("events kept flowing after Stop: %d -> %d", before, len(after))
	}
	for _, e := range after {
		if e.event == wire.EventCompleted || e.event == wire.EventFailed {
			t.Errorf("stopped run emitted terminal event %v", e.event)
		}
	}
	if r.ActiveCount() != 0 {
		t.Errorf("ActiveCount after Stop = %d, want 0", r.ActiveCount())
	}
}

func TestDuplicateStartRejected(t *testing.T) {
	c := &collector{}
	r := NewRunner(Options{Tick: time.Hour, MinPapers: 2, MaxPapers: 2, Seed: 1}, c.emit)
	defer r.Shutdown()

	if err := r.Start("j1", "https://example.org"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start("j1", "https://example.org"); err == nil {
		t.Fatal("second Start for the same job succeeded")
	}
}

func TestSameSeedSameShape(t *testing.T) {
	a := NewRunner(Options{Tick: time.Hour, MinPapers: 5, MaxPapers: 30, Seed: 99}, (&collector{}).emit)
	b := NewRunner(Options{Tick: time.Hour, MinPapers: 5, MaxPapers: 30, Seed: 99}, (&collector{}).emit)
	defer a.Shutdown()
	defer b.Shutdown()

	if err := a.Start("j1", "u"); err != nil {
		t.Fatal(err)
	}
	if err := b.Start("j1", "u"); err != nil {
		t.Fatal(err)
	}

	ra, rb := a.ActiveRuns(), b.ActiveRuns()
	if len(ra) != 1 || len(rb) != 1 || ra[0].TotalCount != rb[0].TotalCount {
		t.Errorf("seeded runs differ: %+v vs %+v", ra, rb)
	}
}
