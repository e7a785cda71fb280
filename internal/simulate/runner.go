package simulate

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/zz9tf/publications-view/internal/fetch"
	"github.com/zz9tf/publications-view/internal/wire"
)

// EmitFunc delivers one outbound job event; the server wires this to its
// broadcast hub.
type EmitFunc func(event wire.Event, payload any)

// Options shape the fabricated runs. Zero values take the defaults below;
// Seed 0 means time-based.
type Options struct {
	Tick        time.Duration
	MinPapers   int
	MaxPapers   int
	FailureRate float64
	Seed        int64
}

func (o *Options) fillDefaults() {
	if o.Tick <= 0 {
		o.Tick = 250 * time.Millisecond
	}
	if o.MinPapers < 1 {
		o.MinPapers = 8
	}
	if o.MaxPapers < o.MinPapers {
		o.MaxPapers = o.MinPapers
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
}

type run struct {
	jobID     string
	sourceURL string
	cancel    context.CancelFunc
	total     int
	fetched   int
	failAt    int // paper index where the run dies, 0 = runs to completion
	startedAt time.Time
}

// RunInfo is a snapshot of one active run for the HTTP API.
type RunInfo struct {
	JobID        string    `json:"jobId"`
	SourceURL    string    `json:"sourceUrl"`
	FetchedCount int       `json:"fetchedCount"`
	TotalCount   int       `json:"totalCount"`
	StartedAt    time.Time `json:"startedAt"`
}

// Runner fabricates fetch runs in place of the real crawler: each job
// advances through the collecting/collected/searching phases on a ticker
// and ends completed with a paper list, or failed when the dice say so.
type Runner struct {
	opts Options
	emit EmitFunc

	mu   sync.Mutex
	rng  *rand.Rand
	runs map[string]*run
}

func NewRunner(opts Options, emit EmitFunc) *Runner {
	opts.fillDefaults()
	return &Runner{
		opts: opts,
		emit: emit,
		rng:  rand.New(rand.NewSource(opts.Seed)),
		runs: make(map[string]*run),
	}
}

// Start launches a fabricated run for the job. Everything random about the
// run (size, outcome, papers) is decided here; the drive loop just plays it
// out.
func (r *Runner) Start(jobID, sourceURL string) error {
	if jobID == "" {
		return fmt.Errorf("empty job id")
	}
	r.mu.Lock()
	if _, exists := r.runs[jobID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("job %s already running", jobID)
	}
	total := r.opts.MinPapers
	if span := r.opts.MaxPapers - r.opts.MinPapers; span > 0 {
		total += r.rng.Intn(span + 1)
	}
	failAt := 0
	failMsg := ""
	if r.rng.Float64() < r.opts.FailureRate {
		failAt = 1 + r.rng.Intn(total)
		failMsg = failureMessages[r.rng.Intn(len(failureMessages))]
	}
	papers := fabricatePapers(r.rng, jobID, total)
	ctx, cancel := context.WithCancel(context.Background())
	ru := &run{
		jobID:     jobID,
		sourceURL: sourceURL,
		cancel:    cancel,
		total:     total,
		failAt:    failAt,
		startedAt: time.Now(),
	}
	r.runs[jobID] = ru
	r.mu.Unlock()

	log.Printf("simulate: job %s started (%d papers, fail at %d)", jobID, total, failAt)
	go r.drive(ctx, ru, papers, failMsg)
	return nil
}

// Stop cancels a run silently; nothing further is emitted for the job.
func (r *Runner) Stop(jobID string) {
	r.mu.Lock()
	ru, ok := r.runs[jobID]
	if ok {
		delete(r.runs, jobID)
	}
	r.mu.Unlock()
	if ok {
		ru.cancel()
		log.Printf("simulate: job %s stopped", jobID)
	}
}

// Shutdown cancels every active run.
func (r *Runner) Shutdown() {
	r.mu.Lock()
	runs := r.runs
	r.runs = make(map[string]*run)
	r.mu.Unlock()
	for _, ru := range runs {
		ru.cancel()
	}
}

// ActiveRuns returns snapshots of the in-flight runs in no particular order.
func (r *Runner) ActiveRuns() []RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunInfo, 0, len(r.runs))
	for _, ru := range r.runs {
		out = append(out, RunInfo{
			JobID:        ru.jobID,
			SourceURL:    ru.sourceURL,
			FetchedCount: ru.fetched,
			TotalCount:   ru.total,
			StartedAt:    ru.startedAt,
		})
	}
	return out
}

func (r *Runner) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

type progressPayload struct {
	JobID        string       `json:"jobId"`
	Status       fetch.Status `json:"status"`
	Progress     int          `json:"progress"`
	FetchedCount int          `json:"fetchedCount,omitempty"`
	TotalCount   int          `json:"totalCount,omitempty"`
}

type completedPayload struct {
	JobID       string        `json:"jobId"`
	Status      fetch.Status  `json:"status"`
	ResultItems []fetch.Paper `json:"resultItems"`
}

type failedPayload struct {
	JobID        string       `json:"jobId"`
	Status       fetch.Status `json:"status"`
	ErrorMessage string       `json:"errorMessage"`
}

// drive plays one run to its end: a short collecting ramp, the collected
// announcement with the total, one searching tick per paper, then the
// terminal event. Progress tops out at 99; only completion says 100.
func (r *Runner) drive(ctx context.Context, ru *run, papers []fetch.Paper, failMsg string) {
	ticker := time.NewTicker(r.opts.Tick)
	defer ticker.Stop()
	advance := func() bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			// A cancel can land on the same instant as a tick.
			select {
			case <-ctx.Done():
				return false
			default:
				return true
			}
		}
	}

	for _, p := range []int{3, 7} {
		if !advance() {
			return
		}
		r.emit(wire.EventProgress, progressPayload{
			JobID: ru.jobID, Status: fetch.StatusCollectingInfo, Progress: p,
		})
	}

	if !advance() {
		return
	}
	r.emit(wire.EventProgress, progressPayload{
		JobID: ru.jobID, Status: fetch.StatusCollectedInfo, Progress: 10, TotalCount: ru.total,
	})

	for i := 1; i <= ru.total; i++ {
		if !advance() {
			return
		}
		if ru.failAt == i {
			r.emit(wire.EventFailed, failedPayload{
				JobID: ru.jobID, Status: fetch.StatusError, ErrorMessage: failMsg,
			})
			log.Printf("simulate: job %s failed: %s", ru.jobID, failMsg)
			r.finish(ru.jobID)
			return
		}
		r.setFetched(ru.jobID, i)
		r.emit(wire.EventProgress, progressPayload{
			JobID:        ru.jobID,
			Status:       fetch.StatusSearchingPapers,
			Progress:     10 + 89*i/ru.total,
			FetchedCount: i,
			TotalCount:   ru.total,
		})
	}

	if !advance() {
		return
	}
	r.emit(wire.EventCompleted, completedPayload{
		JobID: ru.jobID, Status: fetch.StatusCompleted, ResultItems: papers,
	})
	log.Printf("simulate: job %s completed with %d papers", ru.jobID, len(papers))
	r.finish(ru.jobID)
}

func (r *Runner) setFetched(jobID string, n int) {
	r.mu.Lock()
	if ru, ok := r.runs[jobID]; ok {
		ru.fetched = n
	}
	r.mu.Unlock()
}

func (r *Runner) finish(jobID string) {
	r.mu.Lock()
	delete(r.runs, jobID)
	r.mu.Unlock()
}
