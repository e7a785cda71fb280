package fetch

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zz9tf/publications-view/internal/bus"
	"github.com/zz9tf/publications-view/internal/wire"
)

var (
	// ErrNotReady means the connection has no confirmed session yet; the
	// submission was refused rather than queued.
	ErrNotReady = errors.New("not connected to worker")

	// ErrDuplicateJob means the caller reused a job id that is still tracked.
	ErrDuplicateJob = errors.New("job id already tracked")
)

// Sender is the slice of the connection manager the registry needs. A
// present session identity doubles as the readiness signal for submissions.
type Sender interface {
	Send(event wire.Event, payload any) error
	SessionID() (string, bool)
}

// Registry owns every job the client is tracking. Mutations happen under a
// single lock and reads hand out deep copies, so callers never observe a
// half-applied patch. Jobs survive reconnects; they leave only through
// Remove, Clear, or process exit.
type Registry struct {
	sender Sender

	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string // job ids in submission order
}

func NewRegistry(sender Sender) *Registry {
	return &Registry{
		sender: sender,
		jobs:   make(map[string]*Job),
	}
}

// Submit asks the worker to start a fetch run and begins tracking it
// optimistically: the job is visible as CollectingInfo/0 as soon as the
// start frame is on the wire, before any worker response. A refused or
// failed send tracks nothing.
func (r *Registry) Submit(sourceURL, jobID string) error {
	if jobID == "" {
		return fmt.Errorf("empty job id")
	}
	sessionID, ok := r.sender.SessionID()
	if !ok {
		return ErrNotReady
	}
	r.mu.RLock()
	_, exists := r.jobs[jobID]
	r.mu.RUnlock()
	if exists {
		return ErrDuplicateJob
	}

	err := r.sender.Send(wire.EventStartFetch, wire.StartFetchPayload{
		SourceURL: sourceURL,
		JobID:     jobID,
		SessionID: sessionID,
	})
	if err != nil {
		return fmt.Errorf("start fetch: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[jobID]; exists {
		return ErrDuplicateJob
	}
	r.jobs[jobID] = &Job{
		JobID:     jobID,
		SourceURL: sourceURL,
		Status:    StatusCollectingInfo,
		StartedAt: time.Now(),
	}
	r.order = append(r.order, jobID)
	return nil
}

// ApplyUpdate patches one tracked job. Fields the patch does not carry stay
// as they are, except Status, which overwrites whenever present. Progress
// only moves forward: a stale lower value is ignored while the rest of the
// patch still applies. Carried result items replace the job's current list;
// a patch that lands the job on Error without a message gets the same
// normalisation as ApplyFailure. Updates for unknown ids are dropped with a
// warning; they are a normal race against removal, never an error.
func (r *Registry) ApplyUpdate(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[u.JobID]
	if !ok {
		log.Printf("fetch: dropping update for unknown job %q", u.JobID)
		return
	}
	if u.Status != StatusUnknown {
		j.Status = u.Status
	}
	if u.Progress != nil && *u.Progress > j.Progress {
		j.Progress = *u.Progress
	}
	if u.FetchedCount != nil {
		j.FetchedCount = *u.FetchedCount
	}
	if u.TotalCount != nil {
		j.TotalCount = *u.TotalCount
	}
	if u.Papers != nil {
		j.Papers = u.Papers
	}
	if u.ErrorMessage != nil {
		j.ErrorMessage = *u.ErrorMessage
	}
	if j.Status == StatusError && j.ErrorMessage == "" {
		j.ErrorMessage = "unknown error"
	}
}

// ApplyCompletion marks the job done and replaces its papers wholesale with
// the final list.
func (r *Registry) ApplyCompletion(c Completion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[c.JobID]
	if !ok {
		log.Printf("fetch: dropping completion for unknown job %q", c.JobID)
		return
	}
	j.Status = StatusCompleted
	j.Progress = 100
	j.Papers = c.Papers
}

// ApplyFailure marks the job failed. The worker always supplies a message;
// an empty one is normalised so an Error job never lacks an explanation.
func (r *Registry) ApplyFailure(f Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[f.JobID]
	if !ok {
		log.Printf("fetch: dropping failure for unknown job %q", f.JobID)
		return
	}
	j.Status = StatusError
	j.ErrorMessage = f.ErrorMessage
	if j.ErrorMessage == "" {
		j.ErrorMessage = "unknown error"
	}
}

// Remove drops the job locally and notifies the worker to stop the run.
// The notice is best effort: removal succeeds even when the transport is
// down, and the worker may already be done with the job.
func (r *Registry) Remove(jobID string) bool {
	r.mu.Lock()
	_, ok := r.jobs[jobID]
	if ok {
		delete(r.jobs, jobID)
		for i, id := range r.order {
			if id == jobID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	sessionID, _ := r.sender.SessionID()
	err := r.sender.Send(wire.EventStopFetch, wire.StopFetchPayload{
		JobID:     jobID,
		SessionID: sessionID,
	})
	if err != nil {
		log.Printf("fetch: stop notice for %s not delivered: %v", jobID, err)
	}
	return true
}

// Get returns a copy of one job.
func (r *Registry) Get(jobID string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return j.Clone(), true
}

// List returns snapshot copies of every job in submission order.
func (r *Registry) List() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Job, 0, len(r.order))
	for _, id := range r.order {
		if j, ok := r.jobs[id]; ok {
			out = append(out, j.Clone())
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// ActiveCount returns the number of jobs still expecting updates.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, j := range r.jobs {
		if !j.IsTerminal() {
			count++
		}
	}
	return count
}

// Clear drops every tracked job. Used when the client signs off from the
// worker entirely; bus subscriptions are unaffected.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = make(map[string]*Job)
	r.order = nil
}

// Bind subscribes the registry to the worker event stream. Payloads are
// decoded into typed patches here, at the bus boundary; a frame that does
// not decode or names no job is a protocol error, logged and dropped. The
// returned func cancels all subscriptions.
func (r *Registry) Bind(b *bus.Bus) func() {
	cancels := []func(){
		b.Subscribe(wire.EventProgress, func(data json.RawMessage) {
			var u Update
			if err := json.Unmarshal(data, &u); err != nil {
				log.Printf("fetch: bad progress payload: %v", err)
				return
			}
			if u.JobID == "" {
				log.Printf("fetch: progress payload without job id")
				return
			}
			r.ApplyUpdate(u)
		}),
		b.Subscribe(wire.EventCompleted, func(data json.RawMessage) {
			var c Completion
			if err := json.Unmarshal(data, &c); err != nil {
				log.Printf("fetch: bad completed payload: %v", err)
				return
			}
			if c.JobID == "" {
				log.Printf("fetch: completed payload without job id")
				return
			}
			r.ApplyCompletion(c)
		}),
		b.Subscribe(wire.EventFailed, func(data json.RawMessage) {
			var f Failure
			if err := json.Unmarshal(data, &f); err != nil {
				log.Printf("fetch: bad failed payload: %v", err)
				return
			}
			if f.JobID == "" {
				log.Printf("fetch: failed payload without job id")
				return
			}
			r.ApplyFailure(f)
		}),
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}
