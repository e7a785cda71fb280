package fetch

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle phase of a fetch job. The zero value marks a
// patch that did not carry a status; tracked jobs always hold one of the
// named phases.
type Status int

const (
	StatusUnknown Status = iota
	StatusCollectingInfo
	StatusCollectedInfo
	StatusSearchingPapers
	StatusCompleted
	StatusError
)

var statusNames = map[Status]string{
	StatusCollectingInfo:  "CollectingInfo",
	StatusCollectedInfo:   "CollectedInfo",
	StatusSearchingPapers: "SearchingPapers",
	StatusCompleted:       "Completed",
	StatusError:           "Error",
}

var statusFromName = map[string]Status{
	"CollectingInfo":  StatusCollectingInfo,
	"CollectedInfo":   StatusCollectedInfo,
	"SearchingPapers": StatusSearchingPapers,
	"Completed":       StatusCompleted,
	"Error":           StatusError,
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "Unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := statusFromName[name]; ok {
		*s = v
	}
	return nil
}

// IsTerminal reports whether the job will receive no further updates.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Paper is one publication record produced by a fetch run. Immutable once
// delivered.
type Paper struct {
	Title       string   `json:"title" yaml:"title"`
	Authors     []string `json:"authors" yaml:"authors"`
	Year        int      `json:"year" yaml:"year"`
	Date        string   `json:"date" yaml:"date"`
	URL         string   `json:"url" yaml:"url"`
	PDFURL      string   `json:"pdfUrl,omitempty" yaml:"pdfUrl,omitempty"`
	Citations   int      `json:"citations,omitempty" yaml:"citations,omitempty"`
	Publisher   string   `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

func (p Paper) clone() Paper {
	if len(p.Authors) > 0 {
		p.Authors = append([]string(nil), p.Authors...)
	}
	return p
}

// Job tracks one fetch task from submission to its terminal state. JobID is
// chosen by the submitter and is the sole correlation key for worker events;
// everything below SourceURL is mutated only by applied patches.
type Job struct {
	JobID        string    `json:"jobId"`
	SourceURL    string    `json:"sourceUrl"`
	Status       Status    `json:"status"`
	Progress     int       `json:"progress"`
	FetchedCount int       `json:"fetchedCount,omitempty"`
	TotalCount   int       `json:"totalCount,omitempty"`
	Papers       []Paper   `json:"resultItems,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
}

// Clone returns a deep copy, duplicating slice fields so the copy can be
// held across later registry mutations.
func (j *Job) Clone() Job {
	c := *j
	if len(j.Papers) > 0 {
		c.Papers = make([]Paper, len(j.Papers))
		for i, p := range j.Papers {
			c.Papers[i] = p.clone()
		}
	}
	return c
}

func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// Update is the partial patch carried by a progress event. Nil fields and a
// zero Status mean "not reported"; the registry leaves those fields alone.
type Update struct {
	JobID        string  `json:"jobId"`
	Status       Status  `json:"status,omitempty"`
	Progress     *int    `json:"progress,omitempty"`
	FetchedCount *int    `json:"fetchedCount,omitempty"`
	TotalCount   *int    `json:"totalCount,omitempty"`
	Papers       []Paper `json:"resultItems,omitempty"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
}

// Completion is the terminal success payload. Papers is the authoritative
// final list and replaces whatever the job held.
type Completion struct {
	JobID  string  `json:"jobId"`
	Papers []Paper `json:"resultItems"`
}

// Failure is the terminal failure payload reported by the worker.
type Failure struct {
	JobID        string `json:"jobId"`
	ErrorMessage string `json:"errorMessage"`
}
