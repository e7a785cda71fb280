package fetch

import (
	"encoding/json"
	"testing"
)

func TestStatusJSONRoundTrip(t *testing.T) {
	tests := []struct {
		status Status
		wire   string
	}{
		{StatusCollectingInfo, `"CollectingInfo"`},
		{StatusCollectedInfo, `"CollectedInfo"`},
		{StatusSearchingPapers, `"SearchingPapers"`},
		{StatusCompleted, `"Completed"`},
		{StatusError, `"Error"`},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			raw, err := json.Marshal(tt.status)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(raw) != tt.wire {
				t.Errorf("marshal = %s, want %s", raw, tt.wire)
			}
			var back Status
			if err := json.Unmarshal(raw, &back); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if back != tt.status {
				t.Errorf("round trip = %v, want %v", back, tt.status)
			}
		})
	}
}

func TestStatusUnknownNameLeavesValue(t *testing.T) {
	var s Status
	if err := json.Unmarshal([]byte(`"Sideways"`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s != StatusUnknown {
		t.Errorf("status = %v, want StatusUnknown", s)
	}
}

func TestStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusCollectingInfo, false},
		{StatusCollectedInfo, false},
		{StatusSearchingPapers, false},
		{StatusCompleted, true},
		{StatusError, true},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("%v.IsTerminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestJobCloneIsIndependent(t *testing.T) {
	j := &Job{
		JobID:  "j1",
		Status: StatusCompleted,
		Papers: []Paper{{Title: "Original", Authors: []string{"A. Author"}}},
	}
	c := j.Clone()
	c.Papers[0].Title = "Mutated"
	c.Papers[0].Authors[0] = "B. Author"

	if j.Papers[0].Title != "Original" {
		t.Errorf("clone mutation leaked into title: %q", j.Papers[0].Title)
	}
	if j.Papers[0].Authors[0] != "A. Author" {
		t.Errorf("clone mutation leaked into authors: %q", j.Papers[0].Authors[0])
	}
}

func TestUpdateDecodeAbsentFields(t *testing.T) {
	var u Update
	if err := json.Unmarshal([]byte(`{"jobId":"j1","status":"SearchingPapers"}`), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.Status != StatusSearchingPapers {
		t.Errorf("status = %v", u.Status)
	}
	if u.Progress != nil || u.FetchedCount != nil || u.TotalCount != nil {
		t.Errorf("absent fields decoded non-nil: %+v", u)
	}
}
