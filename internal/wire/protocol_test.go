package wire

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Event
		wantErr bool
	}{
		{"progress frame", `{"event":"progress","data":{"jobId":"j1"}}`, EventProgress, false},
		{"with correlation id", `{"event":"completed","data":{},"id":"abc-123"}`, EventCompleted, false},
		{"no data field", `{"event":"connected"}`, EventConnected, false},
		{"missing event", `{"data":{"jobId":"j1"}}`, "", true},
		{"not json", `]]garbage[[`, "", true},
		{"json scalar", `42`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseEnvelope(%q) = %+v, want error", tt.raw, env)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEnvelope(%q) error: %v", tt.raw, err)
			}
			if env.Event != tt.want {
				t.Errorf("event = %q, want %q", env.Event, tt.want)
			}
		})
	}
}

func TestParseEnvelopeMissingEventSentinel(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"data":{}}`))
	if !errors.Is(err, ErrMissingEvent) {
		t.Errorf("err = %v, want ErrMissingEvent", err)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(EventStartFetch, StartFetchPayload{
		SourceURL: "https://scholar.google.com/citations?user=x",
		JobID:     "j1",
		SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if env.ID == "" {
		t.Error("NewEnvelope left correlation id empty")
	}

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	var p StartFetchPayload
	if err := parsed.Decode(&p); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.JobID != "j1" || p.SessionID != "s1" {
		t.Errorf("payload = %+v", p)
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	env := Envelope{Event: EventProgress}
	var v map[string]any
	if err := env.Decode(&v); err == nil {
		t.Error("Decode of empty payload succeeded, want error")
	}
}
