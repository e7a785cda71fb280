package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Event names the kind of payload an envelope carries.
type Event string

const (
	// EventConnected is the handshake confirmation pushed by the worker.
	// It is consumed by the connection layer and never reaches subscribers.
	EventConnected Event = "connected"

	EventProgress  Event = "progress"
	EventCompleted Event = "completed"
	EventFailed    Event = "failed"

	EventStartFetch Event = "start_fetch"
	EventStopFetch  Event = "stop_fetch"
)

// ErrMissingEvent marks a frame that parsed as JSON but names no event.
var ErrMissingEvent = errors.New("envelope missing event")

// Envelope is the single wire unit exchanged with the worker. Data holds the
// event-specific payload and stays opaque until the receiving side decodes
// it. ID is a correlation id for log forensics only; nothing acknowledges it.
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data"`
	ID    string          `json:"id,omitempty"`
}

// NewEnvelope wraps payload for sending under the given event name and
// stamps a fresh correlation id.
func NewEnvelope(event Event, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data, ID: uuid.NewString()}, nil
}

// ParseEnvelope decodes one raw frame. Frames that are not JSON objects or
// that name no event are rejected; callers log and drop them.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, ErrMissingEvent
	}
	return env, nil
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Event, err)
	}
	return nil
}

// ConnectedPayload carries the session identity assigned by the worker.
type ConnectedPayload struct {
	ID string `json:"id"`
}

// StartFetchPayload asks the worker to begin a fetch run for jobId.
type StartFetchPayload struct {
	SourceURL string `json:"sourceUrl"`
	JobID     string `json:"jobId"`
	SessionID string `json:"sessionId"`
}

// StopFetchPayload tells the worker the job is no longer wanted. Best
// effort; the worker may already be done with it.
type StopFetchPayload struct {
	JobID     string `json:"jobId"`
	SessionID string `json:"sessionId"`
}
