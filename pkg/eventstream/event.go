package eventstream

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/reel/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the envelope schema.
	SchemaVersionV1 = 1

	// EventTypeEventRecorded is emitted after a full stream event is persisted.
	EventTypeEventRecorded = "reel.event.recorded"
)

// Envelope is a transport-neutral wrapper around one recorded stream event.
type Envelope struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	Source        EventSource     `json:"source"`
	Run           RunMeta         `json:"run"`
	Kind          string          `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
}

// EventSource identifies the model that produced the event.
type EventSource struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// RunMeta locates the event within its run.
type RunMeta struct {
	ID  string `json:"id"`
	Seq int    `json:"seq"`
}

// NewEnvelope wraps a persisted entry.
func NewEnvelope(source EventSource, entry *storage.Entry) *Envelope {
	return &Envelope{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeEventRecorded,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Run:           RunMeta{ID: entry.RunID, Seq: entry.Seq},
		Kind:          entry.Kind,
		Payload:       entry.Payload,
	}
}

// Encode returns the JSON wire form of an envelope.
func Encode(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, ErrNilEnvelope
	}
	return json.Marshal(env)
}
