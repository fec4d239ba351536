// Package storage
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/papercomputeco/reel/pkg/stream"
)

// Driver defines the interface for persisting and retrieving agent runs and
// the full events they produced.
type Driver interface {
	// CreateRun records the start of a run. The run ID must be unique.
	CreateRun(ctx context.Context, run *Run) error

	// FinishRun marks a run as finished with the stream's finish reason.
	FinishRun(ctx context.Context, runID, finishReason string) error

	// Put appends an entry to a run's event log. The run must exist and the
	// entry's sequence number must not have been used for that run.
	Put(ctx context.Context, entry *Entry) error

	// List returns a run's entries ordered by sequence number.
	List(ctx context.Context, runID string) ([]*Entry, error)

	// GetRun retrieves a run by its ID.
	GetRun(ctx context.Context, runID string) (*Run, error)

	// Runs returns all runs, most recently started first.
	Runs(ctx context.Context) ([]*Run, error)

	// Close closes the store and releases any resources.
	Close() error
}

// Run is one agent invocation: a prompt and the events it produced.
type Run struct {
	ID       string `json:"id"`
	Prompt   string `json:"prompt"`
	Model    string `json:"model"`
	Provider string `json:"provider"`

	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`

	// Events is the number of entries stored for the run. It is filled in
	// by GetRun and Runs and ignored by CreateRun.
	Events int `json:"events"`
}

// Entry is a single persisted event of a run.
type Entry struct {
	RunID     string          `json:"run_id"`
	Seq       int             `json:"seq"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewEntry builds the entry for ev at position seq of a run.
func NewEntry(runID string, seq int, ev stream.Event) (*Entry, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return &Entry{
		RunID:     runID,
		Seq:       seq,
		Kind:      ev.Kind().String(),
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Event decodes the entry back into its stream event.
func (e *Entry) Event() (stream.Event, error) {
	kind, ok := stream.ParseKind(e.Kind)
	if !ok {
		return nil, &UnknownKindError{Kind: e.Kind}
	}
	return stream.DecodeKind(kind, e.Payload)
}
