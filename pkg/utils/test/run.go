package testutils

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/reel/pkg/storage"
	"github.com/papercomputeco/reel/pkg/stream"
)

// NewTestRun creates a run with a unique ID for testing
func NewTestRun(prompt string) *storage.Run {
	return &storage.Run{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Model:     "test-model",
		Provider:  "test-provider",
		StartedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// NewTestEntry creates the entry for ev at seq, panicking on encode errors
func NewTestEntry(runID string, seq int, ev stream.Event) *storage.Entry {
	e, err := storage.NewEntry(runID, seq, ev)
	if err != nil {
		panic(err)
	}
	return e
}
