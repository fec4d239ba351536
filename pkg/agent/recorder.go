package agent

import (
	"context"

	"github.com/papercomputeco/reel/pkg/storage"
	"github.com/papercomputeco/reel/pkg/stream"
)

// Recorder persists runs. RecordEvent and FinishRun must not block on I/O;
// worker.Pool is the production implementation.
type Recorder interface {
	StartRun(ctx context.Context, run *storage.Run) error
	RecordEvent(run *storage.Run, seq int, ev stream.Event)
	FinishRun(run *storage.Run, finishReason string)
}

type nopRecorder struct{}

func (nopRecorder) StartRun(context.Context, *storage.Run) error { return nil }
func (nopRecorder) RecordEvent(*storage.Run, int, stream.Event) {}
func (nopRecorder) FinishRun(*storage.Run, string) {}

// NopRecorder returns a Recorder that stores nothing.
func NopRecorder() Recorder { return nopRecorder{} }
