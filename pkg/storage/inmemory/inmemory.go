// Package inmemory provides a map-backed storage driver for tests and
// ephemeral runs.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/reel/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu guards runs and entries
	mu sync.RWMutex

	runs map[string]*storage.Run

	// entries maps a run ID to its event log, ordered by sequence number
	entries map[string][]*storage.Entry
}

// NewDriver creates a new in-memory storer.
func NewDriver() *Driver {
	return &Driver{
		runs:    make(map[string]*storage.Run),
		entries: make(map[string][]*storage.Entry),
	}
}

// CreateRun records the start of a run.
func (d *Driver) CreateRun(_ context.Context, run *storage.Run) error {
	if run == nil {
		return errors.New("cannot store nil run")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.runs[run.ID]; ok {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateRun, run.ID)
	}

	stored := *run
	stored.Events = 0
	stored.FinishedAt = nil
	if stored.StartedAt.IsZero() {
		stored.StartedAt = time.Now().UTC()
	}
	d.runs[run.ID] = &stored
	return nil
}

// FinishRun marks a run finished.
func (d *Driver) FinishRun(_ context.Context, runID, finishReason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	run, ok := d.runs[runID]
	if !ok {
		return storage.NotFoundError{RunID: runID}
	}

	now := time.Now().UTC()
	run.FinishedAt = &now
	run.FinishReason = finishReason
	return nil
}

// Put appends an entry to its run's log.
func (d *Driver) Put(_ context.Context, entry *storage.Entry) error {
	if entry == nil {
		return errors.New("cannot store nil entry")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.runs[entry.RunID]; !ok {
		return storage.NotFoundError{RunID: entry.RunID}
	}

	log := d.entries[entry.RunID]
	i, found := slices.BinarySearchFunc(log, entry.Seq, func(e *storage.Entry, seq int) int {
		return e.Seq - seq
	})
	if found {
		return fmt.Errorf("%w: %s/%d", storage.ErrDuplicateEntry, entry.RunID, entry.Seq)
	}

	stored := *entry
	d.entries[entry.RunID] = slices.Insert(log, i, &stored)
	return nil
}

// List returns a run's entries ordered by sequence number.
func (d *Driver) List(_ context.Context, runID string) ([]*storage.Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.runs[runID]; !ok {
		return nil, storage.NotFoundError{RunID: runID}
	}

	result := make([]*storage.Entry, 0, len(d.entries[runID]))
	for _, e := range d.entries[runID] {
		cp := *e
		result = append(result, &cp)
	}
	return result, nil
}

// GetRun retrieves a run by its ID.
func (d *Driver) GetRun(_ context.Context, runID string) (*storage.Run, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	run, ok := d.runs[runID]
	if !ok {
		return nil, storage.NotFoundError{RunID: runID}
	}
	return d.snapshot(run), nil
}

// Runs returns all runs, most recently started first.
func (d *Driver) Runs(_ context.Context) ([]*storage.Run, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]*storage.Run, 0, len(d.runs))
	for _, run := range d.runs {
		result = append(result, d.snapshot(run))
	}

	slices.SortFunc(result, func(a, b *storage.Run) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

func (d *Driver) snapshot(run *storage.Run) *storage.Run {
	cp := *run
	cp.Events = len(d.entries[run.ID])
	return &cp
}
