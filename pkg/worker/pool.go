// Package worker provides an asynchronous worker pool for persisting the full
// events of agent runs to a storage.Driver and publishing them to an
// eventstream.Publisher.
//
// The pool decouples storage and publishing from the event stream so a slow
// database or broker never stalls the model's output.
package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/reel/pkg/eventstream"
	"github.com/papercomputeco/reel/pkg/eventstream/nop"
	"github.com/papercomputeco/reel/pkg/storage"
	"github.com/papercomputeco/reel/pkg/stream"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against. A Job either
// records Event at Seq or, when Finish is set, marks the run finished.
type Job struct {
	Run   *storage.Run
	Seq   int
	Event stream.Event

	Finish       bool
	FinishReason string
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting runs and events.
	Driver storage.Driver

	// Publisher receives an envelope for every persisted event. Defaults to
	// a no-op publisher.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of each worker's buffered job channel
	// (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Pool processes recording jobs asynchronously. Jobs of one run always land
// on the same worker, so a run's events are stored and published in the
// order they were enqueued.
type Pool struct {
	config *Config
	queues []chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu guards closed against concurrent Enqueue and Close
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, errors.New("worker pool requires a storage driver")
	}

	if c.Publisher == nil {
		c.Publisher = nop.NewPublisher()
	}

	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queues: make([]chan Job, c.NumWorkers),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		wp.queues[i] = make(chan Job, c.QueueSize)
		go wp.worker(i, wp.queues[i])
	}

	return wp, nil
}

// StartRun stores the run synchronously so that later event jobs have
// something to attach to.
func (p *Pool) StartRun(ctx context.Context, run *storage.Run) error {
	return p.config.Driver.CreateRun(ctx, run)
}

// RecordEvent enqueues ev as the seq-th event of run.
func (p *Pool) RecordEvent(run *storage.Run, seq int, ev stream.Event) {
	p.Enqueue(Job{Run: run, Seq: seq, Event: ev})
}

// FinishRun enqueues the end of run behind its pending events.
func (p *Pool) FinishRun(run *storage.Run, finishReason string) {
	p.Enqueue(Job{Run: run, Finish: true, FinishReason: finishReason})
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is
// closed, resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	if job.Run == nil || (!job.Finish && job.Event == nil) {
		p.logger.Error("job not queued, missing run or event")
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Error("job not queued, pool closed, job dropped",
			"run_id", job.Run.ID,
			"seq", job.Seq,
		)
		return false
	}

	select {
	case p.queueFor(job.Run.ID) <- job:
		p.logger.Debug("job queued",
			"run_id", job.Run.ID,
			"seq", job.Seq,
			"finish", job.Finish,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"run_id", job.Run.ID,
			"seq", job.Seq,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Calling Close more than once is safe.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for _, q := range p.queues {
			close(q)
		}
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) queueFor(runID string) chan Job {
	h := fnv.New32a()
	_, _ = h.Write([]byte(runID))
	return p.queues[h.Sum32()%uint32(len(p.queues))]
}

// worker is the inner worker thread that continuously pulls jobs off its queue
func (p *Pool) worker(id uint, queue <-chan Job) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

// processJob persists a job and publishes what was persisted. Failures are
// logged and the job is dropped.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	if job.Finish {
		if err := p.config.Driver.FinishRun(ctx, job.Run.ID, job.FinishReason); err != nil {
			p.logger.Error("finishing run failed",
				"run_id", job.Run.ID,
				"error", err,
			)
			return
		}
		p.logger.Info("run finished",
			"run_id", job.Run.ID,
			"finish_reason", job.FinishReason,
		)
		return
	}

	entry, err := storage.NewEntry(job.Run.ID, job.Seq, job.Event)
	if err != nil {
		p.logger.Error("encoding event failed",
			"run_id", job.Run.ID,
			"seq", job.Seq,
			"error", err,
		)
		return
	}

	if err := p.config.Driver.Put(ctx, entry); err != nil {
		p.logger.Error("storing event failed",
			"run_id", job.Run.ID,
			"seq", job.Seq,
			"kind", entry.Kind,
			"error", err,
		)
		return
	}

	p.logger.Debug("stored event",
		"run_id", entry.RunID,
		"seq", entry.Seq,
		"kind", entry.Kind,
	)

	source := eventstream.EventSource{Provider: job.Run.Provider, Model: job.Run.Model}
	if err := p.config.Publisher.Publish(ctx, eventstream.NewEnvelope(source, entry)); err != nil {
		p.logger.Warn("publishing event failed",
			"run_id", entry.RunID,
			"seq", entry.Seq,
			"error", err,
		)
	}
}
