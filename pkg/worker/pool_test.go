package worker

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reel/pkg/logger"
	"github.com/papercomputeco/reel/pkg/storage"
	"github.com/papercomputeco/reel/pkg/storage/inmemory"
	"github.com/papercomputeco/reel/pkg/stream"
	testutils "github.com/papercomputeco/reel/pkg/utils/test"
)

// newTestPool creates a worker pool backed by an in-memory driver.
// Callers should "wp.Close()" to drain enqueued jobs before asserting storage state.
func newTestPool(pub *testutils.MockPublisher) (*Pool, *inmemory.Driver) {
	driver := inmemory.NewDriver()

	wp, err := NewPool(&Config{
		Driver:    driver,
		Publisher: pub,
		Logger:    logger.Nop(),
	})
	Expect(err).NotTo(HaveOccurred())

	return wp, driver
}

var _ = Describe("Worker Pool", func() {
	var (
		wp     *Pool
		driver *inmemory.Driver
		pub    *testutils.MockPublisher
		run    *storage.Run
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		pub = testutils.NewMockPublisher()
		wp, driver = newTestPool(pub)
		run = testutils.NewTestRun("What is the temperature in Paris?")
		Expect(wp.StartRun(ctx, run)).To(Succeed())
	})

	Describe("NewPool", func() {
		It("requires a driver", func() {
			_, err := NewPool(&Config{})
			Expect(err).To(HaveOccurred())
		})

		It("applies defaults", func() {
			Expect(wp.queues).To(HaveLen(int(defaultNumWorkers)))
			Expect(cap(wp.queues[0])).To(Equal(int(defaultJobQueueSize)))
			wp.Close()
		})
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			Expect(wp.Enqueue(Job{Run: run, Seq: 0, Event: stream.TextResponse{Content: "hi"}})).To(BeTrue())
			wp.Close()
		})

		It("rejects jobs without an event", func() {
			Expect(wp.Enqueue(Job{Run: run, Seq: 0})).To(BeFalse())
			wp.Close()
		})

		It("drops jobs after Close", func() {
			wp.Close()
			Expect(wp.Enqueue(Job{Run: run, Seq: 0, Event: stream.TextResponse{Content: "late"}})).To(BeFalse())
			wp.Close()
		})

		It("drops jobs when the queue is full", func() {
			// Nothing drains the queues, so the second job for this run is
			// refused.
			full := &Pool{
				config: &Config{Driver: driver},
				queues: []chan Job{make(chan Job, 1)},
				logger: logger.Nop(),
			}
			Expect(full.Enqueue(Job{Run: run, Seq: 0, Event: stream.TextResponse{Content: "a"}})).To(BeTrue())
			Expect(full.Enqueue(Job{Run: run, Seq: 1, Event: stream.TextResponse{Content: "b"}})).To(BeFalse())
		})
	})

	Describe("recording a run", func() {
		BeforeEach(func() {
			wp.RecordEvent(run, 0, stream.ReasoningResponse{Content: "I should call a tool"})
			wp.RecordEvent(run, 1, stream.ToolCallRequest{FunctionName: "get_city_temperature", Arguments: `{"city_name":"Paris"}`})
			wp.RecordEvent(run, 2, stream.TextResponse{Content: "It is 25 degrees."})
			wp.FinishRun(run, "stop")

			// Drain the worker pool to ensure storage completes before assertions
			wp.Close()
		})

		It("stores every event in order", func() {
			entries, err := driver.List(ctx, run.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(3))
			Expect(entries[0].Kind).To(Equal("reasoning_response"))
			Expect(entries[1].Kind).To(Equal("tool_call_request"))
			Expect(entries[2].Kind).To(Equal("text_response"))
		})

		It("marks the run finished after its events", func() {
			got, err := driver.GetRun(ctx, run.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.FinishReason).To(Equal("stop"))
			Expect(got.Events).To(Equal(3))
		})

		It("publishes one envelope per stored event in order", func() {
			envs := pub.Envelopes()
			Expect(envs).To(HaveLen(3))
			for i, env := range envs {
				Expect(env.Run.ID).To(Equal(run.ID))
				Expect(env.Run.Seq).To(Equal(i))
				Expect(env.Source.Provider).To(Equal("test-provider"))
				Expect(env.Source.Model).To(Equal("test-model"))
			}
		})
	})

	Describe("failures", func() {
		It("does not publish events that failed to store", func() {
			orphan := testutils.NewTestRun("never started")
			wp.RecordEvent(orphan, 0, stream.TextResponse{Content: "lost"})
			wp.Close()

			Expect(pub.Envelopes()).To(BeEmpty())
		})

		It("keeps storing when publishing fails", func() {
			pub.FailPublish = true
			wp.RecordEvent(run, 0, stream.TextResponse{Content: "kept"})
			wp.Close()

			entries, err := driver.List(ctx, run.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
		})
	})
})
