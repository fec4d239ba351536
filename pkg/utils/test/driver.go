package testutils

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reel/pkg/storage"
	"github.com/papercomputeco/reel/pkg/stream"
)

// DescribeDriver registers the behaviors every storage.Driver must have.
// newDriver is called before each spec; the driver is closed after it.
// Run IDs are random, so backends that persist between specs are fine.
func DescribeDriver(newDriver func(ctx context.Context) storage.Driver) {
	var (
		ctx    context.Context
		driver storage.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = nil // newDriver may Skip
		driver = newDriver(ctx)
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("CreateRun", func() {
		It("stores a run that can be fetched back", func() {
			run := NewTestRun("weather in Paris?")
			Expect(driver.CreateRun(ctx, run)).To(Succeed())

			got, err := driver.GetRun(ctx, run.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(run.ID))
			Expect(got.Prompt).To(Equal("weather in Paris?"))
			Expect(got.Model).To(Equal("test-model"))
			Expect(got.Provider).To(Equal("test-provider"))
			Expect(got.StartedAt.Equal(run.StartedAt)).To(BeTrue())
			Expect(got.FinishedAt).To(BeNil())
			Expect(got.Events).To(Equal(0))
		})

		It("rejects a duplicate ID", func() {
			run := NewTestRun("once")
			Expect(driver.CreateRun(ctx, run)).To(Succeed())
			Expect(driver.CreateRun(ctx, run)).To(MatchError(storage.ErrDuplicateRun))
		})
	})

	Describe("FinishRun", func() {
		It("records the finish reason", func() {
			run := NewTestRun("done")
			Expect(driver.CreateRun(ctx, run)).To(Succeed())
			Expect(driver.FinishRun(ctx, run.ID, "stop")).To(Succeed())

			got, err := driver.GetRun(ctx, run.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.FinishReason).To(Equal("stop"))
			Expect(got.FinishedAt).NotTo(BeNil())
		})

		It("returns NotFoundError for unknown runs", func() {
			err := driver.FinishRun(ctx, "missing", "stop")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("Put and List", func() {
		var run *storage.Run

		BeforeEach(func() {
			run = NewTestRun("tools")
			Expect(driver.CreateRun(ctx, run)).To(Succeed())
		})

		It("returns entries ordered by sequence number", func() {
			Expect(driver.Put(ctx, NewTestEntry(run.ID, 1, stream.ToolCallRequest{FunctionName: "get_city_temperature", Arguments: `{"city_name":"Paris"}`}))).To(Succeed())
			Expect(driver.Put(ctx, NewTestEntry(run.ID, 0, stream.ReasoningResponse{Content: "need weather"}))).To(Succeed())
			Expect(driver.Put(ctx, NewTestEntry(run.ID, 2, stream.TextResponse{Content: "It is 25C"}))).To(Succeed())

			entries, err := driver.List(ctx, run.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(3))
			Expect(entries[0].Seq).To(Equal(0))
			Expect(entries[1].Seq).To(Equal(1))
			Expect(entries[2].Seq).To(Equal(2))

			ev, err := entries[1].Event()
			Expect(err).NotTo(HaveOccurred())
			Expect(ev).To(Equal(stream.ToolCallRequest{FunctionName: "get_city_temperature", Arguments: `{"city_name":"Paris"}`}))

			got, err := driver.GetRun(ctx, run.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Events).To(Equal(3))
		})

		It("rejects a reused sequence number", func() {
			Expect(driver.Put(ctx, NewTestEntry(run.ID, 0, stream.TextResponse{Content: "a"}))).To(Succeed())
			err := driver.Put(ctx, NewTestEntry(run.ID, 0, stream.TextResponse{Content: "b"}))
			Expect(err).To(MatchError(storage.ErrDuplicateEntry))
		})

		It("rejects entries for unknown runs", func() {
			err := driver.Put(ctx, NewTestEntry("missing", 0, stream.TextResponse{Content: "a"}))
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("rejects nil entries", func() {
			Expect(driver.Put(ctx, nil)).NotTo(Succeed())
		})

		It("returns an empty log for a run without events", func() {
			entries, err := driver.List(ctx, run.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})

		It("returns NotFoundError when listing unknown runs", func() {
			_, err := driver.List(ctx, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("Runs", func() {
		It("lists the most recently started run first", func() {
			older := NewTestRun("older")
			newer := NewTestRun("newer")
			newer.StartedAt = older.StartedAt.Add(1e9)
			Expect(driver.CreateRun(ctx, older)).To(Succeed())
			Expect(driver.CreateRun(ctx, newer)).To(Succeed())

			runs, err := driver.Runs(ctx)
			Expect(err).NotTo(HaveOccurred())

			var ids []string
			for _, r := range runs {
				if r.ID == older.ID || r.ID == newer.ID {
					ids = append(ids, r.ID)
				}
			}
			Expect(ids).To(Equal([]string{newer.ID, older.ID}))
		})
	})

	Describe("GetRun", func() {
		It("returns NotFoundError for unknown runs", func() {
			_, err := driver.GetRun(ctx, "missing")
			Expect(err).To(MatchError(storage.NotFoundError{RunID: "missing"}))
		})
	})
}
