package toolbox_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reel/pkg/toolbox"
	"github.com/papercomputeco/reel/pkg/toolbox/demo"
)

var _ = Describe("Registry", func() {
	var (
		reg *toolbox.Registry
		ctx context.Context
	)

	BeforeEach(func() {
		reg = toolbox.NewRegistry()
		ctx = context.Background()
		Expect(demo.RegisterWeather(reg)).To(Succeed())
	})

	Describe("Register", func() {
		It("rejects duplicates", func() {
			err := reg.Register(demo.TemperatureTool, func(context.Context, toolbox.Args) (any, error) { return nil, nil }, "", nil)
			Expect(err).To(MatchError(toolbox.ErrDuplicateTool))
		})

		It("rejects empty names and nil handlers", func() {
			Expect(reg.Register(" ", func(context.Context, toolbox.Args) (any, error) { return nil, nil }, "", nil)).To(MatchError(toolbox.ErrEmptyName))
			Expect(reg.Register("x", nil, "", nil)).To(MatchError(toolbox.ErrNilHandler))
		})

		It("rejects unknown parameter types", func() {
			err := reg.Register("x", func(context.Context, toolbox.Args) (any, error) { return nil, nil }, "", toolbox.Params{"when": "date"})
			Expect(err).To(MatchError(toolbox.ErrUnknownType))
		})
	})

	Describe("DescribeAll", func() {
		It("describes tools in registration order with every parameter required", func() {
			defs := reg.DescribeAll()
			Expect(defs).To(HaveLen(2))
			Expect(defs[0].Name).To(Equal(demo.TemperatureTool))
			Expect(defs[1].Name).To(Equal(demo.RainfallTool))
			Expect(defs[0].Parameters).To(Equal(map[string]any{
				"type":       "object",
				"properties": map[string]any{"city_name": map[string]any{"type": "string"}},
				"required":   []string{"city_name"},
			}))
		})
	})

	Describe("Invoke", func() {
		It("runs the handler with decoded arguments", func() {
			out, err := reg.Invoke(ctx, demo.TemperatureTool, `{"city_name":"Paris"}`)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("The current temperature in Paris is 20 degrees Celsius."))
		})

		It("fails with UnknownToolError for unregistered names", func() {
			_, err := reg.Invoke(ctx, "nonexistent", "{}")
			var unknown *toolbox.UnknownToolError
			Expect(errors.As(err, &unknown)).To(BeTrue())
			Expect(unknown.Name).To(Equal("nonexistent"))
		})

		It("fails with InvalidArgumentsError for malformed JSON", func() {
			_, err := reg.Invoke(ctx, demo.TemperatureTool, "not-json")
			var invalid *toolbox.InvalidArgumentsError
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(invalid.Arguments).To(Equal("not-json"))
		})

		It("fails with InvalidArgumentsError for non-object JSON", func() {
			_, err := reg.Invoke(ctx, demo.TemperatureTool, `["Paris"]`)
			var invalid *toolbox.InvalidArgumentsError
			Expect(errors.As(err, &invalid)).To(BeTrue())
		})

		It("fails with InvalidArgumentsError when the schema rejects the arguments", func() {
			var invalid *toolbox.InvalidArgumentsError

			_, err := reg.Invoke(ctx, demo.TemperatureTool, `{}`)
			Expect(errors.As(err, &invalid)).To(BeTrue())

			_, err = reg.Invoke(ctx, demo.TemperatureTool, `{"city_name": 12}`)
			Expect(errors.As(err, &invalid)).To(BeTrue())
		})

		It("treats empty arguments as an empty object", func() {
			called := false
			reg.MustRegister("ping", func(context.Context, toolbox.Args) (any, error) {
				called = true
				return "pong", nil
			}, "", nil)

			out, err := reg.Invoke(ctx, "ping", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal("pong"))
			Expect(called).To(BeTrue())
		})

		It("wraps handler errors in ToolExecutionError", func() {
			boom := errors.New("upstream down")
			reg.MustRegister("fail", func(context.Context, toolbox.Args) (any, error) { return nil, boom }, "", nil)

			_, err := reg.Invoke(ctx, "fail", "{}")
			var execErr *toolbox.ToolExecutionError
			Expect(errors.As(err, &execErr)).To(BeTrue())
			Expect(errors.Is(err, boom)).To(BeTrue())
		})

		It("recovers handler panics as ToolExecutionError", func() {
			reg.MustRegister("explode", func(context.Context, toolbox.Args) (any, error) { panic("kaboom") }, "", nil)

			_, err := reg.Invoke(ctx, "explode", "{}")
			var execErr *toolbox.ToolExecutionError
			Expect(errors.As(err, &execErr)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("kaboom"))
		})

		It("passes typed numeric arguments", func() {
			reg.MustRegister("double", func(_ context.Context, args toolbox.Args) (any, error) {
				return args.Int("n") * 2, nil
			}, "", toolbox.Params{"n": toolbox.Integer})

			out, err := reg.Invoke(ctx, "double", `{"n": 21}`)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(42))

			_, err = reg.Invoke(ctx, "double", `{"n": 1.5}`)
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("FormatResult", func() {
	It("passes strings through and encodes everything else as JSON", func() {
		Expect(toolbox.FormatResult("hi")).To(Equal("hi"))
		Expect(toolbox.FormatResult(nil)).To(BeEmpty())
		Expect(toolbox.FormatResult(map[string]int{"a": 1})).To(Equal(`{"a":1}`))
		Expect(toolbox.FormatResult(3.5)).To(Equal("3.5"))
	})
})
