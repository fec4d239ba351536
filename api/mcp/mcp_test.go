package mcp_test

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	reelmcp "github.com/papercomputeco/reel/api/mcp"
	reellogger "github.com/papercomputeco/reel/pkg/logger"
	"github.com/papercomputeco/reel/pkg/toolbox"
	"github.com/papercomputeco/reel/pkg/toolbox/demo"
)

var _ = Describe("MCP Server", func() {
	var (
		server   *reelmcp.Server
		registry *toolbox.Registry
	)

	BeforeEach(func() {
		registry = toolbox.NewRegistry()
		Expect(demo.RegisterWeather(registry)).To(Succeed())

		var err error
		server, err = reelmcp.NewServer(reelmcp.Config{
			Registry: registry,
			Logger:   reellogger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when the registry is nil", func() {
			_, err := reelmcp.NewServer(reelmcp.Config{Logger: reellogger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("tool registry is required")))
		})

		It("returns an error when logger is nil", func() {
			_, err := reelmcp.NewServer(reelmcp.Config{Registry: registry})
			Expect(err).To(MatchError(ContainSubstring("logger is required")))
		})

		It("allows an empty noop server", func() {
			s, err := reelmcp.NewServer(reelmcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Handler()).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("sessions", func() {
		var (
			ctx     context.Context
			session *mcp.ClientSession
		)

		BeforeEach(func() {
			ctx = context.Background()
			serverTransport, clientTransport := mcp.NewInMemoryTransports()

			_, err := server.MCPServer().Connect(ctx, serverTransport, nil)
			Expect(err).NotTo(HaveOccurred())

			client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
			session, err = client.Connect(ctx, clientTransport, nil)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			session.Close()
		})

		It("lists every registry tool", func() {
			res, err := session.ListTools(ctx, nil)
			Expect(err).NotTo(HaveOccurred())

			var names []string
			for _, t := range res.Tools {
				names = append(names, t.Name)
			}
			Expect(names).To(ConsistOf(demo.TemperatureTool, demo.RainfallTool))
		})

		It("calls a tool through the registry", func() {
			res, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      demo.TemperatureTool,
				Arguments: map[string]any{"city_name": "Oslo"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())
			Expect(res.Content).To(HaveLen(1))

			text, ok := res.Content[0].(*mcp.TextContent)
			Expect(ok).To(BeTrue())
			Expect(text.Text).To(Equal("The current temperature in Oslo is 20 degrees Celsius."))
		})

		It("reports invalid arguments as an error result", func() {
			res, err := session.CallTool(ctx, &mcp.CallToolParams{
				Name:      demo.RainfallTool,
				Arguments: map[string]any{"city_name": 42},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())

			text, ok := res.Content[0].(*mcp.TextContent)
			Expect(ok).To(BeTrue())
			Expect(text.Text).To(ContainSubstring("invalid arguments"))
		})
	})
})
