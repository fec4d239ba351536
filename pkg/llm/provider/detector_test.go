package provider_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reel/pkg/llm/provider"
)

var _ = Describe("Detector", func() {
	var detector *provider.Detector

	BeforeEach(func() {
		detector = provider.NewDetector()
	})

	DescribeTable("Detect",
		func(payload, expected string) {
			p, err := detector.Detect([]byte(payload))
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name()).To(Equal(expected))
		},
		Entry("anthropic message_start", `{"type":"message_start","message":{"model":"claude-sonnet-4"}}`, "anthropic"),
		Entry("openai chunk", `{"object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"hi"}}]}`, "openai"),
		Entry("openai-compatible chunk without object", `{"choices":[{"index":0,"delta":{}}]}`, "openai"),
		Entry("ollama chunk", `{"model":"qwen3","message":{"role":"assistant","content":"hi"},"done":false}`, "ollama"),
	)

	It("fails on unknown payloads", func() {
		_, err := detector.Detect([]byte(`{"hello":"world"}`))
		Expect(err).To(MatchError(provider.ErrUnknownFormat))
	})
})

var _ = Describe("New", func() {
	It("builds every supported provider", func() {
		for _, name := range provider.SupportedProviders() {
			p, err := provider.New(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name()).To(Equal(name))
		}
	})

	It("rejects unknown names", func() {
		_, err := provider.New("bedrock")
		Expect(err).To(HaveOccurred())
	})
})
