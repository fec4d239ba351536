package ollama_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reel/pkg/llm"
	"github.com/papercomputeco/reel/pkg/llm/provider"
	"github.com/papercomputeco/reel/pkg/llm/provider/ollama"
	"github.com/papercomputeco/reel/pkg/stream"
)

var _ = Describe("Ollama Provider", func() {
	var p provider.Provider

	BeforeEach(func() {
		p = ollama.New()
	})

	It("streams NDJSON from /api/chat", func() {
		Expect(p.Name()).To(Equal("ollama"))
		Expect(p.Framing()).To(Equal(llm.FramingNDJSON))
		Expect(p.Endpoint()).To(Equal("/api/chat"))
	})

	Describe("CanHandle", func() {
		It("recognizes chat chunks", func() {
			Expect(p.CanHandle([]byte(`{"model":"qwen3","message":{"role":"assistant","content":"hi"},"done":false}`))).To(BeTrue())
		})

		It("rejects OpenAI chunks", func() {
			Expect(p.CanHandle([]byte(`{"object":"chat.completion.chunk","choices":[]}`))).To(BeFalse())
		})
	})

	Describe("BuildRequest", func() {
		It("maps sampling parameters into options", func() {
			topP := 0.9
			maxTokens := 128
			body, err := p.BuildRequest(&llm.ChatRequest{
				Model:     "qwen3",
				System:    "sys",
				Messages:  []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
				TopP:      &topP,
				MaxTokens: &maxTokens,
			})
			Expect(err).NotTo(HaveOccurred())

			var decoded map[string]any
			Expect(json.Unmarshal(body, &decoded)).To(Succeed())
			Expect(decoded["stream"]).To(BeTrue())
			options := decoded["options"].(map[string]any)
			Expect(options["top_p"]).To(BeNumerically("==", 0.9))
			Expect(options["num_predict"]).To(BeNumerically("==", 128))
			Expect(decoded["messages"].([]any)).To(HaveLen(2))
		})

		It("decodes tool call arguments into objects", func() {
			body, err := p.BuildRequest(&llm.ChatRequest{
				Model: "qwen3",
				Messages: []llm.Message{
					{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{Name: "f", Arguments: `{"city":"Paris"}`}}},
					{Role: llm.RoleTool, Name: "f", Content: "ok"},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring(`"arguments":{"city":"Paris"}`))
			Expect(string(body)).To(ContainSubstring(`"tool_name":"f"`))
		})

		It("rejects tool calls whose arguments are not JSON", func() {
			_, err := p.BuildRequest(&llm.ChatRequest{
				Messages: []llm.Message{{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{Name: "f", Arguments: "nope"}}}},
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ParseStreamChunk", func() {
		It("parses content and thinking", func() {
			chunk, err := p.ParseStreamChunk([]byte(`{"model":"qwen3","created_at":"2025-01-01T00:00:00Z","message":{"role":"assistant","content":"","thinking":"hmm"},"done":false}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(chunk.Choices).To(Equal([]llm.ChunkChoice{{Reasoning: "hmm"}}))
		})

		It("maps the final chunk to a finish reason with usage", func() {
			chunk, err := p.ParseStreamChunk([]byte(`{"model":"qwen3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":10,"eval_count":5}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(chunk.Choices).To(Equal([]llm.ChunkChoice{{FinishReason: "stop"}}))
			Expect(chunk.Usage.TotalTokens).To(Equal(15))
		})

		It("splits whole tool calls into name and arguments fragments", func() {
			chunk, err := p.ParseStreamChunk([]byte(`{"message":{"role":"assistant","content":"","tool_calls":[
				{"function":{"name":"get_city_temperature","arguments":{"city":"Paris"}}},
				{"function":{"name":"get_city_rainfall","arguments":{"city":"Paris"}}}
			]},"done":false}`))
			Expect(err).NotTo(HaveOccurred())

			events, err := reduceAll(chunk, &llm.StreamChunk{Choices: []llm.ChunkChoice{{FinishReason: "stop"}}})
			Expect(err).NotTo(HaveOccurred())

			var requests []stream.ToolCallRequest
			for _, ev := range events {
				if req, ok := ev.(stream.ToolCallRequest); ok {
					requests = append(requests, req)
				}
			}
			Expect(requests).To(Equal([]stream.ToolCallRequest{
				{FunctionName: "get_city_temperature", Arguments: `{"city":"Paris"}`},
				{FunctionName: "get_city_rainfall", Arguments: `{"city":"Paris"}`},
			}))
		})
	})
})

func reduceAll(chunks ...*llm.StreamChunk) ([]stream.Event, error) {
	values := make([]llm.StreamChunk, 0, len(chunks))
	for _, c := range chunks {
		values = append(values, *c)
	}
	var out []stream.Event
	for ev, err := range stream.Reduce(stream.FromChunks(values...)) {
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
	return out, nil
}
