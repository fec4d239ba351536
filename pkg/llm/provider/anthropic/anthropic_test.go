package anthropic_test

import (
	"encoding/json"
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reel/pkg/llm"
	"github.com/papercomputeco/reel/pkg/llm/provider"
	"github.com/papercomputeco/reel/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/reel/pkg/stream"
)

var _ = Describe("Anthropic Provider", func() {
	var p provider.Provider

	BeforeEach(func() {
		p = anthropic.New()
	})

	It("streams SSE from /v1/messages", func() {
		Expect(p.Name()).To(Equal("anthropic"))
		Expect(p.Framing()).To(Equal(llm.FramingSSE))
		Expect(p.Endpoint()).To(Equal("/v1/messages"))
	})

	It("sets the API key and version headers", func() {
		h := http.Header{}
		p.Authorize(h, "sk-ant")
		Expect(h.Get("x-api-key")).To(Equal("sk-ant"))
		Expect(h.Get("anthropic-version")).To(Equal("2023-06-01"))
	})

	Describe("CanHandle", func() {
		It("recognizes typed stream events", func() {
			Expect(p.CanHandle([]byte(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"x"}}`))).To(BeTrue())
		})

		It("rejects OpenAI chunks", func() {
			Expect(p.CanHandle([]byte(`{"object":"chat.completion.chunk","choices":[]}`))).To(BeFalse())
		})
	})

	Describe("BuildRequest", func() {
		It("uses the system field and a default max_tokens", func() {
			body, err := p.BuildRequest(&llm.ChatRequest{
				Model:    "claude-sonnet-4",
				System:   "sys",
				Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")},
				Tools: []llm.ToolDefinition{{
					Name:       "get_city_rainfall",
					Parameters: map[string]any{"type": "object"},
				}},
			})
			Expect(err).NotTo(HaveOccurred())

			var decoded map[string]any
			Expect(json.Unmarshal(body, &decoded)).To(Succeed())
			Expect(decoded["system"]).To(Equal("sys"))
			Expect(decoded["max_tokens"]).To(BeNumerically("==", 4096))
			Expect(decoded["tools"].([]any)[0].(map[string]any)).To(HaveKey("input_schema"))
		})

		It("groups consecutive tool results into one user turn", func() {
			body, err := p.BuildRequest(&llm.ChatRequest{
				Model: "claude-sonnet-4",
				Messages: []llm.Message{
					llm.NewTextMessage(llm.RoleUser, "weather?"),
					{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
						{ID: "toolu_1", Name: "a", Arguments: `{"city":"Paris"}`},
						{ID: "toolu_2", Name: "b", Arguments: `{"city":"Paris"}`},
					}},
					{Role: llm.RoleTool, ToolCallID: "toolu_1", Content: "20"},
					{Role: llm.RoleTool, ToolCallID: "toolu_2", Content: "5.0"},
				},
			})
			Expect(err).NotTo(HaveOccurred())

			var decoded struct {
				Messages []struct {
					Role    string           `json:"role"`
					Content []map[string]any `json:"content"`
				} `json:"messages"`
			}
			Expect(json.Unmarshal(body, &decoded)).To(Succeed())
			Expect(decoded.Messages).To(HaveLen(3))
			Expect(decoded.Messages[1].Content).To(HaveLen(2))
			Expect(decoded.Messages[1].Content[0]["type"]).To(Equal("tool_use"))
			Expect(decoded.Messages[2].Role).To(Equal("user"))
			Expect(decoded.Messages[2].Content).To(HaveLen(2))
			Expect(decoded.Messages[2].Content[1]["tool_use_id"]).To(Equal("toolu_2"))
		})
	})

	Describe("ParseStreamChunk", func() {
		It("skips pings and block stops", func() {
			for _, payload := range []string{`{"type":"ping"}`, `{"type":"content_block_stop","index":0}`, `{"type":"message_stop"}`} {
				chunk, err := p.ParseStreamChunk([]byte(payload))
				Expect(err).NotTo(HaveOccurred())
				Expect(chunk).To(BeNil())
			}
		})

		It("surfaces error events", func() {
			_, err := p.ParseStreamChunk([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
			var streamErr *anthropic.StreamError
			Expect(errors.As(err, &streamErr)).To(BeTrue())
			Expect(streamErr.Type).To(Equal("overloaded_error"))
		})

		It("reduces a full tool-use stream", func() {
			payloads := []string{
				`{"type":"message_start","message":{"model":"claude-sonnet-4","usage":{"input_tokens":12,"output_tokens":1}}}`,
				`{"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":""}}`,
				`{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"need weather"}}`,
				`{"type":"content_block_stop","index":0}`,
				`{"type":"content_block_start","index":1,"content_block":{"type":"text","text":""}}`,
				`{"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"Checking."}}`,
				`{"type":"content_block_start","index":2,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_city_temperature","input":{}}}`,
				`{"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":""}}`,
				`{"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`,
				`{"type":"content_block_delta","index":2,"delta":{"type":"input_json_delta","partial_json":"\"Paris\"}"}}`,
				`{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":30}}`,
				`{"type":"message_stop"}`,
			}

			var chunks []llm.StreamChunk
			for _, payload := range payloads {
				chunk, err := p.ParseStreamChunk([]byte(payload))
				Expect(err).NotTo(HaveOccurred())
				if chunk != nil {
					chunks = append(chunks, *chunk)
				}
			}

			var fulls []stream.Event
			r := stream.NewReducer(stream.FromChunks(chunks...))
			for ev, err := range r.All() {
				Expect(err).NotTo(HaveOccurred())
				if ev.Kind().IsFull() {
					fulls = append(fulls, ev)
				}
			}
			Expect(fulls).To(Equal([]stream.Event{
				stream.ReasoningResponse{Content: "need weather"},
				stream.TextResponse{Content: "Checking."},
				stream.ToolCallRequest{FunctionName: "get_city_temperature", Arguments: `{"city":"Paris"}`, CallID: "toolu_1"},
			}))
			Expect(r.FinishReason()).To(Equal("tool_use"))
		})
	})

	Describe("NewStreamDecoder", func() {
		decode := func(dec llm.StreamDecoder, payloads ...string) []stream.Event {
			var chunks []llm.StreamChunk
			for _, payload := range payloads {
				chunk, err := dec.ParseStreamChunk([]byte(payload))
				Expect(err).NotTo(HaveOccurred())
				if chunk != nil {
					chunks = append(chunks, *chunk)
				}
			}

			var fulls []stream.Event
			for ev, err := range stream.Reduce(stream.FromChunks(chunks...)) {
				Expect(err).NotTo(HaveOccurred())
				if ev.Kind().IsFull() {
					fulls = append(fulls, ev)
				}
			}
			return fulls
		}

		It("is a fresh decoder per response", func() {
			_, ok := p.(provider.StatefulProvider)
			Expect(ok).To(BeTrue())
			Expect(provider.NewStreamDecoder(p)).NotTo(BeIdenticalTo(provider.NewStreamDecoder(p)))
		})

		It("gives a tool_use block without input empty object arguments", func() {
			fulls := decode(provider.NewStreamDecoder(p),
				`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_9","name":"get_time","input":{}}}`,
				`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":""}}`,
				`{"type":"content_block_stop","index":0}`,
				`{"type":"message_delta","delta":{"stop_reason":"tool_use"}}`,
			)
			Expect(fulls).To(Equal([]stream.Event{
				stream.ToolCallRequest{FunctionName: "get_time", Arguments: "{}", CallID: "toolu_9"},
			}))
		})

		It("leaves streamed input alone when the block closes", func() {
			fulls := decode(provider.NewStreamDecoder(p),
				`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_city_temperature","input":{}}}`,
				`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"city\":\"Paris\"}"}}`,
				`{"type":"content_block_stop","index":0}`,
				`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_2","name":"get_time","input":{}}}`,
				`{"type":"content_block_stop","index":1}`,
				`{"type":"message_delta","delta":{"stop_reason":"tool_use"}}`,
			)
			Expect(fulls).To(Equal([]stream.Event{
				stream.ToolCallRequest{FunctionName: "get_city_temperature", Arguments: `{"city":"Paris"}`, CallID: "toolu_1"},
				stream.ToolCallRequest{FunctionName: "get_time", Arguments: "{}", CallID: "toolu_2"},
			}))
		})

		It("does not touch text blocks", func() {
			fulls := decode(provider.NewStreamDecoder(p),
				`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
				`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi"}}`,
				`{"type":"content_block_stop","index":0}`,
				`{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
			)
			Expect(fulls).To(Equal([]stream.Event{stream.TextResponse{Content: "Hi"}}))
		})
	})
})
