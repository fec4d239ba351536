// Package openai speaks the OpenAI Chat Completions streaming format, which
// most OpenAI-compatible servers (vLLM, LiteLLM, OpenRouter) also use.
package openai

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/papercomputeco/reel/pkg/llm"
)

const doneSentinel = "[DONE]"

// provider implements the Provider interface for OpenAI's Chat Completions API.
type provider struct{}

func New() *provider { return &provider{} }

func (o *provider) Name() string {
	return "openai"
}

func (o *provider) Framing() llm.Framing {
	return llm.FramingSSE
}

func (o *provider) Endpoint() string {
	return "/chat/completions"
}

func (o *provider) Authorize(h http.Header, apiKey string) {
	if apiKey != "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}
}

func (o *provider) CanHandle(payload []byte) bool {
	if string(bytes.TrimSpace(payload)) == doneSentinel {
		return true
	}

	var head struct {
		Object  string            `json:"object"`
		Choices []json.RawMessage `json:"choices"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return false
	}
	return head.Object == "chat.completion.chunk" || head.Choices != nil
}

func (o *provider) BuildRequest(req *llm.ChatRequest) ([]byte, error) {
	messages := make([]openaiMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openaiMessage{Role: llm.RoleSystem, Content: &req.System})
	}

	for _, msg := range req.Messages {
		converted := openaiMessage{
			Role:       msg.Role,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		if msg.Content != "" || len(msg.ToolCalls) == 0 {
			content := msg.Content
			converted.Content = &content
		}
		for _, tc := range msg.ToolCalls {
			call := openaiToolCall{ID: tc.ID, Type: "function"}
			call.Function.Name = tc.Name
			call.Function.Arguments = tc.Arguments
			converted.ToolCalls = append(converted.ToolCalls, call)
		}
		messages = append(messages, converted)
	}

	tools := make([]openaiTool, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, openaiTool{
			Type: "function",
			Function: openaiFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	return json.Marshal(openaiRequest{
		Model:         req.Model,
		Messages:      messages,
		Tools:         tools,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	})
}

func (o *provider) ParseStreamChunk(payload []byte) (*llm.StreamChunk, error) {
	if string(bytes.TrimSpace(payload)) == doneSentinel {
		return nil, nil
	}

	var chunk openaiChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return nil, err
	}

	result := &llm.StreamChunk{
		Model:   chunk.Model,
		Choices: make([]llm.ChunkChoice, 0, len(chunk.Choices)),
	}
	if chunk.Created != 0 {
		result.CreatedAt = time.Unix(chunk.Created, 0)
	}

	for _, c := range chunk.Choices {
		choice := llm.ChunkChoice{
			Index:     c.Index,
			Text:      c.Delta.Content,
			Reasoning: c.Delta.ReasoningContent,
		}
		if choice.Reasoning == "" {
			choice.Reasoning = c.Delta.Reasoning
		}
		for _, tc := range c.Delta.ToolCalls {
			choice.ToolCalls = append(choice.ToolCalls, llm.ToolCallFragment{
				Index:     tc.Index,
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}

		var finish string
		if c.FinishReason != nil {
			finish = *c.FinishReason
		}
		result.Choices = append(result.Choices, llm.SplitFinish(choice, finish)...)
	}

	if chunk.Usage != nil {
		result.Usage = &llm.Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}
	}

	return result, nil
}
