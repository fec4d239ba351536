package ollama

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/papercomputeco/reel/pkg/llm"
)

// provider implements the Provider interface for Ollama's native chat API.
type provider struct{}

func New() *provider { return &provider{} }

func (o *provider) Name() string {
	return "ollama"
}

func (o *provider) Framing() llm.Framing {
	return llm.FramingNDJSON
}

func (o *provider) Endpoint() string {
	return "/api/chat"
}

// Authorize sets a bearer token for Ollama instances behind an auth proxy.
func (o *provider) Authorize(h http.Header, apiKey string) {
	if apiKey != "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}
}

func (o *provider) CanHandle(payload []byte) bool {
	var head struct {
		Message   *json.RawMessage `json:"message"`
		Done      *bool            `json:"done"`
		CreatedAt string           `json:"created_at"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return false
	}
	return head.Message != nil && head.Done != nil
}

func (o *provider) BuildRequest(req *llm.ChatRequest) ([]byte, error) {
	messages := make([]ollamaMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: llm.RoleSystem, Content: req.System})
	}

	for _, msg := range req.Messages {
		converted := ollamaMessage{Role: msg.Role, Content: msg.Content}
		if msg.Role == llm.RoleTool {
			converted.ToolName = msg.Name
		}
		for _, tc := range msg.ToolCalls {
			var call ollamaToolCall
			call.ID = tc.ID
			call.Function.Name = tc.Name
			if tc.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Arguments), &call.Function.Arguments); err != nil {
					return nil, fmt.Errorf("tool call %q arguments: %w", tc.Name, err)
				}
			}
			converted.ToolCalls = append(converted.ToolCalls, call)
		}
		messages = append(messages, converted)
	}

	tools := make([]ollamaTool, 0, len(req.Tools))
	for _, t := range req.Tools {
		var tool ollamaTool
		tool.Type = "function"
		tool.Function.Name = t.Name
		tool.Function.Description = t.Description
		tool.Function.Parameters = t.Parameters
		tools = append(tools, tool)
	}

	body := ollamaRequest{
		Model:    req.Model,
		Messages: messages,
		Tools:    tools,
		Stream:   true,
	}
	if req.Temperature != nil || req.TopP != nil || req.MaxTokens != nil {
		body.Options = &ollamaOptions{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			NumPredict:  req.MaxTokens,
		}
	}

	return json.Marshal(body)
}

// ParseStreamChunk converts one NDJSON line. Ollama sends each tool call
// whole, so every call becomes a name fragment followed by an arguments
// fragment sharing the call's index.
func (o *provider) ParseStreamChunk(payload []byte) (*llm.StreamChunk, error) {
	var chunk ollamaChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return nil, err
	}

	choice := llm.ChunkChoice{
		Text:      chunk.Message.Content,
		Reasoning: chunk.Message.Thinking,
	}
	for i, tc := range chunk.Message.ToolCalls {
		index := i
		if tc.Function.Index != nil {
			index = *tc.Function.Index
		}

		args := "{}"
		if len(tc.Function.Arguments) > 0 {
			raw, err := json.Marshal(tc.Function.Arguments)
			if err != nil {
				return nil, err
			}
			args = string(raw)
		}

		choice.ToolCalls = append(choice.ToolCalls,
			llm.ToolCallFragment{Index: &index, ID: tc.ID, Name: tc.Function.Name},
			llm.ToolCallFragment{Index: &index, Arguments: args},
		)
	}

	var finish string
	if chunk.Done {
		finish = chunk.DoneReason
		if finish == "" {
			finish = "stop"
		}
	}

	result := &llm.StreamChunk{
		Model:     chunk.Model,
		CreatedAt: chunk.CreatedAt,
		Choices:   llm.SplitFinish(choice, finish),
	}
	if chunk.Done && (chunk.PromptEvalCount > 0 || chunk.EvalCount > 0) {
		result.Usage = &llm.Usage{
			PromptTokens:     chunk.PromptEvalCount,
			CompletionTokens: chunk.EvalCount,
			TotalTokens:      chunk.PromptEvalCount + chunk.EvalCount,
		}
	}

	return result, nil
}
