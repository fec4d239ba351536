// Package anthropic speaks the Anthropic Messages streaming format.
package anthropic

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/papercomputeco/reel/pkg/llm"
)

const (
	apiVersion = "2023-06-01"

	// defaultMaxTokens is sent when the request does not set one, since the
	// Messages API requires it.
	defaultMaxTokens = 4096
)

var eventTypes = map[string]bool{
	"message_start":       true,
	"message_delta":       true,
	"message_stop":        true,
	"content_block_start": true,
	"content_block_delta": true,
	"content_block_stop":  true,
	"ping":                true,
	"error":               true,
}

// StreamError is an "error" event sent mid-stream.
type StreamError struct {
	Type    string
	Message string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("anthropic stream error (%s): %s", e.Type, e.Message)
}

// provider implements the Provider interface for Anthropic's Messages API.
type provider struct{}

func New() *provider { return &provider{} }

func (p *provider) Name() string {
	return "anthropic"
}

func (p *provider) Framing() llm.Framing {
	return llm.FramingSSE
}

func (p *provider) Endpoint() string {
	return "/v1/messages"
}

func (p *provider) Authorize(h http.Header, apiKey string) {
	h.Set("anthropic-version", apiVersion)
	if apiKey != "" {
		h.Set("x-api-key", apiKey)
	}
}

func (p *provider) CanHandle(payload []byte) bool {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return false
	}
	return eventTypes[head.Type]
}

func (p *provider) BuildRequest(req *llm.ChatRequest) ([]byte, error) {
	messages := make([]anthropicMessage, 0, len(req.Messages))
	system := req.System

	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue

		case llm.RoleTool:
			block := anthropicContentBlock{
				Type:      "tool_result",
				ToolUseID: msg.ToolCallID,
				Content:   msg.Content,
			}
			// Consecutive results belong to the same user turn.
			if n := len(messages); n > 0 && messages[n-1].Role == llm.RoleUser && isToolResults(messages[n-1]) {
				messages[n-1].Content = append(messages[n-1].Content, block)
				continue
			}
			messages = append(messages, anthropicMessage{Role: llm.RoleUser, Content: []anthropicContentBlock{block}})
			continue
		}

		converted := anthropicMessage{Role: msg.Role}
		if msg.Content != "" {
			converted.Content = append(converted.Content, anthropicContentBlock{Type: "text", Text: msg.Content})
		}
		for _, tc := range msg.ToolCalls {
			input := map[string]any{}
			if tc.Arguments != "" {
				if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
					return nil, fmt.Errorf("tool call %q arguments: %w", tc.Name, err)
				}
			}
			converted.Content = append(converted.Content, anthropicContentBlock{
				Type:  "tool_use",
				ID:    tc.ID,
				Name:  tc.Name,
				Input: input,
			})
		}
		messages = append(messages, converted)
	}

	tools := make([]anthropicTool, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	return json.Marshal(anthropicRequest{
		Model:       req.Model,
		Messages:    messages,
		System:      system,
		Tools:       tools,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      true,
	})
}

func isToolResults(msg anthropicMessage) bool {
	for _, b := range msg.Content {
		if b.Type != "tool_result" {
			return false
		}
	}
	return len(msg.Content) > 0
}

// ParseStreamChunk converts one SSE data payload. Content blocks map onto
// chunk choices as follows: text and thinking deltas become text and
// reasoning fragments, a tool_use block start becomes a name fragment and its
// input_json deltas become argument fragments, all indexed by block.
func (p *provider) ParseStreamChunk(payload []byte) (*llm.StreamChunk, error) {
	var ev anthropicEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return convertEvent(&ev)
}

// NewStreamDecoder returns a decoder for one response. Unlike
// ParseStreamChunk it remembers the open tool_use block, so a block closed
// without any input still yields "{}" as its arguments.
func (p *provider) NewStreamDecoder() llm.StreamDecoder {
	return &streamDecoder{}
}

type streamDecoder struct {
	// toolBlock is the index of the open tool_use block, nil outside one.
	toolBlock *int
	gotInput  bool
}

func (d *streamDecoder) ParseStreamChunk(payload []byte) (*llm.StreamChunk, error) {
	var ev anthropicEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}

	switch ev.Type {
	case "content_block_start":
		d.toolBlock = nil
		if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
			index := ev.Index
			d.toolBlock = &index
			d.gotInput = false
		}

	case "content_block_delta":
		if d.inToolBlock(ev.Index) && ev.Delta != nil && ev.Delta.PartialJSON != "" {
			d.gotInput = true
		}

	case "content_block_stop":
		if d.inToolBlock(ev.Index) {
			d.toolBlock = nil
			if !d.gotInput {
				index := ev.Index
				return &llm.StreamChunk{Choices: []llm.ChunkChoice{{
					ToolCalls: []llm.ToolCallFragment{{Index: &index, Arguments: "{}"}},
				}}}, nil
			}
		}
	}
	return convertEvent(&ev)
}

func (d *streamDecoder) inToolBlock(index int) bool {
	return d.toolBlock != nil && *d.toolBlock == index
}

func convertEvent(ev *anthropicEvent) (*llm.StreamChunk, error) {
	switch ev.Type {
	case "message_start":
		chunk := &llm.StreamChunk{}
		if ev.Message != nil {
			chunk.Model = ev.Message.Model
			chunk.Usage = convertUsage(ev.Message.Usage)
		}
		return chunk, nil

	case "content_block_start":
		if ev.ContentBlock == nil {
			return nil, nil
		}
		choice := llm.ChunkChoice{}
		switch ev.ContentBlock.Type {
		case "tool_use":
			index := ev.Index
			choice.ToolCalls = []llm.ToolCallFragment{{
				Index: &index,
				ID:    ev.ContentBlock.ID,
				Name:  ev.ContentBlock.Name,
			}}
		case "text":
			choice.Text = ev.ContentBlock.Text
		}
		return &llm.StreamChunk{Choices: llm.SplitFinish(choice, "")}, nil

	case "content_block_delta":
		if ev.Delta == nil {
			return nil, nil
		}
		choice := llm.ChunkChoice{}
		switch ev.Delta.Type {
		case "text_delta":
			choice.Text = ev.Delta.Text
		case "thinking_delta":
			choice.Reasoning = ev.Delta.Thinking
		case "input_json_delta":
			// The opening delta of a block is often empty.
			if ev.Delta.PartialJSON != "" {
				index := ev.Index
				choice.ToolCalls = []llm.ToolCallFragment{{Index: &index, Arguments: ev.Delta.PartialJSON}}
			}
		}
		return &llm.StreamChunk{Choices: llm.SplitFinish(choice, "")}, nil

	case "message_delta":
		chunk := &llm.StreamChunk{Usage: convertUsage(ev.Usage)}
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			chunk.Choices = []llm.ChunkChoice{{FinishReason: ev.Delta.StopReason}}
		}
		return chunk, nil

	case "error":
		if ev.Error != nil {
			return nil, &StreamError{Type: ev.Error.Type, Message: ev.Error.Message}
		}
		return nil, &StreamError{Type: "unknown"}

	default:
		// ping, content_block_stop, message_stop
		return nil, nil
	}
}

func convertUsage(u *anthropicUsage) *llm.Usage {
	if u == nil {
		return nil
	}
	return &llm.Usage{
		PromptTokens:             u.InputTokens,
		CompletionTokens:         u.OutputTokens,
		TotalTokens:              u.InputTokens + u.OutputTokens,
		CacheCreationInputTokens: u.CacheCreationInputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens,
	}
}
