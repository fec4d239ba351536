package llm

import "time"

// StreamChunk is one incremental unit of a streaming completion after the
// provider-specific wire format has been decoded.
type StreamChunk struct {
	// Model that generated the chunk
	Model string `json:"model,omitempty"`

	// Chunk timestamp
	CreatedAt time.Time `json:"created_at,omitzero"`

	// Choices holds one entry per logical sub-choice carried by the chunk.
	// Most providers send exactly one; OpenAI may bundle several when n > 1.
	Choices []ChunkChoice `json:"choices"`

	// Usage metrics (typically only present on the final chunk)
	Usage *Usage `json:"usage,omitempty"`
}

// ChunkChoice carries the fragments of a single sub-choice. Any field may be
// empty; a choice normally carries exactly one of them.
type ChunkChoice struct {
	Index int `json:"index"`

	// Text is an answer text fragment.
	Text string `json:"text,omitempty"`

	// Reasoning is a reasoning/thinking trace fragment.
	Reasoning string `json:"reasoning,omitempty"`

	// ToolCalls holds tool-call fragments in arrival order.
	ToolCalls []ToolCallFragment `json:"tool_calls,omitempty"`

	// FinishReason is set on the last chunk of the choice ("stop", "tool_calls", ...).
	FinishReason string `json:"finish_reason,omitempty"`
}

// ToolCallFragment is a partial tool call. The first fragment of a call
// usually carries ID and Name; later ones carry Arguments pieces.
type ToolCallFragment struct {
	// Index identifies the tool call among parallel calls. Nil when the
	// provider did not send one.
	Index *int `json:"index,omitempty"`

	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// TextChunk is a convenience constructor for a single-choice text chunk.
func TextChunk(text string) StreamChunk {
	return StreamChunk{Choices: []ChunkChoice{{Text: text}}}
}

// ReasoningChunk is a convenience constructor for a single-choice reasoning chunk.
func ReasoningChunk(text string) StreamChunk {
	return StreamChunk{Choices: []ChunkChoice{{Reasoning: text}}}
}

// ToolNameChunk is a convenience constructor for a chunk selecting a tool.
func ToolNameChunk(name string) StreamChunk {
	return StreamChunk{Choices: []ChunkChoice{{ToolCalls: []ToolCallFragment{{Name: name}}}}}
}

// ToolArgsChunk is a convenience constructor for a tool arguments fragment.
func ToolArgsChunk(args string) StreamChunk {
	return StreamChunk{Choices: []ChunkChoice{{ToolCalls: []ToolCallFragment{{Arguments: args}}}}}
}

// FinishChunk is a convenience constructor for a chunk carrying only a finish reason.
func FinishChunk(reason string) StreamChunk {
	return StreamChunk{Choices: []ChunkChoice{{FinishReason: reason}}}
}

// StreamDecoder converts the payloads of one response body into chunks.
type StreamDecoder interface {
	ParseStreamChunk(payload []byte) (*StreamChunk, error)
}

// Framing is how a provider delimits chunks on a response body.
type Framing int

const (
	// FramingSSE carries one chunk per "data:" event.
	FramingSSE Framing = iota

	// FramingNDJSON carries one chunk per line.
	FramingNDJSON
)

func (f Framing) String() string {
	if f == FramingNDJSON {
		return "ndjson"
	}
	return "sse"
}

// IsEmpty reports whether the choice carries no fragment and no finish reason.
func (c ChunkChoice) IsEmpty() bool {
	return c.Text == "" && c.Reasoning == "" && len(c.ToolCalls) == 0 && c.FinishReason == ""
}

// SplitFinish is used by decoders to build the choices for one wire-level
// choice. A choice carrying nothing is dropped, since the reducer treats an
// empty choice as a run boundary. When the choice carries content as well as
// finish, the finish reason becomes a second choice with the same index so
// it does not mask the content.
func SplitFinish(choice ChunkChoice, finish string) []ChunkChoice {
	if finish == "" {
		if choice.IsEmpty() {
			return nil
		}
		return []ChunkChoice{choice}
	}
	if choice.IsEmpty() {
		choice.FinishReason = finish
		return []ChunkChoice{choice}
	}
	return []ChunkChoice{choice, {Index: choice.Index, FinishReason: finish}}
}
