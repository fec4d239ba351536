// Package llm holds the provider-agnostic request and stream types shared by
// the completion client, the provider decoders and the stream reducer.
package llm

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// ToolCallID references the tool call this message answers (role="tool").
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Name of the tool that produced the content (role="tool").
	Name string `json:"name,omitempty"`

	// ToolCalls the assistant requested in this turn (role="assistant").
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a complete tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewTextMessage creates a simple text message with the given role and content.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Content: text}
}
