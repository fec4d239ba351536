package llm

// ChatRequest represents a provider-agnostic streaming chat completion request.
// Providers encode it into their own wire format (see provider.Provider.BuildRequest).
type ChatRequest struct {
	// Model name (e.g., "gpt-4o", "claude-sonnet-4", "qwen3")
	Model string `json:"model"`

	// System instructions. Providers that have no dedicated field prepend
	// them as a system message.
	System string `json:"system,omitempty"`

	// Conversation messages
	Messages []Message `json:"messages"`

	// Tools the model may call
	Tools []ToolDefinition `json:"tools,omitempty"`

	// Generation parameters (unified across providers)
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// ToolDefinition describes a callable function to the model.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// Parameters is a JSON Schema object describing the arguments.
	Parameters map[string]any `json:"parameters"`
}

// ErrorResponse is the JSON body returned by the HTTP API on failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
