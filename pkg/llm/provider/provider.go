// Package provider encodes chat requests into each vendor's streaming wire
// format and decodes the chunks that come back into llm.StreamChunk.
package provider

import (
	"net/http"

	"github.com/papercomputeco/reel/pkg/llm"
)

// Provider defines how to talk to one family of completion APIs.
type Provider interface {
	// Name returns the canonical provider name (e.g., "anthropic", "openai", "ollama")
	Name() string

	// Framing reports how stream chunks are delimited.
	Framing() llm.Framing

	// Endpoint is the path appended to the configured base URL.
	Endpoint() string

	// Authorize sets the authentication headers for apiKey. An empty key
	// leaves the request untouched.
	Authorize(h http.Header, apiKey string)

	// CanHandle returns true if a single stream chunk payload looks like
	// this provider's format. Used to pick a decoder for captured streams.
	CanHandle(payload []byte) bool

	// BuildRequest encodes a streaming request body.
	BuildRequest(req *llm.ChatRequest) ([]byte, error)

	// ParseStreamChunk converts a single streaming chunk into the internal format.
	// Returns (nil, nil) if the chunk should be skipped (e.g., [DONE], ping).
	ParseStreamChunk(payload []byte) (*llm.StreamChunk, error)
}

// StatefulProvider is a Provider whose chunks depend on earlier chunks of the
// same response. Each response gets a fresh decoder.
type StatefulProvider interface {
	Provider

	NewStreamDecoder() llm.StreamDecoder
}

// NewStreamDecoder returns the decoder for one response from p: a fresh one
// for a StatefulProvider, p itself otherwise.
func NewStreamDecoder(p Provider) llm.StreamDecoder {
	if sp, ok := p.(StatefulProvider); ok {
		return sp.NewStreamDecoder()
	}
	return p
}
