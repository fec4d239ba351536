package provider

import (
	"errors"

	"github.com/papercomputeco/reel/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/reel/pkg/llm/provider/ollama"
	"github.com/papercomputeco/reel/pkg/llm/provider/openai"
)

// ErrUnknownFormat is returned when no provider recognizes a chunk.
var ErrUnknownFormat = errors.New("stream chunk format not recognized")

// Detector picks a provider for a captured stream by probing its first chunk.
type Detector struct {
	providers []Provider
}

// NewDetector creates a Detector checking Anthropic, OpenAI, then Ollama.
// Anthropic goes first because its chunks carry an explicit "type" field.
func NewDetector() *Detector {
	return &Detector{
		providers: []Provider{
			anthropic.New(),
			openai.New(),
			ollama.New(),
		},
	}
}

// Detect returns the first provider that can handle payload.
func (d *Detector) Detect(payload []byte) (Provider, error) {
	for _, p := range d.providers {
		if p.CanHandle(payload) {
			return p, nil
		}
	}
	return nil, ErrUnknownFormat
}
