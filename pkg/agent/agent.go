// Package agent drives a conversation with a model: it streams completions
// through the reducer, runs the tools the model asks for and feeds their
// results back until the model answers in plain text.
package agent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/papercomputeco/reel/pkg/completion"
	"github.com/papercomputeco/reel/pkg/llm"
	"github.com/papercomputeco/reel/pkg/stream"
	"github.com/papercomputeco/reel/pkg/toolbox"
)

// DefaultMaxSteps bounds how many completions one Run may chain.
const DefaultMaxSteps = 8

// ChunkStream is an open completion response.
type ChunkStream interface {
	stream.ChunkSource
	Close() error
}

// Completer starts a streaming completion.
type Completer interface {
	Complete(ctx context.Context, req *llm.ChatRequest) (ChunkStream, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req *llm.ChatRequest) (ChunkStream, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req *llm.ChatRequest) (ChunkStream, error) {
	return f(ctx, req)
}

// FromClient adapts a completion.Client to Completer.
func FromClient(c *completion.Client) Completer {
	return CompleterFunc(func(ctx context.Context, req *llm.ChatRequest) (ChunkStream, error) {
		s, err := c.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Config configures an Agent.
type Config struct {
	Completer Completer

	// Registry holds the tools offered to the model. May be nil for a
	// tool-less agent.
	Registry *toolbox.Registry

	Provider     string
	Model        string
	SystemPrompt string

	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	// MaxSteps defaults to DefaultMaxSteps.
	MaxSteps int

	// Recorder receives every run and its full events. Defaults to a no-op.
	Recorder Recorder

	// AbortOnToolError stops a Run at the first failing tool call instead
	// of reporting the failure to the model.
	AbortOnToolError bool

	Logger *slog.Logger
}

// Agent pairs a model endpoint with a tool registry.
type Agent struct {
	config Config
	logger *slog.Logger
}

// New creates an Agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Completer == nil {
		return nil, errors.New("agent requires a completer")
	}
	if cfg.Registry == nil {
		cfg.Registry = toolbox.NewRegistry()
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &Agent{config: cfg, logger: cfg.Logger}, nil
}

// Registry returns the agent's tools.
func (a *Agent) Registry() *toolbox.Registry {
	return a.config.Registry
}

// Turn is one streamed completion reduced to events. Close it when done,
// even if the events were not drained.
type Turn struct {
	*stream.Reducer
	body ChunkStream
}

// Close releases the completion response.
func (t *Turn) Close() error {
	return t.body.Close()
}

// Stream sends prompt as a single user message and returns the reduced
// response. Tool calls are reported as events but not executed; use Run for
// that.
func (a *Agent) Stream(ctx context.Context, prompt string) (*Turn, error) {
	return a.stream(ctx, []llm.Message{llm.NewTextMessage(llm.RoleUser, prompt)})
}

func (a *Agent) stream(ctx context.Context, messages []llm.Message) (*Turn, error) {
	body, err := a.config.Completer.Complete(ctx, a.request(messages))
	if err != nil {
		return nil, err
	}
	return &Turn{Reducer: stream.NewReducer(body), body: body}, nil
}

func (a *Agent) request(messages []llm.Message) *llm.ChatRequest {
	return &llm.ChatRequest{
		Model:       a.config.Model,
		System:      a.config.SystemPrompt,
		Messages:    messages,
		Tools:       a.config.Registry.DescribeAll(),
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
		TopP:        a.config.TopP,
	}
}
