// Package toolbox holds the functions a model may call. Each tool is
// registered with an explicit parameter schema, described to the model in
// the OpenAI function format, and invoked with the raw JSON arguments string
// the model produced.
package toolbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/papercomputeco/reel/pkg/llm"
	"github.com/papercomputeco/reel/pkg/logger"
)

// Handler runs a tool. The returned value is sent back to the model as
// rendered by FormatResult.
type Handler func(ctx context.Context, args Args) (any, error)

type tool struct {
	name        string
	description string
	handler     Handler
	parameters  map[string]any
	validator   *jsonschema.Resolved
}

// Registry is a set of named tools. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*tool
	order []string

	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used to report invocations.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tools:  make(map[string]*tool),
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(name string, handler Handler, description string, params Params) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if handler == nil {
		return fmt.Errorf("%s: %w", name, ErrNilHandler)
	}

	parameters, validator, err := params.schema()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[name]; ok {
		return fmt.Errorf("%s: %w", name, ErrDuplicateTool)
	}
	r.tools[name] = &tool{
		name:        name,
		description: description,
		handler:     handler,
		parameters:  parameters,
		validator:   validator,
	}
	r.order = append(r.order, name)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, handler Handler, description string, params Params) {
	if err := r.Register(name, handler, description, params); err != nil {
		panic(err)
	}
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Describe returns the definition of one tool.
func (r *Registry) Describe(name string) (llm.ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return llm.ToolDefinition{}, false
	}
	return t.definition(), true
}

// DescribeAll returns every tool definition in registration order.
func (r *Registry) DescribeAll() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].definition())
	}
	return defs
}

func (t *tool) definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        t.name,
		Description: t.description,
		Parameters:  t.parameters,
	}
}

// Invoke runs the named tool with the JSON arguments produced by the model.
// An empty arguments string is treated as "{}".
//
// Errors are *UnknownToolError, *InvalidArgumentsError or *ToolExecutionError.
func (r *Registry) Invoke(ctx context.Context, name, arguments string) (any, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}

	raw := strings.TrimSpace(arguments)
	if raw == "" {
		raw = "{}"
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, &InvalidArgumentsError{Name: name, Arguments: arguments, Err: err}
	}
	args, ok := decoded.(map[string]any)
	if !ok {
		return nil, &InvalidArgumentsError{Name: name, Arguments: arguments, Err: errors.New("arguments must be a JSON object")}
	}
	if err := t.validator.Validate(args); err != nil {
		return nil, &InvalidArgumentsError{Name: name, Arguments: arguments, Err: err}
	}

	r.logger.Debug("invoking tool", "tool", name, "arguments", raw)

	result, err := t.call(ctx, args)
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "error", err)
		return nil, &ToolExecutionError{Name: name, Err: err}
	}
	return result, nil
}

func (t *tool) call(ctx context.Context, args Args) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{value: rec}
		}
	}()
	return t.handler(ctx, args)
}

// FormatResult renders a tool result as the text sent back to the model.
func FormatResult(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case []byte:
		return string(val)
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprint(v)
}
