package toolbox

import (
	"errors"
	"fmt"
)

// Registration errors.
var (
	ErrEmptyName     = errors.New("tool name is empty")
	ErrNilHandler    = errors.New("tool handler is nil")
	ErrDuplicateTool = errors.New("tool already registered")
	ErrUnknownType   = errors.New("unknown parameter type")
)

// UnknownToolError is returned by Invoke when no tool has the requested name.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("model called tool %q which is not available", e.Name)
}

// InvalidArgumentsError is returned by Invoke when the arguments are not a
// JSON object or do not match the tool's parameters.
type InvalidArgumentsError struct {
	Name      string
	Arguments string
	Err       error
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %s: %v", e.Name, e.Arguments, e.Err)
}

func (e *InvalidArgumentsError) Unwrap() error { return e.Err }

// ToolExecutionError wraps a failure raised by a tool handler, including a
// recovered panic.
type ToolExecutionError struct {
	Name string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Name, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// panicError carries a value recovered from a handler panic.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
