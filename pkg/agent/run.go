package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/reel/pkg/llm"
	"github.com/papercomputeco/reel/pkg/storage"
	"github.com/papercomputeco/reel/pkg/stream"
	"github.com/papercomputeco/reel/pkg/toolbox"
)

// Finish reasons recorded for runs that did not end with the model's own.
const (
	FinishMaxSteps  = "max_steps"
	FinishToolError = "tool_error"
	FinishError     = "error"
)

// ErrMaxSteps is returned by Run when the model is still calling tools after
// MaxSteps completions.
var ErrMaxSteps = errors.New("agent exceeded max steps")

// ToolResult is the outcome of one tool call made during a Run.
type ToolResult struct {
	CallID    string
	Name      string
	Arguments string

	// Result is the handler's return value; nil when Err is set.
	Result any

	// Output is the text sent back to the model.
	Output string

	Err error
}

// Summary describes a finished Run.
type Summary struct {
	RunID string

	// Text is the model's final answer.
	Text string

	// Steps is the number of completions requested.
	Steps int

	FinishReason string
	ToolResults  []ToolResult

	// Events counts the full events produced across all steps.
	Events int
}

// RunOption configures a single Run.
type RunOption func(*runOptions)

type runOptions struct {
	onEvent      func(stream.Event)
	onToolResult func(ToolResult)
}

// OnEvent receives every event of every step as it is reduced.
func OnEvent(fn func(stream.Event)) RunOption {
	return func(o *runOptions) {
		o.onEvent = fn
	}
}

// OnToolResult receives each tool result right after the tool returns.
func OnToolResult(fn func(ToolResult)) RunOption {
	return func(o *runOptions) {
		o.onToolResult = fn
	}
}

// Run answers prompt, executing tool calls and re-prompting the model with
// their results until it stops calling tools.
//
// A failing tool is reported to the model as the call's result unless
// AbortOnToolError is set, in which case Run returns the tool's error. The
// returned Summary is non-nil whenever a run was started, including on error.
func (a *Agent) Run(ctx context.Context, prompt string, opts ...RunOption) (*Summary, error) {
	o := runOptions{
		onEvent:      func(stream.Event) {},
		onToolResult: func(ToolResult) {},
	}
	for _, opt := range opts {
		opt(&o)
	}

	run := &storage.Run{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Model:     a.config.Model,
		Provider:  a.config.Provider,
		StartedAt: time.Now().UTC(),
	}
	recorder := a.config.Recorder
	if err := recorder.StartRun(ctx, run); err != nil {
		a.logger.Warn("recording disabled for run", "run_id", run.ID, "error", err)
		recorder = nopRecorder{}
	}

	r := &runner{
		agent:    a,
		run:      run,
		recorder: recorder,
		opts:     o,
		summary:  &Summary{RunID: run.ID},
		messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, prompt)},
	}

	err := r.loop(ctx)
	recorder.FinishRun(run, r.summary.FinishReason)

	a.logger.Info("run finished",
		"run_id", run.ID,
		"steps", r.summary.Steps,
		"tool_calls", len(r.summary.ToolResults),
		"finish_reason", r.summary.FinishReason,
	)
	return r.summary, err
}

type runner struct {
	agent    *Agent
	run      *storage.Run
	recorder Recorder
	opts     runOptions
	summary  *Summary
	messages []llm.Message
	seq      int
}

func (r *runner) loop(ctx context.Context) error {
	for step := 1; ; step++ {
		if step > r.agent.config.MaxSteps {
			r.summary.FinishReason = FinishMaxSteps
			return fmt.Errorf("%w (%d)", ErrMaxSteps, r.agent.config.MaxSteps)
		}
		if err := ctx.Err(); err != nil {
			r.summary.FinishReason = FinishError
			return err
		}

		r.summary.Steps = step
		text, calls, err := r.step(ctx)
		if err != nil {
			r.summary.FinishReason = FinishError
			return err
		}

		if len(calls) == 0 {
			r.summary.Text = text
			return nil
		}

		r.messages = append(r.messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   text,
			ToolCalls: calls,
		})

		for _, call := range calls {
			res := r.invoke(ctx, call)
			r.summary.ToolResults = append(r.summary.ToolResults, res)
			r.opts.onToolResult(res)

			if res.Err != nil && r.agent.config.AbortOnToolError {
				r.summary.FinishReason = FinishToolError
				return res.Err
			}

			r.messages = append(r.messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    res.Output,
				ToolCallID: res.CallID,
				Name:       res.Name,
			})
		}
	}
}

// step streams one completion, returning the answer text and the tool calls
// it requested.
func (r *runner) step(ctx context.Context) (string, []llm.ToolCall, error) {
	turn, err := r.agent.stream(ctx, r.messages)
	if err != nil {
		return "", nil, err
	}
	defer turn.Close()

	var (
		text  strings.Builder
		calls []llm.ToolCall
	)
	for ev, err := range turn.All() {
		if err != nil {
			return "", nil, err
		}
		r.opts.onEvent(ev)

		switch e := ev.(type) {
		case stream.TextResponse:
			text.WriteString(e.Content)
		case stream.ToolCallRequest:
			id := e.CallID
			if id == "" {
				id = fmt.Sprintf("call_%d_%d", r.summary.Steps, len(calls))
			}
			calls = append(calls, llm.ToolCall{ID: id, Name: e.FunctionName, Arguments: e.Arguments})
		}

		if _, ok := ev.(stream.FullEvent); ok {
			r.record(ev)
		}
	}

	if reason := turn.FinishReason(); reason != "" {
		r.summary.FinishReason = reason
		r.record(stream.End{FinishReason: reason})
	}
	return text.String(), calls, nil
}

func (r *runner) record(ev stream.Event) {
	r.recorder.RecordEvent(r.run, r.seq, ev)
	r.seq++
	r.summary.Events++
}

func (r *runner) invoke(ctx context.Context, call llm.ToolCall) ToolResult {
	res := ToolResult{CallID: call.ID, Name: call.Name, Arguments: call.Arguments}

	out, err := r.agent.config.Registry.Invoke(ctx, call.Name, call.Arguments)
	if err != nil {
		res.Err = err
		res.Output = "Error: " + err.Error()
		r.agent.logger.Warn("tool call failed",
			"run_id", r.run.ID,
			"tool", call.Name,
			"error", err,
		)
		return res
	}

	res.Result = out
	res.Output = toolbox.FormatResult(out)
	r.agent.logger.Debug("tool call succeeded",
		"run_id", r.run.ID,
		"tool", call.Name,
	)
	return res
}
