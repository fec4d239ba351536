package cliui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/stream"
	"github.com/papercomputeco/reel/pkg/utils"
)

var (
	reasoningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	toolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	argsStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Bold(true)
)

// maxToolOutput is how much of a tool result is echoed to the terminal.
const maxToolOutput = 200

// Renderer prints agent events to a terminal as they arrive.
type Renderer struct {
	w io.Writer

	markdown      bool
	showReasoning bool

	// open is the kind of the partial run currently being printed, so a
	// label is written once per run.
	open stream.Kind
	idle bool
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithMarkdown renders each complete text response with glamour instead of
// echoing text deltas.
func WithMarkdown() RendererOption {
	return func(r *Renderer) {
		r.markdown = true
	}
}

// WithReasoning prints the model's reasoning deltas.
func WithReasoning() RendererOption {
	return func(r *Renderer) {
		r.showReasoning = true
	}
}

// NewRenderer creates a Renderer writing to w.
func NewRenderer(w io.Writer, opts ...RendererOption) *Renderer {
	r := &Renderer{w: w, idle: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Event prints one reduced event.
func (r *Renderer) Event(ev stream.Event) {
	switch e := ev.(type) {
	case stream.ReasoningDelta:
		if !r.showReasoning {
			return
		}
		r.begin(stream.KindReasoningDelta, labelStyle.Render("thinking")+" ")
		fmt.Fprint(r.w, reasoningStyle.Render(e.Content))

	case stream.ReasoningResponse:
		r.endRun(stream.KindReasoningDelta)

	case stream.TextDelta:
		if r.markdown {
			return
		}
		r.begin(stream.KindTextDelta, "")
		fmt.Fprint(r.w, e.Content)

	case stream.TextResponse:
		if !r.markdown {
			r.endRun(stream.KindTextDelta)
			return
		}
		rendered, err := RenderMarkdown(e.Content)
		if err != nil {
			rendered = e.Content + "\n"
		}
		fmt.Fprint(r.w, rendered)

	case stream.ToolCallSelect:
		r.begin(stream.KindToolCallArguments, "  "+toolStyle.Render("⚙ "+e.FunctionName)+" ")

	case stream.ToolCallArguments:
		r.begin(stream.KindToolCallArguments, "  "+toolStyle.Render("⚙")+" ")
		fmt.Fprint(r.w, argsStyle.Render(e.ArgumentsContent))

	case stream.ToolCallRequest:
		r.endRun(stream.KindToolCallArguments)
	}
}

// ToolResult prints the outcome of a tool call.
func (r *Renderer) ToolResult(res agent.ToolResult) {
	r.end()
	out := res.Output
	if res.Err != nil {
		out = res.Err.Error()
	}
	fmt.Fprintf(r.w, "  %s %s %s\n",
		Mark(res.Err),
		toolStyle.Render(res.Name),
		StepStyle.Render(utils.Truncate(out, maxToolOutput)),
	)
}

// Summary prints the closing line of a run.
func (r *Renderer) Summary(s *agent.Summary) {
	r.end()
	reason := s.FinishReason
	if reason == "" {
		reason = "done"
	}
	fmt.Fprintln(r.w, StepStyle.Render(fmt.Sprintf("(%s, %d step(s), %d tool call(s))",
		reason, s.Steps, len(s.ToolResults))))
}

// begin starts a partial run of kind, writing label when a new run opens.
func (r *Renderer) begin(kind stream.Kind, label string) {
	if !r.idle && r.open == kind {
		return
	}
	r.end()
	r.open = kind
	r.idle = false
	fmt.Fprint(r.w, label)
}

// end terminates the open partial run, if any.
func (r *Renderer) end() {
	if r.idle {
		return
	}
	fmt.Fprintln(r.w)
	r.idle = true
}

// endRun ends the open run only if it is of kind. A flushed Full event can
// arrive after the Partial that opened the next run.
func (r *Renderer) endRun(kind stream.Kind) {
	if r.open == kind {
		r.end()
	}
}
