package stream

import (
	"iter"
	"strings"

	"github.com/papercomputeco/reel/pkg/llm"
)

// Reducer turns a ChunkSource into a sequence of Events.
//
// Every sub-choice of every chunk is one step. A step is classified into at
// most one current event, checked in the order text, reasoning, tool name,
// tool arguments, finish reason; the last present field wins. When the
// previous step was an accumulating kind and the current one differs, the
// accumulated content is flushed as a Full event. The Partial for the step is
// yielded before the flushed Full.
//
// A tool call fragment that opens a different call while arguments are
// accumulating (another index, or a name without the open call's index)
// first runs as a select step of its own, so the open request is flushed
// under its own name before the new one is taken.
//
// Events wait in an internal buffer between pulls. It never holds more than
// the events of one chunk: Next pulls again only once it is empty.
//
// A Reducer is single-use and not safe for concurrent use.
type Reducer struct {
	src ChunkSource

	// previous is the event classified by the last step, nil if that step
	// carried nothing.
	previous Event

	text      strings.Builder
	reasoning strings.Builder
	toolArgs  strings.Builder
	toolName  string
	toolID    string
	toolIndex *int

	finishReason string

	// pending holds the undelivered events of the last pulled chunk.
	pending []Event
	chunks  int
	done    bool
	err     error
}

// NewReducer creates a Reducer pulling from src.
func NewReducer(src ChunkSource) *Reducer {
	return &Reducer{src: src}
}

// Reduce is shorthand for NewReducer(src).All().
func Reduce(src ChunkSource) iter.Seq2[Event, error] {
	return NewReducer(src).All()
}

// Next returns the next event. It returns (nil, nil) once the source is
// drained and every open accumulator has been flushed. After an error, Next
// keeps returning that error.
func (r *Reducer) Next() (Event, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return nil, r.err
		}
		if r.done {
			return nil, nil
		}
		r.pull()
	}

	ev := r.pending[0]
	r.pending[0] = nil
	r.pending = r.pending[1:]
	return ev, nil
}

// All returns an iterator over the remaining events. Iteration stops after
// the first error.
func (r *Reducer) All() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			ev, err := r.Next()
			if err != nil {
				yield(nil, err)
				return
			}
			if ev == nil {
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// FinishReason returns the last finish reason seen on the stream, or "" if
// the model has not reported one yet.
func (r *Reducer) FinishReason() string {
	return r.finishReason
}

// pull consumes one chunk from the source and queues the events it produces.
func (r *Reducer) pull() {
	chunk, err := r.src.Next()
	if err != nil {
		r.err = err
		return
	}
	if chunk == nil {
		r.done = true
		if full := r.flush(nil); full != nil {
			r.pending = append(r.pending, full)
		}
		return
	}

	idx := r.chunks
	r.chunks++

	for ci := range chunk.Choices {
		choice := &chunk.Choices[ci]
		if err := validateChoice(choice); err != nil {
			err.Chunk = idx
			err.Choice = ci
			r.err = err
			return
		}

		if len(choice.ToolCalls) <= 1 {
			var frag *llm.ToolCallFragment
			if len(choice.ToolCalls) == 1 {
				frag = &choice.ToolCalls[0]
			}
			r.fragment(choice.Text, choice.Reasoning, frag, choice.FinishReason)
			continue
		}

		// Parallel tool calls in one choice: one step per fragment, then
		// the finish reason on its own so it cannot mask the last fragment.
		for fi := range choice.ToolCalls {
			text, reasoning := "", ""
			if fi == 0 {
				text, reasoning = choice.Text, choice.Reasoning
			}
			r.fragment(text, reasoning, &choice.ToolCalls[fi], "")
		}
		if choice.FinishReason != "" {
			r.step("", "", nil, choice.FinishReason)
		}
	}
}

func validateChoice(choice *llm.ChunkChoice) *MalformedChunkError {
	if len(choice.ToolCalls) <= 1 {
		return nil
	}
	for _, frag := range choice.ToolCalls {
		if frag.Index == nil {
			return &MalformedChunkError{
				Reason: "tool call fragment without index among multiple tool calls",
			}
		}
	}
	return nil
}

// fragment runs the steps for one choice, splitting off a select step when
// frag opens a new call that carries arguments.
func (r *Reducer) fragment(text, reasoning string, frag *llm.ToolCallFragment, finish string) {
	if frag != nil && frag.Arguments != "" && r.opensNewCall(frag) {
		r.step("", "", &llm.ToolCallFragment{Index: frag.Index, ID: frag.ID, Name: frag.Name}, "")
		frag = &llm.ToolCallFragment{Index: frag.Index, Arguments: frag.Arguments}
	}
	r.step(text, reasoning, frag, finish)
}

// opensNewCall reports whether frag belongs to a different call than the one
// whose arguments are accumulating.
func (r *Reducer) opensNewCall(frag *llm.ToolCallFragment) bool {
	if r.previous == nil || r.previous.Kind() != KindToolCallArguments {
		return false
	}

	sameIndex := frag.Index != nil && r.toolIndex != nil && *frag.Index == *r.toolIndex
	otherIndex := frag.Index != nil && r.toolIndex != nil && *frag.Index != *r.toolIndex
	return otherIndex || (frag.Name != "" && !sameIndex)
}

// step runs one classification/flush/accumulate cycle.
func (r *Reducer) step(text, reasoning string, frag *llm.ToolCallFragment, finish string) {
	current := classify(text, reasoning, frag, finish)

	// Flush before accumulating so that a tool name arriving with this step
	// does not leak into the request that this step closes.
	full := r.flush(current)

	if frag != nil {
		if frag.Name != "" {
			r.toolName = frag.Name
		}
		if frag.ID != "" {
			r.toolID = frag.ID
		}
		if frag.Index != nil {
			i := *frag.Index
			r.toolIndex = &i
		}
	}

	switch ev := current.(type) {
	case TextDelta:
		r.text.WriteString(ev.Content)
	case ReasoningDelta:
		r.reasoning.WriteString(ev.Content)
	case ToolCallArguments:
		r.toolArgs.WriteString(ev.ArgumentsContent)
	case End:
		r.finishReason = ev.FinishReason
	}

	if current != nil && current.Kind() != KindEnd {
		r.pending = append(r.pending, current)
	}
	if full != nil {
		r.pending = append(r.pending, full)
	}
	r.previous = current
}

// classify picks the current event for a step. Later checks overwrite
// earlier ones, so arguments beat a name sent in the same fragment.
func classify(text, reasoning string, frag *llm.ToolCallFragment, finish string) Event {
	var current Event
	if text != "" {
		current = TextDelta{Content: text}
	}
	if reasoning != "" {
		current = ReasoningDelta{Content: reasoning}
	}
	if frag != nil {
		if frag.Name != "" {
			current = ToolCallSelect{FunctionName: frag.Name}
		}
		if frag.Arguments != "" {
			current = ToolCallArguments{ArgumentsContent: frag.Arguments}
		}
	}
	if finish != "" {
		current = End{FinishReason: finish}
	}
	return current
}

// flush returns the Full event closing the previous run when current ends
// it, and resets the matching accumulators.
func (r *Reducer) flush(current Event) FullEvent {
	if r.previous == nil {
		return nil
	}
	prev := r.previous.Kind()
	if !prev.IsAccumulating() {
		return nil
	}
	if current != nil && current.Kind() == prev {
		return nil
	}

	switch prev {
	case KindTextDelta:
		full := TextResponse{Content: r.text.String()}
		r.text.Reset()
		return full
	case KindReasoningDelta:
		full := ReasoningResponse{Content: r.reasoning.String()}
		r.reasoning.Reset()
		return full
	case KindToolCallArguments:
		full := ToolCallRequest{
			FunctionName: r.toolName,
			Arguments:    r.toolArgs.String(),
			CallID:       r.toolID,
		}
		r.toolArgs.Reset()
		r.toolName = ""
		r.toolID = ""
		r.toolIndex = nil
		return full
	}
	return nil
}
