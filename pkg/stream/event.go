// Package stream reduces the incremental chunks of a streaming completion
// into typed events.
//
// Partial events mirror each fragment as it arrives. Full events are emitted
// once a run of fragments of the same accumulating kind ends, carrying the
// assembled content of that run.
package stream

// Kind tags each Event variant.
type Kind int

const (
	KindTextDelta Kind = iota + 1
	KindReasoningDelta
	KindToolCallSelect
	KindToolCallArguments
	KindTextResponse
	KindReasoningResponse
	KindToolCallRequest
	KindEnd
)

var kindNames = map[Kind]string{
	KindTextDelta:         "text_delta",
	KindReasoningDelta:    "reasoning_delta",
	KindToolCallSelect:    "tool_call_select",
	KindToolCallArguments: "tool_call_arguments",
	KindTextResponse:      "text_response",
	KindReasoningResponse: "reasoning_response",
	KindToolCallRequest:   "tool_call_request",
	KindEnd:               "end",
}

// String returns the snake_case name used on the wire and in storage.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// IsAccumulating reports whether consecutive events of this kind are
// concatenated into a single Full event.
func (k Kind) IsAccumulating() bool {
	switch k {
	case KindTextDelta, KindReasoningDelta, KindToolCallArguments:
		return true
	default:
		return false
	}
}

// IsPartial reports whether the kind is an in-progress fragment.
func (k Kind) IsPartial() bool {
	return k >= KindTextDelta && k <= KindToolCallArguments
}

// IsFull reports whether the kind is a completed semantic unit.
func (k Kind) IsFull() bool {
	return k >= KindTextResponse && k <= KindEnd
}

// Event is the sealed sum of everything the reducer can produce.
// Only types in this package implement it.
type Event interface {
	Kind() Kind
	event()
}

// PartialEvent is an Event describing a fragment still in progress.
type PartialEvent interface {
	Event
	partial()
}

// FullEvent is an Event describing a completed unit.
type FullEvent interface {
	Event
	full()
}

// TextDelta is one fragment of answer text.
type TextDelta struct {
	Content string `json:"content"`
}

// ReasoningDelta is one fragment of a reasoning trace.
type ReasoningDelta struct {
	Content string `json:"content"`
}

// ToolCallSelect announces which tool the model is about to call.
type ToolCallSelect struct {
	FunctionName string `json:"function_name"`
}

// ToolCallArguments is one fragment of a tool call's JSON arguments.
type ToolCallArguments struct {
	ArgumentsContent string `json:"arguments_content"`
}

// TextResponse is the concatenation of a run of TextDelta events.
type TextResponse struct {
	Content string `json:"content"`
}

// ReasoningResponse is the concatenation of a run of ReasoningDelta events.
type ReasoningResponse struct {
	Content string `json:"content"`
}

// ToolCallRequest is a complete tool invocation request. Arguments is the
// raw JSON string and is not validated here.
type ToolCallRequest struct {
	FunctionName string `json:"function_name"`
	Arguments    string `json:"arguments"`

	// CallID is the provider's identifier for the call, when it sent one.
	CallID string `json:"call_id,omitempty"`
}

// End marks that the model reported a finish reason. The reducer never
// yields it; see Reducer.FinishReason.
type End struct {
	FinishReason string `json:"finish_reason"`
}

func (TextDelta) Kind() Kind         { return KindTextDelta }
func (ReasoningDelta) Kind() Kind    { return KindReasoningDelta }
func (ToolCallSelect) Kind() Kind    { return KindToolCallSelect }
func (ToolCallArguments) Kind() Kind { return KindToolCallArguments }
func (TextResponse) Kind() Kind      { return KindTextResponse }
func (ReasoningResponse) Kind() Kind { return KindReasoningResponse }
func (ToolCallRequest) Kind() Kind   { return KindToolCallRequest }
func (End) Kind() Kind               { return KindEnd }

func (TextDelta) event()         {}
func (ReasoningDelta) event()    {}
func (ToolCallSelect) event()    {}
func (ToolCallArguments) event() {}
func (TextResponse) event()      {}
func (ReasoningResponse) event() {}
func (ToolCallRequest) event()   {}
func (End) event()               {}

func (TextDelta) partial()         {}
func (ReasoningDelta) partial()    {}
func (ToolCallSelect) partial()    {}
func (ToolCallArguments) partial() {}

func (TextResponse) full()      {}
func (ReasoningResponse) full() {}
func (ToolCallRequest) full()   {}
func (End) full()               {}
