package stream

import (
	"encoding/json"
	"fmt"
)

// MarshalEvent encodes ev as a JSON object with a "kind" field next to the
// variant's own fields, e.g. {"kind":"text_delta","content":"Hel"}.
func MarshalEvent(ev Event) ([]byte, error) {
	fields, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}

	var obj map[string]any
	if err := json.Unmarshal(fields, &obj); err != nil {
		return nil, err
	}
	obj["kind"] = ev.Kind().String()
	return json.Marshal(obj)
}

// UnmarshalEvent decodes the output of MarshalEvent.
func UnmarshalEvent(data []byte) (Event, error) {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	kind, ok := ParseKind(head.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown event kind %q", head.Kind)
	}
	return DecodeKind(kind, data)
}

// DecodeKind decodes the variant fields of an event whose kind is known.
func DecodeKind(kind Kind, data []byte) (Event, error) {
	switch kind {
	case KindTextDelta:
		return decode[TextDelta](data)
	case KindReasoningDelta:
		return decode[ReasoningDelta](data)
	case KindToolCallSelect:
		return decode[ToolCallSelect](data)
	case KindToolCallArguments:
		return decode[ToolCallArguments](data)
	case KindTextResponse:
		return decode[TextResponse](data)
	case KindReasoningResponse:
		return decode[ReasoningResponse](data)
	case KindToolCallRequest:
		return decode[ToolCallRequest](data)
	case KindEnd:
		return decode[End](data)
	}
	return nil, fmt.Errorf("unknown event kind %d", kind)
}

func decode[T Event](data []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}
