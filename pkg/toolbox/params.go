package toolbox

import (
	"fmt"
	"math"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
)

// ParamType is the JSON Schema type of a tool parameter.
type ParamType string

const (
	Integer ParamType = "integer"
	Number  ParamType = "number"
	String  ParamType = "string"
	Boolean ParamType = "boolean"
	Object  ParamType = "object"
	Array   ParamType = "array"
)

func (t ParamType) valid() bool {
	switch t {
	case Integer, Number, String, Boolean, Object, Array:
		return true
	}
	return false
}

// Params maps parameter names to their types. Every parameter is required.
type Params map[string]ParamType

func (p Params) names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// schema builds the JSON Schema object for p and resolves it for validation.
func (p Params) schema() (map[string]any, *jsonschema.Resolved, error) {
	names := p.names()
	props := make(map[string]*jsonschema.Schema, len(p))
	raw := make(map[string]any, len(p))

	for _, name := range names {
		t := p[name]
		if !t.valid() {
			return nil, nil, fmt.Errorf("parameter %q: %w: %q", name, ErrUnknownType, t)
		}
		props[name] = &jsonschema.Schema{Type: string(t)}
		raw[name] = map[string]any{"type": string(t)}
	}

	s := &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   names,
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, nil, err
	}

	return map[string]any{
		"type":       "object",
		"properties": raw,
		"required":   names,
	}, resolved, nil
}

// Args are the decoded arguments passed to a Handler. The getters return the
// zero value when the key is missing or has another type.
type Args map[string]any

func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

func (a Args) Float(key string) float64 {
	f, _ := a[key].(float64)
	return f
}

func (a Args) Int(key string) int {
	f, ok := a[key].(float64)
	if !ok || f != math.Trunc(f) {
		return 0
	}
	return int(f)
}

func (a Args) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}
