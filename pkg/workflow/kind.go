package workflow

import "strings"

// NodeKind identifies the stage a node occupies in the pipeline.
type NodeKind string

const (
	KindInput  NodeKind = "input"
	KindLLM    NodeKind = "llm"
	KindOutput NodeKind = "output"
)

// Kinds lists every recognized kind in pipeline order.
var Kinds = []NodeKind{KindInput, KindLLM, KindOutput}

// kindEntry is the registry entry for one node kind.
type kindEntry struct {
	label    string
	position Position
	payload  func() Payload
}

const defaultRow = 150

var registry = map[NodeKind]kindEntry{
	KindInput: {
		label:    "Input",
		position: Position{X: 200, Y: defaultRow},
		payload:  func() Payload { return InputData{} },
	},
	KindLLM: {
		label:    "LLM",
		position: Position{X: 400, Y: defaultRow},
		payload:  func() Payload { return DefaultLLMData() },
	},
	KindOutput: {
		label:    "Output",
		position: Position{X: 600, Y: defaultRow},
		payload:  func() Payload { return OutputData{} },
	},
}

// KindOf resolves a type name such as "input" or " LLM " to its NodeKind.
func KindOf(typeName string) (NodeKind, error) {
	k := NodeKind(strings.ToLower(strings.TrimSpace(typeName)))
	if _, ok := registry[k]; !ok {
		return "", &UnknownKindError{Name: typeName}
	}
	return k, nil
}

// Valid reports whether k is a registered kind.
func (k NodeKind) Valid() bool {
	_, ok := registry[k]
	return ok
}

// Label is the display name used in user-facing messages.
func (k NodeKind) Label() string {
	if e, ok := registry[k]; ok {
		return e.label
	}
	return string(k)
}

// DefaultPosition is where a freshly added node of kind k is placed.
func DefaultPosition(k NodeKind) Position {
	return registry[k].position
}

// DefaultPayload returns the initial data for a node of kind k, or nil for
// an unknown kind.
func DefaultPayload(k NodeKind) Payload {
	e, ok := registry[k]
	if !ok {
		return nil
	}
	return e.payload()
}
